// Package metrics records swap engine outcomes. Sinks are best effort: the
// engine logs recording errors and never fails a transition over them.
package metrics

// SwapSink receives swap engine outcomes.
type SwapSink interface {
	// RecordSwapCommitted counts one completed battery exchange.
	RecordSwapCommitted(stationID, batteryType string) error
	// RecordConflict counts a business-rule rejection by reason.
	RecordConflict(reason string) error
	// RecordCancellation counts a cancellation. partialRevert marks a
	// PERMANENT cancel that could not fully reconstruct inventory.
	RecordCancellation(kind string, partialRevert bool) error
}

// Config selects and configures the metric sinks.
type Config struct {
	PrometheusEnabled bool   `json:"prometheus_enabled"`
	PrometheusAddr    string `json:"prometheus_addr"`
	InfluxEnabled     bool   `json:"influx_enabled"`
	InfluxURL         string `json:"influx_url"`
	InfluxToken       string `json:"influx_token"`
	InfluxOrg         string `json:"influx_org"`
	InfluxBucket      string `json:"influx_bucket"`
}

// SetDefaults fills unset fields with sane values.
func (c *Config) SetDefaults() {
	if c.PrometheusAddr == "" {
		c.PrometheusAddr = ":9105"
	}
}

// NopSink discards all records.
type NopSink struct{}

func (NopSink) RecordSwapCommitted(string, string) error { return nil }
func (NopSink) RecordConflict(string) error              { return nil }
func (NopSink) RecordCancellation(string, bool) error    { return nil }
