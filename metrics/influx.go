package metrics

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/evswap/stationd/infra/logger"
)

// InfluxSink writes swap events to an InfluxDB instance using the official
// client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and returns a
// NopSink if the health check fails.
func NewInfluxSinkWithFallback(cfg Config) SwapSink {
	sink := NewInfluxSink(cfg.InfluxURL, cfg.InfluxToken, cfg.InfluxOrg, cfg.InfluxBucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return NopSink{}
	}
	return sink
}

func (s *InfluxSink) write(p *write.Point) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.writeAPI.WritePoint(ctx, p)
}

func (s *InfluxSink) RecordSwapCommitted(stationID, batteryType string) error {
	p := write.NewPointWithMeasurement("swap_committed").
		AddTag("station_id", stationID).
		AddTag("battery_type", batteryType).
		AddField("count", 1).
		SetTime(time.Now())
	return s.write(p)
}

func (s *InfluxSink) RecordConflict(reason string) error {
	p := write.NewPointWithMeasurement("swap_conflict").
		AddTag("reason", reason).
		AddField("count", 1).
		SetTime(time.Now())
	return s.write(p)
}

func (s *InfluxSink) RecordCancellation(kind string, partialRevert bool) error {
	p := write.NewPointWithMeasurement("swap_cancellation").
		AddTag("kind", kind).
		AddTag("partial_revert", strconv.FormatBool(partialRevert)).
		AddField("count", 1).
		SetTime(time.Now())
	return s.write(p)
}

// Close releases the underlying client.
func (s *InfluxSink) Close() {
	s.client.Close()
}
