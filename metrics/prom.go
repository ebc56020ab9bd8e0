package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// PromSink records swap outcomes in Prometheus metrics.
type PromSink struct {
	swaps         *prometheus.CounterVec
	conflicts     *prometheus.CounterVec
	cancellations *prometheus.CounterVec
}

// NewPromSink registers swap metrics on the provided Prometheus registerer.
// If reg is nil, the default registerer is used. If the collectors are
// already registered, the existing ones are reused.
func NewPromSink(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	swaps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "swaps_committed_total",
		Help: "Total number of committed battery exchanges",
	}, []string{"station_id", "battery_type"})
	conflicts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "swap_conflicts_total",
		Help: "Total number of swap requests rejected by a business rule",
	}, []string{"reason"})
	cancellations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "swap_cancellations_total",
		Help: "Total number of swap cancellations",
	}, []string{"kind", "partial_revert"})

	for i, c := range []*prometheus.CounterVec{swaps, conflicts, cancellations} {
		if err := reg.Register(c); err != nil {
			are, ok := err.(prometheus.AlreadyRegisteredError)
			if !ok {
				return nil, err
			}
			existing := are.ExistingCollector.(*prometheus.CounterVec)
			switch i {
			case 0:
				swaps = existing
			case 1:
				conflicts = existing
			case 2:
				cancellations = existing
			}
		}
	}
	return &PromSink{swaps: swaps, conflicts: conflicts, cancellations: cancellations}, nil
}

func (s *PromSink) RecordSwapCommitted(stationID, batteryType string) error {
	s.swaps.WithLabelValues(stationID, batteryType).Inc()
	return nil
}

func (s *PromSink) RecordConflict(reason string) error {
	s.conflicts.WithLabelValues(reason).Inc()
	return nil
}

func (s *PromSink) RecordCancellation(kind string, partialRevert bool) error {
	s.cancellations.WithLabelValues(kind, strconv.FormatBool(partialRevert)).Inc()
	return nil
}
