package system

import (
	"github.com/junctionsim/junction/internal/core/event"
	coresys "github.com/junctionsim/junction/internal/core/system"
	"github.com/junctionsim/junction/internal/metrics"
	"github.com/junctionsim/junction/internal/sim"
)

// MetricsSystem publishes queue depths each tick and turns admission and
// violation events into counters. Phase 3 (Output).
type MetricsSystem struct {
	registry *sim.Registry
	metrics  *metrics.Collector
}

func NewMetricsSystem(registry *sim.Registry, bus *event.Bus, collector *metrics.Collector) *MetricsSystem {
	event.Subscribe(bus, func(e event.RequestAccepted) {
		collector.RecordAdmission(e.Admission)
	})
	event.Subscribe(bus, func(e event.ViolationReported) {
		collector.RecordViolation(e.Op)
	})
	return &MetricsSystem{registry: registry, metrics: collector}
}

func (s *MetricsSystem) Phase() coresys.Phase { return coresys.PhaseOutput }

func (s *MetricsSystem) Update(_ sim.Tick) {
	s.metrics.RecordCounts(s.registry.Counts())
}
