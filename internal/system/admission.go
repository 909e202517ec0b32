package system

import (
	"context"
	"time"

	"github.com/junctionsim/junction/internal/core/event"
	coresys "github.com/junctionsim/junction/internal/core/system"
	"github.com/junctionsim/junction/internal/metrics"
	"github.com/junctionsim/junction/internal/sim"
	"go.uber.org/zap"
)

// AdmissionSystem runs the registry's admission step once per tick and publishes
// every promotion. Phase 1 (Admission).
type AdmissionSystem struct {
	ctx      context.Context
	registry *sim.Registry
	bus      *event.Bus
	metrics  *metrics.Collector // nil when metrics are disabled
	workers  int
	log      *zap.Logger
}

func NewAdmissionSystem(ctx context.Context, registry *sim.Registry, bus *event.Bus, collector *metrics.Collector, workers int, log *zap.Logger) *AdmissionSystem {
	return &AdmissionSystem{
		ctx:      ctx,
		registry: registry,
		bus:      bus,
		metrics:  collector,
		workers:  workers,
		log:      log,
	}
}

func (s *AdmissionSystem) Phase() coresys.Phase { return coresys.PhaseAdmission }

func (s *AdmissionSystem) Update(now sim.Tick) {
	start := time.Now()
	admitted, err := s.registry.StepParallel(s.ctx, now, s.workers)
	if s.metrics != nil {
		s.metrics.RecordStep(time.Since(start))
	}
	if err != nil {
		// Failed intersections keep their queues and are retried next tick.
		s.log.Error("admission step failed", zap.Stringer("tick", now), zap.Error(err))
	}
	for _, a := range admitted {
		event.Emit(s.bus, event.RequestAccepted{Tick: now, Admission: a})
	}
}
