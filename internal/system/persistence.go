package system

import (
	"context"
	"time"

	"github.com/google/uuid"
	coresys "github.com/junctionsim/junction/internal/core/system"
	"github.com/junctionsim/junction/internal/persist"
	"github.com/junctionsim/junction/internal/sim"
	"go.uber.org/zap"
)

// SnapshotSystem periodically saves the registry to the snapshot store.
// Phase 4 (Persist).
type SnapshotSystem struct {
	registry  *sim.Registry
	store     persist.Store
	runID     uuid.UUID
	network   string
	timeout   time.Duration
	log       *zap.Logger
	tickCount int
	interval  int // save every N ticks
}

func NewSnapshotSystem(registry *sim.Registry, store persist.Store, network string, intervalTicks int, timeout time.Duration, log *zap.Logger) *SnapshotSystem {
	return &SnapshotSystem{
		registry: registry,
		store:    store,
		runID:    uuid.New(),
		network:  network,
		timeout:  timeout,
		log:      log,
		interval: intervalTicks,
	}
}

func (s *SnapshotSystem) Phase() coresys.Phase { return coresys.PhasePersist }

// RunID identifies the snapshots written by this process.
func (s *SnapshotSystem) RunID() uuid.UUID { return s.runID }

func (s *SnapshotSystem) Update(now sim.Tick) {
	s.tickCount++
	if s.tickCount < s.interval {
		return
	}
	s.tickCount = 0
	if err := s.Save(now); err != nil {
		s.log.Error("snapshot save failed", zap.Stringer("tick", now), zap.Error(err))
	}
}

// Save writes the current registry state immediately.
// Called for graceful shutdown.
func (s *SnapshotSystem) Save(now sim.Tick) error {
	payload, err := s.registry.MarshalBinary()
	if err != nil {
		return err
	}
	snap := persist.NewSnapshot(s.runID, s.network, now, payload)

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.store.Save(ctx, snap); err != nil {
		return err
	}
	s.log.Debug("snapshot saved",
		zap.Stringer("tick", now),
		zap.String("digest", snap.Digest[:12]),
		zap.Int("bytes", len(payload)))
	return nil
}
