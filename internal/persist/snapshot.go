package persist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/junctionsim/junction/internal/codec"
	"github.com/junctionsim/junction/internal/sim"
)

// ErrCorrupt is returned when a stored payload no longer matches its digest.
var ErrCorrupt = errors.New("snapshot digest mismatch")

// Snapshot is one saved registry state.
type Snapshot struct {
	RunID     uuid.UUID
	Network   string
	Tick      sim.Tick
	Digest    string
	Payload   []byte
	CreatedAt time.Time
}

// NewSnapshot stamps payload with its digest.
func NewSnapshot(runID uuid.UUID, network string, tick sim.Tick, payload []byte) *Snapshot {
	return &Snapshot{
		RunID:     runID,
		Network:   network,
		Tick:      tick,
		Digest:    codec.Digest(payload),
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
}

// Verify recomputes the digest of the payload.
func (s *Snapshot) Verify() error {
	if got := codec.Digest(s.Payload); got != s.Digest {
		return fmt.Errorf("%w: run %s tick %d: stored %s, computed %s", ErrCorrupt, s.RunID, s.Tick, s.Digest, got)
	}
	return nil
}

// Store saves and loads registry snapshots.
type Store interface {
	Save(ctx context.Context, s *Snapshot) error
	// Latest returns the newest snapshot of a network, or nil if there is none.
	Latest(ctx context.Context, network string) (*Snapshot, error)
	Close() error
}
