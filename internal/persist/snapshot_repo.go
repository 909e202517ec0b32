package persist

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/junctionsim/junction/internal/sim"
)

// SnapshotRepo stores snapshots in Postgres.
type SnapshotRepo struct {
	db *DB
}

func NewSnapshotRepo(db *DB) *SnapshotRepo {
	return &SnapshotRepo{db: db}
}

func (r *SnapshotRepo) Save(ctx context.Context, s *Snapshot) error {
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO snapshots (run_id, network, tick, digest, payload, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		s.RunID, s.Network, int64(s.Tick), s.Digest, s.Payload, s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

func (r *SnapshotRepo) Latest(ctx context.Context, network string) (*Snapshot, error) {
	s := &Snapshot{Network: network}
	var tick int64
	err := r.db.Pool.QueryRow(ctx,
		`SELECT run_id, tick, digest, payload, created_at
		 FROM snapshots WHERE network = $1
		 ORDER BY id DESC LIMIT 1`, network,
	).Scan(&s.RunID, &tick, &s.Digest, &s.Payload, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	s.Tick = sim.Tick(tick)
	if err := s.Verify(); err != nil {
		return nil, err
	}
	return s, nil
}

func (r *SnapshotRepo) Close() error {
	r.db.Close()
	return nil
}
