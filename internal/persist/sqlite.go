package persist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/junctionsim/junction/internal/sim"
	_ "modernc.org/sqlite"
)

// SQLiteStore keeps snapshots in a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and applies migrations.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// One writer; the simulation saves from a single goroutine.
	db.SetMaxOpenConns(1)
	if err := migrate(ctx, db, "sqlite3", "migrations/sqlite"); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Save(ctx context.Context, snap *Snapshot) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO snapshots (run_id, network, tick, digest, payload, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		snap.RunID.String(), snap.Network, int64(snap.Tick), snap.Digest, snap.Payload, snap.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Latest(ctx context.Context, network string) (*Snapshot, error) {
	snap := &Snapshot{Network: network}
	var (
		runID   string
		tick    int64
		created int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT run_id, tick, digest, payload, created_at
		 FROM snapshots WHERE network = ?
		 ORDER BY id DESC LIMIT 1`, network,
	).Scan(&runID, &tick, &snap.Digest, &snap.Payload, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	if snap.RunID, err = uuid.Parse(runID); err != nil {
		return nil, fmt.Errorf("load snapshot: run id: %w", err)
	}
	snap.Tick = sim.Tick(tick)
	snap.CreatedAt = time.Unix(0, created).UTC()
	if err := snap.Verify(); err != nil {
		return nil, err
	}
	return snap, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
