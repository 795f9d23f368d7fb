package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/tmaritz/claimkeeper/internal/snapshot"
)

// Store implements snapshot.Persister on one logical row of the snapshots
// table. Writes are serialized by the row-level upsert, so concurrent
// saves queue instead of interleaving.
type Store struct {
	db  *DB
	log *zap.Logger
}

var _ snapshot.Persister = (*Store)(nil)

// NewStore constructs a Postgres-backed snapshot persister.
func NewStore(db *DB, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{db: db, log: log}
}

// Save serializes the state and upserts it as the single snapshot row.
func (s *Store) Save(ctx context.Context, st *snapshot.State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("snapshot: marshal: %w", err)
	}
	const q = `
INSERT INTO snapshots (id, state, updated_at)
VALUES (1, $1, now())
ON CONFLICT (id) DO UPDATE SET state = EXCLUDED.state, updated_at = now()`
	if _, err := s.db.Pool.Exec(ctx, q, data); err != nil {
		return fmt.Errorf("snapshot: upsert: %w", err)
	}
	return nil
}

// Load reads the snapshot row back. A missing row or undecodable state
// yields (nil, nil) so the caller starts empty.
func (s *Store) Load(ctx context.Context) (*snapshot.State, error) {
	const q = `SELECT state FROM snapshots WHERE id = 1`
	var data []byte
	if err := s.db.Pool.QueryRow(ctx, q).Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("snapshot: select: %w", err)
	}
	var st snapshot.State
	if err := json.Unmarshal(data, &st); err != nil {
		s.log.Warn("stored snapshot could not be decoded, starting empty", zap.Error(err))
		return nil, nil
	}
	return &st, nil
}
