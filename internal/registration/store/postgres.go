package store

import (
	"context"
	"database/sql"
	"fmt"

	txcontext "fedoffice/pkg/platform/tx"
)

// Postgres backs counters with the registration_counters table
// (key text primary key, seq bigint). The upsert makes the increment a
// single atomic statement, safe under concurrent callers racing on one key.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) execer(ctx context.Context) txcontext.Executor {
	return txcontext.ExecutorFrom(ctx, s.db)
}

func (s *Postgres) Next(ctx context.Context, key string) (int64, error) {
	query := `
		INSERT INTO registration_counters (key, seq)
		VALUES ($1, 1)
		ON CONFLICT (key) DO UPDATE SET seq = registration_counters.seq + 1
		RETURNING seq
	`
	var seq int64
	if err := s.execer(ctx).QueryRowContext(ctx, query, key).Scan(&seq); err != nil {
		return 0, fmt.Errorf("advance counter %q: %w", key, err)
	}
	return seq, nil
}
