package storage

import (
	"context"
	"fmt"
)

const migrationSQL = `
CREATE TABLE IF NOT EXISTS price_points (
    id BIGSERIAL PRIMARY KEY,
    chain TEXT NOT NULL,
    price NUMERIC NOT NULL,
    ts TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS price_points_chain_ts_idx ON price_points (chain, ts);

CREATE TABLE IF NOT EXISTS alert_registrations (
    id BIGSERIAL PRIMARY KEY,
    chain TEXT NOT NULL,
    threshold_dollar NUMERIC NOT NULL,
    email TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS alert_registrations_chain_idx ON alert_registrations (chain);
`

// Migrate applies the idempotent schema migration.
func (s *Store) Migrate(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, migrationSQL); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}
