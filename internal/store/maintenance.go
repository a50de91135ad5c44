package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Maintenance bundles the destructive admin operations. Each runs in one
// transaction so a partially-applied wipe is impossible.
type Maintenance struct {
	pool *pgxpool.Pool
}

// NewMaintenance returns a configured Maintenance store.
func NewMaintenance(pool *pgxpool.Pool) *Maintenance {
	return &Maintenance{pool: pool}
}

// ClearRecommended deletes all recommended matches and runs. Jobs, queries
// and patterns are untouched.
func (s *Maintenance) ClearRecommended(ctx context.Context) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM recommended_matches`); err != nil {
			return fmt.Errorf("clear matches: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM recommended_runs`); err != nil {
			return fmt.Errorf("clear runs: %w", err)
		}
		return nil
	})
}

// ClearJobs deletes all jobs and everything referencing them.
func (s *Maintenance) ClearJobs(ctx context.Context) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM recommended_matches`); err != nil {
			return fmt.Errorf("clear matches: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM recommended_runs`); err != nil {
			return fmt.Errorf("clear runs: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM jobs`); err != nil {
			return fmt.Errorf("clear jobs: %w", err)
		}
		return nil
	})
}
