package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"jobby/recommend-service/internal/model"
	"jobby/recommend-service/internal/run"
)

// RunCounters are the aggregate totals persisted on a run row.
type RunCounters struct {
	TotalFetched int
	NewJobs      int
	Duplicates   int
	QueryErrors  int
}

// Runs is the run registry: the persisted record of run metadata that
// external pollers read while a pull executes. The row is updated live,
// never buffered.
type Runs struct {
	pool *pgxpool.Pool
}

// NewRuns returns a configured Runs store.
func NewRuns(pool *pgxpool.Pool) *Runs {
	return &Runs{pool: pool}
}

// Create inserts a new run in running status with its parameter snapshot.
func (s *Runs) Create(ctx context.Context, params model.RunParams) (*model.RecommendedRun, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal run params: %w", err)
	}

	var r model.RecommendedRun
	err = s.pool.QueryRow(ctx,
		`INSERT INTO recommended_runs (status, params)
		 VALUES ($1, $2)
		 RETURNING id, status, run_at, total_fetched, new_jobs, duplicates,
		           query_errors, error_message, cancel_requested, params`,
		string(run.StatusRunning), raw,
	).Scan(
		&r.ID, &r.Status, &r.RunAt, &r.TotalFetched, &r.NewJobs, &r.Duplicates,
		&r.QueryErrors, &r.ErrorMessage, &r.CancelRequested, &r.Params,
	)
	if err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	return &r, nil
}

// ActiveWithin reports whether a running run younger than the window exists.
// Runs older than the window are treated as abandoned and do not block a
// new pull.
func (s *Runs) ActiveWithin(ctx context.Context, window time.Duration) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM recommended_runs
		   WHERE status = $1 AND run_at >= $2
		 )`,
		string(run.StatusRunning), time.Now().Add(-window),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("active run check: %w", err)
	}
	return exists, nil
}

// Latest returns the most recent run, or (nil, nil) if no run has ever
// executed.
func (s *Runs) Latest(ctx context.Context) (*model.RecommendedRun, error) {
	var r model.RecommendedRun
	err := s.pool.QueryRow(ctx,
		`SELECT id, status, run_at, total_fetched, new_jobs, duplicates,
		        query_errors, error_message, cancel_requested, params
		 FROM recommended_runs
		 ORDER BY run_at DESC, id DESC
		 LIMIT 1`,
	).Scan(
		&r.ID, &r.Status, &r.RunAt, &r.TotalFetched, &r.NewJobs, &r.Duplicates,
		&r.QueryErrors, &r.ErrorMessage, &r.CancelRequested, &r.Params,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest run: %w", err)
	}
	return &r, nil
}

// RequestCancel sets the persisted cancellation marker on a running run.
// The marker survives process restarts; the coordinator reads it back
// between queries. Returns ErrNotFound if the run is missing or already
// finalized.
func (s *Runs) RequestCancel(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE recommended_runs
		 SET cancel_requested = true
		 WHERE id = $1 AND status = $2`,
		id, string(run.StatusRunning),
	)
	if err != nil {
		return fmt.Errorf("request cancel: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CancelRequested reads back the cancellation marker for a run.
func (s *Runs) CancelRequested(ctx context.Context, id int64) (bool, error) {
	var cancelled bool
	err := s.pool.QueryRow(ctx,
		`SELECT cancel_requested FROM recommended_runs WHERE id = $1`,
		id,
	).Scan(&cancelled)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("cancel requested: %w", err)
	}
	return cancelled, nil
}

// Finalize moves a run to a terminal status and persists the counters
// unconditionally. errMsg is stored as NULL when empty.
func (s *Runs) Finalize(ctx context.Context, id int64, status run.Status, c RunCounters, errMsg string) error {
	if !run.IsTransitionAllowed(run.StatusRunning, status) {
		return fmt.Errorf("finalize run %d: %s is not a terminal status", id, status)
	}

	var msg *string
	if errMsg != "" {
		msg = &errMsg
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE recommended_runs
		 SET status = $1, total_fetched = $2, new_jobs = $3, duplicates = $4,
		     query_errors = $5, error_message = $6
		 WHERE id = $7`,
		string(status), c.TotalFetched, c.NewJobs, c.Duplicates,
		c.QueryErrors, msg, id,
	)
	if err != nil {
		return fmt.Errorf("finalize run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
