package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"jobby/recommend-service/internal/model"
)

// Matches stores the (run, job, score) rows of the ranked result set.
type Matches struct {
	pool *pgxpool.Pool
}

// NewMatches returns a configured Matches store.
func NewMatches(pool *pgxpool.Pool) *Matches {
	return &Matches{pool: pool}
}

// MatchedJob is a match joined with its job, as served to the client.
type MatchedJob struct {
	Job   model.Job
	Score float64
}

// UpsertBatch writes a batch of matches for one run inside a single
// transaction, so a crash mid-batch cannot leave some rows updated and
// others not. Re-evaluation within the same run overwrites the score.
func (s *Matches) UpsertBatch(ctx context.Context, runID int64, matches []model.RecommendedMatch) error {
	if len(matches) == 0 {
		return nil
	}

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		for _, m := range matches {
			if _, err := tx.Exec(ctx,
				`INSERT INTO recommended_matches (run_id, job_id, score)
				 VALUES ($1, $2, $3)
				 ON CONFLICT (run_id, job_id) DO UPDATE SET score = EXCLUDED.score`,
				runID, m.JobID, m.Score,
			); err != nil {
				return fmt.Errorf("upsert match (run %d, job %d): %w", runID, m.JobID, err)
			}
		}
		return nil
	})
}

// Reconcile makes the stored match set for a run exactly equal to the given
// set: scores are overwritten and rows for jobs no longer in the set are
// removed. Runs in one transaction.
func (s *Matches) Reconcile(ctx context.Context, runID int64, matches []model.RecommendedMatch) error {
	keep := make([]int64, 0, len(matches))
	for _, m := range matches {
		keep = append(keep, m.JobID)
	}

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`DELETE FROM recommended_matches
			 WHERE run_id = $1 AND NOT (job_id = ANY($2))`,
			runID, keep,
		); err != nil {
			return fmt.Errorf("prune matches for run %d: %w", runID, err)
		}

		for _, m := range matches {
			if _, err := tx.Exec(ctx,
				`INSERT INTO recommended_matches (run_id, job_id, score)
				 VALUES ($1, $2, $3)
				 ON CONFLICT (run_id, job_id) DO UPDATE SET score = EXCLUDED.score`,
				runID, m.JobID, m.Score,
			); err != nil {
				return fmt.Errorf("upsert match (run %d, job %d): %w", runID, m.JobID, err)
			}
		}
		return nil
	})
}

// ListWithJobs returns a run's matches joined to their jobs, highest score
// first. Jobs the user has ignored are excluded.
func (s *Matches) ListWithJobs(ctx context.Context, runID int64) ([]MatchedJob, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT j.id, j.source, j.source_key, j.title, j.company, j.location,
		        j.description, j.is_remote, j.salary_min, j.salary_max, j.url,
		        j.posted_at, j.discovered_at, j.ignored, m.score
		 FROM recommended_matches m
		 JOIN jobs j ON j.id = m.job_id
		 WHERE m.run_id = $1 AND j.ignored = false
		 ORDER BY m.score DESC, j.id`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	defer rows.Close()

	matched := make([]MatchedJob, 0)
	for rows.Next() {
		var mj MatchedJob
		if err := rows.Scan(
			&mj.Job.ID, &mj.Job.Source, &mj.Job.SourceKey, &mj.Job.Title,
			&mj.Job.Company, &mj.Job.Location, &mj.Job.Description,
			&mj.Job.IsRemote, &mj.Job.SalaryMin, &mj.Job.SalaryMax, &mj.Job.URL,
			&mj.Job.PostedAt, &mj.Job.DiscoveredAt, &mj.Job.Ignored, &mj.Score,
		); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		matched = append(matched, mj)
	}
	return matched, rows.Err()
}
