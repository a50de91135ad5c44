package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"jobby/recommend-service/internal/model"
	"jobby/recommend-service/internal/search"
)

// Jobs owns job identity and deduplication, independently of any run.
type Jobs struct {
	pool *pgxpool.Pool
}

// NewJobs returns a configured Jobs store.
func NewJobs(pool *pgxpool.Pool) *Jobs {
	return &Jobs{pool: pool}
}

// Fingerprint derives a stable identity for a job whose source provides no
// stable id: a hex SHA-256 over the normalised title|company|location.
// Normalisation lowercases and collapses whitespace so cosmetic differences
// in provider output do not create duplicate rows.
func Fingerprint(title, company, location string) string {
	norm := func(s string) string {
		return strings.Join(strings.Fields(strings.ToLower(s)), " ")
	}
	sum := sha256.Sum256([]byte(norm(title) + "|" + norm(company) + "|" + norm(location)))
	return hex.EncodeToString(sum[:])
}

// Upsert inserts a raw job or updates the existing row with the same
// identity. Returns the row id and whether the job was new. Idempotent:
// repeated calls with the same identity keep a single row, preserve
// discovered_at, and refresh the provider-supplied mutable fields.
//
// The (xmax = 0) projection distinguishes a fresh insert from a conflict
// update within the single statement, so concurrent upserts of different
// jobs need no cross-job locking.
func (s *Jobs) Upsert(ctx context.Context, raw search.RawJob) (jobID int64, isNew bool, err error) {
	key := raw.SourceJobID
	if key == "" {
		key = Fingerprint(raw.Title, raw.Company, raw.Location)
	}

	err = s.pool.QueryRow(ctx,
		`INSERT INTO jobs (source, source_key, title, company, location, description,
		                   is_remote, salary_min, salary_max, url, posted_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (source, source_key) DO UPDATE
		 SET title       = EXCLUDED.title,
		     company     = EXCLUDED.company,
		     location    = EXCLUDED.location,
		     description = EXCLUDED.description,
		     is_remote   = EXCLUDED.is_remote,
		     salary_min  = EXCLUDED.salary_min,
		     salary_max  = EXCLUDED.salary_max,
		     url         = EXCLUDED.url,
		     posted_at   = EXCLUDED.posted_at
		 RETURNING id, (xmax = 0)`,
		search.Source, key, raw.Title, raw.Company, raw.Location, raw.Description,
		raw.IsRemote, raw.SalaryMin, raw.SalaryMax, raw.URL, raw.PostedAt,
	).Scan(&jobID, &isNew)
	if err != nil {
		return 0, false, fmt.Errorf("upsert job: %w", err)
	}
	return jobID, isNew, nil
}

// ListByIDs returns the jobs with the given ids, in no particular order.
func (s *Jobs) ListByIDs(ctx context.Context, ids []int64) ([]model.Job, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, source, source_key, title, company, location, description,
		        is_remote, salary_min, salary_max, url, posted_at, discovered_at, ignored
		 FROM jobs
		 WHERE id = ANY($1)`,
		ids,
	)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []model.Job
	for rows.Next() {
		var j model.Job
		if err := rows.Scan(
			&j.ID, &j.Source, &j.SourceKey, &j.Title, &j.Company, &j.Location,
			&j.Description, &j.IsRemote, &j.SalaryMin, &j.SalaryMax, &j.URL,
			&j.PostedAt, &j.DiscoveredAt, &j.Ignored,
		); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// SetIgnored flips the ignored flag on a job. Ignored jobs are filtered out
// of the recommended listing but keep their identity for deduplication.
func (s *Jobs) SetIgnored(ctx context.Context, id int64, ignored bool) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET ignored = $1 WHERE id = $2`,
		ignored, id,
	)
	if err != nil {
		return fmt.Errorf("set ignored: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
