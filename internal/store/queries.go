package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"jobby/recommend-service/internal/model"
)

// Queries manages saved search configurations.
type Queries struct {
	pool *pgxpool.Pool
}

// NewQueries returns a configured Queries store.
func NewQueries(pool *pgxpool.Pool) *Queries {
	return &Queries{pool: pool}
}

const queryColumns = `id, query, page, num_pages, country, language, date_posted,
	work_from_home, employment_types, job_requirements, radius,
	exclude_job_publishers, enabled, created_at`

func scanQuery(row pgx.Row) (*model.RecommendedQuery, error) {
	var q model.RecommendedQuery
	err := row.Scan(
		&q.ID, &q.Query, &q.Page, &q.NumPages, &q.Country, &q.Language,
		&q.DatePosted, &q.WorkFromHome, &q.EmploymentTypes, &q.JobRequirements,
		&q.Radius, &q.ExcludeJobPublishers, &q.Enabled, &q.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func (s *Queries) list(ctx context.Context, where string, args ...any) ([]model.RecommendedQuery, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+queryColumns+` FROM recommended_queries `+where+` ORDER BY created_at DESC, id DESC`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("list queries: %w", err)
	}
	defer rows.Close()

	queries := make([]model.RecommendedQuery, 0)
	for rows.Next() {
		q, err := scanQuery(rows)
		if err != nil {
			return nil, fmt.Errorf("scan query: %w", err)
		}
		queries = append(queries, *q)
	}
	return queries, rows.Err()
}

// List returns all saved queries, newest first.
func (s *Queries) List(ctx context.Context) ([]model.RecommendedQuery, error) {
	return s.list(ctx, "")
}

// ListEnabled returns the enabled queries in the fixed order the pipeline
// iterates them: most recently created first.
func (s *Queries) ListEnabled(ctx context.Context) ([]model.RecommendedQuery, error) {
	return s.list(ctx, "WHERE enabled = true")
}

// Get returns one query by id.
func (s *Queries) Get(ctx context.Context, id int64) (*model.RecommendedQuery, error) {
	q, err := scanQuery(s.pool.QueryRow(ctx,
		`SELECT `+queryColumns+` FROM recommended_queries WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get query: %w", err)
	}
	return q, nil
}

// Create inserts a new saved query and returns the full row.
func (s *Queries) Create(ctx context.Context, q model.RecommendedQuery) (*model.RecommendedQuery, error) {
	created, err := scanQuery(s.pool.QueryRow(ctx,
		`INSERT INTO recommended_queries
		   (query, page, num_pages, country, language, date_posted, work_from_home,
		    employment_types, job_requirements, radius, exclude_job_publishers)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING `+queryColumns,
		q.Query, q.Page, q.NumPages, q.Country, q.Language, q.DatePosted,
		q.WorkFromHome, q.EmploymentTypes, q.JobRequirements, q.Radius,
		q.ExcludeJobPublishers,
	))
	if err != nil {
		return nil, fmt.Errorf("create query: %w", err)
	}
	return created, nil
}

// Update overwrites the editable fields of a saved query.
func (s *Queries) Update(ctx context.Context, id int64, q model.RecommendedQuery) (*model.RecommendedQuery, error) {
	updated, err := scanQuery(s.pool.QueryRow(ctx,
		`UPDATE recommended_queries
		 SET query = $1, page = $2, num_pages = $3, country = $4, language = $5,
		     date_posted = $6, work_from_home = $7, employment_types = $8,
		     job_requirements = $9, radius = $10, exclude_job_publishers = $11
		 WHERE id = $12
		 RETURNING `+queryColumns,
		q.Query, q.Page, q.NumPages, q.Country, q.Language, q.DatePosted,
		q.WorkFromHome, q.EmploymentTypes, q.JobRequirements, q.Radius,
		q.ExcludeJobPublishers, id,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update query: %w", err)
	}
	return updated, nil
}

// Toggle flips the enabled flag and returns the updated row.
func (s *Queries) Toggle(ctx context.Context, id int64) (*model.RecommendedQuery, error) {
	toggled, err := scanQuery(s.pool.QueryRow(ctx,
		`UPDATE recommended_queries SET enabled = NOT enabled
		 WHERE id = $1
		 RETURNING `+queryColumns, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("toggle query: %w", err)
	}
	return toggled, nil
}

// Delete removes a saved query.
func (s *Queries) Delete(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM recommended_queries WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete query: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
