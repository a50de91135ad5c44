package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"jobby/recommend-service/internal/model"
)

// Patterns manages scoring pattern rules.
type Patterns struct {
	pool *pgxpool.Pool
}

// NewPatterns returns a configured Patterns store.
func NewPatterns(pool *pgxpool.Pool) *Patterns {
	return &Patterns{pool: pool}
}

const patternColumns = `id, pattern, weight, effect, count_once, disqualify, enabled, created_at`

func scanPattern(row pgx.Row) (*model.ScoringPattern, error) {
	var p model.ScoringPattern
	err := row.Scan(
		&p.ID, &p.Pattern, &p.Weight, &p.Effect, &p.CountOnce,
		&p.Disqualify, &p.Enabled, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Patterns) list(ctx context.Context, where string) ([]model.ScoringPattern, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+patternColumns+` FROM scoring_patterns `+where+` ORDER BY created_at DESC, id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list patterns: %w", err)
	}
	defer rows.Close()

	patterns := make([]model.ScoringPattern, 0)
	for rows.Next() {
		p, err := scanPattern(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pattern: %w", err)
		}
		patterns = append(patterns, *p)
	}
	return patterns, rows.Err()
}

// List returns all patterns, newest first.
func (s *Patterns) List(ctx context.Context) ([]model.ScoringPattern, error) {
	return s.list(ctx, "")
}

// ListEnabled returns enabled patterns in a fixed deterministic order, so
// scoring across a run evaluates the same rule set in the same order.
func (s *Patterns) ListEnabled(ctx context.Context) ([]model.ScoringPattern, error) {
	return s.list(ctx, "WHERE enabled = true")
}

// Get returns one pattern by id.
func (s *Patterns) Get(ctx context.Context, id int64) (*model.ScoringPattern, error) {
	p, err := scanPattern(s.pool.QueryRow(ctx,
		`SELECT `+patternColumns+` FROM scoring_patterns WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get pattern: %w", err)
	}
	return p, nil
}

// Create inserts a new pattern and returns the full row.
func (s *Patterns) Create(ctx context.Context, p model.ScoringPattern) (*model.ScoringPattern, error) {
	created, err := scanPattern(s.pool.QueryRow(ctx,
		`INSERT INTO scoring_patterns (pattern, weight, effect, count_once, disqualify)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+patternColumns,
		p.Pattern, p.Weight, p.Effect, p.CountOnce, p.Disqualify,
	))
	if err != nil {
		return nil, fmt.Errorf("create pattern: %w", err)
	}
	return created, nil
}

// Update overwrites the editable fields of a pattern.
func (s *Patterns) Update(ctx context.Context, id int64, p model.ScoringPattern) (*model.ScoringPattern, error) {
	updated, err := scanPattern(s.pool.QueryRow(ctx,
		`UPDATE scoring_patterns
		 SET pattern = $1, weight = $2, effect = $3, count_once = $4, disqualify = $5
		 WHERE id = $6
		 RETURNING `+patternColumns,
		p.Pattern, p.Weight, p.Effect, p.CountOnce, p.Disqualify, id,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update pattern: %w", err)
	}
	return updated, nil
}

// Toggle flips the enabled flag and returns the updated row.
func (s *Patterns) Toggle(ctx context.Context, id int64) (*model.ScoringPattern, error) {
	toggled, err := scanPattern(s.pool.QueryRow(ctx,
		`UPDATE scoring_patterns SET enabled = NOT enabled
		 WHERE id = $1
		 RETURNING `+patternColumns, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("toggle pattern: %w", err)
	}
	return toggled, nil
}

// Delete removes a pattern.
func (s *Patterns) Delete(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM scoring_patterns WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete pattern: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
