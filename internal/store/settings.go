package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"jobby/recommend-service/internal/model"
)

// Settings manages the process-wide configuration singleton.
type Settings struct {
	pool *pgxpool.Pool
}

// NewSettings returns a configured Settings store.
func NewSettings(pool *pgxpool.Pool) *Settings {
	return &Settings{pool: pool}
}

// SettingsUpdate carries a partial update: nil fields are left unchanged.
type SettingsUpdate struct {
	MinRecommendedScore *int    `json:"minRecommendedScore"`
	RecommendedNumPages *int    `json:"recommendedNumPages"`
	CronSchedule        *string `json:"cronSchedule"`
	CronEnabled         *bool   `json:"cronEnabled"`
	CoverLetterModel    *string `json:"coverLetterModel"`
}

const settingsColumns = `id, min_recommended_score, recommended_num_pages,
	cron_schedule, cron_enabled, cover_letter_model`

func scanSettings(row pgx.Row) (*model.Settings, error) {
	var s model.Settings
	err := row.Scan(
		&s.ID, &s.MinRecommendedScore, &s.RecommendedNumPages,
		&s.CronSchedule, &s.CronEnabled, &s.CoverLetterModel,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Get returns the settings row, creating it with defaults on first access.
func (s *Settings) Get(ctx context.Context) (*model.Settings, error) {
	row, err := scanSettings(s.pool.QueryRow(ctx,
		`SELECT ` + settingsColumns + ` FROM settings ORDER BY id LIMIT 1`))
	if errors.Is(err, pgx.ErrNoRows) {
		row, err = scanSettings(s.pool.QueryRow(ctx,
			`INSERT INTO settings DEFAULT VALUES RETURNING `+settingsColumns))
	}
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}
	return row, nil
}

// Update applies the non-nil fields of upd and returns the updated row.
func (s *Settings) Update(ctx context.Context, upd SettingsUpdate) (*model.Settings, error) {
	current, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}

	updated, err := scanSettings(s.pool.QueryRow(ctx,
		`UPDATE settings
		 SET min_recommended_score  = COALESCE($1, min_recommended_score),
		     recommended_num_pages  = COALESCE($2, recommended_num_pages),
		     cron_schedule          = COALESCE($3, cron_schedule),
		     cron_enabled           = COALESCE($4, cron_enabled),
		     cover_letter_model     = COALESCE($5, cover_letter_model)
		 WHERE id = $6
		 RETURNING `+settingsColumns,
		upd.MinRecommendedScore, upd.RecommendedNumPages, upd.CronSchedule,
		upd.CronEnabled, upd.CoverLetterModel, current.ID,
	))
	if err != nil {
		return nil, fmt.Errorf("update settings: %w", err)
	}
	return updated, nil
}
