// Package model defines shared data structures for the recommend service.
package model

import (
	"encoding/json"
	"time"
)

// Job mirrors a row of the jobs table. Identity is (Source, SourceKey):
// SourceKey is the provider's stable job id when it supplies one, otherwise
// a content fingerprint derived from title+company+location.
type Job struct {
	ID           int64
	Source       string
	SourceKey    string
	Title        string
	Company      string
	Location     string
	Description  string
	IsRemote     bool
	SalaryMin    *float64
	SalaryMax    *float64
	URL          string
	PostedAt     *time.Time
	DiscoveredAt time.Time
	Ignored      bool
}

// RecommendedQuery is a saved search configuration consumed at run start.
// Only enabled queries are fed to the pipeline; edits made mid-run are not
// picked up by that run.
type RecommendedQuery struct {
	ID                   int64     `json:"id"`
	Query                string    `json:"query"`
	Page                 int       `json:"page"`
	NumPages             int       `json:"numPages"`
	Country              string    `json:"country"`
	Language             string    `json:"language"`
	DatePosted           string    `json:"datePosted"`
	WorkFromHome         bool      `json:"workFromHome"`
	EmploymentTypes      string    `json:"employmentTypes"`
	JobRequirements      string    `json:"jobRequirements"`
	Radius               *int      `json:"radius"`
	ExcludeJobPublishers string    `json:"excludeJobPublishers"`
	Enabled              bool      `json:"enabled"`
	CreatedAt            time.Time `json:"createdAt"`
}

// ScoringPattern is one relevance rule. Pattern is a regular expression
// matched case-insensitively against a job's title + description.
type ScoringPattern struct {
	ID         int64     `json:"id"`
	Pattern    string    `json:"pattern"`
	Weight     float64   `json:"weight"`
	Effect     string    `json:"effect"` // "+" adds, "-" subtracts
	CountOnce  bool      `json:"countOnce"`
	Disqualify bool      `json:"disqualify"`
	Enabled    bool      `json:"enabled"`
	CreatedAt  time.Time `json:"createdAt"`
}

// RunParams is the typed snapshot of pipeline inputs stored on a run row
// for auditability. Version guards future schema changes.
type RunParams struct {
	Version      int      `json:"version"`
	QueryIDs     []int64  `json:"queryIds"`
	QueryTexts   []string `json:"queryTexts"`
	PatternCount int      `json:"patternCount"`
	MinScore     float64  `json:"minScore"`
}

// RecommendedRun is one execution of the pipeline. Exactly one mutable row
// per run; created at start, finalized once, never deleted by the pipeline.
type RecommendedRun struct {
	ID              int64
	Status          string
	RunAt           time.Time
	TotalFetched    int
	NewJobs         int
	Duplicates      int
	QueryErrors     int
	ErrorMessage    *string
	CancelRequested bool
	Params          json.RawMessage
}

// RecommendedMatch pairs a run with a job and its computed score.
// Unique per (RunID, JobID); re-evaluation within a run overwrites the score.
type RecommendedMatch struct {
	RunID int64
	JobID int64
	Score float64
}

// Settings is the process-wide configuration singleton, read at run start.
type Settings struct {
	ID                  int64  `json:"id"`
	MinRecommendedScore *int   `json:"minRecommendedScore"`
	RecommendedNumPages int    `json:"recommendedNumPages"`
	CronSchedule        string `json:"cronSchedule"`
	CronEnabled         bool   `json:"cronEnabled"`
	CoverLetterModel    string `json:"coverLetterModel"`
}

// DefaultMinScore applies when MinRecommendedScore is unset.
const DefaultMinScore = 50

// MinScore returns the effective minimum recommended score.
func (s Settings) MinScore() float64 {
	if s.MinRecommendedScore == nil {
		return DefaultMinScore
	}
	return float64(*s.MinRecommendedScore)
}
