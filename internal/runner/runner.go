// Package runner implements the recommendation pipeline: it orchestrates
// provider queries, job deduplication, scoring, and the incrementally
// updated ranked match set for one recommended pull.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"jobby/recommend-service/internal/events"
	"jobby/recommend-service/internal/model"
	"jobby/recommend-service/internal/run"
	"jobby/recommend-service/internal/scoring"
	"jobby/recommend-service/internal/search"
	"jobby/recommend-service/internal/store"
)

// StalenessWindow is how long a running run blocks new pulls. A run older
// than this is treated as abandoned (crashed process) and no longer counts
// as active.
const StalenessWindow = 15 * time.Minute

// ─── Sentinel errors ─────────────────────────────────────────────────────────

// ErrNoQueries is returned when no enabled queries exist at pull start.
var ErrNoQueries = fmt.Errorf("no recommended queries configured — add queries in Settings first")

// ErrRunActive is returned when a pull is already running within the
// staleness window.
var ErrRunActive = fmt.Errorf("a recommended pull is already running")

// ─── Collaborator contracts ──────────────────────────────────────────────────

// Searcher fetches raw job records for one saved query.
type Searcher interface {
	Search(ctx context.Context, q model.RecommendedQuery) ([]search.RawJob, error)
}

// JobStore dedupes and persists raw jobs.
type JobStore interface {
	Upsert(ctx context.Context, raw search.RawJob) (jobID int64, isNew bool, err error)
	ListByIDs(ctx context.Context, ids []int64) ([]model.Job, error)
}

// RunStore is the persisted run registry.
type RunStore interface {
	Create(ctx context.Context, params model.RunParams) (*model.RecommendedRun, error)
	ActiveWithin(ctx context.Context, window time.Duration) (bool, error)
	RequestCancel(ctx context.Context, id int64) error
	CancelRequested(ctx context.Context, id int64) (bool, error)
	Finalize(ctx context.Context, id int64, status run.Status, c store.RunCounters, errMsg string) error
}

// MatchStore persists the ranked result set for a run.
type MatchStore interface {
	UpsertBatch(ctx context.Context, runID int64, matches []model.RecommendedMatch) error
	Reconcile(ctx context.Context, runID int64, matches []model.RecommendedMatch) error
}

// QueryStore supplies the enabled queries at run start.
type QueryStore interface {
	ListEnabled(ctx context.Context) ([]model.RecommendedQuery, error)
}

// PatternStore supplies the enabled scoring rules at run start.
type PatternStore interface {
	ListEnabled(ctx context.Context) ([]model.ScoringPattern, error)
}

// SettingsStore supplies the configuration singleton at run start.
type SettingsStore interface {
	Get(ctx context.Context) (*model.Settings, error)
}

// Locker is the hard single-flight gate between concurrent pulls.
type Locker interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// ProgressPublisher receives live pipeline updates. Publishing is never
// fatal to a run.
type ProgressPublisher interface {
	PublishProgress(ctx context.Context, ev events.ProgressEvent) error
}

// ─── Coordinator ─────────────────────────────────────────────────────────────

// Deps wires the Coordinator's collaborators. Lock and Events are optional.
type Deps struct {
	Jobs     JobStore
	Runs     RunStore
	Matches  MatchStore
	Queries  QueryStore
	Patterns PatternStore
	Settings SettingsStore
	Searcher Searcher
	Lock     Locker
	Events   ProgressPublisher
}

// Coordinator owns the lifecycle of recommended pulls. At most one pull
// executes at a time: the DB staleness check is advisory, the in-process
// flag plus the optional distributed lock are the real gate.
type Coordinator struct {
	deps   Deps
	active atomic.Bool
}

// New returns a Coordinator.
func New(deps Deps) *Coordinator {
	return &Coordinator{deps: deps}
}

// StartPull validates configuration, creates the run row, and spawns the
// pipeline as an independent background task. The caller gets the run id
// immediately and polls the run registry for progress; failures after this
// point are only observable there.
func (c *Coordinator) StartPull(ctx context.Context) (int64, error) {
	queries, err := c.deps.Queries.ListEnabled(ctx)
	if err != nil {
		return 0, fmt.Errorf("load queries: %w", err)
	}
	if len(queries) == 0 {
		return 0, ErrNoQueries
	}

	active, err := c.deps.Runs.ActiveWithin(ctx, StalenessWindow)
	if err != nil {
		return 0, fmt.Errorf("active run check: %w", err)
	}
	if active {
		return 0, ErrRunActive
	}

	if !c.active.CompareAndSwap(false, true) {
		return 0, ErrRunActive
	}
	release := func() { c.active.Store(false) }

	if c.deps.Lock != nil {
		ok, err := c.deps.Lock.Acquire(ctx)
		if err != nil {
			release()
			return 0, fmt.Errorf("acquire run lock: %w", err)
		}
		if !ok {
			release()
			return 0, ErrRunActive
		}
		releaseLock := release
		release = func() {
			if err := c.deps.Lock.Release(context.WithoutCancel(ctx)); err != nil {
				slog.Warn("release run lock failed", "err", err)
			}
			releaseLock()
		}
	}

	patterns, err := c.deps.Patterns.ListEnabled(ctx)
	if err != nil {
		release()
		return 0, fmt.Errorf("load patterns: %w", err)
	}

	settings, err := c.deps.Settings.Get(ctx)
	if err != nil {
		release()
		return 0, fmt.Errorf("load settings: %w", err)
	}
	minScore := settings.MinScore()

	params := model.RunParams{
		Version:      1,
		QueryIDs:     make([]int64, 0, len(queries)),
		QueryTexts:   make([]string, 0, len(queries)),
		PatternCount: len(patterns),
		MinScore:     minScore,
	}
	for _, q := range queries {
		params.QueryIDs = append(params.QueryIDs, q.ID)
		params.QueryTexts = append(params.QueryTexts, q.Query)
	}

	r, err := c.deps.Runs.Create(ctx, params)
	if err != nil {
		release()
		return 0, fmt.Errorf("create run: %w", err)
	}

	slog.Info("recommended pull started",
		"runId", r.ID, "queries", len(queries), "patterns", len(patterns), "minScore", minScore)

	// Background task, decoupled from the caller's request lifetime.
	go func() {
		defer release()
		c.execute(context.WithoutCancel(ctx), r.ID, queries, patterns, minScore)
	}()

	return r.ID, nil
}

// Cancel sets the persisted cancellation marker on a running run. The
// pipeline checks it between queries — never mid-query — and finalizes the
// run as cancelled once the in-flight query completes.
func (c *Coordinator) Cancel(ctx context.Context, runID int64) error {
	return c.deps.Runs.RequestCancel(ctx, runID)
}

// ─── Pipeline execution ──────────────────────────────────────────────────────

// execute runs the pipeline with its own error boundary: whatever happens,
// the run row ends in a terminal status so pollers are never stuck watching
// a dead run past the staleness window.
func (c *Coordinator) execute(ctx context.Context, runID int64, queries []model.RecommendedQuery, patterns []model.ScoringPattern, minScore float64) {
	var counters store.RunCounters
	finalized := false

	fail := func(cause error) {
		finalized = true
		if err := c.deps.Runs.Finalize(ctx, runID, run.StatusFailed, counters, cause.Error()); err != nil {
			slog.Error("finalize failed run", "runId", runID, "err", err)
		}
		c.publish(ctx, runID, run.StatusFailed, counters, 0)
	}

	defer func() {
		if p := recover(); p != nil {
			slog.Error("recommended pull panicked", "runId", runID, "panic", p)
			if !finalized {
				fail(fmt.Errorf("internal error: %v", p))
			}
		}
	}()

	rules, invalid := scoring.Compile(patterns)
	for _, p := range invalid {
		// A malformed rule degrades scoring silently otherwise; make the
		// misconfiguration visible to the operator.
		slog.Warn("skipping malformed scoring pattern", "patternId", p.ID, "pattern", p.Pattern)
	}

	var (
		jobIDs    []int64
		seen      = make(map[int64]bool)
		lastErr   string
		cancelled bool
	)

	for _, q := range queries {
		stop, err := c.deps.Runs.CancelRequested(ctx, runID)
		if err != nil {
			fail(fmt.Errorf("read cancellation marker: %w", err))
			return
		}
		if stop || ctx.Err() != nil {
			cancelled = true
			slog.Info("recommended pull cancelled — skipping remaining queries", "runId", runID)
			break
		}

		slog.Info("running recommended query",
			"runId", runID, "queryId", q.ID, "query", q.Query,
			"country", q.Country, "pages", q.NumPages, "remote", q.WorkFromHome)

		raws, err := c.deps.Searcher.Search(ctx, q)
		if err != nil {
			// Per-query provider failures are tolerated: one bad query must
			// not abort the whole pull.
			counters.QueryErrors++
			lastErr = err.Error()
			slog.Warn("recommended query failed", "runId", runID, "queryId", q.ID, "err", err)
			continue
		}

		for _, raw := range raws {
			counters.TotalFetched++
			jobID, isNew, err := c.deps.Jobs.Upsert(ctx, raw)
			if err != nil {
				fail(fmt.Errorf("upsert job: %w", err))
				return
			}
			if isNew {
				counters.NewJobs++
			} else {
				counters.Duplicates++
			}
			if !seen[jobID] {
				seen[jobID] = true
				jobIDs = append(jobIDs, jobID)
			}
		}

		// Incremental re-score so pollers see a partial ranked set before
		// the run finishes.
		matches, err := c.scoreJobs(ctx, jobIDs, rules, minScore)
		if err != nil {
			fail(err)
			return
		}
		if err := c.deps.Matches.UpsertBatch(ctx, runID, matches); err != nil {
			fail(err)
			return
		}
		c.publish(ctx, runID, run.StatusRunning, counters, len(matches))
	}

	// Final authoritative pass: scoring is deterministic, but this pass is
	// the source of truth — the stored set is reconciled to exactly the
	// filtered result.
	matches, err := c.scoreJobs(ctx, jobIDs, rules, minScore)
	if err != nil {
		fail(err)
		return
	}
	if err := c.deps.Matches.Reconcile(ctx, runID, matches); err != nil {
		fail(err)
		return
	}

	// A cancel requested while the last query was in flight has no query
	// boundary left to observe it; re-read the marker before choosing the
	// terminal status.
	if !cancelled {
		stop, err := c.deps.Runs.CancelRequested(ctx, runID)
		if err != nil {
			slog.Warn("read cancellation marker", "runId", runID, "err", err)
		} else if stop {
			cancelled = true
		}
	}

	status := run.StatusCompleted
	errMsg := ""
	allFailed := counters.TotalFetched == 0 &&
		counters.QueryErrors > 0 &&
		counters.QueryErrors == len(queries)
	switch {
	case cancelled:
		status = run.StatusCancelled
	case allFailed:
		status = run.StatusFailed
		errMsg = lastErr
	}

	finalized = true
	if err := c.deps.Runs.Finalize(ctx, runID, status, counters, errMsg); err != nil {
		slog.Error("finalize run", "runId", runID, "err", err)
		return
	}
	c.publish(ctx, runID, status, counters, len(matches))

	slog.Info("recommended pull finished",
		"runId", runID, "status", status,
		"totalFetched", counters.TotalFetched, "newJobs", counters.NewJobs,
		"duplicates", counters.Duplicates, "queryErrors", counters.QueryErrors,
		"matches", len(matches))
}

// scoreJobs evaluates the distinct jobs touched so far and returns the
// retained matches, ranked by score descending. Jobs below the threshold or
// disqualified are never retained.
func (c *Coordinator) scoreJobs(ctx context.Context, jobIDs []int64, rules []scoring.Rule, minScore float64) ([]model.RecommendedMatch, error) {
	if len(jobIDs) == 0 {
		return nil, nil
	}

	jobs, err := c.deps.Jobs.ListByIDs(ctx, jobIDs)
	if err != nil {
		return nil, fmt.Errorf("load jobs for scoring: %w", err)
	}

	matches := make([]model.RecommendedMatch, 0, len(jobs))
	for _, j := range jobs {
		score, disqualified := scoring.Score(j, rules)
		if disqualified || score < minScore {
			continue
		}
		matches = append(matches, model.RecommendedMatch{JobID: j.ID, Score: score})
	}

	sort.SliceStable(matches, func(i, k int) bool {
		return matches[i].Score > matches[k].Score
	})
	return matches, nil
}

func (c *Coordinator) publish(ctx context.Context, runID int64, status run.Status, counters store.RunCounters, matchCount int) {
	if c.deps.Events == nil {
		return
	}
	ev := events.ProgressEvent{
		RunID:        runID,
		Status:       string(status),
		TotalFetched: counters.TotalFetched,
		NewJobs:      counters.NewJobs,
		Duplicates:   counters.Duplicates,
		QueryErrors:  counters.QueryErrors,
		Matches:      matchCount,
	}
	if err := c.deps.Events.PublishProgress(ctx, ev); err != nil {
		slog.Warn("publish progress failed", "runId", runID, "err", err)
	}
}
