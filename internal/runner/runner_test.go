package runner_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"jobby/recommend-service/internal/model"
	"jobby/recommend-service/internal/run"
	"jobby/recommend-service/internal/runner"
	"jobby/recommend-service/internal/search"
	"jobby/recommend-service/internal/store"
)

// ─── In-memory fakes ──────────────────────────────────────────────────────────

type runRow struct {
	status          run.Status
	runAt           time.Time
	counters        store.RunCounters
	errMsg          string
	cancelRequested bool
}

// env implements every Coordinator collaborator in memory and records
// enough to assert on pipeline behavior.
type env struct {
	mu sync.Mutex

	queries  []model.RecommendedQuery
	patterns []model.ScoringPattern
	settings model.Settings

	// searcher
	results   map[int64][]search.RawJob
	failures  map[int64]error
	searched  []int64
	onSearch  func(queryID int64)

	// jobs
	nextJobID int64
	jobsByKey map[string]int64
	jobsByID  map[int64]model.Job

	// runs
	nextRunID int64
	runs      map[int64]*runRow
	finalized chan int64

	// matches
	matches map[int64]map[int64]float64
}

func newEnv() *env {
	return &env{
		results:   make(map[int64][]search.RawJob),
		failures:  make(map[int64]error),
		jobsByKey: make(map[string]int64),
		jobsByID:  make(map[int64]model.Job),
		runs:      make(map[int64]*runRow),
		finalized: make(chan int64, 1),
		matches:   make(map[int64]map[int64]float64),
	}
}

// Searcher

func (e *env) Search(ctx context.Context, q model.RecommendedQuery) ([]search.RawJob, error) {
	e.mu.Lock()
	e.searched = append(e.searched, q.ID)
	hook := e.onSearch
	e.mu.Unlock()
	if hook != nil {
		hook(q.ID)
	}
	if err := e.failures[q.ID]; err != nil {
		return nil, err
	}
	return e.results[q.ID], nil
}

// JobStore

func (e *env) Upsert(ctx context.Context, raw search.RawJob) (int64, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	key := raw.SourceJobID
	if key == "" {
		key = store.Fingerprint(raw.Title, raw.Company, raw.Location)
	}
	if id, ok := e.jobsByKey[key]; ok {
		j := e.jobsByID[id]
		j.Title, j.Company, j.Description = raw.Title, raw.Company, raw.Description
		e.jobsByID[id] = j
		return id, false, nil
	}
	e.nextJobID++
	id := e.nextJobID
	e.jobsByKey[key] = id
	e.jobsByID[id] = model.Job{
		ID: id, Source: search.Source, SourceKey: key,
		Title: raw.Title, Company: raw.Company, Location: raw.Location,
		Description: raw.Description, DiscoveredAt: time.Now(),
	}
	return id, true, nil
}

func (e *env) ListByIDs(ctx context.Context, ids []int64) ([]model.Job, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	jobs := make([]model.Job, 0, len(ids))
	for _, id := range ids {
		if j, ok := e.jobsByID[id]; ok {
			jobs = append(jobs, j)
		}
	}
	return jobs, nil
}

// RunStore

func (e *env) Create(ctx context.Context, params model.RunParams) (*model.RecommendedRun, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextRunID++
	e.runs[e.nextRunID] = &runRow{status: run.StatusRunning, runAt: time.Now()}
	return &model.RecommendedRun{ID: e.nextRunID, Status: string(run.StatusRunning)}, nil
}

func (e *env) ActiveWithin(ctx context.Context, window time.Duration) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	cutoff := time.Now().Add(-window)
	for _, r := range e.runs {
		if r.status == run.StatusRunning && r.runAt.After(cutoff) {
			return true, nil
		}
	}
	return false, nil
}

func (e *env) RequestCancel(ctx context.Context, id int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.runs[id]
	if !ok || r.status != run.StatusRunning {
		return store.ErrNotFound
	}
	r.cancelRequested = true
	return nil
}

func (e *env) CancelRequested(ctx context.Context, id int64) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.runs[id]
	if !ok {
		return false, store.ErrNotFound
	}
	return r.cancelRequested, nil
}

func (e *env) Finalize(ctx context.Context, id int64, status run.Status, c store.RunCounters, errMsg string) error {
	e.mu.Lock()
	r, ok := e.runs[id]
	if ok {
		r.status = status
		r.counters = c
		r.errMsg = errMsg
	}
	e.mu.Unlock()
	if !ok {
		return store.ErrNotFound
	}
	e.finalized <- id
	return nil
}

// MatchStore

func (e *env) UpsertBatch(ctx context.Context, runID int64, matches []model.RecommendedMatch) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.matches[runID] == nil {
		e.matches[runID] = make(map[int64]float64)
	}
	for _, m := range matches {
		e.matches[runID][m.JobID] = m.Score
	}
	return nil
}

func (e *env) Reconcile(ctx context.Context, runID int64, matches []model.RecommendedMatch) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	set := make(map[int64]float64, len(matches))
	for _, m := range matches {
		set[m.JobID] = m.Score
	}
	e.matches[runID] = set
	return nil
}

// QueryStore / PatternStore / SettingsStore

func (e *env) ListEnabled(ctx context.Context) ([]model.RecommendedQuery, error) {
	return e.queries, nil
}

func (e *env) ListEnabledPatterns(ctx context.Context) ([]model.ScoringPattern, error) {
	return e.patterns, nil
}

func (e *env) Get(ctx context.Context) (*model.Settings, error) {
	s := e.settings
	return &s, nil
}

// patternLister adapts env so the two ListEnabled methods can coexist.
type patternLister struct{ e *env }

func (p patternLister) ListEnabled(ctx context.Context) ([]model.ScoringPattern, error) {
	return p.e.ListEnabledPatterns(ctx)
}

// ─── Helpers ──────────────────────────────────────────────────────────────────

func newCoordinator(e *env) *runner.Coordinator {
	return runner.New(runner.Deps{
		Jobs:     e,
		Runs:     e,
		Matches:  e,
		Queries:  e,
		Patterns: patternLister{e},
		Settings: e,
		Searcher: e,
	})
}

func waitForFinalize(t *testing.T, e *env) int64 {
	t.Helper()
	select {
	case id := <-e.finalized:
		return id
	case <-time.After(5 * time.Second):
		t.Fatal("run was never finalized")
		return 0
	}
}

func rawJob(id, title string) search.RawJob {
	return search.RawJob{
		SourceJobID: id,
		Title:       title,
		Company:     "Acme",
		Location:    "Berlin",
		Description: "description for " + title,
	}
}

func additivePattern(expr string, weight float64) model.ScoringPattern {
	return model.ScoringPattern{
		Pattern: expr, Weight: weight, Effect: "+", CountOnce: true, Enabled: true,
	}
}

func query(id int64, text string) model.RecommendedQuery {
	return model.RecommendedQuery{ID: id, Query: text, Page: 1, NumPages: 1, Country: "us", Enabled: true}
}

func minScore(n int) model.Settings {
	return model.Settings{MinRecommendedScore: &n}
}

// ─── StartPull preconditions ─────────────────────────────────────────────────

func TestStartPull_NoQueries(t *testing.T) {
	e := newEnv()
	c := newCoordinator(e)

	_, err := c.StartPull(context.Background())
	if err != runner.ErrNoQueries {
		t.Fatalf("StartPull with zero queries: got %v, want ErrNoQueries", err)
	}
}

func TestStartPull_RejectsActiveYoungRun(t *testing.T) {
	e := newEnv()
	e.queries = []model.RecommendedQuery{query(1, "golang")}
	e.runs[99] = &runRow{status: run.StatusRunning, runAt: time.Now().Add(-5 * time.Minute)}
	e.nextRunID = 99
	c := newCoordinator(e)

	_, err := c.StartPull(context.Background())
	if err != runner.ErrRunActive {
		t.Fatalf("got %v, want ErrRunActive", err)
	}
}

func TestStartPull_IgnoresStaleRunningRun(t *testing.T) {
	e := newEnv()
	e.queries = []model.RecommendedQuery{query(1, "golang")}
	e.results[1] = []search.RawJob{rawJob("j1", "Go Developer")}
	// A run abandoned 20 minutes ago must not block a new pull.
	e.runs[99] = &runRow{status: run.StatusRunning, runAt: time.Now().Add(-20 * time.Minute)}
	e.nextRunID = 99
	c := newCoordinator(e)

	runID, err := c.StartPull(context.Background())
	if err != nil {
		t.Fatalf("StartPull with only a stale run: unexpected error %v", err)
	}
	if runID != 100 {
		t.Errorf("runID = %d, want 100", runID)
	}
	waitForFinalize(t, e)
}

// ─── End-to-end pipeline ─────────────────────────────────────────────────────

func TestPull_EndToEnd(t *testing.T) {
	e := newEnv()
	e.queries = []model.RecommendedQuery{query(1, "golang"), query(2, "backend")}
	e.patterns = []model.ScoringPattern{additivePattern(`\bgo\b`, 20)}
	e.settings = minScore(10)

	// Query A: 3 new jobs. Query B: 2 jobs, one a duplicate of A's first.
	e.results[1] = []search.RawJob{
		rawJob("a1", "Go Developer"),
		rawJob("a2", "Go Platform Engineer"),
		rawJob("a3", "Java Developer"),
	}
	e.results[2] = []search.RawJob{
		rawJob("a1", "Go Developer"), // duplicate
		rawJob("b1", "Go Backend Engineer"),
	}

	c := newCoordinator(e)
	runID, err := c.StartPull(context.Background())
	if err != nil {
		t.Fatalf("StartPull: %v", err)
	}
	waitForFinalize(t, e)

	r := e.runs[runID]
	if r.status != run.StatusCompleted {
		t.Errorf("status = %s, want completed", r.status)
	}
	if r.counters.TotalFetched != 5 {
		t.Errorf("totalFetched = %d, want 5", r.counters.TotalFetched)
	}
	if r.counters.NewJobs != 4 {
		t.Errorf("newJobs = %d, want 4", r.counters.NewJobs)
	}
	if r.counters.Duplicates != 1 {
		t.Errorf("duplicates = %d, want 1", r.counters.Duplicates)
	}

	// Exactly the Go-titled jobs are retained: a1, a2, b1 — not the Java one.
	got := e.matches[runID]
	if len(got) != 3 {
		t.Fatalf("match count = %d, want 3 (got %v)", len(got), got)
	}
	for jobID, score := range got {
		if score != 20 {
			t.Errorf("job %d score = %v, want 20", jobID, score)
		}
		if title := e.jobsByID[jobID].Title; title == "Java Developer" {
			t.Error("non-matching job retained in match set")
		}
	}
}

func TestPull_PartialFailureStillCompletes(t *testing.T) {
	e := newEnv()
	e.queries = []model.RecommendedQuery{query(1, "golang"), query(2, "backend")}
	e.patterns = []model.ScoringPattern{additivePattern("go", 20)}
	e.settings = minScore(10)
	e.failures[1] = &search.ProviderError{StatusCode: 429, Message: "rate limited"}
	e.results[2] = []search.RawJob{rawJob("b1", "Go Backend Engineer")}

	c := newCoordinator(e)
	runID, err := c.StartPull(context.Background())
	if err != nil {
		t.Fatalf("StartPull: %v", err)
	}
	waitForFinalize(t, e)

	r := e.runs[runID]
	if r.status != run.StatusCompleted {
		t.Errorf("partial success must complete, got %s", r.status)
	}
	if r.counters.QueryErrors != 1 {
		t.Errorf("queryErrors = %d, want 1", r.counters.QueryErrors)
	}
	if r.counters.TotalFetched != 1 {
		t.Errorf("totalFetched = %d, want 1", r.counters.TotalFetched)
	}
}

func TestPull_TotalProviderFailure(t *testing.T) {
	e := newEnv()
	e.queries = []model.RecommendedQuery{query(1, "golang"), query(2, "backend")}
	e.settings = minScore(10)
	e.failures[1] = &search.ProviderError{StatusCode: 500, Message: "upstream down"}
	e.failures[2] = &search.ProviderError{StatusCode: 503, Message: "still down"}

	c := newCoordinator(e)
	runID, err := c.StartPull(context.Background())
	if err != nil {
		t.Fatalf("StartPull: %v", err)
	}
	waitForFinalize(t, e)

	r := e.runs[runID]
	if r.status != run.StatusFailed {
		t.Errorf("status = %s, want failed", r.status)
	}
	if r.errMsg == "" {
		t.Error("failed run must carry the last error message")
	}
	if r.counters.QueryErrors != 2 {
		t.Errorf("queryErrors = %d, want 2", r.counters.QueryErrors)
	}
}

// ─── Cancellation ────────────────────────────────────────────────────────────

func TestPull_CancelBetweenQueries(t *testing.T) {
	e := newEnv()
	e.queries = []model.RecommendedQuery{query(1, "golang"), query(2, "backend")}
	e.patterns = []model.ScoringPattern{additivePattern("go", 20)}
	e.settings = minScore(10)
	e.results[1] = []search.RawJob{rawJob("a1", "Go Developer")}
	e.results[2] = []search.RawJob{rawJob("b1", "Go Backend Engineer")}

	c := newCoordinator(e)

	// Request cancellation while query A is in flight; the marker is only
	// honored at the next query boundary.
	e.onSearch = func(queryID int64) {
		if queryID == 1 {
			if err := c.Cancel(context.Background(), 1); err != nil {
				t.Errorf("Cancel: %v", err)
			}
		}
	}

	runID, err := c.StartPull(context.Background())
	if err != nil {
		t.Fatalf("StartPull: %v", err)
	}
	waitForFinalize(t, e)

	r := e.runs[runID]
	if r.status != run.StatusCancelled {
		t.Errorf("status = %s, want cancelled", r.status)
	}

	e.mu.Lock()
	searched := append([]int64(nil), e.searched...)
	e.mu.Unlock()
	if len(searched) != 1 || searched[0] != 1 {
		t.Errorf("searched queries = %v, want only query 1", searched)
	}

	// Query A's job is persisted and scored despite the cancellation.
	if len(e.matches[runID]) != 1 {
		t.Errorf("match count = %d, want 1", len(e.matches[runID]))
	}
	if r.counters.TotalFetched != 1 || r.counters.NewJobs != 1 {
		t.Errorf("counters = %+v, want totalFetched=1 newJobs=1", r.counters)
	}
}

func TestPull_CancelDuringFinalQuery(t *testing.T) {
	e := newEnv()
	e.queries = []model.RecommendedQuery{query(1, "golang")}
	e.patterns = []model.ScoringPattern{additivePattern("go", 20)}
	e.settings = minScore(10)
	e.results[1] = []search.RawJob{rawJob("a1", "Go Developer")}

	c := newCoordinator(e)

	// The marker is set while the only query is in flight: no query boundary
	// remains to observe it, so finalization itself must re-read it.
	e.onSearch = func(queryID int64) {
		if err := c.Cancel(context.Background(), 1); err != nil {
			t.Errorf("Cancel: %v", err)
		}
	}

	runID, err := c.StartPull(context.Background())
	if err != nil {
		t.Fatalf("StartPull: %v", err)
	}
	waitForFinalize(t, e)

	r := e.runs[runID]
	if r.status != run.StatusCancelled {
		t.Errorf("status = %s, want cancelled", r.status)
	}
	// The in-flight query's results are still persisted and scored.
	if len(e.matches[runID]) != 1 {
		t.Errorf("match count = %d, want 1", len(e.matches[runID]))
	}
}

// ─── Incremental visibility ──────────────────────────────────────────────────

func TestPull_PartialMatchesVisibleBetweenQueries(t *testing.T) {
	e := newEnv()
	e.queries = []model.RecommendedQuery{query(1, "golang"), query(2, "backend")}
	e.patterns = []model.ScoringPattern{additivePattern("go", 20)}
	e.settings = minScore(10)
	e.results[1] = []search.RawJob{rawJob("a1", "Go Developer")}
	e.results[2] = []search.RawJob{rawJob("b1", "Go Backend Engineer")}

	// Snapshot the stored match set the moment query B starts: query A's
	// scored job must already be there for pollers, before the run finishes.
	var partial []float64
	e.onSearch = func(queryID int64) {
		if queryID != 2 {
			return
		}
		e.mu.Lock()
		for _, score := range e.matches[1] {
			partial = append(partial, score)
		}
		e.mu.Unlock()
	}

	c := newCoordinator(e)
	runID, err := c.StartPull(context.Background())
	if err != nil {
		t.Fatalf("StartPull: %v", err)
	}
	waitForFinalize(t, e)

	if len(partial) != 1 || partial[0] != 20 {
		t.Errorf("matches visible before query 2 = %v, want query 1's job at score 20", partial)
	}
	if len(e.matches[runID]) != 2 {
		t.Errorf("final match count = %d, want 2", len(e.matches[runID]))
	}
}

func TestCancel_UnknownRun(t *testing.T) {
	e := newEnv()
	c := newCoordinator(e)
	if err := c.Cancel(context.Background(), 42); err == nil {
		t.Error("cancelling a nonexistent run should error")
	}
}

// ─── Storage failure boundary ────────────────────────────────────────────────

type failingJobStore struct{ *env }

func (f failingJobStore) Upsert(ctx context.Context, raw search.RawJob) (int64, bool, error) {
	return 0, false, fmt.Errorf("storage unavailable")
}

func TestPull_StorageErrorFinalizesAsFailed(t *testing.T) {
	e := newEnv()
	e.queries = []model.RecommendedQuery{query(1, "golang")}
	e.settings = minScore(10)
	e.results[1] = []search.RawJob{rawJob("a1", "Go Developer")}

	c := runner.New(runner.Deps{
		Jobs:     failingJobStore{e},
		Runs:     e,
		Matches:  e,
		Queries:  e,
		Patterns: patternLister{e},
		Settings: e,
		Searcher: e,
	})

	runID, err := c.StartPull(context.Background())
	if err != nil {
		t.Fatalf("StartPull: %v", err)
	}
	waitForFinalize(t, e)

	r := e.runs[runID]
	if r.status != run.StatusFailed {
		t.Errorf("status = %s, want failed", r.status)
	}
	if r.errMsg == "" {
		t.Error("storage failure must be captured on the run row")
	}
}

// ─── Malformed patterns ──────────────────────────────────────────────────────

func TestPull_MalformedPatternDoesNotAbortRun(t *testing.T) {
	e := newEnv()
	e.queries = []model.RecommendedQuery{query(1, "golang")}
	e.patterns = []model.ScoringPattern{
		additivePattern("(unclosed", 50),
		additivePattern("go", 20),
	}
	e.settings = minScore(10)
	e.results[1] = []search.RawJob{rawJob("a1", "Go Developer")}

	c := newCoordinator(e)
	runID, err := c.StartPull(context.Background())
	if err != nil {
		t.Fatalf("StartPull: %v", err)
	}
	waitForFinalize(t, e)

	if e.runs[runID].status != run.StatusCompleted {
		t.Errorf("status = %s, want completed", e.runs[runID].status)
	}
	if got := e.matches[runID][1]; got != 20 {
		t.Errorf("score = %v, want 20 from the valid rule", got)
	}
}
