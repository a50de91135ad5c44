package search_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"jobby/recommend-service/internal/model"
	"jobby/recommend-service/internal/search"
)

func testQuery() model.RecommendedQuery {
	return model.RecommendedQuery{
		ID: 1, Query: "golang developer", Page: 1, NumPages: 2,
		Country: "us", DatePosted: "week", WorkFromHome: true,
	}
}

func newTestClient(serverURL string) *search.Client {
	c := search.NewClient("test-key", time.Second)
	c.SetBaseURL(serverURL)
	return c
}

func TestSearch_ParsesResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if got := q.Get("query"); got != "golang developer" {
			t.Errorf("query param = %q", got)
		}
		if got := q.Get("num_pages"); got != "2" {
			t.Errorf("num_pages param = %q", got)
		}
		if got := q.Get("date_posted"); got != "week" {
			t.Errorf("date_posted param = %q", got)
		}
		if got := q.Get("work_from_home"); got != "true" {
			t.Errorf("work_from_home param = %q", got)
		}
		if got := r.Header.Get("x-rapidapi-key"); got != "test-key" {
			t.Errorf("api key header = %q", got)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"status": "OK",
			"data": [{
				"job_id": "abc123",
				"job_title": "Go Developer",
				"employer_name": "Acme",
				"job_city": "Berlin",
				"job_country": "DE",
				"job_description": "Build services in Go",
				"job_is_remote": true,
				"job_min_salary": 70000,
				"job_apply_link": "https://example.com/apply",
				"job_posted_at_datetime_utc": "2026-08-20T10:00:00Z"
			}]
		}`))
	}))
	defer srv.Close()

	got, err := newTestClient(srv.URL).Search(context.Background(), testQuery())
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d results, want 1", len(got))
	}

	r := got[0]
	if r.SourceJobID != "abc123" || r.Title != "Go Developer" || r.Company != "Acme" {
		t.Errorf("unexpected result: %+v", r)
	}
	if r.Location != "Berlin, DE" {
		t.Errorf("location = %q, want %q", r.Location, "Berlin, DE")
	}
	if !r.IsRemote {
		t.Error("isRemote not carried over")
	}
	if r.SalaryMin == nil || *r.SalaryMin != 70000 {
		t.Errorf("salaryMin = %v, want 70000", r.SalaryMin)
	}
	if r.SalaryMax != nil {
		t.Errorf("salaryMax = %v, want nil", r.SalaryMax)
	}
	if r.PostedAt == nil || !r.PostedAt.Equal(time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("postedAt = %v", r.PostedAt)
	}
}

func TestSearch_NonOKStatusIsProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte("rate limit exceeded"))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Search(context.Background(), testQuery())
	var perr *search.ProviderError
	if !errors.As(err, &perr) {
		t.Fatalf("got %v (%T), want *ProviderError", err, err)
	}
	if perr.StatusCode != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", perr.StatusCode)
	}
	if perr.Message == "" {
		t.Error("upstream message not captured")
	}
}

func TestSearch_MissingAPIKeySkipsGracefully(t *testing.T) {
	c := search.NewClient("", time.Second)
	got, err := c.Search(context.Background(), testQuery())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Errorf("got %v, want nil", got)
	}
}

func TestSearch_ConnectionFailureIsProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	_, err := newTestClient(srv.URL).Search(context.Background(), testQuery())
	var perr *search.ProviderError
	if !errors.As(err, &perr) {
		t.Fatalf("got %v (%T), want *ProviderError", err, err)
	}
}

func TestJoinLocation(t *testing.T) {
	cases := []struct{ city, country, want string }{
		{"Berlin", "DE", "Berlin, DE"},
		{"", "DE", "DE"},
		{"Berlin", "", "Berlin"},
		{"", "", ""},
	}
	for _, c := range cases {
		if got := search.JoinLocation(c.city, c.country); got != c.want {
			t.Errorf("joinLocation(%q, %q) = %q, want %q", c.city, c.country, got, c.want)
		}
	}
}
