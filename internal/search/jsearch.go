// Package search implements job offer fetching from the external search
// provider (JSearch on RapidAPI).
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"jobby/recommend-service/internal/model"
)

const (
	jsearchBaseURL = "https://jsearch.p.rapidapi.com/search"
	jsearchHost    = "jsearch.p.rapidapi.com"

	// Source tags jobs fetched through this client.
	Source = "jsearch"

	defaultTimeout = 15 * time.Second
)

// ProviderError carries the upstream status and message of a failed
// provider call. Callers decide whether the failure aborts a whole run or
// is tolerated per-query; this client never retries.
type ProviderError struct {
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("jsearch returned %d: %s", e.StatusCode, e.Message)
}

// RawJob is a normalised job offer as returned by the provider, before it
// is deduplicated and persisted.
type RawJob struct {
	SourceJobID string
	Title       string
	Company     string
	Location    string
	Description string
	IsRemote    bool
	SalaryMin   *float64
	SalaryMax   *float64
	URL         string
	PostedAt    *time.Time
}

// Client fetches job offers from the JSearch public API.
// If the API key is empty, Search returns (nil, nil) gracefully — the
// pipeline simply has nothing to ingest for that query and logs a warning.
type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewClient constructs a Client with a shared HTTP client. A non-positive
// timeout falls back to the default so a hung provider call can never block
// the pipeline indefinitely.
func NewClient(apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: jsearchBaseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// jsearchResponse mirrors the top-level JSearch JSON response.
type jsearchResponse struct {
	Status string          `json:"status"`
	Data   []jsearchResult `json:"data"`
}

// jsearchResult mirrors a single JSearch job listing.
type jsearchResult struct {
	JobID        string   `json:"job_id"`
	Title        string   `json:"job_title"`
	EmployerName string   `json:"employer_name"`
	City         string   `json:"job_city"`
	Country      string   `json:"job_country"`
	Description  string   `json:"job_description"`
	IsRemote     bool     `json:"job_is_remote"`
	SalaryMin    *float64 `json:"job_min_salary"`
	SalaryMax    *float64 `json:"job_max_salary"`
	ApplyLink    string   `json:"job_apply_link"`
	PostedAtUTC  string   `json:"job_posted_at_datetime_utc"`
}

// Search runs one provider call for the given saved query. Pagination depth
// comes from the query row (NumPages) — the provider paginates internally.
func (c *Client) Search(ctx context.Context, q model.RecommendedQuery) ([]RawJob, error) {
	if c.apiKey == "" {
		slog.Warn("JSEARCH_API_KEY not set — skipping provider call", "query", q.Query)
		return nil, nil
	}

	params := url.Values{}
	params.Set("query", q.Query)
	params.Set("page", strconv.Itoa(max(q.Page, 1)))
	params.Set("num_pages", strconv.Itoa(max(q.NumPages, 1)))
	if q.Country != "" {
		params.Set("country", q.Country)
	}
	if q.Language != "" {
		params.Set("language", q.Language)
	}
	if q.DatePosted != "" && q.DatePosted != "all" {
		params.Set("date_posted", q.DatePosted)
	}
	if q.WorkFromHome {
		params.Set("work_from_home", "true")
	}
	if q.EmploymentTypes != "" {
		params.Set("employment_types", q.EmploymentTypes)
	}
	if q.JobRequirements != "" {
		params.Set("job_requirements", q.JobRequirements)
	}
	if q.Radius != nil {
		params.Set("radius", strconv.Itoa(*q.Radius))
	}
	if q.ExcludeJobPublishers != "" {
		params.Set("exclude_job_publishers", q.ExcludeJobPublishers)
	}

	reqURL := c.baseURL + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-rapidapi-key", c.apiKey)
	req.Header.Set("x-rapidapi-host", jsearchHost)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &ProviderError{StatusCode: 0, Message: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &ProviderError{StatusCode: resp.StatusCode, Message: string(body)}
	}

	var apiResp jsearchResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("json unmarshal: %w", err)
	}

	results := make([]RawJob, 0, len(apiResp.Data))
	for _, r := range apiResp.Data {
		results = append(results, RawJob{
			SourceJobID: r.JobID,
			Title:       r.Title,
			Company:     r.EmployerName,
			Location:    joinLocation(r.City, r.Country),
			Description: r.Description,
			IsRemote:    r.IsRemote,
			SalaryMin:   r.SalaryMin,
			SalaryMax:   r.SalaryMax,
			URL:         r.ApplyLink,
			PostedAt:    parsePostedAt(r.PostedAtUTC),
		})
	}

	return results, nil
}

func joinLocation(city, country string) string {
	switch {
	case city == "":
		return country
	case country == "":
		return city
	default:
		return city + ", " + country
	}
}

func parsePostedAt(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	return &t
}
