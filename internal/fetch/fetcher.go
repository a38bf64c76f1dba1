package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
)

// ErrFetchExhausted is returned when the retry budget is spent without a
// single successful page. Mid-fetch exhaustion does not produce this error;
// it truncates the result and is reported via Report.Truncated.
var ErrFetchExhausted = errors.New("fetch: retry budget exhausted")

// Report carries post-fetch diagnostics. A shortfall against the
// server-declared total and duplicate identities are data-quality signals,
// never fatal; the downstream join must tolerate partial data.
type Report struct {
	Pages        int
	Expected     int
	Fetched      int
	Truncated    bool
	DuplicateIDs int
}

// Shortfall returns how many declared records were not fetched, or 0.
func (r *Report) Shortfall() int {
	if r.Expected > r.Fetched {
		return r.Expected - r.Fetched
	}
	return 0
}

// Options configures a Client for one source.
type Options struct {
	// Headers are attached to every request (auth, tenant).
	Headers map[string]string
	// PageSize is the per-page record limit.
	PageSize int
	// MaxRetries is the per-page request budget.
	MaxRetries int
	// BaseDelay seeds the backoff policy.
	BaseDelay time.Duration
	// Timeout bounds each HTTP request.
	Timeout time.Duration
}

// Client fetches complete record sets from paginated endpoints with bounded
// retry. It is not safe for concurrent use; the engine runs sequentially.
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	pageSize   int
	maxRetries int
	baseDelay  time.Duration
	sleep      func(time.Duration)
	logger     zerolog.Logger
}

func NewClient(logger zerolog.Logger, opts Options) *Client {
	if opts.PageSize <= 0 {
		opts.PageSize = 100
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = 2 * time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: opts.Timeout},
		headers:    opts.Headers,
		pageSize:   opts.PageSize,
		maxRetries: opts.MaxRetries,
		baseDelay:  opts.BaseDelay,
		sleep:      time.Sleep,
		logger:     logger.With().Str("component", "fetch").Logger(),
	}
}

// pageEnvelope is the paged response shape shared by the sources:
// data plus pagination metadata. Unknown fields are ignored.
type pageEnvelope struct {
	Data        []map[string]any `json:"data"`
	Total       int              `json:"total"`
	LastPage    int              `json:"last_page"`
	PerPage     int              `json:"per_page"`
	NextPageURL *string          `json:"next_page_url"`
	HasMore     bool             `json:"has_more"`
}

// FetchAll retrieves every page of endpoint using explicit page indexes.
// The server's declared last_page is re-read from each response, so a total
// revised mid-fetch moves the goal post. Stops cleanly on an empty page or
// when the server signals no next page at the declared total.
//
// A failure of the first page after retries returns ErrFetchExhausted (or the
// terminal client error). Later page failures truncate the result instead:
// the records fetched so far are returned with Report.Truncated set.
func (c *Client) FetchAll(ctx context.Context, endpoint string, params url.Values) ([]map[string]any, *Report, error) {
	report := &Report{}

	env, err := c.getPage(ctx, endpoint, c.pageParams(params, 1))
	if err != nil {
		return nil, report, fmt.Errorf("fetch first page of %s: %w", endpoint, err)
	}
	report.Pages = 1
	report.Expected = env.Total

	all := make([]map[string]any, 0, env.Total)
	all = append(all, env.Data...)

	totalPages := env.LastPage
	if totalPages < 1 {
		totalPages = 1
	}
	// An empty page ends the walk wherever it appears, even when the
	// server still declares more pages.
	if len(env.Data) == 0 {
		totalPages = 1
	}

	for page := 2; page <= totalPages; page++ {
		env, err = c.getPage(ctx, endpoint, c.pageParams(params, page))
		if err != nil {
			c.logger.Warn().Err(err).Int("page", page).Str("endpoint", endpoint).
				Msg("page fetch failed, truncating source")
			report.Truncated = true
			break
		}
		report.Pages++

		if len(env.Data) == 0 {
			break
		}
		all = append(all, env.Data...)

		// The server's count is authoritative; adopt revisions mid-fetch.
		if env.LastPage > 0 && env.LastPage != totalPages {
			c.logger.Debug().Int("was", totalPages).Int("now", env.LastPage).
				Msg("total pages revised by server")
			totalPages = env.LastPage
		}
		if env.NextPageURL == nil && page >= totalPages {
			break
		}
	}

	report.Fetched = len(all)
	report.DuplicateIDs = countDuplicateIDs(all)

	if short := report.Shortfall(); short > 0 {
		c.logger.Warn().Int("expected", report.Expected).Int("fetched", report.Fetched).
			Str("endpoint", endpoint).Msg("fetched fewer records than server declared")
	}
	if report.DuplicateIDs > 0 {
		c.logger.Warn().Int("duplicates", report.DuplicateIDs).Str("endpoint", endpoint).
			Msg("duplicate record ids in fetched set")
	}

	return all, report, nil
}

func (c *Client) pageParams(params url.Values, page int) url.Values {
	p := url.Values{}
	for k, vs := range params {
		p[k] = vs
	}
	p.Set("limit", fmt.Sprint(c.pageSize))
	p.Set("page", fmt.Sprint(page))
	return p
}

// getPage performs one page request with the per-page retry budget.
func (c *Client) getPage(ctx context.Context, endpoint string, params url.Values) (*pageEnvelope, error) {
	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		env, class, err := c.tryPage(ctx, endpoint, params)
		if err == nil {
			return env, nil
		}
		if !class.Retryable() {
			return nil, err
		}
		lastErr = err
		if attempt < c.maxRetries-1 {
			delay := Backoff(c.baseDelay, attempt, class)
			c.logger.Debug().Err(err).Str("class", class.String()).
				Dur("delay", delay).Int("attempt", attempt+1).Msg("retrying page")
			c.sleep(delay)
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrFetchExhausted, lastErr)
}

func (c *Client) tryPage(ctx context.Context, endpoint string, params url.Values) (*pageEnvelope, FailureClass, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, ClassClientError, fmt.Errorf("page request: %w", err)
	}
	req.URL.RawQuery = params.Encode()
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, ClassTimeout, fmt.Errorf("page request timed out: %w", err)
		}
		return nil, ClassNetwork, fmt.Errorf("page request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		var env pageEnvelope
		if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
			return nil, ClassNetwork, fmt.Errorf("decode page: %w", err)
		}
		return &env, 0, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, ClassRateLimited, fmt.Errorf("rate limited: status %d", resp.StatusCode)
	case resp.StatusCode >= 500:
		return nil, ClassServerError, fmt.Errorf("server error: status %d", resp.StatusCode)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, ClassClientError, fmt.Errorf("client error: status %d: %s", resp.StatusCode, string(body))
	}
}

// countDuplicateIDs counts records whose "id" repeats an earlier record's.
func countDuplicateIDs(records []map[string]any) int {
	seen := make(map[string]bool, len(records))
	dups := 0
	for _, rec := range records {
		id, ok := rec["id"]
		if !ok {
			continue
		}
		key := fmt.Sprint(id)
		if seen[key] {
			dups++
		}
		seen[key] = true
	}
	return dups
}
