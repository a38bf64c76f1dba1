package payments

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/edvin/subsync/internal/config"
	"github.com/edvin/subsync/internal/fetch"
)

// Client fetches the complete invoice set from the payments platform. The
// endpoint is cursor paginated, so fetching delegates to the shared cursor
// walker with a bearer credential attached.
type Client struct {
	fetcher *fetch.Client
	baseURL string
	path    string
	after   time.Time
	offset  time.Duration
	logger  zerolog.Logger
}

// NewClient builds a payments client. offsetHours matches the fixed shift
// applied to the other sources' timestamps so invoice creation days line up
// with subscription dates.
func NewClient(logger zerolog.Logger, cfg config.PaymentsSource, apiKey string, offsetHours int, opts fetch.Options) *Client {
	headers := map[string]string{"Authorization": "Bearer " + apiKey}
	for k, v := range opts.Headers {
		headers[k] = v
	}
	opts.Headers = headers

	var after time.Time
	if cfg.CreatedAfter.Year != 0 {
		after = time.Date(cfg.CreatedAfter.Year, time.Month(cfg.CreatedAfter.Month), cfg.CreatedAfter.Day, 0, 0, 0, 0, time.UTC)
	}

	return &Client{
		fetcher: fetch.NewClient(logger, opts),
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		path:    cfg.InvoicesPath,
		after:   after,
		offset:  time.Duration(offsetHours) * time.Hour,
		logger:  logger.With().Str("component", "payments").Logger(),
	}
}

// Invoices retrieves every invoice created at or after the configured filter
// date. The report carries pagination diagnostics; a truncated report means
// a later page failed and the set is incomplete but usable.
func (c *Client) Invoices(ctx context.Context) ([]Invoice, *fetch.Report, error) {
	params := url.Values{}
	if !c.after.IsZero() {
		params.Set("created[gte]", fmt.Sprint(c.after.Unix()))
	}

	records, report, err := c.fetcher.FetchAllCursor(ctx, c.baseURL+c.path, params)
	if err != nil {
		return nil, report, fmt.Errorf("fetch invoices: %w", err)
	}

	invoices := make([]Invoice, 0, len(records))
	for _, rec := range records {
		invoices = append(invoices, parseInvoice(rec, c.offset))
	}
	c.logger.Info().Int("invoices", len(invoices)).Bool("truncated", report.Truncated).
		Msg("invoice fetch complete")
	return invoices, report, nil
}
