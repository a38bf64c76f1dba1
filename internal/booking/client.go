package booking

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/edvin/subsync/internal/config"
	"github.com/edvin/subsync/internal/fetch"
)

// Client fetches plan metadata and customer subscriptions from the booking
// platform's admin API. Both endpoints are index paginated; records come
// back raw and nested, flattening happens downstream.
type Client struct {
	fetcher   *fetch.Client
	baseURL   string
	plansPath string
	subsPath  string
	logger    zerolog.Logger
}

func NewClient(logger zerolog.Logger, cfg config.BookingSource, apiKey, tenant string, opts fetch.Options) *Client {
	headers := map[string]string{
		"X-Api-Key": apiKey,
		"X-Tenant":  tenant,
	}
	for k, v := range opts.Headers {
		headers[k] = v
	}
	opts.Headers = headers

	return &Client{
		fetcher:   fetch.NewClient(logger, opts),
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		plansPath: cfg.PlansPath,
		subsPath:  cfg.CustomerSubscriptionsPath,
		logger:    logger.With().Str("component", "booking").Logger(),
	}
}

// Plans retrieves every subscription plan record.
func (c *Client) Plans(ctx context.Context) ([]map[string]any, *fetch.Report, error) {
	records, report, err := c.fetchOrdered(ctx, c.plansPath)
	if err != nil {
		return nil, report, fmt.Errorf("fetch plans: %w", err)
	}
	c.validateSample(records, "plans", []string{"id", "name", "price"})
	return records, report, nil
}

// CustomerSubscriptions retrieves every customer-subscription record.
func (c *Client) CustomerSubscriptions(ctx context.Context) ([]map[string]any, *fetch.Report, error) {
	records, report, err := c.fetchOrdered(ctx, c.subsPath)
	if err != nil {
		return nil, report, fmt.Errorf("fetch customer subscriptions: %w", err)
	}
	c.validateSample(records, "customer subscriptions", []string{"id", "subscription_id", "user", "status"})
	return records, report, nil
}

// fetchOrdered pins a stable sort order so page boundaries do not shift
// between requests while records are being inserted upstream.
func (c *Client) fetchOrdered(ctx context.Context, path string) ([]map[string]any, *fetch.Report, error) {
	params := url.Values{}
	params.Set("order_by", "id")
	params.Set("ascending", "0")
	return c.fetcher.FetchAll(ctx, c.baseURL+path, params)
}

// validateSample spot-checks the first few records for the fields the join
// depends on. A drifted upstream schema logs a warning instead of failing
// the run; the join degrades field by field.
func (c *Client) validateSample(records []map[string]any, endpoint string, fields []string) {
	sample := len(records)
	if sample > 3 {
		sample = 3
	}
	missing := map[string]bool{}
	for i := 0; i < sample; i++ {
		for _, f := range fields {
			if _, ok := records[i][f]; !ok {
				missing[f] = true
			}
		}
	}
	if len(missing) > 0 {
		names := make([]string, 0, len(missing))
		for f := range missing {
			names = append(names, f)
		}
		c.logger.Warn().Str("endpoint", endpoint).Strs("fields", names).
			Msg("expected fields missing from sample records")
	}
}
