package sheet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/edvin/subsync/internal/config"
)

const defaultGraphBaseURL = "https://graph.microsoft.com/v1.0"

// TokenProvider supplies a bearer credential for the workbook API.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// Client performs range-scoped workbook operations against a Graph-style
// drive item API. Every operation is scoped to the configured worksheet and
// column window; cells outside it are never touched.
type Client struct {
	httpClient *http.Client
	tokens     TokenProvider
	baseURL    string
	cfg        config.SheetSettings
	logger     zerolog.Logger
}

func NewClient(logger zerolog.Logger, tokens TokenProvider, cfg config.SheetSettings) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		tokens:     tokens,
		baseURL:    defaultGraphBaseURL,
		cfg:        cfg,
		logger:     logger.With().Str("component", "sheet").Logger(),
	}
}

// Clear empties the managed data region, rows 2 through the configured row
// limit across fieldCount columns. The API answers 200 or 204 on success.
func (c *Client) Clear(ctx context.Context, fieldCount int) error {
	address := ClearRange(c.cfg.StartColumn, fieldCount, c.cfg.ClearRowLimit)
	body := map[string]string{"applyTo": "Contents"}

	status, err := c.call(ctx, http.MethodPost, c.rangeURL(address)+"/clear", body)
	if err != nil {
		return fmt.Errorf("clear range %s: %w", address, err)
	}
	if status != http.StatusOK && status != http.StatusNoContent {
		return fmt.Errorf("clear range %s: status %d", address, status)
	}
	c.logger.Info().Str("range", address).Msg("cleared sheet range")
	return nil
}

// WriteRows replaces the data region with rows, starting at row 2. An empty
// table is a no-op; the preceding clear already removed old data.
func (c *Client) WriteRows(ctx context.Context, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	address := DataRange(c.cfg.StartColumn, len(rows[0]), len(rows))
	body := map[string]any{"values": SerializeRows(rows)}

	status, err := c.call(ctx, http.MethodPatch, c.rangeURL(address), body)
	if err != nil {
		return fmt.Errorf("write range %s: %w", address, err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("write range %s: status %d", address, status)
	}
	c.logger.Info().Str("range", address).Int("rows", len(rows)).Msg("wrote sheet range")
	return nil
}

// WriteStamp records the run day in the configured single stamp cell,
// date-only by convention.
func (c *Client) WriteStamp(ctx context.Context, day time.Time) error {
	body := map[string]any{"values": [][]any{{day.Format("2006-01-02")}}}

	status, err := c.call(ctx, http.MethodPatch, c.rangeURL(c.cfg.StampCell), body)
	if err != nil {
		return fmt.Errorf("write stamp cell %s: %w", c.cfg.StampCell, err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("write stamp cell %s: status %d", c.cfg.StampCell, status)
	}
	return nil
}

func (c *Client) rangeURL(address string) string {
	return fmt.Sprintf("%s/sites/%s/drives/%s/items/%s/workbook/worksheets/%s/range(address='%s')",
		c.baseURL, c.cfg.SiteID, c.cfg.DriveID, c.cfg.ItemID,
		url.PathEscape(c.cfg.Worksheet), address)
}

func (c *Client) call(ctx context.Context, method, target string, body any) (int, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire token: %w", err)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return resp.StatusCode, fmt.Errorf("status %d: %s", resp.StatusCode, detail)
	}
	return resp.StatusCode, nil
}
