package crm

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/edvin/subsync/internal/config"
	"github.com/edvin/subsync/internal/reconcile"
)

// Client talks to the CRM over a cookie-authenticated session. The CRM is an
// optional source: a failed login or fetch degrades the run to an empty
// manual-contract list instead of aborting it; that decision is the
// caller's, this client just returns errors.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	loginPath    string
	projectID    string
	targetStatus string
	email        string
	password     string
	cookie       string
	logger       zerolog.Logger
}

func NewClient(logger zerolog.Logger, cfg config.CRMSource, email, password string, timeout time.Duration) *Client {
	transport := http.DefaultTransport
	if cfg.InsecureSkipVerify {
		// The CRM instance runs with a self-signed certificate.
		transport = &http.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: true}}
	}
	return &Client{
		httpClient:   &http.Client{Timeout: timeout, Transport: transport},
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		loginPath:    cfg.LoginPath,
		projectID:    cfg.ProjectID,
		targetStatus: cfg.TargetStatus,
		email:        email,
		password:     password,
		logger:       logger.With().Str("component", "crm").Logger(),
	}
}

// Login opens a session. The CRM answers a successful login with 201 and an
// Authentication cookie which authenticates every later call.
func (c *Client) Login(ctx context.Context) error {
	payload, err := json.Marshal(map[string]string{"email": c.email, "password": c.password})
	if err != nil {
		return fmt.Errorf("marshal login payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.loginPath, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("crm login: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("crm login: status %d: %s", resp.StatusCode, body)
	}
	for _, cookie := range resp.Cookies() {
		if cookie.Name == "Authentication" {
			c.cookie = cookie.Value
			return nil
		}
	}
	return fmt.Errorf("crm login: no Authentication cookie in response")
}

// ManualContractTaxIDs walks the configured project for tasks in the target
// status column and extracts each task's client tax identifier. Tasks
// without an identifier are skipped silently; per-task detail failures are
// logged and skipped so one broken task does not lose the rest.
func (c *Client) ManualContractTaxIDs(ctx context.Context) ([]string, error) {
	statusID, err := c.findStatusID(ctx)
	if err != nil {
		return nil, err
	}

	tasks, err := c.tasksByStatus(ctx, statusID)
	if err != nil {
		return nil, err
	}
	c.logger.Info().Int("tasks", len(tasks)).Str("status", c.targetStatus).Msg("crm tasks fetched")

	var taxIDs []string
	for _, task := range tasks {
		id, _ := task["_id"].(string)
		if id == "" {
			continue
		}
		detail, err := c.taskDetail(ctx, id)
		if err != nil {
			c.logger.Warn().Err(err).Str("task", id).Msg("skipping crm task")
			continue
		}
		if taxID := extractTaxID(detail); taxID != "" {
			taxIDs = append(taxIDs, taxID)
		}
	}
	return taxIDs, nil
}

// findStatusID resolves the configured status column name to its id from
// the project document.
func (c *Client) findStatusID(ctx context.Context) (string, error) {
	var project struct {
		Statuses []struct {
			ID   string `json:"_id"`
			Name string `json:"name"`
		} `json:"statuses"`
	}
	if err := c.getJSON(ctx, c.baseURL+"/projects/"+c.projectID, &project); err != nil {
		return "", fmt.Errorf("fetch crm project: %w", err)
	}
	for _, status := range project.Statuses {
		if strings.TrimSpace(status.Name) == strings.TrimSpace(c.targetStatus) {
			return status.ID, nil
		}
	}
	return "", fmt.Errorf("crm status %q not found in project %s", c.targetStatus, c.projectID)
}

// tasksByStatus pages through the task list. Pages are zero-indexed and the
// server reports the page count as totalPage or totalPages depending on
// version; the walk stops once the index reaches it. A failing page ends the
// walk with the tasks gathered so far rather than losing the earlier pages.
func (c *Client) tasksByStatus(ctx context.Context, statusID string) ([]map[string]any, error) {
	var all []map[string]any
	for page := 0; ; page++ {
		url := fmt.Sprintf("%s/tasks/by-status/%s?page=%d", c.baseURL, statusID, page)

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader("{}"))
		if err != nil {
			return nil, fmt.Errorf("build tasks request: %w", err)
		}
		c.authorize(req)

		var envelope struct {
			Tasks      []map[string]any `json:"tasks"`
			TotalPage  *int             `json:"totalPage"`
			TotalPages *int             `json:"totalPages"`
		}
		if err := c.doJSON(req, &envelope); err != nil {
			c.logger.Warn().Err(err).Int("page", page).Msg("crm task page failed, keeping partial list")
			break
		}
		all = append(all, envelope.Tasks...)

		totalPages := 1
		if envelope.TotalPage != nil {
			totalPages = *envelope.TotalPage
		} else if envelope.TotalPages != nil {
			totalPages = *envelope.TotalPages
		}
		if page >= totalPages {
			break
		}
	}
	return all, nil
}

func (c *Client) taskDetail(ctx context.Context, taskID string) (map[string]any, error) {
	var task map[string]any
	if err := c.getJSON(ctx, c.baseURL+"/tasks/"+taskID, &task); err != nil {
		return nil, err
	}
	return task, nil
}

func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	c.authorize(req)
	return c.doJSON(req, out)
}

func (c *Client) doJSON(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status %d: %s", resp.StatusCode, body)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(&http.Cookie{Name: "Authentication", Value: c.cookie})
}

// extractTaxID digs client.company.nip out of a task document and applies
// the CRM normalization convention.
func extractTaxID(task map[string]any) string {
	client, ok := task["client"].(map[string]any)
	if !ok {
		return ""
	}
	company, ok := client["company"].(map[string]any)
	if !ok {
		return ""
	}
	return reconcile.NormalizeCRMTaxID(company["nip"])
}
