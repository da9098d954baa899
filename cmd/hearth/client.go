package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/harunnryd/hearth/internal/approval"
	"github.com/harunnryd/hearth/internal/config"
	"github.com/harunnryd/hearth/internal/daemon/components"
	"github.com/harunnryd/hearth/internal/executor"
	"github.com/harunnryd/hearth/internal/wellness"
)

const clientTimeout = 30 * time.Second

// apiClient talks to a running daemon's /v1 routes.
type apiClient struct {
	baseURL string
	http    *http.Client
}

func newAPIClient(c *config.Config) *apiClient {
	base := config.DefaultServerURL
	if c != nil && strings.TrimSpace(c.Server.URL) != "" {
		base = c.Server.URL
	}
	return &apiClient{
		baseURL: strings.TrimRight(base, "/"),
		http:    &http.Client{Timeout: clientTimeout},
	}
}

func (c *apiClient) ListApprovals(ctx context.Context, workspaceID string, states []string) ([]approval.Pending, error) {
	q := url.Values{}
	if workspaceID != "" {
		q.Set("workspace_id", workspaceID)
	}
	for _, s := range states {
		q.Add("state", s)
	}

	var out []approval.Pending
	err := c.do(ctx, http.MethodGet, "/v1/approvals?"+q.Encode(), nil, &out)
	return out, err
}

func (c *apiClient) Decide(ctx context.Context, id string, approved bool) (executor.Outcome, error) {
	var out executor.Outcome
	err := c.do(ctx, http.MethodPost, "/v1/approvals/"+url.PathEscape(id)+"/decision", components.DecisionRequest{Approved: approved}, &out)
	return out, err
}

func (c *apiClient) History(ctx context.Context, workspaceID, approvalID string) ([]approval.AuditEntry, error) {
	q := url.Values{}
	if workspaceID != "" {
		q.Set("workspace_id", workspaceID)
	}
	if approvalID != "" {
		q.Set("approval_id", approvalID)
	}

	var out []approval.AuditEntry
	err := c.do(ctx, http.MethodGet, "/v1/approvals/history?"+q.Encode(), nil, &out)
	return out, err
}

func (c *apiClient) Wellness(ctx context.Context, req components.WellnessRequest) (*wellness.DailySummary, error) {
	var out wellness.DailySummary
	if err := c.do(ctx, http.MethodPost, "/v1/wellness/daily", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *apiClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("daemon unreachable at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr components.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil || apiErr.Error == "" {
			return fmt.Errorf("daemon returned %s", resp.Status)
		}
		return fmt.Errorf("%s (%s)", apiErr.Error, apiErr.Category)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
