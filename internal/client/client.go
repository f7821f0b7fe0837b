// Package client talks to a running gridboard server over its HTTP API.
package client

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

	"github.com/jwulff/gridboard/internal/domain"
)

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 30 * time.Second

// Client is an HTTP client for the gridboard API.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// New creates a client for the server at baseURL.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// do sends a request and returns the response body of a 2xx response.
func (c *Client) do(ctx context.Context, method, path, contentType string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(data))}
		var body struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &body) == nil && body.Error != "" {
			apiErr.Message = body.Error
		}
		return nil, apiErr
	}
	return data, nil
}

func (c *Client) getJSON(ctx context.Context, path string, v any) error {
	data, err := c.do(ctx, http.MethodGet, path, "", nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// ListDashboards returns every dashboard on the server.
func (c *Client) ListDashboards(ctx context.Context) ([]domain.Dashboard, error) {
	var dashboards []domain.Dashboard
	if err := c.getJSON(ctx, "/dashboards", &dashboards); err != nil {
		return nil, err
	}
	return dashboards, nil
}

// DefaultDashboard returns the server's default dashboard.
func (c *Client) DefaultDashboard(ctx context.Context) (*domain.Dashboard, error) {
	var d domain.Dashboard
	if err := c.getJSON(ctx, "/dashboards/default", &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// Export downloads a dashboard document in format "json" or "yaml" and
// returns the raw bytes.
func (c *Client) Export(ctx context.Context, dashboardID, format string) ([]byte, error) {
	path := "/dashboards/" + url.PathEscape(dashboardID) + "/export"
	if format != "" {
		path += "?format=" + url.QueryEscape(format)
	}
	data, err := c.do(ctx, http.MethodGet, path, "", nil)
	return data, err
}

// Import uploads a document. YAML documents are sent as application/yaml.
func (c *Client) Import(ctx context.Context, document []byte, yamlDocument bool) (*domain.ImportResult, error) {
	contentType := "application/json"
	if yamlDocument {
		contentType = "application/yaml"
	}
	data, err := c.do(ctx, http.MethodPost, "/dashboards/import", contentType, document)
	if err != nil {
		return nil, err
	}
	var result domain.ImportResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &result, nil
}

// Health reports whether the server answers its health check.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/health", "", nil)
	return err
}
