package integration

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/coder/quartz"
	"github.com/tidwall/gjson"

	"github.com/jwulff/gridboard/internal/domain"
)

// HTTPJSONType is the type name of the generic JSON polling handler.
const HTTPJSONType = "http_json"

// DefaultTimeout bounds each upstream request.
const DefaultTimeout = 10 * time.Second

// HTTPJSON reads metrics out of a JSON document served at config "url".
// A metric is a gjson path into the document ("current.temp",
// "alerts.0.title", "alerts.#"); the empty metric returns the whole document.
type HTTPJSON struct {
	HTTPClient *http.Client
	Clock      quartz.Clock
}

// NewHTTPJSON creates a handler with default timeouts.
func NewHTTPJSON() *HTTPJSON {
	return &HTTPJSON{
		HTTPClient: &http.Client{Timeout: DefaultTimeout},
		Clock:      quartz.NewReal(),
	}
}

func (h *HTTPJSON) Type() string { return HTTPJSONType }

func (h *HTTPJSON) fetch(ctx context.Context, cfg domain.Config) ([]byte, error) {
	url := cfg.GetString("url", "")
	if url == "" {
		return nil, configError("url is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if token := cfg.GetString("bearer_token", ""); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := h.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, string(body))
	}

	if !gjson.ValidBytes(body) {
		return nil, errors.New("failed to parse response: invalid JSON")
	}
	return body, nil
}

// TestConnection fetches the document once. Upstream failures are reported
// in the result, not as an error.
func (h *HTTPJSON) TestConnection(ctx context.Context, cfg domain.Config) (Result, error) {
	if _, err := h.fetch(ctx, cfg); err != nil {
		return Result{OK: false, Message: err.Error()}, nil
	}
	return Result{OK: true, Message: "connected"}, nil
}

func (h *HTTPJSON) GetData(ctx context.Context, cfg domain.Config, metric string) (*Data, error) {
	doc, err := h.fetch(ctx, cfg)
	if err != nil {
		return nil, err
	}
	v, ok := lookup(doc, metric)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMetric, metric)
	}
	return &Data{Metric: metric, Value: v, FetchedAt: h.Clock.Now().UTC()}, nil
}

func (h *HTTPJSON) Capabilities() []Capability {
	return []Capability{
		{Metric: "", Description: "the whole JSON document"},
		{Metric: "<path>", Description: "path into the document, e.g. current.temp or alerts.0.title"},
	}
}

// lookup resolves path against a JSON document.
func lookup(doc []byte, path string) (any, bool) {
	if path == "" {
		return gjson.ParseBytes(doc).Value(), true
	}
	res := gjson.GetBytes(doc, path)
	if !res.Exists() {
		return nil, false
	}
	return res.Value(), true
}
