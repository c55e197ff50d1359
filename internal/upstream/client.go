package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	defaultTimeout = 5 * time.Second
	maxBodyBytes   = 4 << 20
)

// Error reports a non-success response from the upstream.
type Error struct {
	URL        string
	StatusCode int
}

func (e *Error) Error() string {
	return fmt.Sprintf("upstream %s returned %d", e.URL, e.StatusCode)
}

type Client struct {
	http   *http.Client
	logger *slog.Logger
}

// NewClient wraps httpClient, or a client with a default timeout when nil.
func NewClient(httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}

	return &Client{
		http:   httpClient,
		logger: logger,
	}
}

// Fetch returns the items listed at target. The body may be a top-level
// array or an object with a "results" array; items are passed through
// untouched.
func (c *Client) Fetch(ctx context.Context, target Target) ([]json.RawMessage, error) {
	endpoint := target.URL()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call upstream %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("Upstream responded",
		slog.String("url", endpoint),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, &Error{URL: endpoint, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read upstream body: %w", err)
	}

	return decodeItems(body)
}

func decodeItems(body []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)

	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("decode upstream list: %w", err)
		}
		return items, nil
	}

	var envelope struct {
		Results []json.RawMessage `json:"results"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, fmt.Errorf("decode upstream list: %w", err)
	}
	if envelope.Results == nil {
		return nil, fmt.Errorf("decode upstream list: no results field")
	}
	return envelope.Results, nil
}
