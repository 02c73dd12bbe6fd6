// Package client is a JSON HTTP client for the treasury API, used by the
// CLI and by integrations embedding this module. Amounts travel as
// decimal strings because uint64 balances exceed what JSON numbers carry.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tallystack/treasury/internal/auth"
)

// HeaderIdempotencyKey marks a mutating request for at-most-once replay.
const HeaderIdempotencyKey = "Idempotency-Key"

// Config holds common client configuration
type Config struct {
	ServerURL string
	Token     string
	Caller    string
	CacheDir  string
	Timeout   time.Duration
}

// DefaultConfig returns a default client configuration
func DefaultConfig() Config {
	return Config{
		ServerURL: "http://localhost:8080",
		Timeout:   30 * time.Second,
	}
}

// Client calls the treasury API over HTTP.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	caller     string
}

// New creates an API client with the given configuration. Responses the
// server marks cacheable are cached per RFC 7234, on disk when CacheDir
// is set and in memory otherwise.
func New(config Config) *Client {
	httpClient := NewCachingHTTPClient(config.CacheDir)
	httpClient.Timeout = config.Timeout

	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(config.ServerURL, "/"),
		token:      config.Token,
		caller:     config.Caller,
	}
}

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Title, e.Message)
}

func (c *Client) do(ctx context.Context, method, path, idempotencyKey string, body, out any) error {
	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		payload = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.caller != "" {
		req.Header.Set(auth.HeaderCaller, c.caller)
	}
	if idempotencyKey != "" {
		req.Header.Set(HeaderIdempotencyKey, idempotencyKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		apiErr := APIError{Status: resp.StatusCode, Title: "http_error", Message: strings.TrimSpace(string(data))}
		var decoded APIError
		if jsonErr := json.Unmarshal(data, &decoded); jsonErr == nil && decoded.Title != "" {
			decoded.Status = resp.StatusCode
			apiErr = decoded
		}
		return &apiErr
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// Version reports the server version.
func (c *Client) Version(ctx context.Context) (string, error) {
	var out struct {
		Version string `json:"version"`
	}
	if err := c.do(ctx, http.MethodGet, "/version", "", nil, &out); err != nil {
		return "", err
	}

	return out.Version, nil
}
