package journal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tallystack/treasury/internal/audit"
)

// HTTPShipper posts event batches as JSON to an observer endpoint.
type HTTPShipper struct {
	url    string
	token  string
	client *http.Client
}

// NewHTTPShipper creates a shipper for the given observer URL. token is
// optional; when set it is sent as a bearer credential.
func NewHTTPShipper(url, token string, timeout time.Duration) *HTTPShipper {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &HTTPShipper{
		url:   url,
		token: token,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Ship implements Shipper.
func (s *HTTPShipper) Ship(ctx context.Context, events []audit.Event) error {
	body, err := json.Marshal(events)
	if err != nil {
		return fmt.Errorf("failed to marshal events: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post events: %w", err)
	}
	defer resp.Body.Close()

	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("observer returned status %d", resp.StatusCode)
	}

	return nil
}
