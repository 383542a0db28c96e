// Package httpclient holds the JSON-over-HTTP plumbing shared by the
// outbound service clients.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/alchemorsel/dietgen/internal/ports/outbound"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// maxErrorBody bounds how much of a failed response ends up in an error.
const maxErrorBody = 512

// New returns a traced client with the given timeout, 30s when unset.
func New(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

// StatusError is a non-2xx reply.
type StatusError struct {
	Service string
	Code    int
	Body    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s API error %d: %s", e.Service, e.Code, e.Body)
}

// Unwrap lets callers detect replies that retrying cannot fix. Rate
// limiting and server errors stay retryable.
func (e *StatusError) Unwrap() error {
	if e.Code >= 400 && e.Code < 500 && e.Code != http.StatusTooManyRequests && e.Code != http.StatusRequestTimeout {
		return outbound.ErrRequestRejected
	}
	return nil
}

// PostJSON sends body as JSON and decodes a 2xx reply into out.
func PostJSON(ctx context.Context, client *http.Client, service, url string, headers map[string]string, body, out interface{}) error {
	return Do(ctx, client, http.MethodPost, service, url, headers, body, out)
}

// Do sends a request with an optional JSON body and decodes a 2xx reply
// into out when out is non-nil.
func Do(ctx context.Context, client *http.Client, method, service, url string, headers map[string]string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", service, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if len(raw) > maxErrorBody {
			raw = raw[:maxErrorBody]
		}
		return &StatusError{Service: service, Code: resp.StatusCode, Body: string(raw)}
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to unmarshal %s response: %w", service, err)
	}
	return nil
}

// Get issues a GET and fails on a non-2xx reply. Health checks use it.
func Get(ctx context.Context, client *http.Client, service, url string, headers map[string]string) error {
	return Do(ctx, client, http.MethodGet, service, url, headers, nil, nil)
}
