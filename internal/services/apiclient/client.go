// Package apiclient issues JSON requests to third-party HTTP APIs and maps
// failures onto the services error taxonomy.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"seoforge/internal/services"
)

const maxErrorBody = 512

// Client talks to one named service.
type Client struct {
	Service    string
	BaseURL    string
	HTTPClient *http.Client
	// Header is applied to every request.
	Header http.Header
}

// New builds a client with the given timeout.
func New(service, baseURL string, timeout time.Duration, header http.Header) *Client {
	if header == nil {
		header = http.Header{}
	}
	return &Client{
		Service:    service,
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: timeout},
		Header:     header,
	}
}

// PostJSON encodes body, posts it to path, and decodes a 2xx response into out.
func (c *Client) PostJSON(ctx context.Context, op, path string, body, out any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return services.Wrap(services.ErrValidation, c.Service, op, "encode request", err)
	}
	endpoint, err := url.JoinPath(c.BaseURL, path)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, c.Service, op, "build url", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return services.Wrap(services.ErrConfiguration, c.Service, op, "new request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	payload, _, err := c.do(req, op)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return services.ExternalService(c.Service, op, "decode response", 0, err)
	}
	return nil
}

// Get fetches rawURL and returns the body and response headers of a 2xx reply.
func (c *Client) Get(ctx context.Context, op, rawURL string) ([]byte, http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, nil, services.Wrap(services.ErrValidation, c.Service, op, "new request", err)
	}
	return c.do(req, op)
}

func (c *Client) do(req *http.Request, op string) ([]byte, http.Header, error) {
	for key, values := range c.Header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, nil, ctxErr
		}
		return nil, nil, services.ExternalService(c.Service, op, "http error", 0, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, services.ExternalService(c.Service, op, "read body", resp.StatusCode, err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, resp.Header, StatusError(c.Service, op, resp.StatusCode, resp.Header, body)
	}
	return body, resp.Header, nil
}

// StatusError converts a non-2xx response into a classified error: 429 becomes
// a rate-limit error carrying any Retry-After hint, everything else an
// external service error whose message includes the status code.
func StatusError(service, op string, status int, header http.Header, body []byte) error {
	snippet := Snippet(string(body), maxErrorBody)
	if status == http.StatusTooManyRequests {
		var wait time.Duration
		if header != nil {
			wait, _ = ParseRetryAfter(header.Get("Retry-After"))
		}
		return services.RateLimited(service, wait, fmt.Errorf("http %d: %s", status, snippet))
	}
	return services.ExternalService(service, op, fmt.Sprintf("http %d: %s", status, snippet), status, nil)
}

// ParseRetryAfter accepts delta-seconds or an HTTP date.
func ParseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		delay := time.Until(when)
		if delay < 0 {
			return 0, false
		}
		return delay, true
	}
	return 0, false
}

// Snippet collapses whitespace and truncates s to limit runes.
func Snippet(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if limit > 0 && len(runes) > limit {
		return string(runes[:limit]) + "..."
	}
	return s
}
