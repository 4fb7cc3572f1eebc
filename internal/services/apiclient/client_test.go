package apiclient_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"seoforge/internal/retry"
	"seoforge/internal/services"
	"seoforge/internal/services/apiclient"
)

func TestPostJSONDecodesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-KEY") != "secret" {
			t.Fatalf("missing api key header")
		}
		if r.URL.Path != "/search" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	client := apiclient.New("serper", srv.URL, time.Second, http.Header{"X-API-KEY": {"secret"}})
	var out struct {
		OK bool `json:"ok"`
	}
	if err := client.PostJSON(context.Background(), "search", "/search", map[string]string{"q": "x"}, &out); err != nil {
		t.Fatalf("PostJSON: %v", err)
	}
	if !out.OK {
		t.Fatal("expected decoded body")
	}
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		status    int
		marker    error
		transient bool
	}{
		{http.StatusTooManyRequests, services.ErrRateLimit, true},
		{http.StatusBadGateway, services.ErrExternalService, true},
		{http.StatusServiceUnavailable, services.ErrExternalService, true},
		{http.StatusInternalServerError, services.ErrExternalService, false},
		{http.StatusUnauthorized, services.ErrExternalService, false},
	}
	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Retry-After", "2")
			w.WriteHeader(tt.status)
			_, _ = w.Write([]byte("nope"))
		}))
		client := apiclient.New("firecrawl", srv.URL, time.Second, nil)
		err := client.PostJSON(context.Background(), "scrape", "/v1/scrape", struct{}{}, nil)
		srv.Close()

		if !errors.Is(err, tt.marker) {
			t.Fatalf("status %d: expected %v, got %v", tt.status, tt.marker, err)
		}
		if got := retry.IsTransient(err); got != tt.transient {
			t.Fatalf("status %d: transient=%v, want %v (%v)", tt.status, got, tt.transient, err)
		}
		if tt.status == http.StatusTooManyRequests {
			if wait, ok := services.RetryAfter(err); !ok || wait != 2*time.Second {
				t.Fatalf("expected retry-after 2s, got %v %v", wait, ok)
			}
		}
	}
}

type failingTransport struct {
	err   error
	calls int
}

func (f *failingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	f.calls++
	return nil, f.err
}

func TestTransportErrorsFailFast(t *testing.T) {
	transport := &failingTransport{err: errors.New("x509: certificate signed by unknown authority")}
	client := apiclient.New("serper", "https://serper.invalid", 5*time.Second, nil)
	client.HTTPClient = &http.Client{Timeout: 5 * time.Second, Transport: transport}

	policy := retry.Policy{
		MaxRetries: 3,
		Sleep:      func(context.Context, time.Duration) error { return nil },
	}
	err := retry.Run(context.Background(), "search", policy, func(ctx context.Context) error {
		return client.PostJSON(ctx, "search", "/search", struct{}{}, nil)
	})
	if !errors.Is(err, services.ErrExternalService) {
		t.Fatalf("expected external service error, got %v", err)
	}
	if retry.IsTransient(err) {
		t.Fatalf("certificate failure classified as transient: %v", err)
	}
	if transport.calls != 1 {
		t.Fatalf("expected a single attempt, got %d", transport.calls)
	}
}

func TestClientTimeoutIsTransient(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { <-block }))
	defer srv.Close()
	defer close(block)

	client := apiclient.New("serper", srv.URL, 20*time.Millisecond, nil)
	err := client.PostJSON(context.Background(), "search", "/search", struct{}{}, nil)
	if err == nil || !retry.IsTransient(err) {
		t.Fatalf("expected transient timeout error, got %v", err)
	}
}

func TestParseRetryAfter(t *testing.T) {
	if d, ok := apiclient.ParseRetryAfter("5"); !ok || d != 5*time.Second {
		t.Fatalf("unexpected %v %v", d, ok)
	}
	if _, ok := apiclient.ParseRetryAfter("soon"); ok {
		t.Fatal("expected invalid value to be rejected")
	}
	future := time.Now().Add(time.Minute).UTC().Format(http.TimeFormat)
	if d, ok := apiclient.ParseRetryAfter(future); !ok || d <= 0 {
		t.Fatalf("unexpected date parse %v %v", d, ok)
	}
}
