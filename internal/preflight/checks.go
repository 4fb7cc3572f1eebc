package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"seoforge/internal/services"
	"seoforge/internal/services/llm"
	"seoforge/internal/stage"
)

const llmCheckTimeout = 30 * time.Second

// CheckCredentials fails when any required API key is absent.
func CheckCredentials(missing []string) Result {
	const name = "Credentials"
	if len(missing) == 0 {
		return Result{Name: name, Passed: true, Detail: "all required keys present"}
	}
	return Result{Name: name, Detail: "missing " + strings.Join(missing, ", ")}
}

// CheckLLMSource resolves the default provider and pings it.
func CheckLLMSource(ctx context.Context, providers ProviderSource) Result {
	p, err := providers.Default(ctx)
	if err != nil {
		return Result{Name: "LLM", Detail: services.Details(err).Message}
	}
	return CheckLLM(ctx, "LLM ("+p.Name()+")", p)
}

// CheckLLM verifies that the provider answers a tiny completion. Decorated
// providers are unwrapped so the check makes a single attempt.
func CheckLLM(ctx context.Context, name string, p llm.Provider) Result {
	if svc, ok := p.(*llm.Service); ok {
		p = svc.Backend()
	}

	checkCtx, cancel := context.WithTimeout(ctx, llmCheckTimeout)
	defer cancel()

	_, err := p.Complete(checkCtx, []llm.Message{{Role: "user", Content: "Reply with OK."}}, llm.Options{MaxTokens: 5})
	if err != nil {
		return Result{Name: name, Detail: summarizeLLMError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "API reachable (" + p.Model() + ")"}
}

// CheckEndpoint verifies that baseURL answers HTTP requests with the given
// headers. Only authentication failures and server errors fail the check.
func CheckEndpoint(ctx context.Context, name, baseURL string, headers http.Header) Result {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return Result{Name: name, Detail: "missing url"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, base, nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("request failed (%v)", err)}
	}
	for key, values := range headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	resp, err := (&http.Client{Timeout: 5 * time.Second}).Do(req)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("unreachable (%v)", err)}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return Result{Name: name, Detail: "auth failed (invalid api key)"}
	case resp.StatusCode >= 500:
		return Result{Name: name, Detail: fmt.Sprintf("server error (%d)", resp.StatusCode)}
	default:
		return Result{Name: name, Passed: true, Detail: "Reachable"}
	}
}

// Pinger is satisfied by the persistent store.
type Pinger interface {
	Ping(ctx context.Context) error
	Path() string
}

// CheckDatabase verifies the store answers queries.
func CheckDatabase(ctx context.Context, db Pinger) Result {
	const name = "Database"
	if db == nil {
		return Result{Name: name, Detail: "not opened"}
	}
	if err := db.Ping(ctx); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", db.Path(), err)}
	}
	return Result{Name: name, Passed: true, Detail: db.Path()}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

func summarizeLLMError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out (LLM API unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (LLM API unreachable)"
	}
	if d := services.Details(err); d.Message != "" {
		if d.Hint != "" {
			return d.Message + " (" + d.Hint + ")"
		}
		return d.Message
	}
	return err.Error()
}

// CheckStages converts per-stage readiness into results.
func CheckStages(health []stage.Health) []Result {
	results := make([]Result, 0, len(health))
	for _, h := range health {
		detail := h.Detail
		if h.Ready && detail == "" {
			detail = "ready"
		}
		results = append(results, Result{Name: "Stage " + h.Name, Passed: h.Ready, Detail: detail})
	}
	return results
}
