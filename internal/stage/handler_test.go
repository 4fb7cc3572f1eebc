package stage

import (
	"context"
	"errors"
	"testing"
)

func TestFuncHandler(t *testing.T) {
	want := errors.New("boom")
	var seen int
	h := Func[*int]{StageName: "count", Run: func(_ context.Context, n *int) error {
		seen = *n
		return want
	}}
	n := 7
	if err := h.Execute(context.Background(), &n); !errors.Is(err, want) {
		t.Fatalf("expected handler error, got %v", err)
	}
	if seen != 7 {
		t.Fatalf("expected work to be passed through, got %d", seen)
	}
	if health := h.HealthCheck(context.Background()); !health.Ready || health.Name != "count" {
		t.Fatalf("unexpected health %+v", health)
	}
}

func TestUnhealthy(t *testing.T) {
	h := Unhealthy("llm", "api key missing")
	if h.Ready || h.Detail != "api key missing" {
		t.Fatalf("unexpected health %+v", h)
	}
}
