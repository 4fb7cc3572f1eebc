package stage

import "context"

// Handler executes one pipeline stage against the unit of work T and reports
// whether its dependencies are ready.
type Handler[T any] interface {
	Execute(ctx context.Context, work T) error
	HealthCheck(ctx context.Context) Health
}

// Health is the readiness of one stage's dependencies.
type Health struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

func Healthy(name string) Health { return Health{Name: name, Ready: true} }

// Unhealthy records why a stage cannot run.
func Unhealthy(name, detail string) Health {
	return Health{Name: name, Detail: detail}
}

// Func adapts a function to Handler with an always-healthy check.
type Func[T any] struct {
	StageName string
	Run       func(ctx context.Context, work T) error
}

func (f Func[T]) Execute(ctx context.Context, work T) error { return f.Run(ctx, work) }

func (f Func[T]) HealthCheck(context.Context) Health { return Healthy(f.StageName) }
