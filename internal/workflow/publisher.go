package workflow

import "context"

// Publisher receives a snapshot after every transition. Implementations must
// not block the engine for long and own their error handling.
type Publisher interface {
	Publish(ctx context.Context, state State)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, state State)

func (f PublisherFunc) Publish(ctx context.Context, state State) { f(ctx, state) }

type fanout []Publisher

func (f fanout) Publish(ctx context.Context, state State) {
	for _, p := range f {
		p.Publish(ctx, state)
	}
}

// Publishers combines publishers, skipping nils. Each receives its own copy.
func Publishers(list ...Publisher) Publisher {
	out := make(fanout, 0, len(list))
	for _, p := range list {
		if p != nil {
			out = append(out, clonePublisher{p})
		}
	}
	return out
}

type clonePublisher struct{ next Publisher }

func (c clonePublisher) Publish(ctx context.Context, state State) {
	c.next.Publish(ctx, state.Clone())
}
