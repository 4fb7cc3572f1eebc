package llm

import (
	"context"
	"sync"

	"seoforge/internal/config"
	"seoforge/internal/services"
)

// Responder produces a scripted reply.
type Responder func(ctx context.Context, messages []Message, opts Options) (string, error)

// Call records one request seen by Mock.
type Call struct {
	Messages []Message
	Options  Options
}

// Mock is a scripted in-process provider for tests and dry runs. Queued
// replies are returned in order; once exhausted, the responder (if any)
// answers.
type Mock struct {
	mu        sync.Mutex
	queue     []mockReply
	responder Responder
	calls     []Call
}

type mockReply struct {
	content string
	err     error
}

// NewMock returns a mock that replies with each response in turn.
func NewMock(responses ...string) *Mock {
	m := &Mock{}
	for _, r := range responses {
		m.queue = append(m.queue, mockReply{content: r})
	}
	return m
}

// NewMockResponder returns a mock backed by fn.
func NewMockResponder(fn Responder) *Mock {
	return &Mock{responder: fn}
}

// NewOffline returns the mock used when "mock" is selected outside tests. It
// answers JSON requests with an empty object and echoes the final user
// message otherwise, so a full pipeline can run without network access.
func NewOffline() *Mock {
	return NewMockResponder(func(_ context.Context, messages []Message, opts Options) (string, error) {
		if opts.JSON {
			return "{}", nil
		}
		for i := len(messages) - 1; i >= 0; i-- {
			if messages[i].Role == RoleUser {
				return messages[i].Content, nil
			}
		}
		return "", nil
	})
}

// Enqueue appends a reply.
func (m *Mock) Enqueue(content string) *Mock {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, mockReply{content: content})
	return m
}

// Fail appends an error reply.
func (m *Mock) Fail(err error) *Mock {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, mockReply{err: err})
	return m
}

// Calls returns a copy of the recorded requests.
func (m *Mock) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

func (m *Mock) Name() string  { return config.ProviderMock }
func (m *Mock) Model() string { return config.ProviderMock }

func (m *Mock) Complete(ctx context.Context, messages []Message, opts Options) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	m.mu.Lock()
	m.calls = append(m.calls, Call{Messages: append([]Message(nil), messages...), Options: opts})
	var (
		reply  mockReply
		queued bool
	)
	if len(m.queue) > 0 {
		reply, m.queue, queued = m.queue[0], m.queue[1:], true
	}
	responder := m.responder
	m.mu.Unlock()

	if !queued {
		if responder == nil {
			return Result{}, services.LLM(config.ProviderMock, "no scripted response left", nil)
		}
		content, err := responder(ctx, messages, opts)
		reply = mockReply{content: content, err: err}
	}
	if reply.err != nil {
		return Result{}, reply.err
	}
	return Result{Content: reply.content, Model: modelFor(m, opts), Provider: config.ProviderMock}, nil
}
