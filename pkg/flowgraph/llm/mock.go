package llm

import (
	"context"
	"sync"
)

// MockClient is a scripted Client for tests and offline runs.
//
// Responses are served in order and cycle once exhausted. An injected error,
// or a custom complete func, takes precedence over scripted responses.
type MockClient struct {
	mu        sync.Mutex
	responses []string
	errs      []error
	next      int
	fn        func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Calls records every request received, in order.
	Calls []CompletionRequest
}

// NewMockClient returns a mock that always answers with response.
func NewMockClient(response string) *MockClient {
	return &MockClient{responses: []string{response}}
}

// WithResponses replaces the scripted responses.
func (m *MockClient) WithResponses(responses ...string) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = responses
	m.next = 0
	return m
}

// WithError makes every call fail with err.
func (m *MockClient) WithError(err error) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs = []error{err}
	return m
}

// WithErrors scripts per-call errors; a nil entry lets that call succeed.
// Calls past the end of the list succeed. A single error applies to every
// call, like WithError.
func (m *MockClient) WithErrors(errs ...error) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs = errs
	return m
}

// WithCompleteFunc delegates every call to fn.
func (m *MockClient) WithCompleteFunc(fn func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fn = fn
	return m
}

// Complete implements Client.
func (m *MockClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	callIndex := len(m.Calls)
	m.Calls = append(m.Calls, req)
	fn := m.fn
	var err error
	switch {
	case len(m.errs) == 1:
		err = m.errs[0]
	case callIndex < len(m.errs):
		err = m.errs[callIndex]
	}
	content := ""
	if err == nil && fn == nil && len(m.responses) > 0 {
		content = m.responses[m.next%len(m.responses)]
		m.next++
	}
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if fn != nil {
		return fn(ctx, req)
	}

	input := len(req.SystemPrompt)
	for _, msg := range req.Messages {
		input += len(msg.Content)
	}
	usage := TokenUsage{InputTokens: approxTokens(input), OutputTokens: approxTokens(len(content))}
	usage.TotalTokens = usage.InputTokens + usage.OutputTokens

	return &CompletionResponse{
		Content:      content,
		Usage:        usage,
		Model:        "mock",
		FinishReason: "stop",
	}, nil
}

// CallCount returns the number of calls received.
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// LastCall returns the most recent request, or nil.
func (m *MockClient) LastCall() *CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Calls) == 0 {
		return nil
	}
	last := m.Calls[len(m.Calls)-1]
	return &last
}

// Reset clears recorded calls and rewinds the response script.
func (m *MockClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = nil
	m.next = 0
}

// approxTokens estimates tokens at four characters each, minimum one.
func approxTokens(chars int) int {
	n := chars / 4
	if n < 1 {
		n = 1
	}
	return n
}
