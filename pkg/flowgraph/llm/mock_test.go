package llm_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/flowlab/pkg/flowgraph/llm"
)

// TestMockClient_FixedResponse tests a single canned response.
func TestMockClient_FixedResponse(t *testing.T) {
	mock := llm.NewMockClient("Hello, world!")

	resp, err := mock.Complete(context.Background(), llm.UserPrompt("", "Hi"))

	require.NoError(t, err)
	assert.Equal(t, "Hello, world!", resp.Content)
	assert.Equal(t, "stop", resp.FinishReason)
}

// TestMockClient_SequentialResponses tests responses returned in order.
func TestMockClient_SequentialResponses(t *testing.T) {
	mock := llm.NewMockClient("").WithResponses("first", "second", "third")

	for _, want := range []string{"first", "second", "third", "first"} {
		resp, err := mock.Complete(context.Background(), llm.CompletionRequest{})
		require.NoError(t, err)
		assert.Equal(t, want, resp.Content)
	}
}

// TestMockClient_WithError tests a fixed error.
func TestMockClient_WithError(t *testing.T) {
	expectedErr := errors.New("test error")
	mock := llm.NewMockClient("").WithError(expectedErr)

	_, err := mock.Complete(context.Background(), llm.CompletionRequest{})
	assert.Equal(t, expectedErr, err)
}

// TestMockClient_WithErrors tests errors returned in order.
func TestMockClient_WithErrors(t *testing.T) {
	boom := errors.New("boom")
	mock := llm.NewMockClient("ok").WithErrors(nil, boom)

	_, err := mock.Complete(context.Background(), llm.CompletionRequest{})
	require.NoError(t, err)

	_, err = mock.Complete(context.Background(), llm.CompletionRequest{})
	assert.ErrorIs(t, err, boom)

	// Past the script every call succeeds.
	_, err = mock.Complete(context.Background(), llm.CompletionRequest{})
	assert.NoError(t, err)
}

// TestMockClient_CallTracking tests recorded calls.
func TestMockClient_CallTracking(t *testing.T) {
	mock := llm.NewMockClient("response")
	assert.Nil(t, mock.LastCall())

	_, _ = mock.Complete(context.Background(), llm.UserPrompt("", "First question"))
	_, _ = mock.Complete(context.Background(), llm.UserPrompt("", "Second question"))

	assert.Equal(t, 2, mock.CallCount())
	require.NotNil(t, mock.LastCall())
	assert.Equal(t, "Second question", mock.LastCall().Messages[0].Content)
	assert.Equal(t, "First question", mock.Calls[0].Messages[0].Content)
}

// TestMockClient_Reset tests clearing recorded calls.
func TestMockClient_Reset(t *testing.T) {
	mock := llm.NewMockClient("").WithResponses("a", "b", "c")

	_, _ = mock.Complete(context.Background(), llm.CompletionRequest{})
	_, _ = mock.Complete(context.Background(), llm.CompletionRequest{})

	mock.Reset()

	assert.Equal(t, 0, mock.CallCount())
	resp, _ := mock.Complete(context.Background(), llm.CompletionRequest{})
	assert.Equal(t, "a", resp.Content)
}

// TestMockClient_CustomCompleteFunc tests a custom completion function.
func TestMockClient_CustomCompleteFunc(t *testing.T) {
	mock := llm.NewMockClient("").WithCompleteFunc(func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		return &llm.CompletionResponse{Content: "Echo: " + req.Messages[0].Content}, nil
	})

	resp, err := mock.Complete(context.Background(), llm.UserPrompt("", "test"))

	require.NoError(t, err)
	assert.Equal(t, "Echo: test", resp.Content)
}

// TestMockClient_ContextCancellation tests that a cancelled context is honored.
func TestMockClient_ContextCancellation(t *testing.T) {
	mock := llm.NewMockClient("response")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := mock.Complete(ctx, llm.CompletionRequest{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, mock.CallCount())
}

// TestMockClient_TokenUsage tests reported token usage.
func TestMockClient_TokenUsage(t *testing.T) {
	mock := llm.NewMockClient("some response text")

	resp, err := mock.Complete(context.Background(), llm.UserPrompt("system", "user text"))
	require.NoError(t, err)

	assert.Greater(t, resp.Usage.InputTokens, 0)
	assert.Greater(t, resp.Usage.OutputTokens, 0)
	assert.Equal(t, resp.Usage.InputTokens+resp.Usage.OutputTokens, resp.Usage.TotalTokens)
}

// TestTokenUsage_Add tests usage accumulation.
func TestTokenUsage_Add(t *testing.T) {
	u := llm.TokenUsage{InputTokens: 1, OutputTokens: 2, TotalTokens: 3}
	u.Add(llm.TokenUsage{InputTokens: 10, OutputTokens: 20, TotalTokens: 30})
	assert.Equal(t, llm.TokenUsage{InputTokens: 11, OutputTokens: 22, TotalTokens: 33}, u)
}

// TestCleanText tests whitespace trimming and normalization.
func TestCleanText(t *testing.T) {
	// "e" followed by a combining acute accent composes to a single rune.
	assert.Equal(t, "caf\u00e9", llm.CleanText("  cafe\u0301 \n"))
}
