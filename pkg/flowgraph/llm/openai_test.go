package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fgerrors "github.com/randalmurphal/flowlab/pkg/flowgraph/errors"
)

const completionJSON = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1700000000,
  "model": "test-model",
  "choices": [{"index": 0, "message": {"role": "assistant", "content": "hello back"}, "finish_reason": "stop"}],
  "usage": {"prompt_tokens": 12, "completion_tokens": 3, "total_tokens": 15}
}`

func newTestServer(t *testing.T, handler http.HandlerFunc) *OpenAIClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewOpenAIClient(OpenAIConfig{APIKey: "k", BaseURL: srv.URL + "/v1/", Model: "test-model"})
	require.NoError(t, err)
	return client
}

// TestNewOpenAIClient tests client construction.
func TestNewOpenAIClient(t *testing.T) {
	_, err := NewOpenAIClient(OpenAIConfig{})
	assert.ErrorContains(t, err, "api key")

	c, err := NewOpenAIClient(OpenAIConfig{APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, c.Model())
}

// TestOpenAIClient_Complete tests the request body and response mapping.
func TestOpenAIClient_Complete(t *testing.T) {
	var body map[string]any
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionJSON))
	})

	resp, err := client.Complete(context.Background(), CompletionRequest{
		SystemPrompt: "be brief",
		Messages: []Message{
			{Role: RoleUser, Content: "hi"},
			{Role: RoleAssistant, Content: "hello"},
			{Role: RoleTool, Content: "ignored"},
			{Role: RoleUser, Content: "again"},
		},
		MaxTokens:   50,
		Temperature: Temperature(0.2),
	})
	require.NoError(t, err)

	assert.Equal(t, "hello back", resp.Content)
	assert.Equal(t, "stop", resp.FinishReason)
	assert.Equal(t, 15, resp.Usage.TotalTokens)

	assert.Equal(t, "test-model", body["model"])
	assert.InDelta(t, 50, body["max_tokens"], 0)
	assert.InDelta(t, 0.2, body["temperature"], 1e-9)
	msgs, ok := body["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 4, "system prompt plus three non-tool messages")
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Equal(t, "assistant", msgs[2].(map[string]any)["role"])
}

// TestOpenAIClient_ErrorMapping tests API error categorization.
func TestOpenAIClient_ErrorMapping(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		transient bool
	}{
		{"rate limited", http.StatusTooManyRequests, true},
		{"server error", http.StatusBadGateway, true},
		{"bad request", http.StatusBadRequest, false},
		{"unauthorized", http.StatusUnauthorized, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error": {"message": "nope", "type": "test"}}`))
			})

			_, err := client.Complete(context.Background(), UserPrompt("", "hi"))
			require.Error(t, err)

			var httpErr *fgerrors.HTTPError
			require.ErrorAs(t, err, &httpErr)
			assert.Equal(t, tt.status, httpErr.StatusCode)
			assert.Equal(t, tt.transient, fgerrors.IsRetryable(err))
		})
	}
}

// TestOpenAIClient_NoChoices tests an empty choices list.
func TestOpenAIClient_NoChoices(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "x", "object": "chat.completion", "model": "m", "choices": []}`))
	})

	_, err := client.Complete(context.Background(), UserPrompt("", "hi"))
	var schemaErr *fgerrors.SchemaValidationError
	assert.ErrorAs(t, err, &schemaErr)
}

// TestOpenAIClient_Cancelled tests request cancellation.
func TestOpenAIClient_Cancelled(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(completionJSON))
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Complete(ctx, UserPrompt("", "hi"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, fgerrors.IsRetryable(err))
}
