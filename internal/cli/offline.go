package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/randalmurphal/flowlab/pkg/flowgraph/llm"
)

// newOfflineClient answers every prompt with canned text shaped like what
// the hosted model would return, so every command runs without network
// access. Structured prompts get a valid JSON reply.
func newOfflineClient() *llm.MockClient {
	return llm.NewMockClient("").WithCompleteFunc(func(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		return &llm.CompletionResponse{Content: offlineReply(req)}, nil
	})
}

func offlineReply(req llm.CompletionRequest) string {
	switch {
	case strings.Contains(req.SystemPrompt, `"evaluation" (string)`):
		return `{"evaluation": "approved", "feedback": "Short, specific and easy to share."}`
	case strings.Contains(req.SystemPrompt, `"score" (integer)`):
		return `{"feedback": "Reads well with a clear structure.", "score": 7}`
	}
	last := ""
	if n := len(req.Messages); n > 0 {
		last = req.Messages[n-1].Content
	}
	first, _, _ := strings.Cut(strings.TrimSpace(last), "\n")
	return fmt.Sprintf("[offline] %s", first)
}
