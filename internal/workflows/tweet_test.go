package workflows

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fgerrors "github.com/randalmurphal/flowlab/pkg/flowgraph/errors"
	"github.com/randalmurphal/flowlab/pkg/flowgraph/llm"
	"github.com/randalmurphal/flowlab/pkg/refine"
)

// TestTweeter_Evaluate tests the structured verdict.
func TestTweeter_Evaluate(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		want    refine.Evaluation
		wantErr bool
	}{
		{
			name:  "approved",
			reply: `{"evaluation": "approved", "feedback": " lands well "}`,
			want:  refine.Evaluation{Verdict: refine.Approved, Feedback: "lands well"},
		},
		{
			name:  "fenced",
			reply: "```json\n{\"evaluation\": \"needs_improvement\", \"feedback\": \"cut the hashtags\"}\n```",
			want:  refine.Evaluation{Verdict: refine.NeedsImprovement, Feedback: "cut the hashtags"},
		},
		{name: "unknown verdict", reply: `{"evaluation": "rejected", "feedback": "no"}`, wantErr: true},
		{name: "missing feedback", reply: `{"evaluation": "approved"}`, wantErr: true},
		{name: "prose", reply: "Looks great to me!", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := llm.NewMockClient(tt.reply)
			ev, err := NewTweeter(client, nil, Generation{}).Evaluate(context.Background(), "a post")
			if tt.wantErr {
				var sve *fgerrors.SchemaValidationError
				assert.ErrorAs(t, err, &sve)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, ev)

			call := client.LastCall()
			require.NotNil(t, call)
			assert.Contains(t, call.Messages[0].Content, `"a post"`)
			assert.Contains(t, call.SystemPrompt, `"evaluation"`)
		})
	}
}

// TestTweeter_GenerationSettings tests that generation options reach every request.
func TestTweeter_GenerationSettings(t *testing.T) {
	client := llm.NewMockClient("  a post\n")
	tw := NewTweeter(client, nil, Generation{MaxTokens: 500, Temperature: llm.Temperature(0.7)})

	out, err := tw.Generate(context.Background(), "mondays")
	require.NoError(t, err)
	assert.Equal(t, "a post", out)

	call := client.LastCall()
	assert.Equal(t, 500, call.MaxTokens)
	require.NotNil(t, call.Temperature)
	assert.InDelta(t, 0.7, *call.Temperature, 1e-9)
	assert.Contains(t, call.Messages[0].Content, `"mondays"`)
}

// TestTweeter_Optimize tests that feedback reaches the rewrite prompt.
func TestTweeter_Optimize(t *testing.T) {
	client := llm.NewMockClient("better post")
	out, err := NewTweeter(client, nil, Generation{}).Optimize(context.Background(), "old post", "mondays", "weak ending")
	require.NoError(t, err)
	assert.Equal(t, "better post", out)

	prompt := client.LastCall().Messages[0].Content
	assert.Contains(t, prompt, "old post")
	assert.Contains(t, prompt, "mondays")
	assert.Contains(t, prompt, "weak ending")
}

// TestTweeter_NoClient tests that a model client is required.
func TestTweeter_NoClient(t *testing.T) {
	tw := NewTweeter(nil, nil, Generation{})
	_, err := tw.Generate(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNoLLM)
	_, err = tw.Evaluate(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNoLLM)
}

// TestRunTweet tests a full refinement run.
func TestRunTweet(t *testing.T) {
	// generate, evaluate, optimize, evaluate
	client := llm.NewMockClient("").WithResponses(
		"first draft",
		`{"evaluation": "needs_improvement", "feedback": "sharper"}`,
		"second draft",
		`{"evaluation": "approved", "feedback": "good"}`,
	)

	res, err := RunTweet(context.Background(), Env{LLM: client}, "mondays", DefaultMaxIteration)
	require.NoError(t, err)
	assert.Equal(t, refine.Result{Candidate: "second draft", Verdict: refine.Approved, Iteration: 1}, res)
	assert.Equal(t, 4, client.CallCount())
	assert.Contains(t, client.Calls[2].Messages[0].Content, "sharper")
}

// TestRunTweet_SchemaFailureAborts tests that an invalid verdict fails the run.
func TestRunTweet_SchemaFailureAborts(t *testing.T) {
	client := llm.NewMockClient("").WithResponses(
		"first draft",
		`{"evaluation": "needs_improvement", "feedback": "sharper"}`,
		"second draft",
		"I think this one is great",
	)

	_, err := RunTweet(context.Background(), Env{LLM: client}, "mondays", 3)
	var failed *refine.FailedError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, refine.Evaluate, failed.Step)
	assert.Equal(t, 1, failed.Iteration)
	assert.Equal(t, "second draft", failed.Candidate)
	assert.True(t, strings.Contains(err.Error(), "schema validation failed"))
}

// TestNewTweetLoop_ExtraOptions tests that caller options reach the
// controller.
func TestNewTweetLoop_ExtraOptions(t *testing.T) {
	client := llm.NewMockClient("").WithResponses("draft", `{"evaluation": "approved", "feedback": "ok"}`)
	var steps []refine.NextStep
	observe := refine.WithObserver(func(_ refine.State, next refine.NextStep) {
		steps = append(steps, next)
	})

	_, err := NewTweetLoop(Env{LLM: client}, observe).Run(context.Background(), "go", 2)
	require.NoError(t, err)
	assert.Equal(t, []refine.NextStep{refine.Generate, refine.Evaluate, refine.Done}, steps)
}
