package workflows

import (
	"context"
	"fmt"

	"github.com/randalmurphal/flowlab/internal/prompts"
	"github.com/randalmurphal/flowlab/pkg/flowgraph/llm"
	"github.com/randalmurphal/flowlab/pkg/refine"
)

// DefaultMaxIteration is the refine cap when none is configured.
const DefaultMaxIteration = 5

// TweetEvaluationSchema is the structured contract of the tweet evaluator.
var TweetEvaluationSchema = llm.Schema{
	Name: "tweet_evaluation",
	Fields: []llm.Field{
		{
			Name:        "evaluation",
			Kind:        llm.KindString,
			Description: "final verdict",
			Enum:        []string{string(refine.Approved), string(refine.NeedsImprovement)},
		},
		{Name: "feedback", Kind: llm.KindString, Description: "what to change, or why it works"},
	},
}

// Tweeter writes, judges and rewrites posts with a model. It implements
// refine.Generator, refine.Evaluator and refine.Optimizer.
type Tweeter struct {
	client  llm.Client
	prompts *prompts.Catalog
	gen     Generation
}

// NewTweeter creates a Tweeter.
func NewTweeter(client llm.Client, cat *prompts.Catalog, gen Generation) *Tweeter {
	if cat == nil {
		cat = prompts.Default()
	}
	return &Tweeter{client: client, prompts: cat, gen: gen}
}

func (t *Tweeter) Generate(ctx context.Context, topic string) (string, error) {
	return complete(ctx, t.client, t.prompts, t.gen, prompts.TweetGenerate, map[string]any{"topic": topic})
}

func (t *Tweeter) Evaluate(ctx context.Context, tweet string) (refine.Evaluation, error) {
	if t.client == nil {
		return refine.Evaluation{}, ErrNoLLM
	}
	req, err := t.prompts.Request(prompts.TweetEvaluate, map[string]any{"tweet": tweet})
	if err != nil {
		return refine.Evaluation{}, err
	}
	out, err := llm.CompleteStructured(ctx, t.client, t.gen.apply(req), TweetEvaluationSchema)
	if err != nil {
		return refine.Evaluation{}, err
	}
	verdict, err := refine.ParseVerdict(out.Get("evaluation").String())
	if err != nil {
		return refine.Evaluation{}, fmt.Errorf("tweet evaluation: %w", err)
	}
	return refine.Evaluation{Verdict: verdict, Feedback: llm.CleanText(out.Get("feedback").String())}, nil
}

func (t *Tweeter) Optimize(ctx context.Context, tweet, topic, feedback string) (string, error) {
	return complete(ctx, t.client, t.prompts, t.gen, prompts.TweetOptimize, map[string]any{
		"tweet":    tweet,
		"topic":    topic,
		"feedback": feedback,
	})
}

// NewTweetLoop wires a Tweeter into a refine controller using env's model,
// logger, metrics and tracing. extra options are applied last.
func NewTweetLoop(env Env, extra ...refine.Option) *refine.Controller {
	t := NewTweeter(env.LLM, env.prompts(), env.Gen)
	opts := []refine.Option{refine.WithLogger(env.Logger)}
	if env.Metrics != nil {
		opts = append(opts, refine.WithMetrics(env.Metrics))
	}
	if env.Spans != nil {
		opts = append(opts, refine.WithTracing(env.Spans))
	}
	return refine.New(t, t, t, append(opts, extra...)...)
}

// RunTweet refines a post about topic with at most maxIteration rewrites.
func RunTweet(ctx context.Context, env Env, topic string, maxIteration int) (refine.Result, error) {
	return NewTweetLoop(env).Run(ctx, topic, maxIteration)
}
