package refine

import "context"

// Generator writes the first candidate for a topic.
type Generator interface {
	Generate(ctx context.Context, topic string) (string, error)
}

// Evaluator judges a candidate.
type Evaluator interface {
	Evaluate(ctx context.Context, candidate string) (Evaluation, error)
}

// Optimizer rewrites a candidate using the evaluator's feedback.
type Optimizer interface {
	Optimize(ctx context.Context, candidate, topic, feedback string) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, topic string) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, topic string) (string, error) {
	return f(ctx, topic)
}

// EvaluatorFunc adapts a function to Evaluator.
type EvaluatorFunc func(ctx context.Context, candidate string) (Evaluation, error)

func (f EvaluatorFunc) Evaluate(ctx context.Context, candidate string) (Evaluation, error) {
	return f(ctx, candidate)
}

// OptimizerFunc adapts a function to Optimizer.
type OptimizerFunc func(ctx context.Context, candidate, topic, feedback string) (string, error)

func (f OptimizerFunc) Optimize(ctx context.Context, candidate, topic, feedback string) (string, error) {
	return f(ctx, candidate, topic, feedback)
}
