package refine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	fgerrors "github.com/randalmurphal/flowlab/pkg/flowgraph/errors"
	"github.com/randalmurphal/flowlab/pkg/flowgraph/observability"
)

// outcomeFailed is the metric outcome of an aborted loop.
const outcomeFailed = "failed"

// Controller runs refine loops. It holds no per-run state and is safe for
// concurrent use if its collaborators are.
type Controller struct {
	gen  Generator
	eval Evaluator
	opt  Optimizer

	logger   *slog.Logger
	metrics  observability.MetricsRecorder
	spans    observability.SpanManager
	observer func(State, NextStep)
}

// New creates a Controller. It panics if a collaborator is nil.
func New(gen Generator, eval Evaluator, opt Optimizer, opts ...Option) *Controller {
	if gen == nil || eval == nil || opt == nil {
		panic("refine: generator, evaluator and optimizer are required")
	}
	c := &Controller{
		gen:     gen,
		eval:    eval,
		opt:     opt,
		metrics: observability.NoopMetrics{},
		spans:   observability.NoopSpanManager{},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Run generates a candidate for topic and refines it until it is approved or
// maxIteration optimize passes have been made. A maxIteration of zero
// evaluates the first candidate and stops.
func (c *Controller) Run(ctx context.Context, topic string, maxIteration int) (Result, error) {
	if maxIteration < 0 {
		return Result{}, fmt.Errorf("%w: %d", ErrInvalidMaxIteration, maxIteration)
	}
	begin := time.Now()
	s, err := c.loop(ctx, NewState(topic, maxIteration))
	if err := c.finish(ctx, begin, s, err); err != nil {
		return Result{}, err
	}
	return s.result(), nil
}

// Continue resumes the loop from s. A state without a candidate, such as
// NewState, starts by generating one. A terminal state is returned unchanged
// without calling any collaborator. The returned State is the last state
// reached, also on error.
func (c *Controller) Continue(ctx context.Context, s State) (Result, State, error) {
	if err := s.validate(); err != nil {
		return Result{}, s, err
	}
	if s.Terminal() {
		return s.result(), s, nil
	}
	begin := time.Now()
	s, err := c.loop(ctx, s)
	if err := c.finish(ctx, begin, s, err); err != nil {
		return Result{}, s, err
	}
	return s.result(), s, nil
}

func (c *Controller) loop(ctx context.Context, s State) (State, error) {
	for {
		step := Next(s)
		if c.observer != nil {
			c.observer(s, step)
		}
		if step == Done {
			return s, nil
		}
		if err := ctx.Err(); err != nil {
			return s, c.fail(step, s, err)
		}

		switch step {
		case Generate:
			candidate, err := c.generate(ctx, s)
			if err != nil {
				return s, c.fail(step, s, err)
			}
			s.Candidate = candidate
		case Evaluate:
			ev, err := c.evaluate(ctx, s)
			if err != nil {
				return s, c.fail(step, s, err)
			}
			s.Verdict, s.Feedback, s.Evaluated = ev.Verdict, ev.Feedback, true
		case Optimize:
			candidate, err := c.optimize(ctx, s)
			if err != nil {
				return s, c.fail(step, s, err)
			}
			s.Candidate = candidate
			s.Feedback = ""
			s.Evaluated = false
			s.Iteration++
		}
		observability.LogRefineStep(c.logger, step.String(), s.Iteration, string(s.Verdict))
	}
}

func (c *Controller) generate(ctx context.Context, s State) (out string, err error) {
	ctx, span := c.spans.StartStepSpan(ctx, Generate.String(), s.Iteration)
	defer func() { c.spans.EndSpanWithError(span, err) }()

	out, err = c.gen.Generate(ctx, s.Topic)
	if err == nil && strings.TrimSpace(out) == "" {
		err = ErrEmptyCandidate
	}
	return out, err
}

func (c *Controller) evaluate(ctx context.Context, s State) (ev Evaluation, err error) {
	ctx, span := c.spans.StartStepSpan(ctx, Evaluate.String(), s.Iteration)
	defer func() { c.spans.EndSpanWithError(span, err) }()

	ev, err = c.eval.Evaluate(ctx, s.Candidate)
	if err != nil {
		return ev, err
	}
	if !ev.Verdict.Valid() {
		return ev, &fgerrors.SchemaValidationError{
			Field:   "evaluation",
			Message: fmt.Sprintf("unknown verdict %q", ev.Verdict),
		}
	}
	return ev, nil
}

func (c *Controller) optimize(ctx context.Context, s State) (out string, err error) {
	ctx, span := c.spans.StartStepSpan(ctx, Optimize.String(), s.Iteration)
	defer func() { c.spans.EndSpanWithError(span, err) }()

	out, err = c.opt.Optimize(ctx, s.Candidate, s.Topic, s.Feedback)
	if err == nil && strings.TrimSpace(out) == "" {
		err = ErrEmptyCandidate
	}
	return out, err
}

func (c *Controller) fail(step NextStep, s State, cause error) *FailedError {
	return &FailedError{Step: step, Candidate: s.Candidate, Iteration: s.Iteration, Cause: cause}
}

// finish logs and records the outcome of a loop and returns err unchanged.
func (c *Controller) finish(ctx context.Context, begin time.Time, s State, err error) error {
	elapsed := time.Since(begin)
	outcome := string(s.Verdict)
	if err != nil {
		outcome = outcomeFailed
		if c.logger != nil {
			c.logger.Warn("refinement aborted",
				slog.Int("iteration", s.Iteration),
				slog.String("error", err.Error()))
		}
	} else {
		observability.LogRefineDone(c.logger, outcome, s.Iteration, float64(elapsed.Microseconds())/1000)
	}
	c.metrics.RecordRefinement(context.WithoutCancel(ctx), outcome, s.Iteration, elapsed)
	return err
}
