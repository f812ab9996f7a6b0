package refine

import (
	"context"
	"fmt"
	"sync"
)

// script is a scripted generator, evaluator and optimizer in one.
type script struct {
	mu sync.Mutex

	verdicts []Verdict
	// evalErrs[i] fails the i-th evaluation (0-based) when set.
	evalErrs map[int]error
	genErr   error
	optErr   error

	generated  int
	evaluated  []string
	optimized  int
	feedbackIn []string
}

func newScript(verdicts ...Verdict) *script {
	return &script{verdicts: verdicts, evalErrs: map[int]error{}}
}

func (s *script) Generate(_ context.Context, topic string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generated++
	if s.genErr != nil {
		return "", s.genErr
	}
	return "draft about " + topic, nil
}

func (s *script) Evaluate(_ context.Context, candidate string) (Evaluation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.evaluated)
	s.evaluated = append(s.evaluated, candidate)
	if err := s.evalErrs[n]; err != nil {
		return Evaluation{}, err
	}
	v := NeedsImprovement
	if n < len(s.verdicts) {
		v = s.verdicts[n]
	}
	return Evaluation{Verdict: v, Feedback: fmt.Sprintf("feedback %d", n+1)}, nil
}

func (s *script) Optimize(_ context.Context, candidate, _, feedback string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.optErr != nil {
		return "", s.optErr
	}
	s.optimized++
	s.feedbackIn = append(s.feedbackIn, feedback)
	return fmt.Sprintf("revision %d", s.optimized), nil
}

func (s *script) controller(opts ...Option) *Controller {
	return New(s, s, s, opts...)
}
