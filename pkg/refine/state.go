package refine

import (
	"fmt"
)

// Verdict is an evaluator's judgement of a candidate.
type Verdict string

const (
	Approved         Verdict = "approved"
	NeedsImprovement Verdict = "needs_improvement"
)

// Valid reports whether v is one of the known verdicts.
func (v Verdict) Valid() bool {
	return v == Approved || v == NeedsImprovement
}

// ParseVerdict converts the evaluator's wire value to a Verdict.
func ParseVerdict(s string) (Verdict, error) {
	v := Verdict(s)
	if !v.Valid() {
		return "", fmt.Errorf("unknown verdict %q", s)
	}
	return v, nil
}

// Evaluation is the result of one evaluator call.
type Evaluation struct {
	Verdict  Verdict `json:"evaluation"`
	Feedback string  `json:"feedback"`
}

// State is the unit of work threaded through the loop. It is a plain value:
// callers may save it and hand it back to Controller.Continue.
type State struct {
	Topic     string  `json:"topic"`
	Candidate string  `json:"candidate"`
	Verdict   Verdict `json:"verdict,omitempty"`
	// Feedback is the latest evaluator rationale. It is cleared once the
	// optimizer has consumed it.
	Feedback string `json:"feedback,omitempty"`
	// Iteration counts optimize passes.
	Iteration    int `json:"iteration"`
	MaxIteration int `json:"max_iteration"`
	// Evaluated is true when Verdict judges the current Candidate.
	Evaluated bool `json:"evaluated"`
}

// NewState returns the initial state for topic. Its first step is Generate.
func NewState(topic string, maxIteration int) State {
	return State{Topic: topic, MaxIteration: maxIteration}
}

// Generated reports whether s holds a candidate to work on.
func (s State) Generated() bool {
	return s.Candidate != "" || s.Evaluated || s.Iteration > 0
}

// Terminal reports whether the loop has nothing left to do for s.
func (s State) Terminal() bool {
	return Next(s) == Done
}

func (s State) validate() error {
	if s.MaxIteration < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMaxIteration, s.MaxIteration)
	}
	if s.Iteration < 0 || s.Iteration > s.MaxIteration {
		return fmt.Errorf("%w: iteration %d outside [0, %d]", ErrInvalidState, s.Iteration, s.MaxIteration)
	}
	if s.Evaluated && !s.Verdict.Valid() {
		return fmt.Errorf("%w: evaluated with verdict %q", ErrInvalidState, s.Verdict)
	}
	return nil
}

func (s State) result() Result {
	return Result{Candidate: s.Candidate, Verdict: s.Verdict, Iteration: s.Iteration}
}

// Result is the terminal outcome of a loop.
type Result struct {
	Candidate string  `json:"candidate"`
	Verdict   Verdict `json:"verdict"`
	Iteration int     `json:"iteration"`
}

// Approved reports whether the final candidate was approved.
func (r Result) Approved() bool {
	return r.Verdict == Approved
}
