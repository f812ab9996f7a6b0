package refine

// NextStep is the action the loop takes from a given State.
type NextStep int

const (
	// Generate produces the first candidate.
	Generate NextStep = iota
	Evaluate
	Optimize
	Done
)

func (s NextStep) String() string {
	switch s {
	case Generate:
		return "generate"
	case Evaluate:
		return "evaluate"
	case Optimize:
		return "optimize"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

// Next is the transition function of the loop. A state without a candidate
// generates one; an unevaluated candidate is always evaluated first; the loop
// is done once the candidate is approved or the optimize passes have reached
// the cap.
func Next(s State) NextStep {
	if !s.Generated() {
		return Generate
	}
	if !s.Evaluated {
		return Evaluate
	}
	if s.Verdict == Approved || s.Iteration >= s.MaxIteration {
		return Done
	}
	return Optimize
}
