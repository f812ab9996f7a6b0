package workflows

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"

	"github.com/randalmurphal/flowlab/pkg/flowgraph"
)

// Batting statistic names; each is computed by the node of the same name.
const (
	StatStrikeRate         = "strike_rate"
	StatBallsPerBoundary   = "balls_per_boundary"
	StatBoundaryPercentage = "boundary_percentage"
)

var (
	// ErrInvalidInnings rejects negative counts and boundaries that score
	// more runs than the batter made.
	ErrInvalidInnings = errors.New("invalid innings")
	// ErrUndefinedStat marks a statistic whose denominator is zero.
	ErrUndefinedStat = errors.New("undefined")
)

// BattingState is the state of the batting statistics workflow.
type BattingState struct {
	Runs, Balls, Fours, Sixes int

	// Stats holds every statistic that could be computed.
	Stats map[string]float64
	// Undefined explains the statistics that could not.
	Undefined map[string]string
	Summary   string
}

// Clone gives each branch its own maps.
func (s BattingState) Clone(string) BattingState {
	s.Stats = maps.Clone(s.Stats)
	s.Undefined = maps.Clone(s.Undefined)
	return s
}

// Merge folds the statistic each branch computed into s.
func (s BattingState) Merge(branches map[string]BattingState) BattingState {
	s = s.Clone("")
	if s.Stats == nil {
		s.Stats = make(map[string]float64)
	}
	if s.Undefined == nil {
		s.Undefined = make(map[string]string)
	}
	for id, b := range branches {
		if v, ok := b.Stats[id]; ok {
			s.Stats[id] = v
		}
		if why, ok := b.Undefined[id]; ok {
			s.Undefined[id] = why
		}
	}
	return s
}

// BattingGraph computes three statistics in parallel and summarises them.
func BattingGraph() (*flowgraph.CompiledGraph[BattingState], error) {
	return flowgraph.NewGraph[BattingState]().
		SetName("batting").
		AddNode("validate", validateInnings).
		AddNode(StatStrikeRate, stat(StatStrikeRate, strikeRate)).
		AddNode(StatBallsPerBoundary, stat(StatBallsPerBoundary, ballsPerBoundary)).
		AddNode(StatBoundaryPercentage, stat(StatBoundaryPercentage, boundaryPercentage)).
		AddNode("summary", summarizeInnings).
		AddEdge("validate", StatStrikeRate).
		AddEdge("validate", StatBallsPerBoundary).
		AddEdge("validate", StatBoundaryPercentage).
		AddEdge(StatStrikeRate, "summary").
		AddEdge(StatBallsPerBoundary, "summary").
		AddEdge(StatBoundaryPercentage, "summary").
		AddEdge("summary", flowgraph.END).
		SetEntry("validate").
		Compile()
}

func validateInnings(_ flowgraph.Context, s BattingState) (BattingState, error) {
	if s.Runs < 0 || s.Balls < 0 || s.Fours < 0 || s.Sixes < 0 {
		return s, fmt.Errorf("%w: counts must not be negative", ErrInvalidInnings)
	}
	if 4*s.Fours+6*s.Sixes > s.Runs {
		return s, fmt.Errorf("%w: boundaries account for more than %d runs", ErrInvalidInnings, s.Runs)
	}
	if s.Fours+s.Sixes > s.Balls {
		return s, fmt.Errorf("%w: more boundaries than balls faced", ErrInvalidInnings)
	}
	return s, nil
}

func stat(name string, fn func(BattingState) (float64, error)) flowgraph.NodeFunc[BattingState] {
	return func(_ flowgraph.Context, s BattingState) (BattingState, error) {
		v, err := fn(s)
		if err != nil {
			s.Undefined = map[string]string{name: err.Error()}
			return s, nil
		}
		s.Stats = map[string]float64{name: v}
		return s, nil
	}
}

func strikeRate(s BattingState) (float64, error) {
	if s.Balls == 0 {
		return 0, fmt.Errorf("%w: no balls faced", ErrUndefinedStat)
	}
	return float64(s.Runs) / float64(s.Balls) * 100, nil
}

func ballsPerBoundary(s BattingState) (float64, error) {
	if s.Fours+s.Sixes == 0 {
		return 0, fmt.Errorf("%w: no boundaries hit", ErrUndefinedStat)
	}
	return float64(s.Balls) / float64(s.Fours+s.Sixes), nil
}

func boundaryPercentage(s BattingState) (float64, error) {
	if s.Runs == 0 {
		return 0, fmt.Errorf("%w: no runs scored", ErrUndefinedStat)
	}
	return float64(4*s.Fours+6*s.Sixes) / float64(s.Runs) * 100, nil
}

func summarizeInnings(_ flowgraph.Context, s BattingState) (BattingState, error) {
	var b strings.Builder
	for _, line := range []struct{ label, key string }{
		{"Strike rate", StatStrikeRate},
		{"Balls per boundary", StatBallsPerBoundary},
		{"Boundary percentage", StatBoundaryPercentage},
	} {
		if v, ok := s.Stats[line.key]; ok {
			fmt.Fprintf(&b, "%s: %.2f\n", line.label, v)
		} else {
			fmt.Fprintf(&b, "%s: n/a (%s)\n", line.label, s.Undefined[line.key])
		}
	}
	s.Summary = b.String()
	return s, nil
}

// RunBatting computes the batting statistics for one innings.
func RunBatting(ctx context.Context, env Env, runs, balls, fours, sixes int) (BattingState, error) {
	g, err := BattingGraph()
	if err != nil {
		return BattingState{}, err
	}
	in := BattingState{Runs: runs, Balls: balls, Fours: fours, Sixes: sixes}
	return g.Run(env.engineContext(ctx), in, env.runOptions()...)
}
