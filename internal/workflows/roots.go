package workflows

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/randalmurphal/flowlab/pkg/flowgraph"
)

// ErrNotQuadratic rejects equations whose x^2 coefficient is zero.
var ErrNotQuadratic = errors.New("not a quadratic equation: a is zero")

// RootKind classifies the roots of a quadratic.
type RootKind string

const (
	TwoRealRoots RootKind = "real"
	RepeatedRoot RootKind = "repeated"
	NoRealRoots  RootKind = "none"
)

// RootsState is the state of the quadratic roots workflow.
type RootsState struct {
	A, B, C      float64
	Equation     string
	Discriminant float64
	Kind         RootKind
	Roots        []float64
	Result       string
}

// RootsGraph computes the real roots of a*x^2 + b*x + c, branching on the
// sign of the discriminant.
func RootsGraph() (*flowgraph.CompiledGraph[RootsState], error) {
	return flowgraph.NewGraph[RootsState]().
		SetName("roots").
		AddNode("show_equation", showEquation).
		AddNode("calculate_discriminant", calculateDiscriminant).
		AddNode("real_root", realRoots).
		AddNode("repeated_root", repeatedRoot).
		AddNode("no_real_root", noRealRoots).
		AddEdge("show_equation", "calculate_discriminant").
		AddConditionalEdge("calculate_discriminant", routeDiscriminant).
		AddEdge("real_root", flowgraph.END).
		AddEdge("repeated_root", flowgraph.END).
		AddEdge("no_real_root", flowgraph.END).
		SetEntry("show_equation").
		Compile()
}

func showEquation(_ flowgraph.Context, s RootsState) (RootsState, error) {
	if s.A == 0 {
		return s, ErrNotQuadratic
	}
	s.Equation = fmt.Sprintf("%sx^2%+gx%+g", num(s.A), s.B, s.C)
	return s, nil
}

func calculateDiscriminant(_ flowgraph.Context, s RootsState) (RootsState, error) {
	s.Discriminant = s.B*s.B - 4*s.A*s.C
	return s, nil
}

func routeDiscriminant(_ flowgraph.Context, s RootsState) string {
	switch {
	case s.Discriminant > 0:
		return "real_root"
	case s.Discriminant == 0:
		return "repeated_root"
	default:
		return "no_real_root"
	}
}

func realRoots(_ flowgraph.Context, s RootsState) (RootsState, error) {
	sq := math.Sqrt(s.Discriminant)
	r1 := (-s.B + sq) / (2 * s.A)
	r2 := (-s.B - sq) / (2 * s.A)
	s.Kind = TwoRealRoots
	s.Roots = []float64{r1, r2}
	s.Result = fmt.Sprintf("Root 1: %s, Root 2: %s", num(r1), num(r2))
	return s, nil
}

func repeatedRoot(_ flowgraph.Context, s RootsState) (RootsState, error) {
	r := -s.B / (2 * s.A)
	if r == 0 {
		r = 0 // drop negative zero
	}
	s.Kind = RepeatedRoot
	s.Roots = []float64{r}
	s.Result = fmt.Sprintf("Root: %s", num(r))
	return s, nil
}

func noRealRoots(_ flowgraph.Context, s RootsState) (RootsState, error) {
	s.Kind = NoRealRoots
	s.Roots = nil
	s.Result = "No real roots exist"
	return s, nil
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// RunRoots solves a*x^2 + b*x + c = 0.
func RunRoots(ctx context.Context, env Env, a, b, c float64) (RootsState, error) {
	g, err := RootsGraph()
	if err != nil {
		return RootsState{}, err
	}
	return g.Run(env.engineContext(ctx), RootsState{A: a, B: b, C: c}, env.runOptions()...)
}
