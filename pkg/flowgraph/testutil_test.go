package flowgraph

import (
	"context"
)

// Counter is the smallest useful state.
type Counter struct {
	Value int
}

// Trail records the nodes a run passed through.
type Trail struct {
	Visited []string
	Loops   int
	Done    bool
}

func increment(_ Context, s Counter) (Counter, error) {
	s.Value++
	return s, nil
}

func visit(name string) NodeFunc[Trail] {
	return func(_ Context, s Trail) (Trail, error) {
		s.Visited = append(s.Visited, name)
		return s, nil
	}
}

func failWith(err error) NodeFunc[Trail] {
	return func(_ Context, s Trail) (Trail, error) {
		return s, err
	}
}

func panicWith(value any) NodeFunc[Trail] {
	return func(_ Context, _ Trail) (Trail, error) {
		panic(value)
	}
}

func testCtx() Context {
	return NewContext(context.Background())
}

func mustCompile[S any](g *Graph[S]) *CompiledGraph[S] {
	compiled, err := g.Compile()
	if err != nil {
		panic(err)
	}
	return compiled
}
