// Package benchmarks measures the graph engine, the checkpoint stores and
// the refine loop.
package benchmarks

import (
	"context"
	"fmt"
	"testing"

	"github.com/randalmurphal/flowlab/pkg/flowgraph"
)

type State struct {
	Value int
	Marks map[string]int
}

func (s State) Clone(string) State {
	marks := make(map[string]int, len(s.Marks))
	for k, v := range s.Marks {
		marks[k] = v
	}
	s.Marks = marks
	return s
}

func (s State) Merge(branches map[string]State) State {
	out := s.Clone("")
	for id, b := range branches {
		out.Marks[id] = b.Value
	}
	return out
}

func step(_ flowgraph.Context, s State) (State, error) {
	s.Value++
	return s, nil
}

func mustCompile(b *testing.B, g *flowgraph.Graph[State]) *flowgraph.CompiledGraph[State] {
	b.Helper()
	compiled, err := g.Compile()
	if err != nil {
		b.Fatal(err)
	}
	return compiled
}

func linear(n int) *flowgraph.Graph[State] {
	g := flowgraph.NewGraph[State]()
	for i := range n {
		g.AddNode(fmt.Sprintf("n%d", i), step)
		if i > 0 {
			g.AddEdge(fmt.Sprintf("n%d", i-1), fmt.Sprintf("n%d", i))
		}
	}
	return g.AddEdge(fmt.Sprintf("n%d", n-1), flowgraph.END).SetEntry("n0")
}

func loop(iterations int) *flowgraph.Graph[State] {
	return flowgraph.NewGraph[State]().
		AddNode("work", step).
		AddConditionalEdge("work", func(_ flowgraph.Context, s State) string {
			if s.Value >= iterations {
				return flowgraph.END
			}
			return "work"
		}).
		SetEntry("work")
}

func fanOut(width int) *flowgraph.Graph[State] {
	g := flowgraph.NewGraph[State]().
		AddNode("start", step).
		AddNode("join", step).
		AddEdge("join", flowgraph.END).
		SetEntry("start")
	for i := range width {
		id := fmt.Sprintf("b%d", i)
		g.AddNode(id, step).AddEdge("start", id).AddEdge(id, "join")
	}
	return g
}

func BenchmarkCompile_Linear_50(b *testing.B) {
	for b.Loop() {
		if _, err := linear(50).Compile(); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkRun_Linear(b *testing.B) {
	for _, n := range []int{5, 50} {
		b.Run(fmt.Sprint(n), func(b *testing.B) {
			compiled := mustCompile(b, linear(n))
			ctx := flowgraph.NewContext(context.Background())
			for b.Loop() {
				_, _ = compiled.Run(ctx, State{})
			}
		})
	}
}

func BenchmarkRun_Loop_10(b *testing.B) {
	compiled := mustCompile(b, loop(10))
	ctx := flowgraph.NewContext(context.Background())
	for b.Loop() {
		_, _ = compiled.Run(ctx, State{})
	}
}

func BenchmarkRun_ForkJoin(b *testing.B) {
	for _, width := range []int{3, 16} {
		b.Run(fmt.Sprint(width), func(b *testing.B) {
			compiled := mustCompile(b, fanOut(width))
			ctx := flowgraph.NewContext(context.Background())
			for b.Loop() {
				_, _ = compiled.Run(ctx, State{})
			}
		})
	}
}
