package flowgraph

// END is the terminal target. An edge to END finishes the run.
const END = "__end__"

// NodeFunc does one unit of work. It receives the state by value and returns
// the updated state.
//
//	func discriminant(ctx flowgraph.Context, s Quadratic) (Quadratic, error) {
//	    s.Discriminant = s.B*s.B - 4*s.A*s.C
//	    return s, nil
//	}
type NodeFunc[S any] func(ctx Context, state S) (S, error)

// RouterFunc picks the next node after a conditional node. It must return a
// registered node ID or END.
type RouterFunc[S any] func(ctx Context, state S) string
