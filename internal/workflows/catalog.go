package workflows

import (
	"context"
	"fmt"
	"strconv"

	"github.com/randalmurphal/flowlab/pkg/flowgraph/registry"
)

// Input holds a workflow's named string parameters.
type Input map[string]string

func (in Input) required(key string) (string, error) {
	v, ok := in[key]
	if !ok || v == "" {
		return "", fmt.Errorf("missing input %q", key)
	}
	return v, nil
}

func (in Input) number(key string) (float64, error) {
	v, err := in.required(key)
	if err != nil {
		return 0, err
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("input %q: %w", key, err)
	}
	return f, nil
}

func (in Input) count(key string) (int, error) {
	v, err := in.required(key)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("input %q: %w", key, err)
	}
	return n, nil
}

// Workflow is a catalog entry: a named, runnable workflow that reports its
// result as text.
type Workflow struct {
	Name        string
	Description string
	// Params are the input keys the workflow reads, in order.
	Params []string
	Run    func(ctx context.Context, env Env, in Input) (string, error)
}

// NewCatalog returns the bundled workflows keyed by name.
func NewCatalog() *registry.Registry[string, Workflow] {
	r := registry.New[string, Workflow]()
	for _, wf := range []Workflow{
		{
			Name:        "tweet",
			Description: "write a post and refine it until an editor approves",
			Params:      []string{"topic", "max_iteration"},
			Run:         runTweetEntry,
		},
		{
			Name:        "roots",
			Description: "solve a quadratic equation, branching on the discriminant",
			Params:      []string{"a", "b", "c"},
			Run:         runRootsEntry,
		},
		{
			Name:        "batting",
			Description: "compute batting statistics in parallel",
			Params:      []string{"runs", "balls", "fours", "sixes"},
			Run:         runBattingEntry,
		},
		{
			Name:        "essay",
			Description: "score an essay on clarity, depth and language",
			Params:      []string{"essay"},
			Run:         runEssayEntry,
		},
		{
			Name:        "blog",
			Description: "outline a blog post, then write it",
			Params:      []string{"title", "format"},
			Run:         runBlogEntry,
		},
	} {
		r.MustRegister(wf.Name, wf)
	}
	return r
}

func runTweetEntry(ctx context.Context, env Env, in Input) (string, error) {
	topic, err := in.required("topic")
	if err != nil {
		return "", err
	}
	maxIteration := env.maxIteration()
	if _, ok := in["max_iteration"]; ok {
		if maxIteration, err = in.count("max_iteration"); err != nil {
			return "", err
		}
	}
	res, err := RunTweet(ctx, env, topic, maxIteration)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s\n\nverdict: %s after %d revision(s)\n", res.Candidate, res.Verdict, res.Iteration), nil
}

func runRootsEntry(ctx context.Context, env Env, in Input) (string, error) {
	var coef [3]float64
	for i, key := range []string{"a", "b", "c"} {
		f, err := in.number(key)
		if err != nil {
			return "", err
		}
		coef[i] = f
	}
	s, err := RunRoots(ctx, env, coef[0], coef[1], coef[2])
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s = 0\ndiscriminant: %s\n%s\n", s.Equation, num(s.Discriminant), s.Result), nil
}

func runBattingEntry(ctx context.Context, env Env, in Input) (string, error) {
	var counts [4]int
	for i, key := range []string{"runs", "balls", "fours", "sixes"} {
		n, err := in.count(key)
		if err != nil {
			return "", err
		}
		counts[i] = n
	}
	s, err := RunBatting(ctx, env, counts[0], counts[1], counts[2], counts[3])
	if err != nil {
		return "", err
	}
	return s.Summary, nil
}

func runEssayEntry(ctx context.Context, env Env, in Input) (string, error) {
	text, err := in.required("essay")
	if err != nil {
		return "", err
	}
	s, err := RunEssay(ctx, env, text)
	if err != nil {
		return "", err
	}
	return s.Report(), nil
}

func runBlogEntry(ctx context.Context, env Env, in Input) (string, error) {
	title, err := in.required("title")
	if err != nil {
		return "", err
	}
	format := in["format"]
	switch format {
	case "", "markdown", "html":
	default:
		return "", fmt.Errorf("unknown format %q", format)
	}

	s, err := RunBlog(ctx, env, title)
	if err != nil {
		return "", err
	}
	if format == "html" {
		return RenderHTML(s.Content)
	}
	return s.Content + "\n", nil
}
