package workflows

import (
	"context"
	"errors"
	"maps"
	"strconv"
	"strings"

	"github.com/randalmurphal/flowlab/internal/prompts"
	"github.com/randalmurphal/flowlab/pkg/flowgraph"
	"github.com/randalmurphal/flowlab/pkg/flowgraph/llm"
)

// Essay aspects; each is reviewed by the node of the same name.
const (
	AspectClarity  = "clarity"
	AspectDepth    = "depth"
	AspectLanguage = "language"
)

// ErrEmptyEssay is returned for blank input.
var ErrEmptyEssay = errors.New("essay is empty")

// EssayReviewSchema is the structured contract of an aspect reviewer.
var EssayReviewSchema = llm.Schema{
	Name: "essay_review",
	Fields: []llm.Field{
		{Name: "feedback", Kind: llm.KindString, Description: "detailed feedback on the aspect"},
		{Name: "score", Kind: llm.KindInteger, Description: "score for the aspect", Bounded: true, Min: 0, Max: 10},
	},
}

// Review is one aspect's feedback and score.
type Review struct {
	Feedback string `json:"feedback"`
	Score    int    `json:"score"`
}

// EssayState is the state of the essay scoring workflow.
type EssayState struct {
	Essay         string
	Reviews       map[string]Review
	FinalScore    float64
	FinalFeedback string
}

func (s EssayState) Clone(string) EssayState {
	s.Reviews = maps.Clone(s.Reviews)
	return s
}

func (s EssayState) Merge(branches map[string]EssayState) EssayState {
	reviews := make(map[string]Review, len(branches))
	maps.Copy(reviews, s.Reviews)
	for id, b := range branches {
		if r, ok := b.Reviews[id]; ok {
			reviews[id] = r
		}
	}
	s.Reviews = reviews
	return s
}

// essay holds the prompt settings shared by the essay nodes.
type essay struct {
	prompts *prompts.Catalog
	gen     Generation
}

// EssayGraph reviews an essay on three aspects in parallel and combines the
// reviews into a mean score and a summarised feedback.
func EssayGraph(env Env) (*flowgraph.CompiledGraph[EssayState], error) {
	e := essay{prompts: env.prompts(), gen: env.Gen}
	return flowgraph.NewGraph[EssayState]().
		SetName("essay").
		AddNode("prepare", prepareEssay).
		AddNode(AspectClarity, e.review(AspectClarity)).
		AddNode(AspectDepth, e.review(AspectDepth)).
		AddNode(AspectLanguage, e.review(AspectLanguage)).
		AddNode("final", e.final).
		AddEdge("prepare", AspectClarity).
		AddEdge("prepare", AspectDepth).
		AddEdge("prepare", AspectLanguage).
		AddEdge(AspectClarity, "final").
		AddEdge(AspectDepth, "final").
		AddEdge(AspectLanguage, "final").
		AddEdge("final", flowgraph.END).
		SetEntry("prepare").
		SetForkJoinConfig(flowgraph.ForkJoinConfig{FailFast: true}).
		Compile()
}

func prepareEssay(_ flowgraph.Context, s EssayState) (EssayState, error) {
	s.Essay = llm.CleanText(s.Essay)
	if s.Essay == "" {
		return s, ErrEmptyEssay
	}
	return s, nil
}

func (e essay) review(aspect string) flowgraph.NodeFunc[EssayState] {
	return func(ctx flowgraph.Context, s EssayState) (EssayState, error) {
		client := ctx.LLM()
		if client == nil {
			return s, ErrNoLLM
		}
		req, err := e.prompts.Request(prompts.EssayEvaluate, map[string]any{"aspect": aspect, "essay": s.Essay})
		if err != nil {
			return s, err
		}
		out, err := llm.CompleteStructured(ctx, client, e.gen.apply(req), EssayReviewSchema)
		if err != nil {
			return s, err
		}
		s.Reviews = map[string]Review{aspect: {
			Feedback: llm.CleanText(out.Get("feedback").String()),
			Score:    int(out.Get("score").Int()),
		}}
		return s, nil
	}
}

func (e essay) final(ctx flowgraph.Context, s EssayState) (EssayState, error) {
	total := 0
	for _, r := range s.Reviews {
		total += r.Score
	}
	if len(s.Reviews) > 0 {
		s.FinalScore = float64(total) / float64(len(s.Reviews))
	}

	summary, err := complete(ctx, ctx.LLM(), e.prompts, e.gen, prompts.EssaySummary, map[string]any{
		AspectClarity:  s.Reviews[AspectClarity].Feedback,
		AspectDepth:    s.Reviews[AspectDepth].Feedback,
		AspectLanguage: s.Reviews[AspectLanguage].Feedback,
	})
	if err != nil {
		return s, err
	}
	s.FinalFeedback = summary
	return s, nil
}

// Report formats the scores for display.
func (s EssayState) Report() string {
	var b strings.Builder
	for _, a := range []string{AspectClarity, AspectDepth, AspectLanguage} {
		r := s.Reviews[a]
		b.WriteString(strings.ToUpper(a[:1]) + a[1:])
		b.WriteString(": ")
		b.WriteString(formatScore(float64(r.Score)))
		b.WriteString("/10\n  ")
		b.WriteString(r.Feedback)
		b.WriteString("\n")
	}
	b.WriteString("Final: " + formatScore(s.FinalScore) + "/10\n  " + s.FinalFeedback + "\n")
	return b.String()
}

func formatScore(f float64) string {
	return strings.TrimSuffix(strings.TrimRight(strconv.FormatFloat(f, 'f', 2, 64), "0"), ".")
}

// RunEssay scores essay.
func RunEssay(ctx context.Context, env Env, text string) (EssayState, error) {
	g, err := EssayGraph(env)
	if err != nil {
		return EssayState{}, err
	}
	return g.Run(env.engineContext(ctx), EssayState{Essay: text}, env.runOptions()...)
}
