package workflows

import (
	"bytes"
	"context"
	"errors"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/randalmurphal/flowlab/internal/prompts"
	"github.com/randalmurphal/flowlab/pkg/flowgraph"
)

// ErrEmptyTitle is returned when the blog workflow gets no title.
var ErrEmptyTitle = errors.New("blog title is empty")

// BlogState is the state of the outline-then-write chain.
type BlogState struct {
	Title   string
	Outline string
	Content string
}

type blog struct {
	prompts *prompts.Catalog
	gen     Generation
}

// BlogGraph drafts an outline for a title, then writes the post from it.
func BlogGraph(env Env) (*flowgraph.CompiledGraph[BlogState], error) {
	b := blog{prompts: env.prompts(), gen: env.Gen}
	return flowgraph.NewGraph[BlogState]().
		SetName("blog").
		AddNode("create_outline", b.outline).
		AddNode("generate_blog", b.post).
		AddEdge("create_outline", "generate_blog").
		AddEdge("generate_blog", flowgraph.END).
		SetEntry("create_outline").
		Compile()
}

func (b blog) outline(ctx flowgraph.Context, s BlogState) (BlogState, error) {
	s.Title = strings.TrimSpace(s.Title)
	if s.Title == "" {
		return s, ErrEmptyTitle
	}
	out, err := complete(ctx, ctx.LLM(), b.prompts, b.gen, prompts.BlogOutline, map[string]any{"title": s.Title})
	if err != nil {
		return s, err
	}
	s.Outline = out
	return s, nil
}

func (b blog) post(ctx flowgraph.Context, s BlogState) (BlogState, error) {
	out, err := complete(ctx, ctx.LLM(), b.prompts, b.gen, prompts.BlogPost, map[string]any{
		"title":   s.Title,
		"outline": s.Outline,
	})
	if err != nil {
		return s, err
	}
	s.Content = out
	return s, nil
}

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// RenderHTML converts Markdown to HTML. Raw HTML in the input is omitted.
func RenderHTML(md string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(md), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RunBlog writes a post for title.
func RunBlog(ctx context.Context, env Env, title string) (BlogState, error) {
	g, err := BlogGraph(env)
	if err != nil {
		return BlogState{}, err
	}
	return g.Run(env.engineContext(ctx), BlogState{Title: title}, env.runOptions()...)
}
