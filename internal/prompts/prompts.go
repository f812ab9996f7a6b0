// Package prompts holds the prompt catalog the workflows send to the model.
package prompts

import (
	_ "embed"
	"fmt"
	"slices"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/randalmurphal/flowlab/pkg/flowgraph/llm"
	"github.com/randalmurphal/flowlab/pkg/flowgraph/template"
)

//go:embed prompts.yaml
var builtin []byte

// Names of the built-in prompts.
const (
	TweetGenerate      = "tweet_generate"
	TweetEvaluate      = "tweet_evaluate"
	TweetOptimize      = "tweet_optimize"
	EssayEvaluate      = "essay_evaluate"
	EssaySummary       = "essay_summary"
	BlogOutline        = "blog_outline"
	BlogPost           = "blog_post"
	ChatSystem         = "chat_system"
	ChatSummary        = "chat_summary"
	ChatSummaryContext = "chat_summary_context"
)

// Prompt is a system and user message pair with ${var} placeholders.
type Prompt struct {
	System string   `yaml:"system"`
	User   string   `yaml:"user"`
	Vars   []string `yaml:"vars"`
}

// Catalog renders named prompts.
type Catalog struct {
	prompts map[string]Prompt
	exp     *template.Expander
}

// Parse reads a YAML catalog and checks every prompt's placeholders against
// its declared vars.
func Parse(data []byte) (*Catalog, error) {
	var raw map[string]Prompt
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse prompt catalog: %w", err)
	}
	c := &Catalog{prompts: raw, exp: template.NewExpander()}
	for name, p := range raw {
		if p.System == "" && p.User == "" {
			return nil, fmt.Errorf("prompt %s: empty", name)
		}
		used := append(c.exp.Variables(p.System), c.exp.Variables(p.User)...)
		for _, v := range used {
			if !slices.Contains(p.Vars, v) {
				return nil, fmt.Errorf("prompt %s: placeholder ${%s} not declared in vars", name, v)
			}
		}
		for _, v := range p.Vars {
			if !slices.Contains(used, v) {
				return nil, fmt.Errorf("prompt %s: var %s is never used", name, v)
			}
		}
	}
	return c, nil
}

var defaultCatalog = sync.OnceValue(func() *Catalog {
	c, err := Parse(builtin)
	if err != nil {
		panic(err)
	}
	return c
})

// Default returns the embedded catalog.
func Default() *Catalog {
	return defaultCatalog()
}

// Names lists the prompts in the catalog.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.prompts))
	for n := range c.prompts {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Get returns the raw prompt.
func (c *Catalog) Get(name string) (Prompt, bool) {
	p, ok := c.prompts[name]
	return p, ok
}

// Text expands the prompt's system and user text.
func (c *Catalog) Text(name string, vars map[string]any) (system, user string, err error) {
	p, ok := c.prompts[name]
	if !ok {
		return "", "", fmt.Errorf("unknown prompt %q", name)
	}
	if system, err = c.exp.Expand(p.System, vars); err != nil {
		return "", "", fmt.Errorf("prompt %s: %w", name, err)
	}
	if user, err = c.exp.Expand(p.User, vars); err != nil {
		return "", "", fmt.Errorf("prompt %s: %w", name, err)
	}
	return system, user, nil
}

// Request renders the prompt as a single-turn completion request.
func (c *Catalog) Request(name string, vars map[string]any) (llm.CompletionRequest, error) {
	system, user, err := c.Text(name, vars)
	if err != nil {
		return llm.CompletionRequest{}, err
	}
	return llm.UserPrompt(system, user), nil
}
