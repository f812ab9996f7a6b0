// Package chat is a multi-turn chatbot whose threads are checkpointed by the
// graph engine. Long threads are summarised and each model call only sees
// the summary plus the newest messages.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/randalmurphal/flowlab/internal/prompts"
	"github.com/randalmurphal/flowlab/pkg/flowgraph"
	"github.com/randalmurphal/flowlab/pkg/flowgraph/checkpoint"
	"github.com/randalmurphal/flowlab/pkg/flowgraph/llm"
)

var (
	// ErrEmptyMessage is returned by Send for blank input.
	ErrEmptyMessage = errors.New("message is empty")
	// ErrNoReply is returned when the model answers with nothing.
	ErrNoReply = errors.New("model returned an empty reply")
)

// State is the checkpointed state of a thread.
type State struct {
	Messages []llm.Message `json:"messages"`
	Summary  string        `json:"summary,omitempty"`
	// Summarized counts the leading messages already in Summary.
	Summarized int `json:"summarized,omitempty"`
}

// Thread describes a stored conversation.
type Thread struct {
	ID        string
	Title     string
	Messages  int
	UpdatedAt time.Time
}

// Bot answers messages on checkpointed threads.
type Bot struct {
	graph   *flowgraph.CompiledGraph[State]
	store   checkpoint.Store
	client  llm.Client
	prompts *prompts.Catalog
	gen     llm.CompletionRequest
	logger  *slog.Logger
	runOpts []flowgraph.RunOption
}

// Option configures a Bot.
type Option func(*Bot)

// WithLogger sets the logger used for thread and engine logs.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bot) { b.logger = logger }
}

// WithGeneration sets the output cap and temperature of replies.
func WithGeneration(maxTokens int, temperature *float64) Option {
	return func(b *Bot) {
		b.gen.MaxTokens = maxTokens
		b.gen.Temperature = temperature
	}
}

// WithPrompts replaces the built-in prompt catalog.
func WithPrompts(cat *prompts.Catalog) Option {
	return func(b *Bot) { b.prompts = cat }
}

// WithRunOptions adds engine run options, such as metrics or tracing.
func WithRunOptions(opts ...flowgraph.RunOption) Option {
	return func(b *Bot) { b.runOpts = append(b.runOpts, opts...) }
}

// New builds a Bot that answers with client and keeps threads in store.
func New(client llm.Client, store checkpoint.Store, opts ...Option) (*Bot, error) {
	if client == nil || store == nil {
		return nil, errors.New("chat: client and store are required")
	}
	b := &Bot{
		store:   store,
		client:  client,
		prompts: prompts.Default(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}

	g, err := flowgraph.NewGraph[State]().
		SetName("chat").
		AddNode("summarize", b.summarize).
		AddNode("chat", b.reply).
		AddEdge("summarize", "chat").
		AddEdge("chat", flowgraph.END).
		SetEntry("summarize").
		Compile()
	if err != nil {
		return nil, err
	}
	b.graph = g
	return b, nil
}

// NewThreadID returns a fresh thread ID.
func NewThreadID() string {
	return uuid.NewString()
}

// Send appends text to the thread, runs the chat graph and returns the
// reply. Unknown threads are created.
func (b *Bot) Send(ctx context.Context, threadID, text string) (string, error) {
	text = llm.CleanText(text)
	if text == "" {
		return "", ErrEmptyMessage
	}
	state, err := b.load(ctx, threadID)
	if err != nil {
		return "", err
	}
	state.Messages = append(state.Messages, llm.Message{Role: llm.RoleUser, Content: text})

	fctx := flowgraph.NewContext(ctx,
		flowgraph.WithLLM(b.client),
		flowgraph.WithLogger(b.logger),
		flowgraph.WithContextRunID(threadID))
	opts := append([]flowgraph.RunOption{
		flowgraph.WithCheckpointing(b.store),
		flowgraph.WithRunID(threadID),
		flowgraph.WithCheckpointFailureFatal(true),
	}, b.runOpts...)

	result, err := b.graph.Run(fctx, state, opts...)
	if err != nil {
		return "", err
	}
	last := result.Messages[len(result.Messages)-1]
	return last.Content, nil
}

// History returns the visible messages of a thread; an unknown thread has
// none.
func (b *Bot) History(ctx context.Context, threadID string) ([]llm.Message, error) {
	state, err := b.load(ctx, threadID)
	if err != nil {
		return nil, err
	}
	return Visible(state.Messages), nil
}

// Threads lists stored threads, most recent first.
func (b *Bot) Threads(ctx context.Context) ([]Thread, error) {
	runs, err := b.store.Runs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}
	threads := make([]Thread, 0, len(runs))
	for _, r := range runs {
		state, err := b.load(ctx, r.RunID)
		if err != nil {
			return nil, err
		}
		threads = append(threads, Thread{
			ID:        r.RunID,
			Title:     Title(state.Messages),
			Messages:  len(Visible(state.Messages)),
			UpdatedAt: r.UpdatedAt,
		})
	}
	return threads, nil
}

// Delete removes a thread.
func (b *Bot) Delete(ctx context.Context, threadID string) error {
	return b.store.DeleteRun(ctx, threadID)
}

func (b *Bot) load(ctx context.Context, threadID string) (State, error) {
	if threadID == "" {
		return State{}, flowgraph.ErrRunIDRequired
	}
	state, err := flowgraph.LatestState[State](ctx, b.store, threadID)
	if errors.Is(err, flowgraph.ErrNoCheckpoints) {
		return State{}, nil
	}
	if err != nil {
		return State{}, err
	}
	return dropUnanswered(state), nil
}

// dropUnanswered removes trailing user messages. A turn whose reply failed
// is checkpointed after summarize with its message still unanswered.
func dropUnanswered(s State) State {
	n := len(s.Messages)
	for n > 0 && s.Messages[n-1].Role == llm.RoleUser {
		n--
	}
	s.Messages = s.Messages[:n]
	s.Summarized = min(s.Summarized, n)
	return s
}

// summarize folds messages older than the newest KeepRecent into the
// running summary once the thread is longer than SummarizeAfter. Messages
// are kept; only Summarized advances.
func (b *Bot) summarize(ctx flowgraph.Context, s State) (State, error) {
	if len(s.Messages) <= SummarizeAfter {
		return s, nil
	}
	upto := len(s.Messages) - KeepRecent
	if upto <= s.Summarized {
		return s, nil
	}

	req, err := b.prompts.Request(prompts.ChatSummary, map[string]any{
		"summary":  s.Summary,
		"messages": transcript(s.Messages[s.Summarized:upto]),
	})
	if err != nil {
		return s, err
	}
	resp, err := ctx.LLM().Complete(ctx, req)
	if err != nil {
		return s, fmt.Errorf("summarize: %w", err)
	}
	s.Summary = llm.CleanText(resp.Content)
	s.Summarized = upto
	ctx.Logger().Debug("thread summarised",
		slog.String("thread_id", ctx.RunID()),
		slog.Int("summarized", upto))
	return s, nil
}

// reply answers the newest message using the summary and a token-bounded
// window of recent history.
func (b *Bot) reply(ctx flowgraph.Context, s State) (State, error) {
	system, _, err := b.prompts.Text(prompts.ChatSystem, nil)
	if err != nil {
		return s, err
	}
	if s.Summary != "" {
		summary, _, err := b.prompts.Text(prompts.ChatSummaryContext, map[string]any{"summary": s.Summary})
		if err != nil {
			return s, err
		}
		system = llm.CleanText(system) + "\n\n" + summary
	}

	req := b.gen
	req.SystemPrompt = llm.CleanText(system)
	req.Messages = Trim(s.Messages, MaxContextTokens)

	resp, err := ctx.LLM().Complete(ctx, req)
	if err != nil {
		return s, err
	}
	text := llm.CleanText(resp.Content)
	if text == "" {
		return s, ErrNoReply
	}
	s.Messages = append(s.Messages, llm.Message{Role: llm.RoleAssistant, Content: text})
	return s, nil
}
