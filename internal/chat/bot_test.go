package chat

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/flowlab/internal/prompts"
	"github.com/randalmurphal/flowlab/pkg/flowgraph"
	"github.com/randalmurphal/flowlab/pkg/flowgraph/checkpoint"
	"github.com/randalmurphal/flowlab/pkg/flowgraph/llm"
)

// fakeModel echoes chat turns and answers summary requests with a counter.
type fakeModel struct {
	mu        sync.Mutex
	chats     []llm.CompletionRequest
	summaries []llm.CompletionRequest
	fail      error
}

func (m *fakeModel) Complete(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return nil, m.fail
	}
	if len(req.Messages) == 1 && strings.Contains(req.Messages[0].Content, "Extend the current summary") {
		m.summaries = append(m.summaries, req)
		return &llm.CompletionResponse{Content: fmt.Sprintf("summary %d", len(m.summaries))}, nil
	}
	m.chats = append(m.chats, req)
	last := req.Messages[len(req.Messages)-1]
	return &llm.CompletionResponse{Content: "echo: " + last.Content}, nil
}

func newBot(t *testing.T, opts ...Option) (*Bot, *fakeModel, checkpoint.Store) {
	t.Helper()
	model := &fakeModel{}
	store := checkpoint.NewMemoryStore()
	bot, err := New(model, store, opts...)
	require.NoError(t, err)
	return bot, model, store
}

// TestSend_PersistsThread tests that a second turn sees the first through the checkpoint store.
func TestSend_PersistsThread(t *testing.T) {
	bot, model, _ := newBot(t)
	ctx := context.Background()

	reply, err := bot.Send(ctx, "t1", "  hello ")
	require.NoError(t, err)
	assert.Equal(t, "echo: hello", reply)

	reply, err = bot.Send(ctx, "t1", "again")
	require.NoError(t, err)
	assert.Equal(t, "echo: again", reply)

	history, err := bot.History(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, []llm.Message{
		user("hello"), assistant("echo: hello"),
		user("again"), assistant("echo: again"),
	}, history)

	require.Len(t, model.chats, 2)
	assert.Len(t, model.chats[1].Messages, 3, "the second turn sees the first")
	assert.Empty(t, model.summaries)
}

// TestSend_ThreadsAreIsolated tests that threads do not share messages.
func TestSend_ThreadsAreIsolated(t *testing.T) {
	bot, _, _ := newBot(t)
	ctx := context.Background()

	_, err := bot.Send(ctx, "a", "one")
	require.NoError(t, err)
	_, err = bot.Send(ctx, "b", "two")
	require.NoError(t, err)

	history, err := bot.History(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []llm.Message{user("one"), assistant("echo: one")}, history)
}

// TestSend_Summarizes tests that older messages are folded into the summary incrementally.
func TestSend_Summarizes(t *testing.T) {
	bot, model, store := newBot(t)
	ctx := context.Background()

	// Five turns make ten messages; the sixth user message pushes the
	// history past the threshold.
	for i := range 5 {
		_, err := bot.Send(ctx, "t", fmt.Sprintf("q%d", i))
		require.NoError(t, err)
	}
	assert.Empty(t, model.summaries)

	_, err := bot.Send(ctx, "t", "q5")
	require.NoError(t, err)
	require.Len(t, model.summaries, 1)

	prompt := model.summaries[0].Messages[0].Content
	assert.Contains(t, prompt, "user: q0")
	assert.Contains(t, prompt, "assistant: echo: q2")
	assert.NotContains(t, prompt, "q3", "the newest five messages stay out of the summary")

	state, err := flowgraph.LatestState[State](ctx, store, "t")
	require.NoError(t, err)
	assert.Equal(t, "summary 1", state.Summary)
	assert.Equal(t, 6, state.Summarized)
	assert.Len(t, state.Messages, 12, "summarised messages are kept")

	last := model.chats[len(model.chats)-1]
	assert.Contains(t, last.SystemPrompt, "Summary of the conversation so far: summary 1")

	// The next turn only folds in what is new.
	_, err = bot.Send(ctx, "t", "q6")
	require.NoError(t, err)
	require.Len(t, model.summaries, 2)
	prompt = model.summaries[1].Messages[0].Content
	assert.Contains(t, prompt, "summary 1")
	assert.Contains(t, prompt, "user: q3")
	assert.NotContains(t, prompt, "q0")
}

// TestSend_TrimsContext tests that oversized history is trimmed to the token budget.
func TestSend_TrimsContext(t *testing.T) {
	bot, model, _ := newBot(t)
	ctx := context.Background()

	big := strings.Repeat("w", 5000)
	_, err := bot.Send(ctx, "t", big)
	require.NoError(t, err)
	_, err = bot.Send(ctx, "t", "small")
	require.NoError(t, err)

	last := model.chats[len(model.chats)-1]
	assert.Equal(t, []llm.Message{user("small")}, last.Messages)
}

// TestSend_GenerationSettings tests that generation options reach the chat request.
func TestSend_GenerationSettings(t *testing.T) {
	bot, model, _ := newBot(t, WithGeneration(500, llm.Temperature(0.7)))
	_, err := bot.Send(context.Background(), "t", "hi")
	require.NoError(t, err)

	req := model.chats[0]
	assert.Equal(t, 500, req.MaxTokens)
	require.NotNil(t, req.Temperature)
	assert.InDelta(t, 0.7, *req.Temperature, 1e-9)
	assert.Equal(t, "You are a helpful assistant. Answer concisely.", req.SystemPrompt)
}

// TestSend_CustomPrompts tests that WithPrompts replaces the system prompt.
func TestSend_CustomPrompts(t *testing.T) {
	cat, err := prompts.Parse([]byte(`
chat_system:
  system: You are a pirate.
chat_summary:
  vars: [summary, messages]
  user: "Extend the current summary ${summary} with ${messages}"
chat_summary_context:
  vars: [summary]
  system: "Earlier: ${summary}"
`))
	require.NoError(t, err)
	bot, model, _ := newBot(t, WithPrompts(cat))

	_, err = bot.Send(context.Background(), "t", "ahoy")
	require.NoError(t, err)

	require.Len(t, model.chats, 1)
	assert.Equal(t, "You are a pirate.", model.chats[0].SystemPrompt)
}

// TestSend_Errors tests input validation and a failed reply.
func TestSend_Errors(t *testing.T) {
	bot, model, store := newBot(t)
	ctx := context.Background()

	_, err := bot.Send(ctx, "t", "   ")
	assert.ErrorIs(t, err, ErrEmptyMessage)

	_, err = bot.Send(ctx, "", "hi")
	assert.ErrorIs(t, err, flowgraph.ErrRunIDRequired)

	boom := errors.New("boom")
	model.fail = boom
	_, err = bot.Send(ctx, "t", "hi")
	assert.ErrorIs(t, err, boom)

	// Only the summarize checkpoint exists, and its message was never
	// answered.
	infos, err := store.List(ctx, "t")
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "summarize", infos[0].NodeID)
	history, err := bot.History(ctx, "t")
	require.NoError(t, err)
	assert.Empty(t, history)
}

// TestSend_RetryAfterFailedTurn tests that a failed reply leaves no dangling
// user message for the next turn.
func TestSend_RetryAfterFailedTurn(t *testing.T) {
	bot, model, _ := newBot(t)
	ctx := context.Background()

	_, err := bot.Send(ctx, "t", "first")
	require.NoError(t, err)

	model.fail = errors.New("boom")
	_, err = bot.Send(ctx, "t", "lost")
	require.Error(t, err)

	model.fail = nil
	reply, err := bot.Send(ctx, "t", "retry")
	require.NoError(t, err)
	assert.Equal(t, "echo: retry", reply)

	last := model.chats[len(model.chats)-1]
	assert.Equal(t, []llm.Message{user("first"), assistant("echo: first"), user("retry")}, last.Messages)

	history, err := bot.History(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, []llm.Message{
		user("first"), assistant("echo: first"),
		user("retry"), assistant("echo: retry"),
	}, history)
}

// TestDropUnanswered tests trailing user message removal.
func TestDropUnanswered(t *testing.T) {
	s := dropUnanswered(State{
		Messages:   []llm.Message{user("a"), assistant("b"), user("c"), user("d")},
		Summarized: 4,
	})
	assert.Equal(t, []llm.Message{user("a"), assistant("b")}, s.Messages)
	assert.Equal(t, 2, s.Summarized)

	assert.Empty(t, dropUnanswered(State{Messages: []llm.Message{user("only")}}).Messages)
}

// TestThreads tests thread listing order and titles.
func TestThreads(t *testing.T) {
	bot, _, _ := newBot(t)
	ctx := context.Background()

	threads, err := bot.Threads(ctx)
	require.NoError(t, err)
	assert.Empty(t, threads)

	_, err = bot.Send(ctx, "old", "what is the capital of France?")
	require.NoError(t, err)
	_, err = bot.Send(ctx, "new", "hi")
	require.NoError(t, err)

	threads, err = bot.Threads(ctx)
	require.NoError(t, err)
	require.Len(t, threads, 2)
	assert.Equal(t, "new", threads[0].ID)
	assert.Equal(t, "hi", threads[0].Title)
	assert.Equal(t, 2, threads[0].Messages)
	assert.Equal(t, "old", threads[1].ID)
	assert.Equal(t, "what is the capital ...", threads[1].Title)

	require.NoError(t, bot.Delete(ctx, "old"))
	threads, err = bot.Threads(ctx)
	require.NoError(t, err)
	assert.Len(t, threads, 1)
}

// TestHistory_UnknownThread tests that an unknown thread has no history.
func TestHistory_UnknownThread(t *testing.T) {
	bot, _, _ := newBot(t)
	history, err := bot.History(context.Background(), "nope")
	require.NoError(t, err)
	assert.Empty(t, history)
}

// TestBot_SQLiteThreadsSurviveRestart tests that a thread persists across bots sharing a database.
func TestBot_SQLiteThreadsSurviveRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "threads.db")
	ctx := context.Background()

	store, err := checkpoint.NewSQLiteStore(path)
	require.NoError(t, err)
	bot, err := New(&fakeModel{}, store)
	require.NoError(t, err)
	_, err = bot.Send(ctx, "t", "remember me")
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store, err = checkpoint.NewSQLiteStore(path)
	require.NoError(t, err)
	defer store.Close()
	bot, err = New(&fakeModel{}, store)
	require.NoError(t, err)

	history, err := bot.History(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, []llm.Message{user("remember me"), assistant("echo: remember me")}, history)
}

// TestNew_RequiresCollaborators tests that a client and store are required.
func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(nil, checkpoint.NewMemoryStore())
	assert.Error(t, err)
	_, err = New(&fakeModel{}, nil)
	assert.Error(t, err)
}

// TestNewThreadID tests that thread IDs are unique.
func TestNewThreadID(t *testing.T) {
	a, b := NewThreadID(), NewThreadID()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}
