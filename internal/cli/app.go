package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/randalmurphal/flowlab/internal/chat"
	"github.com/randalmurphal/flowlab/internal/settings"
	"github.com/randalmurphal/flowlab/internal/workflows"
	"github.com/randalmurphal/flowlab/pkg/flowgraph"
	"github.com/randalmurphal/flowlab/pkg/flowgraph/checkpoint"
	"github.com/randalmurphal/flowlab/pkg/flowgraph/llm"
	"github.com/randalmurphal/flowlab/pkg/flowgraph/observability"
)

func (a *app) setup(logOut io.Writer) error {
	s, err := settings.Load(settings.Options{ConfigFile: a.configFile, EnvFile: a.envFile})
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		s.Log.Level = a.logLevel
	}
	a.settings = s

	logger, err := observability.NewLogger(logOut, s.Log.Level, s.Log.Format)
	if err != nil {
		return err
	}
	a.logger = logger

	if a.stats {
		a.collector = observability.NewCollector()
	}
	return nil
}

// model builds the model client on first use so commands that never call the
// model work without an API key.
func (a *app) model() (llm.Client, error) {
	if a.client != nil {
		return a.client, nil
	}
	if a.offline {
		a.client = newOfflineClient()
		return a.client, nil
	}
	hosted, err := llm.NewOpenAIClient(a.settings.OpenAIConfig())
	if err != nil {
		return nil, err
	}
	a.client = llm.NewRetryingClient(hosted, a.settings.RetryConfig(), a.logger)
	return a.client, nil
}

func (a *app) generation() workflows.Generation {
	return workflows.Generation{
		MaxTokens:   a.settings.LLM.MaxTokens,
		Temperature: llm.Temperature(a.settings.LLM.Temperature),
	}
}

// env assembles what a workflow run needs.
func (a *app) env() (workflows.Env, error) {
	client, err := a.model()
	if err != nil {
		return workflows.Env{}, err
	}
	maxIteration := a.settings.Refine.MaxIteration
	env := workflows.Env{
		LLM:          client,
		Gen:          a.generation(),
		Logger:       a.logger,
		MaxIteration: &maxIteration,
	}
	if a.collector != nil {
		metrics, err := a.collector.Metrics()
		if err != nil {
			return workflows.Env{}, err
		}
		env.Metrics = metrics
		env.Spans = a.collector.Spans()
	}
	return env, nil
}

// store opens the thread store: SQLite when checkpoint.path is set,
// memory otherwise.
func (a *app) store() (checkpoint.Store, error) {
	if a.settings.Checkpoint.Path == "" {
		return checkpoint.NewMemoryStore(), nil
	}
	return checkpoint.NewSQLiteStore(a.settings.Checkpoint.Path)
}

// bot builds a chatbot on store. The model is only required when needed.
func (a *app) bot(store checkpoint.Store, needModel bool) (*chat.Bot, error) {
	var client llm.Client = llm.NewMockClient("")
	if needModel {
		c, err := a.model()
		if err != nil {
			return nil, err
		}
		client = c
	}
	opts := []chat.Option{
		chat.WithLogger(a.logger),
		chat.WithGeneration(a.settings.LLM.MaxTokens, llm.Temperature(a.settings.LLM.Temperature)),
	}
	if a.collector != nil {
		metrics, err := a.collector.Metrics()
		if err != nil {
			return nil, err
		}
		opts = append(opts, chat.WithRunOptions(
			flowgraph.WithMetrics(metrics),
			flowgraph.WithTracing(a.collector.Spans()),
		))
	}
	return chat.New(client, store, opts...)
}

// teardown prints collected telemetry.
func (a *app) teardown(ctx context.Context, w io.Writer) error {
	if a.collector == nil {
		return nil
	}
	defer a.collector.Shutdown(context.WithoutCancel(ctx))

	totals, err := a.collector.Totals(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "-- metrics --")
	for _, t := range totals {
		fmt.Fprintln(w, t.String())
	}
	fmt.Fprintln(w, "-- spans --")
	for _, s := range a.collector.EndedSpans() {
		fmt.Fprintf(w, "%s %s\n", s.Name(), s.EndTime().Sub(s.StartTime()).Round(time.Microsecond))
	}
	a.logger.Debug("stats printed", slog.Int("metrics", len(totals)))
	return nil
}
