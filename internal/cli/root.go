// Package cli implements the flowlab command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/flowlab/internal/settings"
	"github.com/randalmurphal/flowlab/pkg/flowgraph/llm"
	"github.com/randalmurphal/flowlab/pkg/flowgraph/observability"
)

var version = "0.1.0"

// app holds what subcommands share. It is filled in by the root command's
// pre-run hook.
type app struct {
	configFile string
	envFile    string
	logLevel   string
	offline    bool
	stats      bool

	settings  settings.Settings
	logger    *slog.Logger
	client    llm.Client
	collector *observability.Collector
}

// NewRootCmd builds the command tree. Output goes to out, logs and stats
// to errOut.
func NewRootCmd(in io.Reader, out, errOut io.Writer) *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "flowlab",
		Short: "Run LLM workflows on a small graph engine",
		Long: `flowlab runs graph workflows: an iterative refine loop, conditional
and parallel graphs, a prompt chain and a checkpointed chatbot.

Configuration comes from flowlab.yaml (--config), a .env file and
FLOWLAB_* environment variables, e.g. FLOWLAB_LLM_API_KEY.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.ErrOrStderr())
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return a.teardown(cmd.Context(), cmd.ErrOrStderr())
		},
	}
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)

	pf := root.PersistentFlags()
	pf.StringVar(&a.configFile, "config", "", "YAML config file")
	pf.StringVar(&a.envFile, "env-file", ".env", "dotenv file; ignored when missing")
	pf.StringVar(&a.logLevel, "log-level", "", "override log.level (debug, info, warn, error)")
	pf.BoolVar(&a.offline, "offline", false, "use a canned local model instead of the hosted API")
	pf.BoolVar(&a.stats, "stats", false, "print run metrics and spans when done")

	root.AddCommand(
		newRefineCmd(a),
		newRunCmd(a),
		newWorkflowsCmd(a),
		newChatCmd(a),
		newThreadsCmd(a),
	)
	return root
}

// Execute runs the command line against the process streams.
func Execute(ctx context.Context, in io.Reader, out, errOut io.Writer, args []string) error {
	root := NewRootCmd(in, out, errOut)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(errOut, "error:", err)
		return err
	}
	return nil
}
