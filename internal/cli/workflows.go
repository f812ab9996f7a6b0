package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/flowlab/internal/workflows"
	"github.com/randalmurphal/flowlab/pkg/flowgraph/llm"
	"github.com/randalmurphal/flowlab/pkg/refine"
)

func newRefineCmd(a *app) *cobra.Command {
	var (
		maxIteration int
		trace        bool
	)
	cmd := &cobra.Command{
		Use:     "refine <topic>",
		Aliases: []string{"tweet"},
		Short:   "Write a post on a topic and refine it until approved",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("max-iteration") {
				maxIteration = a.settings.Refine.MaxIteration
			}
			env, err := a.env()
			if err != nil {
				return err
			}

			var opts []refine.Option
			if trace {
				w := cmd.ErrOrStderr()
				opts = append(opts, refine.WithObserver(func(s refine.State, next refine.NextStep) {
					fmt.Fprintf(w, "[%d] %s -> %s\n", s.Iteration, verdictOf(s), next)
				}))
			}
			ctrl := workflows.NewTweetLoop(env, opts...)

			res, err := ctrl.Run(cmd.Context(), strings.Join(args, " "), maxIteration)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, res.Candidate)
			fmt.Fprintf(out, "\nverdict: %s after %d revision(s)\n", res.Verdict, res.Iteration)
			return nil
		},
	}
	cmd.Flags().IntVar(&maxIteration, "max-iteration", 0, "revisions allowed before giving up (default refine.max_iteration)")
	cmd.Flags().BoolVar(&trace, "trace", false, "print each loop step")
	return cmd
}

func verdictOf(s refine.State) string {
	if !s.Evaluated {
		return "unevaluated"
	}
	return string(s.Verdict)
}

func newRunCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run <workflow> [key=value ...]",
		Short: "Run a bundled workflow",
		Example: `  flowlab run roots a=1 b=-3 c=2
  flowlab run batting runs=52 balls=30 fours=4 sixes=3
  flowlab run blog title="Go generics" format=html`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wf, err := workflows.NewCatalog().Lookup(args[0])
			if err != nil {
				return err
			}
			in, err := parseInput(args[1:])
			if err != nil {
				return err
			}
			env, err := a.env()
			if err != nil {
				return err
			}
			out, err := wf.Run(cmd.Context(), env, in)
			if err != nil {
				return fmt.Errorf("%s: %w", wf.Name, err)
			}
			fmt.Fprint(cmd.OutOrStdout(), out)
			return nil
		},
	}
}

// parseInput reads key=value pairs. Values are cleaned like chat input.
func parseInput(pairs []string) (workflows.Input, error) {
	in := workflows.Input{}
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("argument %q is not key=value", p)
		}
		in[k] = llm.CleanText(v)
	}
	return in, nil
}

func newWorkflowsCmd(_ *app) *cobra.Command {
	return &cobra.Command{
		Use:   "workflows",
		Short: "List the bundled workflows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tPARAMS\tDESCRIPTION")
			for name, wf := range workflows.NewCatalog().All() {
				fmt.Fprintf(w, "%s\t%s\t%s\n", name, strings.Join(wf.Params, ","), wf.Description)
			}
			return w.Flush()
		},
	}
}
