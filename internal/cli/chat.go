package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/flowlab/internal/chat"
	"github.com/randalmurphal/flowlab/pkg/flowgraph/llm"
)

func newChatCmd(a *app) *cobra.Command {
	var threadID string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat on a checkpointed thread",
		Long: `Start an interactive chat. Without --thread a new thread is created.
Threads persist across sessions when checkpoint.path is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.store()
			if err != nil {
				return err
			}
			defer store.Close()

			bot, err := a.bot(store, true)
			if err != nil {
				return err
			}
			if threadID == "" {
				threadID = chat.NewThreadID()
			} else {
				history, err := bot.History(cmd.Context(), threadID)
				if err != nil {
					return err
				}
				printHistory(cmd, history)
			}
			return chat.REPL(cmd.Context(), bot, threadID, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&threadID, "thread", "", "thread to resume")
	return cmd
}

func newThreadsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "threads",
		Short: "List stored chat threads",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.store()
			if err != nil {
				return err
			}
			defer store.Close()
			bot, err := a.bot(store, false)
			if err != nil {
				return err
			}

			threads, err := bot.Threads(cmd.Context())
			if err != nil {
				return err
			}
			if len(threads) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No threads.")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tMESSAGES\tUPDATED")
			for _, t := range threads {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", t.ID, t.Title, t.Messages, t.UpdatedAt.Local().Format("2006-01-02 15:04"))
			}
			return w.Flush()
		},
	}

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Print a thread's messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.store()
			if err != nil {
				return err
			}
			defer store.Close()
			bot, err := a.bot(store, false)
			if err != nil {
				return err
			}
			history, err := bot.History(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if len(history) == 0 {
				return fmt.Errorf("thread %q not found", args[0])
			}
			printHistory(cmd, history)
			return nil
		},
	}

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a thread",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.store()
			if err != nil {
				return err
			}
			defer store.Close()
			bot, err := a.bot(store, false)
			if err != nil {
				return err
			}
			if err := bot.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted thread: %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(show, del)
	return cmd
}

func printHistory(cmd *cobra.Command, history []llm.Message) {
	for _, m := range history {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", m.Role, m.Content)
	}
}
