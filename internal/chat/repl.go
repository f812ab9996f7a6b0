package chat

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
)

var exitWords = []string{"bye", "exit", "quit"}

// IsExit reports whether line ends a session.
func IsExit(line string) bool {
	return slices.Contains(exitWords, strings.ToLower(strings.TrimSpace(line)))
}

// REPL reads one message per line from in and writes replies to out until
// an exit word, end of input or cancellation. Blank lines are skipped. A
// failed turn is reported and the session continues.
func REPL(ctx context.Context, bot *Bot, threadID string, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	fmt.Fprintf(out, "thread %s (type bye, exit or quit to leave)\n", threadID)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := scanner.Text()
		if IsExit(line) {
			return nil
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		reply, err := bot.Send(ctx, threadID, line)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}
		fmt.Fprintln(out, reply)
	}
}
