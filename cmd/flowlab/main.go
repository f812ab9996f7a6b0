package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/randalmurphal/flowlab/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.Execute(ctx, os.Stdin, os.Stdout, os.Stderr, os.Args[1:])
	stop()
	if err != nil {
		os.Exit(1)
	}
}
