package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"rise-finetune/cmd"
	"rise-finetune/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	command := cli.NewRootCommand(cmd.NewServices)
	if err := command.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
