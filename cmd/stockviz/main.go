package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"stock-visualizer/internal/cli"
	apperrors "stock-visualizer/internal/errors"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// First SIGINT/SIGTERM cancels the session; a second one exits hard.
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
		<-sigCh
		os.Exit(130)
	}()

	app := cli.NewApp()
	if err := cli.Execute(ctx, app, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", apperrors.Reason(err))
		app.Logger.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}
