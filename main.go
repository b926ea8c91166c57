package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/tastebase/recipe-migrate/cmd"
	"github.com/tastebase/recipe-migrate/internal/conf"
	"github.com/tastebase/recipe-migrate/internal/logging"
)

func main() {
	settings, err := conf.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading configuration: %v\n", err)
		os.Exit(1)
	}

	level := slog.LevelInfo
	if settings.Debug {
		level = slog.LevelDebug
	}
	logging.Init(level)

	// An operator-issued stop cancels the run between items or batches;
	// checkpoints make the interrupted phase resumable.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := cmd.RootCommand(settings)
	rootCmd.SilenceUsage = true
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
