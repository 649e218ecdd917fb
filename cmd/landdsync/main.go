package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/awnumar/memguard"

	"github.com/systmms/landdsync/cmd/landdsync/commands"
	"github.com/systmms/landdsync/internal/config"
	dserrors "github.com/systmms/landdsync/internal/errors"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", dserrors.SimplifyError(err))
		memguard.Purge()
		os.Exit(1)
	}
}

func run() error {
	defer memguard.Purge()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := &config.Config{}
	rootCmd := commands.NewRootCommand(cfg,
		commands.WithVersion(fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)),
	)
	return rootCmd.ExecuteContext(ctx)
}
