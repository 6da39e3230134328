package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/V4T54L/safewatch/internal/pkg/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root, cleanup := newRootCmd()
	err := root.ExecuteContext(ctx)
	cleanup()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		if errors.Is(err, config.ErrMissingAPIKey) {
			fmt.Fprintln(os.Stderr)
			fmt.Fprint(os.Stderr, root.UsageString())
		}
		stop()
		os.Exit(1)
	}
}
