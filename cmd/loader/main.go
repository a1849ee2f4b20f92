package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"betterreads/internal/config"
)

func main() {
	config.LoadEnvFiles()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := newApp(os.Stdout)
	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "loader: %v\n", err)
		stop()
		os.Exit(1)
	}
}
