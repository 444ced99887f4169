package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"wschat/internal/client"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := client.App().RunContext(ctx, os.Args); err != nil {
		stop()
		os.Exit(1)
	}
}
