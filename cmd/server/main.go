package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"wschat/internal/api"
	"wschat/internal/logging"
	"wschat/internal/server"

	"github.com/dmitrymomot/foundation/core/config"
	"github.com/gin-gonic/gin"
	"github.com/urfave/cli/v2"
)

// @title Chat Server API
// @version 1.0
// @description Broadcast chat over WebSocket with a small HTTP status API.
// @BasePath /
func main() {
	app := &cli.App{
		Name:  "server",
		Usage: "run the websocket broadcast chat server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "listen address, overrides CHAT_ADDR",
			},
		},
		HideHelpCommand: true,
		Action:          run,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg := server.DefaultConfig()
	if err := config.Load(&cfg); err != nil {
		return err
	}
	if addr := c.String("addr"); addr != "" {
		cfg.Addr = addr
	}

	log := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	slog.SetDefault(log)
	if logging.ParseLevel(cfg.LogLevel) > slog.LevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}

	return api.Serve(c.Context, cfg, log)
}
