package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"wschat/internal/audit"
	"wschat/internal/server"
	"wschat/internal/storage"

	"github.com/dmitrymomot/foundation/core/logger"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// Serve binds cfg.Addr and runs the chat server until ctx is cancelled.
func Serve(ctx context.Context, cfg server.Config, log *slog.Logger) error {
	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Addr, err)
	}
	return ServeListener(ctx, ln, cfg, log)
}

// ServeListener is Serve on an existing listener, which it takes ownership of.
func ServeListener(ctx context.Context, ln net.Listener, cfg server.Config, log *slog.Logger) error {
	opts := []server.Option{server.WithLogger(log)}

	var events EventStore
	if cfg.AuditDB != "" {
		db, err := storage.Connect(cfg.AuditDB)
		if err != nil {
			_ = ln.Close()
			return err
		}
		defer func() {
			if err := storage.Close(db); err != nil {
				log.Warn("failed to close audit database", logger.Error(err))
			}
		}()

		svc := audit.NewAuditService(db)
		opts = append(opts, server.WithAuditor(svc))
		events = svc
		log.Info("session audit enabled", slog.String("path", cfg.AuditDB))
	}

	chat := server.New(cfg, opts...)
	router := NewRouter(chat, events, cfg.ReadLimit, log)

	httpServer := &http.Server{
		Handler:           router.Engine(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("chat server running", slog.String("addr", ln.Addr().String()), slog.String("path", server.Path))
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		log.Info("shutting down chat server")
		// Hijacked websocket connections are not tracked by http.Server.
		httpErr := httpServer.Shutdown(shutdownCtx)
		chatErr := chat.Shutdown(shutdownCtx)
		return errors.Join(httpErr, chatErr)
	})

	return g.Wait()
}
