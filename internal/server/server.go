// Package server implements the chat core: the username registry, the shared
// broadcaster and the per-connection session handler.
package server

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"wschat/internal/broadcast"
	"wschat/internal/logging"
	"wschat/pkg/chat"

	"github.com/dmitrymomot/foundation/core/logger"
)

// Conn is the part of *websocket.Conn a session uses. Only one goroutine
// reads and only one writes; Close may be called from anywhere.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Auditor receives session lifecycle events.
type Auditor interface {
	LogJoin(sessionID, username, remoteAddr string) error
	LogLeave(sessionID, username, remoteAddr string) error
	LogReject(sessionID, username, remoteAddr string) error
}

type nopAuditor struct{}

func (nopAuditor) LogJoin(string, string, string) error   { return nil }
func (nopAuditor) LogLeave(string, string, string) error  { return nil }
func (nopAuditor) LogReject(string, string, string) error { return nil }

// Server owns the state shared by every connection.
type Server struct {
	cfg         Config
	log         *slog.Logger
	auditor     Auditor
	registry    *Registry
	broadcaster *broadcast.Broadcaster[chat.Message]

	mu       sync.Mutex
	closed   bool
	sessions map[*session]struct{}
	wg       sync.WaitGroup
}

type Option func(*Server)

func WithLogger(log *slog.Logger) Option {
	return func(s *Server) {
		if log != nil {
			s.log = log
		}
	}
}

func WithAuditor(a Auditor) Option {
	return func(s *Server) {
		if a != nil {
			s.auditor = a
		}
	}
}

func New(cfg Config, opts ...Option) *Server {
	if cfg.ChannelCapacity <= 0 {
		cfg.ChannelCapacity = DefaultChannelCapacity
	}

	s := &Server{
		cfg:         cfg,
		log:         slog.Default(),
		auditor:     nopAuditor{},
		registry:    NewRegistry(),
		broadcaster: broadcast.New[chat.Message](cfg.ChannelCapacity),
		sessions:    make(map[*session]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(logger.Component("chat"))
	return s
}

func (s *Server) Registry() *Registry {
	return s.registry
}

// Online returns the sorted usernames of active sessions.
func (s *Server) Online() []string {
	return s.registry.Names()
}

// Publish broadcasts msg to every connected session and returns how many
// subscribers received it. Nobody listening is logged, not reported.
func (s *Server) Publish(msg chat.Message) int {
	n := s.broadcaster.Publish(msg)
	if n == 0 {
		s.log.Debug("no active subscribers to receive the message", logging.Username(msg.Username()))
	}
	return n
}

// Serve runs the session for an upgraded connection and returns once the
// connection is finished. The connection is always closed on return.
func (s *Server) Serve(ctx context.Context, conn Conn, remoteAddr string) {
	sess := newSession(s, conn, remoteAddr)
	if !s.track(sess) {
		sess.sub.Close()
		_ = conn.Close()
		return
	}
	defer s.untrack(sess)

	sess.run(ctx)
}

func (s *Server) track(sess *session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	s.sessions[sess] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(sess *session) {
	s.mu.Lock()
	delete(s.sessions, sess)
	s.mu.Unlock()
	s.wg.Done()
}

// Shutdown stops accepting sessions, tells active ones to close and waits
// for them. When ctx expires first the remaining connections are closed
// forcibly and ctx.Err() is returned.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	pending := make([]*session, 0, len(s.sessions))
	for sess := range s.sessions {
		pending = append(pending, sess)
	}
	s.mu.Unlock()

	s.log.Info("shutting down chat sessions", logger.Count("sessions", len(pending)))

	// Active sessions see their subscription end and send a close frame.
	s.broadcaster.Close()
	for _, sess := range pending {
		if sess.state() == stateAwaitingHandshake {
			_ = sess.conn.Close()
		}
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.mu.Lock()
		for sess := range s.sessions {
			_ = sess.conn.Close()
		}
		s.mu.Unlock()
		return ctx.Err()
	}
}
