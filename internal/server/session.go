package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"wschat/internal/broadcast"
	"wschat/internal/logging"
	"wschat/pkg/chat"

	"github.com/dmitrymomot/foundation/core/logger"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// How long a rejected client gets to answer our close frame.
const closeGracePeriod = time.Second

const invalidUTF8Reason = "invalid utf-8"

type sessionState int32

const (
	stateAwaitingHandshake sessionState = iota
	stateActive
	stateClosing
	stateClosed
)

func (s sessionState) String() string {
	switch s {
	case stateAwaitingHandshake:
		return "awaiting_handshake"
	case stateActive:
		return "active"
	case stateClosing:
		return "closing"
	case stateClosed:
		return "closed"
	}
	return "unknown"
}

// session is one connection from accept to close.
type session struct {
	id         string
	srv        *Server
	conn       Conn
	remoteAddr string
	sub        *broadcast.Subscriber[chat.Message]
	log        *slog.Logger

	st         atomic.Int32
	username   string
	registered bool
	readDone   chan struct{}
	badPayload atomic.Bool
	startedAt  time.Time
}

func newSession(srv *Server, conn Conn, remoteAddr string) *session {
	id := uuid.NewString()
	return &session{
		id:         id,
		srv:        srv,
		conn:       conn,
		remoteAddr: remoteAddr,
		sub:        srv.broadcaster.Subscribe(),
		log:        srv.log.With(logging.SessionID(id), logging.RemoteAddr(remoteAddr)),
		startedAt:  time.Now(),
	}
}

func (ss *session) state() sessionState {
	return sessionState(ss.st.Load())
}

func (ss *session) setState(st sessionState) {
	ss.st.Store(int32(st))
}

func (ss *session) run(ctx context.Context) {
	defer ss.teardown()
	defer func() {
		if r := recover(); r != nil {
			ss.log.Error("session panicked", slog.Any("panic", r), logging.Username(ss.username))
		}
	}()

	name, ok := ss.handshake()
	if !ok {
		return
	}

	// HostName is reserved for server notices.
	if name == chat.HostName || !ss.srv.registry.TryRegister(name) {
		ss.reject(name)
		return
	}
	ss.username = name
	ss.registered = true
	ss.log = ss.log.With(logging.Username(name))
	ss.setState(stateActive)

	ss.log.Info("user joined the chat", logger.Event(chat.EventJoin))
	ss.srv.Publish(chat.HostMessage(fmt.Sprintf("%s has joined the chat!", name)))
	if err := ss.srv.auditor.LogJoin(ss.id, name, ss.remoteAddr); err != nil {
		ss.log.Warn("failed to record join", logger.Error(err))
	}

	ss.readDone = make(chan struct{})
	go ss.readPump()
	ss.writeLoop(ctx)
}

// handshake reads the first frame, which must be the username as text.
func (ss *session) handshake() (string, bool) {
	mt, data, err := ss.conn.ReadMessage()
	if err != nil {
		ss.log.Info("connection closed before handshake", logger.Error(err))
		return "", false
	}
	if mt != websocket.TextMessage {
		ss.log.Info("handshake was not a text frame", slog.Int("message_type", mt))
		return "", false
	}
	if !utf8.Valid(data) {
		ss.log.Info("handshake is not valid UTF-8")
		_ = ss.writeClose(websocket.CloseInvalidFramePayloadData, invalidUTF8Reason)
		return "", false
	}
	return strings.TrimSpace(string(data)), true
}

func (ss *session) reject(name string) {
	ss.log.Info("username already taken, rejecting connection", logger.Event(chat.EventReject), logging.Username(name))

	notice := chat.HostMessage(fmt.Sprintf("Username '%s' is already taken. Please reconnect with another name.", name))
	if err := ss.write(notice); err != nil {
		ss.log.Debug("failed to send rejection notice", logger.Error(err))
	}
	if err := ss.writeClose(websocket.ClosePolicyViolation, "username already taken"); err == nil {
		ss.awaitPeerClose()
	}

	if err := ss.srv.auditor.LogReject(ss.id, name, ss.remoteAddr); err != nil {
		ss.log.Warn("failed to record rejection", logger.Error(err))
	}
}

// awaitPeerClose drains the connection until the peer answers our close
// frame or the grace period runs out.
func (ss *session) awaitPeerClose() {
	if err := ss.conn.SetReadDeadline(time.Now().Add(closeGracePeriod)); err != nil {
		return
	}
	for {
		if _, _, err := ss.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// readPump publishes every text frame from the client until the connection fails.
func (ss *session) readPump() {
	defer close(ss.readDone)
	defer func() {
		if r := recover(); r != nil {
			ss.log.Error("read pump panicked", slog.Any("panic", r))
		}
	}()

	for {
		mt, data, err := ss.conn.ReadMessage()
		if err != nil {
			ss.logReadError(err)
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		// gorilla does not validate text payloads; RFC 6455 requires UTF-8.
		if !utf8.Valid(data) {
			ss.log.Warn("text frame is not valid UTF-8, closing connection")
			ss.badPayload.Store(true)
			return
		}
		ss.srv.Publish(chat.NewMessage(ss.username, string(data)))
	}
}

// writeLoop forwards broadcast messages to the client, skipping its own.
func (ss *session) writeLoop(ctx context.Context) {
	var reportedDrops uint64

	for {
		select {
		case msg, ok := <-ss.sub.C():
			if !ok {
				_ = ss.writeClose(websocket.CloseGoingAway, "server shutting down")
				return
			}
			if dropped := ss.sub.Dropped(); dropped > reportedDrops {
				ss.log.Warn("client is lagging, messages dropped", slog.Uint64("dropped", dropped-reportedDrops))
				reportedDrops = dropped
			}
			if msg.Username() == ss.username {
				continue
			}
			if err := ss.write(msg); err != nil {
				ss.log.Warn("failed to send message to client", logger.Error(err))
				return
			}

		case <-ss.readDone:
			if ss.badPayload.Load() {
				_ = ss.writeClose(websocket.CloseInvalidFramePayloadData, invalidUTF8Reason)
			}
			return

		case <-ctx.Done():
			_ = ss.writeClose(websocket.CloseGoingAway, "server shutting down")
			return
		}
	}
}

func (ss *session) write(msg chat.Message) error {
	data, err := msg.Encode()
	if err != nil {
		return err
	}
	if err := ss.setWriteDeadline(); err != nil {
		return err
	}
	return ss.conn.WriteMessage(websocket.TextMessage, data)
}

func (ss *session) writeClose(code int, text string) error {
	if err := ss.setWriteDeadline(); err != nil {
		return err
	}
	return ss.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, text))
}

func (ss *session) setWriteDeadline() error {
	if ss.srv.cfg.WriteWait <= 0 {
		return nil
	}
	return ss.conn.SetWriteDeadline(time.Now().Add(ss.srv.cfg.WriteWait))
}

// teardown runs on every exit path and releases everything the session holds.
func (ss *session) teardown() {
	ss.setState(stateClosing)

	if err := ss.conn.Close(); err != nil && !isExpectedCloseError(err) {
		ss.log.Debug("error closing connection", logger.Error(err))
	}
	if ss.readDone != nil {
		<-ss.readDone
	}
	ss.sub.Close()

	if ss.registered {
		ss.srv.registry.Unregister(ss.username)
		ss.srv.Publish(chat.HostMessage(fmt.Sprintf("%s has left the chat.", ss.username)))
		if err := ss.srv.auditor.LogLeave(ss.id, ss.username, ss.remoteAddr); err != nil {
			ss.log.Warn("failed to record leave", logger.Error(err))
		}
		ss.log.Info("user left the chat", logger.Event(chat.EventLeave), logger.Elapsed(ss.startedAt))
	}

	ss.setState(stateClosed)
}

func (ss *session) logReadError(err error) {
	if isExpectedCloseError(err) {
		ss.log.Info("client disconnected", logger.Error(err))
		return
	}
	ss.log.Warn("error while receiving a message", logger.Error(err))
}

func isExpectedCloseError(err error) bool {
	if err == nil {
		return false
	}
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
		websocket.CloseAbnormalClosure) {
		return true
	}
	return errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}
