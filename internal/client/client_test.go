package client

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"wschat/internal/logging"
	"wschat/internal/server"
	"wschat/pkg/chat"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

const waitFor = 3 * time.Second

// syncBuffer is a bytes.Buffer safe to read while Run writes to it.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func startServer(t *testing.T) (*server.Server, string, string) {
	t.Helper()

	srv := server.New(server.DefaultConfig(), server.WithLogger(logging.Discard()))
	upgrader := websocket.Upgrader{}

	mux := http.NewServeMux()
	mux.HandleFunc(server.Path, func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		srv.Serve(context.Background(), conn, r.RemoteAddr)
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
		ts.Close()
	})

	host, port, err := net.SplitHostPort(strings.TrimPrefix(ts.URL, "http://"))
	require.NoError(t, err)
	return srv, host, port
}

// startClient dials as username and runs it in the background with piped input.
func startClient(t *testing.T, host, port, username string) (*io.PipeWriter, *syncBuffer, <-chan error) {
	t.Helper()

	cl, err := Dial(context.Background(), host, port, username)
	require.NoError(t, err)

	in, input := io.Pipe()
	t.Cleanup(func() { _ = input.Close() })
	out := &syncBuffer{}

	done := make(chan error, 1)
	go func() { done <- cl.Run(context.Background(), in, out) }()

	return input, out, done
}

func waitRun(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(waitFor):
		t.Fatal("client did not shut down")
		return nil
	}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name string
		line string
		want Command
	}{
		{name: "empty", line: "", want: Command{Kind: CommandNone}},
		{name: "whitespace", line: "   \t", want: Command{Kind: CommandNone}},
		{name: "leave", line: "leave", want: Command{Kind: CommandLeave}},
		{name: "leave any case", line: "  LeAvE ", want: Command{Kind: CommandLeave}},
		{name: "send", line: "send hello world", want: Command{Kind: CommandSend, Text: "hello world"}},
		{name: "send trims text", line: "send    hi  ", want: Command{Kind: CommandSend, Text: "hi"}},
		{name: "send without text", line: "send ", want: Command{Kind: CommandUnknown}},
		{name: "send blank text", line: "send \t ", want: Command{Kind: CommandUnknown}},
		{name: "send is case sensitive", line: "SEND hi", want: Command{Kind: CommandUnknown}},
		{name: "unknown", line: "hello", want: Command{Kind: CommandUnknown}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseCommand(tt.line))
		})
	}
}

func TestNotifier(t *testing.T) {
	n := newNotifier()

	select {
	case <-n.Done():
		t.Fatal("notifier fired before Notify")
	default:
	}

	n.Notify()
	n.Notify()

	select {
	case <-n.Done():
	default:
		t.Fatal("notifier did not fire")
	}
}

func TestURL(t *testing.T) {
	assert.Equal(t, "ws://127.0.0.1:3000/ws", URL("127.0.0.1", "3000"))
	assert.Equal(t, "ws://[::1]:3000/ws", URL("::1", "3000"))
}

func TestDial_Unreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	host, port, _ := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, ln.Close())

	_, err = Dial(context.Background(), host, port, "alice")
	assert.Error(t, err)
}

func TestApp_UsageError(t *testing.T) {
	var exitCode int
	var stderr bytes.Buffer

	origExiter, origErrWriter := cli.OsExiter, cli.ErrWriter
	cli.OsExiter = func(code int) { exitCode = code }
	cli.ErrWriter = &stderr
	t.Cleanup(func() {
		cli.OsExiter = origExiter
		cli.ErrWriter = origErrWriter
	})

	tests := [][]string{
		{"client"},
		{"client", "127.0.0.1", "3000"},
		{"client", "127.0.0.1", "3000", "alice", "extra"},
	}

	for _, args := range tests {
		exitCode = 0
		stderr.Reset()

		err := App().Run(args)

		assert.Error(t, err)
		assert.Equal(t, 2, exitCode)
		assert.Equal(t, "Usage: client <address> <port> <username>\n", stderr.String())
	}
}

func TestRun_SendAndLeave(t *testing.T) {
	srv, host, port := startServer(t)

	carol, _, err := websocket.DefaultDialer.Dial(URL(host, port), nil)
	require.NoError(t, err)
	defer carol.Close()
	require.NoError(t, carol.WriteMessage(websocket.TextMessage, []byte("carol")))
	require.Eventually(t, func() bool { return srv.Registry().Contains("carol") }, waitFor, 5*time.Millisecond)

	input, out, done := startClient(t, host, port, "alice")
	require.Eventually(t, func() bool { return srv.Registry().Contains("alice") }, waitFor, 5*time.Millisecond)

	_, err = io.WriteString(input, "\nhello\nsend   hi carol  \n")
	require.NoError(t, err)

	require.NoError(t, carol.SetReadDeadline(time.Now().Add(waitFor)))
	for {
		_, data, err := carol.ReadMessage()
		require.NoError(t, err)
		msg, err := chat.DecodeMessage(data)
		require.NoError(t, err)
		if msg.Username() == chat.HostName {
			continue
		}
		assert.Equal(t, "alice: hi carol", msg.String())
		break
	}

	_, err = io.WriteString(input, "LEAVE\n")
	require.NoError(t, err)
	assert.NoError(t, waitRun(t, done))

	assert.Eventually(t, func() bool { return !srv.Registry().Contains("alice") }, waitFor, 5*time.Millisecond)

	output := out.String()
	assert.Contains(t, output, UsageHint)
	assert.Contains(t, output, "Disconnecting from the server...")
	assert.NotContains(t, output, "Connection closed by the server.")
	assert.True(t, strings.HasSuffix(output, "Client has shut down.\n"))
}

func TestRun_PrintsIncomingMessages(t *testing.T) {
	srv, host, port := startServer(t)

	input, out, done := startClient(t, host, port, "alice")
	require.Eventually(t, func() bool { return srv.Registry().Contains("alice") }, waitFor, 5*time.Millisecond)

	carol, _, err := websocket.DefaultDialer.Dial(URL(host, port), nil)
	require.NoError(t, err)
	defer carol.Close()
	require.NoError(t, carol.WriteMessage(websocket.TextMessage, []byte("carol")))
	require.Eventually(t, func() bool { return srv.Registry().Contains("carol") }, waitFor, 5*time.Millisecond)
	require.NoError(t, carol.WriteMessage(websocket.TextMessage, []byte("hey")))

	assert.Eventually(t, func() bool {
		return strings.Contains(out.String(), "\ncarol: hey\n"+Prompt)
	}, waitFor, 5*time.Millisecond)
	assert.Contains(t, out.String(), "\nHost: carol has joined the chat!\n"+Prompt)

	_, err = io.WriteString(input, "leave\n")
	require.NoError(t, err)
	assert.NoError(t, waitRun(t, done))
}

func TestRun_ServerClosesConnection(t *testing.T) {
	srv, host, port := startServer(t)

	_, out, done := startClient(t, host, port, "alice")
	require.Eventually(t, func() bool { return srv.Registry().Contains("alice") }, waitFor, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))

	assert.NoError(t, waitRun(t, done))

	output := out.String()
	assert.Contains(t, output, "Connection closed by the server.")
	assert.Contains(t, output, "Shutting down client...")
	assert.True(t, strings.HasSuffix(output, "Client has shut down.\n"))
}

func TestRun_DuplicateUsernameEndsClient(t *testing.T) {
	srv, host, port := startServer(t)

	_, _, first := startClient(t, host, port, "alice")
	require.Eventually(t, func() bool { return srv.Registry().Contains("alice") }, waitFor, 5*time.Millisecond)

	_, out, second := startClient(t, host, port, "alice")
	assert.NoError(t, waitRun(t, second))
	assert.Contains(t, out.String(), "Username 'alice' is already taken")
	assert.Contains(t, out.String(), "Connection closed by the server.")

	select {
	case <-first:
		t.Fatal("first client should still be connected")
	default:
	}
}

func TestRun_InputExhaustedLeaves(t *testing.T) {
	srv, host, port := startServer(t)

	cl, err := Dial(context.Background(), host, port, "alice")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return srv.Registry().Contains("alice") }, waitFor, 5*time.Millisecond)

	out := &syncBuffer{}
	err = cl.Run(context.Background(), strings.NewReader(""), out)

	assert.NoError(t, err)
	assert.Contains(t, out.String(), "Disconnecting from the server...")
	assert.Eventually(t, func() bool { return !srv.Registry().Contains("alice") }, waitFor, 5*time.Millisecond)
}

func TestRun_ContextCancelled(t *testing.T) {
	srv, host, port := startServer(t)

	cl, err := Dial(context.Background(), host, port, "alice")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return srv.Registry().Contains("alice") }, waitFor, 5*time.Millisecond)

	in, input := io.Pipe()
	defer input.Close()

	ctx, cancel := context.WithCancel(context.Background())
	out := &syncBuffer{}
	done := make(chan error, 1)
	go func() { done <- cl.Run(ctx, in, out) }()

	cancel()

	assert.NoError(t, waitRun(t, done))
	assert.Contains(t, out.String(), "Shutting down client...")
	assert.Eventually(t, func() bool { return !srv.Registry().Contains("alice") }, waitFor, 5*time.Millisecond)
}
