// Package client is the console side of the chat: it dials the server,
// prints what arrives and turns typed commands into messages.
package client

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"wschat/pkg/chat"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"
)

const (
	Prompt    = "> "
	UsageHint = "Unknown command. Use 'send <message>' to send a message or 'leave' to disconnect."

	// CloseWait bounds how long a leaving client waits for the server's close frame.
	CloseWait = 2 * time.Second

	wsPath = "/ws"
)

type Client struct {
	conn *websocket.Conn

	leaving  atomic.Bool
	shutdown *notifier
	readDone chan struct{}
}

// URL builds the websocket endpoint for a server address and port.
func URL(address, port string) string {
	u := url.URL{Scheme: "ws", Host: net.JoinHostPort(address, port), Path: wsPath}
	return u.String()
}

// Dial connects to the server and sends username as the handshake.
func Dial(ctx context.Context, address, port, username string) (*Client, error) {
	target := URL(address, port)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", target, err)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte(username)); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("send username: %w", err)
	}

	return &Client{
		conn:     conn,
		shutdown: newNotifier(),
		readDone: make(chan struct{}),
	}, nil
}

// Run drives the session until the user leaves, the server closes the
// connection or ctx is cancelled. The connection is closed on return.
func (c *Client) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	con := &console{w: out}
	defer c.conn.Close()

	var g errgroup.Group
	g.Go(func() error {
		c.readLoop(con)
		return nil
	})
	g.Go(func() error {
		return c.inputLoop(ctx, in, con)
	})
	err := g.Wait()

	con.Println("Client has shut down.")
	return err
}

func (c *Client) readLoop(con *console) {
	defer close(c.readDone)
	defer c.shutdown.Notify()

	for {
		mt, data, err := c.conn.ReadMessage()
		if err != nil {
			if !c.leaving.Load() {
				con.Println("Connection closed by the server.")
			}
			return
		}
		if mt != websocket.TextMessage {
			continue
		}

		line := string(data)
		if msg, err := chat.DecodeMessage(data); err == nil {
			line = msg.String()
		}
		con.Print("\n" + line + "\n" + Prompt)
	}
}

func (c *Client) inputLoop(ctx context.Context, in io.Reader, con *console) error {
	stop := make(chan struct{})
	defer close(stop)
	lines := scanLines(in, stop)

	for {
		con.Print(Prompt)

		select {
		case <-c.shutdown.Done():
			con.Println("Shutting down client...")
			return nil

		case <-ctx.Done():
			con.Println("Shutting down client...")
			c.leave()
			return nil

		case line, ok := <-lines:
			if !ok {
				// Input is exhausted, nothing more can be sent.
				con.Println("Disconnecting from the server...")
				c.leave()
				return nil
			}

			cmd := ParseCommand(line)
			switch cmd.Kind {
			case CommandNone:
			case CommandLeave:
				con.Println("Disconnecting from the server...")
				c.leave()
				return nil
			case CommandSend:
				if err := c.conn.WriteMessage(websocket.TextMessage, []byte(cmd.Text)); err != nil {
					con.Println(fmt.Sprintf("Failed to send message to the server: %v", err))
					_ = c.conn.Close()
					return fmt.Errorf("send message: %w", err)
				}
			default:
				con.Println(UsageHint)
			}
		}
	}
}

// leave starts the closing handshake and waits for the server to answer it.
func (c *Client) leave() {
	c.leaving.Store(true)

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(CloseWait)); err == nil {
		select {
		case <-c.readDone:
		case <-time.After(CloseWait):
		}
	}
	_ = c.conn.Close()
}

// scanLines feeds lines from r into the returned channel until r is
// exhausted or stop is closed.
func scanLines(r io.Reader, stop <-chan struct{}) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-stop:
				return
			}
		}
	}()
	return lines
}

// console serializes output from the read and input loops.
type console struct {
	mu sync.Mutex
	w  io.Writer
}

func (c *console) Print(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = io.WriteString(c.w, s)
}

func (c *console) Println(s string) {
	c.Print(s + "\n")
}
