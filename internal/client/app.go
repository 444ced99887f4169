package client

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

const usageLine = "Usage: client <address> <port> <username>"

// App builds the console client command. It reads commands from the app's
// Reader and prints to its Writer.
func App() *cli.App {
	return &cli.App{
		Name:            "client",
		Usage:           "connect to a chat server and talk to everyone on it",
		ArgsUsage:       "<address> <port> <username>",
		HideHelpCommand: true,
		Action:          runClient,
	}
}

func runClient(c *cli.Context) error {
	if c.NArg() != 3 {
		return cli.Exit(usageLine, 2)
	}
	address, port, username := c.Args().Get(0), c.Args().Get(1), c.Args().Get(2)

	cl, err := Dial(c.Context, address, port, username)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed to connect to the WebSocket server: %v", err), 1)
	}
	fmt.Fprintf(c.App.Writer, "Connected to the WebSocket server at %s:%s as '%s'\n", address, port, username)

	return cl.Run(c.Context, c.App.Reader, c.App.Writer)
}
