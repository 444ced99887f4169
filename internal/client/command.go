package client

import "strings"

type CommandKind int

const (
	CommandNone CommandKind = iota
	CommandSend
	CommandLeave
	CommandUnknown
)

type Command struct {
	Kind CommandKind
	Text string
}

// ParseCommand interprets one line of console input.
func ParseCommand(line string) Command {
	line = strings.TrimSpace(line)
	if line == "" {
		return Command{Kind: CommandNone}
	}
	if strings.EqualFold(line, "leave") {
		return Command{Kind: CommandLeave}
	}
	if text, ok := strings.CutPrefix(line, "send "); ok {
		return Command{Kind: CommandSend, Text: strings.TrimSpace(text)}
	}
	return Command{Kind: CommandUnknown}
}
