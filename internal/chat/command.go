package chat

import (
	"strings"
	"unicode"
)

type CommandKind int

const (
	CommandNone CommandKind = iota // blank line, nothing to do
	CommandChat
	CommandNick
	CommandQuit
)

func (k CommandKind) String() string {
	switch k {
	case CommandNone:
		return "none"
	case CommandChat:
		return "chat"
	case CommandNick:
		return "nick"
	case CommandQuit:
		return "quit"
	}
	return "unknown"
}

type Command struct {
	Kind CommandKind
	Arg  string // new name for nick, full line for chat
}

// ParseCommand classifies one inbound line. Commands are recognised by
// their first token only, so "/nickname" is chat, not a rename.
func ParseCommand(line string) Command {
	line = strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(line) == "" {
		return Command{Kind: CommandNone}
	}

	token, rest := strings.TrimLeftFunc(line, unicode.IsSpace), ""
	if i := strings.IndexFunc(token, unicode.IsSpace); i >= 0 {
		token, rest = token[:i], token[i:]
	}
	switch token {
	case "/quit":
		return Command{Kind: CommandQuit}
	case "/nick":
		return Command{Kind: CommandNick, Arg: strings.TrimSpace(rest)}
	}
	return Command{Kind: CommandChat, Arg: line}
}
