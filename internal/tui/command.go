package tui

import "strings"

// Command represents a parsed command.
type Command struct {
	Name string
	Args string
}

// Canonical command names.
const (
	CmdSearch   = "search"
	CmdChat     = "chat"
	CmdContacts = "contacts"
	CmdHelp     = "help"
	CmdQuit     = "quit"
)

var commandAliases = map[string]string{
	"s":    CmdSearch,
	"find": CmdSearch,
	"c":    CmdChat,
	"open": CmdChat,
	"ls":   CmdContacts,
	"h":    CmdHelp,
	"q":    CmdQuit,
	"exit": CmdQuit,
}

// ParseCommand parses a command string. A leading ':' is optional and
// aliases resolve to their canonical name.
func ParseCommand(input string) Command {
	input = strings.TrimPrefix(strings.TrimSpace(input), ":")
	parts := strings.SplitN(strings.TrimSpace(input), " ", 2)
	cmd := Command{Name: strings.ToLower(parts[0])}
	if alias, ok := commandAliases[cmd.Name]; ok {
		cmd.Name = alias
	}
	if len(parts) > 1 {
		cmd.Args = strings.TrimSpace(parts[1])
	}
	return cmd
}
