package bot

import (
	"fmt"
	"strings"

	"github.com/m3rciful/tiffinbot/internal/order"
)

// CommandPrefix marks a message as a command.
const CommandPrefix = "!"

// Command names of the chat vocabulary, without the prefix.
const (
	CmdStartPoll = "startpoll"
	CmdEndPoll   = "endpoll"
	CmdShowPoll  = "showpoll"
	CmdCancel    = "cancel"
	CmdPing      = "ping"
	CmdHelp      = "help"
)

// CommandInfo documents one command for menus and help text.
type CommandInfo struct {
	Name        string
	Args        string
	Description string
}

// Commands returns the vocabulary in help order.
func Commands() []CommandInfo {
	return []CommandInfo{
		{Name: CmdStartPoll, Args: "[name]", Description: "Start new poll (e.g., !startpoll lunch)"},
		{Name: CmdShowPoll, Args: "[name]", Description: "Show all orders for a poll"},
		{Name: CmdCancel, Description: "Cancel your order in current poll"},
		{Name: CmdEndPoll, Args: "[name]", Description: "End a poll"},
		{Name: CmdPing, Description: "Check that the bot is alive"},
		{Name: CmdHelp, Description: "Show available commands"},
	}
}

// command is a tokenized "!name [arg]" message.
type command struct {
	name string
	arg  string
}

// parseCommand splits lower-cased, trimmed text into a command and its first argument.
// Words after the first argument are ignored.
func parseCommand(text string) (command, bool) {
	if !strings.HasPrefix(text, CommandPrefix) {
		return command{}, false
	}
	fields := strings.Fields(strings.TrimPrefix(text, CommandPrefix))
	var cmd command
	if len(fields) > 0 {
		cmd.name = fields[0]
	}
	if len(fields) > 1 {
		cmd.arg = fields[1]
	}
	return cmd, true
}

// orderExamples renders "'half 2, chapati 3' or 'full 1'" for the menu.
func orderExamples(menu order.Menu) string {
	switch len(menu) {
	case 0:
		return ""
	case 1:
		return fmt.Sprintf("'%s 2'", menu[0])
	case 2:
		return fmt.Sprintf("'%s 2, %s 3'", menu[0], menu[1])
	default:
		return fmt.Sprintf("'%s 2, %s 3' or '%s 1'", menu[0], menu[len(menu)-1], menu[1])
	}
}

// firstExample is the single example quoted in the start message.
func firstExample(menu order.Menu) string {
	ex := orderExamples(menu)
	if i := strings.Index(ex, " or "); i >= 0 {
		return ex[:i]
	}
	return ex
}
