package bot

import (
	"fmt"
	"strings"

	"github.com/m3rciful/tiffinbot/internal/order"
	"github.com/m3rciful/tiffinbot/internal/poll"
)

const (
	textPong          = "🏓 Pong! Bot is alive."
	textUnknown       = "❓ Unknown command. Send !help to see available commands."
	textEndNoPoll     = "⚠️ No such active poll found."
	textShowNoPoll    = "⚠️ No active poll found."
	textShowEmpty     = "📭 No orders yet for this poll."
	textCancelNoPoll  = "⚠️ No active poll to cancel from."
	textCancelNoOrder = "❌ You haven’t placed any order yet."
	textCancelled     = "🗑️ Your order has been cancelled."
)

func helpText(menu order.Menu) string {
	var b strings.Builder
	b.WriteString("🧾 Commands:\n")
	for _, c := range Commands() {
		if c.Name == CmdPing || c.Name == CmdHelp {
			continue
		}
		usage := CommandPrefix + c.Name
		if c.Args != "" {
			usage += " " + c.Args
		}
		fmt.Fprintf(&b, "• %s - %s\n", usage, c.Description)
	}
	b.WriteString("\nAfter starting, send orders like:\n")
	b.WriteString(orderExamples(menu))
	return b.String()
}

func startedText(info poll.Info, menu order.Menu) string {
	return fmt.Sprintf("📋 Poll '%s' started by %s!\nSend your orders like:\n%s\nUse !cancel to cancel your order.\nUse !showpoll %s to see totals.\nUse !endpoll %s to end it.",
		info.Name, info.Owner.Name, firstExample(menu), info.Name, info.Name)
}

func alreadyActiveText(e *poll.Error) string {
	return fmt.Sprintf("⚠️ Poll '%s' is already active (started by %s)!", e.Poll, e.Owner.Name)
}

func notOwnerText(e *poll.Error) string {
	return fmt.Sprintf("⛔ Only %s can end poll '%s'.", e.Owner.Name, e.Poll)
}

func hintText(menu order.Menu) string {
	return "ℹ️ Send your order in the format: " + orderExamples(menu)
}

// summaryBody renders listing lines followed by the totals block.
func summaryBody(s poll.Summary) string {
	var b strings.Builder
	for _, line := range s.ListingLines() {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	b.WriteString(s.TotalsBlock())
	return b.String()
}

func endedText(s poll.Summary) string {
	return fmt.Sprintf("📦 Poll '%s' Ended!\n\n", s.Poll) + summaryBody(s)
}

func expiredText(s poll.Summary) string {
	return fmt.Sprintf("⌛ Poll '%s' closed after inactivity.\n\n", s.Poll) + summaryBody(s)
}

func currentText(s poll.Summary) string {
	return fmt.Sprintf("📋 Current Orders for '%s':\n", s.Poll) + summaryBody(s)
}

func orderNotedText(rec poll.Recorded, menu order.Menu) string {
	var b strings.Builder
	fmt.Fprintf(&b, "✅ Order noted for %s in '%s':", rec.Participant.Name, rec.Poll)
	for _, c := range menu {
		fmt.Fprintf(&b, "\n%s: %d", c.Title(), rec.Order.Get(c))
	}
	return b.String()
}
