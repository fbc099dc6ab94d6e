package poll

import (
	"fmt"
	"strings"
	"time"

	"github.com/m3rciful/tiffinbot/internal/order"
)

// Entry is one participant's order as listed in a summary.
type Entry struct {
	Participant Participant
	Order       order.Order
}

// Summary is a point-in-time aggregate of a poll.
type Summary struct {
	Poll    string
	Owner   Participant
	Menu    order.Menu
	Entries []Entry
	Totals  order.Order
	// OpenedAt identifies the poll instance; zero for summaries built outside a Manager.
	OpenedAt time.Time
}

// Summarize aggregates entries without touching them. Entries keep the given order.
func Summarize(name string, owner Participant, menu order.Menu, entries []Entry) Summary {
	totals := make(order.Order, len(menu))
	list := make([]Entry, 0, len(entries))
	for _, e := range entries {
		totals.Add(e.Order)
		list = append(list, Entry{Participant: e.Participant, Order: e.Order.Clone()})
	}
	return Summary{
		Poll:    name,
		Owner:   owner,
		Menu:    menu,
		Entries: list,
		Totals:  totals,
	}
}

// Empty reports whether no participant has ordered.
func (s Summary) Empty() bool {
	return len(s.Entries) == 0
}

// Total returns the summed quantity for one category.
func (s Summary) Total(c order.Category) int64 {
	return s.Totals.Get(c)
}

// FormatQuantities renders "2 Half, 0 Full, 1 Chapati" in menu order.
func FormatQuantities(menu order.Menu, o order.Order) string {
	parts := make([]string, 0, len(menu))
	for _, c := range menu {
		parts = append(parts, fmt.Sprintf("%d %s", o.Get(c), c.Title()))
	}
	return strings.Join(parts, ", ")
}

// ListingLines renders one "👤 name: quantities" line per entry.
func (s Summary) ListingLines() []string {
	lines := make([]string, 0, len(s.Entries))
	for _, e := range s.Entries {
		lines = append(lines, fmt.Sprintf("👤 %s: %s", e.Participant.Name, FormatQuantities(s.Menu, e.Order)))
	}
	return lines
}

// TotalsBlock renders the "📊 Totals:" section.
func (s Summary) TotalsBlock() string {
	var b strings.Builder
	b.WriteString("📊 Totals:")
	for _, c := range s.Menu {
		fmt.Fprintf(&b, "\n%s: %d", c.Title(), s.Totals.Get(c))
	}
	return b.String()
}
