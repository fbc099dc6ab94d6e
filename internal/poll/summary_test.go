package poll

import (
	"strings"
	"testing"

	"github.com/m3rciful/tiffinbot/internal/order"
)

func TestSummarizeDoesNotAliasOrders(t *testing.T) {
	src := order.Order{order.Half: 1}
	sum := Summarize("lunch", alice, order.DefaultMenu(), []Entry{{Participant: bob, Order: src}})
	src[order.Half] = 9
	if got := sum.Entries[0].Order.Get(order.Half); got != 1 {
		t.Fatalf("summary aliased caller order: %d", got)
	}
}

func TestSummaryRendering(t *testing.T) {
	sum := Summarize("lunch", alice, order.DefaultMenu(), []Entry{
		{Participant: alice, Order: order.Order{order.Half: 1}},
		{Participant: bob, Order: order.Order{order.Full: 2, order.Chapati: 1}},
	})
	lines := sum.ListingLines()
	want := []string{
		"👤 Alice: 1 Half, 0 Full, 0 Chapati",
		"👤 Bob: 0 Half, 2 Full, 1 Chapati",
	}
	if strings.Join(lines, "|") != strings.Join(want, "|") {
		t.Fatalf("lines = %q", lines)
	}
	if got := sum.TotalsBlock(); got != "📊 Totals:\nHalf: 1\nFull: 2\nChapati: 1" {
		t.Fatalf("totals block = %q", got)
	}
}

func TestSummaryEmpty(t *testing.T) {
	sum := Summarize("lunch", alice, order.DefaultMenu(), nil)
	if !sum.Empty() {
		t.Fatal("expected empty summary")
	}
	if sum.Total(order.Full) != 0 {
		t.Fatalf("empty total = %d", sum.Total(order.Full))
	}
}
