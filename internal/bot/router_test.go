package bot

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/m3rciful/tiffinbot/internal/order"
	"github.com/m3rciful/tiffinbot/internal/poll"
)

type sent struct {
	conv string
	text string
}

type fakeSender struct {
	mu   sync.Mutex
	msgs []sent
	err  error
}

func (f *fakeSender) SendText(_ context.Context, conv, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, sent{conv: conv, text: text})
	return f.err
}

func (f *fakeSender) last(t *testing.T) sent {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.msgs) == 0 {
		t.Fatal("nothing sent")
	}
	return f.msgs[len(f.msgs)-1]
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.msgs)
}

type fakeArchiver struct {
	scopes []string
	sums   []poll.Summary
	err    error
}

func (f *fakeArchiver) Archive(_ context.Context, scope string, sum poll.Summary) error {
	f.scopes = append(f.scopes, scope)
	f.sums = append(f.sums, sum)
	return f.err
}

var (
	alice = Event{SenderID: "1", SenderName: "Alice", ConversationID: "group"}
	bob   = Event{SenderID: "2", SenderName: "Bob", ConversationID: "group"}
)

func say(ev Event, text string) Event {
	ev.Text = text
	return ev
}

func newRouter(t *testing.T, opts Options) (*Router, *fakeSender) {
	t.Helper()
	s := &fakeSender{}
	if opts.Manager == nil {
		opts.Manager = poll.NewManager(poll.Options{})
	}
	if opts.Sender == nil {
		opts.Sender = s
	}
	r, err := NewRouter(opts)
	if err != nil {
		t.Fatalf("router: %v", err)
	}
	return r, s
}

func TestNewRouterRequiresManager(t *testing.T) {
	if _, err := NewRouter(Options{}); err == nil {
		t.Fatal("expected error")
	}
}

func TestSelfMessagesAreIgnored(t *testing.T) {
	r, s := newRouter(t, Options{})
	ev := say(alice, "!startpoll lunch")
	ev.FromSelf = true
	reply := r.Handle(context.Background(), ev)
	if reply.Status != StatusIgnored || s.count() != 0 {
		t.Fatalf("reply = %+v, sent = %d", reply, s.count())
	}
	if _, active := r.polls.Active("group"); active {
		t.Fatal("self message opened a poll")
	}
}

func TestPingAndHelp(t *testing.T) {
	r, s := newRouter(t, Options{})
	ctx := context.Background()

	r.Handle(ctx, say(alice, "  !PING "))
	if got := s.last(t).text; got != "🏓 Pong! Bot is alive." {
		t.Fatalf("ping = %q", got)
	}

	r.Handle(ctx, say(alice, "!help"))
	want := "🧾 Commands:\n" +
		"• !startpoll [name] - Start new poll (e.g., !startpoll lunch)\n" +
		"• !showpoll [name] - Show all orders for a poll\n" +
		"• !cancel - Cancel your order in current poll\n" +
		"• !endpoll [name] - End a poll\n" +
		"\nAfter starting, send orders like:\n'half 2, chapati 3' or 'full 1'"
	if got := s.last(t).text; got != want {
		t.Fatalf("help =\n%s\nwant\n%s", got, want)
	}
}

func TestStartPollAndAlreadyActive(t *testing.T) {
	r, s := newRouter(t, Options{})
	ctx := context.Background()

	reply := r.Handle(ctx, say(alice, "!startpoll Lunch"))
	want := "📋 Poll 'lunch' started by Alice!\nSend your orders like:\n'half 2, chapati 3'\nUse !cancel to cancel your order.\nUse !showpoll lunch to see totals.\nUse !endpoll lunch to end it."
	if reply.Text != want || s.last(t).text != want {
		t.Fatalf("start = %q", reply.Text)
	}

	reply = r.Handle(ctx, say(bob, "!startpoll dinner"))
	if reply.Text != "⚠️ Poll 'lunch' is already active (started by Alice)!" {
		t.Fatalf("already active = %q", reply.Text)
	}
	if reply.Status != StatusRejected || reply.Code != "ALREADY_ACTIVE" {
		t.Fatalf("reply = %+v", reply)
	}

	r2, _ := newRouter(t, Options{})
	if got := r2.Handle(ctx, say(alice, "!startpoll")).Text; !strings.HasPrefix(got, "📋 Poll 'default' started") {
		t.Fatalf("default name = %q", got)
	}
}

func TestEndToEndSummary(t *testing.T) {
	r, s := newRouter(t, Options{})
	ctx := context.Background()

	r.Handle(ctx, say(alice, "!startpoll lunch"))
	r.Handle(ctx, say(alice, "half 1"))
	if got := s.last(t).text; got != "✅ Order noted for Alice in 'lunch':\nHalf: 1\nFull: 0\nChapati: 0" {
		t.Fatalf("noted = %q", got)
	}
	r.Handle(ctx, say(bob, "Full 2 chapati 1"))

	reply := r.Handle(ctx, say(bob, "!endpoll"))
	if reply.Text != "⛔ Only Alice can end poll 'lunch'." || reply.Code != "NOT_OWNER" {
		t.Fatalf("not owner = %+v", reply)
	}

	reply = r.Handle(ctx, say(alice, "!showpoll lunch"))
	wantShow := "📋 Current Orders for 'lunch':\n" +
		"👤 Alice: 1 Half, 0 Full, 0 Chapati\n" +
		"👤 Bob: 0 Half, 2 Full, 1 Chapati\n" +
		"\n📊 Totals:\nHalf: 1\nFull: 2\nChapati: 1"
	if reply.Text != wantShow {
		t.Fatalf("show =\n%s", reply.Text)
	}

	reply = r.Handle(ctx, say(alice, "!endpoll lunch"))
	wantEnd := "📦 Poll 'lunch' Ended!\n\n" +
		"👤 Alice: 1 Half, 0 Full, 0 Chapati\n" +
		"👤 Bob: 0 Half, 2 Full, 1 Chapati\n" +
		"\n📊 Totals:\nHalf: 1\nFull: 2\nChapati: 1"
	if reply.Text != wantEnd {
		t.Fatalf("end =\n%s", reply.Text)
	}

	if got := r.Handle(ctx, say(alice, "!showpoll")).Text; got != "⚠️ No active poll found." {
		t.Fatalf("show after close = %q", got)
	}
	if got := r.Handle(ctx, say(alice, "!endpoll")).Text; got != "⚠️ No such active poll found." {
		t.Fatalf("end after close = %q", got)
	}
}

func TestShowEmptyAndNameMismatch(t *testing.T) {
	r, _ := newRouter(t, Options{})
	ctx := context.Background()
	r.Handle(ctx, say(alice, "!startpoll lunch"))

	if got := r.Handle(ctx, say(bob, "!showpoll")).Text; got != "📭 No orders yet for this poll." {
		t.Fatalf("empty = %q", got)
	}
	reply := r.Handle(ctx, say(bob, "!showpoll dinner"))
	if reply.Text != "⚠️ No active poll found." || reply.Code != "NO_ACTIVE_POLL" {
		t.Fatalf("mismatch = %+v", reply)
	}
}

func TestCancel(t *testing.T) {
	r, _ := newRouter(t, Options{})
	ctx := context.Background()

	if got := r.Handle(ctx, say(alice, "!cancel")).Text; got != "⚠️ No active poll to cancel from." {
		t.Fatalf("no poll = %q", got)
	}
	r.Handle(ctx, say(alice, "!startpoll"))
	if got := r.Handle(ctx, say(bob, "!cancel")).Text; got != "❌ You haven’t placed any order yet." {
		t.Fatalf("no order = %q", got)
	}
	r.Handle(ctx, say(bob, "chapati 4"))
	if got := r.Handle(ctx, say(bob, "!cancel")).Text; got != "🗑️ Your order has been cancelled." {
		t.Fatalf("cancelled = %q", got)
	}
	if info, _ := r.polls.Active("group"); info.Orders != 0 {
		t.Fatalf("orders = %d", info.Orders)
	}
}

func TestUnknownCommandAndChatter(t *testing.T) {
	r, s := newRouter(t, Options{})
	ctx := context.Background()

	reply := r.Handle(ctx, say(alice, "!order pizza"))
	if reply.Text != "❓ Unknown command. Send !help to see available commands." || reply.Status != StatusRejected {
		t.Fatalf("unknown = %+v", reply)
	}

	before := s.count()
	reply = r.Handle(ctx, say(alice, "half 2 please"))
	if reply.Status != StatusIgnored || s.count() != before {
		t.Fatalf("order without poll should be ignored: %+v", reply)
	}
}

func TestUnrecognizedPolicies(t *testing.T) {
	cases := []struct {
		policy UnrecognizedPolicy
		text   string
		hint   bool
	}{
		{UnrecognizedIgnore, "half please", false},
		{UnrecognizedIgnore, "just chatting", false},
		{UnrecognizedHint, "half please", true},
		{UnrecognizedHint, "just chatting", false},
		{UnrecognizedAlways, "just chatting", true},
		{"bogus", "half please", false},
	}
	for _, tc := range cases {
		r, s := newRouter(t, Options{Unrecognized: tc.policy})
		ctx := context.Background()
		r.Handle(ctx, say(alice, "!startpoll"))
		before := s.count()
		reply := r.Handle(ctx, say(bob, tc.text))
		gotHint := s.count() > before
		if gotHint != tc.hint {
			t.Fatalf("%s/%q: hint = %v, want %v", tc.policy, tc.text, gotHint, tc.hint)
		}
		if gotHint && reply.Text != "ℹ️ Send your order in the format: 'half 2, chapati 3' or 'full 1'" {
			t.Fatalf("hint text = %q", reply.Text)
		}
		if info, _ := r.polls.Active("group"); info.Orders != 0 {
			t.Fatalf("%s: zero parse stored an order", tc.policy)
		}
	}
}

func TestZeroOrderDoesNotOverwrite(t *testing.T) {
	r, s := newRouter(t, Options{})
	ctx := context.Background()
	r.Handle(ctx, say(alice, "!startpoll"))
	r.Handle(ctx, say(bob, "full 3"))
	before := s.count()
	r.Handle(ctx, say(bob, "half 0"))
	if s.count() != before {
		t.Fatal("zero order produced a reply")
	}
	sum, err := r.polls.Show(ctx, "group", "")
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if sum.Total(order.Full) != 3 {
		t.Fatalf("full = %d", sum.Total(order.Full))
	}
}

func TestScopeModes(t *testing.T) {
	ctx := context.Background()
	other := Event{SenderID: "3", SenderName: "Cara", ConversationID: "other"}

	r, _ := newRouter(t, Options{})
	r.Handle(ctx, say(alice, "!startpoll lunch"))
	if got := r.Handle(ctx, say(other, "!startpoll lunch")).Status; got != StatusOK {
		t.Fatalf("conversation scopes should be isolated, status = %s", got)
	}

	g, _ := newRouter(t, Options{Scope: ScopeGlobal})
	g.Handle(ctx, say(alice, "!startpoll lunch"))
	if got := g.Handle(ctx, say(other, "!startpoll lunch")).Code; got != "ALREADY_ACTIVE" {
		t.Fatalf("global scope should be shared, code = %s", got)
	}
	g.Handle(ctx, say(other, "half 1"))
	sum, _ := g.polls.Show(ctx, poll.GlobalScope, "")
	if len(sum.Entries) != 1 {
		t.Fatalf("global entries = %d", len(sum.Entries))
	}
}

func TestSendFailureKeepsState(t *testing.T) {
	s := &fakeSender{err: errors.New("network down")}
	r, _ := newRouter(t, Options{Sender: s})
	ctx := context.Background()
	r.Handle(ctx, say(alice, "!startpoll"))
	r.Handle(ctx, say(alice, "half 2"))
	info, active := r.polls.Active("group")
	if !active || info.Orders != 1 {
		t.Fatalf("state lost after send failure: %+v active=%v", info, active)
	}
}

func TestArchiveOnClose(t *testing.T) {
	arch := &fakeArchiver{}
	r, _ := newRouter(t, Options{Archiver: arch})
	ctx := context.Background()
	r.Handle(ctx, say(alice, "!startpoll lunch"))
	r.Handle(ctx, say(bob, "full 1"))
	r.Handle(ctx, say(alice, "!endpoll"))
	if len(arch.sums) != 1 || arch.scopes[0] != "group" || arch.sums[0].Total(order.Full) != 1 {
		t.Fatalf("archived = %+v", arch.sums)
	}

	arch.err = errors.New("disk full")
	r.Handle(ctx, say(alice, "!startpoll"))
	if got := r.Handle(ctx, say(alice, "!endpoll")).Status; got != StatusOK {
		t.Fatalf("archive failure must not fail close, status = %s", got)
	}
}

func TestExpireAnnouncesInOrigin(t *testing.T) {
	now := time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)
	mgr := poll.NewManager(poll.Options{IdleExpiry: time.Hour, Now: func() time.Time { return now }})
	arch := &fakeArchiver{}
	r, s := newRouter(t, Options{Manager: mgr, Scope: ScopeGlobal, Archiver: arch})
	ctx := context.Background()

	r.Handle(ctx, say(alice, "!startpoll lunch"))
	r.Handle(ctx, say(bob, "half 2"))
	if n := r.Expire(ctx); n != 0 {
		t.Fatalf("expired early: %d", n)
	}

	now = now.Add(2 * time.Hour)
	if n := r.Expire(ctx); n != 1 {
		t.Fatalf("expired = %d", n)
	}
	msg := s.last(t)
	if msg.conv != "group" {
		t.Fatalf("announced in %q", msg.conv)
	}
	if !strings.HasPrefix(msg.text, "⌛ Poll 'lunch' closed after inactivity.\n\n👤 Bob: 2 Half") {
		t.Fatalf("expiry text = %q", msg.text)
	}
	if len(arch.sums) != 1 {
		t.Fatalf("archived = %d", len(arch.sums))
	}
	if _, active := mgr.Active(poll.GlobalScope); active {
		t.Fatal("poll still active after expiry")
	}
}

func TestExpiryKeepsOriginOfReplacementPoll(t *testing.T) {
	now := time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)
	mgr := poll.NewManager(poll.Options{IdleExpiry: time.Hour, Now: func() time.Time { return now }})
	r, s := newRouter(t, Options{Manager: mgr, Scope: ScopeGlobal})
	ctx := context.Background()

	r.Handle(ctx, say(alice, "!startpoll lunch"))
	now = now.Add(2 * time.Hour)
	expired := mgr.Expire(ctx)
	if len(expired) != 1 {
		t.Fatalf("expired = %d", len(expired))
	}

	// A new poll opens elsewhere before the expired one is finished.
	other := bob
	other.ConversationID = "other"
	r.Handle(ctx, say(other, "!startpoll dinner"))
	r.finished(ctx, expired[0].Scope, expired[0].Summary)

	now = now.Add(2 * time.Hour)
	if n := r.Expire(ctx); n != 1 {
		t.Fatalf("expired = %d", n)
	}
	if msg := s.last(t); msg.conv != "other" {
		t.Fatalf("dinner expiry announced in %q, want other", msg.conv)
	}
}

func TestParseCommand(t *testing.T) {
	cmd, ok := parseCommand("!startpoll lunch extra words")
	if !ok || cmd.name != "startpoll" || cmd.arg != "lunch" {
		t.Fatalf("cmd = %+v ok=%v", cmd, ok)
	}
	if _, ok := parseCommand("half 2"); ok {
		t.Fatal("plain text parsed as command")
	}
	if cmd, ok := parseCommand("!"); !ok || cmd.name != "" {
		t.Fatalf("bare prefix = %+v", cmd)
	}
}

func TestOrderExamplesFollowMenu(t *testing.T) {
	if got := orderExamples(order.NewMenu("thali")); got != "'thali 2'" {
		t.Fatalf("single = %q", got)
	}
	if got := orderExamples(order.NewMenu("rice", "dal")); got != "'rice 2, dal 3'" {
		t.Fatalf("pair = %q", got)
	}
}
