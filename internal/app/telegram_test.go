package app

import (
	"context"
	"sync"
	"testing"

	"github.com/m3rciful/tiffinbot/internal/bot"
	"github.com/m3rciful/tiffinbot/internal/poll"

	tele "gopkg.in/telebot.v4"
)

type recordingSender struct {
	mu    sync.Mutex
	texts []string
}

func (r *recordingSender) SendText(_ context.Context, _, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.texts = append(r.texts, text)
	return nil
}

func offlineBot(t *testing.T) *tele.Bot {
	t.Helper()
	b, err := tele.NewBot(tele.Settings{Offline: true})
	if err != nil {
		t.Fatalf("new bot: %v", err)
	}
	b.Me = &tele.User{ID: 99, Username: "TiffinBot", IsBot: true}
	return b
}

func newTestTransport(t *testing.T, out bot.Sender) *transport {
	t.Helper()
	r, err := bot.NewRouter(bot.Options{
		Manager: poll.NewManager(poll.Options{}),
		Sender:  out,
	})
	if err != nil {
		t.Fatalf("router: %v", err)
	}
	tr := newTransport()
	tr.router = r
	return tr
}

func textUpdate(chatID int64, from *tele.User, text string) tele.Update {
	return tele.Update{Message: &tele.Message{
		Chat:   &tele.Chat{ID: chatID, Type: tele.ChatGroup},
		Sender: from,
		Text:   text,
	}}
}

func TestNormalizeCommand(t *testing.T) {
	tr := newTransport()
	tr.attach(offlineBot(t))
	cases := map[string]string{
		"/startpoll@TiffinBot lunch": "!startpoll lunch",
		"/startpoll@tiffinbot":       "!startpoll",
		"/startpoll@OtherBot lunch":  "/startpoll@OtherBot lunch",
		"/showpoll":                  "!showpoll",
		"/endpoll   dinner ":         "!endpoll dinner",
		"/start":                     "/start",
		"half 2":                     "half 2",
		"!cancel":                    "!cancel",
	}
	for in, want := range cases {
		if got := tr.normalizeCommand(in); got != want {
			t.Fatalf("normalizeCommand(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestEventConversion(t *testing.T) {
	tr := newTransport()
	b := offlineBot(t)
	tr.attach(b)

	c := b.NewContext(textUpdate(-100123, &tele.User{ID: 7, FirstName: "Asha", LastName: "Rao"}, "half 2"))
	ev, ok := tr.event(c)
	if !ok {
		t.Fatal("expected event")
	}
	if ev.SenderID != "7" || ev.SenderName != "Asha Rao" || ev.ConversationID != "-100123" || ev.FromSelf {
		t.Fatalf("event = %+v", ev)
	}

	c = b.NewContext(textUpdate(1, &tele.User{ID: 8, Username: "ravi"}, "hi"))
	if ev, _ = tr.event(c); ev.SenderName != "ravi" {
		t.Fatalf("username fallback = %q", ev.SenderName)
	}

	c = b.NewContext(textUpdate(1, &tele.User{ID: 99}, "🍱 Poll started"))
	if ev, _ = tr.event(c); !ev.FromSelf {
		t.Fatal("bot's own message should be marked FromSelf")
	}

	if _, ok := tr.event(b.NewContext(tele.Update{})); ok {
		t.Fatal("update without message should be skipped")
	}
}

func TestHandleRoutesCommandsAndOrders(t *testing.T) {
	out := &recordingSender{}
	tr := newTestTransport(t, out)
	b := offlineBot(t)
	tr.attach(b)
	asha := &tele.User{ID: 7, FirstName: "Asha"}

	res, err := tr.handle(b.NewContext(textUpdate(5, asha, "/startpoll@TiffinBot lunch")))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if res.Handler != bot.CmdStartPoll || res.Status != bot.StatusOK || res.Replies != 1 {
		t.Fatalf("start result = %+v", res)
	}

	res, _ = tr.handle(b.NewContext(textUpdate(5, asha, "half 2 and chapati 4")))
	if res.Handler != bot.HandlerOrder || res.Replies != 1 {
		t.Fatalf("order result = %+v", res)
	}

	res, _ = tr.handle(b.NewContext(textUpdate(5, &tele.User{ID: 8, FirstName: "Ravi"}, "!endpoll")))
	if res.Status != bot.StatusRejected || res.Code == "" {
		t.Fatalf("non-owner close = %+v", res)
	}

	res, _ = tr.handle(b.NewContext(textUpdate(5, &tele.User{ID: 99}, "!endpoll")))
	if res.Status != bot.StatusIgnored || res.Replies != 0 {
		t.Fatalf("self message = %+v", res)
	}

	out.mu.Lock()
	defer out.mu.Unlock()
	if len(out.texts) != 3 {
		t.Fatalf("sent %d replies, want 3: %q", len(out.texts), out.texts)
	}
}

func TestSendTextRequiresStartedBot(t *testing.T) {
	tr := newTransport()
	if err := tr.SendText(context.Background(), "1", "hi"); err == nil {
		t.Fatal("expected error before attach")
	}
	tr.attach(offlineBot(t))
	if err := tr.SendText(context.Background(), "not-a-chat", "hi"); err == nil {
		t.Fatal("expected chat id error")
	}
}

func TestTelegramCommands(t *testing.T) {
	cmds := telegramCommands()
	if len(cmds) != len(bot.Commands()) || cmds[0].Text != bot.CmdStartPoll || cmds[0].Description == "" {
		t.Fatalf("commands = %+v", cmds)
	}
}

func TestHandleEditedMessages(t *testing.T) {
	out := &recordingSender{}
	tr := newTestTransport(t, out)
	b := offlineBot(t)
	tr.attach(b)
	asha := &tele.User{ID: 7, FirstName: "Asha"}
	edited := func(text string) tele.Update {
		u := textUpdate(5, asha, text)
		u.EditedMessage, u.Message = u.Message, nil
		return u
	}

	tr.handle(b.NewContext(textUpdate(5, asha, "!startpoll lunch")))
	tr.handle(b.NewContext(textUpdate(5, asha, "half 2")))

	res, _ := tr.handle(b.NewContext(edited("!endpoll")))
	if res.Status != bot.StatusIgnored || res.Replies != 0 {
		t.Fatalf("edited command = %+v", res)
	}
	if res, _ = tr.handle(b.NewContext(textUpdate(5, asha, "!showpoll"))); res.Status != bot.StatusOK {
		t.Fatalf("poll closed by edited !endpoll: %+v", res)
	}

	res, _ = tr.handle(b.NewContext(edited("full 3")))
	if res.Handler != bot.HandlerOrder || res.Replies != 1 {
		t.Fatalf("edited order = %+v", res)
	}
}
