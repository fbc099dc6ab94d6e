package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"

	tghelpers "github.com/m3rciful/tiffinbot/core/telegram/helpers"
	tgrouter "github.com/m3rciful/tiffinbot/core/telegram/router"
	"github.com/m3rciful/tiffinbot/internal/bot"

	tele "gopkg.in/telebot.v4"
)

// transport adapts Telegram updates to bot events and bot replies to Telegram sends.
type transport struct {
	router *bot.Router
	self   atomic.Pointer[tele.Bot]
	known  map[string]struct{}
}

func newTransport() *transport {
	known := make(map[string]struct{})
	for _, c := range bot.Commands() {
		known[c.Name] = struct{}{}
	}
	return &transport{known: known}
}

// attach records the running bot; its identity marks self-authored messages.
func (t *transport) attach(b *tele.Bot) {
	t.self.Store(b)
}

// SendText implements bot.Sender through the shared Telegram dispatcher.
func (t *transport) SendText(ctx context.Context, conversationID, text string) error {
	b := t.self.Load()
	if b == nil {
		return errors.New("telegram: bot not started")
	}
	chatID, err := strconv.ParseInt(conversationID, 10, 64)
	if err != nil {
		return fmt.Errorf("telegram: bad chat id %q: %w", conversationID, err)
	}
	return tghelpers.SendTo(ctx, b, chatID, text)
}

// handle is the OnText/OnEdited route.
func (t *transport) handle(c tele.Context) (tgrouter.Result, error) {
	ev, ok := t.event(c)
	if !ok {
		return tgrouter.Result{Handler: "unsupported", Status: bot.StatusIgnored}, nil
	}
	if c.Update().EditedMessage != nil && strings.HasPrefix(strings.TrimSpace(ev.Text), bot.CommandPrefix) {
		// Edits only revise orders; commands run once.
		return tgrouter.Result{Handler: "edited_command", Status: bot.StatusIgnored}, nil
	}
	ctx := tghelpers.WithScope(c, t.router.ScopeOf(ev))
	reply := t.router.Handle(ctx, ev)
	res := tgrouter.Result{
		Handler: reply.Command,
		Status:  reply.Status,
		Code:    reply.Code,
	}
	if reply.Text != "" {
		res.Replies = 1
	}
	return res, nil
}

func (t *transport) event(c tele.Context) (bot.Event, bool) {
	msg := c.Message()
	if msg == nil || msg.Chat == nil {
		return bot.Event{}, false
	}
	ev := bot.Event{
		ConversationID: strconv.FormatInt(msg.Chat.ID, 10),
		Text:           t.normalizeCommand(msg.Text),
	}
	if u := msg.Sender; u != nil {
		ev.SenderID = strconv.FormatInt(u.ID, 10)
		ev.SenderName = displayName(u)
		if b := t.self.Load(); b != nil && b.Me != nil && b.Me.ID == u.ID {
			ev.FromSelf = true
		}
	}
	return ev, true
}

// normalizeCommand rewrites "/startpoll@Bot lunch" to "!startpoll lunch" for
// known commands addressed to this bot or to no bot. Other text is returned unchanged.
func (t *transport) normalizeCommand(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "/") {
		return text
	}
	head, rest, _ := strings.Cut(trimmed[1:], " ")
	name, target, addressed := strings.Cut(head, "@")
	if addressed && !strings.EqualFold(target, t.username()) {
		return text
	}
	if _, ok := t.known[strings.ToLower(name)]; !ok {
		return text
	}
	if rest = strings.TrimSpace(rest); rest != "" {
		return bot.CommandPrefix + name + " " + rest
	}
	return bot.CommandPrefix + name
}

func (t *transport) username() string {
	if b := t.self.Load(); b != nil && b.Me != nil {
		return b.Me.Username
	}
	return ""
}

func displayName(u *tele.User) string {
	name := strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
	if name != "" {
		return name
	}
	return u.Username
}

func telegramCommands() []tele.Command {
	cmds := make([]tele.Command, 0, len(bot.Commands()))
	for _, c := range bot.Commands() {
		cmds = append(cmds, tele.Command{Text: c.Name, Description: c.Description})
	}
	return cmds
}
