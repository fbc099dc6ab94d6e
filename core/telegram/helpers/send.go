package helpers

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/m3rciful/tiffinbot/core/logger"
	"github.com/m3rciful/tiffinbot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

var globalDispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher wires the asynchronous sender used by helper functions.
func SetDispatcher(d *sender.Dispatcher) {
	globalDispatcher.Store(d)
}

func currentDispatcher() *sender.Dispatcher {
	return globalDispatcher.Load()
}

// Messenger is the part of *tele.Bot needed to deliver plain text.
type Messenger interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

func sendAsync(ctx context.Context, action, endpoint string, run func() error) error {
	disp := currentDispatcher()
	if disp == nil {
		return run()
	}

	if err := disp.Enqueue(ctx, action, endpoint, run); err != nil {
		if errors.Is(err, sender.ErrQueueFull) || errors.Is(err, sender.ErrQueueClosed) {
			logger.Warn(ctx, "tg.sender", "queue.fallback",
				slog.String("action", action),
				slog.String("endpoint", endpoint),
				slog.String("err", err.Error()),
			)
			return run()
		}
		return err
	}
	return nil
}

// SendTo sends raw text (no parse mode) to a chat. With a dispatcher wired
// the call returns once the job is queued.
func SendTo(ctx context.Context, m Messenger, chatID int64, text string) error {
	if m == nil {
		return errors.New("telegram helpers: nil messenger")
	}
	return sendAsync(ctx, "send.text", "sendMessage", func() error {
		_, err := m.Send(tele.ChatID(chatID), text, &tele.SendOptions{DisableWebPagePreview: true})
		return err
	})
}

// SendText replies into the chat of the current update.
func SendText(c tele.Context, text string) error {
	return sendAsync(BuildContext(c), "send.text", "sendMessage", func() error {
		return c.Send(text)
	})
}
