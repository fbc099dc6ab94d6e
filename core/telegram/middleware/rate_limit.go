package middleware

import (
	"sync"
	"time"

	"github.com/m3rciful/tiffinbot/core/logger"
	"log/slog"

	tele "gopkg.in/telebot.v4"
)

// RateLimitOptions configures behaviour of the rate limit middleware.
type RateLimitOptions struct {
	Interval  time.Duration
	Exclude   map[string]struct{}
	OnLimited tele.HandlerFunc
	// Now is overridable in tests.
	Now func() time.Time
}

// RateLimitMiddleware returns a middleware that enforces a minimum interval
// between updates from the same user in the same chat.
func RateLimitMiddleware(opts RateLimitOptions) tele.MiddlewareFunc {
	type key struct{ chat, user int64 }
	var (
		lastSeen   = make(map[key]time.Time)
		lastSeenMu sync.Mutex
	)
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil || opts.Interval <= 0 {
				return next(c)
			}
			if _, skip := opts.Exclude[UpdateKind(c.Update())]; skip {
				return next(c)
			}

			k := key{user: user.ID}
			if chat := c.Chat(); chat != nil {
				k.chat = chat.ID
			}
			ts := now()

			lastSeenMu.Lock()
			if last, ok := lastSeen[k]; ok && ts.Sub(last) < opts.Interval {
				lastSeenMu.Unlock()
				logger.TG.Warn("rate limit",
					slog.String("event", "tg.rate_limit"),
					slog.Int64("chat_id", k.chat),
					slog.Int64("user_id", k.user),
				)
				if opts.OnLimited != nil {
					_ = opts.OnLimited(c)
				}
				return nil
			}
			lastSeen[k] = ts
			for other, seen := range lastSeen {
				if ts.Sub(seen) > 10*opts.Interval {
					delete(lastSeen, other)
				}
			}
			lastSeenMu.Unlock()
			return next(c)
		}
	}
}
