package router

import (
	"time"

	"github.com/m3rciful/tiffinbot/core/metrics"
	tg "github.com/m3rciful/tiffinbot/core/telegram"
	"github.com/m3rciful/tiffinbot/core/telegram/middleware"
	"log/slog"

	tele "gopkg.in/telebot.v4"
)

// Result describes how a text update was handled, for the summary log line.
type Result struct {
	Handler string
	// Status overrides the derived status, e.g. "skip" or "rejected".
	Status  string
	Outcome string
	// Code is a domain rejection code logged as err_code without failing the update.
	Code    string
	Replies int
	Attrs   []slog.Attr
}

// TextHandler handles one text update.
type TextHandler func(c tele.Context) (Result, error)

// TextOptions controls which text updates are routed.
type TextOptions struct {
	Metrics *metrics.Registry
	// Edited routes edited messages through the same handler.
	Edited bool
}

// TextRoutes binds h to text (and optionally edited) updates, wrapped with
// panic recovery and update logging.
func TextRoutes(h TextHandler, opts TextOptions) []tg.Route {
	if h == nil {
		return nil
	}
	handler := func(c tele.Context) error {
		start := time.Now()
		res, err := h(c)
		logHandlerSummary(c, opts.Metrics, res, start, err)
		return err
	}
	wrapped := middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler))

	routes := []tg.Route{{Endpoint: tele.OnText, Handler: wrapped}}
	if opts.Edited {
		routes = append(routes, tg.Route{Endpoint: tele.OnEdited, Handler: wrapped})
	}
	return routes
}
