package router

import (
	"reflect"
	"strings"
	"time"

	"github.com/m3rciful/tiffinbot/core/logger"
	"github.com/m3rciful/tiffinbot/core/metrics"
	tghelpers "github.com/m3rciful/tiffinbot/core/telegram/helpers"
	"log/slog"

	tele "gopkg.in/telebot.v4"
)

func logHandlerSummary(c tele.Context, reg *metrics.Registry, res Result, start time.Time, err error) {
	handlerName := normalizeHandlerName(res.Handler)
	ctx := tghelpers.WithHandler(c, handlerName)

	status := res.Status
	if status == "" {
		if err != nil {
			status = "fail"
		} else {
			status = "ok"
		}
	}
	outcome := res.Outcome
	if outcome == "" {
		if err != nil {
			outcome = "fail"
		} else {
			outcome = "ok"
		}
	}

	took := time.Since(start)
	attrs := []slog.Attr{
		slog.String("status", status),
		slog.String("handler", handlerName),
		slog.String("outcome", outcome),
		slog.Int("messages", res.Replies),
		slog.Int64("duration_ms", logger.RoundMS(took).Milliseconds()),
	}
	if res.Code != "" {
		attrs = append(attrs, slog.String("err_code", res.Code))
	}
	if err != nil {
		attrs = append(attrs,
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			slog.String("err_code", deriveErrorCode(err)),
			slog.String("cause", handlerName),
		)
	}
	attrs = append(attrs, res.Attrs...)
	logger.LogEvent(ctx, logger.Component("tg"), slog.LevelInfo, "handler.handled", attrs...)
	reg.Handled(handlerName, status, took.Seconds())
}

func normalizeHandlerName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "unknown"
	}
	name = strings.TrimLeft(name, "/!")
	name = strings.ReplaceAll(name, " ", "_")
	return strings.ToLower(name)
}

func deriveErrorCode(err error) string {
	if err == nil {
		return ""
	}
	type coder interface{ Code() string }
	if c, ok := err.(coder); ok {
		code := strings.TrimSpace(c.Code())
		if code != "" {
			return strings.ToUpper(strings.ReplaceAll(code, " ", "_"))
		}
	}
	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t != nil && t.Name() != "" {
		return strings.ToUpper(strings.ReplaceAll(t.Name(), " ", "_"))
	}
	return "UNKNOWN_ERROR"
}
