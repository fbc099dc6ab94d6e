package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	coreconfig "github.com/m3rciful/tiffinbot/core/config"
	"github.com/m3rciful/tiffinbot/core/logger"
	tghelpers "github.com/m3rciful/tiffinbot/core/telegram/helpers"
	tgsender "github.com/m3rciful/tiffinbot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

// Middleware describes a global bot middleware to be registered via bot.Use.
type Middleware struct {
	Name string
	Use  func(next tele.HandlerFunc) tele.HandlerFunc
}

// Route binds a handler to a telebot endpoint such as tele.OnText.
type Route struct {
	Endpoint any
	Handler  tele.HandlerFunc
}

// RunOptions controls the behaviour of RunTelegram.
type RunOptions struct {
	Config *coreconfig.Config

	DispatcherOptions tgsender.Options
	Dispatcher        *tgsender.Dispatcher

	Middlewares []Middleware
	Routes      []Route
	// Commands are published to the Telegram menu when telegram.publish_commands is set.
	Commands []tele.Command

	DisableWebhookCleanup   bool
	DisableHelperDispatcher bool

	OnStart func(ctx context.Context, rt Runtime) error
	OnStop  func(ctx context.Context, rt Runtime) error
}

// Runtime exposes runtime components to lifecycle hooks.
type Runtime struct {
	Bot        *tele.Bot
	Dispatcher *tgsender.Dispatcher
}

// RunTelegram builds the bot, wires opts into it and polls until ctx is done.
// A cancelled ctx is a clean stop and returns nil.
func RunTelegram(ctx context.Context, opts RunOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := opts.Config
	if cfg == nil {
		return errors.New("telegram: nil config provided")
	}

	start := time.Now()
	bot, err := newBot(ctx, cfg)
	if err != nil {
		return err
	}
	announceMode(ctx, bot, cfg, time.Since(start), !opts.DisableWebhookCleanup)

	rt := Runtime{Bot: bot, Dispatcher: opts.Dispatcher}
	if rt.Dispatcher == nil {
		rt.Dispatcher = tgsender.NewDispatcher(opts.DispatcherOptions)
	}
	if !opts.DisableHelperDispatcher {
		tghelpers.SetDispatcher(rt.Dispatcher)
	}
	defer func() {
		rt.Dispatcher.Close()
		if !opts.DisableHelperDispatcher {
			tghelpers.SetDispatcher(nil)
		}
	}()

	wire(bot, opts)
	if cfg.Telegram.PublishCommands {
		PublishCommands(bot, opts.Commands)
	}

	if opts.OnStart != nil {
		if err := opts.OnStart(ctx, rt); err != nil {
			return err
		}
	}

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		bot.Start()
	}()
	var runErr error
	select {
	case <-ctx.Done():
		bot.Stop()
		<-stopped
	case <-stopped:
		runErr = errors.New("telegram: poller stopped unexpectedly")
	}

	if opts.OnStop != nil {
		if err := opts.OnStop(context.Background(), rt); err != nil {
			return err
		}
	}
	return runErr
}

func newBot(ctx context.Context, cfg *coreconfig.Config) (*tele.Bot, error) {
	timeout := pollTimeoutSeconds(cfg.Telegram.LongPollTimeoutSeconds)
	bot, err := tele.NewBot(tele.Settings{
		Token: cfg.Telegram.Token,
		Poller: BuildPoller(PollerOptions{
			RunMode:                cfg.Telegram.RunMode,
			LongPollTimeoutSeconds: timeout,
			Webhook: WebhookOptions{
				Listen: cfg.Webhook.Listen,
				Port:   cfg.Webhook.Port,
				URL:    cfg.Webhook.URL,
			},
		}),
		// Each getUpdates call holds the connection for the poll timeout.
		Client: BuildHTTPClient(HTTPClientOptions{Timeout: time.Duration(timeout+20) * time.Second}),
		OnError: func(err error, c tele.Context) {
			attrs := []slog.Attr{slog.String("err", err.Error())}
			if c != nil {
				attrs = append(attrs, slog.Int("update_id", c.Update().ID))
			}
			logger.TG.LogAttrs(ctx, slog.LevelError, "handler error", attrs...)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("telegram: bot initialization failed: %w", err)
	}
	return bot, nil
}

// announceMode logs the update source. In long-poll mode a leftover webhook
// would block getUpdates, so it is removed unless cleanup is disabled.
func announceMode(ctx context.Context, bot *tele.Bot, cfg *coreconfig.Config, took time.Duration, cleanup bool) {
	if wh, ok := bot.Poller.(*tele.Webhook); ok {
		logger.TG.LogAttrs(ctx, slog.LevelInfo, "webhook mode",
			slog.String("event", "mode"),
			slog.String("mode", coreconfig.RunModeWebhook),
			slog.String("listen", wh.Listen),
			slog.String("public_url", wh.Endpoint.PublicURL),
			slog.Duration("duration", logger.RoundMS(took)),
		)
		return
	}
	logger.TG.LogAttrs(ctx, slog.LevelInfo, "polling mode",
		slog.String("event", "mode"),
		slog.String("mode", "polling"),
		slog.Int("timeout_seconds", pollTimeoutSeconds(cfg.Telegram.LongPollTimeoutSeconds)),
		slog.String("bot", bot.Me.Username),
		slog.Duration("duration", logger.RoundMS(took)),
	)
	if !cleanup {
		return
	}
	if err := bot.RemoveWebhook(false); err != nil {
		logger.TG.LogAttrs(ctx, slog.LevelWarn, "failed to delete webhook",
			slog.String("event", "delete_webhook"),
			slog.String("err", err.Error()),
		)
		return
	}
	logger.TG.LogAttrs(ctx, slog.LevelInfo, "webhook deleted", slog.String("event", "delete_webhook"))
}

func wire(bot *tele.Bot, opts RunOptions) {
	middlewares := 0
	for _, mw := range opts.Middlewares {
		if mw.Use != nil {
			bot.Use(mw.Use)
			middlewares++
		}
	}
	routes := 0
	for _, r := range opts.Routes {
		if r.Endpoint != nil && r.Handler != nil {
			bot.Handle(r.Endpoint, r.Handler)
			routes++
		}
	}
	logger.TWire.Info("tg.wire",
		slog.String("event", "complete"),
		slog.Int("middlewares", middlewares),
		slog.Int("routes", routes),
	)
}

// PublishCommands sets the Telegram command menu. Failures are logged only.
func PublishCommands(bot *tele.Bot, cmds []tele.Command) {
	if bot == nil || len(cmds) == 0 {
		return
	}
	if err := bot.SetCommands(cmds); err != nil {
		logger.TWire.Error("register.commands.set_failed", slog.String("err", err.Error()))
		return
	}
	logger.TWire.Info("register.commands", slog.Int("commands", len(cmds)))
}
