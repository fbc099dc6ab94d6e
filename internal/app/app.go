package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/m3rciful/tiffinbot/core/bootstrap"
	"github.com/m3rciful/tiffinbot/core/logger"
	"github.com/m3rciful/tiffinbot/core/metrics"
	coretelegram "github.com/m3rciful/tiffinbot/core/telegram"
	tgrouter "github.com/m3rciful/tiffinbot/core/telegram/router"
	tgsender "github.com/m3rciful/tiffinbot/core/telegram/sender"
	"github.com/m3rciful/tiffinbot/internal/archive"
	"github.com/m3rciful/tiffinbot/internal/bot"
	"github.com/m3rciful/tiffinbot/internal/poll"
)

const maxSweepInterval = time.Minute

// App wires configuration, storage and the poll router into a runnable bot.
type App struct {
	cfg       *Config
	infra     *bootstrap.Result
	metrics   *metrics.Registry
	polls     *poll.Manager
	router    *bot.Router
	transport *transport

	stop context.CancelFunc
	wg   sync.WaitGroup
}

// Bootstrap initializes logging and the optional archive, then builds the router.
func Bootstrap(cfg *Config) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: nil config")
	}
	opts := bootstrap.Options{
		Config:   cfg.CoreConfig(),
		Database: cfg.Database,
	}
	if cfg.Database.Enabled {
		opts.Migrations = archive.Migrations()
	}
	infra, err := bootstrap.Run(opts)
	if err != nil {
		return nil, err
	}
	a, err := build(cfg, infra)
	if err != nil {
		_ = infra.Close()
		return nil, err
	}
	return a, nil
}

func build(cfg *Config, infra *bootstrap.Result) (*App, error) {
	admins := make(map[string]struct{}, len(cfg.Telegram.AdminIDs))
	for _, id := range cfg.Telegram.AdminIDs {
		admins[strconv.FormatInt(id, 10)] = struct{}{}
	}
	polls := poll.NewManager(poll.Options{
		Menu:        cfg.Poll.Menu(),
		DefaultName: cfg.Poll.DefaultName,
		ClosePolicy: poll.ClosePolicy(cfg.Poll.ClosePolicy),
		Admins:      admins,
		IdleExpiry:  cfg.Poll.IdleExpiry(),
	})

	reg := metrics.New()
	tr := newTransport()
	ropts := bot.Options{
		Manager:      polls,
		Sender:       tr,
		Metrics:      reg,
		Unrecognized: bot.UnrecognizedPolicy(cfg.Poll.Unrecognized),
		Scope:        bot.ScopeMode(cfg.Poll.Scope),
	}
	if infra != nil && infra.DB != nil {
		ropts.Archiver = archive.NewStore(infra.DB)
	}
	router, err := bot.NewRouter(ropts)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	tr.router = router

	return &App{
		cfg:       cfg,
		infra:     infra,
		metrics:   reg,
		polls:     polls,
		router:    router,
		transport: tr,
	}, nil
}

// TelegramRunOptions describes the routes and lifecycle hooks of the bot.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	if a == nil || a.router == nil {
		return coretelegram.RunOptions{}, errors.New("app: not bootstrapped")
	}
	core := a.cfg.CoreConfig()
	return coretelegram.RunOptions{
		Config: core,
		DispatcherOptions: tgsender.Options{
			OnResult: a.sendResult,
		},
		Middlewares: coretelegram.DefaultMiddlewares(core, a.metrics, nil),
		Routes: tgrouter.TextRoutes(a.transport.handle, tgrouter.TextOptions{
			Metrics: a.metrics,
			Edited:  true,
		}),
		Commands: telegramCommands(),
		OnStart:  a.start,
		OnStop:   a.shutdown,
	}, nil
}

func (a *App) sendResult(_ string, err error) {
	if err != nil {
		a.metrics.Send("fail")
		return
	}
	a.metrics.Send("ok")
}

func (a *App) start(ctx context.Context, rt coretelegram.Runtime) error {
	a.transport.attach(rt.Bot)

	runCtx, cancel := context.WithCancel(ctx)
	a.stop = cancel

	if a.cfg.Metrics.Listen != "" {
		srv := metrics.NewServer(a.cfg.Metrics, a.metrics)
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			if err := srv.Serve(runCtx); err != nil {
				logger.Metrics.Error("metrics server failed",
					slog.String("event", "metrics.serve"),
					slog.String("err", err.Error()),
				)
			}
		}()
	}

	if idle := a.cfg.Poll.IdleExpiry(); idle > 0 {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.sweep(runCtx, sweepInterval(idle))
		}()
	}

	logger.Bot.Info("poll bot ready",
		slog.String("event", "bot.start"),
		slog.String("scope", a.cfg.Poll.Scope),
		slog.String("close_policy", a.cfg.Poll.ClosePolicy),
		slog.Int("categories", len(a.polls.Menu())),
		slog.Bool("archive", a.infra != nil && a.infra.DB != nil),
	)
	return nil
}

// sweep closes idle polls until ctx is done.
func (a *App) sweep(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := a.router.Expire(ctx); n > 0 {
				logger.Poll.Info("idle polls closed",
					slog.String("event", "poll.expire"),
					slog.Int("polls", n),
				)
			}
		}
	}
}

func sweepInterval(idle time.Duration) time.Duration {
	every := idle / 4
	if every <= 0 || every > maxSweepInterval {
		every = maxSweepInterval
	}
	if every < time.Second {
		every = time.Second
	}
	return every
}

func (a *App) shutdown(context.Context, coretelegram.Runtime) error {
	if a.stop != nil {
		a.stop()
	}
	a.wg.Wait()
	logger.Bot.Info("poll bot stopped", slog.String("event", "bot.stop"))
	return nil
}

// Close releases infrastructure opened by Bootstrap.
func (a *App) Close() error {
	if a == nil {
		return nil
	}
	if a.stop != nil {
		a.stop()
	}
	return a.infra.Close()
}
