package cmd

import (
	"context"
	"errors"
	"testing"

	coreconfig "github.com/m3rciful/tiffinbot/core/config"
	coretelegram "github.com/m3rciful/tiffinbot/core/telegram"
)

type stubCarrier struct{ cfg *coreconfig.Config }

func (s stubCarrier) CoreConfig() *coreconfig.Config { return s.cfg }

type stubApp struct {
	closed bool
}

func (a *stubApp) TelegramRunOptions() (coretelegram.RunOptions, error) {
	return coretelegram.RunOptions{}, nil
}

func (a *stubApp) Close() error {
	a.closed = true
	return nil
}

func TestResolveConfigPathPrecedence(t *testing.T) {
	t.Setenv("TIFFIN_CONFIG", "/env.yaml")

	got, err := ResolveConfigPath(Options{Args: []string{"--config", "/flag.yaml"}, ConfigEnvVar: "TIFFIN_CONFIG", DefaultConfigPath: "/default.yaml"})
	if err != nil || got != "/flag.yaml" {
		t.Fatalf("flag: got %q, %v", got, err)
	}
	got, err = ResolveConfigPath(Options{ConfigEnvVar: "TIFFIN_CONFIG", DefaultConfigPath: "/default.yaml"})
	if err != nil || got != "/env.yaml" {
		t.Fatalf("env: got %q, %v", got, err)
	}
	got, err = ResolveConfigPath(Options{ConfigEnvVar: "UNSET_TIFFIN_CONFIG", DefaultConfigPath: "/default.yaml"})
	if err != nil || got != "/default.yaml" {
		t.Fatalf("default: got %q, %v", got, err)
	}
	if _, err := ResolveConfigPath(Options{ConfigEnvVar: "UNSET_TIFFIN_CONFIG"}); err == nil {
		t.Fatal("expected error without any path")
	}
	if _, err := ResolveConfigPath(Options{Args: []string{"--version"}}); !errors.Is(err, ErrVersionRequested) {
		t.Fatalf("version: %v", err)
	}
}

func TestRunWiresLifecycle(t *testing.T) {
	app := &stubApp{}
	var started, stopped bool
	err := Run(Options{
		Args: []string{"-c", "/cfg.yaml"},
		LoadConfig: func(path string) (ConfigCarrier, error) {
			if path != "/cfg.yaml" {
				t.Fatalf("path = %q", path)
			}
			return stubCarrier{cfg: &coreconfig.Config{}}, nil
		},
		Bootstrap:      func(ConfigCarrier) (TelegramApp, error) { return app, nil },
		ShutdownLogger: func() error { return nil },
		RunTelegram: func(ctx context.Context, opts coretelegram.RunOptions) error {
			if err := opts.OnStart(ctx, coretelegram.Runtime{}); err != nil {
				return err
			}
			started = true
			stopped = opts.OnStop(ctx, coretelegram.Runtime{}) == nil
			return nil
		},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !started || !stopped {
		t.Fatalf("started=%v stopped=%v", started, stopped)
	}
	if !app.closed {
		t.Fatal("app not closed")
	}
}

func TestRunRequiresCoreConfig(t *testing.T) {
	err := Run(Options{
		Args:       []string{"-c", "x"},
		LoadConfig: func(string) (ConfigCarrier, error) { return stubCarrier{}, nil },
		Bootstrap:  func(ConfigCarrier) (TelegramApp, error) { return &stubApp{}, nil },
	})
	if err == nil {
		t.Fatal("expected missing core config error")
	}
}
