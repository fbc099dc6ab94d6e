package app

import (
	"testing"
	"time"

	"github.com/m3rciful/tiffinbot/core/bootstrap"
)

func TestBuildWiresRunOptions(t *testing.T) {
	cfg := &Config{}
	cfg.Telegram.Token = "x"
	cfg.Telegram.AdminIDs = []int64{1}
	if err := Normalize(cfg); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	a, err := build(cfg, &bootstrap.Result{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer a.Close()

	opts, err := a.TelegramRunOptions()
	if err != nil {
		t.Fatalf("run options: %v", err)
	}
	if opts.Config != cfg.CoreConfig() {
		t.Fatal("run options should carry the core config")
	}
	if len(opts.Routes) != 2 {
		t.Fatalf("routes = %d, want text and edited", len(opts.Routes))
	}
	if len(opts.Middlewares) == 0 || len(opts.Commands) == 0 {
		t.Fatalf("middlewares=%d commands=%d", len(opts.Middlewares), len(opts.Commands))
	}
	if opts.DispatcherOptions.OnResult == nil || opts.OnStart == nil || opts.OnStop == nil {
		t.Fatal("lifecycle hooks missing")
	}
}

func TestTelegramRunOptionsRequiresBootstrap(t *testing.T) {
	var a *App
	if _, err := a.TelegramRunOptions(); err == nil {
		t.Fatal("expected error")
	}
	if err := a.Close(); err != nil {
		t.Fatalf("nil close: %v", err)
	}
}

func TestSweepInterval(t *testing.T) {
	cases := map[time.Duration]time.Duration{
		2 * time.Hour:    time.Minute,
		2 * time.Minute:  30 * time.Second,
		2 * time.Second:  time.Second,
		time.Duration(0): time.Minute,
	}
	for idle, want := range cases {
		if got := sweepInterval(idle); got != want {
			t.Fatalf("sweepInterval(%v) = %v, want %v", idle, got, want)
		}
	}
}
