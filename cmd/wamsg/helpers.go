package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/matheus3301/wamsg/internal/app"
	"github.com/matheus3301/wamsg/internal/cache"
	"github.com/matheus3301/wamsg/internal/config"
	"github.com/matheus3301/wamsg/internal/session"
	"github.com/matheus3301/wamsg/internal/timearg"
	"github.com/urfave/cli/v2"
	"go.uber.org/fx"
)

const startTimeout = 15 * time.Second

// activeSession resolves and validates the session name for this
// invocation.
func activeSession(ctx *cli.Context) (string, error) {
	name := session.Resolve(ctx.String("session"))
	if err := session.ValidateName(name); err != nil {
		return "", err
	}
	return name, nil
}

// requireLinked fast-fails commands that need stored credentials. A
// session that never linked has no credential store on disk.
func requireLinked(name string) error {
	if _, err := os.Stat(session.SessionDBPath(name)); err != nil {
		return fmt.Errorf("session %q is not linked: run 'wamsg link' first", name)
	}
	return nil
}

func globalConfig() *config.Config {
	cfg, err := config.Load(session.ConfigPath())
	if err != nil {
		return &config.Config{}
	}
	return cfg
}

// startLive builds and starts the full session graph. The caller must
// stop the returned fx app.
func startLive(ctx *cli.Context, name string) (*app.Handles, *fx.App, error) {
	cfg := globalConfig()
	var handles app.Handles
	fxApp := app.New(app.Params{
		SessionName:     name,
		LogLevel:        cfg.LogLevel,
		FullHistorySync: cfg.FullHistorySync,
	}, &handles)

	startCtx, cancel := context.WithTimeout(ctx.Context, startTimeout)
	defer cancel()
	if err := fxApp.Start(startCtx); err != nil {
		return nil, nil, err
	}
	return &handles, fxApp, nil
}

func stopLive(fxApp *fx.App) {
	stopCtx, cancel := context.WithTimeout(context.Background(), startTimeout)
	defer cancel()
	_ = fxApp.Stop(stopCtx)
}

// loadCacheStore reads the session's cache for offline commands.
func loadCacheStore(name string) *cache.Store {
	return cache.Load(session.CachePath(name))
}

// parseTimeFlag converts a --since/--until value to unix millis.
// Empty means unset.
func parseTimeFlag(value string) (int64, error) {
	if value == "" {
		return 0, nil
	}
	t, err := timearg.Parse(value, time.Now())
	if err != nil {
		return 0, err
	}
	return t.UnixMilli(), nil
}

func formatTime(ms int64) string {
	if ms == 0 {
		return "-"
	}
	return time.UnixMilli(ms).Format("2006-01-02 15:04")
}
