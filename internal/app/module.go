package app

import (
	"context"

	"github.com/matheus3301/wamsg/internal/bus"
	"github.com/matheus3301/wamsg/internal/cache"
	"github.com/matheus3301/wamsg/internal/lock"
	"github.com/matheus3301/wamsg/internal/logging"
	"github.com/matheus3301/wamsg/internal/session"
	"github.com/matheus3301/wamsg/internal/status"
	intsync "github.com/matheus3301/wamsg/internal/sync"
	"github.com/matheus3301/wamsg/internal/wa"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved session configuration passed to the fx module.
type Params struct {
	SessionName     string
	LogLevel        string
	FullHistorySync bool
}

// Handles exposes the constructed components to the CLI after the fx
// app starts.
type Handles struct {
	fx.In

	Controller *Controller
	Adapter    *wa.Adapter
	Bus        *bus.Bus
	Machine    *status.Machine
	Logger     *zap.Logger
}

// Module returns the fx module for a live session, composing all
// providers and lifecycle hooks. Cache-only commands never build it.
func Module(p Params) fx.Option {
	return fx.Module("session",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideAdapter,
			provideSyncEngine,
			provideController,
		),
		fx.Invoke(registerLifecycle),
	)
}

// New builds a runnable fx app for the session and populates handles
// for the CLI. Quiet fx logging: this is a CLI, not a daemon.
func New(p Params, handles *Handles) *fx.App {
	return fx.New(
		Module(p),
		fx.Populate(handles),
		fx.NopLogger,
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(session.LogPath(p.SessionName), p.SessionName, p.LogLevel)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(p.SessionName); err != nil {
		return nil, err
	}
	logger.Info("acquiring session lock", zap.String("session", p.SessionName))
	l, err := lock.Acquire(session.Dir(p.SessionName))
	if err != nil {
		return nil, err
	}
	logger.Info("session lock acquired")
	return l, nil
}

func provideStore(p Params, logger *zap.Logger) *cache.Store {
	path := session.CachePath(p.SessionName)
	s := cache.Load(path)
	logger.Info("cache loaded",
		zap.String("path", path),
		zap.Int("messages", s.MessageCount()),
		zap.Int("chats", s.ChatCount()),
	)
	return s
}

func provideAdapter(p Params, logger *zap.Logger) (*wa.Adapter, error) {
	wa.SetFullHistorySync(p.FullHistorySync)
	return wa.NewAdapter(context.Background(), p.SessionName, logger)
}

func provideSyncEngine(p Params, s *cache.Store, b *bus.Bus, logger *zap.Logger) *intsync.Engine {
	return intsync.NewEngine(s, session.CachePath(p.SessionName), b, logger)
}

func provideController(p Params, adapter *wa.Adapter, engine *intsync.Engine, machine *status.Machine, logger *zap.Logger) *Controller {
	return NewController(p.SessionName, adapter, engine, machine, logger)
}

func registerLifecycle(lc fx.Lifecycle, lk *lock.Lock, adapter *wa.Adapter, engine *intsync.Engine, machine *status.Machine, b *bus.Bus, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// Ingestion subscribes to wa.* bus events before any
			// whatsmeow event can fire.
			engine.Start(context.Background())

			handler := wa.NewEventHandler(b, machine, logger)
			adapter.RegisterEventHandler(handler.Handle)

			if !adapter.IsLoggedIn() {
				logger.Info("no credentials found, auth required")
				_ = machine.Transition(status.AuthRequired)
			}
			return nil
		},
		OnStop: func(_ context.Context) error {
			engine.Stop()
			adapter.Disconnect()
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("session stopped")
			return nil
		},
	})
}
