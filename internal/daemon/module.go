// Package daemon composes the console daemon from its parts with fx.
package daemon

import (
	"context"
	"time"

	"github.com/chatdeck/chatdeck/internal/api"
	"github.com/chatdeck/chatdeck/internal/bus"
	"github.com/chatdeck/chatdeck/internal/compose"
	"github.com/chatdeck/chatdeck/internal/config"
	"github.com/chatdeck/chatdeck/internal/ingest"
	"github.com/chatdeck/chatdeck/internal/lock"
	"github.com/chatdeck/chatdeck/internal/logging"
	"github.com/chatdeck/chatdeck/internal/status"
	"github.com/chatdeck/chatdeck/internal/store"
	"github.com/chatdeck/chatdeck/internal/timeline"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved startup options passed to the fx module.
type Params struct {
	ConfigPath string
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideTimeline,
			provideIngest,
			provideSender,
			provideServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig(p Params) (*config.Config, error) {
	return config.Load(p.ConfigPath)
}

func provideLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.New(cfg.LogPath())
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(cfg *config.Config, logger *zap.Logger) (*lock.Lock, error) {
	logger.Info("acquiring data dir lock", zap.String("dir", cfg.DataDir))
	l, err := lock.Acquire(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	logger.Info("data dir lock acquired")
	return l, nil
}

func provideStore(cfg *config.Config, _ *lock.Lock, logger *zap.Logger) (*store.DB, error) {
	db, err := store.Open(cfg.DBPath())
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", cfg.DBPath()))
	return db, nil
}

func provideTimeline(cfg *config.Config, db *store.DB, logger *zap.Logger) *timeline.Service {
	return timeline.NewService(db, logger, cfg.PageSize, time.Duration(cfg.FreshnessMinutes)*time.Minute)
}

func provideIngest(db *store.DB, b *bus.Bus, logger *zap.Logger) *ingest.Engine {
	return ingest.NewEngine(db, b, logger)
}

func provideSender(cfg *config.Config, db *store.DB, b *bus.Bus, logger *zap.Logger) *compose.Sender {
	return compose.NewSender(db, b, logger, cfg.WebhookURL, cfg.FromNumber)
}

func provideServer(cfg *config.Config, db *store.DB, b *bus.Bus, machine *status.Machine, svc *timeline.Service, engine *ingest.Engine, sender *compose.Sender, logger *zap.Logger) *api.Server {
	pollInterval := time.Duration(cfg.PollSeconds) * time.Second
	return api.NewServer(logger, cfg.ListenAddr,
		api.NewHealthHandler(db, machine),
		api.NewContactsHandler(db, svc),
		api.NewMessagesHandler(db, svc, sender),
		api.NewIngestHandler(engine),
		api.NewWSHandler(db, svc, b, machine, logger, pollInterval),
	)
}

func registerLifecycle(lc fx.Lifecycle, srv *api.Server, lk *lock.Lock, db *store.DB, machine *status.Machine, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("http server error", zap.Error(err))
				}
			}()
			if err := machine.Transition(status.Ready); err != nil {
				logger.Warn("state transition failed", zap.Error(err))
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Stop(ctx); err != nil {
				logger.Warn("server shutdown error", zap.Error(err))
			}
			if err := db.Close(); err != nil {
				logger.Warn("store close error", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("lock release error", zap.Error(err))
			}
			_ = logger.Sync()
			return nil
		},
	})
}
