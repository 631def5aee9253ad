// Package app composes the client with fx: session lock, store, identity,
// REST client, transport, engine, control socket and metrics.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/matheus3301/nexus/internal/api"
	"github.com/matheus3301/nexus/internal/bus"
	"github.com/matheus3301/nexus/internal/chat"
	"github.com/matheus3301/nexus/internal/config"
	"github.com/matheus3301/nexus/internal/control"
	"github.com/matheus3301/nexus/internal/lock"
	"github.com/matheus3301/nexus/internal/logging"
	"github.com/matheus3301/nexus/internal/metrics"
	"github.com/matheus3301/nexus/internal/session"
	"github.com/matheus3301/nexus/internal/status"
	"github.com/matheus3301/nexus/internal/store"
	"github.com/matheus3301/nexus/internal/transport"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// Params holds the resolved session configuration passed to the fx module.
type Params struct {
	SessionName string
	Config      *config.Config
	SocketPath  string // optional override for testing; empty = use default
	// Console mirrors logs to stderr; off when the TUI owns the terminal.
	Console bool
	// Dial replaces the STOMP transport, for tests.
	Dial chat.DialFunc
}

// Module returns the fx module for a client session, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("nexus",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideIdentity,
			provideMetrics,
			provideAPIClient,
			provideDial,
			provideEngine,
			provideControl,
			provideMetricsServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

// WithZapLogger routes fx's own events to the session logger.
func WithZapLogger() fx.Option {
	return fx.WithLogger(func(l *zap.Logger) fxevent.Logger {
		return &fxevent.ZapLogger{Logger: l.Named("fx")}
	})
}

func provideConfig(p Params) (*config.Config, error) {
	if p.Config != nil {
		return p.Config.WithDefaults(), nil
	}
	return config.LoadOrDefault(session.ConfigPath())
}

func provideLogger(p Params, cfg *config.Config) (*zap.Logger, error) {
	return logging.New(session.LogPath(p.SessionName), p.SessionName, logging.Options{
		Level:   cfg.LogLevel,
		Console: p.Console,
	})
}

func provideBus(logger *zap.Logger) *bus.Bus {
	b := bus.New()
	b.SetDropHandler(func(evt bus.Event, namespace string) {
		logger.Warn("bus subscriber full, event dropped",
			zap.String("kind", evt.Kind),
			zap.String("subscriber", namespace),
			zap.Uint64("dropped_total", b.Dropped()))
	})
	return b
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

// provideStore takes the lock so the database is only opened by its holder.
func provideStore(p Params, logger *zap.Logger, _ *lock.Lock) (*store.DB, error) {
	dbPath := session.DBPath(p.SessionName)
	db, result, err := store.OpenMigrated(dbPath)
	if err != nil {
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideIdentity(p Params, db *store.DB) (session.Identity, error) {
	id, err := db.LoadIdentity()
	if errors.Is(err, store.ErrNoIdentity) {
		return session.Identity{}, fmt.Errorf("session %q is not signed in (run nexusctl login): %w", p.SessionName, err)
	}
	return id, err
}

func provideMetrics(b *bus.Bus) *metrics.Metrics {
	return metrics.New(b)
}

func provideAPIClient(cfg *config.Config, id session.Identity) *api.Client {
	return api.New(cfg.ServerURL,
		api.WithToken(id.Token),
		api.WithTimeout(cfg.HTTPTimeout.Duration),
		api.WithSearchCache(api.NewSearchCache(context.Background(), cfg.SearchCacheTTL.Duration)),
	)
}

func provideDial(p Params, cfg *config.Config, b *bus.Bus, logger *zap.Logger) chat.DialFunc {
	if p.Dial != nil {
		return p.Dial
	}
	return chat.DialTransport(&transport.Dialer{
		URL:              cfg.WebSocketURL,
		Bus:              b,
		Logger:           logger,
		HandshakeTimeout: cfg.HTTPTimeout.Duration,
	})
}

func provideEngine(
	id session.Identity,
	cfg *config.Config,
	db *store.DB,
	b *bus.Bus,
	machine *status.Machine,
	client *api.Client,
	dial chat.DialFunc,
	m *metrics.Metrics,
	logger *zap.Logger,
) (*chat.Engine, error) {
	lastPeer, err := db.LastPeer()
	if err != nil {
		logger.Warn("last conversation not restored", zap.Error(err))
	}
	return chat.New(chat.Options{
		Identity:       id,
		LastPeer:       lastPeer,
		Bus:            b,
		Machine:        machine,
		Dial:           dial,
		History:        client,
		Peers:          db,
		Metrics:        m,
		Logger:         logger,
		BadgeSeedDelay: cfg.BadgeSeedDelay.Duration,
		RefreshDelay:   cfg.ContactRefreshDelay.Duration,
	})
}

func provideControl(p Params, b *bus.Bus, machine *status.Machine, logger *zap.Logger) (*control.Server, error) {
	socketPath := p.SocketPath
	if socketPath == "" {
		socketPath = session.SocketPath(p.SessionName)
	}
	return control.NewServer(socketPath, b, machine, logger)
}

// provideMetricsServer returns nil when no metrics address is configured.
func provideMetricsServer(cfg *config.Config, m *metrics.Metrics, logger *zap.Logger) *metrics.Server {
	if cfg.MetricsAddr == "" {
		return nil
	}
	return metrics.NewServer(cfg.MetricsAddr, m, logger)
}

func registerLifecycle(lc fx.Lifecycle, ctl *control.Server, engine *chat.Engine, ms *metrics.Server, db *store.DB, lk *lock.Lock, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			// Start control server in background.
			go func() {
				if err := ctl.Start(); err != nil {
					logger.Error("control server error", zap.Error(err))
				}
			}()

			if ms != nil {
				if err := ms.Start(); err != nil {
					return fmt.Errorf("start metrics: %w", err)
				}
			}

			return engine.Start(ctx)
		},
		OnStop: func(ctx context.Context) error {
			engine.Stop()
			if ms != nil {
				if err := ms.Stop(ctx); err != nil {
					logger.Warn("error stopping metrics", zap.Error(err))
				}
			}
			ctl.Stop(ctx)
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("session stopped")
			return nil
		},
	})
}
