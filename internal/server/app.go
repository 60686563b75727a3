// Package server initializes and runs the chat server.
// It opens the database, applies migrations, wires the services into the
// chat engine and serves websocket clients, /metrics and gRPC health until
// shutdown.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmitrijs2005/pdcc/internal/logging"
	"github.com/dmitrijs2005/pdcc/internal/server/chat"
	"github.com/dmitrijs2005/pdcc/internal/server/config"
	"github.com/dmitrijs2005/pdcc/internal/server/hub"
	"github.com/dmitrijs2005/pdcc/internal/server/metrics"
	"github.com/dmitrijs2005/pdcc/internal/server/permissions"
	"github.com/dmitrijs2005/pdcc/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/pdcc/internal/server/services"
	"github.com/dmitrijs2005/pdcc/internal/server/ws"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	gs "github.com/dmitrijs2005/pdcc/internal/server/grpc"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	config      *config.Config
	logger      logging.Logger
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	registry    *prometheus.Registry
	users       *services.UserService
	engine      *chat.Engine
}

func NewApp(c *config.Config) (*App, error) {

	logger := logging.NewJSONLogger(os.Stdout, slog.LevelInfo)

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	return newApp(c, logger, db, repomanager.NewPostgresRepositoryManager()), nil
}

func newApp(c *config.Config, logger logging.Logger, db *sql.DB, rm repomanager.RepositoryManager) *App {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	users := services.NewUserService(db, rm, c)
	engine := chat.NewEngine(chat.Options{
		Config: chat.Config{
			AuthTimeout:      c.AuthTimeout,
			MaxLoginAttempts: c.MaxLoginAttempts,
			ProtocolVersion:  c.ProtocolVersion,
			MaxMessageLength: c.MaxMessageLength,
		},
		Accounts: users,
		Social:   services.NewSocialService(db, rm),
		Messages: services.NewMessageService(db, rm),
		Gate:     permissions.NewGate(c.CommandLevels),
		Registry: hub.NewRegistry(),
		Metrics:  metrics.New(registry),
		Logger:   logger,
	})

	return &App{
		config:      c,
		logger:      logger,
		db:          db,
		repomanager: rm,
		registry:    registry,
		users:       users,
		engine:      engine,
	}
}

func (app *App) routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/ws", ws.NewHandler(app.engine, app.logger))
	mux.Handle("/metrics", promhttp.HandlerFor(app.registry, promhttp.HandlerOpts{Registry: app.registry}))
	return mux
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// runHTTP serves /ws and /metrics. Request contexts derive from ctx, so
// cancelling it also ends open websocket sessions.
func (app *App) runHTTP(ctx context.Context) error {
	srv := &http.Server{
		Addr:              app.config.EndpointAddrWS,
		Handler:           app.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		app.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.logger.Error(ctx, "http shutdown failed", "error", err)
		}
	}()

	app.logger.Info(ctx, "Starting HTTP server", "address", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (app *App) seedAdmins(ctx context.Context) error {
	if len(app.config.Admins) == 0 {
		return nil
	}
	missing, err := app.users.SeedAdmins(ctx)
	if err != nil {
		return fmt.Errorf("admin seeding failed: %w", err)
	}
	for _, name := range missing {
		app.logger.Warn(ctx, "admin not registered yet, level applies on registration", "username", name)
	}
	app.logger.Info(ctx, "admins seeded", "level", app.config.AdminLevel(), "pending", len(missing))
	return nil
}

// Run applies migrations and serves until ctx is cancelled, a signal arrives
// or one of the listeners fails.
func (app *App) Run(ctx context.Context) error {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	defer func() {
		if err := app.db.Close(); err != nil {
			app.logger.Error(ctx, "db close failed", "error", err)
		}
	}()

	if err := app.repomanager.RunMigrations(ctx, app.db); err != nil {
		return fmt.Errorf("migrations failed: %w", err)
	}

	if err := app.seedAdmins(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return app.runHTTP(gctx)
	})

	g.Go(func() error {
		return gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.db).Run(gctx)
	})

	err := g.Wait()
	app.logger.Info(ctx, "App stopped", "error", err)
	return err
}
