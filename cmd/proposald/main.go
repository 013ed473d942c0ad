// Command proposald serves the proposal lifecycle API.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/splitlease/proposals/internal/api"
	"github.com/splitlease/proposals/internal/config"
	"github.com/splitlease/proposals/internal/db"
	"github.com/splitlease/proposals/internal/db/migrations"
	"github.com/splitlease/proposals/internal/dbpool"
	"github.com/splitlease/proposals/internal/lease"
	"github.com/splitlease/proposals/internal/lifecycle"
	"github.com/splitlease/proposals/internal/middleware"
	"github.com/splitlease/proposals/internal/pricing"
	"github.com/splitlease/proposals/internal/service"
	"github.com/splitlease/proposals/internal/store"
	"github.com/splitlease/proposals/internal/ws"
)

const (
	readHeaderTimeout = 10 * time.Second
	readTimeout       = 30 * time.Second
	writeTimeout      = 30 * time.Second
	idleTimeout       = 120 * time.Second
	shutdownTimeout   = 15 * time.Second
)

func main() {
	log := logrus.New()

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("loading config")
	}

	configureLogger(log, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.WithError(err).Fatal("proposald exited")
	}

	log.Info("proposald stopped")
}

func configureLogger(log *logrus.Logger, cfg *config.Config) {
	if cfg.LogFormat == "text" {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		log.SetFormatter(&logrus.JSONFormatter{})
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
}

func run(ctx context.Context, cfg *config.Config, log *logrus.Logger) error {
	pool, err := dbpool.New(ctx, cfg.DatabaseURL.Value(), dbpool.Options{
		MaxConns: int32(cfg.DBMaxConns), //nolint:gosec // bounded to 200 by config validation.
	})
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	if err := db.RunMigrations(ctx, pool, log, migrations.FS); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	base := store.Base{Pool: pool, Log: log}
	proposals := store.NewProposalStore(base, cfg.DBLockTimeout)

	notify := service.NewNotifyWorker(log, cfg.NotifyQueueSize,
		store.NewEventPublisher(base),
		service.LogNotifier{Log: log},
	)

	svc := service.NewProposalService(
		proposals,
		lifecycle.NewMachine(),
		lease.New(cfg.LeaseTimeout),
		notify,
		pricing.WeeklyQuoter{},
		log,
	)

	hub := ws.NewHub(log)

	if err := db.NewNotifyBridge(log, pool, hub).Start(ctx); err != nil {
		return fmt.Errorf("starting notify bridge: %w", err)
	}

	router := api.NewRouter(ctx, &api.RouterDeps{
		Log:         log,
		Pool:        pool,
		Hub:         hub,
		Proposals:   svc,
		Meetings:    svc,
		Sweeps:      svc,
		Keys:        middleware.StaticKeys(cfg.KeyValues()),
		CORSOrigins: cfg.CORSOrigins,
		StaleAfter:  cfg.StaleAfter,
		Version:     config.Version,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	// The worker and hub outlive the request context so in-flight events
	// are flushed after the listener closes.
	bgCtx, cancelBg := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelBg()

	g, gctx := errgroup.WithContext(ctx)

	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		notify.Run(bgCtx)
	}()

	go hub.Run(bgCtx)

	g.Go(func() error {
		log.WithFields(logrus.Fields{
			"addr":    srv.Addr,
			"version": config.Version,
			"schema":  db.SchemaVersion(),
		}).Info("proposald listening")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}

		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		hub.Shutdown()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}

		return nil
	})

	err = g.Wait()

	cancelBg()
	<-workerDone

	return err
}
