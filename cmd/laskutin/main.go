package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/dukerupert/laskutin/internal/billing"
	"github.com/dukerupert/laskutin/internal/config"
	"github.com/dukerupert/laskutin/internal/database"
	"github.com/dukerupert/laskutin/internal/email"
	"github.com/dukerupert/laskutin/internal/logging"
	"github.com/dukerupert/laskutin/internal/metrics"
	"github.com/dukerupert/laskutin/internal/scheduler"
	"github.com/dukerupert/laskutin/internal/server"
	"github.com/dukerupert/laskutin/internal/snapshot"
	"github.com/dukerupert/laskutin/internal/store"
	"github.com/dukerupert/laskutin/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	if err := run(cfg, logger); err != nil {
		logger.Error("laskutin stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	ledger := store.NewLedger(db)
	m := metrics.New(prometheus.NewRegistry())
	engine := billing.New(ledger, logger.With("component", "billing"), billing.WithRecorder(m))

	hub := websocket.NewHub(logger.With("component", "websocket"))
	m.WatchLiveFeed(hub)

	snapshots := snapshot.NewManager(snapshot.Config{
		Endpoint:   cfg.Snapshot.S3Endpoint,
		Bucket:     cfg.Snapshot.S3Bucket,
		Region:     cfg.Snapshot.S3Region,
		AccessKey:  cfg.Snapshot.S3AccessKey,
		SecretKey:  cfg.Snapshot.S3SecretKey,
		Passphrase: cfg.Snapshot.Passphrase,
		Retention:  cfg.Snapshot.Retention,
	}, ledger, store.NewSnapshotStore(ledger), logger, m)

	srv := server.New(server.Config{
		Ledger:         ledger,
		Engine:         engine,
		Hub:            hub,
		Snapshots:      snapshots,
		Metrics:        m,
		Mailer:         email.NewClient(cfg.Mail.PostmarkToken, cfg.Mail.From),
		OriginPatterns: cfg.WSOrigins,
	}, logger)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("laskutin starting", "addr", httpServer.Addr, "snapshots", snapshots.Enabled())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		hub.Close()
		return httpServer.Shutdown(shutdownCtx)
	})

	// Background cleanup
	g.Go(func() error {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				srv.RateLimiter().Cleanup()
			case <-ctx.Done():
				return nil
			}
		}
	})

	if cfg.Billing.Schedule != "" {
		opts := []scheduler.Option{scheduler.WithBroadcaster(hub)}
		if cfg.Billing.SnapshotFirst {
			opts = append(opts, scheduler.WithSnapshotFirst(snapshots))
		}
		sched, err := scheduler.New(cfg.Billing.Schedule, engine, logger, opts...)
		if err != nil {
			return err
		}
		g.Go(func() error {
			sched.Start(ctx)
			<-ctx.Done()
			sched.Stop()
			return nil
		})
		logger.Info("billing run scheduled", "schedule", cfg.Billing.Schedule)
	}

	return g.Wait()
}
