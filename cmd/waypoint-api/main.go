// README: Entry point; loads config, wires modules, starts HTTP server and
// background jobs.
package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"waypoint/internal/config"
	"waypoint/internal/geocode"
	httptransport "waypoint/internal/http"
	"waypoint/internal/infra"
	"waypoint/internal/jobs"
	"waypoint/internal/metrics"
	"waypoint/internal/modules/location"
	"waypoint/internal/modules/order"
	"waypoint/internal/modules/tracking"
	"waypoint/internal/notify"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	metrics.Register()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		log.Fatal(err)
	}
	defer dbPool.Close()

	redisClient := infra.NewRedis(cfg.Redis.Addr)

	var notifier notify.Notifier
	switch cfg.Notify.Backend {
	case "amqp":
		conn, err := infra.NewAMQP(cfg.AMQP.URL)
		if err != nil {
			log.Fatalf("amqp init: %v", err)
		}
		defer conn.Close()
		notifier, err = notify.NewAMQPNotifier(conn)
		if err != nil {
			log.Fatalf("amqp notifier: %v", err)
		}
	default:
		notifier = notify.NewRedisNotifier(redisClient)
	}
	dispatcher := notify.NewDispatcher(notifier, logger)
	defer dispatcher.Close()

	var geocoder tracking.Geocoder
	if cfg.Maps.APIKey != "" {
		google, err := geocode.NewGoogleResolver(cfg.Maps.APIKey)
		if err != nil {
			log.Fatalf("maps init: %v", err)
		}
		geocoder = geocode.NewCached(google)
	}

	orderStore := order.NewStore(dbPool)
	locationStore := location.NewStore(dbPool, redisClient)

	registry := tracking.NewMemoryRegistry(
		time.Duration(cfg.Tracking.IdleWindowMin)*time.Minute,
		time.Duration(cfg.Tracking.TerminalGraceMin)*time.Minute,
	)
	manager := tracking.NewManager(
		orderStore,
		locationStore,
		registry,
		dispatcher,
		geocoder,
		order.NewRolePolicy(),
		tracking.Config{
			DefaultSpeedKmh: cfg.Tracking.DefaultSpeedKmh,
			ETAThreshold:    time.Duration(cfg.Tracking.ETAThresholdMin) * time.Minute,
			StaleWindow:     time.Duration(cfg.Tracking.StaleWindowMin) * time.Minute,
		},
		logger,
	)
	ingest := location.NewIngest(
		locationStore,
		manager,
		time.Duration(cfg.Tracking.StaleWindowMin)*time.Minute,
		logger,
	)

	jobManager := jobs.NewJobManager(registry, cfg.Tracking.SweepSpec, logger)
	if err := jobManager.StartAll(); err != nil {
		log.Fatalf("jobs: %v", err)
	}
	defer jobManager.StopAll()

	server := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: httptransport.NewRouter(manager, ingest, logger),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("listening", "addr", cfg.HTTP.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
}
