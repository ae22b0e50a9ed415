package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"trips/internal/app"
	"trips/internal/client"
	"trips/internal/config"
	"trips/internal/handler"
	internalRedis "trips/internal/redis"
	"trips/internal/repository/postgres"
	"trips/internal/resilience"
	"trips/internal/service"
	"trips/internal/stream"
)

func main() {
	// A missing .env file is fine; variables come from the environment.
	_ = godotenv.Load()

	cfg := config.Load()
	log := newLogger(cfg.Log)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// New Relic first, so the database and Redis clients can be instrumented.
	var nrApp *newrelic.Application
	var err error
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			log.WithError(err).Warn("failed to initialize New Relic")
		} else {
			log.WithField("app", cfg.NewRelic.AppName).Info("New Relic enabled")
		}
	}

	db, err := app.NewDatabase(ctx, cfg.Database, nrApp)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	defer db.Close()
	log.Info("connected to PostgreSQL")

	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info("connected to Redis")

	server, consumers, geoCache := wire(db, redisClient, nrApp, cfg, log)
	defer geoCache.Close()

	for _, consumer := range consumers {
		if err := consumer.EnsureGroup(ctx); err != nil {
			log.WithError(err).Fatal("failed to create consumer group")
		}
		consumer.Start()
	}

	go func() {
		log.WithField("port", cfg.Server.Port).Info("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Fatal("server forced to shutdown")
	}

	for _, consumer := range consumers {
		consumer.Stop()
	}

	log.Info("server exited")
}

// wire builds the object graph and returns the HTTP server, the stream
// consumers, and the geo cache (whose sweeper needs closing on shutdown).
func wire(db *sql.DB, redisClient *redis.Client, nrApp *newrelic.Application, cfg *config.Config, log *logrus.Logger) (*http.Server, []*stream.Consumer, *resilience.Cache[string, client.H3Result]) {
	// Redis stores.
	pinStore := internalRedis.NewPinStore(redisClient)
	timerStore := internalRedis.NewTimerStore(redisClient)
	idempotencyStore := internalRedis.NewIdempotencyStore(redisClient)
	tripCache := internalRedis.NewTripCache(redisClient)

	// Repositories.
	tripRepo := postgres.NewTripRepository(db)
	auditRepo := postgres.NewAuditRepository(db)

	// One limiter shared across downstream clients; each client carries its
	// own breaker.
	limiter := resilience.NewRateLimiter(cfg.RateLimit.Capacity, cfg.RateLimit.RatePerSec)
	breakerCfg := resilience.BreakerConfig{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		SuccessThreshold: cfg.Breaker.SuccessThreshold,
		Timeout:          cfg.Breaker.Timeout,
		RollingWindow:    cfg.Breaker.RollingWindow,
	}

	geoCache := resilience.NewCache[string, client.H3Result](cfg.GeoCache.MaxSize)
	geoCache.StartSweeper(cfg.GeoCache.SweepInterval)

	geoClient := client.NewGeoClient(clientConfig(cfg.Downstream.Geo), limiter, breakerCfg, geoCache)
	pricingClient := client.NewPricingClient(clientConfig(cfg.Downstream.Pricing), limiter, breakerCfg)
	paymentsClient := client.NewPaymentsClient(clientConfig(cfg.Downstream.Payments), limiter, breakerCfg)
	presenceClient := client.NewPresenceClient(clientConfig(cfg.Downstream.Presence), limiter, breakerCfg)

	publisher := stream.NewPublisher(redisClient)

	tripService := service.NewTripService(
		tripRepo,
		auditRepo,
		pinStore,
		timerStore,
		tripCache,
		geoClient,
		pricingClient,
		paymentsClient,
		presenceClient,
		publisher,
		cfg.Stream.Trips,
		service.Timers{
			OfferTTL:        cfg.Timers.OfferTTL,
			PinTTL:          cfg.Timers.PinTTL,
			RiderNoShowTTL:  cfg.Timers.RiderNoShowTTL,
			DriverNoShowTTL: cfg.Timers.DriverNoShowTTL,
		},
		log,
	)

	paymentsConsumer := stream.NewConsumer(redisClient, cfg.Stream.Payments, cfg.Stream.Group, cfg.Stream.Consumer, log)
	presenceConsumer := stream.NewConsumer(redisClient, cfg.Stream.Presence, cfg.Stream.Group, cfg.Stream.Consumer, log)
	tripService.RegisterConsumers(paymentsConsumer, presenceConsumer)

	tripHandler := handler.NewTripHandler(tripService)

	router := app.NewRouter(app.RouterDeps{
		TripHandler:      tripHandler,
		IdempotencyStore: idempotencyStore,
		NewRelicApp:      nrApp,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return server, []*stream.Consumer{paymentsConsumer, presenceConsumer}, geoCache
}

func clientConfig(cfg config.ServiceConfig) client.Config {
	return client.Config{
		BaseURL: cfg.BaseURL,
		Timeout: cfg.Timeout,
		Retries: cfg.Retries,
	}
}

func newLogger(cfg config.LogConfig) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)

	if cfg.Format == "text" {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		log.SetFormatter(&logrus.JSONFormatter{})
	}

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	return log
}
