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

	"github.com/linkpulse/linkpulse/config"
	appmodel "github.com/linkpulse/linkpulse/internal/app/model"
	apprepository "github.com/linkpulse/linkpulse/internal/app/repository"
	appserver "github.com/linkpulse/linkpulse/internal/app/server"
	appservice "github.com/linkpulse/linkpulse/internal/app/service"
	httputil "github.com/linkpulse/linkpulse/internal/http/util"
	"github.com/linkpulse/linkpulse/internal/infra/geoip"
	"github.com/linkpulse/linkpulse/internal/infra/logger"
	infraNATS "github.com/linkpulse/linkpulse/internal/infra/nats"
	infraPostgres "github.com/linkpulse/linkpulse/internal/infra/postgres"
	infraPrometheus "github.com/linkpulse/linkpulse/internal/infra/prometheus"
	infraRedis "github.com/linkpulse/linkpulse/internal/infra/redis"
	"go.uber.org/zap"
)

const (
	ownerTokenTTL   = 30 * 24 * time.Hour
	rollupInterval  = 5 * time.Minute
	shutdownTimeout = 10 * time.Second
)

func main() {
	ctx := context.Background()

	isDev := os.Getenv("APP_ENV") != "production"
	log := logger.MustInit(logger.Config{
		Development: isDev,
		Level:       os.Getenv("LOG_LEVEL"),
	})
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config", zap.Error(err))
	}

	log.Info("Configuration loaded successfully",
		zap.Int("server_port", cfg.Server.Port),
		zap.Int("code_length", cfg.Server.CodeLength),
		zap.String("postgres_host", cfg.Postgres.Host),
		zap.Int("postgres_port", cfg.Postgres.Port),
		zap.String("postgres_db", cfg.Postgres.Database),
		zap.String("redis_host", cfg.Redis.Host),
		zap.Int("redis_port", cfg.Redis.Port),
		zap.String("nats_host", cfg.NATS.Host),
		zap.Int("nats_port", cfg.NATS.Port),
	)

	gormDB, err := infraPostgres.NewGorm(cfg.Postgres)
	if err != nil {
		log.Fatal("Failed to open GORM connection", zap.Error(err))
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		log.Fatal("Failed to access underlying SQL DB", zap.Error(err))
	}
	defer sqlDB.Close()

	if err := infraPostgres.AutoMigrate(ctx, gormDB, &appmodel.Link{}, &appmodel.Collection{}); err != nil {
		log.Fatal("Failed to run database migrations", zap.Error(err))
	}

	pool, err := infraPostgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		log.Fatal("Failed to connect to Postgres", zap.Error(err))
	}
	defer pool.Close()

	if err := infraPostgres.MigrateLinkKeys(ctx, pool); err != nil {
		log.Fatal("Failed to run link key migrations", zap.Error(err))
	}
	if err := infraPostgres.MigrateAnalytics(ctx, pool); err != nil {
		log.Fatal("Failed to run analytics migrations", zap.Error(err))
	}
	log.Info("Connected to Postgres successfully")

	redisClient, err := infraRedis.NewClient(ctx, cfg.Redis)
	if err != nil {
		log.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	log.Info("Connected to Redis successfully")

	natsConn, js, err := infraNATS.Connect(cfg.NATS)
	if err != nil {
		log.Fatal("Failed to connect to NATS", zap.Error(err))
	}
	defer natsConn.Drain()
	log.Info("Connected to NATS successfully", zap.Bool("jetstream_ready", js != nil))

	if !isDev {
		promServer := infraPrometheus.NewServer(cfg.Prometheus)
		go func() {
			log.Info("Starting Prometheus metrics server",
				zap.Int("port", cfg.Prometheus.Port))
			if err := promServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Prometheus metrics server stopped unexpectedly", zap.Error(err))
			}
		}()
		defer func() {
			if err := promServer.Close(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Warn("Failed to close Prometheus server", zap.Error(err))
			}
		}()
	} else {
		log.Info("Skipping Prometheus metrics server in development mode")
	}

	linkRepo := apprepository.NewCachedLinkRepository(
		apprepository.NewLinkRepository(gormDB), redisClient, log)
	collectionRepo := apprepository.NewCollectionRepository(gormDB)
	analyticsRepo := apprepository.NewAnalyticsRepository(pool)

	keyIndex := appservice.NewKeyIndex(linkRepo)
	if err := keyIndex.Seed(ctx); err != nil {
		log.Fatal("Failed to seed key index", zap.Error(err))
	}

	generator := appservice.NewCodeGenerator(cfg.Server.CodeLength)
	linkService := appservice.NewLinkService(linkRepo, analyticsRepo, generator, keyIndex)
	collectionService := appservice.NewCollectionService(collectionRepo, linkRepo, analyticsRepo)

	publisher := appservice.NewClickPublisher(js)
	resolver := appservice.NewResolver(linkRepo, publisher, log)

	var geoResolver geoip.Resolver = geoip.Nop{}
	if cfg.Geo.Endpoint != "" {
		timeout, _ := time.ParseDuration(cfg.Geo.Timeout)
		geoResolver = geoip.NewHTTPResolver(cfg.Geo.Endpoint, timeout)
	}
	normalizer := appservice.NewNormalizer(geoResolver, log)
	aggregator := appservice.NewAggregator(analyticsRepo, linkRepo, log)

	consumer := appservice.NewClickConsumer(js, log, normalizer, aggregator)
	if err := consumer.Start(); err != nil {
		log.Fatal("Failed to start click consumer", zap.Error(err))
	}
	defer consumer.Stop()

	reconciler := appservice.NewRollupReconciler(log, analyticsRepo, rollupInterval)
	reconciler.Start()
	defer reconciler.Stop()

	signer := httputil.NewTokenSigner([]byte(cfg.Auth.Secret), ownerTokenTTL)

	server := appserver.New(appserver.Dependencies{
		Logger:      log,
		Redis:       redisClient,
		Resolver:    resolver,
		LinkService: linkService,
		Collections: collectionService,
		Analytics:   analyticsRepo,
		TokenSigner: signer,
	})

	go func() {
		if err := server.Listen(fmt.Sprintf(":%d", cfg.Server.Port)); err != nil {
			log.Fatal("Fiber server exited", zap.Error(err))
		}
	}()
	log.Info("Server listening", zap.Int("port", cfg.Server.Port))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Failed to shut down server cleanly", zap.Error(err))
	}
}
