package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/straye-as/target-analytics/internal/analytics"
	"github.com/straye-as/target-analytics/internal/cache"
	"github.com/straye-as/target-analytics/internal/config"
	"github.com/straye-as/target-analytics/internal/database"
	"github.com/straye-as/target-analytics/internal/datawarehouse"
	"github.com/straye-as/target-analytics/internal/http/handler"
	"github.com/straye-as/target-analytics/internal/http/middleware"
	"github.com/straye-as/target-analytics/internal/http/router"
	"github.com/straye-as/target-analytics/internal/jobs"
	"github.com/straye-as/target-analytics/internal/logger"
	"github.com/straye-as/target-analytics/internal/repository"
	"github.com/straye-as/target-analytics/internal/service"
	"go.uber.org/zap"
)

const pacingMonitorTimeout = 5 * time.Minute

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	basicCfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.NewLogger(&basicCfg.Logging, &basicCfg.App)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting application",
		zap.String("app", basicCfg.App.Name),
		zap.String("env", basicCfg.App.Environment),
		zap.Int("port", basicCfg.App.Port),
	)

	cfg, err := config.LoadWithSecrets(ctx, log)
	if err != nil {
		return fmt.Errorf("failed to load secrets: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	loc, err := cfg.Analytics.Location()
	if err != nil {
		return err
	}
	fallbackZone, err := cfg.Analytics.FallbackZone()
	if err != nil {
		return err
	}

	db, err := database.NewDatabase(&cfg.Database, log)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() { _ = database.Close(db) }()

	if cfg.App.Environment == "development" || cfg.App.Environment == "local" {
		if err := database.AutoMigrate(db); err != nil {
			return fmt.Errorf("failed to auto-migrate: %w", err)
		}
	}

	var dwClient *datawarehouse.Client
	if cfg.DataWarehouse.Enabled {
		dwClient, err = datawarehouse.NewClient(&cfg.DataWarehouse, log)
		if err != nil {
			log.Warn("Data warehouse connection failed, continuing without it", zap.Error(err))
		}
	} else {
		log.Info("Data warehouse not configured, skipping")
	}
	defer func() {
		if err := dwClient.Close(); err != nil {
			log.Warn("Error closing data warehouse connection", zap.Error(err))
		}
	}()

	redisClient, err := cache.NewRedisClient(ctx, &cfg.Cache, log)
	if err != nil {
		log.Warn("Redis unavailable, serving reports without cache", zap.Error(err))
		redisClient = nil
	}
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}
	reportCache := cache.NewReportCache(redisClient, cfg.Cache.TTLDuration(), log)

	offerRepo := repository.NewOfferRepository(db)
	targetRepo := repository.NewTargetRepository(db)
	referenceRepo := repository.NewReferenceRepository(db)

	var offers service.OfferSource = offerRepo
	if cfg.Analytics.OfferSource == config.OfferSourceWarehouse {
		if !dwClient.IsEnabled() {
			return fmt.Errorf("offer source is %q but the data warehouse is not available", config.OfferSourceWarehouse)
		}
		offers = dwClient
	}
	log.Info("Offer source selected", zap.String("source", cfg.Analytics.OfferSource))

	opts := analytics.Options{
		Location:       loc,
		FallbackZoneID: fallbackZone,
	}
	achievementService := service.NewTargetAchievementService(offers, targetRepo, referenceRepo, reportCache, opts, log)
	analyticsService := service.NewAnalyticsService(achievementService, offers, targetRepo, cfg.Analytics.DefaultTopN, log)

	rt := router.NewRouter(
		cfg,
		log,
		db,
		dwClient,
		redisClient,
		middleware.NewRateLimiter(&cfg.RateLimit, log),
		handler.NewTargetHandler(achievementService, loc, log),
		handler.NewAnalyticsHandler(analyticsService, loc, log),
	)

	var scheduler *jobs.Scheduler
	if cfg.Jobs.PacingMonitorEnabled {
		scheduler = jobs.NewScheduler(log, loc)
		monitor := jobs.NewPacingMonitorJob(achievementService, lockerFor(redisClient), log, pacingMonitorTimeout, loc)
		if err := scheduler.AddJob(jobs.PacingMonitorJobName, cfg.Jobs.PacingMonitorSchedule, monitor.Run); err != nil {
			log.Error("Failed to register pacing monitor job", zap.Error(err))
		} else {
			scheduler.Start()
		}
	} else {
		log.Info("Pacing monitor disabled")
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      rt.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: cfg.Server.WriteTimeoutDuration(),
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))

		if scheduler != nil {
			<-scheduler.Stop().Done()
			log.Info("Scheduler stopped")
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("Failed to shutdown gracefully", zap.Error(err))
			return err
		}

		log.Info("Server stopped gracefully")
	}

	return nil
}

// lockerFor avoids handing the job a typed nil interface
func lockerFor(client *redis.Client) jobs.Locker {
	if locker := jobs.NewRedisLocker(client); locker != nil {
		return locker
	}
	return nil
}
