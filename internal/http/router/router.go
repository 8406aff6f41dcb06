package router

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"
	"github.com/straye-as/target-analytics/internal/config"
	"github.com/straye-as/target-analytics/internal/database"
	"github.com/straye-as/target-analytics/internal/datawarehouse"
	"github.com/straye-as/target-analytics/internal/http/handler"
	"github.com/straye-as/target-analytics/internal/http/middleware"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const healthTimeout = 3 * time.Second

type Router struct {
	cfg              *config.Config
	logger           *zap.Logger
	db               *gorm.DB
	dwClient         *datawarehouse.Client
	redis            *redis.Client
	rateLimiter      *middleware.RateLimiter
	targetHandler    *handler.TargetHandler
	analyticsHandler *handler.AnalyticsHandler
}

// NewRouter wires the HTTP surface. dwClient and redisClient may be nil when
// the warehouse or the cache is disabled.
func NewRouter(
	cfg *config.Config,
	logger *zap.Logger,
	db *gorm.DB,
	dwClient *datawarehouse.Client,
	redisClient *redis.Client,
	rateLimiter *middleware.RateLimiter,
	targetHandler *handler.TargetHandler,
	analyticsHandler *handler.AnalyticsHandler,
) *Router {
	return &Router{
		cfg:              cfg,
		logger:           logger,
		db:               db,
		dwClient:         dwClient,
		redis:            redisClient,
		rateLimiter:      rateLimiter,
		targetHandler:    targetHandler,
		analyticsHandler: analyticsHandler,
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Logging(rt.logger))
	r.Use(middleware.Recovery(rt.logger))
	r.Use(middleware.SecurityHeaders(&rt.cfg.Security))
	r.Use(middleware.CORS(&rt.cfg.CORS, rt.cfg.App.Environment, rt.logger))
	r.Use(rt.rateLimiter.Limit)

	// Liveness
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Get("/health/db", rt.databaseHealth)
	r.Get("/health/ready", rt.readiness)

	r.Route("/api/v1", func(r chi.Router) {
		if timeout := rt.cfg.Server.RequestTimeoutDuration(); timeout > 0 {
			r.Use(chimw.Timeout(timeout))
		}

		r.Route("/targets", func(r chi.Router) {
			r.Get("/achievement", rt.targetHandler.GetAchievement)
			r.Put("/", rt.targetHandler.Upsert)
		})

		r.Route("/analytics", func(r chi.Router) {
			r.Get("/product-types", rt.analyticsHandler.ProductTypes)
			r.Get("/zone-product-pivot", rt.analyticsHandler.ZoneProductPivot)
			r.Get("/user-zone", rt.analyticsHandler.UserZone)
			r.Get("/time-series", rt.analyticsHandler.TimeSeries)
			r.Get("/rankings", rt.analyticsHandler.Rankings)
			r.Get("/histogram", rt.analyticsHandler.Histogram)
		})
	})

	return r
}

// databaseHealth is the readiness check with connection pool statistics
func (rt *Router) databaseHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	stats, err := database.HealthCheckWithStats(ctx, rt.db)
	if err != nil {
		rt.logger.Error("Database health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":  "unhealthy",
			"error":   err.Error(),
			"service": "database",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"service": "database",
		"stats": map[string]interface{}{
			"max_open_connections": stats.MaxOpenConnections,
			"open_connections":     stats.OpenConnections,
			"in_use":               stats.InUse,
			"idle":                 stats.Idle,
			"wait_count":           stats.WaitCount,
			"wait_duration_ms":     stats.WaitDuration.Milliseconds(),
		},
	})
}

// readiness checks every enabled dependency. The warehouse only counts when
// it is the configured offer source; otherwise its state is reported but not
// required.
func (rt *Router) readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	checks := make(map[string]interface{})
	allHealthy := true

	if err := database.HealthCheck(ctx, rt.db); err != nil {
		rt.logger.Error("Database health check failed", zap.Error(err))
		checks["database"] = map[string]interface{}{"status": "unhealthy", "error": err.Error()}
		allHealthy = false
	} else {
		checks["database"] = map[string]interface{}{"status": "healthy"}
	}

	dw := rt.dwClient.HealthCheck(ctx)
	checks["datawarehouse"] = dw
	if rt.cfg.Analytics.OfferSource == config.OfferSourceWarehouse && dw.Status != "healthy" {
		allHealthy = false
	}

	if rt.redis != nil {
		if err := rt.redis.Ping(ctx).Err(); err != nil {
			rt.logger.Warn("Redis health check failed", zap.Error(err))
			checks["cache"] = map[string]interface{}{"status": "unhealthy", "error": err.Error()}
			allHealthy = false
		} else {
			checks["cache"] = map[string]interface{}{"status": "healthy"}
		}
	} else {
		checks["cache"] = map[string]interface{}{"status": "disabled"}
	}

	status, code := "healthy", http.StatusOK
	if !allHealthy {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]interface{}{
		"status": status,
		"checks": checks,
	})
}
