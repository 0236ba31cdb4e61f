package http

import (
	"context"
	"time"

	"exchange_bridge/core/port/in"
	"exchange_bridge/infra/database"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type HealthHandler struct {
	db              *pgxpool.Pool
	redis           *redis.Client
	calendarService in.CalendarService
}

func NewHealthHandler(db *pgxpool.Pool, redis *redis.Client, calendarService in.CalendarService) *HealthHandler {
	return &HealthHandler{
		db:              db,
		redis:           redis,
		calendarService: calendarService,
	}
}

func (h *HealthHandler) Register(app *fiber.App) {
	app.Get("/health", h.Health)
	app.Get("/ready", h.Ready)
}

func (h *HealthHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Ready reports whether the optional backing stores respond and the
// coordinator holds a healthy snapshot.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)
	allHealthy := true

	var poolStats *database.PoolStats
	if h.db != nil {
		if err := h.db.Ping(ctx); err != nil {
			checks["postgres"] = "unhealthy: " + err.Error()
			allHealthy = false
		} else {
			checks["postgres"] = "healthy"
			poolStats = database.GetPoolStats(h.db)
		}
	} else {
		checks["postgres"] = "not configured"
	}

	if h.redis != nil {
		if err := h.redis.Ping(ctx).Err(); err != nil {
			checks["redis"] = "unhealthy: " + err.Error()
			allHealthy = false
		} else {
			checks["redis"] = "healthy"
		}
	} else {
		checks["redis"] = "not configured"
	}

	if status := h.calendarService.Status(); status.Healthy {
		checks["exchange"] = "healthy"
	} else if status.LastError != "" {
		checks["exchange"] = "unhealthy: " + status.LastError
		allHealthy = false
	} else {
		checks["exchange"] = "pending first refresh"
		allHealthy = false
	}

	status := "ready"
	statusCode := fiber.StatusOK
	if !allHealthy {
		status = "not ready"
		statusCode = fiber.StatusServiceUnavailable
	}

	response := fiber.Map{
		"status":    status,
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if poolStats != nil {
		response["database_pool"] = poolStats
	}
	return c.Status(statusCode).JSON(response)
}
