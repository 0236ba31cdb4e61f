package bootstrap

import (
	"fmt"
	"strings"

	"exchange_bridge/adapter/in/http"
	"exchange_bridge/config"
	"exchange_bridge/infra/middleware"
	"exchange_bridge/pkg/logger"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

// NewAPI builds the fiber app over already-wired dependencies.
func NewAPI(cfg *config.Config, deps *Dependencies) (*fiber.App, error) {
	app := fiber.New(fiber.Config{
		ErrorHandler:          middleware.ErrorHandler(),
		DisableStartupMessage: cfg.IsProduction(),
		ReadBufferSize:        16384,
		WriteBufferSize:       16384,

		// go-json: faster JSON serialization than encoding/json
		JSONEncoder: json.Marshal,
		JSONDecoder: json.Unmarshal,

		BodyLimit: 1 * 1024 * 1024,
	})

	// Global middleware stack (order matters)
	app.Use(middleware.Recover())
	app.Use(middleware.RequestID())
	app.Use(middleware.RequestLogger())
	app.Use(middleware.SecurityHeaders())

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	// CORS: credentials require explicit origins
	allowOrigins := strings.Join(cfg.AllowedOrigins, ",")
	allowCredentials := true
	if allowOrigins == "" || allowOrigins == "*" {
		if cfg.IsProduction() {
			allowOrigins = ""
			allowCredentials = false
		} else {
			allowOrigins = "http://localhost:3000"
		}
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization,X-Request-ID",
		ExposeHeaders:    "X-Request-ID",
		AllowCredentials: allowCredentials,
		MaxAge:           86400,
	}))

	// Health check (no auth required)
	healthHandler := http.NewHealthHandler(deps.DB, deps.Redis, deps.CalendarService)
	healthHandler.Register(app)

	// API routes
	api := app.Group("/api/v1")

	authCfg := middleware.AuthConfig{APIToken: cfg.APIToken, JWTSecret: cfg.JWTSecret}
	switch {
	case authCfg.Enabled():
		api.Use(middleware.BearerAuth(authCfg))
	case cfg.IsProduction():
		return nil, fmt.Errorf("API_TOKEN or JWT_SECRET must be set in production")
	default:
		logger.Warn("API authentication disabled (development mode, no API_TOKEN or JWT_SECRET)")
	}

	calendarHandler := http.NewCalendarHandler(deps.CalendarService, cfg.DaysToFetch, deps.DefaultZone)
	calendarHandler.Register(api)

	logger.Info("API server initialized")
	return app, nil
}
