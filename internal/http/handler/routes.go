package handler

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"

	"studium/internal/auth"
	"studium/internal/health"
	"studium/internal/http/middleware"
	"studium/internal/service"
)

// Dependencies are the collaborators the routes are built from.
type Dependencies struct {
	Sources  service.SourceService
	Identity auth.Resolver
	// DB opens a session per source request. Nil disables sessions.
	DB *sqlx.DB
	// Readiness backs GET /ready. Nil leaves the route unregistered.
	Readiness *health.Checker
	Logger    *slog.Logger
}

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
func RegisterRoutes(app *fiber.App, deps Dependencies) {
	app.Get("/", Root())
	app.Get("/health", Health())
	if deps.Readiness != nil {
		app.Get("/ready", Ready(deps.Readiness))
	}

	sources := app.Group("/v1/sources")
	if deps.DB != nil {
		log := deps.Logger
		if log == nil {
			log = slog.Default()
		}
		sources.Use(middleware.Session(deps.DB, log))
	}
	sources.Get("/", ListSources(deps.Sources, deps.Identity))
	sources.Post("/", CreateSource(deps.Sources, deps.Identity))
	sources.Get("/:id", GetSource(deps.Sources, deps.Identity))
	sources.Get("/:id/file", DownloadSourceFile(deps.Sources, deps.Identity))
}
