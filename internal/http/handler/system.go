package handler

import (
	"github.com/gofiber/fiber/v2"

	"studium/internal/health"
)

const (
	ServiceName = "studium-api"
	Version     = "0.1.0"
)

// Root describes the API.
//
//	@Summary	API information
//	@Tags		system
//	@Produce	json
//	@Success	200	{object}	map[string]string
//	@Router		/ [get]
func Root() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "Studium API",
			"version": Version,
			"status":  "ready",
		})
	}
}

// Health is a static liveness probe. It never touches dependencies.
//
//	@Summary	Liveness probe
//	@Tags		system
//	@Produce	json
//	@Success	200	{object}	map[string]string
//	@Router		/health [get]
func Health() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"service": ServiceName,
		})
	}
}

// Ready runs the dependency checks and answers 503 when any of them fails.
//
//	@Summary	Readiness probe
//	@Tags		system
//	@Produce	json
//	@Success	200	{object}	health.Report
//	@Failure	503	{object}	health.Report
//	@Router		/ready [get]
func Ready(checker *health.Checker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		report := checker.Run(c.UserContext())
		status := fiber.StatusOK
		if !report.Ready() {
			status = fiber.StatusServiceUnavailable
		}
		return c.Status(status).JSON(report)
	}
}
