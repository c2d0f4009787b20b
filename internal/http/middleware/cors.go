package middleware

import (
	"slices"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

// CORS allows the given origins with every method and request header.
// Credentials are allowed unless the origin list contains the "*" wildcard.
func CORS(origins []string) fiber.Handler {
	wildcard := len(origins) == 0 || slices.Contains(origins, "*")
	allow := strings.Join(origins, ",")
	if wildcard {
		allow = "*"
	}
	return cors.New(cors.Config{
		AllowOrigins:     allow,
		AllowMethods:     "GET,POST,PUT,PATCH,DELETE,OPTIONS,HEAD",
		AllowCredentials: !wildcard,
		ExposeHeaders:    RequestIDHeader + ",Content-Length,Content-Type,Content-Disposition",
	})
}
