package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// CachingMiddleware sets Cache-Control headers on GET responses based on endpoint.
// Handlers that set their own header win.
func CachingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		if c.Method() != fiber.MethodGet {
			return err
		}
		if existing := c.GetRespHeader(fiber.HeaderCacheControl); existing != "" {
			return err
		}

		path := c.Path()
		var ttl string

		switch {
		case path == "/v1/health" || path == "/v1/ready":
			ttl = "public, max-age=10"

		case path == "/metrics":
			ttl = "no-cache"

		// Frames and focus change on every tick.
		case strings.HasPrefix(path, "/v1/sessions/"):
			ttl = "no-store"

		// Coordinates of a place name and the geometry between two places
		// do not change.
		case path == "/v1/geocode" || path == "/v1/distance":
			if c.Response().StatusCode() == fiber.StatusOK {
				ttl = "public, max-age=86400"
			} else {
				ttl = "no-cache"
			}

		case path == "/docs" || path == "/docs/openapi.yaml":
			ttl = "public, max-age=3600"

		case strings.HasPrefix(path, "/v1/"):
			ttl = "public, max-age=300"
		}

		if ttl != "" {
			c.Set(fiber.HeaderCacheControl, ttl)
		}

		return err
	}
}
