package http

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// HealthHandler returns a basic liveness check.
func HealthHandler(deps *Dependencies) fiber.Handler {
	startedAt := time.Now()

	return func(c *fiber.Ctx) error {
		body := fiber.Map{
			"status":  "healthy",
			"uptime":  time.Since(startedAt).String(),
			"version": "dev",
		}
		if deps.Sessions != nil {
			body["sessions"] = deps.Sessions.Len()
		}
		if deps.Geocoder != nil {
			body["geocode_cache_entries"] = deps.Geocoder.Cache().Len()
		}
		return c.JSON(body)
	}
}

// ReadyHandler checks DB, NATS, and cache connectivity. The database is
// optional: when it is not configured the service still serves explicit legs.
func ReadyHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 3*time.Second)
		defer cancel()

		checks := make(map[string]string)
		allOK := true

		probe := func(name string, p Pinger) {
			if p == nil {
				checks[name] = "not configured"
				return
			}
			if err := p.Ping(ctx); err != nil {
				checks[name] = "error: " + err.Error()
				allOK = false
				return
			}
			checks[name] = "ok"
		}

		probe("database", deps.DB)
		probe("nats", deps.NATS)
		probe("cache", deps.Cache)

		status := "ready"
		code := fiber.StatusOK
		if !allOK {
			status = "not ready"
			code = fiber.StatusServiceUnavailable
		}

		return c.Status(code).JSON(fiber.Map{
			"status": status,
			"checks": checks,
		})
	}
}
