package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/flightmap/internal/pkg/metrics"
)

const requestTimeout = 15 * time.Second

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	app.Use(requestid.New())
	app.Use(RequestIDLogMiddleware())
	app.Use(AccessLogMiddleware())

	// Rate limiting: 120 requests per minute per IP. Frame streaming over
	// /ws is one request per connection and not affected.
	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return newError(c, fiber.StatusTooManyRequests, "rate_limited", "too many requests, please try again later")
		},
	}))

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	app.Use(ETagMiddleware())
	app.Use(CachingMiddleware())

	// Health & readiness (no timeout, fast internal checks)
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	// REST API v1. Geocoder lookups carry their own timeout; this bounds the request.
	v1 := app.Group("/v1")
	v1.Get("/geocode", timeout.NewWithContext(GeocodeHandler(deps), requestTimeout))
	v1.Delete("/geocode/cache", ResetGeocodeCacheHandler(deps))
	v1.Get("/distance", timeout.NewWithContext(DistanceHandler(deps), requestTimeout))
	v1.Post("/routes/resolve", timeout.NewWithContext(ResolveRoutesHandler(deps), requestTimeout))
	v1.Post("/viewport", ViewportHandler(deps))

	v1.Post("/sessions", timeout.NewWithContext(CreateSessionHandler(deps), requestTimeout))
	v1.Get("/sessions/:id/frame", FrameHandler(deps))
	v1.Put("/sessions/:id/speed", SpeedHandler(deps))
	v1.Get("/sessions/:id/focus/:flight", FocusHandler(deps))
	v1.Delete("/sessions/:id", DeleteSessionHandler(deps))

	app.Post("/graphql", timeout.NewWithContext(GraphQLHandler(deps), requestTimeout))

	SetupDocs(app, DefaultSpecPath)

	// WebSocket frame stream: /ws?session=<id>
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(WebSocketHandler(deps.Sessions, deps.FrameInterval)))
}
