package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/samirrijal/flightmap/internal/adapters/http"
	natsadapter "github.com/samirrijal/flightmap/internal/adapters/nats"
	"github.com/samirrijal/flightmap/internal/adapters/nominatim"
	"github.com/samirrijal/flightmap/internal/adapters/postgres"
	"github.com/samirrijal/flightmap/internal/adapters/valkey"
	"github.com/samirrijal/flightmap/internal/core/ports"
	"github.com/samirrijal/flightmap/internal/core/usecases"
	"github.com/samirrijal/flightmap/internal/pkg/config"
	"github.com/samirrijal/flightmap/internal/pkg/logging"
	"github.com/samirrijal/flightmap/internal/pkg/metrics"
	"github.com/samirrijal/flightmap/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("flightmap-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logging.Setup(cfg.Telemetry.ServiceName, cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.Exporter, cfg.Telemetry.Endpoint)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer telemetry.ShutdownWithTimeout(shutdown)
		}
	}

	deps := &http.Dependencies{FrameInterval: cfg.Animation.FrameInterval}

	// Database (optional): source of the flight schedule
	var schedules ports.ScheduleRepository
	if cfg.Database.Enabled {
		db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
		if err != nil {
			log.Fatalf("database: %v", err)
		}
		defer db.Close()
		schedules = postgres.NewScheduleRepo(db)
		deps.DB = db
		go reportPoolStats(ctx, db)
	}

	// Shared geocode cache tier
	var geoOpts []usecases.GeocoderOption
	geoOpts = append(geoOpts, usecases.WithLookupTimeout(cfg.Geocoder.Timeout))
	cache, err := valkey.New(cfg.Valkey.Addr, cfg.Valkey.KeyPrefix)
	if err != nil {
		slog.Warn("valkey unavailable, geocode cache is process-local", "error", err)
	} else {
		defer cache.Close()
		deps.Cache = cache
		geoOpts = append(geoOpts, usecases.WithSharedCache(cache, int(cfg.Geocoder.CacheTTL.Seconds())))
	}

	// Geocoding provider
	provider, err := nominatim.NewProvider(cfg.Geocoder.Provider, nominatim.Config{
		BaseURL:        cfg.Geocoder.BaseURL,
		UserAgent:      cfg.Geocoder.UserAgent,
		Timeout:        cfg.Geocoder.Timeout,
		MaxRetries:     cfg.Geocoder.MaxRetries,
		RequestsPerSec: cfg.Geocoder.RequestsPerSec,
	}, cfg.Geocoder.StaticPoints())
	if err != nil {
		log.Fatalf("geocoder: %v", err)
	}

	// Use cases
	deps.Geocoder = usecases.NewGeocoder(provider, nil, geoOpts...)
	deps.Resolver = usecases.NewRouteResolver(deps.Geocoder, cfg.Resolver.MaxConcurrency)
	deps.Fitter = usecases.NewViewportFitter(cfg.Viewport.Padding)
	deps.Sessions = usecases.NewSessionManager(deps.Resolver, deps.Fitter, cfg.Animation.Speed, schedules)

	// NATS: route publishing and schedule change events
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable", "error", err)
	} else {
		defer pub.Close()
		deps.Publisher = pub
		deps.NATS = pub
	}

	if schedules != nil {
		sub, err := natsadapter.NewSubscriber(cfg.NATS.URL, "flightmap-api")
		if err != nil {
			slog.Warn("schedule change subscription unavailable", "error", err)
		} else {
			defer sub.Close()
			err := sub.SubscribeScheduleChanges(ctx, func(ctx context.Context) error {
				n, err := deps.Sessions.ReloadScheduled(ctx)
				if err != nil {
					return err
				}
				slog.Info("schedule changed, sessions reloaded", "sessions", n)
				return nil
			})
			if err != nil {
				slog.Warn("subscribe schedule changes", "error", err)
			}
		}
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024, // 1 MB max request body
		AppName:      "Flightmap API",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000, http://localhost:5173",
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr, "geocoder", cfg.Geocoder.Provider)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}

func reportPoolStats(ctx context.Context, db *postgres.DB) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			metrics.UpdateDBPoolMetrics(db.Pool.Stat())
		case <-ctx.Done():
			return
		}
	}
}
