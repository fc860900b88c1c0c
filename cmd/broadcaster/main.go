package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	natsadapter "github.com/samirrijal/flightmap/internal/adapters/nats"
	"github.com/samirrijal/flightmap/internal/adapters/nominatim"
	"github.com/samirrijal/flightmap/internal/adapters/postgres"
	"github.com/samirrijal/flightmap/internal/adapters/valkey"
	"github.com/samirrijal/flightmap/internal/core/usecases"
	"github.com/samirrijal/flightmap/internal/pkg/config"
	"github.com/samirrijal/flightmap/internal/pkg/logging"
	"github.com/samirrijal/flightmap/internal/pkg/telemetry"
)

// broadcaster is a headless host loop: it mounts one session that follows
// the flight schedule, ticks it at the configured frame interval and
// publishes every frame on NATS for out-of-process renderers.
func main() {
	cfg, err := config.Load("flightmap-broadcaster")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if !cfg.Database.Enabled {
		log.Fatal("broadcaster needs the schedule database (database.enabled=true)")
	}

	logging.Setup(cfg.Telemetry.ServiceName, cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.Exporter, cfg.Telemetry.Endpoint)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer telemetry.ShutdownWithTimeout(shutdown)
		}
	}

	// Database
	db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	schedules := postgres.NewScheduleRepo(db)

	// NATS
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats: %v", err)
	}
	defer pub.Close()

	sub, err := natsadapter.NewSubscriber(cfg.NATS.URL, "flightmap-broadcaster")
	if err != nil {
		log.Fatalf("nats subscriber: %v", err)
	}
	defer sub.Close()

	// Geocoder
	geoOpts := []usecases.GeocoderOption{usecases.WithLookupTimeout(cfg.Geocoder.Timeout)}
	if cache, err := valkey.New(cfg.Valkey.Addr, cfg.Valkey.KeyPrefix); err != nil {
		slog.Warn("valkey unavailable, geocode cache is process-local", "error", err)
	} else {
		defer cache.Close()
		geoOpts = append(geoOpts, usecases.WithSharedCache(cache, int(cfg.Geocoder.CacheTTL.Seconds())))
	}
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

	geocoder := usecases.NewGeocoder(provider, nil, geoOpts...)
	resolver := usecases.NewRouteResolver(geocoder, cfg.Resolver.MaxConcurrency)
	fitter := usecases.NewViewportFitter(cfg.Viewport.Padding)
	sessions := usecases.NewSessionManager(resolver, fitter, cfg.Animation.Speed, schedules)

	session, err := sessions.Create(ctx, nil)
	if err != nil {
		log.Fatalf("mount session: %v", err)
	}
	publishRoutes := func(ctx context.Context) {
		if err := pub.PublishRoutes(ctx, session.ID(), session.Routes()); err != nil {
			slog.Warn("publish routes failed", "error", err)
		}
	}
	publishRoutes(ctx)
	slog.Info("session mounted", "session_id", session.ID(), "routes", len(session.Routes()))

	// Relay database notifications onto NATS so every process reloads.
	go func() {
		err := schedules.WatchChanges(ctx, func(ctx context.Context) {
			if err := pub.PublishScheduleChanged(ctx); err != nil {
				slog.Warn("relay schedule change failed", "error", err)
			}
		})
		if err != nil {
			slog.Error("schedule watch stopped", "error", err)
		}
	}()

	err = sub.SubscribeScheduleChanges(ctx, func(ctx context.Context) error {
		if _, err := sessions.ReloadScheduled(ctx); err != nil {
			return err
		}
		slog.Info("schedule changed, routes recomputed", "routes", len(session.Routes()))
		publishRoutes(ctx)
		return nil
	})
	if err != nil {
		log.Fatalf("subscribe schedule changes: %v", err)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	frames, release := session.Subscribe(cfg.Animation.FrameInterval)
	defer release()
	slog.Info("broadcasting frames", "interval", cfg.Animation.FrameInterval)

	for {
		select {
		case f, ok := <-frames:
			if !ok {
				slog.Warn("session closed, stopping broadcaster")
				cancel()
				return
			}
			if err := pub.PublishFrame(ctx, f); err != nil {
				slog.Debug("publish frame failed", "error", err)
			}
		case sig := <-quit:
			slog.Info("shutting down broadcaster", "signal", sig.String())
			_ = sessions.Remove(session.ID())
			cancel()
			return
		}
	}
}
