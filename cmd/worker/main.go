package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	natsadapter "github.com/samirrijal/flightmap/internal/adapters/nats"
	"github.com/samirrijal/flightmap/internal/adapters/nominatim"
	"github.com/samirrijal/flightmap/internal/adapters/postgres"
	"github.com/samirrijal/flightmap/internal/adapters/valkey"
	"github.com/samirrijal/flightmap/internal/core/usecases"
	"github.com/samirrijal/flightmap/internal/pkg/config"
	"github.com/samirrijal/flightmap/internal/pkg/logging"
	"github.com/samirrijal/flightmap/internal/workflows"
)

func main() {
	cfg, err := config.Load("flightmap-worker")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if !cfg.Database.Enabled {
		log.Fatal("worker needs the schedule database (database.enabled=true)")
	}

	logger := logging.Setup(cfg.Telemetry.ServiceName, cfg.Log.Level, cfg.Log.Format)
	ctx := context.Background()

	db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats: %v", err)
	}
	defer pub.Close()

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

	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    logger,
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	// "worker sync <session-id>" runs one sync and exits.
	if len(os.Args) > 2 && os.Args[1] == "sync" {
		runSync(ctx, c, cfg.Temporal.TaskQueue, os.Args[2])
		return
	}

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})

	w.RegisterWorkflow(workflows.RouteSyncWorkflow)
	w.RegisterActivity(&workflows.RouteSyncActivities{
		Schedules: postgres.NewScheduleRepo(db),
		Resolver:  usecases.NewRouteResolver(geocoder, cfg.Resolver.MaxConcurrency),
		Publisher: pub,
	})

	slog.Info("route sync worker started", "task_queue", cfg.Temporal.TaskQueue)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}

func runSync(ctx context.Context, c client.Client, taskQueue, sessionID string) {
	run, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        "route-sync-" + sessionID,
		TaskQueue: taskQueue,
	}, workflows.RouteSyncWorkflow, workflows.RouteSyncInput{SessionID: sessionID})
	if err != nil {
		log.Fatalf("start route sync: %v", err)
	}

	var res workflows.RouteSyncResult
	if err := run.Get(ctx, &res); err != nil {
		log.Fatalf("route sync %s: %v", run.GetRunID(), err)
	}
	slog.Info("route sync finished", "session_id", sessionID, "legs", res.Legs, "resolved", res.Resolved, "dropped", res.Dropped)
}
