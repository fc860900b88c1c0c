package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/samirrijal/flightmap/internal/adapters/postgres"
	"github.com/samirrijal/flightmap/internal/core/domain"
	"github.com/samirrijal/flightmap/internal/pkg/config"
)

// scheduleEntry is one row of a seed file.
type scheduleEntry struct {
	domain.FlightLeg
	Active *bool `json:"active,omitempty"`
}

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: migrate <up|status|seed file.json>")
	}

	cfg, err := config.Load("flightmap-migrate")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()
	db, err := postgres.New(ctx, cfg.Database.DSN(), 2)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	switch os.Args[1] {
	case "up":
		runMigrations(ctx, db.Pool, "migrations")
	case "status":
		printStatus(ctx, db.Pool)
	case "seed":
		if len(os.Args) < 3 {
			log.Fatal("usage: migrate seed file.json")
		}
		seed(ctx, postgres.NewScheduleRepo(db), os.Args[2])
	default:
		log.Fatalf("unknown command: %s", os.Args[1])
	}
}

func ensureVersionTable(ctx context.Context, pool *pgxpool.Pool) {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		log.Fatalf("create schema_migrations: %v", err)
	}
}

func runMigrations(ctx context.Context, pool *pgxpool.Pool, dir string) {
	ensureVersionTable(ctx, pool)

	files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		log.Fatalf("list migrations: %v", err)
	}
	sort.Strings(files)

	applied := 0
	for _, f := range files {
		version := filepath.Base(f)

		var exists bool
		if err := pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)`, version,
		).Scan(&exists); err != nil {
			log.Fatalf("check %s: %v", version, err)
		}
		if exists {
			fmt.Printf("--  %s (already applied)\n", version)
			continue
		}

		data, err := os.ReadFile(f)
		if err != nil {
			log.Fatalf("read %s: %v", f, err)
		}

		err = pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, string(data)); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, version)
			return err
		})
		if err != nil {
			log.Fatalf("apply %s: %v", version, err)
		}

		fmt.Printf("OK  %s\n", version)
		applied++
	}

	log.Printf("%d migrations applied", applied)
}

func printStatus(ctx context.Context, pool *pgxpool.Pool) {
	ensureVersionTable(ctx, pool)

	rows, err := pool.Query(ctx, `SELECT version, applied_at::text FROM schema_migrations ORDER BY version`)
	if err != nil {
		log.Fatalf("query schema_migrations: %v", err)
	}
	defer rows.Close()
	for rows.Next() {
		var version, at string
		if err := rows.Scan(&version, &at); err != nil {
			log.Fatalf("scan: %v", err)
		}
		fmt.Printf("%s  %s\n", version, at)
	}
	if err := rows.Err(); err != nil {
		log.Fatalf("rows: %v", err)
	}
}

// seed upserts flight legs from a JSON array of
// {"flight_id","origin","destination","active"} objects.
func seed(ctx context.Context, repo *postgres.ScheduleRepo, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("read %s: %v", path, err)
	}

	var entries []scheduleEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		log.Fatalf("parse %s: %v", path, err)
	}

	for _, e := range entries {
		active := e.Active == nil || *e.Active
		if err := repo.Upsert(ctx, e.FlightLeg, active); err != nil {
			log.Fatalf("seed: %v", err)
		}
	}
	log.Printf("%d flight legs seeded from %s", len(entries), path)
}
