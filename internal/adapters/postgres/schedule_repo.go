package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/flightmap/internal/core/domain"
)

// ScheduleRepo implements ports.ScheduleRepository with pgx.
type ScheduleRepo struct {
	db *DB
}

// NewScheduleRepo creates a new ScheduleRepo.
func NewScheduleRepo(db *DB) *ScheduleRepo {
	return &ScheduleRepo{db: db}
}

// ListLegs returns the active flight schedule ordered by flight id.
func (r *ScheduleRepo) ListLegs(ctx context.Context) ([]domain.FlightLeg, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT flight_id, origin, destination
		FROM flight_schedules
		WHERE active
		ORDER BY flight_id
	`)
	if err != nil {
		return nil, fmt.Errorf("query schedules: %w", err)
	}

	legs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.FlightLeg, error) {
		var l domain.FlightLeg
		err := row.Scan(&l.FlightID, &l.OriginName, &l.DestinationName)
		return l, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan schedules: %w", err)
	}
	return legs, nil
}

// Upsert inserts or updates one schedule row.
func (r *ScheduleRepo) Upsert(ctx context.Context, leg domain.FlightLeg, active bool) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO flight_schedules (flight_id, origin, destination, active)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (flight_id) DO UPDATE
		SET origin = EXCLUDED.origin, destination = EXCLUDED.destination,
		    active = EXCLUDED.active, updated_at = now()
	`, leg.FlightID, leg.OriginName, leg.DestinationName, active)
	if err != nil {
		return fmt.Errorf("upsert schedule %s: %w", leg.FlightID, err)
	}
	return nil
}

// WatchChanges listens on the schedules_changed channel and calls fn for
// every notification. It blocks until ctx is done.
func (r *ScheduleRepo) WatchChanges(ctx context.Context, fn func(ctx context.Context)) error {
	conn, err := r.db.Pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listener: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN schedules_changed"); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	for {
		if _, err := conn.Conn().WaitForNotification(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("wait for notification: %w", err)
		}
		fn(ctx)
	}
}
