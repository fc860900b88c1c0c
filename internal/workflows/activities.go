package workflows

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/samirrijal/flightmap/internal/core/domain"
	"github.com/samirrijal/flightmap/internal/core/ports"
	"github.com/samirrijal/flightmap/internal/core/usecases"
)

// RouteSyncActivities holds the activity implementations for the route sync workflow.
type RouteSyncActivities struct {
	Schedules ports.ScheduleRepository
	Resolver  *usecases.RouteResolver
	Publisher ports.EventPublisher
}

// LoadLegs returns the active flight legs.
func (a *RouteSyncActivities) LoadLegs(ctx context.Context) ([]domain.FlightLeg, error) {
	legs, err := a.Schedules.ListLegs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list schedule legs: %w", err)
	}
	return legs, nil
}

// ResolveRoutes geocodes every leg. Legs that do not resolve are left out;
// that is not an activity failure.
func (a *RouteSyncActivities) ResolveRoutes(ctx context.Context, legs []domain.FlightLeg) ([]domain.ResolvedRoute, error) {
	return a.Resolver.Resolve(ctx, legs), nil
}

// PublishRoutes sends the resolved routes to the session's routes subject.
func (a *RouteSyncActivities) PublishRoutes(ctx context.Context, sessionID string, routes []domain.ResolvedRoute) error {
	if a.Publisher == nil {
		slog.Info("no publisher configured, routes not published", "session_id", sessionID, "routes", len(routes))
		return nil
	}
	if err := a.Publisher.PublishRoutes(ctx, sessionID, routes); err != nil {
		return fmt.Errorf("publish routes for %s: %w", sessionID, err)
	}
	return nil
}
