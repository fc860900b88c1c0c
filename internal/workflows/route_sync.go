package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/samirrijal/flightmap/internal/core/domain"
)

// Activity names registered by the worker.
const (
	ActivityLoadLegs      = "LoadLegs"
	ActivityResolveRoutes = "ResolveRoutes"
	ActivityPublishRoutes = "PublishRoutes"
)

// RouteSyncInput is the input for the route sync workflow.
type RouteSyncInput struct {
	SessionID string
}

// RouteSyncResult summarizes one sync run.
type RouteSyncResult struct {
	Legs     int
	Resolved int
	Dropped  int
}

// RouteSyncWorkflow reads the flight schedule, resolves every leg and
// publishes the resolved routes for a session. Each run is a full recompute;
// the geocode cache on the worker keeps repeated names cheap.
func RouteSyncWorkflow(ctx workflow.Context, input RouteSyncInput) (RouteSyncResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting route sync", "sessionID", input.SessionID)

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2,
			MaximumAttempts:    3,
		},
	})

	var legs []domain.FlightLeg
	if err := workflow.ExecuteActivity(ctx, ActivityLoadLegs).Get(ctx, &legs); err != nil {
		return RouteSyncResult{}, err
	}

	var routes []domain.ResolvedRoute
	if err := workflow.ExecuteActivity(ctx, ActivityResolveRoutes, legs).Get(ctx, &routes); err != nil {
		return RouteSyncResult{}, err
	}

	if err := workflow.ExecuteActivity(ctx, ActivityPublishRoutes, input.SessionID, routes).Get(ctx, nil); err != nil {
		logger.Warn("publishing routes failed", "error", err)
		return RouteSyncResult{}, err
	}

	res := RouteSyncResult{Legs: len(legs), Resolved: len(routes), Dropped: len(legs) - len(routes)}
	logger.Info("Route sync finished", "resolved", res.Resolved, "dropped", res.Dropped)
	return res, nil
}
