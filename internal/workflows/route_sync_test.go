package workflows_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"go.temporal.io/sdk/testsuite"

	"github.com/samirrijal/flightmap/internal/adapters/nominatim"
	"github.com/samirrijal/flightmap/internal/core/domain"
	"github.com/samirrijal/flightmap/internal/core/usecases"
	"github.com/samirrijal/flightmap/internal/workflows"
)

type mockScheduleRepo struct {
	listFn func(ctx context.Context) ([]domain.FlightLeg, error)
}

func (m *mockScheduleRepo) ListLegs(ctx context.Context) ([]domain.FlightLeg, error) {
	return m.listFn(ctx)
}

type mockPublisher struct {
	calls     atomic.Int32
	err       error
	published []domain.ResolvedRoute
	sessionID string
}

func (m *mockPublisher) PublishRoutes(ctx context.Context, sessionID string, routes []domain.ResolvedRoute) error {
	m.calls.Add(1)
	if m.err != nil {
		return m.err
	}
	m.sessionID = sessionID
	m.published = routes
	return nil
}

func (m *mockPublisher) PublishFrame(ctx context.Context, frame *domain.Frame) error { return nil }

func newActivities(pub *mockPublisher) *workflows.RouteSyncActivities {
	geocoder := usecases.NewGeocoder(nominatim.NewStatic(map[string]domain.GeoPoint{
		"bilbao": {Lat: 43.3011, Lon: -2.9106},
		"madrid": {Lat: 40.4983, Lon: -3.5676},
	}), nil)
	return &workflows.RouteSyncActivities{
		Schedules: &mockScheduleRepo{listFn: func(ctx context.Context) ([]domain.FlightLeg, error) {
			return []domain.FlightLeg{
				{FlightID: "IB401", OriginName: "Bilbao", DestinationName: "Madrid"},
				{FlightID: "XX9", OriginName: "Bilbao", DestinationName: "El Dorado"},
			}, nil
		}},
		Resolver:  usecases.NewRouteResolver(geocoder, 2),
		Publisher: pub,
	}
}

func TestRouteSyncWorkflow(t *testing.T) {
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()

	pub := &mockPublisher{}
	env.RegisterActivity(newActivities(pub))

	env.ExecuteWorkflow(workflows.RouteSyncWorkflow, workflows.RouteSyncInput{SessionID: "s-1"})

	if !env.IsWorkflowCompleted() {
		t.Fatal("workflow did not complete")
	}
	if err := env.GetWorkflowError(); err != nil {
		t.Fatalf("workflow error: %v", err)
	}

	var res workflows.RouteSyncResult
	if err := env.GetWorkflowResult(&res); err != nil {
		t.Fatal(err)
	}
	if res.Legs != 2 || res.Resolved != 1 || res.Dropped != 1 {
		t.Errorf("unexpected result %+v", res)
	}
	if pub.sessionID != "s-1" || len(pub.published) != 1 || pub.published[0].FlightID != "IB401" {
		t.Errorf("unexpected publish: session %q routes %v", pub.sessionID, pub.published)
	}
}

func TestRouteSyncWorkflow_PublishFailureIsRetried(t *testing.T) {
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()

	pub := &mockPublisher{err: errors.New("nats: no responders")}
	env.RegisterActivity(newActivities(pub))

	env.ExecuteWorkflow(workflows.RouteSyncWorkflow, workflows.RouteSyncInput{SessionID: "s-2"})

	if !env.IsWorkflowCompleted() {
		t.Fatal("workflow did not complete")
	}
	if env.GetWorkflowError() == nil {
		t.Fatal("expected workflow error")
	}
	if n := pub.calls.Load(); n != 3 {
		t.Errorf("expected 3 publish attempts, got %d", n)
	}
}

func TestRouteSyncWorkflow_ScheduleUnavailable(t *testing.T) {
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()

	acts := newActivities(&mockPublisher{})
	acts.Schedules = &mockScheduleRepo{listFn: func(ctx context.Context) ([]domain.FlightLeg, error) {
		return nil, errors.New("connection refused")
	}}
	env.RegisterActivity(acts)

	env.ExecuteWorkflow(workflows.RouteSyncWorkflow, workflows.RouteSyncInput{SessionID: "s-3"})

	if err := env.GetWorkflowError(); err == nil {
		t.Fatal("expected workflow error when the schedule cannot be read")
	}
}
