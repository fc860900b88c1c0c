package usecases_test

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/samirrijal/flightmap/internal/core/domain"
	"github.com/samirrijal/flightmap/internal/core/usecases"
)

var airports = map[string]domain.GeoPoint{
	"london":   london,
	"new york": newYork,
	"bilbao":   bilbao,
	"tokyo":    {Lat: 35.5494, Lon: 139.7798},
}

func newTestResolver(prov *mockProvider) *usecases.RouteResolver {
	return usecases.NewRouteResolver(usecases.NewGeocoder(prov, nil), 4)
}

func TestRouteResolver_ResolveKeepsInputOrder(t *testing.T) {
	r := newTestResolver(tableProvider(airports))
	legs := []domain.FlightLeg{
		{FlightID: "BA117", OriginName: "London", DestinationName: "New York"},
		{FlightID: "IB3270", OriginName: "Bilbao", DestinationName: "London"},
		{FlightID: "JL44", OriginName: "Tokyo", DestinationName: "London"},
	}

	routes := r.Resolve(context.Background(), legs)
	if len(routes) != 3 {
		t.Fatalf("expected 3 routes, got %d", len(routes))
	}
	for i, leg := range legs {
		if routes[i].FlightID != leg.FlightID {
			t.Errorf("routes[%d] = %s, want %s", i, routes[i].FlightID, leg.FlightID)
		}
	}

	ba := routes[0]
	if ba.DistanceKm < 5530 || ba.DistanceKm > 5560 {
		t.Errorf("BA117 distance = %.1f, want ~5540", ba.DistanceKm)
	}
	if ba.InitialBearingDeg < 285 || ba.InitialBearingDeg > 295 {
		t.Errorf("BA117 bearing = %.1f, want ~288", ba.InitialBearingDeg)
	}
	if ba.OriginName != "London" || !ba.Origin.Equal(london) {
		t.Errorf("unexpected origin %q %v", ba.OriginName, ba.Origin)
	}
}

func TestRouteResolver_DropsUnresolvedLegs(t *testing.T) {
	r := newTestResolver(tableProvider(airports))
	legs := []domain.FlightLeg{
		{FlightID: "A", OriginName: "London", DestinationName: "New York"},
		{FlightID: "B", OriginName: "Atlantis", DestinationName: "London"},
		{FlightID: "C", OriginName: "Bilbao", DestinationName: "El Dorado"},
		{FlightID: "D", OriginName: "", DestinationName: "Tokyo"},
		{FlightID: "E", OriginName: "Tokyo", DestinationName: "Bilbao"},
	}

	routes := r.Resolve(context.Background(), legs)
	if len(routes) != 2 {
		t.Fatalf("expected 2 routes, got %d: %+v", len(routes), routes)
	}
	if routes[0].FlightID != "A" || routes[1].FlightID != "E" {
		t.Errorf("unexpected survivors %s, %s", routes[0].FlightID, routes[1].FlightID)
	}
}

func TestRouteResolver_FailureDoesNotCancelSiblings(t *testing.T) {
	prov := &mockProvider{
		lookupFn: func(ctx context.Context, name string) ([]domain.GeoPoint, error) {
			if name == "broken" {
				return nil, errors.New("upstream 500")
			}
			time.Sleep(5 * time.Millisecond)
			return []domain.GeoPoint{airports[name]}, nil
		},
	}
	r := newTestResolver(prov)
	legs := []domain.FlightLeg{
		{FlightID: "X", OriginName: "broken", DestinationName: "london"},
		{FlightID: "Y", OriginName: "bilbao", DestinationName: "london"},
	}

	routes := r.Resolve(context.Background(), legs)
	if len(routes) != 1 || routes[0].FlightID != "Y" {
		t.Fatalf("expected only Y, got %+v", routes)
	}
}

func TestRouteResolver_SamePlaceIsZeroLength(t *testing.T) {
	r := newTestResolver(tableProvider(airports))
	routes := r.Resolve(context.Background(), []domain.FlightLeg{
		{FlightID: "LOOP", OriginName: "Bilbao", DestinationName: " BILBAO "},
	})
	if len(routes) != 1 {
		t.Fatalf("expected 1 route, got %d", len(routes))
	}
	if routes[0].DistanceKm != 0 || routes[0].InitialBearingDeg != 0 {
		t.Errorf("expected zero distance and bearing, got %+v", routes[0])
	}
	if !routes[0].Origin.Equal(routes[0].Destination) {
		t.Error("expected identical endpoints")
	}
}

func TestRouteResolver_Idempotent(t *testing.T) {
	r := newTestResolver(tableProvider(airports))
	legs := []domain.FlightLeg{
		{FlightID: "A", OriginName: "London", DestinationName: "Tokyo"},
		{FlightID: "B", OriginName: "Bilbao", DestinationName: "New York"},
	}
	first := r.Resolve(context.Background(), legs)
	second := r.Resolve(context.Background(), legs)
	if len(first) != len(second) {
		t.Fatalf("length changed: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("route %d changed: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestRouteResolver_ResolveEachAppliesIncrementally(t *testing.T) {
	slow := make(chan struct{})
	prov := &mockProvider{
		lookupFn: func(ctx context.Context, name string) ([]domain.GeoPoint, error) {
			if name == "tokyo" {
				<-slow
			}
			return []domain.GeoPoint{airports[name]}, nil
		},
	}
	r := newTestResolver(prov)
	legs := []domain.FlightLeg{
		{FlightID: "SLOW", OriginName: "Tokyo", DestinationName: "London"},
		{FlightID: "FAST", OriginName: "Bilbao", DestinationName: "London"},
	}

	var (
		mu    sync.Mutex
		order []string
	)
	firstApplied := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.ResolveEach(context.Background(), legs, func(route domain.ResolvedRoute) {
			mu.Lock()
			order = append(order, route.FlightID)
			if len(order) == 1 {
				close(firstApplied)
			}
			mu.Unlock()
		})
	}()

	select {
	case <-firstApplied:
	case <-time.After(2 * time.Second):
		t.Fatal("fast route was held back by the slow one")
	}
	close(slow)
	<-done

	if len(order) != 2 || order[0] != "FAST" || order[1] != "SLOW" {
		t.Errorf("unexpected apply order %v", order)
	}
}

func TestBuildRoute(t *testing.T) {
	leg := domain.FlightLeg{FlightID: "EQ", OriginName: "a", DestinationName: "b"}
	r := usecases.BuildRoute(leg, domain.GeoPoint{Lat: 0, Lon: 0}, domain.GeoPoint{Lat: 0, Lon: 90})
	if math.Abs(r.DistanceKm-10007.5) > 0.1 {
		t.Errorf("distance = %v", r.DistanceKm)
	}
	if math.Abs(r.InitialBearingDeg-90) > 1e-9 {
		t.Errorf("bearing = %v", r.InitialBearingDeg)
	}
}
