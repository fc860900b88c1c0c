package usecases

import (
	"context"
	"log/slog"
	"sync"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/samirrijal/flightmap/internal/core/domain"
	"github.com/samirrijal/flightmap/internal/pkg/geospatial"
	"github.com/samirrijal/flightmap/internal/pkg/metrics"
)

const defaultMaxConcurrency = 8

// PlaceResolver turns a place name into coordinates.
type PlaceResolver interface {
	Resolve(ctx context.Context, name string) (domain.GeoPoint, error)
}

// RouteResolver turns flight legs into resolved great-circle routes.
// A leg whose origin or destination cannot be geocoded is dropped; the rest
// of the batch is unaffected.
type RouteResolver struct {
	places         PlaceResolver
	maxConcurrency int
}

// NewRouteResolver creates a new RouteResolver. maxConcurrency bounds how
// many legs are geocoded at once; values below 1 use the default.
func NewRouteResolver(places PlaceResolver, maxConcurrency int) *RouteResolver {
	if maxConcurrency < 1 {
		maxConcurrency = defaultMaxConcurrency
	}
	return &RouteResolver{places: places, maxConcurrency: maxConcurrency}
}

// BuildRoute computes distance and bearing for a leg with known endpoints.
func BuildRoute(leg domain.FlightLeg, origin, dest domain.GeoPoint) domain.ResolvedRoute {
	r := domain.ResolvedRoute{
		FlightID:        leg.FlightID,
		OriginName:      leg.OriginName,
		DestinationName: leg.DestinationName,
		Origin:          origin,
		Destination:     dest,
		DistanceKm:      geospatial.DistanceKm(origin, dest),
	}
	if r.DistanceKm > 0 {
		r.InitialBearingDeg = geospatial.InitialBearing(origin, dest)
	}
	return r
}

// Resolve resolves every leg and returns the successful routes in input order.
func (r *RouteResolver) Resolve(ctx context.Context, legs []domain.FlightLeg) []domain.ResolvedRoute {
	slots := make([]*domain.ResolvedRoute, len(legs))
	r.resolve(ctx, legs, func(i int, route domain.ResolvedRoute) {
		slots[i] = &route
	})

	routes := make([]domain.ResolvedRoute, 0, len(legs))
	for _, s := range slots {
		if s != nil {
			routes = append(routes, *s)
		}
	}
	return routes
}

// ResolveEach calls apply for each route as soon as both of its endpoints
// are known, without waiting for the rest of the batch. Calls to apply are
// serialized. It returns once every leg has been resolved or dropped.
func (r *RouteResolver) ResolveEach(ctx context.Context, legs []domain.FlightLeg, apply func(domain.ResolvedRoute)) {
	r.resolve(ctx, legs, func(_ int, route domain.ResolvedRoute) {
		apply(route)
	})
}

func (r *RouteResolver) resolve(ctx context.Context, legs []domain.FlightLeg, apply func(int, domain.ResolvedRoute)) {
	ctx, span := tracer.Start(ctx, "routes.resolve")
	defer span.End()
	span.SetAttributes(attribute.Int("routes.legs", len(legs)))

	var mu sync.Mutex
	p := pool.New().WithMaxGoroutines(r.maxConcurrency)
	for i, leg := range legs {
		p.Go(func() {
			route, ok := r.resolveLeg(ctx, leg)
			if !ok {
				metrics.RoutesDropped.Inc()
				return
			}
			metrics.RoutesResolved.Inc()

			mu.Lock()
			defer mu.Unlock()
			apply(i, route)
		})
	}
	p.Wait()
}

func (r *RouteResolver) resolveLeg(ctx context.Context, leg domain.FlightLeg) (domain.ResolvedRoute, bool) {
	var (
		origin, dest       domain.GeoPoint
		originErr, destErr error
		wg                 conc.WaitGroup
	)
	wg.Go(func() { origin, originErr = r.places.Resolve(ctx, leg.OriginName) })
	wg.Go(func() { dest, destErr = r.places.Resolve(ctx, leg.DestinationName) })
	wg.Wait()

	if originErr != nil {
		logDrop(ctx, leg, leg.OriginName, originErr)
		return domain.ResolvedRoute{}, false
	}
	if destErr != nil {
		logDrop(ctx, leg, leg.DestinationName, destErr)
		return domain.ResolvedRoute{}, false
	}
	return BuildRoute(leg, origin, dest), true
}

func logDrop(ctx context.Context, leg domain.FlightLeg, name string, err error) {
	attrs := []any{"flight_id", leg.FlightID, "name", name, "error", err}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		attrs = append(attrs, "trace_id", sc.TraceID().String())
	}
	slog.InfoContext(ctx, "dropping route", attrs...)
}
