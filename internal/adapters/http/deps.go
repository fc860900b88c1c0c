package http

import (
	"context"
	"time"

	"github.com/samirrijal/flightmap/internal/core/ports"
	"github.com/samirrijal/flightmap/internal/core/usecases"
)

// Pinger is a backing service the readiness check can probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Geocoder      *usecases.Geocoder
	Resolver      *usecases.RouteResolver
	Fitter        *usecases.ViewportFitter
	Sessions      *usecases.SessionManager
	Publisher     ports.EventPublisher
	FrameInterval time.Duration

	DB    Pinger
	NATS  Pinger
	Cache Pinger
}
