package ports

import (
	"context"

	"github.com/samirrijal/flightmap/internal/core/domain"
)

// GeocodingProvider looks a free-text place name up in an external service.
// Candidates are returned best first; an empty slice means no match.
type GeocodingProvider interface {
	Lookup(ctx context.Context, name string) ([]domain.GeoPoint, error)
}

// EventPublisher publishes map data for out-of-process renderers.
type EventPublisher interface {
	PublishRoutes(ctx context.Context, sessionID string, routes []domain.ResolvedRoute) error
	PublishFrame(ctx context.Context, frame *domain.Frame) error
}

// EventSubscriber subscribes to schedule events from a message broker.
type EventSubscriber interface {
	SubscribeScheduleChanges(ctx context.Context, handler func(ctx context.Context) error) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}
