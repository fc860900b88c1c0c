package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/samirrijal/flightmap/internal/core/domain"
	"github.com/samirrijal/flightmap/internal/core/ports"
	"github.com/samirrijal/flightmap/internal/pkg/metrics"
)

const defaultLookupTimeout = 10 * time.Second

var (
	errEmptyName = errors.New("empty place name")
	errNoResults = errors.New("no results")
)

var tracer = otel.Tracer("github.com/samirrijal/flightmap/internal/core/usecases")

// NormalizeName trims, collapses inner whitespace and case-folds a place name.
// It is the cache key for geocoding.
func NormalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// Geocoder resolves place names to coordinates. Results, failures included,
// are memoized in a GeocodeCache for the life of the process.
type Geocoder struct {
	provider  ports.GeocodingProvider
	cache     *GeocodeCache
	shared    ports.CacheService
	sharedTTL int
	timeout   time.Duration
}

// GeocoderOption configures a Geocoder.
type GeocoderOption func(*Geocoder)

// WithSharedCache adds a second cache tier consulted before the provider.
// Only successful lookups are written to it.
func WithSharedCache(c ports.CacheService, ttlSeconds int) GeocoderOption {
	return func(g *Geocoder) {
		g.shared = c
		g.sharedTTL = ttlSeconds
	}
}

// WithLookupTimeout bounds each provider lookup. A lookup that exceeds it
// is treated as unresolved.
func WithLookupTimeout(d time.Duration) GeocoderOption {
	return func(g *Geocoder) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// NewGeocoder creates a new Geocoder. A nil cache gets a private one.
func NewGeocoder(provider ports.GeocodingProvider, cache *GeocodeCache, opts ...GeocoderOption) *Geocoder {
	if cache == nil {
		cache = NewGeocodeCache()
	}
	g := &Geocoder{provider: provider, cache: cache, timeout: defaultLookupTimeout}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Cache returns the in-process cache backing this geocoder.
func (g *Geocoder) Cache() *GeocodeCache { return g.cache }

// Resolve returns the coordinates of name. Every failure is reported as an
// *domain.UnresolvedLocationError.
func (g *Geocoder) Resolve(ctx context.Context, name string) (domain.GeoPoint, error) {
	key := NormalizeName(name)
	if key == "" {
		return domain.GeoPoint{}, &domain.UnresolvedLocationError{Name: name, Err: errEmptyName}
	}

	if p, err, ok := g.cache.Get(key); ok {
		metrics.CacheHits.WithLabelValues("memory").Inc()
		return p, err
	}
	metrics.CacheMisses.WithLabelValues("memory").Inc()

	detached := context.WithoutCancel(ctx)
	p, err := g.cache.Load(ctx, key, func() (domain.GeoPoint, error) {
		return g.lookup(detached, key)
	})
	if err != nil {
		var ule *domain.UnresolvedLocationError
		if errors.As(err, &ule) {
			return domain.GeoPoint{}, err
		}
		// The caller stopped waiting; the shared lookup carries on.
		return domain.GeoPoint{}, &domain.UnresolvedLocationError{Name: name, Err: err}
	}
	return p, nil
}

func (g *Geocoder) lookup(ctx context.Context, key string) (domain.GeoPoint, error) {
	ctx, span := tracer.Start(ctx, "geocoder.lookup")
	defer span.End()
	span.SetAttributes(attribute.String("geocode.name", key))

	if p, ok := g.readShared(ctx, key); ok {
		return p, nil
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	candidates, err := g.provider.Lookup(ctx, key)
	metrics.GeocodeDuration.Observe(time.Since(start).Seconds())

	p, err := firstCandidate(candidates, err)
	if err != nil {
		metrics.GeocodeLookups.WithLabelValues("failure").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return domain.GeoPoint{}, &domain.UnresolvedLocationError{Name: key, Err: err}
	}
	metrics.GeocodeLookups.WithLabelValues("success").Inc()

	g.writeShared(ctx, key, p)
	return p, nil
}

func firstCandidate(candidates []domain.GeoPoint, err error) (domain.GeoPoint, error) {
	if err != nil {
		return domain.GeoPoint{}, err
	}
	if len(candidates) == 0 {
		return domain.GeoPoint{}, errNoResults
	}
	return domain.NewGeoPoint(candidates[0].Lat, candidates[0].Lon)
}

func sharedKey(key string) string {
	return "geocode:" + key
}

func (g *Geocoder) readShared(ctx context.Context, key string) (domain.GeoPoint, bool) {
	if g.shared == nil {
		return domain.GeoPoint{}, false
	}
	raw, err := g.shared.Get(ctx, sharedKey(key))
	if err != nil || len(raw) == 0 {
		metrics.CacheMisses.WithLabelValues("shared").Inc()
		return domain.GeoPoint{}, false
	}

	var p domain.GeoPoint
	if err := json.Unmarshal(raw, &p); err != nil || p.Validate() != nil {
		slog.Warn("discarding malformed shared geocode entry", "name", key)
		_ = g.shared.Delete(ctx, sharedKey(key))
		metrics.CacheMisses.WithLabelValues("shared").Inc()
		return domain.GeoPoint{}, false
	}
	metrics.CacheHits.WithLabelValues("shared").Inc()
	return p, true
}

func (g *Geocoder) writeShared(ctx context.Context, key string, p domain.GeoPoint) {
	if g.shared == nil {
		return
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := g.shared.Set(context.WithoutCancel(ctx), sharedKey(key), raw, g.sharedTTL); err != nil {
		slog.Warn("shared geocode cache write failed", "name", key, "error", err)
	}
}
