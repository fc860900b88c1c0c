package nominatim

import (
	"context"
	"errors"
	"strings"

	"github.com/samirrijal/flightmap/internal/core/domain"
	"github.com/samirrijal/flightmap/internal/core/ports"
)

// StaticProvider answers lookups from a fixed table. Names are matched
// case-insensitively with whitespace collapsed.
type StaticProvider struct {
	places map[string]domain.GeoPoint
}

// NewStatic builds a StaticProvider from name → point.
func NewStatic(places map[string]domain.GeoPoint) *StaticProvider {
	m := make(map[string]domain.GeoPoint, len(places))
	for name, p := range places {
		m[foldName(name)] = p
	}
	return &StaticProvider{places: m}
}

func foldName(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// Lookup returns the single matching point, or no candidates.
func (s *StaticProvider) Lookup(ctx context.Context, name string) ([]domain.GeoPoint, error) {
	if p, ok := s.places[foldName(name)]; ok {
		return []domain.GeoPoint{p}, nil
	}
	return nil, nil
}

// Len returns the number of known places.
func (s *StaticProvider) Len() int { return len(s.places) }

// ChainProvider tries providers in order and returns the first non-empty
// answer. If none has an answer, the errors of the failing providers are
// joined; if none failed, the result is empty.
type ChainProvider struct {
	providers []ports.GeocodingProvider
}

// NewChain creates a ChainProvider. Nil providers are skipped.
func NewChain(providers ...ports.GeocodingProvider) *ChainProvider {
	ps := make([]ports.GeocodingProvider, 0, len(providers))
	for _, p := range providers {
		if p != nil {
			ps = append(ps, p)
		}
	}
	return &ChainProvider{providers: ps}
}

// Lookup implements ports.GeocodingProvider.
func (c *ChainProvider) Lookup(ctx context.Context, name string) ([]domain.GeoPoint, error) {
	var errs []error
	for _, p := range c.providers {
		pts, err := p.Lookup(ctx, name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if len(pts) > 0 {
			return pts, nil
		}
	}
	return nil, errors.Join(errs...)
}
