package nominatim

import (
	"fmt"

	"github.com/samirrijal/flightmap/internal/core/domain"
	"github.com/samirrijal/flightmap/internal/core/ports"
)

// NewProvider builds the provider named by kind: "nominatim", "static", or
// "chain" (static table first, then the HTTP client).
func NewProvider(kind string, cfg Config, static map[string]domain.GeoPoint) (ports.GeocodingProvider, error) {
	switch kind {
	case "nominatim":
		return New(cfg), nil
	case "static":
		return NewStatic(static), nil
	case "chain":
		return NewChain(NewStatic(static), New(cfg)), nil
	default:
		return nil, fmt.Errorf("unknown geocoder provider %q", kind)
	}
}
