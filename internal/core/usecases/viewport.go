package usecases

import (
	"math"

	"github.com/samirrijal/flightmap/internal/core/domain"
)

const (
	// DefaultPadding is the fraction of each axis extent added on both sides.
	DefaultPadding = 0.1

	// minPadDeg is the least margin added on each side of either axis, so a
	// single point or a north-south/east-west route still gets a box.
	minPadDeg = 0.5

	minZoom = 2
	maxZoom = 12
)

// zoomSteps maps a minimum span in degrees to a zoom hint, widest first.
var zoomSteps = []struct {
	span float64
	zoom int
}{
	{120, 2},
	{60, 3},
	{30, 4},
	{15, 5},
	{8, 6},
	{4, 7},
	{2, 8},
	{1, 9},
	{0.5, 10},
	{0.25, 11},
}

// DefaultViewport is the world view shown when there is nothing to frame.
func DefaultViewport() domain.Viewport {
	return domain.Viewport{
		Center:   domain.GeoPoint{Lat: 20, Lon: 0},
		ZoomHint: minZoom,
		Bounds:   domain.Bounds{MinLat: -90, MinLon: -180, MaxLat: 90, MaxLon: 180},
	}
}

// ZoomForSpan returns a zoom hint for a box whose larger extent is span
// degrees. Wider spans never get a higher zoom.
func ZoomForSpan(span float64) int {
	if math.IsNaN(span) {
		return minZoom
	}
	for _, s := range zoomSteps {
		if span >= s.span {
			return s.zoom
		}
	}
	return maxZoom
}

// ViewportFitter computes the viewport that frames a set of routes.
type ViewportFitter struct {
	padding float64
}

// NewViewportFitter creates a fitter. Negative or NaN padding falls back to
// DefaultPadding.
func NewViewportFitter(padding float64) *ViewportFitter {
	if padding < 0 || math.IsNaN(padding) {
		padding = DefaultPadding
	}
	return &ViewportFitter{padding: padding}
}

// Padding returns the configured padding fraction.
func (f *ViewportFitter) Padding() float64 { return f.padding }

// Fit returns a viewport whose bounds contain every route endpoint.
func (f *ViewportFitter) Fit(routes []domain.ResolvedRoute) domain.Viewport {
	if len(routes) == 0 {
		return DefaultViewport()
	}
	pts := make([]domain.GeoPoint, 0, 2*len(routes))
	for _, r := range routes {
		pts = append(pts, r.Origin, r.Destination)
	}
	return f.fitPoints(pts)
}

// FitOne frames a single route.
func (f *ViewportFitter) FitOne(route domain.ResolvedRoute) domain.Viewport {
	return f.fitPoints([]domain.GeoPoint{route.Origin, route.Destination})
}

func (f *ViewportFitter) fitPoints(pts []domain.GeoPoint) domain.Viewport {
	b := domain.Bounds{
		MinLat: math.Inf(1), MinLon: math.Inf(1),
		MaxLat: math.Inf(-1), MaxLon: math.Inf(-1),
	}
	for _, p := range pts {
		b.MinLat = math.Min(b.MinLat, p.Lat)
		b.MaxLat = math.Max(b.MaxLat, p.Lat)
		b.MinLon = math.Min(b.MinLon, p.Lon)
		b.MaxLon = math.Max(b.MaxLon, p.Lon)
	}

	latPad := f.pad(b.MaxLat - b.MinLat)
	lonPad := f.pad(b.MaxLon - b.MinLon)
	b = domain.Bounds{
		MinLat: math.Max(b.MinLat-latPad, -90),
		MaxLat: math.Min(b.MaxLat+latPad, 90),
		MinLon: math.Max(b.MinLon-lonPad, -180),
		MaxLon: math.Min(b.MaxLon+lonPad, 180),
	}

	return domain.Viewport{
		Center:   b.Center(),
		ZoomHint: ZoomForSpan(b.Span()),
		Bounds:   b,
	}
}

// pad is non-decreasing in extent; a wider route never gets a tighter box.
func (f *ViewportFitter) pad(extent float64) float64 {
	return math.Max(extent*f.padding, minPadDeg)
}
