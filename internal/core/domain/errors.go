package domain

import "errors"

var (
	// ErrInvalidCoordinate is returned when a GeoPoint is built outside the
	// valid latitude/longitude range.
	ErrInvalidCoordinate = errors.New("invalid coordinate")

	// ErrUnresolvedLocation is returned when a place name cannot be geocoded.
	ErrUnresolvedLocation = errors.New("unresolved location")

	// ErrSessionNotFound is returned for unknown map session ids.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionClosed is returned when loading routes into an unmounted session.
	ErrSessionClosed = errors.New("session closed")

	// ErrRouteNotFound is returned when focusing a flight the session does not show.
	ErrRouteNotFound = errors.New("route not found")
)

// UnresolvedLocationError carries the place name and the underlying cause.
// It matches ErrUnresolvedLocation with errors.Is.
type UnresolvedLocationError struct {
	Name string
	Err  error
}

func (e *UnresolvedLocationError) Error() string {
	if e.Err == nil {
		return "unresolved location " + `"` + e.Name + `"`
	}
	return "unresolved location " + `"` + e.Name + `": ` + e.Err.Error()
}

func (e *UnresolvedLocationError) Is(target error) bool {
	return target == ErrUnresolvedLocation
}

func (e *UnresolvedLocationError) Unwrap() error { return e.Err }
