package usecases

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/samirrijal/flightmap/internal/core/domain"
	"github.com/samirrijal/flightmap/internal/pkg/geospatial"
	"github.com/samirrijal/flightmap/internal/pkg/metrics"
)

// DefaultSpeed is the fraction of a full cycle advanced per tick.
const DefaultSpeed = 0.002

// ErrInvalidSpeed is returned by SetSpeed for non-positive or non-finite speeds.
var ErrInvalidSpeed = errors.New("speed must be a positive finite number")

// AnimationState is the run state of an AnimationScheduler.
type AnimationState int

const (
	Stopped AnimationState = iota
	Running
)

func (s AnimationState) String() string {
	switch s {
	case Running:
		return "running"
	default:
		return "stopped"
	}
}

// AnimationScheduler advances a cyclic progress value in [0, 1) once per
// tick. The tick source belongs to the host; the scheduler only counts.
type AnimationScheduler struct {
	mu         sync.Mutex
	state      AnimationState
	progress   float64
	speed      float64
	generation uint64
}

// NewAnimationScheduler creates a stopped scheduler at progress 0.
func NewAnimationScheduler(speed float64) (*AnimationScheduler, error) {
	if err := validateSpeed(speed); err != nil {
		return nil, err
	}
	return &AnimationScheduler{speed: speed}, nil
}

func validateSpeed(s float64) error {
	if s <= 0 || math.IsNaN(s) || math.IsInf(s, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidSpeed, s)
	}
	return nil
}

// Start moves the scheduler to Running. Progress is kept.
func (a *AnimationScheduler) Start() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state = Running
}

// Stop moves the scheduler to Stopped and starts a new generation, so ticks
// still queued by the previous host are recognisable as stale.
func (a *AnimationScheduler) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.generation++
	a.state = Stopped
}

// Tick advances progress by one step. It reports false, changing nothing,
// when the scheduler is stopped.
func (a *AnimationScheduler) Tick() bool {
	return a.TickN(1)
}

// TickN advances progress by n steps at once for hosts that drop frames.
func (a *AnimationScheduler) TickN(n int) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != Running || n <= 0 {
		return false
	}
	a.progress = math.Mod(a.progress+float64(n)*a.speed, 1)
	metrics.AnimationTicks.Add(float64(n))
	return true
}

// SetSpeed changes the rate without touching progress.
func (a *AnimationScheduler) SetSpeed(s float64) error {
	if err := validateSpeed(s); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.speed = s
	return nil
}

// Progress returns the current cycle position in [0, 1).
func (a *AnimationScheduler) Progress() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.progress
}

// Speed returns the current per-tick increment.
func (a *AnimationScheduler) Speed() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.speed
}

// State returns the run state.
func (a *AnimationScheduler) State() AnimationState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Generation returns the number of Stop calls so far.
func (a *AnimationScheduler) Generation() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.generation
}

// Position returns the marker for route at the current progress. The heading
// is the route's initial bearing, not the instantaneous one.
func (a *AnimationScheduler) Position(route domain.ResolvedRoute) domain.MarkerPosition {
	return MarkerAt(route, a.Progress())
}

// MarkerAt returns the marker for route at the given progress.
func MarkerAt(route domain.ResolvedRoute, progress float64) domain.MarkerPosition {
	return domain.MarkerPosition{
		FlightID:   route.FlightID,
		Position:   geospatial.Interpolate(route.Origin, route.Destination, progress),
		HeadingDeg: route.InitialBearingDeg,
	}
}
