package usecases

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/samirrijal/flightmap/internal/core/domain"
	"github.com/samirrijal/flightmap/internal/core/ports"
	"github.com/samirrijal/flightmap/internal/pkg/metrics"
)

// MapSession holds the routes, viewport and animation of one map view.
//
// Every Load replaces the route set. Routes are applied as they resolve;
// a route arriving after a newer Load or after Unmount is discarded.
type MapSession struct {
	id            string
	resolver      *RouteResolver
	fitter        *ViewportFitter
	scheduler     *AnimationScheduler
	usesSchedules bool

	mu         sync.RWMutex
	closed     bool
	generation uint64
	routes     []domain.ResolvedRoute
	viewport   domain.Viewport

	// subscribers share one tick loop, running while any are attached.
	subMu      sync.Mutex
	subs       map[chan *domain.Frame]struct{}
	stopTicks  chan struct{}
	tickSource func(time.Duration) (<-chan time.Time, func())
}

func newTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

// NewMapSession creates an unmounted session.
func NewMapSession(id string, resolver *RouteResolver, fitter *ViewportFitter, scheduler *AnimationScheduler) *MapSession {
	return &MapSession{
		id:        id,
		resolver:  resolver,
		fitter:    fitter,
		scheduler:  scheduler,
		viewport:   DefaultViewport(),
		tickSource: newTicker,
	}
}

// ID returns the session id.
func (s *MapSession) ID() string { return s.id }

// Scheduler returns the session's animation scheduler.
func (s *MapSession) Scheduler() *AnimationScheduler { return s.scheduler }

// Mount starts the animation.
func (s *MapSession) Mount() {
	s.mu.Lock()
	s.closed = false
	s.mu.Unlock()
	s.scheduler.Start()
}

// Unmount stops the animation and invalidates any load still in progress.
func (s *MapSession) Unmount() {
	s.mu.Lock()
	s.closed = true
	s.generation++
	s.mu.Unlock()
	s.scheduler.Stop()
	s.detachAll()
}

// Mounted reports whether the session is live.
func (s *MapSession) Mounted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.closed
}

// Generation returns the current load generation.
func (s *MapSession) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// Load clears the route set and resolves legs into it. It returns the number
// of routes applied by this load.
func (s *MapSession) Load(ctx context.Context, legs []domain.FlightLeg) (int, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, fmt.Errorf("load session %s: %w", s.id, domain.ErrSessionClosed)
	}
	s.generation++
	gen := s.generation
	s.routes = nil
	s.viewport = s.fitter.Fit(nil)
	s.mu.Unlock()

	applied := 0
	s.resolver.ResolveEach(ctx, legs, func(route domain.ResolvedRoute) {
		if s.apply(gen, route) {
			applied++
		}
	})
	return applied, nil
}

func (s *MapSession) apply(gen uint64, route domain.ResolvedRoute) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		metrics.StaleWritesDiscarded.Inc()
		return false
	}

	i := sort.Search(len(s.routes), func(i int) bool { return s.routes[i].FlightID > route.FlightID })
	s.routes = append(s.routes, domain.ResolvedRoute{})
	copy(s.routes[i+1:], s.routes[i:])
	s.routes[i] = route

	s.viewport = s.fitter.Fit(s.routes)
	return true
}

// Routes returns the current routes ordered by flight id.
func (s *MapSession) Routes() []domain.ResolvedRoute {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ResolvedRoute, len(s.routes))
	copy(out, s.routes)
	return out
}

// Viewport returns the viewport framing every current route.
func (s *MapSession) Viewport() domain.Viewport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.viewport
}

// Frame returns a snapshot for the renderer.
func (s *MapSession) Frame() *domain.Frame {
	s.mu.RLock()
	routes := make([]domain.ResolvedRoute, len(s.routes))
	copy(routes, s.routes)
	f := &domain.Frame{
		SessionID:  s.id,
		Generation: s.generation,
		Routes:     routes,
		Viewport:   s.viewport,
	}
	s.mu.RUnlock()

	f.Progress = s.scheduler.Progress()
	f.Markers = make([]domain.MarkerPosition, len(routes))
	for i, r := range routes {
		f.Markers[i] = MarkerAt(r, f.Progress)
	}
	return f
}

// Subscribe attaches a frame receiver and returns it with its release func.
// The first subscriber starts the session's tick loop and the last release
// stops it: the scheduler advances once per interval however many receivers
// are attached, and every receiver gets the same frame for a tick. A slow
// receiver only ever holds the newest frame. The channel is closed on
// release or when the session is unmounted.
func (s *MapSession) Subscribe(interval time.Duration) (<-chan *domain.Frame, func()) {
	ch := make(chan *domain.Frame, 1)
	if !s.Mounted() {
		close(ch)
		return ch, func() {}
	}

	s.subMu.Lock()
	if s.subs == nil {
		s.subs = make(map[chan *domain.Frame]struct{})
	}
	s.subs[ch] = struct{}{}
	if s.stopTicks == nil {
		s.stopTicks = make(chan struct{})
		go s.tickLoop(interval, s.stopTicks)
	}
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() { once.Do(func() { s.unsubscribe(ch) }) }
}

// Subscribers returns the number of attached frame receivers.
func (s *MapSession) Subscribers() int {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	return len(s.subs)
}

func (s *MapSession) unsubscribe(ch chan *domain.Frame) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if _, ok := s.subs[ch]; !ok {
		return
	}
	delete(s.subs, ch)
	close(ch)
	if len(s.subs) == 0 && s.stopTicks != nil {
		close(s.stopTicks)
		s.stopTicks = nil
	}
}

// detachAll closes every subscriber and stops the tick loop.
func (s *MapSession) detachAll() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for ch := range s.subs {
		close(ch)
	}
	s.subs = nil
	if s.stopTicks != nil {
		close(s.stopTicks)
		s.stopTicks = nil
	}
}

func (s *MapSession) tickLoop(interval time.Duration, stop <-chan struct{}) {
	ticks, release := s.tickSource(interval)
	defer release()
	for {
		select {
		case <-stop:
			return
		case <-ticks:
			// Checked under subMu so a loop that lost its last subscriber
			// never ticks alongside a newer one.
			s.subMu.Lock()
			select {
			case <-stop:
				s.subMu.Unlock()
				return
			default:
			}
			advanced := s.scheduler.Tick()
			s.subMu.Unlock()

			if !advanced {
				s.detachAll()
				return
			}
			s.broadcast(s.Frame())
		}
	}
}

func (s *MapSession) broadcast(f *domain.Frame) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		ch <- f
	}
}

// Focus returns a viewport framing a single flight.
func (s *MapSession) Focus(flightID string) (domain.Viewport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.routes {
		if r.FlightID == flightID {
			return s.fitter.FitOne(r), nil
		}
	}
	return domain.Viewport{}, fmt.Errorf("focus %s: %w", flightID, domain.ErrRouteNotFound)
}

// SessionManager owns the live map sessions of a process.
type SessionManager struct {
	resolver  *RouteResolver
	fitter    *ViewportFitter
	speed     float64
	schedules ports.ScheduleRepository

	mu       sync.RWMutex
	sessions map[string]*MapSession
}

// NewSessionManager creates a new SessionManager. schedules may be nil, in
// which case sessions must be created with explicit legs.
func NewSessionManager(resolver *RouteResolver, fitter *ViewportFitter, speed float64, schedules ports.ScheduleRepository) *SessionManager {
	if speed <= 0 {
		speed = DefaultSpeed
	}
	return &SessionManager{
		resolver:  resolver,
		fitter:    fitter,
		speed:     speed,
		schedules: schedules,
		sessions:  make(map[string]*MapSession),
	}
}

// Create mounts a new session and loads legs into it. With nil legs the
// session follows the schedule repository and is reloaded by ReloadScheduled.
func (m *SessionManager) Create(ctx context.Context, legs []domain.FlightLeg) (*MapSession, error) {
	usesSchedules := legs == nil
	if usesSchedules {
		if m.schedules == nil {
			legs = []domain.FlightLeg{}
		} else {
			var err error
			legs, err = m.schedules.ListLegs(ctx)
			if err != nil {
				return nil, fmt.Errorf("list schedule legs: %w", err)
			}
		}
	}

	scheduler, err := NewAnimationScheduler(m.speed)
	if err != nil {
		return nil, err
	}
	s := NewMapSession(uuid.NewString(), m.resolver, m.fitter, scheduler)
	s.usesSchedules = usesSchedules && m.schedules != nil
	s.Mount()

	m.mu.Lock()
	m.sessions[s.id] = s
	m.mu.Unlock()
	metrics.ActiveSessions.Inc()

	if _, err := s.Load(ctx, legs); err != nil {
		return nil, err
	}
	return s, nil
}

// Get returns a live session.
func (m *SessionManager) Get(id string) (*MapSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, domain.ErrSessionNotFound)
	}
	return s, nil
}

// Remove unmounts and forgets a session.
func (m *SessionManager) Remove(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("session %s: %w", id, domain.ErrSessionNotFound)
	}
	s.Unmount()
	metrics.ActiveSessions.Dec()
	return nil
}

// Len returns the number of live sessions.
func (m *SessionManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// ReloadScheduled re-reads the schedule and fully reloads every session that
// follows it. It returns the number of sessions reloaded.
func (m *SessionManager) ReloadScheduled(ctx context.Context) (int, error) {
	if m.schedules == nil {
		return 0, nil
	}
	legs, err := m.schedules.ListLegs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list schedule legs: %w", err)
	}

	m.mu.RLock()
	targets := make([]*MapSession, 0, len(m.sessions))
	for _, s := range m.sessions {
		if s.usesSchedules {
			targets = append(targets, s)
		}
	}
	m.mu.RUnlock()

	reloaded := 0
	for _, s := range targets {
		if _, err := s.Load(ctx, legs); err != nil {
			continue
		}
		reloaded++
	}
	return reloaded, nil
}
