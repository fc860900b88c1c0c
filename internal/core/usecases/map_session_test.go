package usecases_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/samirrijal/flightmap/internal/core/domain"
	"github.com/samirrijal/flightmap/internal/core/usecases"
)

// --- Mock ScheduleRepository ---

type mockScheduleRepo struct {
	listLegsFn func(ctx context.Context) ([]domain.FlightLeg, error)
}

func (m *mockScheduleRepo) ListLegs(ctx context.Context) ([]domain.FlightLeg, error) {
	if m.listLegsFn != nil {
		return m.listLegsFn(ctx)
	}
	return nil, nil
}

var testLegs = []domain.FlightLeg{
	{FlightID: "JL44", OriginName: "Tokyo", DestinationName: "London"},
	{FlightID: "BA117", OriginName: "London", DestinationName: "New York"},
	{FlightID: "XX1", OriginName: "Atlantis", DestinationName: "London"},
}

func newTestSession(t *testing.T, prov *mockProvider) *usecases.MapSession {
	t.Helper()
	s := usecases.NewMapSession("s1", newTestResolver(prov), usecases.NewViewportFitter(0.1), newScheduler(t, 0.1))
	s.Mount()
	return s
}

func TestMapSession_LoadAndFrame(t *testing.T) {
	s := newTestSession(t, tableProvider(airports))

	n, err := s.Load(context.Background(), testLegs)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if n != 2 {
		t.Fatalf("applied %d routes, want 2", n)
	}

	s.Scheduler().TickN(5)
	f := s.Frame()
	if f.SessionID != "s1" {
		t.Errorf("session id = %q", f.SessionID)
	}
	if len(f.Routes) != 2 || f.Routes[0].FlightID != "BA117" || f.Routes[1].FlightID != "JL44" {
		t.Fatalf("routes not ordered by flight id: %+v", f.Routes)
	}
	if len(f.Markers) != 2 {
		t.Fatalf("expected 2 markers, got %d", len(f.Markers))
	}
	if f.Progress < 0.49 || f.Progress > 0.51 {
		t.Errorf("progress = %v, want 0.5", f.Progress)
	}
	for _, r := range f.Routes {
		if !f.Viewport.Bounds.Contains(r.Origin) || !f.Viewport.Bounds.Contains(r.Destination) {
			t.Errorf("viewport misses %s", r.FlightID)
		}
	}
}

func TestMapSession_LoadReplacesRoutes(t *testing.T) {
	s := newTestSession(t, tableProvider(airports))
	if _, err := s.Load(context.Background(), testLegs); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Load(context.Background(), []domain.FlightLeg{
		{FlightID: "IB1", OriginName: "Bilbao", DestinationName: "London"},
	}); err != nil {
		t.Fatal(err)
	}

	routes := s.Routes()
	if len(routes) != 1 || routes[0].FlightID != "IB1" {
		t.Errorf("expected only IB1 after reload, got %+v", routes)
	}

	if _, err := s.Load(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	if len(s.Routes()) != 0 {
		t.Error("empty load should clear routes")
	}
	if s.Viewport() != usecases.DefaultViewport() {
		t.Errorf("empty session viewport = %+v, want default", s.Viewport())
	}
}

func TestMapSession_UnmountDiscardsLateRoutes(t *testing.T) {
	release := make(chan struct{})
	prov := &mockProvider{
		lookupFn: func(ctx context.Context, name string) ([]domain.GeoPoint, error) {
			<-release
			return []domain.GeoPoint{airports[name]}, nil
		},
	}
	s := newTestSession(t, prov)

	done := make(chan int, 1)
	go func() {
		n, _ := s.Load(context.Background(), testLegs[:2])
		done <- n
	}()

	time.Sleep(10 * time.Millisecond)
	s.Unmount()
	close(release)

	if n := <-done; n != 0 {
		t.Errorf("applied %d routes after unmount, want 0", n)
	}
	if len(s.Routes()) != 0 {
		t.Errorf("stale routes written: %+v", s.Routes())
	}
	if s.Scheduler().State() != usecases.Stopped {
		t.Error("unmount should stop the animation")
	}
	if _, err := s.Load(context.Background(), testLegs); !errors.Is(err, domain.ErrSessionClosed) {
		t.Errorf("expected ErrSessionClosed, got %v", err)
	}
}

func TestMapSession_NewerLoadWins(t *testing.T) {
	release := make(chan struct{})
	prov := &mockProvider{
		lookupFn: func(ctx context.Context, name string) ([]domain.GeoPoint, error) {
			if name == "tokyo" {
				<-release
			}
			return []domain.GeoPoint{airports[name]}, nil
		},
	}
	s := newTestSession(t, prov)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.Load(context.Background(), testLegs[:1])
	}()
	time.Sleep(10 * time.Millisecond)

	if _, err := s.Load(context.Background(), []domain.FlightLeg{
		{FlightID: "IB1", OriginName: "Bilbao", DestinationName: "London"},
	}); err != nil {
		t.Fatal(err)
	}
	close(release)
	<-done

	routes := s.Routes()
	if len(routes) != 1 || routes[0].FlightID != "IB1" {
		t.Errorf("older load leaked into the newer one: %+v", routes)
	}
}

func TestMapSession_Focus(t *testing.T) {
	s := newTestSession(t, tableProvider(airports))
	if _, err := s.Load(context.Background(), testLegs); err != nil {
		t.Fatal(err)
	}

	v, err := s.Focus("BA117")
	if err != nil {
		t.Fatalf("Focus: %v", err)
	}
	if !v.Bounds.Contains(london) || !v.Bounds.Contains(newYork) {
		t.Errorf("focus viewport %+v misses endpoints", v.Bounds)
	}
	if v.Bounds.Contains(domain.GeoPoint{Lat: 35.5494, Lon: 139.7798}) {
		t.Error("focus viewport should not include other routes")
	}

	if _, err := s.Focus("XX1"); !errors.Is(err, domain.ErrRouteNotFound) {
		t.Errorf("expected ErrRouteNotFound, got %v", err)
	}
}

func TestSessionManager_Lifecycle(t *testing.T) {
	repo := &mockScheduleRepo{
		listLegsFn: func(ctx context.Context) ([]domain.FlightLeg, error) {
			return testLegs[:1], nil
		},
	}
	m := usecases.NewSessionManager(newTestResolver(tableProvider(airports)), usecases.NewViewportFitter(0.1), 0.01, repo)

	scheduled, err := m.Create(context.Background(), nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	explicit, err := m.Create(context.Background(), testLegs[1:2])
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if scheduled.ID() == explicit.ID() {
		t.Fatal("session ids must be unique")
	}
	if m.Len() != 2 {
		t.Fatalf("expected 2 sessions, got %d", m.Len())
	}
	if len(scheduled.Routes()) != 1 || scheduled.Routes()[0].FlightID != "JL44" {
		t.Errorf("scheduled session routes = %+v", scheduled.Routes())
	}
	if scheduled.Scheduler().State() != usecases.Running {
		t.Error("new session should be mounted")
	}

	repo.listLegsFn = func(ctx context.Context) ([]domain.FlightLeg, error) {
		return testLegs[1:2], nil
	}
	n, err := m.ReloadScheduled(context.Background())
	if err != nil || n != 1 {
		t.Fatalf("ReloadScheduled = %d, %v; want 1", n, err)
	}
	if got := scheduled.Routes(); len(got) != 1 || got[0].FlightID != "BA117" {
		t.Errorf("scheduled session not reloaded: %+v", got)
	}

	got, err := m.Get(explicit.ID())
	if err != nil || got != explicit {
		t.Fatalf("Get = %v, %v", got, err)
	}
	if err := m.Remove(explicit.ID()); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if explicit.Mounted() {
		t.Error("removed session should be unmounted")
	}
	if _, err := m.Get(explicit.ID()); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
	if err := m.Remove(explicit.ID()); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestSessionManager_ScheduleError(t *testing.T) {
	repo := &mockScheduleRepo{
		listLegsFn: func(ctx context.Context) ([]domain.FlightLeg, error) {
			return nil, errors.New("db down")
		},
	}
	m := usecases.NewSessionManager(newTestResolver(tableProvider(airports)), usecases.NewViewportFitter(0.1), 0.01, repo)
	if _, err := m.Create(context.Background(), nil); err == nil {
		t.Fatal("expected error")
	}
	if m.Len() != 0 {
		t.Error("failed create must not register a session")
	}
}

func recvFrame(t *testing.T, ch <-chan *domain.Frame) *domain.Frame {
	t.Helper()
	select {
	case f, ok := <-ch:
		if !ok {
			t.Fatal("frame channel closed")
		}
		return f
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for frame")
	}
	return nil
}

func TestMapSession_SubscribersShareOneTickLoop(t *testing.T) {
	s := newTestSession(t, tableProvider(airports))
	if _, err := s.Load(context.Background(), testLegs); err != nil {
		t.Fatalf("Load: %v", err)
	}
	ticks := make(chan time.Time)
	usecases.SetTickSource(s, ticks)

	a, releaseA := s.Subscribe(time.Millisecond)
	b, releaseB := s.Subscribe(time.Millisecond)
	defer releaseA()
	defer releaseB()
	if n := s.Subscribers(); n != 2 {
		t.Fatalf("subscribers = %d, want 2", n)
	}

	for i := 1; i <= 3; i++ {
		ticks <- time.Now()
		fa, fb := recvFrame(t, a), recvFrame(t, b)
		if fa != fb {
			t.Fatalf("tick %d: subscribers got different frames (%v vs %v)", i, fa.Progress, fb.Progress)
		}
		if want := float64(i) * 0.1; math.Abs(fa.Progress-want) > 1e-9 {
			t.Fatalf("tick %d: progress = %v, want %v", i, fa.Progress, want)
		}
	}

	releaseA()
	if _, ok := <-a; ok {
		t.Fatal("released channel still open")
	}
	ticks <- time.Now()
	if f := recvFrame(t, b); math.Abs(f.Progress-0.4) > 1e-9 {
		t.Fatalf("progress after release = %v, want 0.4", f.Progress)
	}

	releaseB()
	select {
	case ticks <- time.Now():
	case <-time.After(50 * time.Millisecond):
	}
	if p := s.Scheduler().Progress(); math.Abs(p-0.4) > 1e-9 {
		t.Errorf("scheduler ticked with no subscribers: progress = %v", p)
	}
	if n := s.Subscribers(); n != 0 {
		t.Errorf("subscribers = %d, want 0", n)
	}
}

func TestMapSession_UnmountClosesSubscribers(t *testing.T) {
	s := newTestSession(t, tableProvider(airports))
	ch, release := s.Subscribe(time.Hour)
	defer release()

	s.Unmount()
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected closed channel after Unmount")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after Unmount")
	}
	if n := s.Subscribers(); n != 0 {
		t.Errorf("subscribers = %d, want 0", n)
	}

	late, _ := s.Subscribe(time.Hour)
	if _, ok := <-late; ok {
		t.Error("subscribing to an unmounted session should yield a closed channel")
	}
}
