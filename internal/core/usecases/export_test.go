package usecases

import "time"

// SetTickSource drives a session's tick loop from ticks instead of a timer.
func SetTickSource(s *MapSession, ticks <-chan time.Time) {
	s.tickSource = func(time.Duration) (<-chan time.Time, func()) {
		return ticks, func() {}
	}
}
