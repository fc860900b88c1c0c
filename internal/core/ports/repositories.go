package ports

import (
	"context"

	"github.com/samirrijal/flightmap/internal/core/domain"
)

// ScheduleRepository reads the flight schedule maintained by the back office.
type ScheduleRepository interface {
	// ListLegs returns the active flight legs ordered by flight id.
	ListLegs(ctx context.Context) ([]domain.FlightLeg, error)
}
