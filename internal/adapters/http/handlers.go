package http

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sourcegraph/conc"

	"github.com/samirrijal/flightmap/internal/core/domain"
	"github.com/samirrijal/flightmap/internal/core/usecases"
)

const maxLegsPerRequest = 500

// GeocodeResult is the response of GET /v1/geocode.
type GeocodeResult struct {
	Name     string          `json:"name"`
	Key      string          `json:"key"`
	Location domain.GeoPoint `json:"location"`
}

// ResolveRequest is the body of POST /v1/routes/resolve.
type ResolveRequest struct {
	Legs []domain.FlightLeg `json:"legs"`
}

// ResolveResponse carries the routes that resolved plus a viewport framing them.
type ResolveResponse struct {
	Routes   []domain.ResolvedRoute `json:"routes"`
	Viewport domain.Viewport        `json:"viewport"`
	Dropped  int                    `json:"dropped"`
}

// ViewportRequest is the body of POST /v1/viewport.
type ViewportRequest struct {
	Routes []domain.ResolvedRoute `json:"routes"`
}

// SessionRequest is the optional body of POST /v1/sessions. Without legs the
// session follows the flight schedule table.
type SessionRequest struct {
	Legs []domain.FlightLeg `json:"legs"`
}

// SessionResponse is returned when a session is created.
type SessionResponse struct {
	SessionID string        `json:"session_id"`
	Frame     *domain.Frame `json:"frame"`
}

// SpeedRequest is the body of PUT /v1/sessions/:id/speed.
type SpeedRequest struct {
	Speed float64 `json:"speed"`
}

// GeocodeHandler resolves one place name.
func GeocodeHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		q := strings.TrimSpace(c.Query("q"))
		if q == "" {
			return errBadRequest(c, "q is required")
		}

		p, err := deps.Geocoder.Resolve(c.UserContext(), q)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(GeocodeResult{Name: q, Key: usecases.NormalizeName(q), Location: p})
	}
}

// DistanceHandler resolves two place names and returns the great-circle
// route between them.
func DistanceHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		from := strings.TrimSpace(c.Query("from"))
		to := strings.TrimSpace(c.Query("to"))
		if from == "" || to == "" {
			return errBadRequest(c, "from and to are required")
		}

		ctx := c.UserContext()
		var (
			origin, dest       domain.GeoPoint
			originErr, destErr error
			wg                 conc.WaitGroup
		)
		wg.Go(func() { origin, originErr = deps.Geocoder.Resolve(ctx, from) })
		wg.Go(func() { dest, destErr = deps.Geocoder.Resolve(ctx, to) })
		wg.Wait()
		if originErr != nil {
			return errFromDomain(c, originErr)
		}
		if destErr != nil {
			return errFromDomain(c, destErr)
		}

		leg := domain.FlightLeg{OriginName: from, DestinationName: to}
		return c.JSON(usecases.BuildRoute(leg, origin, dest))
	}
}

func validateLegs(legs []domain.FlightLeg) string {
	if len(legs) > maxLegsPerRequest {
		return fmt.Sprintf("at most %d legs per request", maxLegsPerRequest)
	}
	for i, l := range legs {
		if strings.TrimSpace(l.FlightID) == "" {
			return fmt.Sprintf("legs[%d].flight_id is required", i)
		}
	}
	return ""
}

// ResolveRoutesHandler resolves a batch of flight legs. Legs whose endpoints
// do not geocode are left out and counted in "dropped".
func ResolveRoutesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req ResolveRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if msg := validateLegs(req.Legs); msg != "" {
			return errBadRequest(c, msg)
		}

		routes := deps.Resolver.Resolve(c.UserContext(), req.Legs)
		return c.JSON(ResolveResponse{
			Routes:   routes,
			Viewport: deps.Fitter.Fit(routes),
			Dropped:  len(req.Legs) - len(routes),
		})
	}
}

// ViewportHandler fits a viewport around already resolved routes.
func ViewportHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req ViewportRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		for _, r := range req.Routes {
			if err := r.Origin.Validate(); err != nil {
				return errFromDomain(c, err)
			}
			if err := r.Destination.Validate(); err != nil {
				return errFromDomain(c, err)
			}
		}
		return c.JSON(deps.Fitter.Fit(req.Routes))
	}
}

// CreateSessionHandler mounts a new map session.
func CreateSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req SessionRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return errBadRequest(c, "invalid request body")
			}
		}
		if msg := validateLegs(req.Legs); msg != "" {
			return errBadRequest(c, msg)
		}

		ctx := c.UserContext()
		s, err := deps.Sessions.Create(ctx, req.Legs)
		if err != nil {
			return errFromDomain(c, err)
		}

		frame := s.Frame()
		if deps.Publisher != nil {
			if err := deps.Publisher.PublishRoutes(ctx, s.ID(), frame.Routes); err != nil {
				LoggerFromCtx(ctx).Warn("publish routes failed", "session_id", s.ID(), "error", err)
			}
		}

		c.Location("/v1/sessions/" + s.ID() + "/frame")
		return c.Status(fiber.StatusCreated).JSON(SessionResponse{SessionID: s.ID(), Frame: frame})
	}
}

// FrameHandler returns the current frame of a session without ticking it.
func FrameHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := deps.Sessions.Get(c.Params("id"))
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(s.Frame())
	}
}

// SpeedHandler changes the animation speed of a session. Progress is kept.
func SpeedHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := deps.Sessions.Get(c.Params("id"))
		if err != nil {
			return errFromDomain(c, err)
		}

		var req SpeedRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if err := s.Scheduler().SetSpeed(req.Speed); err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(fiber.Map{
			"speed":    s.Scheduler().Speed(),
			"progress": s.Scheduler().Progress(),
		})
	}
}

// FocusHandler returns a viewport framing one flight of a session.
func FocusHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := deps.Sessions.Get(c.Params("id"))
		if err != nil {
			return errFromDomain(c, err)
		}
		vp, err := s.Focus(c.Params("flight"))
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(vp)
	}
}

// DeleteSessionHandler unmounts a session. Lookups still in flight for it are
// discarded when they complete.
func DeleteSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := deps.Sessions.Remove(c.Params("id")); err != nil {
			return errFromDomain(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// ResetGeocodeCacheHandler clears the in-process geocode cache, including
// cached failures, so unresolved names are looked up again.
func ResetGeocodeCacheHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		cache := deps.Geocoder.Cache()
		n := cache.Len()
		cache.Reset()
		LoggerFromCtx(c.UserContext()).Info("geocode cache reset", "entries", n)
		return c.JSON(fiber.Map{"cleared": n})
	}
}
