package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/flightmap/internal/core/domain"
	"github.com/samirrijal/flightmap/internal/core/usecases"
)

// APIError is a structured error response.
type APIError struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`    // bad_request, not_found, unresolved_location, internal_error
	Message   string `json:"message"` // Human-readable message
	RequestID string `json:"request_id,omitempty"`
}

// newError builds a JSON error response with a request ID.
func newError(c *fiber.Ctx, status int, code string, message string) error {
	reqID, _ := c.Locals("requestid").(string)
	return c.Status(status).JSON(APIError{
		Status:    status,
		Code:      code,
		Message:   message,
		RequestID: reqID,
	})
}

// errBadRequest returns a 400 error.
func errBadRequest(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusBadRequest, "bad_request", msg)
}

// errNotFound returns a 404 error.
func errNotFound(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusNotFound, "not_found", msg)
}

// errInternal returns a 500 error.
func errInternal(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusInternalServerError, "internal_error", msg)
}

// errFromDomain maps engine errors onto API errors.
func errFromDomain(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrUnresolvedLocation):
		return newError(c, fiber.StatusNotFound, "unresolved_location", err.Error())
	case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrRouteNotFound):
		return errNotFound(c, err.Error())
	case errors.Is(err, domain.ErrSessionClosed):
		return newError(c, fiber.StatusConflict, "session_closed", err.Error())
	case errors.Is(err, domain.ErrInvalidCoordinate), errors.Is(err, usecases.ErrInvalidSpeed):
		return newError(c, fiber.StatusUnprocessableEntity, "invalid_input", err.Error())
	default:
		return errInternal(c, err.Error())
	}
}
