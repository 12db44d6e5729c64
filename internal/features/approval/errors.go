package approval

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

var (
	ErrValidation       = errors.New("validation failed")
	ErrConfiguration    = errors.New("approval chain misconfigured")
	ErrDuplicateRequest = errors.New("request already submitted")
	ErrNotFound         = errors.New("request not found")
	ErrForbidden        = errors.New("forbidden")
	ErrInvalidState     = errors.New("invalid state")
	ErrConflict         = errors.New("conflict")

	// ErrEditNotAllowed is an ErrInvalidState raised by owner edits
	ErrEditNotAllowed = fmt.Errorf("%w: edit not allowed", ErrInvalidState)

	// errStale is returned by repositories when a conditional write matched nothing
	errStale = errors.New("precondition no longer holds")
)

// HTTPStatus maps an engine error onto the transport status code
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrValidation), errors.Is(err, ErrConfiguration), errors.Is(err, ErrInvalidState):
		return fiber.StatusBadRequest
	case errors.Is(err, ErrDuplicateRequest), errors.Is(err, ErrConflict):
		return fiber.StatusConflict
	case errors.Is(err, ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, ErrForbidden):
		return fiber.StatusForbidden
	}
	return fiber.StatusInternalServerError
}
