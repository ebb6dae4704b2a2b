package handlers

import (
	"errors"

	"github.com/skyquote/skyquote/internal/services"
	appErrors "github.com/skyquote/skyquote/pkg/errors"
)

// mapServiceError translates service-level sentinel errors into renderable
// API errors. Anything unrecognised falls through as a 500.
func mapServiceError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, services.ErrEnquiryNotFound),
		errors.Is(err, services.ErrPilotNotFound),
		errors.Is(err, services.ErrIdentityNotFound),
		errors.Is(err, services.ErrTokenNotFound):
		return appErrors.ErrNotFound
	case errors.Is(err, services.ErrTokenExpired):
		return appErrors.ErrTokenExpired
	case errors.Is(err, services.ErrTokenConsumed):
		return appErrors.ErrTokenConsumed
	case errors.Is(err, services.ErrInvalidTransition):
		var ite *services.InvalidTransitionError
		if errors.As(err, &ite) {
			return appErrors.New(appErrors.ErrInvalidTransition.Code, ite.Error(), appErrors.ErrInvalidTransition.StatusCode)
		}
		return appErrors.ErrInvalidTransition
	case errors.Is(err, services.ErrIdentityConflict):
		return appErrors.ErrIdentityConflict
	case errors.Is(err, services.ErrConstraintViolation):
		return appErrors.ErrConstraintViolation
	case errors.Is(err, services.ErrActiveInvitation):
		return appErrors.New("ACTIVE_INVITATION", err.Error(), appErrors.ErrConstraintViolation.StatusCode)
	case errors.Is(err, services.ErrNoPilots):
		return appErrors.NewBadRequest(err.Error())
	default:
		return appErrors.ErrInternalServer.WithInternal(err)
	}
}
