package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/coreleven/coreleven-server/internal/services"
	appErrors "github.com/coreleven/coreleven-server/pkg/errors"
	"github.com/coreleven/coreleven-server/pkg/response"
)

// respondServiceError translates service sentinel errors into the stable API
// error vocabulary. Anything unrecognised becomes a 500 with the original
// error kept internal.
func respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrGroveNotFound),
		errors.Is(err, services.ErrRoomNotFound),
		errors.Is(err, services.ErrUserNotFound),
		errors.Is(err, services.ErrProfileNotFound):
		response.Error(c, appErrors.ErrNotFound)
	case errors.Is(err, services.ErrGroveAtCapacity):
		response.Error(c, appErrors.ErrGroveAtCapacity)
	case errors.Is(err, services.ErrGroveComplete):
		response.Error(c, appErrors.ErrGroveComplete)
	case errors.Is(err, services.ErrAlreadyMember):
		response.Error(c, appErrors.ErrAlreadyMember)
	case errors.Is(err, services.ErrInviteInvalid):
		response.Error(c, appErrors.ErrInviteInvalid)
	case errors.Is(err, services.ErrAlreadyQueued):
		response.Error(c, appErrors.ErrAlreadyQueued)
	case errors.Is(err, services.ErrNotQueued):
		response.Error(c, appErrors.ErrNotQueued)
	case errors.Is(err, services.ErrRoomClosed),
		errors.Is(err, services.ErrRoomNotActive):
		response.Error(c, appErrors.NewBadRequest("room is not active"))
	case errors.Is(err, services.ErrGroveIncomplete):
		response.Error(c, appErrors.NewBadRequest("grove is not complete"))
	case errors.Is(err, services.ErrNotGroveOwner),
		errors.Is(err, services.ErrNotRoomMember),
		errors.Is(err, services.ErrNotRoomStopper):
		response.Error(c, appErrors.ErrForbidden)
	case errors.Is(err, services.ErrInvalidGroveKind):
		response.Error(c, appErrors.NewBadRequest("invalid grove kind"))
	case errors.Is(err, services.ErrInvalidTraitScore),
		errors.Is(err, services.ErrInvalidEnneagram),
		errors.Is(err, services.ErrTooManyTags):
		response.Error(c, appErrors.NewBadRequest(err.Error()))
	case errors.Is(err, services.ErrEmailTaken):
		response.Error(c, appErrors.New("user.email_taken", "email is already registered", 409))
	case errors.Is(err, services.ErrInvalidCredentials),
		errors.Is(err, services.ErrUserInactive):
		response.Error(c, appErrors.ErrInvalidCredentials)
	case errors.Is(err, services.ErrInviteSpaceExhausted):
		response.Error(c, appErrors.ErrUnavailable)
	default:
		response.Error(c, appErrors.ErrInternalServer.WithInternal(err))
	}
}
