package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/coreleven/coreleven-server/internal/services"
	"github.com/coreleven/coreleven-server/pkg/response"
)

// InviteHandler exposes the public invite code resolver.
type InviteHandler struct {
	invites *services.InviteService
}

// NewInviteHandler constructs an InviteHandler.
func NewInviteHandler(invites *services.InviteService) *InviteHandler {
	return &InviteHandler{invites: invites}
}

// GET /api/invites/:code
//
// Public endpoint: the landing page shows who invited you and how full the
// grove is before asking you to register.
func (h *InviteHandler) Resolve(c *gin.Context) {
	validation, err := h.invites.Resolve(requestContext(c), c.Param("code"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, validation)
}
