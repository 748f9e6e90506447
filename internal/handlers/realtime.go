package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	iauth "github.com/coreleven/coreleven-server/internal/auth"
	"github.com/coreleven/coreleven-server/internal/realtime"
	"github.com/coreleven/coreleven-server/pkg/errors"
	"github.com/coreleven/coreleven-server/pkg/response"
)

// RealtimeHandler upgrades HTTP connections into authenticated WebSocket streams.
type RealtimeHandler struct {
	hub *realtime.Hub
	jwt *iauth.JWTService
}

// NewRealtimeHandler constructs a realtime handler. The hub itself rejects
// stream names it does not publish.
func NewRealtimeHandler(hub *realtime.Hub, jwt *iauth.JWTService) *RealtimeHandler {
	return &RealtimeHandler{hub: hub, jwt: jwt}
}

// Stream validates the caller and hands the connection to the hub. Websocket
// clients cannot set headers, so the token also rides in the query string.
func (h *RealtimeHandler) Stream(c *gin.Context) {
	if h.jwt == nil || h.hub == nil {
		response.Error(c, errors.ErrNotFound)
		return
	}

	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		token = strings.TrimSpace(c.Query("access_token"))
	}
	if token == "" {
		authz := c.GetHeader("Authorization")
		if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			token = strings.TrimSpace(authz[7:])
		}
	}

	if token == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	claims, err := h.jwt.ValidateAccessToken(token)
	if err != nil {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	userID := strings.TrimSpace(claims.UserID)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	var streams []string
	if raw := strings.TrimSpace(c.Query("streams")); raw != "" {
		streams = strings.Split(raw, ",")
	}

	h.hub.Serve(userID, streams, c.Writer, c.Request)
}
