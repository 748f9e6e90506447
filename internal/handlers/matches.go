package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/coreleven/coreleven-server/internal/services"
	"github.com/coreleven/coreleven-server/pkg/response"
)

// MatchHandler returns ranked open groves for the caller.
type MatchHandler struct {
	matches *services.MatchService
}

// NewMatchHandler constructs a MatchHandler.
func NewMatchHandler(matches *services.MatchService) *MatchHandler {
	return &MatchHandler{matches: matches}
}

// GET /api/matches
//
// An empty list is a normal answer: it means the caller has no profile yet or
// nothing open fits.
func (h *MatchHandler) Rank(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	ranked, err := h.matches.Rank(requestContext(c), userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.List(c, ranked, len(ranked))
}
