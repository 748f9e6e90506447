package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/coreleven/coreleven-server/internal/middleware"
	"github.com/coreleven/coreleven-server/internal/models"
	"github.com/coreleven/coreleven-server/internal/services"
	appErrors "github.com/coreleven/coreleven-server/pkg/errors"
	"github.com/coreleven/coreleven-server/pkg/response"
)

// GroveHandler exposes grove lifecycle and membership endpoints.
type GroveHandler struct {
	groves  *services.GroveService
	invites *services.InviteService
}

// NewGroveHandler constructs a GroveHandler.
func NewGroveHandler(groves *services.GroveService, invites *services.InviteService) *GroveHandler {
	return &GroveHandler{groves: groves, invites: invites}
}

type createGroveRequest struct {
	Kind      string `json:"kind" validate:"omitempty,oneof=personal auto"`
	IsPrivate bool   `json:"is_private"`
}

type updateGroveRequest struct {
	IsPrivate     *bool `json:"is_private"`
	MergeEligible *bool `json:"merge_eligible"`
}

type joinGroveRequest struct {
	InviteCode string `json:"invite_code" validate:"required,invite_code"`
}

type groveDTO struct {
	ID            string     `json:"id"`
	OwnerID       string     `json:"owner_id"`
	Kind          string     `json:"kind"`
	IsPrivate     bool       `json:"is_private"`
	IsComplete    bool       `json:"is_complete"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	MergeEligible bool       `json:"merge_eligible"`
	InviteCode    string     `json:"invite_code,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

func toGroveDTO(grove *models.Grove, includeCode bool) groveDTO {
	dto := groveDTO{
		ID:            grove.ID,
		OwnerID:       grove.OwnerID,
		Kind:          grove.Kind,
		IsPrivate:     grove.IsPrivate,
		IsComplete:    grove.IsComplete,
		CompletedAt:   grove.CompletedAt,
		MergeEligible: grove.MergeEligible,
		CreatedAt:     grove.CreatedAt,
	}
	if includeCode {
		dto.InviteCode = grove.InviteCode
	}
	return dto
}

func requireUserID(c *gin.Context) (string, bool) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return "", false
	}
	return userID, true
}

// POST /api/groves
func (h *GroveHandler) Create(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req createGroveRequest
	if !bindAndValidate(c, &req) {
		return
	}

	grove, err := h.groves.Create(requestContext(c), services.CreateGroveInput{
		OwnerID:   userID,
		Kind:      req.Kind,
		IsPrivate: req.IsPrivate,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, toGroveDTO(grove, true))
}

// GET /api/groves
func (h *GroveHandler) List(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	groves, err := h.groves.ListForUser(requestContext(c), userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	dtos := make([]groveDTO, 0, len(groves))
	for i := range groves {
		dtos = append(dtos, toGroveDTO(&groves[i], groves[i].OwnerID == userID))
	}
	response.List(c, dtos, len(dtos))
}

// GET /api/groves/:id
func (h *GroveHandler) Get(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	summary, err := h.groves.Get(requestContext(c), c.Param("id"), userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, summary)
}

// PATCH /api/groves/:id
func (h *GroveHandler) Update(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req updateGroveRequest
	if !bindAndValidate(c, &req) {
		return
	}

	grove, err := h.groves.Update(requestContext(c), c.Param("id"), userID, services.UpdateGroveInput{
		IsPrivate:     req.IsPrivate,
		MergeEligible: req.MergeEligible,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, toGroveDTO(grove, true))
}

// DELETE /api/groves/:id
func (h *GroveHandler) Delete(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	if err := h.groves.Delete(requestContext(c), c.Param("id"), userID); err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// POST /api/groves/join
//
// Resolves the invite code and admits the caller in one step. The admission
// itself re-checks capacity and completion, so a stale resolution cannot
// overfill the grove.
func (h *GroveHandler) Join(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req joinGroveRequest
	if !bindAndValidate(c, &req) {
		return
	}

	ctx := requestContext(c)
	validation, err := h.invites.Resolve(ctx, req.InviteCode)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	result, err := h.groves.Admit(ctx, validation.GroveID, userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"grove":        toGroveDTO(result.Grove, false),
		"member_count": result.MemberCount,
		"completed":    result.Completed,
	})
}
