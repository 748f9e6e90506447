package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/coreleven/coreleven-server/internal/auth"
	"github.com/coreleven/coreleven-server/internal/models"
	"github.com/coreleven/coreleven-server/internal/services"
	appErrors "github.com/coreleven/coreleven-server/pkg/errors"
	"github.com/coreleven/coreleven-server/pkg/response"
)

// RoomHandler exposes audio room lifecycle, access tokens and the raise-hand
// queue.
type RoomHandler struct {
	rooms *services.RoomService
	queue *services.QueueService
	jwt   *auth.JWTService
}

// NewRoomHandler constructs a RoomHandler.
func NewRoomHandler(rooms *services.RoomService, queue *services.QueueService, jwt *auth.JWTService) *RoomHandler {
	return &RoomHandler{rooms: rooms, queue: queue, jwt: jwt}
}

type roomDTO struct {
	ID        string     `json:"id"`
	GroveID   string     `json:"grove_id"`
	StartedBy string     `json:"started_by"`
	IsActive  bool       `json:"is_active"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

func toRoomDTO(room *models.AudioRoom) roomDTO {
	return roomDTO{
		ID:        room.ID,
		GroveID:   room.GroveID,
		StartedBy: room.StartedBy,
		IsActive:  room.IsActive,
		StartedAt: room.StartedAt,
		EndedAt:   room.EndedAt,
	}
}

type queueEntryDTO struct {
	UserID       string    `json:"user_id"`
	FullName     string    `json:"full_name,omitempty"`
	Position     int       `json:"position"`
	IsSpeaking   bool      `json:"is_speaking"`
	RaisedHandAt time.Time `json:"raised_hand_at"`
}

type setSpeakingRequest struct {
	Speaking bool `json:"speaking"`
}

// POST /api/groves/:id/room
func (h *RoomHandler) Start(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	room, err := h.rooms.Start(requestContext(c), c.Param("id"), userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, toRoomDTO(room))
}

// GET /api/rooms
func (h *RoomHandler) ListActive(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	list, err := h.rooms.ListActiveForUser(requestContext(c), userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.List(c, list, len(list))
}

// DELETE /api/rooms/:id
func (h *RoomHandler) Stop(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	if err := h.rooms.Stop(requestContext(c), c.Param("id"), userID); err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"stopped": true})
}

// POST /api/rooms/:id/token
//
// Mints the short-lived credential the media client presents to the audio
// transport. Only members of an active room's grove get one.
func (h *RoomHandler) Token(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	room, err := h.rooms.Authorize(requestContext(c), c.Param("id"), userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	token, ttl, err := h.jwt.GenerateRoomToken(userID, room.GroveID)
	if err != nil {
		response.Error(c, appErrors.ErrInternalServer.WithInternal(err))
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"token":      token,
		"expires_in": int(ttl.Seconds()),
		"room_id":    room.ID,
		"grove_id":   room.GroveID,
	})
}

// GET /api/rooms/:id/queue
func (h *RoomHandler) Queue(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	if _, err := h.rooms.Authorize(requestContext(c), c.Param("id"), userID); err != nil {
		respondServiceError(c, err)
		return
	}

	entries, err := h.queue.List(requestContext(c), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	dtos := make([]queueEntryDTO, 0, len(entries))
	for _, entry := range entries {
		dto := queueEntryDTO{
			UserID:       entry.UserID,
			Position:     entry.Position,
			IsSpeaking:   entry.IsSpeaking,
			RaisedHandAt: entry.RaisedHandAt,
		}
		if entry.User != nil {
			dto.FullName = entry.User.FullName
		}
		dtos = append(dtos, dto)
	}
	response.List(c, dtos, len(dtos))
}

// POST /api/rooms/:id/queue
func (h *RoomHandler) RaiseHand(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	if _, err := h.rooms.Authorize(requestContext(c), c.Param("id"), userID); err != nil {
		respondServiceError(c, err)
		return
	}

	position, err := h.queue.Enqueue(requestContext(c), c.Param("id"), userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"position": position})
}

// DELETE /api/rooms/:id/queue
func (h *RoomHandler) LowerHand(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	if err := h.queue.Dequeue(requestContext(c), c.Param("id"), userID); err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"removed": true})
}

// PUT /api/rooms/:id/queue/speaking
func (h *RoomHandler) SetSpeaking(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req setSpeakingRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if _, err := h.rooms.Authorize(requestContext(c), c.Param("id"), userID); err != nil {
		respondServiceError(c, err)
		return
	}

	if err := h.queue.SetSpeaking(requestContext(c), c.Param("id"), userID, req.Speaking); err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"speaking": req.Speaking})
}
