package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/coreleven/coreleven-server/internal/models"
	"github.com/coreleven/coreleven-server/internal/realtime"
)

var (
	// ErrGroveIncomplete rejects room starts for groves still forming.
	ErrGroveIncomplete = errors.New("room: grove is not complete")
	// ErrNotRoomMember rejects room operations by non-members of the grove.
	ErrNotRoomMember = errors.New("room: not a grove member")
	// ErrRoomNotActive signals a stop against a room that is not running.
	ErrRoomNotActive = errors.New("room: not active")
	// ErrNotRoomStopper guards Stop to the grove owner or the starter.
	ErrNotRoomStopper = errors.New("room: only the starter or grove owner may stop")
)

// RoomSummary is the listing view of an active room.
type RoomSummary struct {
	RoomID           string    `json:"room_id"`
	GroveID          string    `json:"grove_id"`
	StartedBy        string    `json:"started_by"`
	StartedAt        time.Time `json:"started_at"`
	ParticipantCount int       `json:"participant_count"`
}

// RoomOption customises RoomService behaviour.
type RoomOption func(*RoomService)

// WithRoomClock injects a custom clock primarily for testing.
func WithRoomClock(clock func() time.Time) RoomOption {
	return func(s *RoomService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithRoomHub attaches a realtime hub for room lifecycle events.
func WithRoomHub(hub *realtime.Hub) RoomOption {
	return func(s *RoomService) {
		s.hub = hub
	}
}

// RoomService manages the live-audio room attached to each completed grove.
// The service gates who may start, stop and enter a room; the actual media
// transport lives outside this server.
type RoomService struct {
	db     *gorm.DB
	groves *GroveService
	hub    *realtime.Hub
	locks  *lockTable
	now    func() time.Time
}

// NewRoomService constructs a RoomService.
func NewRoomService(db *gorm.DB, groves *GroveService, opts ...RoomOption) (*RoomService, error) {
	if db == nil {
		return nil, errors.New("room service: db is required")
	}
	if groves == nil {
		return nil, errors.New("room service: grove service is required")
	}

	service := &RoomService{
		db:     db,
		groves: groves,
		locks:  newLockTable(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// Start opens (or reopens) the grove's audio room. Only members of a
// completed grove may start it; a grove has at most one room row, reused
// across sessions.
func (s *RoomService) Start(ctx context.Context, groveID, userID string) (*models.AudioRoom, error) {
	groveID = strings.TrimSpace(groveID)
	userID = strings.TrimSpace(userID)
	if groveID == "" || userID == "" {
		return nil, errors.New("room service: grove id and user id are required")
	}

	release := s.locks.acquire("grove-room:" + groveID)
	defer release()

	var room models.AudioRoom
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var grove models.Grove
		if err := tx.First(&grove, "id = ?", groveID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrGroveNotFound
			}
			return fmt.Errorf("room service: load grove: %w", err)
		}
		if !grove.IsComplete {
			return ErrGroveIncomplete
		}

		member, err := s.groves.IsMember(ctx, groveID, userID)
		if err != nil {
			return err
		}
		if !member {
			return ErrNotRoomMember
		}

		now := s.now().UTC()
		err = tx.Where("grove_id = ?", groveID).First(&room).Error
		switch {
		case err == nil:
			if room.IsActive {
				return nil
			}
			room.IsActive = true
			room.StartedBy = userID
			room.StartedAt = now
			room.EndedAt = nil
			if err := tx.Model(&models.AudioRoom{}).
				Where("id = ?", room.ID).
				Updates(map[string]any{
					"is_active":  true,
					"started_by": userID,
					"started_at": now,
					"ended_at":   nil,
				}).Error; err != nil {
				return fmt.Errorf("room service: reopen room: %w", err)
			}
			return nil
		case errors.Is(err, gorm.ErrRecordNotFound):
			room = models.AudioRoom{
				GroveID:   groveID,
				StartedBy: userID,
				IsActive:  true,
				StartedAt: now,
			}
			if err := tx.Create(&room).Error; err != nil {
				return fmt.Errorf("room service: create room: %w", err)
			}
			return nil
		default:
			return fmt.Errorf("room service: load room: %w", err)
		}
	})
	if err != nil {
		return nil, err
	}

	if s.hub != nil {
		s.hub.BroadcastStream(realtime.StreamRooms, realtime.Message{
			Event: realtime.EventRoomStarted,
			Data:  map[string]any{"room_id": room.ID, "grove_id": groveID},
		})
	}
	return &room, nil
}

// Stop closes an active room and clears its speaker queue. Only the starter
// or the grove owner may stop it.
func (s *RoomService) Stop(ctx context.Context, roomID, userID string) error {
	release := s.locks.acquire("room:" + roomID)
	defer release()

	var groveID string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var room models.AudioRoom
		if err := tx.First(&room, "id = ?", roomID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRoomNotFound
			}
			return fmt.Errorf("room service: load room: %w", err)
		}
		if !room.IsActive {
			return ErrRoomNotActive
		}

		var grove models.Grove
		if err := tx.Select("id", "owner_id").First(&grove, "id = ?", room.GroveID).Error; err != nil {
			return fmt.Errorf("room service: load grove: %w", err)
		}
		if room.StartedBy != userID && grove.OwnerID != userID {
			return ErrNotRoomStopper
		}

		now := s.now().UTC()
		if err := tx.Model(&models.AudioRoom{}).
			Where("id = ?", roomID).
			Updates(map[string]any{"is_active": false, "ended_at": now}).Error; err != nil {
			return fmt.Errorf("room service: close room: %w", err)
		}
		if err := tx.Where("room_id = ?", roomID).
			Delete(&models.SpeakerQueueEntry{}).Error; err != nil {
			return fmt.Errorf("room service: clear queue: %w", err)
		}

		groveID = room.GroveID
		return nil
	})
	if err != nil {
		return err
	}

	if s.hub != nil {
		s.hub.BroadcastStream(realtime.StreamRooms, realtime.Message{
			Event: realtime.EventRoomEnded,
			Data:  map[string]any{"room_id": roomID, "grove_id": groveID},
		})
	}
	return nil
}

// Get loads a room by id.
func (s *RoomService) Get(ctx context.Context, roomID string) (*models.AudioRoom, error) {
	var room models.AudioRoom
	if err := s.db.WithContext(ctx).First(&room, "id = ?", roomID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("room service: load room: %w", err)
	}
	return &room, nil
}

// Authorize reports whether userID may enter the room, meaning the room is
// active and the user holds a slot in its grove.
func (s *RoomService) Authorize(ctx context.Context, roomID, userID string) (*models.AudioRoom, error) {
	room, err := s.Get(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.IsActive {
		return nil, ErrRoomNotActive
	}

	member, err := s.groves.IsMember(ctx, room.GroveID, userID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, ErrNotRoomMember
	}
	return room, nil
}

// ListActiveForUser returns active rooms across the user's groves with the
// current queue size as the participant count.
func (s *RoomService) ListActiveForUser(ctx context.Context, userID string) ([]RoomSummary, error) {
	groves, err := s.groves.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(groves) == 0 {
		return []RoomSummary{}, nil
	}

	groveIDs := make([]string, 0, len(groves))
	for _, grove := range groves {
		groveIDs = append(groveIDs, grove.ID)
	}

	var rooms []models.AudioRoom
	if err := s.db.WithContext(ctx).
		Where("grove_id IN ? AND is_active = ?", groveIDs, true).
		Order("started_at ASC").
		Find(&rooms).Error; err != nil {
		return nil, fmt.Errorf("room service: list rooms: %w", err)
	}

	summaries := make([]RoomSummary, 0, len(rooms))
	for _, room := range rooms {
		var participants int64
		if err := s.db.WithContext(ctx).
			Model(&models.SpeakerQueueEntry{}).
			Where("room_id = ?", room.ID).
			Count(&participants).Error; err != nil {
			return nil, fmt.Errorf("room service: count participants: %w", err)
		}
		summaries = append(summaries, RoomSummary{
			RoomID:           room.ID,
			GroveID:          room.GroveID,
			StartedBy:        room.StartedBy,
			StartedAt:        room.StartedAt,
			ParticipantCount: int(participants),
		})
	}
	return summaries, nil
}

// SweepIdle closes active rooms whose queue has been empty since before the
// cutoff. The maintenance cron calls this on a schedule.
func (s *RoomService) SweepIdle(ctx context.Context, idleAfter time.Duration) (int, error) {
	if idleAfter <= 0 {
		return 0, errors.New("room service: idle duration must be positive")
	}

	cutoff := s.now().UTC().Add(-idleAfter)

	var rooms []models.AudioRoom
	if err := s.db.WithContext(ctx).
		Where("is_active = ? AND started_at < ?", true, cutoff).
		Find(&rooms).Error; err != nil {
		return 0, fmt.Errorf("room service: list stale rooms: %w", err)
	}

	closed := 0
	for _, room := range rooms {
		var queued int64
		if err := s.db.WithContext(ctx).
			Model(&models.SpeakerQueueEntry{}).
			Where("room_id = ?", room.ID).
			Count(&queued).Error; err != nil {
			return closed, fmt.Errorf("room service: count queue: %w", err)
		}
		if queued > 0 {
			continue
		}

		now := s.now().UTC()
		if err := s.db.WithContext(ctx).
			Model(&models.AudioRoom{}).
			Where("id = ? AND is_active = ?", room.ID, true).
			Updates(map[string]any{"is_active": false, "ended_at": now}).Error; err != nil {
			return closed, fmt.Errorf("room service: close stale room: %w", err)
		}
		closed++
	}
	return closed, nil
}
