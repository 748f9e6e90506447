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
	"github.com/coreleven/coreleven-server/pkg/metrics"
)

var (
	// ErrRoomNotFound indicates no audio room matches the provided id.
	ErrRoomNotFound = errors.New("queue: room not found")
	// ErrRoomClosed rejects queue mutations against an inactive room.
	ErrRoomClosed = errors.New("queue: room is closed")
	// ErrAlreadyQueued signals the user already has a raised hand.
	ErrAlreadyQueued = errors.New("queue: already queued")
	// ErrNotQueued signals a dequeue for a user with no entry.
	ErrNotQueued = errors.New("queue: not queued")
)

// QueueOption customises QueueService behaviour.
type QueueOption func(*QueueService)

// WithQueueClock injects a custom clock primarily for testing.
func WithQueueClock(clock func() time.Time) QueueOption {
	return func(s *QueueService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithQueueHub attaches a realtime hub for queue events.
func WithQueueHub(hub *realtime.Hub) QueueOption {
	return func(s *QueueService) {
		s.hub = hub
	}
}

// QueueService maintains the per-room raise-hand queue. Positions grow
// monotonically and are never reassigned: removing an entry leaves a gap, so
// relative order of the remaining entries is stable.
type QueueService struct {
	db    *gorm.DB
	hub   *realtime.Hub
	locks *lockTable
	now   func() time.Time
}

// NewQueueService constructs a QueueService.
func NewQueueService(db *gorm.DB, opts ...QueueOption) (*QueueService, error) {
	if db == nil {
		return nil, errors.New("queue service: db is required")
	}

	service := &QueueService{
		db:    db,
		locks: newLockTable(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// Enqueue appends userID to the room's queue and returns the assigned
// position. Assignment is atomic per room, so concurrent raises receive
// distinct positions.
func (s *QueueService) Enqueue(ctx context.Context, roomID, userID string) (int, error) {
	roomID = strings.TrimSpace(roomID)
	userID = strings.TrimSpace(userID)
	if roomID == "" || userID == "" {
		return 0, errors.New("queue service: room id and user id are required")
	}

	release := s.locks.acquire("room:" + roomID)
	defer release()

	var position int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.requireActiveRoom(tx, roomID); err != nil {
			return err
		}

		var existing int64
		if err := tx.Model(&models.SpeakerQueueEntry{}).
			Where("room_id = ? AND user_id = ?", roomID, userID).
			Count(&existing).Error; err != nil {
			return fmt.Errorf("queue service: check entry: %w", err)
		}
		if existing > 0 {
			return ErrAlreadyQueued
		}

		var maxPosition int
		row := tx.Model(&models.SpeakerQueueEntry{}).
			Where("room_id = ?", roomID).
			Select("COALESCE(MAX(position), 0)").
			Row()
		if err := row.Scan(&maxPosition); err != nil {
			return fmt.Errorf("queue service: max position: %w", err)
		}

		entry := models.SpeakerQueueEntry{
			RoomID:       roomID,
			UserID:       userID,
			Position:     maxPosition + 1,
			RaisedHandAt: s.now().UTC(),
		}
		if err := tx.Create(&entry).Error; err != nil {
			if isUniqueConstraintError(err) {
				return ErrAlreadyQueued
			}
			return fmt.Errorf("queue service: insert entry: %w", err)
		}

		position = entry.Position
		return nil
	})
	if err != nil {
		metrics.QueueOperations.WithLabelValues("enqueue", queueLabel(err)).Inc()
		return 0, err
	}

	metrics.QueueOperations.WithLabelValues("enqueue", "ok").Inc()
	s.broadcastQueue(roomID, realtime.EventQueueUpdated, map[string]any{
		"room_id":  roomID,
		"user_id":  userID,
		"position": position,
		"action":   "enqueue",
	})

	return position, nil
}

// Dequeue removes the user's entry. Remaining positions are untouched.
func (s *QueueService) Dequeue(ctx context.Context, roomID, userID string) error {
	release := s.locks.acquire("room:" + roomID)
	defer release()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.requireRoom(tx, roomID); err != nil {
			return err
		}

		res := tx.Where("room_id = ? AND user_id = ?", roomID, userID).
			Delete(&models.SpeakerQueueEntry{})
		if res.Error != nil {
			return fmt.Errorf("queue service: delete entry: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotQueued
		}
		return nil
	})
	if err != nil {
		metrics.QueueOperations.WithLabelValues("dequeue", queueLabel(err)).Inc()
		return err
	}

	metrics.QueueOperations.WithLabelValues("dequeue", "ok").Inc()
	s.broadcastQueue(roomID, realtime.EventQueueUpdated, map[string]any{
		"room_id": roomID,
		"user_id": userID,
		"action":  "dequeue",
	})
	return nil
}

// List returns the room's queue in ascending position order.
func (s *QueueService) List(ctx context.Context, roomID string) ([]models.SpeakerQueueEntry, error) {
	if err := s.requireRoom(s.db.WithContext(ctx), roomID); err != nil {
		return nil, err
	}

	var entries []models.SpeakerQueueEntry
	if err := s.db.WithContext(ctx).
		Preload("User").
		Where("room_id = ?", roomID).
		Order("position ASC").
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("queue service: list entries: %w", err)
	}
	return entries, nil
}

// SetSpeaking marks the user's entry as speaking (or not). Granting the floor
// clears every other entry in the same transaction, so at most one entry per
// room ever has the flag.
func (s *QueueService) SetSpeaking(ctx context.Context, roomID, userID string, speaking bool) error {
	release := s.locks.acquire("room:" + roomID)
	defer release()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.requireActiveRoom(tx, roomID); err != nil {
			return err
		}

		var entry models.SpeakerQueueEntry
		if err := tx.Where("room_id = ? AND user_id = ?", roomID, userID).
			First(&entry).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotQueued
			}
			return fmt.Errorf("queue service: load entry: %w", err)
		}

		if speaking {
			if err := tx.Model(&models.SpeakerQueueEntry{}).
				Where("room_id = ? AND user_id <> ?", roomID, userID).
				Update("is_speaking", false).Error; err != nil {
				return fmt.Errorf("queue service: clear speakers: %w", err)
			}
		}

		if err := tx.Model(&models.SpeakerQueueEntry{}).
			Where("id = ?", entry.ID).
			Update("is_speaking", speaking).Error; err != nil {
			return fmt.Errorf("queue service: set speaking: %w", err)
		}
		return nil
	})
	if err != nil {
		metrics.QueueOperations.WithLabelValues("set_speaking", queueLabel(err)).Inc()
		return err
	}

	metrics.QueueOperations.WithLabelValues("set_speaking", "ok").Inc()
	s.broadcastQueue(roomID, realtime.EventSpeakerChanged, map[string]any{
		"room_id":  roomID,
		"user_id":  userID,
		"speaking": speaking,
	})
	return nil
}

func (s *QueueService) requireRoom(db *gorm.DB, roomID string) error {
	var room models.AudioRoom
	if err := db.Select("id").First(&room, "id = ?", roomID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRoomNotFound
		}
		return fmt.Errorf("queue service: load room: %w", err)
	}
	return nil
}

func (s *QueueService) requireActiveRoom(db *gorm.DB, roomID string) error {
	var room models.AudioRoom
	if err := db.Select("id", "is_active").First(&room, "id = ?", roomID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRoomNotFound
		}
		return fmt.Errorf("queue service: load room: %w", err)
	}
	if !room.IsActive {
		return ErrRoomClosed
	}
	return nil
}

func (s *QueueService) broadcastQueue(roomID, event string, data map[string]any) {
	if s.hub == nil {
		return
	}
	s.hub.BroadcastStream(realtime.StreamRooms, realtime.Message{
		Event: event,
		Data:  data,
	})
}

func queueLabel(err error) string {
	switch {
	case errors.Is(err, ErrAlreadyQueued):
		return "already_queued"
	case errors.Is(err, ErrNotQueued):
		return "not_queued"
	case errors.Is(err, ErrRoomClosed):
		return "room_closed"
	case errors.Is(err, ErrRoomNotFound):
		return "room_not_found"
	default:
		return "error"
	}
}
