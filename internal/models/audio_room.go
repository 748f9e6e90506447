package models

import "time"

// AudioRoom is the live-audio space attached to a completed grove. The engine
// manages who may speak and in what order; the media transport is external.
type AudioRoom struct {
	BaseModel

	GroveID string `gorm:"type:uuid;not null;uniqueIndex" json:"grove_id"`
	Grove   *Grove `gorm:"foreignKey:GroveID" json:"grove,omitempty"`

	StartedBy string     `gorm:"type:uuid;not null" json:"started_by"`
	IsActive  bool       `gorm:"default:true;index" json:"is_active"`
	StartedAt time.Time  `gorm:"not null" json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// SpeakerQueueEntry is one raised hand in a room's ordered queue.
//
// Positions increase monotonically per room and are never reused, so they are
// stable arrival-order identifiers rather than a dense 1..k range. At most one
// entry per room may have IsSpeaking set.
type SpeakerQueueEntry struct {
	BaseModel

	RoomID string `gorm:"type:uuid;not null;uniqueIndex:idx_room_user;index:idx_room_position,priority:1" json:"room_id"`
	UserID string `gorm:"type:uuid;not null;uniqueIndex:idx_room_user" json:"user_id"`

	Position     int       `gorm:"not null;index:idx_room_position,priority:2" json:"position"`
	IsSpeaking   bool      `gorm:"default:false" json:"is_speaking"`
	RaisedHandAt time.Time `gorm:"not null" json:"raised_hand_at"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}
