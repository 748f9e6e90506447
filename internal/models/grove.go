package models

import "time"

// GroveCapacity is the fixed size of every grove: one owner slot plus ten
// open slots. Admissions must never push the member count past it.
const GroveCapacity = 11

// Grove kinds. Personal groves fill by invite code only; auto groves are
// discoverable through compatibility matching.
const (
	GroveKindPersonal = "personal"
	GroveKindAuto     = "auto"
)

// Grove is a capacity-bounded circle of users.
type Grove struct {
	BaseModel

	OwnerID string `gorm:"type:uuid;not null;index" json:"owner_id"`
	Owner   *User  `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`

	// InviteCode is issued once at creation and never rotated. Uniqueness is
	// only meaningful among forming groves; the resolver rejects codes whose
	// grove already completed.
	InviteCode string `gorm:"size:8;uniqueIndex;not null" json:"invite_code"`

	Kind      string `gorm:"size:16;not null;default:personal" json:"kind"`
	IsPrivate bool   `gorm:"default:false" json:"is_private"`

	// IsComplete latches exactly once when the eleventh member joins and
	// never reverts. CompletedAt is stamped in the same update.
	IsComplete  bool       `gorm:"default:false;index" json:"is_complete"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	MergeEligible bool `gorm:"default:true" json:"merge_eligible"`

	Members []GroveMember `gorm:"foreignKey:GroveID" json:"members,omitempty"`
}

// GroveMember relates one user to one grove. The (grove_id, user_id) pair is
// unique and rows are never deleted; leaving does not free a slot.
type GroveMember struct {
	BaseModel

	GroveID string `gorm:"type:uuid;not null;uniqueIndex:idx_grove_user" json:"grove_id"`
	UserID  string `gorm:"type:uuid;not null;uniqueIndex:idx_grove_user" json:"user_id"`

	JoinedAt time.Time `gorm:"not null" json:"joined_at"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}
