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
	// ErrGroveNotFound indicates no grove matches the provided id.
	ErrGroveNotFound = errors.New("grove: not found")
	// ErrGroveAtCapacity signals an admission against a full grove.
	ErrGroveAtCapacity = errors.New("grove: at capacity")
	// ErrGroveComplete signals an admission against a completed grove.
	ErrGroveComplete = errors.New("grove: already complete")
	// ErrAlreadyMember signals the user already occupies a slot.
	ErrAlreadyMember = errors.New("grove: already a member")
	// ErrNotGroveOwner guards owner-only mutations.
	ErrNotGroveOwner = errors.New("grove: not the owner")
	// ErrInvalidGroveKind rejects unknown grove kinds at creation.
	ErrInvalidGroveKind = errors.New("grove: invalid kind")
)

// Grove lifecycle states derived from the completion latch.
const (
	GroveStateForming  = "forming"
	GroveStateComplete = "complete"
)

// CreateGroveInput describes a new grove. Kind defaults to personal.
type CreateGroveInput struct {
	OwnerID   string
	Kind      string
	IsPrivate bool
}

// UpdateGroveInput carries the owner-editable fields. Nil values are left
// untouched.
type UpdateGroveInput struct {
	IsPrivate     *bool
	MergeEligible *bool
}

// AdmissionResult reports the outcome of a successful admission.
type AdmissionResult struct {
	Grove       *models.Grove `json:"grove"`
	MemberCount int           `json:"member_count"`
	Completed   bool          `json:"completed"`
}

// GroveSummary is the public view of a grove. InviteCode is populated only
// when the requester owns the grove.
type GroveSummary struct {
	ID            string     `json:"id"`
	OwnerID       string     `json:"owner_id"`
	Kind          string     `json:"kind"`
	IsPrivate     bool       `json:"is_private"`
	IsComplete    bool       `json:"is_complete"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	MergeEligible bool       `json:"merge_eligible"`
	MemberCount   int        `json:"member_count"`
	InviteCode    string     `json:"invite_code,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// GroveOption customises GroveService behaviour.
type GroveOption func(*GroveService)

// WithGroveClock injects a custom clock primarily for testing.
func WithGroveClock(clock func() time.Time) GroveOption {
	return func(s *GroveService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithGroveHub attaches a realtime hub for grove lifecycle events.
func WithGroveHub(hub *realtime.Hub) GroveOption {
	return func(s *GroveService) {
		s.hub = hub
	}
}

// GroveService owns grove lifecycle and membership. Admit is the only way a
// slot is ever taken: it serialises per grove and runs capacity check,
// duplicate check, insert and the completion latch in one transaction.
type GroveService struct {
	db      *gorm.DB
	invites *InviteService
	hub     *realtime.Hub
	locks   *lockTable
	now     func() time.Time
}

// NewGroveService constructs a GroveService.
func NewGroveService(db *gorm.DB, invites *InviteService, opts ...GroveOption) (*GroveService, error) {
	if db == nil {
		return nil, errors.New("grove service: db is required")
	}
	if invites == nil {
		return nil, errors.New("grove service: invite service is required")
	}

	service := &GroveService{
		db:      db,
		invites: invites,
		locks:   newLockTable(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// Create opens a new grove with the owner occupying the first slot and a
// freshly issued invite code.
func (s *GroveService) Create(ctx context.Context, input CreateGroveInput) (*models.Grove, error) {
	ownerID := strings.TrimSpace(input.OwnerID)
	if ownerID == "" {
		return nil, errors.New("grove service: owner id is required")
	}

	kind := strings.TrimSpace(input.Kind)
	if kind == "" {
		kind = models.GroveKindPersonal
	}
	if kind != models.GroveKindPersonal && kind != models.GroveKindAuto {
		return nil, ErrInvalidGroveKind
	}

	// Two creators can draw the same code between the availability check and
	// the insert. The unique index on invite_code catches it, and one retry
	// with a fresh code resolves it; a second conflict means something is
	// wrong beyond bad luck.
	var grove models.Grove
	for attempt := 0; ; attempt++ {
		grove = models.Grove{}
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			code, err := s.invites.Issue(ctx, tx)
			if err != nil {
				return err
			}

			grove = models.Grove{
				OwnerID:       ownerID,
				InviteCode:    code,
				Kind:          kind,
				IsPrivate:     input.IsPrivate,
				MergeEligible: true,
			}
			if err := tx.Create(&grove).Error; err != nil {
				return fmt.Errorf("grove service: create grove: %w", err)
			}
			return nil
		})
		if err == nil {
			break
		}
		if attempt == 0 && isUniqueConstraintError(err) {
			continue
		}
		return nil, err
	}

	if s.hub != nil {
		s.hub.BroadcastToUser(realtime.StreamGroves, ownerID, realtime.Message{
			Event: realtime.EventGroveCreated,
			Data:  map[string]any{"grove_id": grove.ID, "kind": grove.Kind},
		})
	}

	return &grove, nil
}

// Admit places userID into the grove. It is the sole membership mutator:
// a per-grove lock plus a transaction make the capacity check and the insert
// one indivisible step, so two racing admissions for the last slot can never
// both succeed.
func (s *GroveService) Admit(ctx context.Context, groveID, userID string) (*AdmissionResult, error) {
	groveID = strings.TrimSpace(groveID)
	userID = strings.TrimSpace(userID)
	if groveID == "" || userID == "" {
		return nil, errors.New("grove service: grove id and user id are required")
	}

	release := s.locks.acquire("grove:" + groveID)
	defer release()

	var result AdmissionResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var grove models.Grove
		if err := tx.First(&grove, "id = ?", groveID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrGroveNotFound
			}
			return fmt.Errorf("grove service: load grove: %w", err)
		}

		if grove.IsComplete {
			return ErrGroveComplete
		}
		if grove.OwnerID == userID {
			return ErrAlreadyMember
		}

		var existing int64
		if err := tx.Model(&models.GroveMember{}).
			Where("grove_id = ? AND user_id = ?", groveID, userID).
			Count(&existing).Error; err != nil {
			return fmt.Errorf("grove service: check membership: %w", err)
		}
		if existing > 0 {
			return ErrAlreadyMember
		}

		var members int64
		if err := tx.Model(&models.GroveMember{}).
			Where("grove_id = ?", groveID).
			Count(&members).Error; err != nil {
			return fmt.Errorf("grove service: count members: %w", err)
		}
		// Owner holds a slot without a membership row.
		if int(members)+1 >= models.GroveCapacity {
			return ErrGroveAtCapacity
		}

		now := s.now().UTC()
		member := models.GroveMember{
			GroveID:  groveID,
			UserID:   userID,
			JoinedAt: now,
		}
		if err := tx.Create(&member).Error; err != nil {
			if isUniqueConstraintError(err) {
				return ErrAlreadyMember
			}
			return fmt.Errorf("grove service: insert member: %w", err)
		}

		newCount := int(members) + 2
		if newCount == models.GroveCapacity {
			res := tx.Model(&models.Grove{}).
				Where("id = ? AND is_complete = ?", groveID, false).
				Updates(map[string]any{"is_complete": true, "completed_at": now})
			if res.Error != nil {
				return fmt.Errorf("grove service: latch completion: %w", res.Error)
			}
			if res.RowsAffected == 1 {
				result.Completed = true
				grove.IsComplete = true
				grove.CompletedAt = &now
			}
		}

		result.Grove = &grove
		result.MemberCount = newCount
		return nil
	})
	if err != nil {
		metrics.AdmissionAttempts.WithLabelValues(admissionLabel(err)).Inc()
		return nil, err
	}

	metrics.AdmissionAttempts.WithLabelValues("accepted").Inc()
	if result.Completed {
		metrics.GroveCompletions.Inc()
	}

	s.broadcastAdmission(ctx, groveID, userID, &result)

	return &result, nil
}

func admissionLabel(err error) string {
	switch {
	case errors.Is(err, ErrGroveAtCapacity):
		return "at_capacity"
	case errors.Is(err, ErrAlreadyMember):
		return "already_member"
	case errors.Is(err, ErrGroveComplete):
		return "grove_complete"
	default:
		return "error"
	}
}

func (s *GroveService) broadcastAdmission(ctx context.Context, groveID, userID string, result *AdmissionResult) {
	if s.hub == nil {
		return
	}

	recipients, err := s.memberUserIDs(ctx, groveID)
	if err != nil {
		return
	}

	s.hub.BroadcastToUsers(realtime.StreamGroves, recipients, realtime.Message{
		Event: realtime.EventMemberAdmitted,
		Data: map[string]any{
			"grove_id":     groveID,
			"user_id":      userID,
			"member_count": result.MemberCount,
		},
	})

	if result.Completed {
		s.hub.BroadcastToUsers(realtime.StreamGroves, recipients, realtime.Message{
			Event: realtime.EventGroveCompleted,
			Data:  map[string]any{"grove_id": groveID},
		})
	}
}

// MemberCount reports the number of occupied slots, owner included.
func (s *GroveService) MemberCount(ctx context.Context, groveID string) (int, error) {
	var grove models.Grove
	if err := s.db.WithContext(ctx).Select("id").First(&grove, "id = ?", groveID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrGroveNotFound
		}
		return 0, fmt.Errorf("grove service: load grove: %w", err)
	}

	var members int64
	if err := s.db.WithContext(ctx).
		Model(&models.GroveMember{}).
		Where("grove_id = ?", groveID).
		Count(&members).Error; err != nil {
		return 0, fmt.Errorf("grove service: count members: %w", err)
	}
	return int(members) + 1, nil
}

// State reports forming or complete for the grove.
func (s *GroveService) State(ctx context.Context, groveID string) (string, error) {
	var grove models.Grove
	if err := s.db.WithContext(ctx).Select("id", "is_complete").First(&grove, "id = ?", groveID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrGroveNotFound
		}
		return "", fmt.Errorf("grove service: load grove: %w", err)
	}
	if grove.IsComplete {
		return GroveStateComplete, nil
	}
	return GroveStateForming, nil
}

// IsMember reports whether userID holds a slot in the grove, owner included.
func (s *GroveService) IsMember(ctx context.Context, groveID, userID string) (bool, error) {
	var grove models.Grove
	if err := s.db.WithContext(ctx).Select("id", "owner_id").First(&grove, "id = ?", groveID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, ErrGroveNotFound
		}
		return false, fmt.Errorf("grove service: load grove: %w", err)
	}
	if grove.OwnerID == userID {
		return true, nil
	}

	var count int64
	if err := s.db.WithContext(ctx).
		Model(&models.GroveMember{}).
		Where("grove_id = ? AND user_id = ?", groveID, userID).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("grove service: check membership: %w", err)
	}
	return count > 0, nil
}

// Get returns the grove summary. The invite code is included only for the
// owner so members cannot re-share a private grove.
func (s *GroveService) Get(ctx context.Context, groveID, requesterID string) (*GroveSummary, error) {
	var grove models.Grove
	if err := s.db.WithContext(ctx).First(&grove, "id = ?", groveID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGroveNotFound
		}
		return nil, fmt.Errorf("grove service: load grove: %w", err)
	}

	var members int64
	if err := s.db.WithContext(ctx).
		Model(&models.GroveMember{}).
		Where("grove_id = ?", groveID).
		Count(&members).Error; err != nil {
		return nil, fmt.Errorf("grove service: count members: %w", err)
	}

	summary := &GroveSummary{
		ID:            grove.ID,
		OwnerID:       grove.OwnerID,
		Kind:          grove.Kind,
		IsPrivate:     grove.IsPrivate,
		IsComplete:    grove.IsComplete,
		CompletedAt:   grove.CompletedAt,
		MergeEligible: grove.MergeEligible,
		MemberCount:   int(members) + 1,
		CreatedAt:     grove.CreatedAt,
	}
	if grove.OwnerID == requesterID {
		summary.InviteCode = grove.InviteCode
	}
	return summary, nil
}

// ListForUser returns all groves the user owns or belongs to, oldest first.
func (s *GroveService) ListForUser(ctx context.Context, userID string) ([]models.Grove, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, errors.New("grove service: user id is required")
	}

	var memberGroveIDs []string
	if err := s.db.WithContext(ctx).
		Model(&models.GroveMember{}).
		Where("user_id = ?", userID).
		Pluck("grove_id", &memberGroveIDs).Error; err != nil {
		return nil, fmt.Errorf("grove service: list memberships: %w", err)
	}

	query := s.db.WithContext(ctx).Order("created_at ASC")
	if len(memberGroveIDs) > 0 {
		query = query.Where("owner_id = ? OR id IN ?", userID, memberGroveIDs)
	} else {
		query = query.Where("owner_id = ?", userID)
	}

	var groves []models.Grove
	if err := query.Find(&groves).Error; err != nil {
		return nil, fmt.Errorf("grove service: list groves: %w", err)
	}
	return groves, nil
}

// Update applies owner-only changes to visibility and merge eligibility.
func (s *GroveService) Update(ctx context.Context, groveID, requesterID string, input UpdateGroveInput) (*models.Grove, error) {
	var grove models.Grove
	if err := s.db.WithContext(ctx).First(&grove, "id = ?", groveID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGroveNotFound
		}
		return nil, fmt.Errorf("grove service: load grove: %w", err)
	}
	if grove.OwnerID != requesterID {
		return nil, ErrNotGroveOwner
	}

	updates := make(map[string]any, 2)
	if input.IsPrivate != nil {
		updates["is_private"] = *input.IsPrivate
		grove.IsPrivate = *input.IsPrivate
	}
	if input.MergeEligible != nil {
		updates["merge_eligible"] = *input.MergeEligible
		grove.MergeEligible = *input.MergeEligible
	}
	if len(updates) == 0 {
		return &grove, nil
	}

	if err := s.db.WithContext(ctx).
		Model(&models.Grove{}).
		Where("id = ?", groveID).
		Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("grove service: update grove: %w", err)
	}
	return &grove, nil
}

// Delete removes the grove along with its memberships. Owner only.
func (s *GroveService) Delete(ctx context.Context, groveID, requesterID string) error {
	release := s.locks.acquire("grove:" + groveID)
	defer release()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var grove models.Grove
		if err := tx.First(&grove, "id = ?", groveID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrGroveNotFound
			}
			return fmt.Errorf("grove service: load grove: %w", err)
		}
		if grove.OwnerID != requesterID {
			return ErrNotGroveOwner
		}

		if err := tx.Where("grove_id = ?", groveID).Delete(&models.GroveMember{}).Error; err != nil {
			return fmt.Errorf("grove service: delete members: %w", err)
		}
		if err := tx.Delete(&models.Grove{}, "id = ?", groveID).Error; err != nil {
			return fmt.Errorf("grove service: delete grove: %w", err)
		}
		return nil
	})
}

func (s *GroveService) memberUserIDs(ctx context.Context, groveID string) ([]string, error) {
	var grove models.Grove
	if err := s.db.WithContext(ctx).Select("id", "owner_id").First(&grove, "id = ?", groveID).Error; err != nil {
		return nil, err
	}

	var ids []string
	if err := s.db.WithContext(ctx).
		Model(&models.GroveMember{}).
		Where("grove_id = ?", groveID).
		Pluck("user_id", &ids).Error; err != nil {
		return nil, err
	}
	return append(ids, grove.OwnerID), nil
}
