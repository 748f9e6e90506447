package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/coreleven/coreleven-server/internal/models"
	"github.com/coreleven/coreleven-server/pkg/crypto"
	"github.com/coreleven/coreleven-server/pkg/metrics"
)

const (
	inviteCodeLength   = 8
	inviteIssueRetries = 5
)

var (
	// ErrInviteInvalid covers unknown codes and codes whose grove already
	// completed. Callers get no distinction between the two.
	ErrInviteInvalid = errors.New("invite: invalid code")
	// ErrInviteSpaceExhausted signals repeated collisions while issuing a
	// code. With an 8-character alphabet of 32 symbols this indicates a
	// deployment problem, not bad luck.
	ErrInviteSpaceExhausted = errors.New("invite: code space exhausted")
)

// InviteValidation is the public view returned for a resolvable code. It
// deliberately omits the member list; the caller only learns how full the
// grove is and who owns it.
type InviteValidation struct {
	GroveID     string `json:"grove_id"`
	OwnerName   string `json:"owner_name"`
	FilledCount int    `json:"filled_count"`
}

// InviteService issues and resolves the 8-character grove invite codes.
type InviteService struct {
	db *gorm.DB
}

// NewInviteService constructs an InviteService.
func NewInviteService(db *gorm.DB) (*InviteService, error) {
	if db == nil {
		return nil, errors.New("invite service: db is required")
	}
	return &InviteService{db: db}, nil
}

// Issue generates a code that does not collide with any existing grove.
// When tx is non-nil the collision check runs inside that transaction so a
// grove insert and its code stay atomic. The unique index on groves backs
// this up against concurrent issuers.
func (s *InviteService) Issue(ctx context.Context, tx *gorm.DB) (string, error) {
	db := s.db
	if tx != nil {
		db = tx
	}

	for attempt := 0; attempt < inviteIssueRetries; attempt++ {
		code, err := crypto.GenerateInviteCode(inviteCodeLength)
		if err != nil {
			return "", fmt.Errorf("invite service: generate code: %w", err)
		}

		var count int64
		if err := db.WithContext(ctx).
			Model(&models.Grove{}).
			Where("invite_code = ?", code).
			Count(&count).Error; err != nil {
			return "", fmt.Errorf("invite service: check collision: %w", err)
		}
		if count == 0 {
			return code, nil
		}
	}

	return "", ErrInviteSpaceExhausted
}

// Resolve validates a code and reports the target grove. Codes are
// case-insensitive; codes of completed groves resolve to ErrInviteInvalid.
func (s *InviteService) Resolve(ctx context.Context, code string) (*InviteValidation, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		metrics.InviteResolutions.WithLabelValues("invalid").Inc()
		return nil, ErrInviteInvalid
	}

	var grove models.Grove
	err := s.db.WithContext(ctx).
		Preload("Owner").
		Where("invite_code = ?", code).
		First(&grove).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			metrics.InviteResolutions.WithLabelValues("invalid").Inc()
			return nil, ErrInviteInvalid
		}
		return nil, fmt.Errorf("invite service: lookup code: %w", err)
	}

	if grove.IsComplete {
		metrics.InviteResolutions.WithLabelValues("invalid").Inc()
		return nil, ErrInviteInvalid
	}

	var members int64
	if err := s.db.WithContext(ctx).
		Model(&models.GroveMember{}).
		Where("grove_id = ?", grove.ID).
		Count(&members).Error; err != nil {
		return nil, fmt.Errorf("invite service: count members: %w", err)
	}

	ownerName := ""
	if grove.Owner != nil {
		ownerName = grove.Owner.FullName
	}

	metrics.InviteResolutions.WithLabelValues("valid").Inc()

	return &InviteValidation{
		GroveID:     grove.ID,
		OwnerName:   ownerName,
		FilledCount: int(members) + 1,
	}, nil
}
