package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/coreleven/coreleven-server/internal/models"
)

var (
	// ErrProfileNotFound indicates the user has not finished onboarding.
	ErrProfileNotFound = errors.New("profile: not found")
	// ErrInvalidTraitScore rejects trait values outside [1,100].
	ErrInvalidTraitScore = errors.New("profile: trait scores must be between 1 and 100")
	// ErrInvalidEnneagram rejects enneagram types outside [1,9].
	ErrInvalidEnneagram = errors.New("profile: enneagram type must be between 1 and 9")
	// ErrTooManyTags rejects profiles carrying more than the tag cap.
	ErrTooManyTags = errors.New("profile: too many interest tags")
)

// ProfileInput carries the full questionnaire result. Upsert replaces the
// stored profile wholesale; there is no partial update.
type ProfileInput struct {
	Openness          int
	Conscientiousness int
	Extraversion      int
	Agreeableness     int
	Neuroticism       int
	EnneagramType     *int
	InterestTags      []string
	Region            string
}

// ProfileService stores the questionnaire vectors the matcher reads.
type ProfileService struct {
	db *gorm.DB
}

// NewProfileService constructs a ProfileService.
func NewProfileService(db *gorm.DB) (*ProfileService, error) {
	if db == nil {
		return nil, errors.New("profile service: db is required")
	}
	return &ProfileService{db: db}, nil
}

// Upsert validates and stores the user's profile, replacing any previous one.
func (s *ProfileService) Upsert(ctx context.Context, userID string, input ProfileInput) (*models.Profile, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, errors.New("profile service: user id is required")
	}

	for _, score := range []int{
		input.Openness, input.Conscientiousness, input.Extraversion,
		input.Agreeableness, input.Neuroticism,
	} {
		if score < 1 || score > 100 {
			return nil, ErrInvalidTraitScore
		}
	}
	if input.EnneagramType != nil && (*input.EnneagramType < 1 || *input.EnneagramType > 9) {
		return nil, ErrInvalidEnneagram
	}

	tags := normaliseTags(input.InterestTags)
	if len(tags) > models.MaxInterestTags {
		return nil, ErrTooManyTags
	}
	encoded, err := encodeTags(tags)
	if err != nil {
		return nil, fmt.Errorf("profile service: encode tags: %w", err)
	}

	profile := models.Profile{
		UserID:            userID,
		Openness:          input.Openness,
		Conscientiousness: input.Conscientiousness,
		Extraversion:      input.Extraversion,
		Agreeableness:     input.Agreeableness,
		Neuroticism:       input.Neuroticism,
		EnneagramType:     input.EnneagramType,
		InterestTags:      encoded,
		Region:            strings.TrimSpace(input.Region),
	}

	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"openness", "conscientiousness", "extraversion",
				"agreeableness", "neuroticism", "enneagram_type",
				"interest_tags", "region", "updated_at",
			}),
		}).
		Create(&profile).Error
	if err != nil {
		return nil, fmt.Errorf("profile service: upsert profile: %w", err)
	}
	return &profile, nil
}

// Get loads the user's profile.
func (s *ProfileService) Get(ctx context.Context, userID string) (*models.Profile, error) {
	var profile models.Profile
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("profile service: load profile: %w", err)
	}
	return &profile, nil
}
