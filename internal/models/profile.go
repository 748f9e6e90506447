package models

import "gorm.io/datatypes"

// MaxInterestTags caps the number of tags a profile may carry.
const MaxInterestTags = 10

// Profile holds the onboarding questionnaire results used by the matcher.
// A user without a profile is a valid state (onboarding not finished); the
// matcher must treat it as "no candidates", not an error.
type Profile struct {
	BaseModel

	UserID string `gorm:"type:uuid;uniqueIndex;not null" json:"user_id"`

	// Big-five trait scores, each normalised to [1,100].
	Openness          int `gorm:"not null" json:"openness"`
	Conscientiousness int `gorm:"not null" json:"conscientiousness"`
	Extraversion      int `gorm:"not null" json:"extraversion"`
	Agreeableness     int `gorm:"not null" json:"agreeableness"`
	Neuroticism       int `gorm:"not null" json:"neuroticism"`

	// EnneagramType is optional, 1..9 when set.
	EnneagramType *int `json:"enneagram_type,omitempty"`

	// InterestTags stores up to MaxInterestTags strings as a JSON array.
	InterestTags datatypes.JSON `json:"interest_tags,omitempty"`

	Region string `gorm:"size:128" json:"region"`
}

// TraitVector returns the five trait scores in a fixed order for distance
// computations.
func (p *Profile) TraitVector() [5]int {
	return [5]int{p.Openness, p.Conscientiousness, p.Extraversion, p.Agreeableness, p.Neuroticism}
}
