package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/coreleven/coreleven-server/internal/models"
	"github.com/coreleven/coreleven-server/pkg/metrics"
)

const (
	defaultTagBonus    = 0.1
	defaultMatchLimit  = 20
	maxCompatibility   = 2.0
	traitScoreMaxDelta = 99.0
)

// ScorePolicy computes the compatibility of two profiles. Scores are
// non-negative; higher is better. The engine averages pair scores across a
// grove's profiled members.
type ScorePolicy interface {
	Pair(a, b *models.Profile) float64
}

// traitDistancePolicy scores a pair as the Euclidean similarity of the five
// trait vectors plus a small bonus per shared interest tag, clamped so tag
// spam cannot dominate trait fit.
type traitDistancePolicy struct {
	tagBonus float64
}

func (p traitDistancePolicy) Pair(a, b *models.Profile) float64 {
	av, bv := a.TraitVector(), b.TraitVector()

	var sum float64
	for i := range av {
		d := float64(av[i] - bv[i])
		sum += d * d
	}
	maxDist := math.Sqrt(float64(len(av)) * traitScoreMaxDelta * traitScoreMaxDelta)
	similarity := 1 - math.Sqrt(sum)/maxDist

	shared := sharedTagCount(decodeTags(a.InterestTags), decodeTags(b.InterestTags))
	score := similarity + p.tagBonus*float64(shared)

	if score < 0 {
		return 0
	}
	if score > maxCompatibility {
		return maxCompatibility
	}
	return score
}

// GroveMatch is one ranked candidate grove.
type GroveMatch struct {
	GroveID     string    `json:"grove_id"`
	Score       float64   `json:"score"`
	MemberCount int       `json:"member_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// MatchOption customises MatchService behaviour.
type MatchOption func(*MatchService)

// WithScorePolicy swaps the compatibility scoring policy.
func WithScorePolicy(policy ScorePolicy) MatchOption {
	return func(s *MatchService) {
		if policy != nil {
			s.policy = policy
		}
	}
}

// WithTagBonus overrides the per-shared-tag bonus of the default policy.
func WithTagBonus(bonus float64) MatchOption {
	return func(s *MatchService) {
		if bonus >= 0 {
			s.policy = traitDistancePolicy{tagBonus: bonus}
		}
	}
}

// WithMatchLimit caps the number of ranked groves returned.
func WithMatchLimit(limit int) MatchOption {
	return func(s *MatchService) {
		if limit > 0 {
			s.limit = limit
		}
	}
}

// MatchService ranks open groves for a user by profile compatibility. Results
// are recomputed on every call; nothing is cached or persisted.
type MatchService struct {
	db     *gorm.DB
	policy ScorePolicy
	limit  int
}

// NewMatchService constructs a MatchService with the default trait-distance
// policy.
func NewMatchService(db *gorm.DB, opts ...MatchOption) (*MatchService, error) {
	if db == nil {
		return nil, errors.New("match service: db is required")
	}

	service := &MatchService{
		db:     db,
		policy: traitDistancePolicy{tagBonus: defaultTagBonus},
		limit:  defaultMatchLimit,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// Rank returns open-matching groves the user could join, best score first.
// Ties break on grove age (older first) then grove id, so identical inputs
// always produce the same ordering. A user without a profile gets an empty
// result.
func (s *MatchService) Rank(ctx context.Context, userID string) ([]GroveMatch, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, errors.New("match service: user id is required")
	}

	timer := time.Now()
	defer func() {
		metrics.MatchRankDuration.Observe(time.Since(timer).Seconds())
	}()

	var requester models.Profile
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&requester).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return []GroveMatch{}, nil
		}
		return nil, fmt.Errorf("match service: load profile: %w", err)
	}

	var groves []models.Grove
	if err := s.db.WithContext(ctx).
		Where("kind = ? AND is_complete = ?", models.GroveKindAuto, false).
		Find(&groves).Error; err != nil {
		return nil, fmt.Errorf("match service: list candidates: %w", err)
	}

	var memberOf []string
	if err := s.db.WithContext(ctx).
		Model(&models.GroveMember{}).
		Where("user_id = ?", userID).
		Pluck("grove_id", &memberOf).Error; err != nil {
		return nil, fmt.Errorf("match service: list memberships: %w", err)
	}
	excluded := make(map[string]struct{}, len(memberOf))
	for _, id := range memberOf {
		excluded[id] = struct{}{}
	}

	matches := make([]GroveMatch, 0, len(groves))
	for i := range groves {
		grove := &groves[i]
		if grove.OwnerID == userID {
			continue
		}
		if _, ok := excluded[grove.ID]; ok {
			continue
		}

		profiles, memberCount, err := s.groveProfiles(ctx, grove)
		if err != nil {
			return nil, err
		}
		if memberCount >= models.GroveCapacity {
			continue
		}

		matches = append(matches, GroveMatch{
			GroveID:     grove.ID,
			Score:       s.groveScore(&requester, profiles),
			MemberCount: memberCount,
			CreatedAt:   grove.CreatedAt,
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		if !matches[i].CreatedAt.Equal(matches[j].CreatedAt) {
			return matches[i].CreatedAt.Before(matches[j].CreatedAt)
		}
		return matches[i].GroveID < matches[j].GroveID
	})

	if len(matches) > s.limit {
		matches = matches[:s.limit]
	}
	return matches, nil
}

// groveProfiles loads the profiles of every slot holder (owner included) and
// reports the occupied slot count.
func (s *MatchService) groveProfiles(ctx context.Context, grove *models.Grove) ([]models.Profile, int, error) {
	var memberIDs []string
	if err := s.db.WithContext(ctx).
		Model(&models.GroveMember{}).
		Where("grove_id = ?", grove.ID).
		Pluck("user_id", &memberIDs).Error; err != nil {
		return nil, 0, fmt.Errorf("match service: list members: %w", err)
	}
	memberCount := len(memberIDs) + 1
	memberIDs = append(memberIDs, grove.OwnerID)

	var profiles []models.Profile
	if err := s.db.WithContext(ctx).
		Where("user_id IN ?", memberIDs).
		Find(&profiles).Error; err != nil {
		return nil, 0, fmt.Errorf("match service: load member profiles: %w", err)
	}
	return profiles, memberCount, nil
}

// groveScore averages pair scores over the members that have profiles.
// A grove with no profiled members scores zero rather than erroring.
func (s *MatchService) groveScore(requester *models.Profile, members []models.Profile) float64 {
	if len(members) == 0 {
		return 0
	}
	var total float64
	for i := range members {
		total += s.policy.Pair(requester, &members[i])
	}
	return total / float64(len(members))
}
