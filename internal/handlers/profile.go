package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/coreleven/coreleven-server/internal/models"
	"github.com/coreleven/coreleven-server/internal/services"
	"github.com/coreleven/coreleven-server/pkg/response"
)

// ProfileHandler stores and returns the caller's questionnaire profile.
type ProfileHandler struct {
	profiles *services.ProfileService
}

// NewProfileHandler constructs a ProfileHandler.
func NewProfileHandler(profiles *services.ProfileService) *ProfileHandler {
	return &ProfileHandler{profiles: profiles}
}

type upsertProfileRequest struct {
	Openness          int      `json:"openness" validate:"required,min=1,max=100"`
	Conscientiousness int      `json:"conscientiousness" validate:"required,min=1,max=100"`
	Extraversion      int      `json:"extraversion" validate:"required,min=1,max=100"`
	Agreeableness     int      `json:"agreeableness" validate:"required,min=1,max=100"`
	Neuroticism       int      `json:"neuroticism" validate:"required,min=1,max=100"`
	EnneagramType     *int     `json:"enneagram_type" validate:"omitempty,min=1,max=9"`
	InterestTags      []string `json:"interest_tags" validate:"omitempty,max=10,dive,max=64"`
	Region            string   `json:"region" validate:"omitempty,max=128"`
}

type profileDTO struct {
	Openness          int      `json:"openness"`
	Conscientiousness int      `json:"conscientiousness"`
	Extraversion      int      `json:"extraversion"`
	Agreeableness     int      `json:"agreeableness"`
	Neuroticism       int      `json:"neuroticism"`
	EnneagramType     *int     `json:"enneagram_type,omitempty"`
	InterestTags      []string `json:"interest_tags,omitempty"`
	Region            string   `json:"region,omitempty"`
}

func toProfileDTO(profile *models.Profile, tags []string) profileDTO {
	return profileDTO{
		Openness:          profile.Openness,
		Conscientiousness: profile.Conscientiousness,
		Extraversion:      profile.Extraversion,
		Agreeableness:     profile.Agreeableness,
		Neuroticism:       profile.Neuroticism,
		EnneagramType:     profile.EnneagramType,
		InterestTags:      tags,
		Region:            profile.Region,
	}
}

// PUT /api/profile
func (h *ProfileHandler) Upsert(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req upsertProfileRequest
	if !bindAndValidate(c, &req) {
		return
	}

	profile, err := h.profiles.Upsert(requestContext(c), userID, services.ProfileInput{
		Openness:          req.Openness,
		Conscientiousness: req.Conscientiousness,
		Extraversion:      req.Extraversion,
		Agreeableness:     req.Agreeableness,
		Neuroticism:       req.Neuroticism,
		EnneagramType:     req.EnneagramType,
		InterestTags:      req.InterestTags,
		Region:            req.Region,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	response.Success(c, http.StatusOK, toProfileDTO(profile, services.DecodeInterestTags(profile.InterestTags)))
}

// GET /api/profile
func (h *ProfileHandler) Get(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	profile, err := h.profiles.Get(requestContext(c), userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	response.Success(c, http.StatusOK, toProfileDTO(profile, services.DecodeInterestTags(profile.InterestTags)))
}
