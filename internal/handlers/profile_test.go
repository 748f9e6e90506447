package handlers

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/coreleven/coreleven-server/internal/services"
)

func TestProfileHandlerUpsertAndGet(t *testing.T) {
	db := openHandlerTestDB(t)

	profiles, err := services.NewProfileService(db)
	require.NoError(t, err)
	handler := NewProfileHandler(profiles)
	user := createHandlerTestUser(t, db, "profiled@example.com")

	c, recorder := newAuthedRequest(t, user.ID, http.MethodPut, gin.H{
		"openness":          70,
		"conscientiousness": 60,
		"extraversion":      50,
		"agreeableness":     40,
		"neuroticism":       30,
		"enneagram_type":    7,
		"interest_tags":     []string{"Hiking", "chess"},
		"region":            "midwest",
	})
	handler.Upsert(c)
	require.Equal(t, http.StatusOK, recorder.Code)

	saved := decodeResponse[profileDTO](t, recorder)
	require.Equal(t, 70, saved.Openness)
	require.Equal(t, []string{"hiking", "chess"}, saved.InterestTags)

	c, recorder = newAuthedRequest(t, user.ID, http.MethodGet, nil)
	handler.Get(c)
	require.Equal(t, http.StatusOK, recorder.Code)

	loaded := decodeResponse[profileDTO](t, recorder)
	require.Equal(t, saved, loaded)
}

func TestProfileHandlerGetMissing(t *testing.T) {
	db := openHandlerTestDB(t)

	profiles, err := services.NewProfileService(db)
	require.NoError(t, err)
	handler := NewProfileHandler(profiles)
	user := createHandlerTestUser(t, db, "empty@example.com")

	c, recorder := newAuthedRequest(t, user.ID, http.MethodGet, nil)
	handler.Get(c)
	require.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestProfileHandlerUpsertRejectsOutOfRange(t *testing.T) {
	db := openHandlerTestDB(t)

	profiles, err := services.NewProfileService(db)
	require.NoError(t, err)
	handler := NewProfileHandler(profiles)
	user := createHandlerTestUser(t, db, "invalid@example.com")

	c, recorder := newAuthedRequest(t, user.ID, http.MethodPut, gin.H{
		"openness":          101,
		"conscientiousness": 60,
		"extraversion":      50,
		"agreeableness":     40,
		"neuroticism":       30,
	})
	handler.Upsert(c)
	require.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestMatchHandlerRank(t *testing.T) {
	db := openHandlerTestDB(t)

	invites, err := services.NewInviteService(db)
	require.NoError(t, err)
	groves, err := services.NewGroveService(db, invites)
	require.NoError(t, err)
	profiles, err := services.NewProfileService(db)
	require.NoError(t, err)
	matches, err := services.NewMatchService(db)
	require.NoError(t, err)

	handler := NewMatchHandler(matches)

	seeker := createHandlerTestUser(t, db, "seeker@example.com")

	// Without a profile the ranking is empty, not an error.
	c, recorder := newAuthedRequest(t, seeker.ID, http.MethodGet, nil)
	handler.Rank(c)
	require.Equal(t, http.StatusOK, recorder.Code)
	ranked := decodeResponse[[]services.GroveMatch](t, recorder)
	require.Empty(t, ranked)

	base := services.ProfileInput{Openness: 50, Conscientiousness: 50, Extraversion: 50, Agreeableness: 50, Neuroticism: 50}
	_, err = profiles.Upsert(testContext(), seeker.ID, base)
	require.NoError(t, err)

	host := createHandlerTestUser(t, db, "host@example.com")
	_, err = profiles.Upsert(testContext(), host.ID, base)
	require.NoError(t, err)
	grove, err := groves.Create(testContext(), services.CreateGroveInput{OwnerID: host.ID, Kind: "auto"})
	require.NoError(t, err)

	c, recorder = newAuthedRequest(t, seeker.ID, http.MethodGet, nil)
	handler.Rank(c)
	require.Equal(t, http.StatusOK, recorder.Code)
	ranked = decodeResponse[[]services.GroveMatch](t, recorder)
	require.Len(t, ranked, 1)
	require.Equal(t, grove.ID, ranked[0].GroveID)
	require.InDelta(t, 1.0, ranked[0].Score, 1e-9)
}
