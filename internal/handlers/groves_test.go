package handlers

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/coreleven/coreleven-server/internal/models"
	"github.com/coreleven/coreleven-server/internal/services"
)

func newGroveHandlerFixture(t *testing.T, db *gorm.DB) (*GroveHandler, *services.GroveService, *services.InviteService) {
	t.Helper()

	invites, err := services.NewInviteService(db)
	require.NoError(t, err)
	groves, err := services.NewGroveService(db, invites)
	require.NoError(t, err)

	return NewGroveHandler(groves, invites), groves, invites
}

func TestGroveHandlerCreateAndGet(t *testing.T) {
	db := openHandlerTestDB(t)
	handler, _, _ := newGroveHandlerFixture(t, db)
	owner := createHandlerTestUser(t, db, "owner@example.com")

	c, recorder := newAuthedRequest(t, owner.ID, http.MethodPost, gin.H{"kind": "personal", "is_private": true})
	handler.Create(c)
	require.Equal(t, http.StatusCreated, recorder.Code)

	created := decodeResponse[groveDTO](t, recorder)
	require.Len(t, created.InviteCode, 8)
	require.True(t, created.IsPrivate)
	require.False(t, created.IsComplete)

	c, recorder = newAuthedRequest(t, owner.ID, http.MethodGet, nil)
	c.Params = gin.Params{gin.Param{Key: "id", Value: created.ID}}
	handler.Get(c)
	require.Equal(t, http.StatusOK, recorder.Code)

	summary := decodeResponse[services.GroveSummary](t, recorder)
	require.Equal(t, 1, summary.MemberCount)
	require.Equal(t, created.InviteCode, summary.InviteCode)
}

func TestGroveHandlerCreateRejectsBadKind(t *testing.T) {
	db := openHandlerTestDB(t)
	handler, _, _ := newGroveHandlerFixture(t, db)
	owner := createHandlerTestUser(t, db, "owner@example.com")

	c, recorder := newAuthedRequest(t, owner.ID, http.MethodPost, gin.H{"kind": "clan"})
	handler.Create(c)
	require.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestGroveHandlerJoinByInviteCode(t *testing.T) {
	db := openHandlerTestDB(t)
	handler, groves, _ := newGroveHandlerFixture(t, db)
	owner := createHandlerTestUser(t, db, "owner@example.com")
	joiner := createHandlerTestUser(t, db, "joiner@example.com")

	grove, err := groves.Create(testContext(), services.CreateGroveInput{OwnerID: owner.ID})
	require.NoError(t, err)

	c, recorder := newAuthedRequest(t, joiner.ID, http.MethodPost, gin.H{"invite_code": grove.InviteCode})
	handler.Join(c)
	require.Equal(t, http.StatusOK, recorder.Code)

	// A second join with the same code must not take another slot.
	c, recorder = newAuthedRequest(t, joiner.ID, http.MethodPost, gin.H{"invite_code": grove.InviteCode})
	handler.Join(c)
	require.Equal(t, http.StatusConflict, recorder.Code)

	count, err := groves.MemberCount(testContext(), grove.ID)
	require.NoError(t, err)
	require.Equal(t, 2, count)
}

func TestGroveHandlerJoinUnknownCode(t *testing.T) {
	db := openHandlerTestDB(t)
	handler, _, _ := newGroveHandlerFixture(t, db)
	joiner := createHandlerTestUser(t, db, "joiner@example.com")

	c, recorder := newAuthedRequest(t, joiner.ID, http.MethodPost, gin.H{"invite_code": "ZZZZZZZZ"})
	handler.Join(c)
	require.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestGroveHandlerJoinRejectsCompletedGrove(t *testing.T) {
	db := openHandlerTestDB(t)
	handler, groves, _ := newGroveHandlerFixture(t, db)
	owner := createHandlerTestUser(t, db, "owner@example.com")

	grove, err := groves.Create(testContext(), services.CreateGroveInput{OwnerID: owner.ID})
	require.NoError(t, err)
	for i := 0; i < models.GroveCapacity-1; i++ {
		member := createHandlerTestUser(t, db, fmt.Sprintf("member-%d@example.com", i))
		_, err := groves.Admit(testContext(), grove.ID, member.ID)
		require.NoError(t, err)
	}

	late := createHandlerTestUser(t, db, "late@example.com")
	c, recorder := newAuthedRequest(t, late.ID, http.MethodPost, gin.H{"invite_code": grove.InviteCode})
	handler.Join(c)

	// The resolver refuses codes of completed groves outright.
	require.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestGroveHandlerListHidesForeignInviteCodes(t *testing.T) {
	db := openHandlerTestDB(t)
	handler, groves, _ := newGroveHandlerFixture(t, db)
	owner := createHandlerTestUser(t, db, "owner@example.com")
	member := createHandlerTestUser(t, db, "member@example.com")

	grove, err := groves.Create(testContext(), services.CreateGroveInput{OwnerID: owner.ID})
	require.NoError(t, err)
	_, err = groves.Admit(testContext(), grove.ID, member.ID)
	require.NoError(t, err)

	c, recorder := newAuthedRequest(t, member.ID, http.MethodGet, nil)
	handler.List(c)
	require.Equal(t, http.StatusOK, recorder.Code)

	list := decodeResponse[[]groveDTO](t, recorder)
	require.Len(t, list, 1)
	require.Empty(t, list[0].InviteCode)
}

func TestInviteHandlerResolve(t *testing.T) {
	db := openHandlerTestDB(t)
	_, groves, invites := newGroveHandlerFixture(t, db)
	owner := createHandlerTestUser(t, db, "owner@example.com")

	grove, err := groves.Create(testContext(), services.CreateGroveInput{OwnerID: owner.ID})
	require.NoError(t, err)

	handler := NewInviteHandler(invites)

	c, recorder := newAuthedRequest(t, "", http.MethodGet, nil)
	c.Params = gin.Params{gin.Param{Key: "code", Value: grove.InviteCode}}
	handler.Resolve(c)
	require.Equal(t, http.StatusOK, recorder.Code)

	validation := decodeResponse[services.InviteValidation](t, recorder)
	require.Equal(t, grove.ID, validation.GroveID)
	require.Equal(t, 1, validation.FilledCount)
}
