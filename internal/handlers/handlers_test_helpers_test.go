package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/coreleven/coreleven-server/internal/auth"
	"github.com/coreleven/coreleven-server/internal/middleware"
	"github.com/coreleven/coreleven-server/internal/models"
	"github.com/coreleven/coreleven-server/pkg/response"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func openHandlerTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Profile{},
		&models.Grove{},
		&models.GroveMember{},
		&models.AudioRoom{},
		&models.SpeakerQueueEntry{},
	))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	return db
}

func newHandlerTestJWT(t *testing.T) *auth.JWTService {
	t.Helper()

	svc, err := auth.NewJWTService(auth.JWTConfig{
		Secret:         "test-secret-test-secret-test-secret",
		Issuer:         "coreleven-test",
		AccessTokenTTL: time.Hour,
		RoomTokenTTL:   24 * time.Hour,
	})
	require.NoError(t, err)
	return svc
}

// newAuthedRequest builds a gin test context carrying the authenticated user
// id the way the auth middleware would.
func newAuthedRequest(t *testing.T, userID, method string, body any) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()

	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, "/", reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	if userID != "" {
		c.Set(middleware.CtxUserIDKey, userID)
	}
	return c, recorder
}

func decodeResponse[T any](t *testing.T, recorder *httptest.ResponseRecorder) T {
	t.Helper()

	var payload response.Response
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &payload))
	require.True(t, payload.Success)

	dataBytes, err := json.Marshal(payload.Data)
	require.NoError(t, err)

	var out T
	require.NoError(t, json.Unmarshal(dataBytes, &out))
	return out
}

func testContext() context.Context {
	return context.Background()
}

func createHandlerTestUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()

	user := &models.User{
		Email:    email,
		Password: "hashed",
		FullName: email,
		IsActive: true,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}
