package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/coreleven/coreleven-server/internal/models"
)

func openServiceTestDB(t *testing.T) *gorm.DB {
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

func createTestUser(t *testing.T, db *gorm.DB, name string) *models.User {
	t.Helper()

	user := &models.User{
		Email:    fmt.Sprintf("%s@example.com", name),
		Password: "hashed",
		FullName: name,
		IsActive: true,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func newTestGroveService(t *testing.T, db *gorm.DB, opts ...GroveOption) *GroveService {
	t.Helper()

	invites, err := NewInviteService(db)
	require.NoError(t, err)

	groves, err := NewGroveService(db, invites, opts...)
	require.NoError(t, err)
	return groves
}

// fillGrove admits enough fresh users to latch completion.
func fillGrove(t *testing.T, db *gorm.DB, groves *GroveService, groveID string) {
	t.Helper()

	for i := 0; i < models.GroveCapacity-1; i++ {
		user := createTestUser(t, db, fmt.Sprintf("filler-%s-%d", groveID[:8], i))
		_, err := groves.Admit(context.Background(), groveID, user.ID)
		require.NoError(t, err)
	}
}
