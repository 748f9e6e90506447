package database

import (
	"gorm.io/gorm"

	"github.com/coreleven/coreleven-server/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Profile{},
		&models.Grove{},
		&models.GroveMember{},
		&models.AudioRoom{},
		&models.SpeakerQueueEntry{},
		&models.CacheEntry{},
	)
}
