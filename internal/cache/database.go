package cache

import (
	"context"
	"errors"
	"strconv"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/coreleven/coreleven-server/internal/models"
)

const defaultWindow = time.Minute

// DatabaseStore implements Store on the primary SQL database. It exists so a
// multi-instance deployment can share rate-limit counters without adding an
// external cache to the stack.
type DatabaseStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewDatabaseStore constructs a database-backed Store.
func NewDatabaseStore(db *gorm.DB) *DatabaseStore {
	if db == nil {
		return nil
	}
	return &DatabaseStore{db: db, now: time.Now}
}

// WithClock overrides the store's time source.
func (s *DatabaseStore) WithClock(now func() time.Time) *DatabaseStore {
	if s != nil && now != nil {
		s.now = now
	}
	return s
}

func (s *DatabaseStore) ready() error {
	if s == nil || s.db == nil {
		return errors.New("cache: database store not initialised")
	}
	return nil
}

// IncrementWithTTL bumps the counter stored under key. The window is fixed:
// the expiry is set when the counter is created (or after the previous window
// lapsed) and stays put while increments arrive, so the counter always resets
// a bounded time after the first request. Returns the new count and the time
// left in the current window.
func (s *DatabaseStore) IncrementWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	if err := s.ready(); err != nil {
		return 0, 0, err
	}
	if window <= 0 {
		window = defaultWindow
	}

	now := s.now()

	var (
		count int64
		reset time.Time
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var entry models.CacheEntry
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Take(&entry, "key = ?", key).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			count = 1
			reset = now.Add(window)
			return tx.Create(&models.CacheEntry{
				Key:       key,
				Value:     []byte("1"),
				ExpiresAt: reset,
			}).Error
		case err != nil:
			return err
		}

		if entry.ExpiresAt.Before(now) {
			count = 1
			reset = now.Add(window)
		} else {
			previous, _ := strconv.ParseInt(string(entry.Value), 10, 64)
			count = previous + 1
			reset = entry.ExpiresAt
		}
		entry.Value = []byte(strconv.FormatInt(count, 10))
		entry.ExpiresAt = reset

		return tx.Save(&entry).Error
	})
	if err != nil {
		return 0, 0, err
	}

	return count, reset.Sub(now), nil
}

// Set upserts the value under key. A non-positive ttl stores it without expiry.
func (s *DatabaseStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.ready(); err != nil {
		return err
	}

	entry := models.CacheEntry{Key: key, Value: value}
	if ttl > 0 {
		entry.ExpiresAt = s.now().Add(ttl)
	}

	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "expires_at", "updated_at"}),
		}).Create(&entry).Error
}

// Get returns the value under key; expired entries read as absent and are
// removed opportunistically.
func (s *DatabaseStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := s.ready(); err != nil {
		return nil, false, err
	}

	var entry models.CacheEntry
	err := s.db.WithContext(ctx).Take(&entry, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	if !entry.ExpiresAt.IsZero() && s.now().After(entry.ExpiresAt) {
		_ = s.Delete(ctx, key)
		return nil, false, nil
	}

	return entry.Value, true, nil
}

// Delete removes the supplied keys.
func (s *DatabaseStore) Delete(ctx context.Context, keys ...string) error {
	if err := s.ready(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}

	return s.db.WithContext(ctx).Where("key IN ?", keys).Delete(&models.CacheEntry{}).Error
}

// PurgeExpired deletes every entry whose expiry has lapsed and reports how
// many rows went away. The maintenance sweeper runs this on a schedule.
func (s *DatabaseStore) PurgeExpired(ctx context.Context) (int64, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}

	result := s.db.WithContext(ctx).
		Where("expires_at > ? AND expires_at < ?", time.Time{}, s.now()).
		Delete(&models.CacheEntry{})
	return result.RowsAffected, result.Error
}
