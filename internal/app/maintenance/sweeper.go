package maintenance

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/coreleven/coreleven-server/internal/cache"
	"github.com/coreleven/coreleven-server/internal/services"
	"github.com/coreleven/coreleven-server/pkg/logger"
)

const (
	defaultRoomSweepSpec  = "@hourly"
	defaultRoomIdleAfter  = 6 * time.Hour
	defaultCachePurgeSpec = "@every 30m"
)

// Sweeper runs background maintenance: audio rooms that stayed active with an
// empty speaker queue past the idle window get closed so abandoned groves do
// not hold rooms open forever, and expired cache entries (rate-limit
// counters) are purged.
type Sweeper struct {
	rooms *services.RoomService
	store *cache.DatabaseStore
	cron  *cron.Cron
	log   *zap.Logger

	sweepSpec string
	purgeSpec string
	idleAfter time.Duration
}

// Option customises the Sweeper.
type Option func(*Sweeper)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(s *Sweeper) {
		if c != nil {
			s.cron = c
		}
	}
}

// WithRoomSweepSpec overrides the cron specification for the room sweep.
func WithRoomSweepSpec(spec string) Option {
	return func(s *Sweeper) {
		if spec != "" {
			s.sweepSpec = spec
		}
	}
}

// WithRoomIdleAfter adjusts how long a room may sit idle before it is closed.
func WithRoomIdleAfter(d time.Duration) Option {
	return func(s *Sweeper) {
		if d > 0 {
			s.idleAfter = d
		}
	}
}

// WithCacheStore enables expired cache entry purging.
func WithCacheStore(store *cache.DatabaseStore) Option {
	return func(s *Sweeper) {
		s.store = store
	}
}

// NewSweeper constructs a Sweeper with sensible defaults.
func NewSweeper(rooms *services.RoomService, opts ...Option) (*Sweeper, error) {
	if rooms == nil {
		return nil, errors.New("maintenance: room service is required")
	}

	sweeper := &Sweeper{
		rooms:     rooms,
		log:       logger.WithModule("maintenance"),
		sweepSpec: defaultRoomSweepSpec,
		purgeSpec: defaultCachePurgeSpec,
		idleAfter: defaultRoomIdleAfter,
	}
	for _, opt := range opts {
		opt(sweeper)
	}

	if sweeper.cron == nil {
		sweeper.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}
	return sweeper, nil
}

// Start registers the sweep job and launches the scheduler.
func (s *Sweeper) Start() error {
	if _, err := s.cron.AddFunc(s.sweepSpec, func() {
		ctx := context.Background()
		closed, err := s.rooms.SweepIdle(ctx, s.idleAfter)
		if err != nil {
			s.log.Warn("room sweep failed", zap.Error(err))
			return
		}
		if closed > 0 {
			s.log.Info("closed idle rooms", zap.Int("count", closed))
		}
	}); err != nil {
		return err
	}

	if s.store != nil {
		if _, err := s.cron.AddFunc(s.purgeSpec, func() {
			purged, err := s.store.PurgeExpired(context.Background())
			if err != nil {
				s.log.Warn("cache purge failed", zap.Error(err))
				return
			}
			if purged > 0 {
				s.log.Debug("purged expired cache entries", zap.Int64("count", purged))
			}
		}); err != nil {
			return err
		}
	}

	s.cron.Start()
	return nil
}

// Stop halts the scheduler, waiting for any running job to complete.
func (s *Sweeper) Stop() context.Context {
	if s.cron == nil {
		return context.Background()
	}
	return s.cron.Stop()
}

// RunOnce executes the sweep immediately. Used by tests and during shutdown.
func (s *Sweeper) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error
	if _, err := s.rooms.SweepIdle(ctx, s.idleAfter); err != nil {
		errs = multierr.Append(errs, err)
	}
	if s.store != nil {
		if _, err := s.store.PurgeExpired(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}
