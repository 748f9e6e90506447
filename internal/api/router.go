package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/coreleven/coreleven-server/internal/app"
	iauth "github.com/coreleven/coreleven-server/internal/auth"
	"github.com/coreleven/coreleven-server/internal/handlers"
	"github.com/coreleven/coreleven-server/internal/middleware"
	"github.com/coreleven/coreleven-server/internal/realtime"
	"github.com/coreleven/coreleven-server/internal/services"
)

// NewRouter builds the Gin engine, wires middleware and registers all routes.
// A nil rateStore falls back to the in-memory implementation.
func NewRouter(db *gorm.DB, jwt *iauth.JWTService, cfg *app.Config, hub *realtime.Hub, rateStore middleware.RateStore) (*gin.Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if jwt == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}
	if hub == nil {
		hub = realtime.NewHub()
	}

	inviteService, err := services.NewInviteService(db)
	if err != nil {
		return nil, err
	}
	groveService, err := services.NewGroveService(db, inviteService, services.WithGroveHub(hub))
	if err != nil {
		return nil, err
	}
	queueService, err := services.NewQueueService(db, services.WithQueueHub(hub))
	if err != nil {
		return nil, err
	}
	roomService, err := services.NewRoomService(db, groveService, services.WithRoomHub(hub))
	if err != nil {
		return nil, err
	}

	matchOpts := []services.MatchOption{}
	if cfg.Matching.TagBonus > 0 {
		matchOpts = append(matchOpts, services.WithTagBonus(cfg.Matching.TagBonus))
	}
	if cfg.Matching.MaxResults > 0 {
		matchOpts = append(matchOpts, services.WithMatchLimit(cfg.Matching.MaxResults))
	}
	matchService, err := services.NewMatchService(db, matchOpts...)
	if err != nil {
		return nil, err
	}

	profileService, err := services.NewProfileService(db)
	if err != nil {
		return nil, err
	}
	userService, err := services.NewUserService(db)
	if err != nil {
		return nil, err
	}

	r := gin.New()

	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS())
	if cfg.Server.RateLimit.Requests > 0 && cfg.Server.RateLimit.Window > 0 {
		if rateStore == nil {
			rateStore = middleware.NewMemoryRateStore()
		}
		r.Use(middleware.RateLimitWithStore(cfg.Server.RateLimit.Requests, cfg.Server.RateLimit.Window, rateStore))
	}

	r.NoRoute(middleware.NotFoundHandler)

	registerHealthRoutes(r, db, cfg)
	registerMonitoringRoutes(r, cfg)

	authHandler := handlers.NewAuthHandler(userService, jwt)
	groveHandler := handlers.NewGroveHandler(groveService, inviteService)
	inviteHandler := handlers.NewInviteHandler(inviteService)
	profileHandler := handlers.NewProfileHandler(profileService)
	matchHandler := handlers.NewMatchHandler(matchService)
	roomHandler := handlers.NewRoomHandler(roomService, queueService, jwt)
	realtimeHandler := handlers.NewRealtimeHandler(hub, jwt)

	// Public routes: registration, login and invite resolution happen before
	// the caller has a token.
	public := r.Group("/api")
	{
		public.POST("/auth/register", authHandler.Register)
		public.POST("/auth/login", authHandler.Login)
		public.GET("/invites/:code", inviteHandler.Resolve)
	}

	api := r.Group("/api")
	api.Use(middleware.Auth(jwt))

	api.GET("/auth/me", authHandler.Me)

	registerGroveRoutes(api, groveHandler)
	registerProfileRoutes(api, profileHandler, matchHandler)
	registerRoomRoutes(api, roomHandler)

	api.GET("/ws", realtimeHandler.Stream)

	return r, nil
}
