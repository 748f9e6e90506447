package api

import (
	"github.com/gin-gonic/gin"

	"github.com/coreleven/coreleven-server/internal/handlers"
)

func registerProfileRoutes(api *gin.RouterGroup, profiles *handlers.ProfileHandler, matches *handlers.MatchHandler) {
	api.GET("/profile", profiles.Get)
	api.PUT("/profile", profiles.Upsert)

	// Matching reads the stored profile, so it lives next to it.
	api.GET("/matches", matches.Rank)
}
