package api

import (
	"github.com/gin-gonic/gin"

	"github.com/coreleven/coreleven-server/internal/handlers"
)

func registerRoomRoutes(api *gin.RouterGroup, handler *handlers.RoomHandler) {
	api.POST("/groves/:id/room", handler.Start)

	rooms := api.Group("/rooms")
	{
		rooms.GET("", handler.ListActive)
		rooms.DELETE("/:id", handler.Stop)
		rooms.POST("/:id/token", handler.Token)

		rooms.GET("/:id/queue", handler.Queue)
		rooms.POST("/:id/queue", handler.RaiseHand)
		rooms.DELETE("/:id/queue", handler.LowerHand)
		rooms.PUT("/:id/queue/speaking", handler.SetSpeaking)
	}
}
