package api

import (
	"github.com/gin-gonic/gin"

	"github.com/coreleven/coreleven-server/internal/handlers"
)

func registerGroveRoutes(api *gin.RouterGroup, handler *handlers.GroveHandler) {
	groves := api.Group("/groves")
	{
		groves.POST("", handler.Create)
		groves.GET("", handler.List)
		groves.POST("/join", handler.Join)
		groves.GET("/:id", handler.Get)
		groves.PATCH("/:id", handler.Update)
		groves.DELETE("/:id", handler.Delete)
	}
}
