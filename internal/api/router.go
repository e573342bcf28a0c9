package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"homepal-gateway/internal/config"
)

func NewRouter(h *Handler, hub *Hub, logger *logrus.Logger, cfg config.Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLoggingMiddleware(logger))

	api := r.Group(cfg.API.BasePath)
	{
		api.GET("/status", h.GetStatus)
		api.GET("/events", h.GetEvents)
		api.POST("/events", h.IngestEvent)
		api.POST("/events/:id/handle", h.HandleEvent)
		api.POST("/notifications/permission", h.RequestPermission)
	}

	r.GET("/ws", hub.HandleWS)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return r
}
