package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bothelp.app/voiceover/internal/http/handler"
)

func SetupRoutes(router *gin.Engine, webhookHandler *handler.WebhookHandler) {
	router.HandleMethodNotAllowed = true
	router.NoMethod(webhookHandler.MethodNotAllowed)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// path the automation platform was first configured with
	router.POST("/webhook", webhookHandler.Handle)

	v1 := router.Group("/api/v1")
	{
		WebhookRouter(v1.Group("/webhook"), webhookHandler)
	}
}

func WebhookRouter(router *gin.RouterGroup, handler *handler.WebhookHandler) {
	router.POST("", handler.Handle)
	router.GET("/schema", handler.Schema)
}
