package transport

import (
	"github.com/ds124wfegd/sam3d-worker/internal/transport/middleware"
	"github.com/gin-gonic/gin"
)

func InitRoutes(jobHandler *JobHandler) *gin.Engine {
	router := gin.New()

	// Middleware
	router.Use(gin.Recovery())
	router.Use(middleware.CORS())
	router.Use(middleware.Logger())

	router.POST("/runsync", jobHandler.RunSync)
	router.POST("/run", jobHandler.Submit)
	router.GET("/status/:id", jobHandler.Status)

	// Health check
	router.GET("/health", jobHandler.Health)
	return router
}
