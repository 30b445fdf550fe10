package logs

import (
	"github.com/gin-gonic/gin"

	"dataforge-api/internal/middlewares"
)

func RegisterRoutes(r *gin.Engine, logService *LogService) {
	logController := &LogController{LogService: logService}

	logGroup := r.Group("/api/logs")
	logGroup.Use(middlewares.AuthMiddleware())
	{
		logGroup.POST("/query", logController.GetLogs)
	}
}
