package pipeline

import (
	"github.com/gin-gonic/gin"

	"dataforge-api/internal/middlewares"
)

func RegisterRoutes(r *gin.Engine, pipelineService *PipelineService) {
	pipelineController := &PipelineController{PipelineService: pipelineService}

	pipelineGroup := r.Group("/api/pipeline")
	pipelineGroup.Use(middlewares.AuthMiddleware())
	{
		pipelineGroup.GET("/types", pipelineController.GetTypes)
		pipelineGroup.POST("/validate", pipelineController.ValidateConfig)
		pipelineGroup.GET("/templates/:name", pipelineController.GetTemplate)
		pipelineGroup.PUT("/templates/:name", pipelineController.SaveTemplate)
		pipelineGroup.DELETE("/templates/:name", pipelineController.DeactivateTemplate)
	}
}
