package version

import (
	"github.com/gin-gonic/gin"

	"dataforge-api/internal/logs"
	"dataforge-api/internal/middlewares"
)

func RegisterRoutes(r *gin.Engine, versionService *VersionService, logService *logs.LogService) {
	versionController := &VersionController{VersionService: versionService, LogService: logService}

	datasetGroup := r.Group("/api/datasets")
	datasetGroup.Use(middlewares.AuthMiddleware())
	{
		datasetGroup.POST("/:id/versions", versionController.CreateVersion)
		datasetGroup.GET("/:id/versions", versionController.GetVersionTree)
		datasetGroup.GET("/:id/preview", versionController.PreviewDataset)
	}

	versionGroup := r.Group("/api/versions")
	versionGroup.Use(middlewares.AuthMiddleware())
	{
		versionGroup.GET("/:id", versionController.GetVersionDetails)
		versionGroup.POST("/:id/clone", versionController.CloneVersion)
		versionGroup.POST("/:id/default", versionController.SetDefaultVersion)
		versionGroup.PATCH("/:id/flags", versionController.SetVersionFlags)
		versionGroup.GET("/:id/diff/:other", versionController.DiffVersions)
		versionGroup.GET("/:id/export", versionController.ExportVersionInfo)
		versionGroup.DELETE("/:id", versionController.DeleteVersion)
	}
}
