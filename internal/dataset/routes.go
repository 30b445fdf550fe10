package dataset

import (
	"github.com/gin-gonic/gin"

	"dataforge-api/internal/logs"
	"dataforge-api/internal/middlewares"
)

func RegisterRoutes(r *gin.Engine, datasetService *DatasetService, logService *logs.LogService) {
	datasetController := &DatasetController{DatasetService: datasetService, LogService: logService}

	datasetGroup := r.Group("/api/datasets")
	datasetGroup.Use(middlewares.AuthMiddleware())
	{
		datasetGroup.GET("", datasetController.ListDatasets)
		datasetGroup.POST("", datasetController.CreateDataset)
		datasetGroup.GET("/:id", datasetController.GetDataset)
		datasetGroup.PUT("/:id", datasetController.UpdateDataset)
		datasetGroup.DELETE("/:id", datasetController.DeleteDataset)
	}
}
