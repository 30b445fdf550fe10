package dataset

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"dataforge-api/internal/logs"
)

type DatasetController struct {
	DatasetService DatasetServicePort
	LogService     LogServicePort
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicateName), errors.Is(err, ErrHasVersions):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func authContext(c *gin.Context) (uint, string, bool) {
	userIDVal, exists := c.Get("userID")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user ID not found"})
		return 0, "", false
	}
	userID, ok := userIDVal.(float64)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid user ID"})
		return 0, "", false
	}
	author := ""
	if raw, exists := c.Get("author"); exists {
		author, _ = raw.(string)
	}
	return uint(userID), author, true
}

func idParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid dataset id"})
		return 0, false
	}
	return uint(id), true
}

func (dc *DatasetController) CreateDataset(c *gin.Context) {
	userID, author, ok := authContext(c)
	if !ok {
		return
	}

	var input CreateDatasetInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	d, err := dc.DatasetService.CreateDataset(input, userID)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	if err := dc.LogService.Log(logs.SystemLog{
		Level:     "INFO",
		Service:   "dataset",
		UserID:    &userID,
		Author:    author,
		Action:    "CREATE_DATASET",
		Message:   fmt.Sprintf("Dataset %s created", d.Name),
		DatasetID: &d.ID,
	}, nil); err != nil {
		fmt.Printf("Failed to insert log: %v\n", err)
	}

	c.JSON(http.StatusCreated, gin.H{"message": "dataset created successfully", "dataset": d})
}

func (dc *DatasetController) ListDatasets(c *gin.Context) {
	datasets, err := dc.DatasetService.ListDatasets()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"datasets": datasets})
}

func (dc *DatasetController) GetDataset(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}

	d, err := dc.DatasetService.GetDataset(id)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"dataset": d})
}

func (dc *DatasetController) UpdateDataset(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}

	var input UpdateDatasetInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	d, err := dc.DatasetService.UpdateDataset(id, input)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "dataset updated successfully", "dataset": d})
}

func (dc *DatasetController) DeleteDataset(c *gin.Context) {
	userID, author, ok := authContext(c)
	if !ok {
		return
	}
	id, ok := idParam(c)
	if !ok {
		return
	}

	if err := dc.DatasetService.DeleteDataset(id); err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	if err := dc.LogService.Log(logs.SystemLog{
		Level:     "INFO",
		Service:   "dataset",
		UserID:    &userID,
		Author:    author,
		Action:    "DELETE_DATASET",
		Message:   fmt.Sprintf("Dataset %d deleted", id),
		DatasetID: &id,
	}, nil); err != nil {
		fmt.Printf("Failed to insert log: %v\n", err)
	}

	c.JSON(http.StatusOK, gin.H{"message": "dataset deleted successfully"})
}
