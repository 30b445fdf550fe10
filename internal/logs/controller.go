package logs

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"dataforge-api/internal/util"
)

type LogController struct {
	LogService *LogService
}

// GetLogs is the admin query surface for the audit log. Paging in the
// response reflects the clamped values, not whatever the client sent.
func (lc *LogController) GetLogs(c *gin.Context) {
	var input LogFilterInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	input.normalize()

	rows, aggs, total, totalPages, err := lc.LogService.GetLogs(input)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, util.ErrBadDate) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":        rows,
		"page":        input.Page,
		"page_size":   input.PageSize,
		"total":       total,
		"total_pages": totalPages,
		"aggregates":  aggs,
	})
}
