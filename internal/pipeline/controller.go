package pipeline

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type PipelineController struct {
	PipelineService PipelineServiceAPI
}

// GET /api/pipeline/types
func (pc *PipelineController) GetTypes(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"types": Types()})
}

// POST /api/pipeline/validate
//
// Validates a config without storing it; the response carries the normalized
// config with defaults applied.
func (pc *PipelineController) ValidateConfig(c *gin.Context) {
	var cfg map[string]interface{}
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	normalized, err := ValidateConfig(cfg)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"valid": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true, "config": normalized})
}

// GET /api/pipeline/templates/:name?last_modified=...
//
// last_modified should be the timestamp of the template the client cached.
// Accepted formats:
// - RFC3339 / RFC3339Nano (recommended)
// - unix milliseconds (e.g., 1708451234567)
func (pc *PipelineController) GetTemplate(c *gin.Context) {
	name := strings.TrimSpace(c.Param("name"))
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	clientLM, err := parseOptionalTime(c.Query("last_modified"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid last_modified (use RFC3339 or unix ms)"})
		return
	}

	res, err := pc.PipelineService.GetByNameIfModified(name, clientLM)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "template not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	tmpl := res.Template

	c.Header("Last-Modified", tmpl.UpdatedAt.UTC().Format(time.RFC3339Nano))
	if tmpl.Checksum != "" {
		c.Header("ETag", tmpl.Checksum)
	}

	if res.NotModified {
		c.JSON(http.StatusOK, gin.H{
			"not_modified":  true,
			"name":          tmpl.Name,
			"pipeline_type": tmpl.PipelineType,
			"version":       tmpl.Version,
			"checksum":      tmpl.Checksum,
			"updated_at":    tmpl.UpdatedAt,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"not_modified":  false,
		"name":          tmpl.Name,
		"pipeline_type": tmpl.PipelineType,
		"version":       tmpl.Version,
		"checksum":      tmpl.Checksum,
		"updated_at":    tmpl.UpdatedAt,
		"config":        tmpl.Config, // jsonb returned as JSON
	})
}

// PUT /api/pipeline/templates/:name
func (pc *PipelineController) SaveTemplate(c *gin.Context) {
	name := strings.TrimSpace(c.Param("name"))
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	var cfg map[string]interface{}
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tmpl, err := pc.PipelineService.SaveTemplate(name, cfg)
	if err != nil {
		if errors.Is(err, ErrUnknownType) || errors.Is(err, ErrUnknownKey) ||
			errors.Is(err, ErrMissingKey) || errors.Is(err, ErrBadValue) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "template saved", "template": tmpl})
}

// DELETE /api/pipeline/templates/:name
func (pc *PipelineController) DeactivateTemplate(c *gin.Context) {
	name := strings.TrimSpace(c.Param("name"))
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	if err := pc.PipelineService.DeactivateTemplate(name); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "template not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "template deactivated"})
}

func parseOptionalTime(v string) (*time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}

	// Try RFC3339/RFC3339Nano
	if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
		return &t, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return &t, nil
	}

	// Try unix milliseconds
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		t := time.Unix(0, ms*int64(time.Millisecond))
		return &t, nil
	}

	return nil, strconv.ErrSyntax
}
