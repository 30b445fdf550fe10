package version

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"dataforge-api/internal/logs"
)

type VersionController struct {
	VersionService VersionServicePort
	LogService     LogServicePort
}

// statusForError maps the engine's error taxonomy to HTTP codes: bad input is
// 400, missing records 404, object store trouble 502, everything that should
// never happen 500.
func statusForError(err error) int {
	switch {
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrEmptyVersion),
		errors.Is(err, ErrInvalidManifestEntry),
		errors.Is(err, ErrCrossDatasetParent),
		errors.Is(err, ErrUnsupportedFormat):
		return http.StatusBadRequest
	case errors.Is(err, ErrDatasetNotFound),
		errors.Is(err, ErrVersionNotFound),
		errors.Is(err, ErrParentNotFound):
		return http.StatusNotFound
	case IsStorageFailure(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	c.JSON(statusForError(err), gin.H{"error": err.Error()})
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

func readFormFiles(headers []*multipart.FileHeader) ([]FileInput, error) {
	files := make([]FileInput, 0, len(headers))
	for _, h := range headers {
		f, err := h.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", h.Filename, err)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", h.Filename, err)
		}
		files = append(files, FileInput{Filename: h.Filename, Content: data})
	}
	return files, nil
}

func parseJSONField(c *gin.Context, field string) (map[string]interface{}, error) {
	raw := strings.TrimSpace(c.PostForm(field))
	if raw == "" {
		return nil, nil
	}
	var out map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", field, err)
	}
	return out, nil
}

func datasetIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid dataset id"})
		return 0, false
	}
	return uint(id), true
}

// CreateVersion handles the multipart create form: one or more files plus the
// version metadata fields.
func (vc *VersionController) CreateVersion(c *gin.Context) {
	userID, author, ok := authContext(c)
	if !ok {
		return
	}
	datasetID, ok := datasetIDParam(c)
	if !ok {
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read form"})
		return
	}
	files, err := readFormFiles(form.File["files"])
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pipelineCfg, err := parseJSONField(c, "pipeline_config")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	metadata, err := parseJSONField(c, "metadata")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	input := CreateVersionInput{
		Version:        c.PostForm("version"),
		VersionType:    c.PostForm("version_type"),
		CommitMessage:  c.PostForm("commit_message"),
		Author:         author,
		PipelineConfig: pipelineCfg,
		Metadata:       metadata,
	}
	if override := strings.TrimSpace(c.PostForm("author")); override != "" {
		input.Author = override
	}

	v, err := vc.VersionService.CreateVersion(c.Request.Context(), datasetID, files, input)
	if err != nil {
		abortWithError(c, err)
		return
	}

	if err := vc.LogService.Log(logs.SystemLog{
		Level:     "INFO",
		Service:   "version",
		UserID:    &userID,
		Author:    input.Author,
		Action:    "CREATE_VERSION",
		Message:   fmt.Sprintf("Version %s created with %d files", v.Version, v.FileCount),
		DatasetID: &v.DatasetID,
		VersionID: &v.ID,
	}, nil); err != nil {
		fmt.Printf("Failed to insert log: %v\n", err)
	}

	c.JSON(http.StatusCreated, gin.H{"message": "version created successfully", "version": v.Summary()})
}

// CloneVersion derives a child version; files and removes are both optional.
func (vc *VersionController) CloneVersion(c *gin.Context) {
	userID, author, ok := authContext(c)
	if !ok {
		return
	}
	sourceID := c.Param("id")

	var upserts []FileInput
	var removes []string
	if form, err := c.MultipartForm(); err == nil {
		upserts, err = readFormFiles(form.File["files"])
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		removes = form.Value["removes"]
	}

	pipelineCfg, err := parseJSONField(c, "pipeline_config")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	metadata, err := parseJSONField(c, "metadata")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	input := CloneVersionInput{
		CreateVersionInput: CreateVersionInput{
			Version:        c.PostForm("version"),
			VersionType:    c.PostForm("version_type"),
			CommitMessage:  c.PostForm("commit_message"),
			Author:         author,
			PipelineConfig: pipelineCfg,
			Metadata:       metadata,
		},
		Removes: removes,
	}
	if override := strings.TrimSpace(c.PostForm("author")); override != "" {
		input.Author = override
	}

	v, err := vc.VersionService.CloneVersion(c.Request.Context(), sourceID, upserts, input)
	if err != nil {
		abortWithError(c, err)
		return
	}

	if err := vc.LogService.Log(logs.SystemLog{
		Level:     "INFO",
		Service:   "version",
		UserID:    &userID,
		Author:    input.Author,
		Action:    "CLONE_VERSION",
		Message:   fmt.Sprintf("Version %s cloned from %s", v.Version, sourceID),
		DatasetID: &v.DatasetID,
		VersionID: &v.ID,
	}, nil); err != nil {
		fmt.Printf("Failed to insert log: %v\n", err)
	}

	c.JSON(http.StatusCreated, gin.H{"message": "version cloned successfully", "version": v.Summary()})
}

func (vc *VersionController) GetVersionTree(c *gin.Context) {
	datasetID, ok := datasetIDParam(c)
	if !ok {
		return
	}

	tree, err := vc.VersionService.GetVersionTree(datasetID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"versions": tree})
}

func (vc *VersionController) GetVersionDetails(c *gin.Context) {
	details, err := vc.VersionService.GetVersionDetails(c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"version": details})
}

func (vc *VersionController) SetDefaultVersion(c *gin.Context) {
	userID, author, ok := authContext(c)
	if !ok {
		return
	}

	v, err := vc.VersionService.SetDefaultVersion(c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}

	if err := vc.LogService.Log(logs.SystemLog{
		Level:     "INFO",
		Service:   "version",
		UserID:    &userID,
		Author:    author,
		Action:    "SET_DEFAULT",
		Message:   fmt.Sprintf("Version %s set as default", v.Version),
		DatasetID: &v.DatasetID,
		VersionID: &v.ID,
	}, nil); err != nil {
		fmt.Printf("Failed to insert log: %v\n", err)
	}

	c.JSON(http.StatusOK, gin.H{"message": "default version updated", "version": v.Summary()})
}

type setFlagsInput struct {
	IsDraft      *bool `json:"is_draft"`
	IsDeprecated *bool `json:"is_deprecated"`
}

func (vc *VersionController) SetVersionFlags(c *gin.Context) {
	var input setFlagsInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	v, err := vc.VersionService.SetVersionFlags(c.Param("id"), input.IsDraft, input.IsDeprecated)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "version flags updated", "version": v.Summary()})
}

func (vc *VersionController) DiffVersions(c *gin.Context) {
	result, err := vc.VersionService.DiffVersions(c.Param("id"), c.Param("other"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (vc *VersionController) PreviewDataset(c *gin.Context) {
	datasetID, ok := datasetIDParam(c)
	if !ok {
		return
	}

	maxItems := 10
	if raw := c.Query("max_items"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			maxItems = v
		}
	}

	result, err := vc.VersionService.PreviewVersion(c.Request.Context(), datasetID, c.Query("version_id"), maxItems)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (vc *VersionController) ExportVersionInfo(c *gin.Context) {
	format := c.DefaultQuery("format", FormatJSON)

	data, contentType, filename, err := vc.VersionService.ExportVersionInfo(c.Param("id"), format)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, data)
}

func (vc *VersionController) DeleteVersion(c *gin.Context) {
	userID, author, ok := authContext(c)
	if !ok {
		return
	}
	versionID := c.Param("id")

	if err := vc.VersionService.DeleteVersion(c.Request.Context(), versionID); err != nil {
		abortWithError(c, err)
		return
	}

	if err := vc.LogService.Log(logs.SystemLog{
		Level:     "INFO",
		Service:   "version",
		UserID:    &userID,
		Author:    author,
		Action:    "DELETE_VERSION",
		Message:   fmt.Sprintf("Version %s deleted", versionID),
		VersionID: &versionID,
	}, nil); err != nil {
		fmt.Printf("Failed to insert log: %v\n", err)
	}

	c.JSON(http.StatusOK, gin.H{"message": "version deleted successfully"})
}
