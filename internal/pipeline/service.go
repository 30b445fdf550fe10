package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
)

type PipelineService struct {
	DB *gorm.DB
}

type GetTemplateResult struct {
	NotModified bool
	Template    *PipelineTemplate
}

// GetByNameIfModified:
// - Finds active template by name (case-insensitive), latest updated_at.
// - If clientLastModified is present and template not newer => NotModified=true.
func (s *PipelineService) GetByNameIfModified(name string, clientLastModified *time.Time) (*GetTemplateResult, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("name is required")
	}

	var tmpl PipelineTemplate
	err := s.DB.
		Where("is_active = ?", true).
		Where("lower(name) = lower(?)", name).
		Order("updated_at desc").
		First(&tmpl).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, gorm.ErrRecordNotFound
		}
		return nil, err
	}

	// If client has a cached timestamp, only send the template when DB is newer
	if clientLastModified != nil {
		if !tmpl.UpdatedAt.After(*clientLastModified) {
			return &GetTemplateResult{NotModified: true, Template: &tmpl}, nil
		}
	}

	return &GetTemplateResult{NotModified: false, Template: &tmpl}, nil
}

// SaveTemplate validates the config against its type's key table and upserts
// it under the given name, bumping the stored version when the config changed.
func (s *PipelineService) SaveTemplate(name string, cfg map[string]interface{}) (*PipelineTemplate, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("name is required")
	}

	normalized, err := ValidateConfig(cfg)
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(normalized)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(raw)
	checksum := hex.EncodeToString(sum[:])
	pipelineType, _ := normalized["type"].(string)

	var tmpl PipelineTemplate
	err = s.DB.Where("lower(name) = lower(?)", name).First(&tmpl).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		tmpl = PipelineTemplate{
			Name:         name,
			PipelineType: pipelineType,
			Version:      1,
			Checksum:     checksum,
			Config:       raw,
			IsActive:     true,
		}
		if err := s.DB.Create(&tmpl).Error; err != nil {
			return nil, err
		}
		return &tmpl, nil
	case err != nil:
		return nil, err
	}

	if tmpl.Checksum == checksum && tmpl.IsActive {
		return &tmpl, nil
	}

	tmpl.PipelineType = pipelineType
	tmpl.Checksum = checksum
	tmpl.Config = raw
	tmpl.IsActive = true
	tmpl.Version++
	if err := s.DB.Save(&tmpl).Error; err != nil {
		return nil, err
	}
	return &tmpl, nil
}

// DeactivateTemplate soft-disables a template without losing its history.
func (s *PipelineService) DeactivateTemplate(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("name is required")
	}
	res := s.DB.Model(&PipelineTemplate{}).
		Where("lower(name) = lower(?)", name).
		Update("is_active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
