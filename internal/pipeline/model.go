package pipeline

import (
	"time"

	"gorm.io/datatypes"
)

// PipelineTemplate is a named, versioned pipeline config stored server-side
// so clients can share a validated config instead of inlining it per version.
type PipelineTemplate struct {
	ID           int64          `json:"id" gorm:"primaryKey;autoIncrement"`
	Name         string         `json:"name" gorm:"uniqueIndex;type:text;not null"`
	PipelineType string         `json:"pipeline_type" gorm:"type:text;not null"`
	Version      int            `json:"version" gorm:"not null;default:1"`
	Checksum     string         `json:"checksum" gorm:"type:text;not null"`
	Config       datatypes.JSON `json:"config" gorm:"type:jsonb;not null"`
	IsActive     bool           `json:"is_active" gorm:"not null;default:true"`
	UpdatedAt    time.Time      `json:"updated_at" gorm:"not null;autoUpdateTime"`
}

func (PipelineTemplate) TableName() string { return "pipeline_template" }
