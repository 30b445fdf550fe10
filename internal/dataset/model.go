package dataset

import (
	"time"

	"github.com/lib/pq"
)

// Dataset is a named collection of versions owned by a user. It is never
// removed while versions still reference it.
type Dataset struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Name        string         `gorm:"size:255;unique;not null" json:"name"`
	Description string         `gorm:"type:text" json:"description"`
	Tags        pq.StringArray `gorm:"type:text[]" json:"tags"`
	CreatedBy   uint           `gorm:"not null;index" json:"created_by"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

type DatasetWithCounts struct {
	Dataset
	VersionCount int64 `json:"version_count"`
}

type CreateDatasetInput struct {
	Name        string   `json:"name" binding:"required"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

type UpdateDatasetInput struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Tags        []string `json:"tags"`
}

func (Dataset) TableName() string { return "dataset" }
