package logs

import (
	"time"
)

type SystemLog struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Level     string    `gorm:"size:20;not null" json:"level"`
	Service   string    `gorm:"size:100;not null" json:"service"`
	UserID    *uint     `gorm:"index" json:"user_id,omitempty"`
	Author    string    `gorm:"size:255" json:"author"`
	Action    string    `gorm:"size:255;not null" json:"action"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	DatasetID *uint     `gorm:"index" json:"dataset_id,omitempty"`
	VersionID *string   `gorm:"size:36;index" json:"version_id,omitempty"`
	Metadata  *string   `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (SystemLog) TableName() string { return "logs" }

type LogFilterInput struct {
	UserID    *uint   `json:"user_id"`
	Level     *string `json:"level"`
	Service   *string `json:"service"`
	Action    *string `json:"action"`
	DatasetID *uint   `json:"dataset_id"`
	VersionID *string `json:"version_id"`

	StartDate *string `json:"start_date"` // "YYYY-MM-DD"
	EndDate   *string `json:"end_date"`   // "YYYY-MM-DD"

	Search   *string `json:"search"`
	Page     int     `json:"page"`
	PageSize int     `json:"page_size"`
}

// normalize clamps paging so responses always report the effective values.
func (in *LogFilterInput) normalize() {
	if in.Page <= 0 {
		in.Page = 1
	}
	if in.PageSize <= 0 || in.PageSize > 100 {
		in.PageSize = 20
	}
}

type AggItem struct {
	Label string `json:"label"`
	Count int64  `json:"count"`
}

type PersonAggItem struct {
	UserID *uint  `json:"user_id,omitempty"`
	Label  string `json:"label"`
	Count  int64  `json:"count"`
}

type LogAggregates struct {
	ByAction  []AggItem       `json:"by_action"`
	ByDataset []AggItem       `json:"by_dataset"`
	ByPerson  []PersonAggItem `json:"by_person"`
}
