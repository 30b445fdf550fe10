package version

import (
	"time"

	"gorm.io/datatypes"

	"dataforge-api/internal/util"
)

type VersionType string

const (
	TypeMajor VersionType = "major"
	TypeMinor VersionType = "minor"
	TypePatch VersionType = "patch"
)

// DatasetVersion is an immutable snapshot of a dataset's file set. After
// creation only the three status flags may change; files, commit hash and
// created_at never do.
type DatasetVersion struct {
	ID              string         `gorm:"primaryKey;size:36" json:"id"`
	DatasetID       uint           `gorm:"not null;index" json:"dataset_id"`
	Version         string         `gorm:"size:50;not null" json:"version"`
	VersionType     VersionType    `gorm:"size:10;not null;default:'minor'" json:"version_type"`
	CommitHash      string         `gorm:"size:64;not null;index" json:"commit_hash"`
	CommitMessage   string         `gorm:"size:500;not null" json:"commit_message"`
	Author          string         `gorm:"size:255;not null" json:"author"`
	ParentVersionID *string        `gorm:"size:36;index" json:"parent_version_id"`
	IsDefault       bool           `gorm:"not null;default:false;index" json:"is_default"`
	IsDraft         bool           `gorm:"not null;default:false" json:"is_draft"`
	IsDeprecated    bool           `gorm:"not null;default:false" json:"is_deprecated"`
	PipelineConfig  datatypes.JSON `gorm:"type:jsonb" json:"pipeline_config,omitempty"`
	Metadata        datatypes.JSON `gorm:"type:jsonb" json:"metadata,omitempty"`
	TotalSize       int64          `gorm:"not null;default:0" json:"total_size"`
	FileCount       int            `gorm:"not null;default:0" json:"file_count"`
	CreatedAt       time.Time      `gorm:"autoCreateTime" json:"created_at"`

	Files []VersionFile `gorm:"foreignKey:VersionID" json:"files,omitempty"`
}

// VersionFile is a tracked file inside one version. Records are version-scoped
// even when the object store deduplicates identical bytes.
type VersionFile struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	VersionID string    `gorm:"size:36;not null;index:idx_version_filename,unique" json:"version_id"`
	Filename  string    `gorm:"size:512;not null;index:idx_version_filename,unique" json:"filename"`
	FileType  string    `gorm:"size:20;not null" json:"file_type"`
	Size      int64     `gorm:"not null" json:"size"`
	Checksum  string    `gorm:"size:64;not null" json:"checksum"`
	ObjectRef string    `gorm:"size:1024;not null" json:"object_ref"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (DatasetVersion) TableName() string { return "dataset_version" }
func (VersionFile) TableName() string    { return "dataset_version_file" }

// VersionSummary is the list/tree row shape consumed by the frontend.
type VersionSummary struct {
	ID                 string      `json:"id"`
	DatasetID          uint        `json:"dataset_id"`
	Version            string      `json:"version"`
	VersionType        VersionType `json:"version_type"`
	CommitHash         string      `json:"commit_hash"`
	CommitMessage      string      `json:"commit_message"`
	Author             string      `json:"author"`
	ParentVersionID    *string     `json:"parent_version_id"`
	IsDefault          bool        `json:"is_default"`
	IsDraft            bool        `json:"is_draft"`
	IsDeprecated       bool        `json:"is_deprecated"`
	FileCount          int         `json:"file_count"`
	TotalSize          int64       `json:"total_size"`
	TotalSizeFormatted string      `json:"total_size_formatted"`
	CreatedAt          time.Time   `json:"created_at"`
}

func (v *DatasetVersion) Summary() VersionSummary {
	return VersionSummary{
		ID:                 v.ID,
		DatasetID:          v.DatasetID,
		Version:            v.Version,
		VersionType:        v.VersionType,
		CommitHash:         v.CommitHash,
		CommitMessage:      v.CommitMessage,
		Author:             v.Author,
		ParentVersionID:    v.ParentVersionID,
		IsDefault:          v.IsDefault,
		IsDraft:            v.IsDraft,
		IsDeprecated:       v.IsDeprecated,
		FileCount:          v.FileCount,
		TotalSize:          v.TotalSize,
		TotalSizeFormatted: util.FormatSize(v.TotalSize),
		CreatedAt:          v.CreatedAt,
	}
}

// Manifest returns the (filename, checksum) pairs identifying this version's
// content, in stored file order.
func (v *DatasetVersion) Manifest() []ManifestEntry {
	entries := make([]ManifestEntry, 0, len(v.Files))
	for _, f := range v.Files {
		entries = append(entries, ManifestEntry{Filename: f.Filename, Checksum: f.Checksum})
	}
	return entries
}
