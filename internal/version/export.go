package version

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Export formats. CSV flattens to one row per file; json and yaml carry the
// full record.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
	FormatYAML = "yaml"
)

type exportFile struct {
	Filename string `json:"filename" yaml:"filename"`
	FileType string `json:"file_type" yaml:"file_type"`
	Size     int64  `json:"size" yaml:"size"`
	Checksum string `json:"checksum" yaml:"checksum"`
}

type exportPayload struct {
	ID                 string       `json:"id" yaml:"id"`
	DatasetID          uint         `json:"dataset_id" yaml:"dataset_id"`
	Version            string       `json:"version" yaml:"version"`
	VersionType        string       `json:"version_type" yaml:"version_type"`
	CommitHash         string       `json:"commit_hash" yaml:"commit_hash"`
	CommitMessage      string       `json:"commit_message" yaml:"commit_message"`
	Author             string       `json:"author" yaml:"author"`
	ParentVersionID    string       `json:"parent_version_id,omitempty" yaml:"parent_version_id,omitempty"`
	IsDefault          bool         `json:"is_default" yaml:"is_default"`
	CreatedAt          string       `json:"created_at" yaml:"created_at"`
	FileCount          int          `json:"file_count" yaml:"file_count"`
	TotalSize          int64        `json:"total_size" yaml:"total_size"`
	TotalSizeFormatted string       `json:"total_size_formatted" yaml:"total_size_formatted"`
	Files              []exportFile `json:"files" yaml:"files"`
}

// ExportVersionInfo serializes a version's metadata and manifest. Returns the
// bytes, the content type and a suggested download filename.
func (s *VersionService) ExportVersionInfo(versionID, format string) ([]byte, string, string, error) {
	v, err := s.Graph.GetVersion(versionID)
	if err != nil {
		return nil, "", "", err
	}

	summary := v.Summary()
	payload := exportPayload{
		ID:                 v.ID,
		DatasetID:          v.DatasetID,
		Version:            v.Version,
		VersionType:        string(v.VersionType),
		CommitHash:         v.CommitHash,
		CommitMessage:      v.CommitMessage,
		Author:             v.Author,
		IsDefault:          v.IsDefault,
		CreatedAt:          v.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		FileCount:          v.FileCount,
		TotalSize:          v.TotalSize,
		TotalSizeFormatted: summary.TotalSizeFormatted,
	}
	if v.ParentVersionID != nil {
		payload.ParentVersionID = *v.ParentVersionID
	}
	for _, f := range v.Files {
		payload.Files = append(payload.Files, exportFile{
			Filename: f.Filename,
			FileType: f.FileType,
			Size:     f.Size,
			Checksum: f.Checksum,
		})
	}

	base := "version_" + v.ID
	switch format {
	case FormatJSON, "":
		out, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return nil, "", "", err
		}
		return out, "application/json", base + ".json", nil
	case FormatYAML:
		out, err := yaml.Marshal(payload)
		if err != nil {
			return nil, "", "", err
		}
		return out, "application/x-yaml", base + ".yaml", nil
	case FormatCSV:
		out, err := exportCSV(payload)
		if err != nil {
			return nil, "", "", err
		}
		return out, "text/csv", base + ".csv", nil
	default:
		return nil, "", "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// exportCSV repeats the version columns on every file row so the file opens
// flat in a spreadsheet.
func exportCSV(p exportPayload) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{
		"version_id", "dataset_id", "version", "version_type", "commit_hash",
		"author", "created_at", "filename", "file_type", "size", "checksum",
	}
	if err := w.Write(header); err != nil {
		return nil, err
	}

	common := []string{
		p.ID,
		strconv.FormatUint(uint64(p.DatasetID), 10),
		p.Version,
		p.VersionType,
		p.CommitHash,
		p.Author,
		p.CreatedAt,
	}
	if len(p.Files) == 0 {
		if err := w.Write(append(common, "", "", "", "")); err != nil {
			return nil, err
		}
	}
	for _, f := range p.Files {
		row := append(append([]string{}, common...),
			f.Filename, f.FileType, strconv.FormatInt(f.Size, 10), f.Checksum)
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
