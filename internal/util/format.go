package util

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dustin/go-humanize"
)

// FormatSize renders a byte count the way the version list displays it
// ("1.2 MB", "0 B").
func FormatSize(bytes int64) string {
	if bytes < 0 {
		bytes = 0
	}
	return humanize.Bytes(uint64(bytes))
}

var unsafePart = regexp.MustCompile(`[^a-z0-9_\-.]`)

// SanitizePart makes a string safe for use inside an object path segment.
func SanitizePart(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	s = strings.ReplaceAll(s, " ", "_")
	s = unsafePart.ReplaceAllString(s, "")
	if s == "" {
		return "unknown"
	}
	return s
}

// BlobObjectName builds the object path for a version file blob. Sanitizing
// is lossy ("A.txt" and "a.txt" both become "a.txt"), so the caller's file
// index is part of the path; no two files of one upload can share an object.
func BlobObjectName(datasetID uint, uploadID string, index int, filename string) string {
	return fmt.Sprintf("datasets/%d/blobs/%s/%d_%s", datasetID, uploadID, index, SanitizePart(filename))
}

// DatasetPrefix is the object prefix holding every blob of a dataset; the
// orphan reaper sweeps under it.
func DatasetPrefix(datasetID uint) string {
	return fmt.Sprintf("datasets/%d/", datasetID)
}
