package version

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"unicode/utf8"
)

// ManifestEntry identifies one file by name and content digest.
type ManifestEntry struct {
	Filename string `json:"filename"`
	Checksum string `json:"checksum"`
}

type FileChange string

const (
	ChangeAdded     FileChange = "added"
	ChangeRemoved   FileChange = "removed"
	ChangeModified  FileChange = "modified"
	ChangeUnchanged FileChange = "unchanged"
)

// DiffEntry classifies one filename from the union of two manifests.
type DiffEntry struct {
	Filename    string     `json:"filename"`
	Change      FileChange `json:"change"`
	OldChecksum string     `json:"old_checksum,omitempty"`
	NewChecksum string     `json:"new_checksum,omitempty"`
}

func validateManifest(manifest []ManifestEntry) error {
	for _, e := range manifest {
		if e.Filename == "" || !utf8.ValidString(e.Filename) {
			return fmt.Errorf("%w: filename %q", ErrInvalidManifestEntry, e.Filename)
		}
	}
	return nil
}

// ComputeCommitHash derives the content hash of a version from its manifest.
// Entries are sorted by filename first, so the same file set yields the same
// hash regardless of upload order. The preimage is scoped by dataset ID so
// identical file sets in different datasets hash differently; author and
// message are deliberately excluded; the hash identifies content, not
// provenance.
func ComputeCommitHash(datasetID uint, manifest []ManifestEntry) (string, error) {
	if err := validateManifest(manifest); err != nil {
		return "", err
	}

	sorted := make([]ManifestEntry, len(manifest))
	copy(sorted, manifest)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Filename < sorted[j].Filename })

	h := sha256.New()
	fmt.Fprintf(h, "dataset:%d\n", datasetID)
	for _, e := range sorted {
		h.Write([]byte(e.Filename))
		h.Write([]byte{0})
		h.Write([]byte(e.Checksum))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// DiffManifests classifies every filename present in either manifest:
// added if only in b, removed if only in a, modified if checksums differ,
// unchanged otherwise. Output is lexicographic by filename.
func DiffManifests(a, b []ManifestEntry) ([]DiffEntry, error) {
	if err := validateManifest(a); err != nil {
		return nil, err
	}
	if err := validateManifest(b); err != nil {
		return nil, err
	}

	oldSums := make(map[string]string, len(a))
	for _, e := range a {
		oldSums[e.Filename] = e.Checksum
	}
	newSums := make(map[string]string, len(b))
	for _, e := range b {
		newSums[e.Filename] = e.Checksum
	}

	names := make([]string, 0, len(oldSums)+len(newSums))
	seen := make(map[string]bool, len(oldSums)+len(newSums))
	for name := range oldSums {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	for name := range newSums {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	sort.Strings(names)

	out := make([]DiffEntry, 0, len(names))
	for _, name := range names {
		oldSum, inOld := oldSums[name]
		newSum, inNew := newSums[name]

		entry := DiffEntry{Filename: name, OldChecksum: oldSum, NewChecksum: newSum}
		switch {
		case !inOld:
			entry.Change = ChangeAdded
		case !inNew:
			entry.Change = ChangeRemoved
		case oldSum != newSum:
			entry.Change = ChangeModified
		default:
			entry.Change = ChangeUnchanged
		}
		out = append(out, entry)
	}
	return out, nil
}
