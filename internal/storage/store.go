package storage

import (
	"context"
	"io"
	"time"
)

// PutResult is what the engine records per persisted blob: the opaque
// reference handed back to Get/Delete, the content digest, and the size.
type PutResult struct {
	Ref      string `json:"ref"`
	Checksum string `json:"checksum"`
	Size     int64  `json:"size"`
}

type ObjectInfo struct {
	Ref     string
	Size    int64
	Updated time.Time
}

// ObjectStore is the object storage boundary. Implementations are expected to
// honor ctx deadlines on every call; the version service always passes a
// bounded context.
type ObjectStore interface {
	Put(ctx context.Context, objectName string, r io.Reader) (PutResult, error)
	Get(ctx context.Context, ref string) ([]byte, error)
	Delete(ctx context.Context, ref string) error
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
}

// SweepOrphans deletes objects under prefix that are older than olderThan and
// not reported live by the callback. Failed version creates delete their own
// blobs eagerly; this is the fallback reaper for blobs stranded by a crash
// between persist and rollback.
func SweepOrphans(ctx context.Context, store ObjectStore, prefix string, olderThan time.Duration, live func(ref string) bool) (int, error) {
	objects, err := store.List(ctx, prefix)
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().Add(-olderThan)
	removed := 0
	for _, obj := range objects {
		if obj.Updated.After(cutoff) {
			continue
		}
		if live != nil && live(obj.Ref) {
			continue
		}
		if err := store.Delete(ctx, obj.Ref); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
