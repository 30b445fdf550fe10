package version

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"dataforge-api/internal/dataset"
	"dataforge-api/internal/storage"
)

var testDBSeq uint64

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	id := atomic.AddUint64(&testDBSeq, 1)
	dsn := fmt.Sprintf("file:version_test_%d?mode=memory&cache=shared", id)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	if err := db.AutoMigrate(&dataset.Dataset{}, &DatasetVersion{}, &VersionFile{}); err != nil {
		t.Fatalf("migrate db: %v", err)
	}

	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func seedDataset(t *testing.T, db *gorm.DB, name string) dataset.Dataset {
	t.Helper()

	d := dataset.Dataset{Name: name, CreatedBy: 1}
	if err := db.Create(&d).Error; err != nil {
		t.Fatalf("seed dataset: %v", err)
	}
	return d
}

func mkVersion(datasetID uint, label string, files ...VersionFile) *DatasetVersion {
	manifest := make([]ManifestEntry, 0, len(files))
	for _, f := range files {
		manifest = append(manifest, ManifestEntry{Filename: f.Filename, Checksum: f.Checksum})
	}
	hash, _ := ComputeCommitHash(datasetID, manifest)

	return &DatasetVersion{
		DatasetID:     datasetID,
		Version:       label,
		VersionType:   TypeMinor,
		CommitHash:    hash,
		CommitMessage: "test commit",
		Author:        "tester",
		FileCount:     len(files),
		Files:         files,
	}
}

// fakeStore is an in-memory ObjectStore with per-call failure injection.
type fakeStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	updated map[string]time.Time

	putCalls int
	// failPutAfter: fail the Nth and later Put calls (0 = never fail).
	failPutAfter int
	failGet      bool
	failDelete   bool
	deleted      []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		objects: make(map[string][]byte),
		updated: make(map[string]time.Time),
	}
}

func (f *fakeStore) Put(ctx context.Context, objectName string, r io.Reader) (storage.PutResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return storage.PutResult{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.putCalls++
	if f.failPutAfter > 0 && f.putCalls >= f.failPutAfter {
		return storage.PutResult{}, fmt.Errorf("injected put failure")
	}

	ref := "fake://" + objectName
	f.objects[ref] = data
	f.updated[ref] = time.Now()

	sum := sha256.Sum256(data)
	return storage.PutResult{
		Ref:      ref,
		Checksum: hex.EncodeToString(sum[:]),
		Size:     int64(len(data)),
	}, nil
}

func (f *fakeStore) Get(ctx context.Context, ref string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failGet {
		return nil, fmt.Errorf("injected get failure")
	}
	data, ok := f.objects[ref]
	if !ok {
		return nil, fmt.Errorf("object not found: %s", ref)
	}
	return bytes.Clone(data), nil
}

func (f *fakeStore) Delete(ctx context.Context, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failDelete {
		return fmt.Errorf("injected delete failure")
	}
	delete(f.objects, ref)
	delete(f.updated, ref)
	f.deleted = append(f.deleted, ref)
	return nil
}

func (f *fakeStore) List(ctx context.Context, prefix string) ([]storage.ObjectInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []storage.ObjectInfo
	for ref, data := range f.objects {
		if strings.HasPrefix(strings.TrimPrefix(ref, "fake://"), prefix) {
			out = append(out, storage.ObjectInfo{Ref: ref, Size: int64(len(data)), Updated: f.updated[ref]})
		}
	}
	return out, nil
}

func (f *fakeStore) blobCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects)
}

func newTestService(t *testing.T) (*VersionService, *fakeStore) {
	t.Helper()

	db := newTestDB(t)
	store := newFakeStore()
	return NewVersionService(db, store, 5*time.Second), store
}

func createInput(label string) CreateVersionInput {
	return CreateVersionInput{
		Version:       label,
		VersionType:   "minor",
		CommitMessage: "test commit",
		Author:        "tester",
	}
}

func cloneInput(label string) CloneVersionInput {
	return CloneVersionInput{CreateVersionInput: createInput(label)}
}
