package version

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"dataforge-api/internal/pipeline"
	"dataforge-api/internal/preview"
	"dataforge-api/internal/storage"
	"dataforge-api/internal/util"
)

// putConcurrency bounds parallel blob uploads per create/clone call.
const putConcurrency = 4

// VersionService orchestrates version creation end to end: blob persistence,
// hashing, graph mutation and rollback. Graph invariants live in
// VersionGraph; this layer owns everything that touches the object store.
type VersionService struct {
	DB    *gorm.DB
	Store storage.ObjectStore
	Graph *VersionGraph

	// Timeout bounds each object store round trip.
	Timeout time.Duration
}

func NewVersionService(db *gorm.DB, store storage.ObjectStore, timeout time.Duration) *VersionService {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &VersionService{DB: db, Store: store, Graph: NewVersionGraph(db), Timeout: timeout}
}

// FileInput is one file handed to create/clone, already read off the wire.
type FileInput struct {
	Filename string
	Content  []byte
}

type CreateVersionInput struct {
	Version        string                 `json:"version"`
	VersionType    string                 `json:"version_type"`
	CommitMessage  string                 `json:"commit_message"`
	Author         string                 `json:"author"`
	PipelineConfig map[string]interface{} `json:"pipeline_config,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

func notBlank(value interface{}) error {
	s, _ := value.(string)
	if strings.TrimSpace(s) == "" {
		return errors.New("cannot be blank")
	}
	return nil
}

func (in CreateVersionInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Version, validation.Required, validation.Length(1, 50)),
		validation.Field(&in.VersionType, validation.Required, validation.In("major", "minor", "patch")),
		validation.Field(&in.CommitMessage, validation.Required, validation.Length(1, 500), validation.By(notBlank)),
		validation.Field(&in.Author, validation.Required, validation.Length(1, 255), validation.By(notBlank)),
	)
}

// CloneVersionInput derives a child version from an existing one. Files not
// named in Upserts or Removes are carried over by reference, without copying
// their bytes.
type CloneVersionInput struct {
	CreateVersionInput
	Removes []string `json:"removes,omitempty"`
}

// normalize fills defaults before validation.
func (in *CreateVersionInput) normalize() {
	if in.VersionType == "" {
		in.VersionType = string(TypeMinor)
	}
}

// CreateVersion persists the given files, hashes the resulting manifest and
// records a new version node. All-or-nothing: if any upload or the graph
// insert fails, every blob persisted by this call is deleted before the error
// is returned.
func (s *VersionService) CreateVersion(ctx context.Context, datasetID uint, files []FileInput, in CreateVersionInput) (*DatasetVersion, error) {
	if len(files) == 0 {
		return nil, ErrEmptyVersion
	}
	in.normalize()
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := checkFilenames(files); err != nil {
		return nil, err
	}

	pipelineJSON, metadataJSON, err := s.encodeConfigs(in)
	if err != nil {
		return nil, err
	}

	versionFiles, refs, err := s.persistFiles(ctx, datasetID, files)
	if err != nil {
		return nil, err
	}

	v := s.buildVersion(datasetID, nil, in, versionFiles)
	v.PipelineConfig = pipelineJSON
	v.Metadata = metadataJSON

	hash, err := ComputeCommitHash(datasetID, v.Manifest())
	if err != nil {
		s.rollbackBlobs(refs)
		return nil, err
	}
	v.CommitHash = hash

	if err := s.Graph.AddVersion(v); err != nil {
		s.rollbackBlobs(refs)
		return nil, err
	}
	return v, nil
}

// CloneVersion creates a child of sourceVersionID. Carried-over files keep
// their parent's object refs; only files in upserts hit the object store.
// The clone's hash may equal its parent's when the file set is unchanged.
func (s *VersionService) CloneVersion(ctx context.Context, sourceVersionID string, upserts []FileInput, in CloneVersionInput) (*DatasetVersion, error) {
	in.normalize()
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := checkFilenames(upserts); err != nil {
		return nil, err
	}

	source, err := s.Graph.GetVersion(sourceVersionID)
	if err != nil {
		return nil, err
	}

	pipelineJSON, metadataJSON, err := s.encodeConfigs(in.CreateVersionInput)
	if err != nil {
		return nil, err
	}
	if pipelineJSON == nil {
		pipelineJSON = source.PipelineConfig
	}

	removed := make(map[string]bool, len(in.Removes))
	for _, name := range in.Removes {
		removed[name] = true
	}
	overridden := make(map[string]bool, len(upserts))
	for _, f := range upserts {
		overridden[f.Filename] = true
	}

	var carried []VersionFile
	for _, f := range source.Files {
		if removed[f.Filename] || overridden[f.Filename] {
			continue
		}
		carried = append(carried, VersionFile{
			Filename:  f.Filename,
			FileType:  f.FileType,
			Size:      f.Size,
			Checksum:  f.Checksum,
			ObjectRef: f.ObjectRef,
		})
	}

	uploaded, refs, err := s.persistFiles(ctx, source.DatasetID, upserts)
	if err != nil {
		return nil, err
	}
	versionFiles := append(carried, uploaded...)
	if len(versionFiles) == 0 {
		s.rollbackBlobs(refs)
		return nil, ErrEmptyVersion
	}

	v := s.buildVersion(source.DatasetID, &source.ID, in.CreateVersionInput, versionFiles)
	v.PipelineConfig = pipelineJSON
	v.Metadata = metadataJSON

	hash, err := ComputeCommitHash(source.DatasetID, v.Manifest())
	if err != nil {
		s.rollbackBlobs(refs)
		return nil, err
	}
	v.CommitHash = hash

	if err := s.Graph.AddVersion(v); err != nil {
		s.rollbackBlobs(refs)
		return nil, err
	}
	return v, nil
}

func checkFilenames(files []FileInput) error {
	seen := make(map[string]bool, len(files))
	for _, f := range files {
		if strings.TrimSpace(f.Filename) == "" {
			return fmt.Errorf("%w: empty filename", ErrValidation)
		}
		if seen[f.Filename] {
			return fmt.Errorf("%w: duplicate filename %q", ErrValidation, f.Filename)
		}
		seen[f.Filename] = true
	}
	return nil
}

func (s *VersionService) encodeConfigs(in CreateVersionInput) (pipelineJSON, metadataJSON []byte, err error) {
	if in.PipelineConfig != nil {
		normalized, err := pipeline.ValidateConfig(in.PipelineConfig)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		pipelineJSON, err = json.Marshal(normalized)
		if err != nil {
			return nil, nil, err
		}
	}
	if in.Metadata != nil {
		metadataJSON, err = json.Marshal(in.Metadata)
		if err != nil {
			return nil, nil, err
		}
	}
	return pipelineJSON, metadataJSON, nil
}

func (s *VersionService) buildVersion(datasetID uint, parentID *string, in CreateVersionInput, files []VersionFile) *DatasetVersion {
	var totalSize int64
	for _, f := range files {
		totalSize += f.Size
	}
	return &DatasetVersion{
		ID:              uuid.NewString(),
		DatasetID:       datasetID,
		Version:         in.Version,
		VersionType:     VersionType(in.VersionType),
		CommitMessage:   strings.TrimSpace(in.CommitMessage),
		Author:          strings.TrimSpace(in.Author),
		ParentVersionID: parentID,
		TotalSize:       totalSize,
		FileCount:       len(files),
		Files:           files,
	}
}

// persistFiles uploads every file concurrently and returns the resulting
// records plus the refs written, for rollback. On any failure the refs
// persisted so far are deleted here and only the first error is returned.
func (s *VersionService) persistFiles(ctx context.Context, datasetID uint, files []FileInput) ([]VersionFile, []string, error) {
	if len(files) == 0 {
		return nil, nil, nil
	}

	uploadID := uuid.NewString()
	results := make([]storage.PutResult, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(putConcurrency)
	for i, f := range files {
		g.Go(func() error {
			putCtx, cancel := context.WithTimeout(gctx, s.Timeout)
			defer cancel()

			objectName := util.BlobObjectName(datasetID, uploadID, i, f.Filename)
			res, err := s.Store.Put(putCtx, objectName, bytes.NewReader(f.Content))
			if err != nil {
				return &StorageError{Op: "put", Ref: objectName, Err: err}
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		var refs []string
		for _, r := range results {
			if r.Ref != "" {
				refs = append(refs, r.Ref)
			}
		}
		s.rollbackBlobs(refs)
		return nil, nil, err
	}

	versionFiles := make([]VersionFile, len(files))
	refs := make([]string, len(files))
	for i, f := range files {
		versionFiles[i] = VersionFile{
			Filename:  f.Filename,
			FileType:  preview.FileType(f.Filename),
			Size:      results[i].Size,
			Checksum:  results[i].Checksum,
			ObjectRef: results[i].Ref,
		}
		refs[i] = results[i].Ref
	}
	return versionFiles, refs, nil
}

// rollbackBlobs is best effort; stranded blobs are caught by the orphan
// reaper.
func (s *VersionService) rollbackBlobs(refs []string) {
	if len(refs) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.Timeout)
	defer cancel()
	for _, ref := range refs {
		if err := s.Store.Delete(ctx, ref); err != nil {
			log.Printf("WARN: rollback delete of %s failed: %v", ref, err)
		}
	}
}

// DiffResult is the full classification of two versions' file sets plus
// per-change counts. Every filename from either side appears exactly once.
type DiffResult struct {
	VersionA VersionSummary     `json:"version_a"`
	VersionB VersionSummary     `json:"version_b"`
	Entries  []DiffEntry        `json:"entries"`
	Counts   map[FileChange]int `json:"counts"`
}

// DiffVersions compares the file sets of two versions of the same dataset.
func (s *VersionService) DiffVersions(versionA, versionB string) (*DiffResult, error) {
	va, err := s.Graph.GetVersion(versionA)
	if err != nil {
		return nil, err
	}
	vb, err := s.Graph.GetVersion(versionB)
	if err != nil {
		return nil, err
	}
	if va.DatasetID != vb.DatasetID {
		return nil, fmt.Errorf("%w: versions belong to different datasets", ErrValidation)
	}

	entries, err := DiffManifests(va.Manifest(), vb.Manifest())
	if err != nil {
		return nil, err
	}

	counts := map[FileChange]int{
		ChangeAdded:     0,
		ChangeRemoved:   0,
		ChangeModified:  0,
		ChangeUnchanged: 0,
	}
	for _, e := range entries {
		counts[e.Change]++
	}

	return &DiffResult{
		VersionA: va.Summary(),
		VersionB: vb.Summary(),
		Entries:  entries,
		Counts:   counts,
	}, nil
}

// SetDefaultVersion moves the dataset's default pointer.
func (s *VersionService) SetDefaultVersion(versionID string) (*DatasetVersion, error) {
	return s.Graph.SetDefault(versionID)
}

// SetVersionFlags toggles draft/deprecated; nil leaves a flag untouched.
func (s *VersionService) SetVersionFlags(versionID string, isDraft, isDeprecated *bool) (*DatasetVersion, error) {
	return s.Graph.SetFlags(versionID, isDraft, isDeprecated)
}

// GetVersionTree lists a dataset's versions in creation order, shaped for the
// tree view.
func (s *VersionService) GetVersionTree(datasetID uint) ([]VersionSummary, error) {
	versions, err := s.Graph.ListVersions(datasetID)
	if err != nil {
		return nil, err
	}
	out := make([]VersionSummary, 0, len(versions))
	for i := range versions {
		out = append(out, versions[i].Summary())
	}
	return out, nil
}

// VersionDetails is one version with its files and root-first lineage.
type VersionDetails struct {
	VersionSummary
	PipelineConfig json.RawMessage  `json:"pipeline_config,omitempty"`
	Metadata       json.RawMessage  `json:"metadata,omitempty"`
	Files          []VersionFile    `json:"files"`
	Lineage        []VersionSummary `json:"lineage"`
}

func (s *VersionService) GetVersionDetails(versionID string) (*VersionDetails, error) {
	v, err := s.Graph.GetVersion(versionID)
	if err != nil {
		return nil, err
	}
	chain, err := s.Graph.Lineage(versionID)
	if err != nil {
		return nil, err
	}

	lineage := make([]VersionSummary, 0, len(chain))
	for i := range chain {
		lineage = append(lineage, chain[i].Summary())
	}

	return &VersionDetails{
		VersionSummary: v.Summary(),
		PipelineConfig: json.RawMessage(v.PipelineConfig),
		Metadata:       json.RawMessage(v.Metadata),
		Files:          v.Files,
		Lineage:        lineage,
	}, nil
}

// FilePreview is one file's bounded preview inside a version preview.
type FilePreview struct {
	Filename string          `json:"filename"`
	FileType string          `json:"file_type"`
	Size     int64           `json:"size"`
	Preview  preview.Preview `json:"preview"`
}

// VersionPreview renders a version's files for the browse view.
type VersionPreview struct {
	Version VersionSummary `json:"version"`
	Files   []FilePreview  `json:"files"`
}

// PreviewVersion previews the given version, or the dataset's default when
// versionID is empty (falling back to the newest version if the dataset
// somehow has no default). A file that fails to load or parse yields an
// error-kind preview; it never aborts the rest of the batch.
func (s *VersionService) PreviewVersion(ctx context.Context, datasetID uint, versionID string, maxItems int) (*VersionPreview, error) {
	var v *DatasetVersion
	var err error

	if versionID != "" {
		v, err = s.Graph.GetVersion(versionID)
		if err != nil {
			return nil, err
		}
		if v.DatasetID != datasetID {
			return nil, fmt.Errorf("%w: %s", ErrVersionNotFound, versionID)
		}
	} else {
		v, err = s.Graph.DefaultVersion(datasetID)
		if errors.Is(err, ErrVersionNotFound) {
			v, err = s.latestVersion(datasetID)
		}
		if err != nil {
			return nil, err
		}
	}

	out := &VersionPreview{Version: v.Summary(), Files: make([]FilePreview, 0, len(v.Files))}
	for _, f := range v.Files {
		fp := FilePreview{Filename: f.Filename, FileType: f.FileType, Size: f.Size}

		getCtx, cancel := context.WithTimeout(ctx, s.Timeout)
		data, err := s.Store.Get(getCtx, f.ObjectRef)
		cancel()
		if err != nil {
			fp.Preview = preview.Preview{
				Kind:    preview.KindError,
				Items:   []json.RawMessage{},
				Message: fmt.Sprintf("failed to load file: %v", err),
			}
		} else {
			fp.Preview = preview.Generate(f.Filename, data, maxItems)
		}
		out.Files = append(out.Files, fp)
	}
	return out, nil
}

func (s *VersionService) latestVersion(datasetID uint) (*DatasetVersion, error) {
	var v DatasetVersion
	err := s.DB.Preload("Files").
		Where("dataset_id = ?", datasetID).
		Order("created_at DESC, id DESC").
		First(&v).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: dataset %d has no versions", ErrVersionNotFound, datasetID)
		}
		return nil, err
	}
	return &v, nil
}

// DeleteVersion removes the version record, then deletes its blobs unless a
// surviving version still references them (clones share refs with their
// parents). Blob deletion is best effort.
func (s *VersionService) DeleteVersion(ctx context.Context, versionID string) error {
	v, err := s.Graph.GetVersion(versionID)
	if err != nil {
		return err
	}

	if err := s.Graph.DeleteVersion(versionID); err != nil {
		return err
	}

	for _, f := range v.Files {
		var stillReferenced int64
		if err := s.DB.Model(&VersionFile{}).
			Where("object_ref = ?", f.ObjectRef).
			Count(&stillReferenced).Error; err != nil {
			log.Printf("WARN: ref count of %s failed: %v", f.ObjectRef, err)
			continue
		}
		if stillReferenced > 0 {
			continue
		}
		delCtx, cancel := context.WithTimeout(ctx, s.Timeout)
		if err := s.Store.Delete(delCtx, f.ObjectRef); err != nil {
			log.Printf("WARN: blob delete of %s failed: %v", f.ObjectRef, err)
		}
		cancel()
	}
	return nil
}
