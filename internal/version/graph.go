package version

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"dataforge-api/internal/dataset"
)

// VersionGraph owns the per-dataset version set and is the single place the
// default-version invariant is enforced. Every mutation runs inside a
// per-dataset critical section plus a DB transaction; operations on different
// datasets never block each other.
type VersionGraph struct {
	DB *gorm.DB

	mu    sync.Mutex
	locks map[uint]*sync.Mutex
}

func NewVersionGraph(db *gorm.DB) *VersionGraph {
	return &VersionGraph{DB: db, locks: make(map[uint]*sync.Mutex)}
}

func (g *VersionGraph) lockDataset(datasetID uint) func() {
	g.mu.Lock()
	l, ok := g.locks[datasetID]
	if !ok {
		l = &sync.Mutex{}
		g.locks[datasetID] = l
	}
	g.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// AddVersion records a new immutable version node. If parent is set it must
// exist and belong to the same dataset. The dataset's first version is
// automatically marked default.
func (g *VersionGraph) AddVersion(v *DatasetVersion) error {
	var ds dataset.Dataset
	if err := g.DB.First(&ds, v.DatasetID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: dataset %d", ErrDatasetNotFound, v.DatasetID)
		}
		return err
	}

	unlock := g.lockDataset(v.DatasetID)
	defer unlock()

	return g.DB.Transaction(func(tx *gorm.DB) error {
		if v.ParentVersionID != nil {
			var parent DatasetVersion
			if err := tx.First(&parent, "id = ?", *v.ParentVersionID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("%w: %s", ErrParentNotFound, *v.ParentVersionID)
				}
				return err
			}
			if parent.DatasetID != v.DatasetID {
				return fmt.Errorf("%w: parent %s belongs to dataset %d", ErrCrossDatasetParent, parent.ID, parent.DatasetID)
			}
		}

		var existing int64
		if err := tx.Model(&DatasetVersion{}).Where("dataset_id = ?", v.DatasetID).Count(&existing).Error; err != nil {
			return err
		}
		v.IsDefault = existing == 0

		if v.ID == "" {
			v.ID = uuid.NewString()
		}
		for i := range v.Files {
			v.Files[i].VersionID = v.ID
		}

		if err := tx.Create(v).Error; err != nil {
			return err
		}
		return g.checkSingleDefault(tx, v.DatasetID)
	})
}

// SetDefault atomically moves the default flag to the given version.
// Idempotent: re-pointing at the current default succeeds with no change.
func (g *VersionGraph) SetDefault(versionID string) (*DatasetVersion, error) {
	var target DatasetVersion
	if err := g.DB.First(&target, "id = ?", versionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrVersionNotFound, versionID)
		}
		return nil, err
	}

	unlock := g.lockDataset(target.DatasetID)
	defer unlock()

	err := g.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&target, "id = ?", versionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: %s", ErrVersionNotFound, versionID)
			}
			return err
		}
		if target.IsDefault {
			return nil
		}

		if err := tx.Model(&DatasetVersion{}).
			Where("dataset_id = ? AND is_default = ?", target.DatasetID, true).
			Update("is_default", false).Error; err != nil {
			return err
		}
		if err := tx.Model(&DatasetVersion{}).
			Where("id = ?", target.ID).
			Update("is_default", true).Error; err != nil {
			return err
		}
		target.IsDefault = true
		return g.checkSingleDefault(tx, target.DatasetID)
	})
	if err != nil {
		return nil, err
	}
	return &target, nil
}

// ListVersions returns the dataset's versions in creation order.
func (g *VersionGraph) ListVersions(datasetID uint) ([]DatasetVersion, error) {
	var ds dataset.Dataset
	if err := g.DB.First(&ds, datasetID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: dataset %d", ErrDatasetNotFound, datasetID)
		}
		return nil, err
	}

	var versions []DatasetVersion
	if err := g.DB.
		Where("dataset_id = ?", datasetID).
		Order("created_at ASC, id ASC").
		Find(&versions).Error; err != nil {
		return nil, err
	}
	return versions, nil
}

// GetVersion loads a version with its files.
func (g *VersionGraph) GetVersion(versionID string) (*DatasetVersion, error) {
	var v DatasetVersion
	if err := g.DB.Preload("Files").First(&v, "id = ?", versionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrVersionNotFound, versionID)
		}
		return nil, err
	}
	return &v, nil
}

// DefaultVersion returns the dataset's default version, or ErrVersionNotFound
// if the dataset has no versions.
func (g *VersionGraph) DefaultVersion(datasetID uint) (*DatasetVersion, error) {
	var v DatasetVersion
	err := g.DB.Preload("Files").
		Where("dataset_id = ? AND is_default = ?", datasetID, true).
		First(&v).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: no default for dataset %d", ErrVersionNotFound, datasetID)
		}
		return nil, err
	}
	return &v, nil
}

// Lineage walks parent links from the given version to its root ancestor and
// returns the chain root-first. Traversal is capped at the dataset's version
// count so corrupted parent links surface as ErrCycleDetected instead of an
// unbounded loop.
func (g *VersionGraph) Lineage(versionID string) ([]DatasetVersion, error) {
	current, err := g.GetVersion(versionID)
	if err != nil {
		return nil, err
	}

	var total int64
	if err := g.DB.Model(&DatasetVersion{}).Where("dataset_id = ?", current.DatasetID).Count(&total).Error; err != nil {
		return nil, err
	}

	chain := []DatasetVersion{*current}
	for current.ParentVersionID != nil {
		if int64(len(chain)) >= total {
			log.Printf("CRITICAL: lineage of version %s exceeds dataset %d version count, possible cycle", versionID, current.DatasetID)
			return nil, fmt.Errorf("%w: at version %s", ErrCycleDetected, current.ID)
		}
		var parent DatasetVersion
		if err := g.DB.First(&parent, "id = ?", *current.ParentVersionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				// Parent was administratively deleted; the surviving chain
				// ends here.
				break
			}
			return nil, err
		}
		chain = append(chain, parent)
		current = &parent
	}

	// reverse to root -> target
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

// SetFlags updates the draft/deprecated status flags; nil leaves a flag as is.
// The flags are orthogonal to default-eligibility.
func (g *VersionGraph) SetFlags(versionID string, isDraft, isDeprecated *bool) (*DatasetVersion, error) {
	v, err := g.GetVersion(versionID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if isDraft != nil {
		updates["is_draft"] = *isDraft
		v.IsDraft = *isDraft
	}
	if isDeprecated != nil {
		updates["is_deprecated"] = *isDeprecated
		v.IsDeprecated = *isDeprecated
	}
	if len(updates) == 0 {
		return v, nil
	}

	if err := g.DB.Model(&DatasetVersion{}).Where("id = ?", versionID).Updates(updates).Error; err != nil {
		return nil, err
	}
	return v, nil
}

// DeleteVersion is the administrative removal path. If the deleted version was
// the default and other versions survive, the most recently created survivor
// is promoted in the same transaction, so the dataset never ends up with
// versions but no default.
func (g *VersionGraph) DeleteVersion(versionID string) error {
	target, err := g.GetVersion(versionID)
	if err != nil {
		return err
	}

	unlock := g.lockDataset(target.DatasetID)
	defer unlock()

	return g.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("version_id = ?", versionID).Delete(&VersionFile{}).Error; err != nil {
			return err
		}
		if err := tx.Where("id = ?", versionID).Delete(&DatasetVersion{}).Error; err != nil {
			return err
		}
		// Children keep their parent_version_id as a dangling weak
		// reference; lineage reads stop at missing parents.

		if target.IsDefault {
			var successor DatasetVersion
			err := tx.Where("dataset_id = ?", target.DatasetID).
				Order("created_at DESC, id DESC").
				First(&successor).Error
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return nil // last version removed, nothing to promote
				}
				return err
			}
			if err := tx.Model(&DatasetVersion{}).
				Where("id = ?", successor.ID).
				Update("is_default", true).Error; err != nil {
				return err
			}
		}
		return g.checkSingleDefault(tx, target.DatasetID)
	})
}

// checkSingleDefault verifies the invariant inside the mutating transaction:
// a dataset with versions has exactly one default. A violation aborts the
// transaction and is logged loudly, since it can only mean a bug.
func (g *VersionGraph) checkSingleDefault(tx *gorm.DB, datasetID uint) error {
	var total, defaults int64
	if err := tx.Model(&DatasetVersion{}).Where("dataset_id = ?", datasetID).Count(&total).Error; err != nil {
		return err
	}
	if total == 0 {
		return nil
	}
	if err := tx.Model(&DatasetVersion{}).
		Where("dataset_id = ? AND is_default = ?", datasetID, true).
		Count(&defaults).Error; err != nil {
		return err
	}
	if defaults != 1 {
		log.Printf("CRITICAL: dataset %d has %d default versions (%d total)", datasetID, defaults, total)
		return fmt.Errorf("%w: dataset %d has %d defaults", ErrInvariantViolation, datasetID, defaults)
	}
	return nil
}
