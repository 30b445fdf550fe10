package dataset

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

var (
	ErrNotFound      = errors.New("dataset not found")
	ErrDuplicateName = errors.New("dataset name already exists")

	// ErrHasVersions: a dataset is never deleted out from under its
	// versions; the versions must be removed first through the admin path.
	ErrHasVersions = errors.New("dataset still has versions")
)

type DatasetService struct {
	DB *gorm.DB
}

func (ds *DatasetService) CreateDataset(input CreateDatasetInput, userID uint) (*Dataset, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, fmt.Errorf("dataset name is required")
	}

	var existing Dataset
	if err := ds.DB.Where("name = ?", name).First(&existing).Error; err == nil {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateName, name)
	}

	d := Dataset{
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		Tags:        input.Tags,
		CreatedBy:   userID,
	}
	if err := ds.DB.Create(&d).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

func (ds *DatasetService) GetDataset(id uint) (*Dataset, error) {
	var d Dataset
	if err := ds.DB.First(&d, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
		}
		return nil, err
	}
	return &d, nil
}

func (ds *DatasetService) ListDatasets() ([]DatasetWithCounts, error) {
	var out []DatasetWithCounts
	err := ds.DB.
		Table("dataset d").
		Select("d.*, COUNT(v.id) AS version_count").
		Joins("LEFT JOIN dataset_version v ON v.dataset_id = d.id").
		Group("d.id").
		Order("d.created_at DESC").
		Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (ds *DatasetService) UpdateDataset(id uint, input UpdateDatasetInput) (*Dataset, error) {
	d, err := ds.GetDataset(id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if input.Name != nil && strings.TrimSpace(*input.Name) != "" {
		updates["name"] = strings.TrimSpace(*input.Name)
	}
	if input.Description != nil {
		updates["description"] = strings.TrimSpace(*input.Description)
	}
	if input.Tags != nil {
		updates["tags"] = pq.StringArray(input.Tags)
	}
	if len(updates) == 0 {
		return d, nil
	}

	if err := ds.DB.Model(d).Updates(updates).Error; err != nil {
		return nil, err
	}
	return ds.GetDataset(id)
}

// DeleteDataset removes a dataset only when no versions reference it.
func (ds *DatasetService) DeleteDataset(id uint) error {
	d, err := ds.GetDataset(id)
	if err != nil {
		return err
	}

	var versions int64
	if err := ds.DB.Table("dataset_version").Where("dataset_id = ?", id).Count(&versions).Error; err != nil {
		return err
	}
	if versions > 0 {
		return fmt.Errorf("%w: %d version(s)", ErrHasVersions, versions)
	}

	return ds.DB.Delete(d).Error
}
