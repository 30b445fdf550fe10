package dataset

import (
	"dataforge-api/internal/logs"
)

type DatasetServicePort interface {
	CreateDataset(input CreateDatasetInput, userID uint) (*Dataset, error)
	GetDataset(id uint) (*Dataset, error)
	ListDatasets() ([]DatasetWithCounts, error)
	UpdateDataset(id uint, input UpdateDatasetInput) (*Dataset, error)
	DeleteDataset(id uint) error
}

type LogServicePort interface {
	Log(log logs.SystemLog, payload interface{}) error
}
