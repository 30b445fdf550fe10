package version

import (
	"context"

	"dataforge-api/internal/logs"
)

type VersionServicePort interface {
	CreateVersion(ctx context.Context, datasetID uint, files []FileInput, in CreateVersionInput) (*DatasetVersion, error)
	CloneVersion(ctx context.Context, sourceVersionID string, upserts []FileInput, in CloneVersionInput) (*DatasetVersion, error)

	GetVersionTree(datasetID uint) ([]VersionSummary, error)
	GetVersionDetails(versionID string) (*VersionDetails, error)

	SetDefaultVersion(versionID string) (*DatasetVersion, error)
	SetVersionFlags(versionID string, isDraft, isDeprecated *bool) (*DatasetVersion, error)

	DiffVersions(versionA, versionB string) (*DiffResult, error)
	PreviewVersion(ctx context.Context, datasetID uint, versionID string, maxItems int) (*VersionPreview, error)
	ExportVersionInfo(versionID, format string) ([]byte, string, string, error)

	DeleteVersion(ctx context.Context, versionID string) error
}

type LogServicePort interface {
	Log(log logs.SystemLog, payload interface{}) error
}
