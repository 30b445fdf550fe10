package version

import (
	"errors"
	"fmt"
)

// Error taxonomy of the version engine. Controllers branch on these with
// errors.Is to pick HTTP status codes; services wrap them with context.
var (
	// ErrEmptyVersion: a version must contain at least one file.
	ErrEmptyVersion = errors.New("version must contain at least one file")

	// ErrValidation covers bad input shapes/values; always caller-fixable.
	ErrValidation = errors.New("invalid input")

	ErrDatasetNotFound = errors.New("dataset not found")
	ErrVersionNotFound = errors.New("version not found")
	ErrParentNotFound  = errors.New("parent version not found")

	// ErrCrossDatasetParent: a clone parent must belong to the same dataset.
	ErrCrossDatasetParent = errors.New("parent version belongs to a different dataset")

	// ErrInvalidManifestEntry: empty or non-UTF8 filename in a manifest.
	ErrInvalidManifestEntry = errors.New("invalid manifest entry")

	// ErrCycleDetected is a data-corruption alert: lineage links must form a
	// tree, the public API cannot construct a cycle.
	ErrCycleDetected = errors.New("cycle detected in version lineage")

	// ErrInvariantViolation means the single-default invariant broke. It must
	// never surface in normal operation; treat as a bug, not user error.
	ErrInvariantViolation = errors.New("default-version invariant violated")

	ErrUnsupportedFormat = errors.New("unsupported export format")
)

// StorageError marks object store failures so callers can decide on retry
// without parsing messages.
type StorageError struct {
	Op  string
	Ref string
	Err error
}

func (e *StorageError) Error() string {
	if e.Ref != "" {
		return fmt.Sprintf("storage %s %s: %v", e.Op, e.Ref, e.Err)
	}
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// IsStorageFailure reports whether err originated at the object store.
func IsStorageFailure(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
