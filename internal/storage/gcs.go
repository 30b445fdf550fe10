package storage

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	gcs "cloud.google.com/go/storage"
	"github.com/zeebo/blake3"
	"google.golang.org/api/iterator"
)

// GCSStore persists blobs in a single GCS bucket. The client is constructed
// once and injected; refs are gs:// URLs so they stay resolvable without
// knowing the bucket.
type GCSStore struct {
	Client *gcs.Client
	Bucket string
}

func NewGCSStore(ctx context.Context, bucket string) (*GCSStore, error) {
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return &GCSStore{Client: client, Bucket: bucket}, nil
}

func (s *GCSStore) Put(ctx context.Context, objectName string, r io.Reader) (PutResult, error) {
	w := s.Client.Bucket(s.Bucket).Object(objectName).NewWriter(ctx)

	h := blake3.New()
	size, err := io.Copy(io.MultiWriter(w, h), r)
	if err != nil {
		_ = w.Close()
		return PutResult{}, err
	}
	if err := w.Close(); err != nil {
		return PutResult{}, err
	}

	return PutResult{
		Ref:      fmt.Sprintf("gs://%s/%s", s.Bucket, objectName),
		Checksum: hex.EncodeToString(h.Sum(nil)),
		Size:     size,
	}, nil
}

func (s *GCSStore) Get(ctx context.Context, ref string) ([]byte, error) {
	bucket, objectPath, err := ParseRef(ref)
	if err != nil {
		return nil, err
	}
	if bucket == "" {
		bucket = s.Bucket
	}

	rc, err := s.Client.Bucket(bucket).Object(objectPath).NewReader(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	return io.ReadAll(rc)
}

func (s *GCSStore) Delete(ctx context.Context, ref string) error {
	bucket, objectPath, err := ParseRef(ref)
	if err != nil {
		return err
	}
	if bucket == "" {
		bucket = s.Bucket
	}
	return s.Client.Bucket(bucket).Object(objectPath).Delete(ctx)
}

func (s *GCSStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var out []ObjectInfo

	it := s.Client.Bucket(s.Bucket).Objects(ctx, &gcs.Query{Prefix: prefix})
	for {
		obj, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		out = append(out, ObjectInfo{
			Ref:     fmt.Sprintf("gs://%s/%s", s.Bucket, obj.Name),
			Size:    obj.Size,
			Updated: obj.Updated,
		})
	}
	return out, nil
}

func (s *GCSStore) Close() error {
	return s.Client.Close()
}

// ParseRef parses gs://bucket/object into its parts.
func ParseRef(ref string) (bucket string, objectPath string, err error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", "", fmt.Errorf("empty storage ref")
	}
	if !strings.HasPrefix(ref, "gs://") {
		return "", "", fmt.Errorf("invalid storage ref (must start with gs://): %s", ref)
	}

	rest := strings.TrimPrefix(ref, "gs://")
	slash := strings.Index(rest, "/")
	if slash < 0 || slash == len(rest)-1 {
		return "", "", fmt.Errorf("invalid storage ref format: %s", ref)
	}

	bucket = rest[:slash]
	objectPath = rest[slash+1:]
	if strings.TrimSpace(objectPath) == "" {
		return "", "", fmt.Errorf("empty object path in storage ref: %s", ref)
	}
	return bucket, objectPath, nil
}
