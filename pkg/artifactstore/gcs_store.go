//go:build gcp

package artifactstore

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
)

// GCSStoreConfig configures a GCS-backed artifact store.
type GCSStoreConfig struct {
	Bucket string
	Prefix string
}

// GCSStore is a CAS backend for GCP deployments. Built only with the
// "gcp" build tag, matching the teacher's opt-in pattern for cloud SDKs
// that pull in substantial transitive dependencies.
type GCSStore struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSStore constructs a GCSStore using application default credentials.
func NewGCSStore(ctx context.Context, cfg GCSStoreConfig) (*GCSStore, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("artifactstore: create gcs client: %w", err)
	}
	return &GCSStore{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

func (s *GCSStore) objectPath(rawHash string) string {
	return s.prefix + rawHash + ".blob"
}

func (s *GCSStore) Put(ctx context.Context, data []byte) (string, error) {
	rawHash, ref := computeRef(data)
	obj := s.client.Bucket(s.bucket).Object(s.objectPath(rawHash))

	if _, err := obj.Attrs(ctx); err == nil {
		return ref, nil
	}

	w := obj.NewWriter(ctx)
	w.ContentType = "application/octet-stream"
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("artifactstore: gcs write: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("artifactstore: gcs commit: %w", err)
	}
	return ref, nil
}

func (s *GCSStore) Get(ctx context.Context, ref string) ([]byte, error) {
	rawHash, err := parseRef(ref)
	if err != nil {
		return nil, err
	}

	r, err := s.client.Bucket(s.bucket).Object(s.objectPath(rawHash)).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("artifactstore: gcs get %s: %w", ref, err)
	}
	defer r.Close()

	return io.ReadAll(r)
}

func (s *GCSStore) Exists(ctx context.Context, ref string) (bool, error) {
	rawHash, err := parseRef(ref)
	if err != nil {
		return false, err
	}
	_, err = s.client.Bucket(s.bucket).Object(s.objectPath(rawHash)).Attrs(ctx)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	return false, err
}
