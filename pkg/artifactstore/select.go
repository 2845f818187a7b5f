package artifactstore

import (
	"context"
	"fmt"

	"github.com/mindburn-labs/turnctl/pkg/config"
)

// FromConfig constructs the Store selected by cfg.ArtifactStoreBackend.
// "gcs" requires the binary to be built with the "gcp" tag; requesting it
// otherwise is a configuration error surfaced at startup rather than a
// silent fallback.
func FromConfig(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.ArtifactStoreBackend {
	case "", "file":
		return NewFileStore(cfg.ArtifactStoreRoot)
	case "s3":
		return NewS3Store(ctx, S3StoreConfig{Bucket: cfg.ArtifactStoreBucket})
	case "gcs":
		return newGCSFromConfig(ctx, cfg)
	default:
		return nil, fmt.Errorf("artifactstore: unknown backend %q", cfg.ArtifactStoreBackend)
	}
}
