//go:build gcp

package artifactstore

import (
	"context"

	"github.com/mindburn-labs/turnctl/pkg/config"
)

func newGCSFromConfig(ctx context.Context, cfg *config.Config) (Store, error) {
	return NewGCSStore(ctx, GCSStoreConfig{Bucket: cfg.ArtifactStoreBucket})
}
