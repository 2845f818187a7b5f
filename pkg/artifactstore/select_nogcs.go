//go:build !gcp

package artifactstore

import (
	"context"
	"fmt"

	"github.com/mindburn-labs/turnctl/pkg/config"
)

func newGCSFromConfig(ctx context.Context, cfg *config.Config) (Store, error) {
	return nil, fmt.Errorf("artifactstore: gcs backend requires building with -tags gcp")
}
