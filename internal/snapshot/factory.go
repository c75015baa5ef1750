package snapshot

import (
	"context"
	"fmt"

	"github.com/rerun-io/rerun-sub038/internal/config"
)

// NewBlobStore builds the BlobStore named by cfg.Backend, reading
// whatever keys that backend needs out of cfg.Params. This is the
// single place config-driven callers (cmd/chronostore) go from a
// declarative SnapshotConfig to a concrete backend.
func NewBlobStore(ctx context.Context, cfg config.SnapshotConfig) (BlobStore, error) {
	switch cfg.Backend {
	case "", "local":
		dir := cfg.Params["dir"]
		if dir == "" {
			return nil, fmt.Errorf("snapshot: local backend requires a %q param", "dir")
		}
		return NewLocalStore(dir)

	case "s3":
		bucket := cfg.Params["bucket"]
		if bucket == "" {
			return nil, fmt.Errorf("snapshot: s3 backend requires a %q param", "bucket")
		}
		return NewS3Store(ctx, bucket, cfg.Params["prefix"])

	case "azure":
		connStr := cfg.Params["connection_string"]
		container := cfg.Params["container"]
		if connStr == "" || container == "" {
			return nil, fmt.Errorf("snapshot: azure backend requires %q and %q params", "connection_string", "container")
		}
		return NewAzureStore(connStr, container, cfg.Params["prefix"])

	case "gcs":
		bucket := cfg.Params["bucket"]
		if bucket == "" {
			return nil, fmt.Errorf("snapshot: gcs backend requires a %q param", "bucket")
		}
		return NewGCSStore(ctx, bucket, cfg.Params["prefix"])

	default:
		return nil, fmt.Errorf("snapshot: unknown backend %q", cfg.Backend)
	}
}
