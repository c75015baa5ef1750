package snapshot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

// GCSStore is a BlobStore backed by a Google Cloud Storage bucket.
type GCSStore struct {
	client *storage.Client
	bucket string
	prefix string
}

var _ BlobStore = (*GCSStore)(nil)

// NewGCSStore builds a GCSStore using application default credentials.
func NewGCSStore(ctx context.Context, bucket, prefix string) (*GCSStore, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create GCS client: %w", err)
	}
	return &GCSStore{client: client, bucket: bucket, prefix: prefix}, nil
}

func (g *GCSStore) objectName(key string) string {
	return g.prefix + key
}

// Put uploads data as an object, overwriting any existing object of
// the same name.
func (g *GCSStore) Put(ctx context.Context, key string, data []byte) error {
	w := g.client.Bucket(g.bucket).Object(g.objectName(key)).NewWriter(ctx)
	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close %s: %w", key, err)
	}
	return nil
}

// Get downloads an object, returning ErrNotFound if it does not
// exist.
func (g *GCSStore) Get(ctx context.Context, key string) ([]byte, error) {
	r, err := g.client.Bucket(g.bucket).Object(g.objectName(key)).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("open %s: %w", key, err)
	}
	defer r.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return buf.Bytes(), nil
}

// List returns every object name under prefix.
func (g *GCSStore) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	it := g.client.Bucket(g.bucket).Objects(ctx, &storage.Query{Prefix: g.objectName(prefix)})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", prefix, err)
		}
		keys = append(keys, strings.TrimPrefix(attrs.Name, g.prefix))
	}
	return keys, nil
}

// Delete removes an object. Deleting a missing object is not an
// error.
func (g *GCSStore) Delete(ctx context.Context, key string) error {
	err := g.client.Bucket(g.bucket).Object(g.objectName(key)).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}
