package snapshot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

// AzureStore is a BlobStore backed by an Azure Blob Storage container.
type AzureStore struct {
	client    *azblob.Client
	container string
	prefix    string
}

var _ BlobStore = (*AzureStore)(nil)

// NewAzureStore builds an AzureStore from a connection string, the
// same credential shape chronostore's other backends take from
// environment-provided configuration rather than embedded secrets.
func NewAzureStore(connectionString, container, prefix string) (*AzureStore, error) {
	client, err := azblob.NewClientFromConnectionString(connectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("create Azure Blob client: %w", err)
	}
	return &AzureStore{client: client, container: container, prefix: prefix}, nil
}

func (a *AzureStore) blobName(key string) string {
	return a.prefix + key
}

// Put uploads data as a block blob, overwriting any existing blob of
// the same name.
func (a *AzureStore) Put(ctx context.Context, key string, data []byte) error {
	_, err := a.client.UploadBuffer(ctx, a.container, a.blobName(key), data, nil)
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}

// Get downloads a blob, returning ErrNotFound if it does not exist.
func (a *AzureStore) Get(ctx context.Context, key string) ([]byte, error) {
	resp, err := a.client.DownloadStream(ctx, a.container, a.blobName(key), nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.ErrorCode == string(bloberror.BlobNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("download %s: %w", key, err)
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, resp.Body); err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return buf.Bytes(), nil
}

// List returns every blob name under prefix.
func (a *AzureStore) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	listPrefix := a.blobName(prefix)
	pager := a.client.NewListBlobsFlatPager(a.container, &azblob.ListBlobsFlatOptions{
		Prefix: &listPrefix,
	})
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", prefix, err)
		}
		for _, item := range page.Segment.BlobItems {
			if item.Name == nil {
				continue
			}
			keys = append(keys, strings.TrimPrefix(*item.Name, a.prefix))
		}
	}
	return keys, nil
}

// Delete removes a blob. Deleting a missing blob is not an error.
func (a *AzureStore) Delete(ctx context.Context, key string) error {
	_, err := a.client.DeleteBlob(ctx, a.container, a.blobName(key), nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.ErrorCode == string(bloberror.BlobNotFound) {
			return nil
		}
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}
