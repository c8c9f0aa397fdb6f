// Package minio provides an indexstore backend for MinIO and other
// S3-compatible storage.
package minio

import (
	"bytes"
	"context"
	"io"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"

	"github.com/hupe1980/sfcgo/indexstore"
)

// Backend implements indexstore.Backend for MinIO.
type Backend struct {
	client *minio.Client
	bucket string
	prefix string
}

var _ indexstore.Backend = (*Backend)(nil)

// New creates a new MinIO backend. rootPrefix is prepended to all keys.
func New(client *minio.Client, bucket, rootPrefix string) *Backend {
	return &Backend{
		client: client,
		bucket: bucket,
		prefix: rootPrefix,
	}
}

func (b *Backend) key(name string) string {
	return path.Join(b.prefix, name)
}

func (b *Backend) Put(ctx context.Context, name string, data []byte) error {
	_, err := b.client.PutObject(ctx, b.bucket, b.key(name),
		bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{})
	return err
}

func (b *Backend) Get(ctx context.Context, name string) ([]byte, error) {
	obj, err := b.client.GetObject(ctx, b.bucket, b.key(name), minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		errResp := minio.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" || errResp.Code == "NotFound" {
			return nil, indexstore.ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

func (b *Backend) Delete(ctx context.Context, name string) error {
	return b.client.RemoveObject(ctx, b.bucket, b.key(name), minio.RemoveObjectOptions{})
}

func (b *Backend) List(ctx context.Context, prefix string) ([]string, error) {
	var names []string
	for obj := range b.client.ListObjects(ctx, b.bucket, minio.ListObjectsOptions{
		Prefix:    b.key(prefix),
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		name := strings.TrimPrefix(obj.Key, b.prefix)
		names = append(names, strings.TrimPrefix(name, "/"))
	}
	return names, nil
}
