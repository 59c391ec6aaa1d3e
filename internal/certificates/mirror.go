package certificates

import (
	"bytes"
	"context"
	"path"
	"time"

	"certificate-studio/certificate-backend/pkg/storage"
)

// Mirror copies generated files to durable object storage. The local output
// directory stays authoritative; the mirror only serves files that have
// gone missing locally.
type Mirror interface {
	Put(ctx context.Context, name, contentType string, data []byte) (string, error)
	URL(ctx context.Context, key string) (string, error)
	Remove(ctx context.Context, key string) error
}

type S3Mirror struct {
	client storage.S3Client
	bucket string
	prefix string
	expiry time.Duration
}

func NewS3Mirror(client storage.S3Client, bucket, prefix string, expiry time.Duration) *S3Mirror {
	if expiry <= 0 {
		expiry = 15 * time.Minute
	}
	return &S3Mirror{client: client, bucket: bucket, prefix: prefix, expiry: expiry}
}

func (m *S3Mirror) key(name string) string {
	if m.prefix == "" {
		return name
	}
	return path.Join(m.prefix, name)
}

func (m *S3Mirror) Put(ctx context.Context, name, contentType string, data []byte) (string, error) {
	key := m.key(name)
	if err := m.client.Upload(ctx, m.bucket, key, contentType, bytes.NewReader(data)); err != nil {
		return "", err
	}
	return key, nil
}

func (m *S3Mirror) URL(ctx context.Context, key string) (string, error) {
	return m.client.GetPresignedURL(ctx, m.bucket, key, m.expiry)
}

func (m *S3Mirror) Remove(ctx context.Context, key string) error {
	return m.client.Delete(ctx, m.bucket, key)
}
