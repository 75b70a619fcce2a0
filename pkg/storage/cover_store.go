package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// CoverStore holds book cover images.
type CoverStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
}

// coverContentTypes are the image formats accepted as covers. Anything else
// is rejected before it reaches the object store.
var coverContentTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

// AllowedCoverType reports whether contentType is an accepted cover format.
func AllowedCoverType(contentType string) bool {
	return coverContentTypes[contentType]
}

// MinioCoverStore implements CoverStore on MinIO/S3 compatible storage.
type MinioCoverStore struct {
	client *minio.Client
	bucket string
}

// NewMinioCoverStore connects to MinIO and ensures the bucket exists.
func NewMinioCoverStore(endpoint, accessKey, secretKey, bucket string, useSSL bool) (*MinioCoverStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}
	return &MinioCoverStore{client: client, bucket: bucket}, nil
}

// Put uploads a cover image.
func (m *MinioCoverStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	_, err := m.client.PutObject(ctx, m.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("put cover: %w", err)
	}
	return nil
}

// PresignGet generates a pre-signed GET URL for a cover.
func (m *MinioCoverStore) PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error) {
	url, err := m.client.PresignedGetObject(ctx, m.bucket, key, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("presign cover: %w", err)
	}
	return url.String(), nil
}

// Delete removes a cover image.
func (m *MinioCoverStore) Delete(ctx context.Context, key string) error {
	if err := m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete cover: %w", err)
	}
	return nil
}
