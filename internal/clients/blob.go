package clients

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/avatarplatform/mediator/internal/apperr"
)

// BlobConfig configures the object-store client.
type BlobConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
}

// BlobStore wraps minio-go for the generated-media object store.
type BlobStore struct {
	client *minio.Client
	bucket string
}

func NewBlobStore(cfg BlobConfig) (*BlobStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("clients: init blob store: %w", err)
	}
	return &BlobStore{client: client, bucket: cfg.Bucket}, nil
}

// Put uploads data under key, failing if the key already exists
// (upsert=false semantics per the object-store key layout contract).
func (b *BlobStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := b.client.StatObject(ctx, b.bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return apperr.New(apperr.KindStorageUploadFailed, fmt.Errorf("key %q already exists", key))
	}
	errResp := minio.ToErrorResponse(err)
	if errResp.Code != "NoSuchKey" && errResp.Code != "NotFound" {
		return apperr.New(apperr.KindStorageUploadFailed, err)
	}

	_, err = b.client.PutObject(ctx, b.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return apperr.New(apperr.KindStorageUploadFailed, err)
	}
	return nil
}

// Get downloads the object at key.
func (b *BlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := b.client.GetObject(ctx, b.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, apperr.New(apperr.KindStorageUploadFailed, err)
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, apperr.New(apperr.KindStorageUploadFailed, err)
	}
	return data, nil
}

// Delete removes the object at key. Failures are logged by the caller
// and swallowed, per the cleanup-failure propagation policy.
func (b *BlobStore) Delete(ctx context.Context, key string) error {
	return b.client.RemoveObject(ctx, b.bucket, key, minio.RemoveObjectOptions{})
}

// PublicURL returns the conventional URL a stored object is addressed by.
// The real deployment fronts the bucket with a CDN/base URL; this keeps
// that mapping in one place.
func (b *BlobStore) PublicURL(baseURL, key string) string {
	return fmt.Sprintf("%s/%s/%s", baseURL, b.bucket, key)
}

// KeyFromPublicURL reverses PublicURL, for callers (job deletion) that
// only have the stored result URL and need the underlying key back.
func (b *BlobStore) KeyFromPublicURL(baseURL, url string) string {
	prefix := fmt.Sprintf("%s/%s/", baseURL, b.bucket)
	return strings.TrimPrefix(url, prefix)
}
