package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"

	"docqa/internal/docqa/derrors"
	"docqa/internal/docqa/interfaces"

	"github.com/minio/minio-go/v7"
)

// Putter is the subset of the MinIO client used for uploads.
type Putter interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// MinIOStore writes uploads into a single bucket of an S3-compatible store.
type MinIOStore struct {
	client  Putter
	bucket  string
	baseURL string
}

var _ interfaces.ObjectStore = (*MinIOStore)(nil)

// NewMinIOStore builds a store over an already connected client. endpoint is a bare host[:port].
func NewMinIOStore(client Putter, bucket, endpoint string, secure bool) *MinIOStore {
	scheme := "http"
	if secure {
		scheme = "https"
	}
	return &MinIOStore{
		client:  client,
		bucket:  bucket,
		baseURL: fmt.Sprintf("%s://%s/%s", scheme, endpoint, bucket),
	}
}

// Put stores data under key, overwriting any existing object.
func (s *MinIOStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", derrors.Unavailable("object store", fmt.Errorf("put %s: %w", key, err))
	}
	return s.URL(key), nil
}

func (s *MinIOStore) URL(key string) string {
	return s.baseURL + "/" + url.PathEscape(key)
}
