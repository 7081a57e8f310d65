// Package attachment stores requirement attachment bytes in S3-compatible
// object storage. Metadata (name, key, size) stays on the record; this
// service only moves bytes.
package attachment

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"reqtrack/api/internal/util"
)

type Service struct {
	client *minio.Client
	bucket string
}

// New creates the attachment service and ensures the bucket exists. Callers
// skip construction entirely when object storage is not configured.
func New(ctx context.Context, endpoint, accessKey, secretKey, bucket string, useSSL bool) (*Service, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create object storage client: %w", err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", bucket, err)
		}
	}

	return &Service{client: client, bucket: bucket}, nil
}

// Put uploads one attachment and returns the generated object key.
func (s *Service) Put(ctx context.Context, requirementID, filename string, body io.Reader, size int64, contentType string) (string, error) {
	key := fmt.Sprintf("%s/%s/%s", requirementID, util.NewID("att"), filename)
	_, err := s.client.PutObject(ctx, s.bucket, key, body, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("upload attachment %s: %w", key, err)
	}
	return key, nil
}

// PresignedGet returns a time-limited download URL for an attachment key.
func (s *Service) PresignedGet(ctx context.Context, key string, expiry time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, expiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign attachment %s: %w", key, err)
	}
	return u.String(), nil
}

// Remove deletes the attachment object. Removing an absent key is not an
// error.
func (s *Service) Remove(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove attachment %s: %w", key, err)
	}
	return nil
}
