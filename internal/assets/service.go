// Package assets stores project image assets (covers, image bleeds) in
// S3-compatible object storage.
package assets

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type Service struct {
	client *minio.Client
	bucket string
}

// New connects to the object store and makes sure the bucket exists.
func New(ctx context.Context, endpoint, accessKey, secretKey, bucket string, useSSL bool) (*Service, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("connect object store: %w", err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}

	return &Service{client: client, bucket: bucket}, nil
}

// objectKey namespaces assets per project and strips path tricks from
// the filename.
func objectKey(projectID, filename string) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	return projectID + "/" + base
}

// Put uploads an image and returns its object key.
func (s *Service) Put(ctx context.Context, projectID, filename, contentType string, r io.Reader, size int64) (string, error) {
	key := objectKey(projectID, filename)
	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("put asset: %w", err)
	}
	return key, nil
}

// Get opens an asset for reading. The caller closes the reader.
func (s *Service) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get asset: %w", err)
	}
	return obj, nil
}

// PresignedURL returns a time-limited URL for direct asset access, for
// the editing surface to reference in image nodes.
func (s *Service) PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, ttl, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign asset url: %w", err)
	}
	return u.String(), nil
}

// DeleteProject removes every asset under a project's prefix.
func (s *Service) DeleteProject(ctx context.Context, projectID string) error {
	objects := s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    projectID + "/",
		Recursive: true,
	})
	for obj := range objects {
		if obj.Err != nil {
			return fmt.Errorf("list assets: %w", obj.Err)
		}
		if err := s.client.RemoveObject(ctx, s.bucket, obj.Key, minio.RemoveObjectOptions{}); err != nil {
			return fmt.Errorf("remove asset %s: %w", obj.Key, err)
		}
	}
	return nil
}
