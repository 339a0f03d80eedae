package s3store

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/ashevtsov/bitrix-backup/internal/config"
)

// Store implements ObjectStore against a single bucket on an
// S3-compatible endpoint using the minio client.
type Store struct {
	client *minio.Client
	bucket string
}

// NewFromConfig builds a Store from the main s3 config section.
// A nil section is a configuration error, not a crash.
func NewFromConfig(cfg *config.S3Config) (*Store, error) {
	if cfg == nil {
		return nil, errors.New("s3 storage requested but the s3 config section is missing")
	}
	return newStore(cfg.EndpointURL, cfg.AccessKey, cfg.SecretKey, cfg.BucketName)
}

// NewFromWorkConfig builds a Store for the work file storage bucket.
func NewFromWorkConfig(cfg *config.S3WorkConfig) (*Store, error) {
	if cfg == nil {
		return nil, errors.New("s3 work storage requested but the s3WorkStorage config section is missing")
	}
	return newStore(cfg.EndpointURL, cfg.AccessKey, cfg.SecretKey, cfg.BucketName)
}

func newStore(endpoint, accessKey, secretKey, bucket string) (*Store, error) {
	if bucket == "" {
		return nil, errors.New("s3 bucket name is required")
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse s3 endpoint %q: %w", endpoint, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("s3 endpoint %q has no host", endpoint)
	}
	client, err := minio.New(u.Host, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: u.Scheme != "http",
		Region: "us-east-1",
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client for %s: %w", u.Host, err)
	}
	return &Store{client: client, bucket: bucket}, nil
}

func (s *Store) Bucket() string { return s.bucket }

func (s *Store) BucketExists(ctx context.Context) (bool, error) {
	ok, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return false, fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	return ok, nil
}

func (s *Store) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var objects []ObjectInfo
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list %s/%s: %w", s.bucket, prefix, obj.Err)
		}
		objects = append(objects, ObjectInfo{
			Key:          obj.Key,
			Size:         obj.Size,
			LastModified: obj.LastModified,
		})
	}
	return objects, nil
}

func (s *Store) Upload(ctx context.Context, key, path string, metadata map[string]string) error {
	_, err := s.client.FPutObject(ctx, s.bucket, key, path, minio.PutObjectOptions{
		UserMetadata: metadata,
	})
	if err != nil {
		return fmt.Errorf("upload %s to %s/%s: %w", path, s.bucket, key, err)
	}
	return nil
}

func (s *Store) Remove(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove %s/%s: %w", s.bucket, key, err)
	}
	return nil
}

// RemovePrefix deletes everything under prefix. The minio client
// batches the delete requests at the S3 limit of 1000 keys each.
func (s *Store) RemovePrefix(ctx context.Context, prefix string) (int, error) {
	objects, err := s.List(ctx, prefix)
	if err != nil {
		return 0, err
	}
	if len(objects) == 0 {
		return 0, nil
	}

	objectsCh := make(chan minio.ObjectInfo, len(objects))
	for _, obj := range objects {
		objectsCh <- minio.ObjectInfo{Key: obj.Key}
	}
	close(objectsCh)

	for rErr := range s.client.RemoveObjects(ctx, s.bucket, objectsCh, minio.RemoveObjectsOptions{}) {
		if rErr.Err != nil {
			return 0, fmt.Errorf("remove %s/%s: %w", s.bucket, rErr.ObjectName, rErr.Err)
		}
	}
	return len(objects), nil
}

// Copy performs a server-side copy. Both stores must live on the same
// endpoint; S3 cannot copy across providers server-side.
func (s *Store) Copy(ctx context.Context, src ObjectStore, srcKey, dstKey string) error {
	srcStore, ok := src.(*Store)
	if !ok {
		return fmt.Errorf("server-side copy needs an s3 source, got %T", src)
	}
	_, err := s.client.CopyObject(ctx,
		minio.CopyDestOptions{Bucket: s.bucket, Object: dstKey},
		minio.CopySrcOptions{Bucket: srcStore.bucket, Object: srcKey},
	)
	if err != nil {
		return fmt.Errorf("copy %s/%s to %s/%s: %w", srcStore.bucket, srcKey, s.bucket, dstKey, err)
	}
	return nil
}
