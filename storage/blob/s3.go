package blob

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/indieinfra/simmer/config"
	"github.com/indieinfra/simmer/storage/entity"
)

// s3Client is the subset of the minio client the store uses; it allows
// substitution in tests.
type s3Client interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
	ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
}

var newMinioClient = func(endpoint string, opts *minio.Options) (s3Client, error) {
	return minio.New(endpoint, opts)
}

// S3Store uploads entity media to S3 or any compatible service (R2,
// Backblaze, MinIO). Object keys are <prefix><kind>/<id>/<filename>.
type S3Store struct {
	client s3Client
	bucket string
	prefix string
}

func NewS3Store(cfg *config.S3MediaStrategy) (*S3Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("s3 media config is nil")
	}

	region := strings.TrimSpace(cfg.Region)
	if strings.EqualFold(region, "auto") {
		region = ""
	}

	endpointHost := strings.TrimSpace(cfg.Endpoint)
	if endpointHost == "" {
		if region == "" {
			endpointHost = "s3.amazonaws.com"
		} else {
			endpointHost = fmt.Sprintf("s3.%s.amazonaws.com", region)
		}
	} else {
		if parsed, err := url.Parse(endpointHost); err == nil && parsed.Host != "" {
			endpointHost = parsed.Host
		}
	}

	client, err := newMinioClient(endpointHost, &minio.Options{
		Creds:        credentials.NewStaticV4(cfg.AccessKeyId, cfg.SecretKeyId, ""),
		Secure:       true,
		Region:       region,
		BucketLookup: minio.BucketLookupAuto,
	})

	if err != nil {
		return nil, fmt.Errorf("failed to create s3 client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to verify s3 bucket %q: %w", cfg.Bucket, err)
	}

	if !exists {
		return nil, fmt.Errorf("s3 bucket %q does not exist or is not accessible", cfg.Bucket)
	}

	prefix := strings.Trim(cfg.Prefix, "/")
	if prefix != "" {
		prefix += "/"
	}

	return &S3Store{
		client: client,
		bucket: cfg.Bucket,
		prefix: prefix,
	}, nil
}

func (s *S3Store) entityPrefix(ref entity.Ref) string {
	return fmt.Sprintf("%s%s/%s/", s.prefix, ref.Kind, ref.ID)
}

func (s *S3Store) objectKey(ref entity.Ref, filename string) string {
	return s.entityPrefix(ref) + filename
}

func (s *S3Store) Write(ctx context.Context, ref entity.Ref, filename string, r io.Reader, size int64) error {
	if strings.Contains(filename, "/") {
		return fmt.Errorf("invalid media filename %q", filename)
	}

	key := s.objectKey(ref, filename)
	if _, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{}); err != nil {
		return fmt.Errorf("upload to s3 failed: %w", err)
	}

	return nil
}

func (s *S3Store) Remove(ctx context.Context, ref entity.Ref, filename string) error {
	if strings.Contains(filename, "/") {
		return fmt.Errorf("invalid media filename %q", filename)
	}

	key := s.objectKey(ref, filename)
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete from s3 failed: %w", err)
	}

	return nil
}

func (s *S3Store) RemoveAll(ctx context.Context, ref entity.Ref) error {
	names, err := s.List(ctx, ref)
	if err != nil {
		return err
	}

	for _, name := range names {
		if err := s.Remove(ctx, ref, name); err != nil {
			return err
		}
	}

	return nil
}

func (s *S3Store) List(ctx context.Context, ref entity.Ref) ([]string, error) {
	prefix := s.entityPrefix(ref)
	names := []string{}

	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list s3 objects failed: %w", obj.Err)
		}
		names = append(names, strings.TrimPrefix(obj.Key, prefix))
	}

	return names, nil
}
