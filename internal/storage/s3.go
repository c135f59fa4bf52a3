package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/xkilldash9x/agentforge/internal/config"
)

// bucketManager is the slice of the minio client used to prepare the bucket.
type bucketManager interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
}

// S3Store keeps artifacts in an S3-compatible bucket. The bucket is created on
// first use if it does not exist. A failed check is retried on the next call.
type S3Store struct {
	client  *minio.Client
	buckets bucketManager
	bucket  string
	region  string
	logger  *zap.Logger

	mu    sync.Mutex
	ready bool
}

func NewS3Store(_ context.Context, cfg config.S3Config, logger *zap.Logger) (*S3Store, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("s3 access key and secret key are required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}

	return &S3Store{
		client:  client,
		buckets: client,
		bucket:  bucket,
		region:  region,
		logger:  logger.Named("storage.s3").With(zap.String("bucket", bucket)),
	}, nil
}

func (s *S3Store) ensureBucket(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return nil
	}

	exists, err := s.buckets.BucketExists(ctx, s.bucket)
	if err != nil {
		return err
	}
	if !exists {
		s.logger.Info("Creating bucket", zap.String("region", s.region))
		if err := s.buckets.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
			return err
		}
	}
	s.ready = true
	return nil
}

func (s *S3Store) WriteText(ctx context.Context, p, content string) error {
	return s.put(ctx, p, []byte(content), "text/plain; charset=utf-8")
}

func (s *S3Store) WriteStructured(ctx context.Context, p string, v any) error {
	data, err := marshalStructured(v)
	if err != nil {
		return storageErr("write", p, err)
	}
	return s.put(ctx, p, data, "application/json")
}

func (s *S3Store) put(ctx context.Context, p string, data []byte, contentType string) error {
	key, err := cleanKey(p)
	if err != nil {
		return storageErr("write", p, err)
	}
	if err := s.ensureBucket(ctx); err != nil {
		return storageErr("write", p, fmt.Errorf("ensure bucket: %w", err))
	}
	_, err = s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return storageErr("write", p, err)
	}
	s.logger.Debug("Artifact uploaded", zap.String("key", key), zap.Int("bytes", len(data)))
	return nil
}

func (s *S3Store) ReadText(ctx context.Context, p string) (string, error) {
	key, err := cleanKey(p)
	if err != nil {
		return "", storageErr("read", p, err)
	}
	if err := s.ensureBucket(ctx); err != nil {
		return "", storageErr("read", p, fmt.Errorf("ensure bucket: %w", err))
	}

	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return "", storageErr("read", p, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		errResp := minio.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" || errResp.Code == "NoSuchBucket" {
			return "", storageErr("read", p, ErrNotFound)
		}
		return "", storageErr("read", p, err)
	}
	return string(data), nil
}
