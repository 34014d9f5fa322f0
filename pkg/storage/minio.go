package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path"
	"path/filepath"
	"time"

	"agri-search-go/internal/config"
	"agri-search-go/pkg/log"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOSink uploads files to a bucket and returns a presigned GET URL.
type MinIOSink struct {
	client *minio.Client
	bucket string
	expiry time.Duration
}

// NewMinIOSink connects to MinIO and makes sure the bucket exists.
func NewMinIOSink(ctx context.Context, cfg config.MinIOConfig) (*MinIOSink, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.BucketName, err)
	}
	if !exists {
		log.Infof("Bucket '%s' does not exist, creating it", cfg.BucketName)
		if err := client.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.BucketName, err)
		}
	}
	log.Infof("MinIO sink ready, bucket '%s'", cfg.BucketName)

	expiry := time.Duration(cfg.LinkExpiryMin) * time.Minute
	if expiry <= 0 {
		expiry = time.Hour
	}
	return &MinIOSink{client: client, bucket: cfg.BucketName, expiry: expiry}, nil
}

// Save stores r under "<date>/<uuid>/<name>". PutObject is atomic on the
// server side, so a failed stream leaves no object.
func (s *MinIOSink) Save(ctx context.Context, name string, r io.Reader, size int64) (string, error) {
	name = sanitize(name)
	object := path.Join(time.Now().Format("2006-01-02"), uuid.NewString(), name)

	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := s.client.PutObject(ctx, s.bucket, object, r, size, minio.PutObjectOptions{
		ContentType:        contentType,
		ContentDisposition: fmt.Sprintf("attachment; filename=%q", name),
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", object, err)
	}

	u, err := s.client.PresignedGetObject(ctx, s.bucket, object, s.expiry, nil)
	if err != nil {
		log.Errorf("Error generating presigned URL: %s", err)
		return "", fmt.Errorf("presign %s: %w", object, err)
	}
	return u.String(), nil
}
