// Package images stores and serves vehicle imagery through an S3-compatible
// object store. Objects are keyed automobileID/fileName so a vehicle's images
// share a prefix.
package images

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ErrNotFound reports that the requested object does not exist.
var ErrNotFound = errors.New("images: object not found")

// Config carries the object store connection settings.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
}

// Image is a downloaded object plus the metadata a handler needs to serve it.
type Image struct {
	Data        []byte
	ContentType string
}

// Service wraps the object store client for vehicle images.
type Service struct {
	client *minio.Client
	bucket string
	logger *slog.Logger
}

func New(cfg Config, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("connect object store: %w", err)
	}
	return &Service{client: client, bucket: cfg.Bucket, logger: logger}, nil
}

// EnsureBucket creates the image bucket if it does not exist yet.
func (s *Service) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %q: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %q: %w", s.bucket, err)
	}
	s.logger.Info("created image bucket", "bucket", s.bucket)
	return nil
}

// Upload stores one image under automobileID/fileName and returns the object key.
func (s *Service) Upload(ctx context.Context, automobileID, fileName, contentType string, data []byte) (string, error) {
	if err := s.EnsureBucket(ctx); err != nil {
		return "", err
	}
	key := path.Join(automobileID, fileName)
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("upload %q: %w", key, err)
	}
	s.logger.Info("uploaded image", "bucket", s.bucket, "key", key, "bytes", len(data))
	return key, nil
}

// Get downloads one image. Returns ErrNotFound when the key does not exist.
func (s *Service) Get(ctx context.Context, automobileID, fileName string) (*Image, error) {
	key := path.Join(automobileID, fileName)
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get %q: %w", key, err)
	}
	defer obj.Close()

	// GetObject is lazy; Stat surfaces the missing-key error.
	info, err := obj.Stat()
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("stat %q: %w", key, err)
	}

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", key, err)
	}
	return &Image{Data: data, ContentType: info.ContentType}, nil
}
