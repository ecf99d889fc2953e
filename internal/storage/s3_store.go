package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"event-checkin/config"
	apperrors "event-checkin/pkg/app_errors"
	"event-checkin/pkg/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

// ObjectStore keeps check-in photos and QR images and hands back a public URL.
type ObjectStore interface {
	Put(ctx context.Context, key string, body []byte, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
}

type S3StoreImpl struct {
	client        *s3.Client
	bucket        string
	publicBaseURL string
}

// NewS3Store targets any S3-compatible endpoint. It returns a store that fails every
// upload with ErrStorageUnavailable when storage is not configured.
func NewS3Store(cfg config.StorageConfig) ObjectStore {
	if !cfg.Enabled() {
		logger.WithComponent("storage").Warn("object storage not configured, uploads disabled")
		return disabledStore{}
	}

	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}

	base := strings.TrimRight(cfg.PublicBaseURL, "/")
	if base == "" {
		base = strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.Bucket
	}

	return &S3StoreImpl{
		client:        s3.New(opts),
		bucket:        cfg.Bucket,
		publicBaseURL: base,
	}
}

func (s *S3StoreImpl) Put(ctx context.Context, key string, body []byte, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		logger.WithComponent("storage").Error("put object failed", zap.String("key", key), zap.Error(err))
		return "", fmt.Errorf("put %s: %w", key, err)
	}
	return s.publicBaseURL + "/" + key, nil
}

func (s *S3StoreImpl) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

type disabledStore struct{}

func (disabledStore) Put(context.Context, string, []byte, string) (string, error) {
	return "", apperrors.ErrStorageUnavailable
}

func (disabledStore) Delete(context.Context, string) error {
	return apperrors.ErrStorageUnavailable
}
