// Package storage issues presigned URLs against an S3 compatible bucket.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// PresignedURL is a time-limited URL for a single object operation.
type PresignedURL struct {
	URL       string    `json:"url"`
	Method    string    `json:"method"`
	Key       string    `json:"key"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ObjectStore is what the application needs from object storage.
type ObjectStore interface {
	PresignUpload(ctx context.Context, key, contentType string) (*PresignedURL, error)
	PresignDownload(ctx context.Context, key string) (*PresignedURL, error)
	Delete(ctx context.Context, key string) error
}

type Config struct {
	Bucket          string
	Region          string
	Endpoint        string // optional, for MinIO and other S3 compatibles
	AccessKeyID     string
	SecretAccessKey string
	URLExpiry       time.Duration
}

var ErrMissingBucket = errors.New("storage bucket is required")

type S3Store struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
	expiry  time.Duration
}

// NewS3Store builds a store from the default AWS credential chain, or from
// static keys when both are configured.
func NewS3Store(ctx context.Context, cfg Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, ErrMissingBucket
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3StoreFromClient(client, cfg.Bucket, cfg.URLExpiry), nil
}

func NewS3StoreFromClient(client *s3.Client, bucket string, expiry time.Duration) *S3Store {
	if expiry <= 0 {
		expiry = 15 * time.Minute
	}
	return &S3Store{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  bucket,
		expiry:  expiry,
	}
}

func (s *S3Store) PresignUpload(ctx context.Context, key, contentType string) (*PresignedURL, error) {
	req, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(s.expiry))
	if err != nil {
		return nil, fmt.Errorf("failed to presign upload: %w", err)
	}
	return &PresignedURL{URL: req.URL, Method: req.Method, Key: key, ExpiresAt: time.Now().Add(s.expiry)}, nil
}

func (s *S3Store) PresignDownload(ctx context.Context, key string) (*PresignedURL, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.expiry))
	if err != nil {
		return nil, fmt.Errorf("failed to presign download: %w", err)
	}
	return &PresignedURL{URL: req.URL, Method: req.Method, Key: key, ExpiresAt: time.Now().Add(s.expiry)}, nil
}

func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}
