// Package storage resolves media keys of local entities into URLs the
// remote record store can fetch as attachments.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	"github.com/overviewcreative/happyplacev2-sub013/internal/domain/integration"
	infraconfig "github.com/overviewcreative/happyplacev2-sub013/internal/infrastructure/config"
)

var (
	// ErrMediaKeyRequired is returned for an empty key
	ErrMediaKeyRequired = errors.New("storage: media key is required")
	// ErrMediaNotFound is returned when object verification finds no object
	ErrMediaNotFound = errors.New("storage: media object not found")
)

var _ integration.MediaURLResolver = (*S3MediaResolver)(nil)

// S3MediaResolver presigns GET URLs for objects in an S3-compatible bucket
type S3MediaResolver struct {
	client        *s3.Client
	presignClient *s3.PresignClient
	bucket        string
	expiry        time.Duration
	verify        bool
	logger        *zap.Logger
}

// S3MediaOption is a functional option for configuring S3MediaResolver
type S3MediaOption func(*S3MediaResolver)

// WithLogger sets a custom logger
func WithLogger(logger *zap.Logger) S3MediaOption {
	return func(r *S3MediaResolver) {
		r.logger = logger
	}
}

// NewS3MediaResolver creates a resolver from configuration. Credentials fall
// back to the default AWS chain when no static keys are configured.
func NewS3MediaResolver(ctx context.Context, cfg *infraconfig.StorageConfig, opts ...S3MediaOption) (*S3MediaResolver, error) {
	if cfg == nil {
		return nil, errors.New("storage configuration is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("storage bucket is required")
	}
	if (cfg.AccessKeyID == "") != (cfg.SecretAccessKey == "") {
		return nil, errors.New("storage access key id and secret must be set together")
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	endpoint := cfg.Endpoint
	if endpoint != "" && !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "https://" + endpoint
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	r := &S3MediaResolver{
		client:        client,
		presignClient: s3.NewPresignClient(client),
		bucket:        cfg.Bucket,
		expiry:        cfg.PresignExpiry,
		verify:        cfg.VerifyObjects,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.expiry <= 0 {
		r.expiry = 7 * 24 * time.Hour
	}
	return r, nil
}

// ResolveURL returns a presigned GET URL for key
func (r *S3MediaResolver) ResolveURL(ctx context.Context, key string) (string, error) {
	key = strings.TrimPrefix(strings.TrimSpace(key), "/")
	if key == "" {
		return "", ErrMediaKeyRequired
	}

	if r.verify {
		exists, err := r.ObjectExists(ctx, key)
		if err != nil {
			return "", err
		}
		if !exists {
			r.logger.Debug("Media object missing", zap.String("key", key))
			return "", fmt.Errorf("%w: %s", ErrMediaNotFound, key)
		}
	}

	req, err := r.presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(r.expiry))
	if err != nil {
		return "", fmt.Errorf("failed to presign media URL: %w", err)
	}
	return req.URL, nil
}

// ObjectExists checks if an object exists in the bucket
func (r *S3MediaResolver) ObjectExists(ctx context.Context, key string) (bool, error) {
	_, err := r.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}

	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &notFound) || errors.As(err, &noSuchKey) {
		return false, nil
	}
	// Some S3-compatible services report a missing key differently
	if strings.Contains(err.Error(), "NotFound") || strings.Contains(err.Error(), "NoSuchKey") {
		return false, nil
	}
	return false, fmt.Errorf("failed to check media object: %w", err)
}

// Bucket returns the bucket name
func (r *S3MediaResolver) Bucket() string {
	return r.bucket
}
