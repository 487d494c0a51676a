package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	aws_config "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/fabricio9061-glitch/Mi-cartera-inmobiliaria/internal/config"
)

// s3API is the subset of *s3.Client the asset store needs.
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3AssetStore implements AssetStore on an S3 bucket.
type S3AssetStore struct {
	client     s3API
	bucket     string
	publicRead bool
	baseURL    string
}

// NewS3AssetStore creates an S3-backed asset store from the configuration.
func NewS3AssetStore(cfg *config.Config) (*S3AssetStore, error) {
	if cfg.AwsS3Bucket == "" {
		return nil, fmt.Errorf("AWS_S3_BUCKET is required for the s3 asset backend")
	}

	opts := []func(*aws_config.LoadOptions) error{aws_config.WithRegion(cfg.AwsRegion)}
	// Fall back to the default credential chain (IAM role, shared config) when no static keys are set.
	if cfg.AwsAccessKeyID != "" {
		opts = append(opts, aws_config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AwsAccessKeyID,
			cfg.AwsSecretAccessKey,
			"", // session token
		)))
	}
	awsCfg, err := aws_config.LoadDefaultConfig(context.TODO(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return newS3AssetStore(s3.NewFromConfig(awsCfg), cfg), nil
}

func newS3AssetStore(client s3API, cfg *config.Config) *S3AssetStore {
	baseURL := strings.TrimRight(cfg.ImageBaseS3URL, "/")
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.AwsS3Bucket, cfg.AwsRegion)
	}
	return &S3AssetStore{
		client:     client,
		bucket:     cfg.AwsS3Bucket,
		publicRead: cfg.AwsS3PublicRead,
		baseURL:    baseURL,
	}
}

func (s *S3AssetStore) PutBlob(ctx context.Context, path, contentType string, data []byte) (string, error) {
	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(path),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	}
	if s.publicRead {
		input.ACL = types.ObjectCannedACLPublicRead
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("failed to upload object %s to S3: %w", path, err)
	}
	return s.baseURL + "/" + path, nil
}

// DeleteObject removes the object at path. S3 reports success for keys that do not exist.
func (s *S3AssetStore) DeleteObject(ctx context.Context, path string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object %s from S3: %w", path, err)
	}
	return nil
}

func (s *S3AssetStore) PathFromURL(url string) (string, bool) {
	return trimPrefixPath(url, s.baseURL+"/")
}
