package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

var ErrInvalidR2Config = errors.New("invalid Cloudflare R2 configuration: all fields are required")

type CloudflareR2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicBaseURL   string
}

// IsZero reports whether R2 is left unconfigured.
func (c CloudflareR2Config) IsZero() bool {
	return c == CloudflareR2Config{}
}

func (c CloudflareR2Config) Validate() error {
	if c.AccountID == "" || c.AccessKeyID == "" || c.SecretAccessKey == "" || c.BucketName == "" || c.PublicBaseURL == "" {
		return ErrInvalidR2Config
	}
	if _, err := url.Parse(c.PublicBaseURL); err != nil {
		return fmt.Errorf("%w: public base url: %v", ErrInvalidR2Config, err)
	}
	return nil
}

// s3API is the subset of *s3.Client used by the R2 store.
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type cloudflareR2Store struct {
	s3Client      s3API
	bucketName    string
	publicBaseURL string
}

func NewCloudflareR2Store(ctx context.Context, cfg CloudflareR2Config) (ObjectStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	sdkCfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")),
		config.WithRegion("auto"), // R2 подписывает запросы регионом auto
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS SDK config for R2: %w", err)
	}

	endpoint := fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID)
	s3Client := s3.NewFromConfig(sdkCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
	})

	return newCloudflareR2Store(s3Client, cfg.BucketName, cfg.PublicBaseURL), nil
}

func newCloudflareR2Store(client s3API, bucket, publicBaseURL string) *cloudflareR2Store {
	return &cloudflareR2Store{
		s3Client:      client,
		bucketName:    bucket,
		publicBaseURL: publicBaseURL,
	}
}

func (u *cloudflareR2Store) Upload(ctx context.Context, key string, contentType string, reader io.Reader) (*UploadResult, error) {
	result, err := u.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucketName),
		Key:         aws.String(key),
		Body:        reader,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload object to R2 (key: %s): %w", key, err)
	}

	etag := ""
	if result.ETag != nil {
		// ETag приходит в двойных кавычках.
		etag = strings.Trim(*result.ETag, "\"")
	}

	return &UploadResult{
		Key:      key,
		Location: u.GetPublicURL(key),
		ETag:     etag,
	}, nil
}

func (u *cloudflareR2Store) Delete(ctx context.Context, key string) error {
	_, err := u.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(u.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object from R2 (key: %s): %w", key, err)
	}
	return nil
}

func (u *cloudflareR2Store) GetPublicURL(key string) string {
	if u.publicBaseURL == "" || key == "" {
		return ""
	}
	full, err := url.JoinPath(u.publicBaseURL, strings.TrimPrefix(key, "/"))
	if err != nil {
		return ""
	}
	return full
}
