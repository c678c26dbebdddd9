// Package objstore issues presigned S3 URLs for video blobs. Uploads never
// pass through this process: the client PUTs directly against the bucket and
// then registers the object key with the video API.
package objstore

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/viberoll/viberoll/config"
)

const presignExpiry = 15 * time.Minute

type Store struct {
	presign *s3.PresignClient
	bucket  string
}

func New(ctx context.Context, cfg *config.Config) (*Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Storage.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.Storage.AccessKey,
			cfg.Storage.SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("failed to load s3 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Storage.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Storage.Endpoint)
		}
	})

	return &Store{
		presign: s3.NewPresignClient(client),
		bucket:  cfg.Storage.Bucket,
	}, nil
}

// NewObjectKey returns a fresh date-partitioned storage key.
func NewObjectKey() string {
	d := time.Now().UTC()
	return fmt.Sprintf("videos/%d/%02d/%02d/%v", d.Year(), d.Month(), d.Day(), uuid.New())
}

// PresignPut returns a URL the client can PUT the video bytes to, plus the
// object key to register afterwards.
func (s *Store) PresignPut(ctx context.Context) (string, string, error) {
	key := NewObjectKey()
	req, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(presignExpiry))
	if err != nil {
		return "", "", fmt.Errorf("failed to presign put: %w", err)
	}
	return req.URL, key, nil
}

// PresignGet returns a time-limited download URL for a stored object.
func (s *Store) PresignGet(ctx context.Context, key string) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(presignExpiry))
	if err != nil {
		return "", fmt.Errorf("failed to presign get: %w", err)
	}
	return req.URL, nil
}
