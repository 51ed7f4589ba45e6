// Package archive stages provider export files in S3 so large uploads can
// bypass the API process: the client PUTs to a presigned URL, then starts
// an import by key. Files are fetched back for parsing and kept as the
// audit copy of what was imported.
package archive

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// Archive is the S3-backed import-file store.
type Archive struct {
	client *s3.Client
	bucket string
}

// New creates an archive over the given bucket. A non-empty endpoint
// switches to path-style addressing with static test credentials, which is
// what LocalStack and MinIO expect in development.
func New(ctx context.Context, bucket, region, endpoint string) (*Archive, error) {
	if bucket == "" {
		return nil, fmt.Errorf("bucket cannot be empty")
	}
	if region == "" {
		return nil, fmt.Errorf("region cannot be empty")
	}

	if endpoint != "" {
		cfg, err := awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(region),
			awsconfig.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider("test", "test", ""),
			),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		client := s3.NewFromConfig(cfg, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		})
		return &Archive{client: client, bucket: bucket}, nil
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &Archive{client: s3.NewFromConfig(cfg), bucket: bucket}, nil
}

// GenerateKey builds a unique object key for an export file:
// imports/{timestamp}-{uniqueID}-{sanitized filename}.
func (a *Archive) GenerateKey(filename string) (string, error) {
	if filename == "" {
		return "", fmt.Errorf("filename cannot be empty")
	}

	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filepath.Base(filename), ext)
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			return r
		}
		return '-'
	}, base)

	return fmt.Sprintf("imports/%d-%s-%s%s",
		time.Now().UTC().Unix(), uuid.New().String()[:8], base, ext), nil
}

// PresignUpload returns a presigned PUT URL for the given key.
func (a *Archive) PresignUpload(ctx context.Context, key, contentType string, expiry time.Duration) (string, error) {
	if key == "" {
		return "", fmt.Errorf("key cannot be empty")
	}
	if expiry <= 0 {
		return "", fmt.Errorf("expiry must be positive")
	}

	input := &s3.PutObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	presigner := s3.NewPresignClient(a.client)
	req, err := presigner.PresignPutObject(ctx, input, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", fmt.Errorf("failed to presign upload: %w", err)
	}
	return req.URL, nil
}

// Fetch streams a staged file back for parsing.
func (a *Archive) Fetch(ctx context.Context, key string) (io.ReadCloser, error) {
	if key == "" {
		return nil, fmt.Errorf("key cannot be empty")
	}
	out, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", key, err)
	}
	return out.Body, nil
}

// Delete removes a staged file, e.g. after a failed validation.
func (a *Archive) Delete(ctx context.Context, key string) error {
	if key == "" {
		return fmt.Errorf("key cannot be empty")
	}
	_, err := a.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}
