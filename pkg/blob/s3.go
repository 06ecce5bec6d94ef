package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/pitchsight/pitchsight/internal/logger"
)

// S3Config contains configuration for the S3 blob store.
type S3Config struct {
	// Bucket is the S3 bucket name (required).
	Bucket string

	// Region is the AWS region.
	Region string

	// Endpoint overrides the S3 endpoint for S3-compatible stores
	// (MinIO, LocalStack). Empty uses AWS.
	Endpoint string

	// AccessKeyID / SecretAccessKey provide static credentials. Empty falls
	// back to the default AWS credential chain.
	AccessKeyID     string
	SecretAccessKey string

	// UsePathStyle forces path-style addressing, required by most
	// S3-compatible endpoints.
	UsePathStyle bool

	// HeadTimeout bounds existence checks; the upload preflight must answer
	// quickly. Default: 5s.
	HeadTimeout time.Duration

	// MaxRetries is the number of retry attempts for transient errors
	// (default 3). Set via config, not per call.
	MaxRetries int

	// RetryBackoff is the initial backoff between retries (default 100ms,
	// doubled per attempt).
	RetryBackoff time.Duration
}

func (c *S3Config) applyDefaults() {
	if c.HeadTimeout <= 0 {
		c.HeadTimeout = 5 * time.Second
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 100 * time.Millisecond
	}
}

// S3Store implements Store backed by Amazon S3 or an S3-compatible endpoint.
// Safe for concurrent use.
type S3Store struct {
	client  *s3.Client
	presign *s3.PresignClient
	config  S3Config
}

// NewS3Store creates the blob store, building an S3 client from the config.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("blob bucket is required")
	}
	cfg.applyDefaults()

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return NewS3StoreWithClient(client, cfg), nil
}

// NewS3StoreWithClient wraps an already-configured S3 client. Useful when the
// caller shares one client between blob and queue plumbing.
func NewS3StoreWithClient(client *s3.Client, cfg S3Config) *S3Store {
	cfg.applyDefaults()
	return &S3Store{
		client:  client,
		presign: s3.NewPresignClient(client),
		config:  cfg,
	}
}

// PresignPut issues a presigned PUT URL bound to the key and content type.
func (s *S3Store) PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (string, error) {
	req, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.config.Bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("failed to presign PUT for %s: %w", key, err)
	}
	return req.URL, nil
}

// Head checks that an object exists at key and returns its size.
func (s *S3Store) Head(ctx context.Context, key string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.HeadTimeout)
	defer cancel()

	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.config.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("failed to HEAD %s: %w", key, err)
	}
	return aws.ToInt64(out.ContentLength), nil
}

// Download streams the object at key into destPath. The destination is
// written via a temporary file and renamed so partial downloads never appear
// at destPath.
func (s *S3Store) Download(ctx context.Context, key, destPath string) error {
	var lastErr error
	backoff := s.config.RetryBackoff

	for attempt := 0; attempt <= s.config.MaxRetries; attempt++ {
		if attempt > 0 {
			logger.Warn("Retrying blob download",
				logger.KeyS3Key, key, "attempt", attempt, logger.KeyError, lastErr)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			backoff *= 2
		}

		lastErr = s.downloadOnce(ctx, key, destPath)
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, ErrNotFound) || ctx.Err() != nil {
			return lastErr
		}
	}
	return fmt.Errorf("failed to download %s after %d attempts: %w", key, s.config.MaxRetries+1, lastErr)
}

func (s *S3Store) downloadOnce(ctx context.Context, key, destPath string) error {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.config.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return ErrNotFound
		}
		return err
	}
	defer out.Body.Close()

	tmp, err := os.CreateTemp(filepath.Dir(destPath), ".download-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, out.Body); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), destPath)
}

// Put writes body at key.
func (s *S3Store) Put(ctx context.Context, key string, body []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.config.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to PUT %s: %w", key, err)
	}
	return nil
}

// Delete removes the object at key; deleting a missing object succeeds.
func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.config.Bucket),
		Key:    aws.String(key),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to DELETE %s: %w", key, err)
	}
	return nil
}

// isNotFound recognizes the S3 variants of "object does not exist": typed
// NotFound/NoSuchKey errors plus the generic API error codes HEAD returns.
func isNotFound(err error) bool {
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}
