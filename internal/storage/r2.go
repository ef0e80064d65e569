package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// R2Storage writes thumbnails into a Cloudflare R2 bucket through the S3 API.
type R2Storage struct {
	client     *s3.Client
	bucketName string
	prefix     string // batch output directory, without surrounding slashes
	publicURL  string
	logger     *slog.Logger
}

// NewR2Storage builds an S3 client for the bucket. No request is made here.
func NewR2Storage(cfg R2Config, logger *slog.Logger) (*R2Storage, error) {
	if cfg.BucketName == "" {
		return nil, fmt.Errorf("r2 bucket name is required")
	}

	region := cfg.Region
	if region == "" {
		region = "auto"
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID)
	}

	client := s3.NewFromConfig(aws.Config{
		Region:      region,
		Credentials: credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
	}, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})

	prefix := strings.Trim(path.Clean("/"+cfg.Prefix), "/")
	logger.Debug("opened R2 output", "bucket", cfg.BucketName, "endpoint", endpoint, "prefix", prefix)

	return &R2Storage{
		client:     client,
		bucketName: cfg.BucketName,
		prefix:     prefix,
		publicURL:  strings.TrimSuffix(cfg.PublicURL, "/"),
		logger:     logger,
	}, nil
}

// R2Opener returns an Opener that uses the output directory as key prefix.
func R2Opener(cfg R2Config, logger *slog.Logger) Opener {
	return func(outputDir string) (Storage, error) {
		c := cfg
		c.Prefix = outputDir
		return NewR2Storage(c, logger)
	}
}

// Put uploads data as the object for key. S3 PUTs replace existing objects.
func (s *R2Storage) Put(ctx context.Context, key string, data io.Reader, contentType string) error {
	objectKey, err := s.objectKey(key)
	if err != nil {
		return &StorageError{Op: "Put", Key: key, Err: err}
	}

	contentType = DetectContentType(contentType, key)
	result, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucketName),
		Key:         aws.String(objectKey),
		Body:        data,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return &StorageError{Op: "Put", Key: key, Err: s.wrapS3Error(err)}
	}

	s.logger.Debug("uploaded object",
		"object_key", objectKey,
		"etag", aws.ToString(result.ETag),
		"content_type", contentType,
	)
	return nil
}

// Exists issues a HEAD request for key.
func (s *R2Storage) Exists(ctx context.Context, key string) (bool, error) {
	objectKey, err := s.objectKey(key)
	if err != nil {
		return false, &StorageError{Op: "Exists", Key: key, Err: err}
	}

	_, err = s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(objectKey),
	})
	if err == nil {
		return true, nil
	}
	if wrapped := s.wrapS3Error(err); !errors.Is(wrapped, ErrNotFound) {
		return false, &StorageError{Op: "Exists", Key: key, Err: wrapped}
	}
	return false, nil
}

// Location returns the public URL of the object when a public domain is
// configured, r2://bucket/key otherwise.
func (s *R2Storage) Location(key string) (string, error) {
	objectKey, err := s.objectKey(key)
	if err != nil {
		return "", &StorageError{Op: "Location", Key: key, Err: err}
	}
	if s.publicURL != "" {
		return s.publicURL + "/" + objectKey, nil
	}
	return fmt.Sprintf("r2://%s/%s", s.bucketName, objectKey), nil
}

// objectKey prepends the prefix to key. Empty keys, absolute keys and keys
// with ".." segments are rejected.
func (s *R2Storage) objectKey(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") {
		return "", ErrInvalidKey
	}
	for _, segment := range strings.Split(key, "/") {
		if segment == ".." {
			return "", ErrInvalidKey
		}
	}
	if s.prefix == "" {
		return key, nil
	}
	return s.prefix + "/" + key, nil
}

// wrapS3Error maps SDK errors onto ErrNotFound and ErrAccessDenied.
func (s *R2Storage) wrapS3Error(err error) error {
	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &notFound) || errors.As(err, &noSuchKey) {
		return ErrNotFound
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return ErrNotFound
		case "AccessDenied", "Forbidden", "InvalidAccessKeyId", "SignatureDoesNotMatch", "NoSuchBucket":
			return fmt.Errorf("%w: %v", ErrAccessDenied, err)
		}
	}

	var httpErr interface{ HTTPStatusCode() int }
	if errors.As(err, &httpErr) {
		switch httpErr.HTTPStatusCode() {
		case http.StatusNotFound:
			return ErrNotFound
		case http.StatusForbidden, http.StatusUnauthorized:
			return fmt.Errorf("%w: %v", ErrAccessDenied, err)
		}
	}

	return fmt.Errorf("r2: %w", err)
}
