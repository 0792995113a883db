package repositories

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rohits-web03/peerlink/internal/config"
	"github.com/rs/zerolog/log"
)

// ObjectStore stores blobs in a single S3-compatible bucket.
type ObjectStore struct {
	client    *s3.Client
	presigner *s3.PresignClient
	bucket    string
	timeout   time.Duration
}

// NewObjectStore builds the client from static credentials. An R2 account ID
// is turned into its endpoint when no explicit endpoint is configured.
func NewObjectStore(cfg config.S3Config) (*ObjectStore, error) {
	if cfg.BucketName == "" {
		return nil, errors.New("bucket name is required")
	}

	endpoint := cfg.Endpoint
	if endpoint == "" && cfg.AccountID != "" {
		endpoint = fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID)
	}

	awsCfg := aws.Config{
		Region: cfg.Region,
	}
	if cfg.AccessKeyID != "" {
		awsCfg.Credentials = credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	} else {
		awsCfg.Credentials = aws.AnonymousCredentials{}
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	log.Info().Str("bucket", cfg.BucketName).Str("endpoint", endpoint).Msg("Successfully initialized object store client")

	return &ObjectStore{
		client:    client,
		presigner: s3.NewPresignClient(client),
		bucket:    cfg.BucketName,
		timeout:   timeout,
	}, nil
}

// Put uploads body under key. body should be seekable when the endpoint is plain HTTP.
func (s *ObjectStore) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	return nil
}

// Delete removes key. S3 treats deleting a missing key as success.
func (s *ObjectStore) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	return nil
}

// PresignDownload returns a GET URL valid for expires that makes browsers save
// the blob as filename with a generic binary content type.
func (s *ObjectStore) PresignDownload(ctx context.Context, key, filename string, expires time.Duration) (string, error) {
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket:                     aws.String(s.bucket),
		Key:                        aws.String(key),
		ResponseContentDisposition: aws.String(ContentDisposition(filename)),
		ResponseContentType:        aws.String("application/octet-stream"),
	}, s3.WithPresignExpires(expires))
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return req.URL, nil
}

// ContentDisposition builds an attachment header value; quotes and
// backslashes in the name are replaced so the header stays well-formed.
func ContentDisposition(filename string) string {
	safe := strings.NewReplacer(`"`, "_", `\`, "_", "\r", "", "\n", "").Replace(filename)
	return fmt.Sprintf(`attachment; filename="%s"`, safe)
}
