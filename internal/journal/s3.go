package journal

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// minPartSize is the smallest multipart part S3 accepts.
const minPartSize int64 = 5 * 1024 * 1024

// S3Config locates the archive bucket. Endpoint is empty for AWS and set for
// S3-compatible stores (MinIO, R2).
type S3Config struct {
	Endpoint       string
	Region         string
	Bucket         string
	Prefix         string
	AccessKey      string
	SecretKey      string
	UseSSL         bool
	ForcePathStyle bool
	// PartSize is the multipart chunk size, clamped to 5 MiB.
	PartSize int64
	// RemoveLocal deletes a file after a successful upload.
	RemoveLocal bool
}

// S3Archiver uploads rotated journal files under Prefix/<file name>.
type S3Archiver struct {
	uploader    *manager.Uploader
	bucket      string
	prefix      string
	removeLocal bool
}

// NewS3Archiver builds the S3 client and uploader.
func NewS3Archiver(ctx context.Context, cfg S3Config) (*S3Archiver, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("journal: s3 bucket is required")
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("journal: s3 region is required")
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("journal: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(normaliseEndpoint(cfg.Endpoint, cfg.UseSSL))
		}
		o.UsePathStyle = cfg.ForcePathStyle
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
	})

	partSize := cfg.PartSize
	if partSize < minPartSize {
		partSize = minPartSize
	}
	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = partSize
	})

	return &S3Archiver{
		uploader:    uploader,
		bucket:      cfg.Bucket,
		prefix:      cfg.Prefix,
		removeLocal: cfg.RemoveLocal,
	}, nil
}

// Key returns the object key for a local journal file.
func (a *S3Archiver) Key(file string) string {
	return path.Join(a.prefix, filepath.Base(file))
}

// Archive uploads file and optionally removes it.
func (a *S3Archiver) Archive(ctx context.Context, file string) error {
	f, err := os.Open(file)
	if err != nil {
		return fmt.Errorf("open %s: %w", file, err)
	}
	defer f.Close()

	key := a.Key(file)
	_, err = a.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return fmt.Errorf("upload s3://%s/%s: %w", a.bucket, key, err)
	}

	if a.removeLocal {
		f.Close()
		if err := os.Remove(file); err != nil {
			return fmt.Errorf("remove %s: %w", file, err)
		}
	}
	return nil
}

// normaliseEndpoint adds a scheme to a bare host:port endpoint.
func normaliseEndpoint(endpoint string, useSSL bool) string {
	parsed, err := url.Parse(endpoint)
	if err == nil && parsed.Scheme != "" && parsed.Host != "" {
		return endpoint
	}
	scheme := "http"
	if useSSL {
		scheme = "https"
	}
	return scheme + "://" + endpoint
}

var _ Archiver = (*S3Archiver)(nil)
