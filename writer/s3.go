package writer

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	appconfig "quotelens/config"
	"quotelens/logger"
)

// Uploader mirrors a run's report files to an S3 bucket. Reports are written
// locally first, so an upload failure never loses data.
type Uploader struct {
	client *s3.Client
	bucket string
	prefix string
	log    *logger.Log
}

// NewUploader builds the S3 client from the storage section of the
// configuration.
func NewUploader(ctx context.Context, cfg *appconfig.Config) (*Uploader, error) {
	log := logger.GetLogger()

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Storage.S3.Region),
	}
	if cfg.Storage.S3.AccessKeyID != "" && cfg.Storage.S3.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				cfg.Storage.S3.AccessKeyID,
				cfg.Storage.S3.SecretAccessKey,
				"",
			),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS configuration: %w", err)
	}

	creds, err := awsCfg.Credentials.Retrieve(ctx)
	if err != nil || !creds.HasKeys() {
		return nil, fmt.Errorf("aws credentials not found")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Storage.S3.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Storage.S3.Endpoint)
		}
		o.UsePathStyle = cfg.Storage.S3.PathStyle
	})

	log.WithComponent("s3_uploader").WithFields(logger.Fields{
		"bucket":     cfg.Storage.S3.Bucket,
		"region":     cfg.Storage.S3.Region,
		"endpoint":   cfg.Storage.S3.Endpoint,
		"path_style": cfg.Storage.S3.PathStyle,
	}).Info("s3 uploader initialized")

	return &Uploader{
		client: client,
		bucket: cfg.Storage.S3.Bucket,
		prefix: cfg.Storage.S3.Prefix,
		log:    log,
	}, nil
}

// Upload mirrors the given local report files under a per-run key prefix.
// The first failure aborts the remaining uploads.
func (u *Uploader) Upload(ctx context.Context, runAt time.Time, paths []string) error {
	log := u.log.WithComponent("s3_uploader")

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s for upload: %w", path, err)
		}

		key := u.objectKey(runAt, filepath.Base(path))
		input := &s3.PutObjectInput{
			Bucket:      aws.String(u.bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(data),
			ContentType: aws.String(contentType(path)),
		}
		if _, err := u.client.PutObject(ctx, input); err != nil {
			return fmt.Errorf("upload to S3 bucket %s key %s: %w", u.bucket, key, err)
		}

		logger.IncrementUpload(len(data))
		log.WithFields(logger.Fields{
			"s3_key":    key,
			"file_size": len(data),
		}).Info("report uploaded")
	}
	return nil
}

// objectKey partitions uploads by date, then run time, so each poll cycle
// lands in its own directory.
func (u *Uploader) objectKey(runAt time.Time, name string) string {
	ts := runAt.UTC()
	parts := []string{}
	if u.prefix != "" {
		parts = append(parts, u.prefix)
	}
	parts = append(parts,
		fmt.Sprintf("date=%s", ts.Format("2006-01-02")),
		ts.Format("150405"),
		name,
	)
	return strings.Join(parts, "/")
}

func contentType(path string) string {
	switch filepath.Ext(path) {
	case ".csv":
		return "text/csv"
	case ".parquet":
		return "application/octet-stream"
	default:
		return "application/octet-stream"
	}
}
