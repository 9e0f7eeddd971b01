package storage

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/pixel-learning/image-label-pipeline/pkg/results"
)

// uploadedBy tags objects written by the CLI so bucket audits can tell
// scripted uploads from application traffic.
const uploadedBy = "analyze-cli"

// S3API is the slice of the S3 client the uploader needs.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Uploader writes local images into the pipeline input bucket.
type Uploader struct {
	api    S3API
	bucket string
}

// NewUploader creates a new uploader for the given input bucket.
func NewUploader(api S3API, bucket string) *Uploader {
	return &Uploader{
		api:    api,
		bucket: bucket,
	}
}

// Upload stores a local file under the given track prefix and returns the
// object key. Objects carry environment and uploaded-by metadata.
func (u *Uploader) Upload(ctx context.Context, filePath, prefix string, tr results.Track) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", filePath, err)
	}
	defer f.Close()

	key := path.Join(prefix, filepath.Base(filePath))
	input := &s3.PutObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
		Body:   f,
		Metadata: map[string]string{
			"environment": tr.String(),
			"uploaded-by": uploadedBy,
		},
	}
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(filePath))); ct != "" {
		input.ContentType = aws.String(ct)
	}

	if _, err := u.api.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("upload s3://%s/%s: %w", u.bucket, key, err)
	}
	return key, nil
}
