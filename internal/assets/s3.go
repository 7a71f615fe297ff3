package assets

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/wolfman30/uootd-quotes/internal/storage"
	"github.com/wolfman30/uootd-quotes/pkg/dataurl"
	"github.com/wolfman30/uootd-quotes/pkg/logging"
)

// S3API is the subset of the S3 client used by S3Mirror.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Mirror copies decoded inline images into a bucket. It is a secondary
// copy only; reads are always served from the primary store.
type S3Mirror struct {
	bucket string
	client S3API
	logger *logging.Logger
}

// NewS3Mirror returns nil when bucket or client is missing.
func NewS3Mirror(client S3API, bucket string, logger *logging.Logger) *S3Mirror {
	bucket = strings.TrimSpace(bucket)
	if client == nil || bucket == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &S3Mirror{bucket: bucket, client: client, logger: logger.Component("assets.s3")}
}

// Enabled reports whether uploads will be attempted.
func (m *S3Mirror) Enabled() bool {
	return m != nil && m.client != nil && m.bucket != ""
}

// ObjectKey is where quoteID's image lives in the bucket.
func ObjectKey(quoteID string) string {
	return "quote-assets/v1/" + storage.SafeFilename(quoteID)
}

// Upload stores the decoded image.
func (m *S3Mirror) Upload(ctx context.Context, quoteID string, d dataurl.DataURL) error {
	if !m.Enabled() {
		return nil
	}
	raw, err := d.Decode()
	if err != nil {
		return fmt.Errorf("assets: decode %s: %w", quoteID, err)
	}
	key := ObjectKey(quoteID)
	_, err = m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(m.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(raw),
		ContentType: aws.String(d.MIMEType),
	})
	if err != nil {
		return fmt.Errorf("assets: s3 put %s: %w", key, err)
	}
	m.logger.Debug("mirrored quote asset", "quote_id", quoteID, "s3_key", key, "bytes", len(raw))
	return nil
}

// Delete removes the mirrored object.
func (m *S3Mirror) Delete(ctx context.Context, quoteID string) error {
	if !m.Enabled() {
		return nil
	}
	key := ObjectKey(quoteID)
	_, err := m.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("assets: s3 delete %s: %w", key, err)
	}
	return nil
}
