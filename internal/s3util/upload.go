package s3util

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// Uploader is the subset of *manager.Uploader used for writes.
type Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// UploadObject uploads body to bucket/key with the given content type and
// the project cost-allocation tag.
func UploadObject(ctx context.Context, uploader Uploader, bucket, key string, body io.Reader, contentType string) error {
	_, err := uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      &bucket,
		Key:         &key,
		Body:        body,
		ContentType: &contentType,
		Tagging:     ProjectTagging(),
	})
	if err != nil {
		return fmt.Errorf("S3 upload %s: %w", key, err)
	}

	log.Debug().
		Str("bucket", bucket).
		Str("key", key).
		Str("contentType", contentType).
		Msg("Object uploaded to S3")
	return nil
}
