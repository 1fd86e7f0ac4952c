package store

import (
	"context"
	"io"

	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/fpang/thumbnail-backfill/internal/s3util"
)

// S3Store is the AWS S3 backend. Listing uses ListObjectsV2 continuation
// tokens as cursors; writes go through the transfer manager.
type S3Store struct {
	client   *s3.Client
	uploader *manager.Uploader
}

var _ ObjectStore = (*S3Store)(nil)

// NewS3Store wraps an S3 client.
func NewS3Store(client *s3.Client) *S3Store {
	return &S3Store{
		client:   client,
		uploader: manager.NewUploader(client),
	}
}

// ListPage implements Lister.
func (s *S3Store) ListPage(ctx context.Context, bucket, prefix, cursor string) (Page, error) {
	keys, next, err := s3util.ListPage(ctx, s.client, bucket, prefix, cursor)
	if err != nil {
		return Page{}, err
	}
	return Page{Keys: keys, NextCursor: next}, nil
}

// GetObject implements Getter.
func (s *S3Store) GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	return s3util.OpenObject(ctx, s.client, bucket, key)
}

// PutObject implements Putter. The transfer manager sizes parts itself, so
// size is not needed.
func (s *S3Store) PutObject(ctx context.Context, bucket, key string, body io.Reader, _ int64, contentType string) error {
	return s3util.UploadObject(ctx, s.uploader, bucket, key, body, contentType)
}
