package store

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog/log"

	"github.com/fpang/thumbnail-backfill/internal/s3util"
)

// DefaultMinioPageSize is the number of keys returned per MinIO listing page.
const DefaultMinioPageSize = 1000

// MinioStore is a backend for S3-compatible stores reached through
// minio-go. minio-go pages internally, so ListPage cuts its stream into
// pages and uses the last key of a full page as the StartAfter cursor.
type MinioStore struct {
	api      *minio.Client
	pageSize int
}

var _ ObjectStore = (*MinioStore)(nil)

// MinioOptions configures NewMinioStore.
type MinioOptions struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Region    string
	PageSize  int
}

// NewMinioStore creates a MinIO client from static credentials.
func NewMinioStore(opts MinioOptions) (*MinioStore, error) {
	api, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = DefaultMinioPageSize
	}
	return &MinioStore{api: api, pageSize: pageSize}, nil
}

// ListPage implements Lister.
func (m *MinioStore) ListPage(ctx context.Context, bucket, prefix, cursor string) (Page, error) {
	// Cancelling stops minio-go's background lister once the page is full.
	listCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	objects := m.api.ListObjects(listCtx, bucket, minio.ListObjectsOptions{
		Prefix:     prefix,
		Recursive:  true,
		StartAfter: cursor,
	})

	page := Page{Keys: make([]string, 0, m.pageSize)}
	for obj := range objects {
		if obj.Err != nil {
			return Page{}, fmt.Errorf("minio ListObjects: %w", obj.Err)
		}
		page.Keys = append(page.Keys, obj.Key)
		if len(page.Keys) == m.pageSize {
			page.NextCursor = obj.Key
			break
		}
	}

	log.Debug().
		Str("bucket", bucket).
		Str("prefix", prefix).
		Int("objectCount", len(page.Keys)).
		Bool("truncated", page.NextCursor != "").
		Msg("MinIO ListObjects page completed")

	return page, nil
}

// GetObject implements Getter.
func (m *MinioStore) GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	obj, err := m.api.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("minio GetObject: %w", err)
	}
	// GetObject is lazy; Stat surfaces a missing key here instead of on first read.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, fmt.Errorf("minio GetObject: %w", err)
	}
	return obj, nil
}

// PutObject implements Putter.
func (m *MinioStore) PutObject(ctx context.Context, bucket, key string, body io.Reader, size int64, contentType string) error {
	_, err := m.api.PutObject(ctx, bucket, key, body, size, minio.PutObjectOptions{
		ContentType: contentType,
		UserTags:    map[string]string{s3util.ProjectTagKey: s3util.ProjectTagValue},
	})
	if err != nil {
		return fmt.Errorf("minio PutObject %s: %w", key, err)
	}
	return nil
}
