// Package store defines the object-store surface the thumbnail backfill
// needs and provides the S3 and MinIO backends behind it.
//
// The job only ever lists, reads, and writes whole objects, so the
// interface is deliberately narrow: one listing page at a time with an
// opaque continuation cursor, a streaming read, and a single-shot write.
package store

import (
	"context"
	"io"
)

// Page is one page of a listing. NextCursor is empty on the final page.
type Page struct {
	Keys       []string
	NextCursor string
}

// Lister returns listing pages under a prefix. An empty cursor requests the
// first page.
type Lister interface {
	ListPage(ctx context.Context, bucket, prefix, cursor string) (Page, error)
}

// Getter streams an object's bytes. Callers must close the returned reader.
type Getter interface {
	GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}

// Putter writes an object. size may be -1 when unknown.
type Putter interface {
	PutObject(ctx context.Context, bucket, key string, body io.Reader, size int64, contentType string) error
}

// ObjectStore is the full surface used by a backfill run.
type ObjectStore interface {
	Lister
	Getter
	Putter
}
