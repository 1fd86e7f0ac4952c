// Package pipeline turns one source image key into one stored thumbnail:
// fetch, decode, resize, encode, store.
//
// Every invocation stages its files in its own scratch directory, named by a
// fresh UUID, which is removed on every exit path. Invocations share no
// state, so a Pipeline may be used from many goroutines at once.
package pipeline

import (
	"context"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/fpang/thumbnail-backfill/internal/filehandler"
	"github.com/fpang/thumbnail-backfill/internal/jobconfig"
	"github.com/fpang/thumbnail-backfill/internal/keys"
	"github.com/fpang/thumbnail-backfill/internal/store"
)

// Store is the object-store surface the pipeline needs.
type Store interface {
	store.Getter
	store.Putter
}

// Pipeline processes resize targets for one job.
type Pipeline struct {
	store       Store
	cfg         jobconfig.Config
	scratchRoot string
}

// Result describes a stored thumbnail.
type Result struct {
	SourceKey    string
	ThumbnailKey string
	SourceFormat string
	Width        int
	Height       int
	Bytes        int64
	Duration     time.Duration
}

// New returns a Pipeline that stages files under scratchRoot. An empty
// scratchRoot uses os.TempDir().
func New(st Store, cfg jobconfig.Config, scratchRoot string) *Pipeline {
	if scratchRoot == "" {
		scratchRoot = os.TempDir()
	}
	return &Pipeline{store: st, cfg: cfg, scratchRoot: scratchRoot}
}

// Process generates and uploads the thumbnail for key. Errors are
// *StageError values.
func (p *Pipeline) Process(ctx context.Context, key string) (Result, error) {
	start := time.Now()
	logger := log.With().Str("key", key).Logger()

	thumbKey, err := keys.ExpectedThumbnailKey(key, p.cfg.Prefix, p.cfg.TargetSize)
	if err != nil {
		return Result{}, stageErr(StageKey, key, ErrMalformedKey, err)
	}
	ext, _ := keys.Extension(key)
	format, err := filehandler.FormatForExtension(ext)
	if err != nil {
		return Result{}, stageErr(StageEncode, key, ErrUnsupportedFormat, err)
	}

	scratch := filepath.Join(p.scratchRoot, "thumb-"+uuid.NewString())
	if err := os.MkdirAll(scratch, 0o700); err != nil {
		return Result{}, stageErr(StageFetch, key, ErrFetch, fmt.Errorf("create scratch dir: %w", err))
	}
	defer func() {
		if err := os.RemoveAll(scratch); err != nil {
			logger.Warn().Err(err).Str("scratch", scratch).Msg("Failed to remove scratch directory")
		}
	}()

	sourcePath := filepath.Join(scratch, "source")
	if err := p.fetch(ctx, key, sourcePath); err != nil {
		return Result{}, stageErr(StageFetch, key, ErrFetch, err)
	}
	logger.Debug().Str("localPath", sourcePath).Msg("Source staged")

	img, sourceFormat, err := decodeFile(sourcePath)
	if err != nil {
		return Result{}, stageErr(StageDecode, key, ErrDecode, err)
	}

	resized, err := filehandler.ResizeToFit(img, p.cfg.TargetSize)
	if err != nil {
		return Result{}, stageErr(StageResize, key, ErrDecode, err)
	}
	bounds := resized.Bounds()

	thumbPath := filepath.Join(scratch, "thumbnail."+ext)
	size, err := encodeFile(thumbPath, resized, format)
	if err != nil {
		return Result{}, stageErr(StageEncode, key, ErrEncode, err)
	}

	if err := p.put(ctx, thumbKey, thumbPath, size, format.ContentType()); err != nil {
		return Result{}, stageErr(StageStore, key, ErrStore, err)
	}

	res := Result{
		SourceKey:    key,
		ThumbnailKey: thumbKey,
		SourceFormat: sourceFormat,
		Width:        bounds.Dx(),
		Height:       bounds.Dy(),
		Bytes:        size,
		Duration:     time.Since(start),
	}
	logResult(logger, res)
	return res, nil
}

func (p *Pipeline) fetch(ctx context.Context, key, localPath string) error {
	body, err := p.store.GetObject(ctx, p.cfg.BucketName, key)
	if err != nil {
		return err
	}
	defer body.Close()

	f, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, body); err != nil {
		return fmt.Errorf("download: %w", err)
	}
	return f.Close()
}

func (p *Pipeline) put(ctx context.Context, thumbKey, localPath string, size int64, contentType string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open thumbnail: %w", err)
	}
	defer f.Close()
	return p.store.PutObject(ctx, p.cfg.BucketName, thumbKey, f, size, contentType)
}

func decodeFile(path string) (image.Image, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("open source: %w", err)
	}
	defer f.Close()
	return filehandler.DecodeImage(f)
}

// encodeFile writes img to path and returns the encoded size.
func encodeFile(path string, img image.Image, format filehandler.Format) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create thumbnail file: %w", err)
	}
	defer f.Close()

	if err := filehandler.EncodeImage(f, img, format); err != nil {
		return 0, err
	}
	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat thumbnail file: %w", err)
	}
	return info.Size(), f.Close()
}

func logResult(logger zerolog.Logger, res Result) {
	logger.Debug().
		Str("thumbKey", res.ThumbnailKey).
		Str("sourceFormat", res.SourceFormat).
		Int("width", res.Width).
		Int("height", res.Height).
		Int64("thumbSize", res.Bytes).
		Dur("duration", res.Duration).
		Msg("Thumbnail generated and uploaded")
}
