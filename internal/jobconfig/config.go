// Package jobconfig holds the immutable configuration for one thumbnail
// backfill run and the process-level settings read from the environment.
package jobconfig

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/fpang/thumbnail-backfill/internal/keys"
)

// ErrInvalidConfig is returned when an event or flag set cannot form a job.
var ErrInvalidConfig = errors.New("invalid job configuration")

// Environment variables read by FromEnv.
const (
	EnvConcurrency = "THUMBNAIL_CONCURRENCY"
	EnvScratchDir  = "THUMBNAIL_SCRATCH_DIR"
	EnvStore       = "THUMBNAIL_STORE"
	EnvS3Endpoint  = "THUMBNAIL_S3_ENDPOINT"
	EnvMinioHost   = "MINIO_ENDPOINT"
	EnvMinioKey    = "MINIO_ACCESS_KEY"
	EnvMinioSecret = "MINIO_SECRET_KEY"
	EnvMinioSSL    = "MINIO_USE_SSL"
)

// Store backends.
const (
	StoreS3    = "s3"
	StoreMinio = "minio"
)

// Event is the invocation payload. Field names match the payload already
// used by the scheduled rule that triggers the job.
type Event struct {
	BucketName string  `json:"bucketName"`
	Prefix     string  `json:"prefix"`
	TgtSize    int     `json:"tgtSize"`
	TgtExt     *string `json:"tgtExt,omitempty"`
}

// Config is set once per run and never mutated afterwards.
type Config struct {
	BucketName      string
	Prefix          string
	TargetSize      int
	TargetExtension string // lowercase; empty accepts keys.DefaultExtensions
}

// FromEvent validates an invocation event and builds its Config.
func FromEvent(e Event) (Config, error) {
	ext := ""
	if e.TgtExt != nil {
		ext = *e.TgtExt
	}
	return New(e.BucketName, e.Prefix, e.TgtSize, ext)
}

// New validates the job fields and returns a Config.
func New(bucket, prefix string, size int, ext string) (Config, error) {
	if bucket == "" {
		return Config{}, fmt.Errorf("%w: bucketName is required", ErrInvalidConfig)
	}
	if size <= 0 {
		return Config{}, fmt.Errorf("%w: tgtSize must be positive, got %d", ErrInvalidConfig, size)
	}
	ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
	return Config{
		BucketName:      bucket,
		Prefix:          prefix,
		TargetSize:      size,
		TargetExtension: ext,
	}, nil
}

// Classifier returns the key classifier bound to this job.
func (c Config) Classifier() keys.Classifier {
	return keys.Classifier{
		Prefix:    c.Prefix,
		Size:      c.TargetSize,
		Extension: c.TargetExtension,
	}
}

// Runtime holds process-level settings shared by every run in the process.
type Runtime struct {
	Concurrency int
	ScratchDir  string
	Store       string
	// S3Endpoint points the S3 backend at an S3-compatible endpoint
	// such as LocalStack. Empty means AWS.
	S3Endpoint  string
	Minio       MinioSettings
}

// MinioSettings configures the S3-compatible MinIO backend.
type MinioSettings struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// FromEnv reads Runtime settings, applying defaults for anything unset.
func FromEnv() (Runtime, error) {
	rt := Runtime{
		Concurrency: 1,
		ScratchDir:  envOrDefault(EnvScratchDir, os.TempDir()),
		Store:       strings.ToLower(envOrDefault(EnvStore, StoreS3)),
		S3Endpoint:  os.Getenv(EnvS3Endpoint),
		Minio: MinioSettings{
			Endpoint:  os.Getenv(EnvMinioHost),
			AccessKey: os.Getenv(EnvMinioKey),
			SecretKey: os.Getenv(EnvMinioSecret),
			UseSSL:    true,
		},
	}

	if v := os.Getenv(EnvConcurrency); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return Runtime{}, fmt.Errorf("%w: %s must be a positive integer, got %q", ErrInvalidConfig, EnvConcurrency, v)
		}
		rt.Concurrency = n
	}
	if v := os.Getenv(EnvMinioSSL); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Runtime{}, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, EnvMinioSSL, err)
		}
		rt.Minio.UseSSL = b
	}

	switch rt.Store {
	case StoreS3:
	case StoreMinio:
		if rt.Minio.Endpoint == "" {
			return Runtime{}, fmt.Errorf("%w: %s is required when %s=minio", ErrInvalidConfig, EnvMinioHost, EnvStore)
		}
	default:
		return Runtime{}, fmt.Errorf("%w: unknown %s %q", ErrInvalidConfig, EnvStore, rt.Store)
	}
	return rt, nil
}

func envOrDefault(envVar, defaultVal string) string {
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	return defaultVal
}
