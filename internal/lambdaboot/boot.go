// Package lambdaboot provides the shared cold-start bootstrap for the
// backfill entry points.
//
// Both the Lambda and the CLI need AWS config, an object store for the
// configured backend, and a startup log. Each main's init is a short
// composition of these helpers.
package lambdaboot

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"

	"github.com/fpang/thumbnail-backfill/internal/jobconfig"
	"github.com/fpang/thumbnail-backfill/internal/logging"
	"github.com/fpang/thumbnail-backfill/internal/store"
)

// LoadAWSConfig loads the default AWS config. When rt targets a custom S3
// endpoint and carries static keys, those keys replace the default chain.
func LoadAWSConfig(ctx context.Context, rt jobconfig.Runtime) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if rt.S3Endpoint != "" && rt.Minio.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(rt.Minio.AccessKey, rt.Minio.SecretKey, ""),
		))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load AWS config: %w", err)
	}
	log.Debug().Str("region", cfg.Region).Msg("AWS config loaded")
	return cfg, nil
}

// NewS3Client builds an S3 client, honouring a custom endpoint with
// path-style addressing when rt sets one.
func NewS3Client(cfg aws.Config, rt jobconfig.Runtime) *s3.Client {
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if rt.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(rt.S3Endpoint)
			o.UsePathStyle = true
		}
	})
}

// InitStore returns the object store selected by rt.Store.
func InitStore(ctx context.Context, rt jobconfig.Runtime) (store.ObjectStore, error) {
	switch rt.Store {
	case jobconfig.StoreMinio:
		st, err := store.NewMinioStore(store.MinioOptions{
			Endpoint:  rt.Minio.Endpoint,
			AccessKey: rt.Minio.AccessKey,
			SecretKey: rt.Minio.SecretKey,
			UseSSL:    rt.Minio.UseSSL,
		})
		if err != nil {
			return nil, err
		}
		log.Debug().Str("endpoint", rt.Minio.Endpoint).Bool("ssl", rt.Minio.UseSSL).Msg("MinIO store initialized")
		return st, nil
	case jobconfig.StoreS3, "":
		cfg, err := LoadAWSConfig(ctx, rt)
		if err != nil {
			return nil, err
		}
		return store.NewS3Store(NewS3Client(cfg, rt)), nil
	default:
		return nil, fmt.Errorf("%w: unknown store %q", jobconfig.ErrInvalidConfig, rt.Store)
	}
}

// StartupLog returns a startup logger pre-filled with the runtime settings.
func StartupLog(name string, initStart time.Time, rt jobconfig.Runtime) *logging.StartupLogger {
	sl := logging.NewStartupLogger(name).
		InitDuration(time.Since(initStart)).
		Config("store", rt.Store).
		Config("concurrency", fmt.Sprint(rt.Concurrency)).
		Config("scratchDir", rt.ScratchDir).
		Feature("customS3Endpoint", rt.S3Endpoint != "")
	if rt.Store == jobconfig.StoreMinio {
		sl = sl.Config("minioEndpoint", rt.Minio.Endpoint)
	}
	return sl
}
