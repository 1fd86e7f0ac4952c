// Package main provides the Lambda entry point for the thumbnail backfill.
//
// A scheduled rule invokes this Lambda with {bucketName, prefix, tgtSize,
// tgtExt}. Each invocation lists the whole prefix, works out which source
// images have no thumbnail at tgtSize yet, and creates the missing ones.
// Runs are idempotent: a second run over an unchanged bucket does nothing.
//
// Memory: 1024 MB
// Timeout: 15 minutes
package main

import (
	"context"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog/log"

	"github.com/fpang/thumbnail-backfill/internal/jobconfig"
	"github.com/fpang/thumbnail-backfill/internal/lambdaboot"
	"github.com/fpang/thumbnail-backfill/internal/logging"
	"github.com/fpang/thumbnail-backfill/internal/store"
	"github.com/fpang/thumbnail-backfill/internal/thumbjob"
)

// Initialized at cold start.
var (
	objectStore store.ObjectStore
	runtimeCfg  jobconfig.Runtime
)

var coldStart = true

func init() {
	initStart := time.Now()
	logging.Init()

	var err error
	runtimeCfg, err = jobconfig.FromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid runtime configuration")
	}

	objectStore, err = lambdaboot.InitStore(context.Background(), runtimeCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize object store")
	}

	lambdaboot.StartupLog("thumbnail-lambda", initStart, runtimeCfg).Log()
}

func handler(ctx context.Context, event jobconfig.Event) (thumbjob.Summary, error) {
	if coldStart {
		coldStart = false
		log.Info().Str("function", "thumbnail-lambda").Msg("Cold start, first invocation")
	}

	cfg, err := jobconfig.FromEvent(event)
	if err != nil {
		log.Error().Err(err).Interface("event", event).Msg("Rejected invocation event")
		return thumbjob.Summary{}, err
	}

	log.Info().
		Str("bucket_name", cfg.BucketName).
		Str("prefix", cfg.Prefix).
		Int("tgt_size", cfg.TargetSize).
		Str("tgt_ext", cfg.TargetExtension).
		Msg("Thumbnail backfill requested")

	runner := thumbjob.NewRunner(objectStore, thumbjob.Options{
		Concurrency: runtimeCfg.Concurrency,
		ScratchDir:  runtimeCfg.ScratchDir,
		Metrics:     os.Stdout,
	})
	return runner.Run(ctx, cfg)
}

func main() {
	lambda.Start(handler)
}
