// Package thumbjob runs one thumbnail backfill: a full listing scan to pick
// resize targets, then the per-key pipeline over every target.
//
// Processing never starts before the scan has consumed the entire listing.
// Targets are independent, so they may be processed by a bounded pool of
// workers; a failed key is logged and counted but never stops the others.
// Nothing is retried: a key that fails now is selected again by the next run.
package thumbjob

import (
	"context"
	"io"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/fpang/thumbnail-backfill/internal/jobconfig"
	"github.com/fpang/thumbnail-backfill/internal/jobutil"
	"github.com/fpang/thumbnail-backfill/internal/metrics"
	"github.com/fpang/thumbnail-backfill/internal/pipeline"
	"github.com/fpang/thumbnail-backfill/internal/selection"
	"github.com/fpang/thumbnail-backfill/internal/store"
)

// Options tune how a Runner executes.
type Options struct {
	// Concurrency is the number of targets processed at once. Values below
	// one mean sequential processing.
	Concurrency int

	// ScratchDir is the root for per-key staging directories.
	ScratchDir string

	// DryRun selects targets without processing them.
	DryRun bool

	// Metrics receives one EMF document per run when non-nil.
	Metrics io.Writer
}

// Runner executes backfill runs against one object store.
type Runner struct {
	store store.ObjectStore
	opts  Options
}

// Summary is the outcome of a run.
type Summary struct {
	Bucket             string   `json:"bucket"`
	Prefix             string   `json:"prefix"`
	TargetSize         int      `json:"targetSize"`
	Pages              int      `json:"pages"`
	KeysSeen           int      `json:"keysSeen"`
	Candidates         int      `json:"candidates"`
	ExistingThumbnails int      `json:"existingThumbnails"`
	Targets            int      `json:"targets"`
	Succeeded          int      `json:"succeeded"`
	Failed             int      `json:"failed"`
	Defects            int      `json:"defects"`
	Skipped            int      `json:"skipped"`
	ThumbnailBytes     int64    `json:"thumbnailBytes"`
	FailedKeys         []string `json:"failedKeys,omitempty"`
	DryRun             bool     `json:"dryRun,omitempty"`
	DurationMs         int64    `json:"durationMs"`
}

// NewRunner returns a Runner over st.
func NewRunner(st store.ObjectStore, opts Options) *Runner {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Runner{store: st, opts: opts}
}

type keyOutcome struct {
	result  pipeline.Result
	err     error
	skipped bool
}

// Run performs one backfill for cfg. It returns an error only when the
// listing scan fails; per-key failures are reported in the Summary.
func (r *Runner) Run(ctx context.Context, cfg jobconfig.Config) (Summary, error) {
	start := time.Now()
	summary := Summary{
		Bucket:     cfg.BucketName,
		Prefix:     cfg.Prefix,
		TargetSize: cfg.TargetSize,
		DryRun:     r.opts.DryRun,
	}

	selected, err := selection.Scan(ctx, r.store, cfg)
	if err != nil {
		return summary, err
	}
	summary.Pages = selected.Pages
	summary.KeysSeen = selected.KeysSeen
	summary.Candidates = selected.Candidates
	summary.ExistingThumbnails = selected.ExistingThumbnails
	summary.Targets = len(selected.Targets)
	summary.Skipped = len(selected.Skipped)

	log.Info().Int("targets", summary.Targets).Msg("Object list length")

	if r.opts.DryRun {
		for _, key := range selected.Targets {
			log.Info().Str("key", key).Msg("Would resize")
		}
	} else {
		outcomes := r.process(ctx, cfg, selected.Targets)
		for i, o := range outcomes {
			key := selected.Targets[i]
			switch {
			case o.skipped:
				summary.Skipped++
			case o.err != nil:
				summary.FailedKeys = append(summary.FailedKeys, key)
				if jobutil.ReportKeyError(cfg.BucketName, key, o.err) == jobutil.OutcomeDefect {
					summary.Defects++
				} else {
					summary.Failed++
				}
			default:
				summary.Succeeded++
				summary.ThumbnailBytes += o.result.Bytes
			}
		}
	}

	elapsed := time.Since(start)
	summary.DurationMs = elapsed.Milliseconds()

	log.Info().
		Str("bucket", summary.Bucket).
		Str("prefix", summary.Prefix).
		Int("targetSize", summary.TargetSize).
		Int("keysSeen", summary.KeysSeen).
		Int("targets", summary.Targets).
		Int("succeeded", summary.Succeeded).
		Int("failed", summary.Failed).
		Int("defects", summary.Defects).
		Int("skipped", summary.Skipped).
		Bool("dryRun", summary.DryRun).
		Dur("duration", elapsed).
		Msg("Thumbnail backfill complete")

	r.emitMetrics(summary, elapsed)
	return summary, nil
}

// process runs the pipeline over targets and returns one outcome per target,
// in target order.
func (r *Runner) process(ctx context.Context, cfg jobconfig.Config, targets []string) []keyOutcome {
	p := pipeline.New(r.store, cfg, r.opts.ScratchDir)
	outcomes := make([]keyOutcome, len(targets))

	var g errgroup.Group
	g.SetLimit(r.opts.Concurrency)
	for i, key := range targets {
		if key == "" {
			outcomes[i] = keyOutcome{skipped: true}
			continue
		}
		g.Go(func() error {
			res, err := p.Process(ctx, key)
			outcomes[i] = keyOutcome{result: res, err: err}
			if err == nil {
				log.Info().
					Str("bucket", cfg.BucketName).
					Str("key", key).
					Str("thumbKey", res.ThumbnailKey).
					Dur("duration", res.Duration).
					Msg("Resize completed")
			}
			// Per-key failures are reported from outcomes, not the group.
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func (r *Runner) emitMetrics(s Summary, elapsed time.Duration) {
	if r.opts.Metrics == nil {
		return
	}
	metrics.NewWithWriter(metrics.Namespace, r.opts.Metrics).
		Dimension("Bucket", s.Bucket).
		Count("KeysSeen", s.KeysSeen).
		Count("Targets", s.Targets).
		Count("Succeeded", s.Succeeded).
		Count("Failed", s.Failed).
		Count("Defects", s.Defects).
		Count("Skipped", s.Skipped).
		Metric("ThumbnailBytes", float64(s.ThumbnailBytes), metrics.UnitBytes).
		Duration("RunDuration", elapsed).
		Property("prefix", s.Prefix).
		Property("targetSize", s.TargetSize).
		Flush()
}
