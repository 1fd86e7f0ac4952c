// Package main provides the thumbnail-backfill CLI, which runs one backfill
// from a workstation or a scheduled container.
package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/thumbnail-backfill/internal/jobconfig"
	"github.com/fpang/thumbnail-backfill/internal/lambdaboot"
	"github.com/fpang/thumbnail-backfill/internal/logging"
	"github.com/fpang/thumbnail-backfill/internal/thumbjob"
)

// CLI flags
var (
	bucketFlag      string
	prefixFlag      string
	sizeFlag        int
	extFlag         string
	concurrencyFlag int
	scratchDirFlag  string
	dryRunFlag      bool
	metricsFlag     bool
)

// rootCmd is the main Cobra command for the thumbnail-backfill CLI.
var rootCmd = &cobra.Command{
	Use:   "thumbnail-backfill",
	Short: "Create missing thumbnails for images under a bucket prefix",
	Long: `Thumbnail Backfill lists every object under a prefix, finds source images
that have no thumbnail at the requested size, and writes one next to each.

A thumbnail for prefix/<id>/<name>.<ext> at size S is stored as
prefix/<id>/thumb_SxS_<name>.<ext>. Running the tool twice is safe: the
second run finds nothing to do.

Settings such as THUMBNAIL_STORE and MINIO_ENDPOINT are read from the
environment, and from a .env file in the working directory when present.

Examples:
  thumbnail-backfill --bucket media --prefix uploads --size 256
  thumbnail-backfill -b media -p uploads -s 128 --ext png --dry-run
  THUMBNAIL_STORE=minio thumbnail-backfill -b media -p uploads -s 64 -c 8`,
	Args: cobra.NoArgs,
	RunE: runMain,
}

func init() {
	rootCmd.Flags().StringVarP(&bucketFlag, "bucket", "b", "", "Bucket to scan (required)")
	rootCmd.Flags().StringVarP(&prefixFlag, "prefix", "p", "", "Key prefix to scan")
	rootCmd.Flags().IntVarP(&sizeFlag, "size", "s", 0, "Thumbnail bounding box edge in pixels (required)")
	rootCmd.Flags().StringVar(&extFlag, "ext", "", "Only process this extension (default: jpg, jpeg, png)")
	rootCmd.Flags().IntVarP(&concurrencyFlag, "concurrency", "c", 0, "Images processed at once (default: THUMBNAIL_CONCURRENCY or 1)")
	rootCmd.Flags().StringVar(&scratchDirFlag, "scratch-dir", "", "Directory for staging files (default: THUMBNAIL_SCRATCH_DIR or the OS temp dir)")
	rootCmd.Flags().BoolVar(&dryRunFlag, "dry-run", false, "List the keys that would be resized without writing anything")
	rootCmd.Flags().BoolVar(&metricsFlag, "emf", false, "Write an EMF metrics document to stderr")
	_ = rootCmd.MarkFlagRequired("bucket")
	_ = rootCmd.MarkFlagRequired("size")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// runMain is the main execution logic called by Cobra.
func runMain(cmd *cobra.Command, _ []string) error {
	initStart := time.Now()
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return err
	}
	logging.Init()

	cfg, err := jobconfig.New(bucketFlag, prefixFlag, sizeFlag, extFlag)
	if err != nil {
		return err
	}
	rt, err := jobconfig.FromEnv()
	if err != nil {
		return err
	}
	if concurrencyFlag > 0 {
		rt.Concurrency = concurrencyFlag
	}
	if scratchDirFlag != "" {
		rt.ScratchDir = scratchDirFlag
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := lambdaboot.InitStore(ctx, rt)
	if err != nil {
		return err
	}
	lambdaboot.StartupLog("thumbnail-backfill", initStart, rt).
		Bucket("source", cfg.BucketName).
		Feature("dryRun", dryRunFlag).
		Log()

	opts := thumbjob.Options{
		Concurrency: rt.Concurrency,
		ScratchDir:  rt.ScratchDir,
		DryRun:      dryRunFlag,
	}
	if metricsFlag {
		opts.Metrics = os.Stderr
	}
	summary, err := thumbjob.NewRunner(st, opts).Run(ctx, cfg)
	if err != nil {
		log.Error().Err(err).Str("bucket", cfg.BucketName).Msg("Thumbnail backfill aborted")
		return err
	}
	return printSummary(summary)
}

func printSummary(s thumbjob.Summary) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}
