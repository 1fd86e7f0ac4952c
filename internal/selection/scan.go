// Package selection decides which source images still need a thumbnail.
//
// A scan pages through the whole listing before deciding anything: the
// store does not guarantee that a source and its thumbnail land on the same
// page, so existing thumbnails are accumulated across every page and the
// candidates are diffed against the full set once the listing is exhausted.
package selection

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/fpang/thumbnail-backfill/internal/jobconfig"
	"github.com/fpang/thumbnail-backfill/internal/keys"
	"github.com/fpang/thumbnail-backfill/internal/store"
)

// Result is the outcome of a listing scan.
type Result struct {
	// Targets are candidates whose expected thumbnail does not exist, in
	// listing order.
	Targets []string

	// Skipped are candidates whose thumbnail key cannot be derived.
	Skipped []SkippedKey

	Pages              int
	KeysSeen           int
	Candidates         int
	ExistingThumbnails int
}

// SkippedKey records a candidate that was dropped and why.
type SkippedKey struct {
	Key string
	Err error
}

// Scan lists every key under cfg.Prefix and returns the resize targets.
// A listing error aborts the scan; nothing is selected from a partial listing.
func Scan(ctx context.Context, lister store.Lister, cfg jobconfig.Config) (Result, error) {
	classifier := cfg.Classifier()

	var (
		res        Result
		candidates []string
		existing   = make(map[string]struct{})
		cursor     string
	)

	for {
		page, err := lister.ListPage(ctx, cfg.BucketName, cfg.Prefix, cursor)
		if err != nil {
			return Result{}, fmt.Errorf("list page %d of %s/%s: %w", res.Pages+1, cfg.BucketName, cfg.Prefix, err)
		}
		res.Pages++
		res.KeysSeen += len(page.Keys)

		for _, key := range page.Keys {
			switch {
			case classifier.IsCandidate(key):
				candidates = append(candidates, key)
			case classifier.IsExistingThumbnail(key):
				existing[key] = struct{}{}
			}
		}

		log.Debug().
			Int("page", res.Pages).
			Int("keys", len(page.Keys)).
			Int("candidates", len(candidates)).
			Int("existing", len(existing)).
			Msg("Listing page classified")

		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}

	res.Candidates = len(candidates)
	res.ExistingThumbnails = len(existing)

	for _, key := range candidates {
		thumbKey, err := classifier.ThumbnailKey(key)
		if err != nil {
			if !errors.Is(err, keys.ErrMalformedKey) {
				return Result{}, err
			}
			log.Warn().Err(err).Str("key", key).Msg("Skipping key without identifier segment")
			res.Skipped = append(res.Skipped, SkippedKey{Key: key, Err: err})
			continue
		}
		if _, ok := existing[thumbKey]; ok {
			continue
		}
		res.Targets = append(res.Targets, key)
	}

	log.Info().
		Str("bucket", cfg.BucketName).
		Str("prefix", cfg.Prefix).
		Int("pages", res.Pages).
		Int("keysSeen", res.KeysSeen).
		Int("candidates", res.Candidates).
		Int("existingThumbnails", res.ExistingThumbnails).
		Int("targets", len(res.Targets)).
		Int("skipped", len(res.Skipped)).
		Msg("Resize target selection complete")

	return res, nil
}
