// Package jobutil provides shared helpers for reporting per-key outcomes of
// a backfill run.
//
// Every failed key is logged at error level with its stage. Defects, which
// mean the key filter and the encoder disagree about supported formats, get
// their own message so they cannot be mistaken for a bad object.
package jobutil

import (
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/fpang/thumbnail-backfill/internal/pipeline"
)

// Outcome classifies a per-key failure.
type Outcome string

const (
	OutcomeFailed Outcome = "failed"
	OutcomeDefect Outcome = "defect"
)

// ReportKeyError logs a failed key and returns how it was classified.
func ReportKeyError(bucket, key string, err error) Outcome {
	evt := log.Error().
		Err(err).
		Str("bucket", bucket).
		Str("key", key)

	var se *pipeline.StageError
	if errors.As(err, &se) {
		evt = evt.Str("stage", string(se.Stage))
	}

	if pipeline.IsDefect(err) {
		evt.Bool("defect", true).
			Msg("Resize failed: key passed the extension filter but its format cannot be encoded")
		return OutcomeDefect
	}
	evt.Msg("Resize failed")
	return OutcomeFailed
}
