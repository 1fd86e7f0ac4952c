package pipeline

import (
	"errors"
	"fmt"

	"github.com/fpang/thumbnail-backfill/internal/filehandler"
	"github.com/fpang/thumbnail-backfill/internal/keys"
)

// Stage names a step of the pipeline.
type Stage string

const (
	StageKey    Stage = "key"
	StageFetch  Stage = "fetch"
	StageDecode Stage = "decode"
	StageResize Stage = "resize"
	StageEncode Stage = "encode"
	StageStore  Stage = "store"
)

// Sentinel errors for each failure class. A *StageError matches exactly one
// of these with errors.Is.
var (
	ErrFetch  = errors.New("fetch failed")
	ErrDecode = errors.New("decode failed")
	ErrEncode = errors.New("encode failed")
	ErrStore  = errors.New("store failed")

	// ErrUnsupportedFormat means a key passed the extension filter but the
	// encoder cannot write its format. It signals a bug, not a bad object.
	ErrUnsupportedFormat = filehandler.ErrUnsupportedFormat

	ErrMalformedKey = keys.ErrMalformedKey
)

// StageError reports which stage failed for which key.
type StageError struct {
	Stage Stage
	Key   string
	Kind  error
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Stage, e.Key, e.Err)
}

// Unwrap exposes both the failure class and the underlying cause.
func (e *StageError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// IsDefect reports whether err indicates a programming error rather than a
// bad object or transient store failure.
func IsDefect(err error) bool {
	return errors.Is(err, ErrUnsupportedFormat)
}

func stageErr(stage Stage, key string, kind, err error) error {
	return &StageError{Stage: stage, Key: key, Kind: kind, Err: err}
}
