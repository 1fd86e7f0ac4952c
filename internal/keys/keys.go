// Package keys classifies object keys for the thumbnail backfill.
//
// Thumbnails are tracked purely by naming convention: the thumbnail of
// prefix/<id>/<name>.<ext> at size S lives at prefix/<id>/thumb_SxS_<name>.<ext>.
// There is no manifest; a listing of the bucket is the whole index.
package keys

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedKey is returned when a key cannot be parsed into the segments
// the naming convention needs.
var ErrMalformedKey = errors.New("malformed object key")

// thumbnailPrefix marks any thumbnail regardless of size.
const thumbnailPrefix = "thumb_"

// DefaultExtensions is the accepted extension set when no target extension
// is configured.
var DefaultExtensions = []string{"jpg", "jpeg", "png"}

// FileName returns the last "/"-delimited segment of key.
func FileName(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("%w: empty key", ErrMalformedKey)
	}
	return key[strings.LastIndex(key, "/")+1:], nil
}

// Extension returns the lowercased text after the final "." of the key's
// file name. ok is false when the file name has no ".".
func Extension(key string) (ext string, ok bool) {
	name, err := FileName(key)
	if err != nil {
		return "", false
	}
	i := strings.LastIndex(name, ".")
	if i < 0 {
		return "", false
	}
	return strings.ToLower(name[i+1:]), true
}

// MatchesTargetExtension reports whether key has the configured extension,
// or one of DefaultExtensions when targetExt is empty. Both sides are
// compared lowercased.
func MatchesTargetExtension(key, targetExt string) bool {
	ext, ok := Extension(key)
	if !ok {
		return false
	}
	if targetExt != "" {
		return ext == strings.ToLower(targetExt)
	}
	for _, e := range DefaultExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Marker returns the full size marker "thumb_SxS_" prepended to thumbnail
// file names.
func Marker(size int) string {
	return fmt.Sprintf("%s%dx%d_", thumbnailPrefix, size, size)
}

// HasThumbnailMarker reports whether key contains "thumb_SxS" for size.
func HasThumbnailMarker(key string, size int) bool {
	return strings.Contains(key, fmt.Sprintf("%s%dx%d", thumbnailPrefix, size, size))
}

// IsAnyThumbnail reports whether key contains a thumbnail marker of any size.
func IsAnyThumbnail(key string) bool {
	return strings.Contains(key, thumbnailPrefix)
}

// ExpectedThumbnailKey builds prefix/<id>/thumb_SxS_<name> for sourceKey,
// where <id> is the segment preceding the file name. Keys without an
// identifier segment fail with ErrMalformedKey.
//
// The prefix is joined verbatim: "p/" yields "p//<id>/..." and an empty
// prefix yields "/<id>/...", matching thumbnails already in the bucket.
func ExpectedThumbnailKey(sourceKey, prefix string, size int) (string, error) {
	name, err := FileName(sourceKey)
	if err != nil {
		return "", err
	}
	segments := strings.Split(sourceKey, "/")
	if len(segments) < 2 {
		return "", fmt.Errorf("%w: %q has no identifier segment", ErrMalformedKey, sourceKey)
	}
	id := segments[len(segments)-2]

	return prefix + "/" + id + "/" + Marker(size) + name, nil
}
