package keys

// Classifier binds the key rules to one job's prefix, size and extension.
type Classifier struct {
	Prefix    string
	Size      int
	Extension string
}

// IsCandidate reports whether key is a source image eligible for resizing:
// it passes the extension filter and is not itself a thumbnail.
func (c Classifier) IsCandidate(key string) bool {
	return MatchesTargetExtension(key, c.Extension) && !IsAnyThumbnail(key)
}

// IsExistingThumbnail reports whether key is a thumbnail at the configured
// size. Thumbnails of other sizes are ignored.
func (c Classifier) IsExistingThumbnail(key string) bool {
	return MatchesTargetExtension(key, c.Extension) && HasThumbnailMarker(key, c.Size)
}

// ThumbnailKey returns the expected thumbnail key for a source key.
func (c Classifier) ThumbnailKey(sourceKey string) (string, error) {
	return ExpectedThumbnailKey(sourceKey, c.Prefix, c.Size)
}
