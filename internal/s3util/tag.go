package s3util

// ProjectTagKey and ProjectTagValue label every object the backfill writes
// for cost allocation.
const (
	ProjectTagKey   = "Project"
	ProjectTagValue = "thumbnail-backfill"
)

// projectTag is the URL-encoded S3 object tagging string.
const projectTag = ProjectTagKey + "=" + ProjectTagValue

// ProjectTagging returns a pointer to the URL-encoded S3 object tagging string.
// Use as the Tagging field on PutObjectInput.
func ProjectTagging() *string {
	t := projectTag
	return &t
}
