// Package s3util provides the S3 calls shared by the backfill's S3 store
// backend: paged listing, object reads, tagged uploads.
package s3util

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// ListPage fetches a single ListObjectsV2 page under prefix, resuming from
// continuationToken when non-empty. It returns the page's keys and the token
// for the next page, or "" when the listing is exhausted.
func ListPage(ctx context.Context, client s3.ListObjectsV2APIClient, bucket, prefix, continuationToken string) ([]string, string, error) {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	}
	if continuationToken != "" {
		input.ContinuationToken = aws.String(continuationToken)
	}

	result, err := client.ListObjectsV2(ctx, input)
	if err != nil {
		return nil, "", fmt.Errorf("S3 ListObjectsV2: %w", err)
	}

	keys := make([]string, 0, len(result.Contents))
	for _, obj := range result.Contents {
		if obj.Key == nil {
			continue
		}
		keys = append(keys, *obj.Key)
	}

	next := ""
	if aws.ToBool(result.IsTruncated) {
		next = aws.ToString(result.NextContinuationToken)
	}

	log.Debug().
		Str("bucket", bucket).
		Str("prefix", prefix).
		Int("objectCount", len(keys)).
		Bool("truncated", next != "").
		Msg("S3 ListObjectsV2 completed")

	return keys, next, nil
}
