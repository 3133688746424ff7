package services

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/tlxtech/textextract/internal/models"
)

const maxConcurrentDownloads = 8

// aggregateArtifacts lists every output artifact under the prefix, downloads
// them concurrently and combines them in object-name order into one
// ExtractionResult. Nothing is deleted here; the caller deletes only after
// aggregation has fully succeeded.
func (c *Converter) aggregateArtifacts(ctx context.Context, outputPrefix string) (*models.ExtractionResult, []string, error) {
	objectNames, err := c.blobs.List(ctx, c.config.OutputBucket, outputPrefix)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list output artifacts: %w", err)
	}
	if len(objectNames) == 0 {
		return nil, nil, nil
	}

	// Artifact names carry the shard index, so name order is page order.
	sort.Strings(objectNames)

	parts := make([]*models.ExtractionResult, len(objectNames))
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(maxConcurrentDownloads)
	for i, objectName := range objectNames {
		eg.Go(func() error {
			data, err := c.blobs.Download(gctx, c.config.OutputBucket, objectName)
			if err != nil {
				return fmt.Errorf("failed to download artifact %s: %w", objectName, err)
			}
			part, err := c.extractor.DecodeArtifact(data)
			if err != nil {
				return fmt.Errorf("artifact %s: %w", objectName, err)
			}
			parts[i] = part
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, nil, err
	}

	return mergeResults(parts), objectNames, nil
}

// mergeResults concatenates text in order, sums page counts and unions the
// detected languages.
func mergeResults(parts []*models.ExtractionResult) *models.ExtractionResult {
	merged := &models.ExtractionResult{}
	seen := make(map[string]bool)
	for _, part := range parts {
		merged.Text += part.Text
		merged.PageCount += part.PageCount
		for _, code := range part.DetectedLanguages {
			if !seen[code] {
				seen[code] = true
				merged.DetectedLanguages = append(merged.DetectedLanguages, code)
			}
		}
	}
	return merged
}
