package ocr

import (
	"context"

	"github.com/docuvault/docscan/internal/models"
	"github.com/docuvault/docscan/internal/scanerr"
	"github.com/docuvault/docscan/pkg/logger"
)

const (
	// highConfidenceThreshold lets a strong primary result pass through
	// without a voting merge.
	highConfidenceThreshold = 0.8
	// enrichmentFloor is the minimum block confidence for a secondary block
	// to be inserted into the primary result.
	enrichmentFloor = 0.6
	// blockMatchTolerance is the pixel slack when matching blocks across
	// engines by bounding box.
	blockMatchTolerance = 24
	// lengthSaturation caps the text-length factor in the voting score.
	lengthSaturation = 1000
)

// Fusion merges heterogeneous engine outputs for one asset.
type Fusion struct {
	registry *Registry
	logger   logger.Logger
}

func NewFusion(registry *Registry, log logger.Logger) *Fusion {
	return &Fusion{registry: registry, logger: log}
}

// Process runs every available engine against the image and fuses the
// outputs. All engines failing (or timing out) is an engine-failure error,
// treated by the caller like any other asset-level failure.
func (f *Fusion) Process(ctx context.Context, uri, path string) (*models.OCRResult, error) {
	results := f.registry.RunAll(ctx, path)
	if len(results) == 0 {
		return nil, scanerr.ForAsset(scanerr.KindEngineFailure, uri, ctx.Err())
	}
	return Merge(results), nil
}

// Merge fuses one or more engine results. With a single result it is a
// passthrough. With several, a high-confidence primary wins directly
// (enriched with unmatched secondary blocks); otherwise the voting merge
// picks the single best-scored result instead of averaging.
func Merge(results []*models.OCRResult) *models.OCRResult {
	if len(results) == 1 {
		return results[0]
	}

	primary := results[0]
	for _, r := range results[1:] {
		if r.Confidence > primary.Confidence {
			primary = r
		}
	}

	if primary.Confidence >= highConfidenceThreshold {
		return enrich(primary, results)
	}

	return votingMerge(results)
}

// enrich inserts blocks from secondary results that have no spatial
// counterpart in the primary and clear the confidence floor.
func enrich(primary *models.OCRResult, results []*models.OCRResult) *models.OCRResult {
	merged := *primary
	merged.Blocks = append([]models.OCRBlock(nil), primary.Blocks...)

	for _, r := range results {
		if r == primary {
			continue
		}
		for _, block := range r.Blocks {
			if block.Confidence <= enrichmentFloor {
				continue
			}
			if hasMatchingBlock(primary.Blocks, block) {
				continue
			}
			merged.Blocks = append(merged.Blocks, block)
		}
	}

	return &merged
}

func hasMatchingBlock(blocks []models.OCRBlock, candidate models.OCRBlock) bool {
	for _, b := range blocks {
		if b.BoundingBox.Overlaps(candidate.BoundingBox, blockMatchTolerance) {
			return true
		}
	}
	return false
}

// votingMerge scores each result and keeps the winner whole. Ties break
// toward the longer text.
func votingMerge(results []*models.OCRResult) *models.OCRResult {
	best := results[0]
	bestScore := engineScore(best)

	for _, r := range results[1:] {
		score := engineScore(r)
		if score > bestScore || (score == bestScore && len(r.Text) > len(best.Text)) {
			best = r
			bestScore = score
		}
	}

	return best
}

// engineScore is avg(blockConfidences) × min(1, textLength/1000). Results
// without block detail fall back to their reported confidence.
func engineScore(r *models.OCRResult) float64 {
	avg := r.Confidence
	if len(r.Blocks) > 0 {
		var total float64
		for _, b := range r.Blocks {
			total += b.Confidence
		}
		avg = total / float64(len(r.Blocks))
	}

	lengthFactor := float64(len(r.Text)) / lengthSaturation
	if lengthFactor > 1 {
		lengthFactor = 1
	}

	return avg * lengthFactor
}
