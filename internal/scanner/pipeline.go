package scanner

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/docuvault/docscan/internal/extract"
	"github.com/docuvault/docscan/internal/models"
	"github.com/docuvault/docscan/internal/preprocess"
	"github.com/docuvault/docscan/internal/scanerr"
	"github.com/docuvault/docscan/pkg/logger"
)

// Confidence composition weights and the acceptance gate. A document below
// the gate is discarded but its asset still counts as processed.
const (
	ocrWeight  = 0.4
	metaWeight = 0.4
	typeWeight = 0.2

	typeConfidenceKnown   = 0.8
	typeConfidenceUnknown = 0.5

	acceptanceThreshold = 0.62
)

const maxKeywords = 10

type outcome int

const (
	outcomeFailed outcome = iota
	outcomePersisted
	outcomeDuplicate
	outcomeDiscarded
)

// processAsset runs one asset through preprocess, fusion, classification,
// extraction and persistence. Temp files are released on every exit path.
func (s *Scanner) processAsset(ctx context.Context, asset models.Asset, opts models.ScanOptions) (outcome, error) {
	tracker := preprocess.NewTempTracker(s.logger)
	defer tracker.Release()

	preHash := PreHash(asset)
	if seen, err := s.store.HasProcessedHash(ctx, preHash); err == nil && seen {
		return outcomeDuplicate, nil
	}

	timeout := opts.AssetTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	path, err := s.pre.Prepare(actx, asset, tracker)
	if err != nil {
		return outcomeFailed, s.classifyPipelineErr(actx, asset.URI, err)
	}

	ocrResult, err := s.fusion.Process(actx, asset.URI, path)
	if err != nil {
		return outcomeFailed, s.classifyPipelineErr(actx, asset.URI, err)
	}

	docType := extract.Classify(ocrResult.Text, asset.Filename)
	meta := extract.Extract(docType, ocrResult.Text)

	overall := composeConfidence(ocrResult.Confidence, meta.Confidence, docType)
	if overall <= acceptanceThreshold {
		s.markProcessed(ctx, preHash)
		s.logger.Debug("Discarded low-confidence asset",
			logger.String("uri", asset.URI),
			logger.Float64("confidence", overall),
		)
		return outcomeDiscarded, nil
	}

	hash, err := s.contentHash(actx, asset.URI)
	if err != nil {
		return outcomeFailed, scanerr.ForAsset(scanerr.KindAssetReadFailure, asset.URI, err)
	}

	if seen, herr := s.store.HasProcessedHash(ctx, hash); herr == nil && seen {
		s.markProcessed(ctx, preHash)
		return outcomeDuplicate, nil
	}
	if existing, ferr := s.store.FindByHash(ctx, hash); ferr == nil && existing != nil {
		s.markProcessed(ctx, preHash, hash)
		return outcomeDuplicate, nil
	}

	doc := &models.DocumentRecord{
		ID:           uuid.NewString(),
		ImageURI:     asset.URI,
		ContentHash:  hash,
		OCRText:      ocrResult.Text,
		DocumentType: docType,
		Metadata:     meta,
		Confidence:   overall,
		ProcessedAt:  s.now(),
		Keywords:     extract.Keywords(ocrResult.Text, maxKeywords),
	}
	saved, err := s.store.SaveDocument(ctx, doc)
	if err != nil {
		return outcomeFailed, err
	}
	s.markProcessed(ctx, preHash, hash)
	if !saved {
		return outcomeDuplicate, nil
	}

	s.logger.Debug("Document persisted",
		logger.String("uri", asset.URI),
		logger.String("type", string(docType)),
		logger.Float64("confidence", overall),
	)
	return outcomePersisted, nil
}

func composeConfidence(ocrConf, metaConf float64, docType models.DocumentType) float64 {
	typeConf := typeConfidenceUnknown
	if docType.Known() {
		typeConf = typeConfidenceKnown
	}
	return ocrWeight*ocrConf + metaWeight*metaConf + typeWeight*typeConf
}

// classifyPipelineErr maps a context deadline to the timeout kind; typed
// errors pass through unchanged.
func (s *Scanner) classifyPipelineErr(ctx context.Context, uri string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return scanerr.ForAsset(scanerr.KindAssetProcessingTimeout, uri, err)
	}
	if scanerr.KindOf(err) != "" {
		return err
	}
	return scanerr.ForAsset(scanerr.KindEngineFailure, uri, err)
}

func (s *Scanner) markProcessed(ctx context.Context, hashes ...string) {
	for _, h := range hashes {
		if err := s.store.AddProcessedHash(ctx, h); err != nil {
			s.logger.Error("Failed to record processed hash", logger.Error(err))
		}
	}
}
