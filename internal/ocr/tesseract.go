package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"strings"
	"sync/atomic"
	"time"

	"github.com/otiai10/gosseract/v2"

	"github.com/docuvault/docscan/internal/models"
	"github.com/docuvault/docscan/internal/preprocess"
	"github.com/docuvault/docscan/pkg/logger"
)

// TesseractEngine wraps gosseract. A fresh client is created per image; the
// underlying Tesseract API is not safe for concurrent reuse.
type TesseractEngine struct {
	languages   []string
	logger      logger.Logger
	initialized atomic.Bool
}

func NewTesseractEngine(languages []string, log logger.Logger) *TesseractEngine {
	if len(languages) == 0 {
		languages = []string{"eng"}
	}
	return &TesseractEngine{
		languages: languages,
		logger:    log,
	}
}

func (e *TesseractEngine) Name() string {
	return "tesseract"
}

func (e *TesseractEngine) Initialize(ctx context.Context) error {
	// Probe that the configured language data is loadable.
	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(strings.Join(e.languages, "+")); err != nil {
		return fmt.Errorf("failed to set language: %w", err)
	}

	e.initialized.Store(true)
	return nil
}

func (e *TesseractEngine) IsInitialized() bool {
	return e.initialized.Load()
}

func (e *TesseractEngine) SupportsLanguage(code string) bool {
	for _, lang := range e.languages {
		if strings.EqualFold(lang, code) {
			return true
		}
	}
	return false
}

// setNormalizedImage feeds the grayscale, contrast-normalized rendition to
// the client. Formats imaging cannot decode fall back to the raw path.
func (e *TesseractEngine) setNormalizedImage(client *gosseract.Client, path string) error {
	if img, err := preprocess.LoadImage(path); err == nil {
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, preprocess.Normalize(img), &jpeg.Options{Quality: 92}); err == nil {
			if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
				return fmt.Errorf("failed to set image: %w", err)
			}
			return nil
		}
	}
	if err := client.SetImage(path); err != nil {
		return fmt.Errorf("failed to set image: %w", err)
	}
	return nil
}

func (e *TesseractEngine) ProcessImage(ctx context.Context, path string) (*models.OCRResult, error) {
	start := time.Now()

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(strings.Join(e.languages, "+")); err != nil {
		return nil, fmt.Errorf("failed to set language: %w", err)
	}
	if err := client.SetPageSegMode(gosseract.PSM_AUTO); err != nil {
		return nil, fmt.Errorf("failed to set page segmentation mode: %w", err)
	}
	if err := e.setNormalizedImage(client, path); err != nil {
		return nil, err
	}

	text, err := client.Text()
	if err != nil {
		return nil, fmt.Errorf("failed to get text: %w", err)
	}

	result := &models.OCRResult{
		Text:       text,
		Languages:  e.languages,
		EngineName: e.Name(),
	}

	boxes, err := client.GetBoundingBoxesVerbose()
	if err != nil {
		e.logger.Warn("Failed to get bounding boxes",
			logger.String("path", path),
			logger.Error(err),
		)
	} else {
		var total float64
		for _, box := range boxes {
			confidence := box.Confidence / 100.0
			result.Blocks = append(result.Blocks, models.OCRBlock{
				Text:       box.Word,
				Confidence: confidence,
				BoundingBox: models.BoundingBox{
					X:      box.Box.Min.X,
					Y:      box.Box.Min.Y,
					Width:  box.Box.Max.X - box.Box.Min.X,
					Height: box.Box.Max.Y - box.Box.Min.Y,
				},
			})
			total += confidence
		}
		if len(result.Blocks) > 0 {
			result.Confidence = total / float64(len(result.Blocks))
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result.ProcessingTimeMs = time.Since(start).Milliseconds()
	return result, nil
}
