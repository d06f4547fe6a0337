package ocr

import (
	"context"
	"fmt"
	"image"
	"os"
	"strings"
	"sync/atomic"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/textract"
	"github.com/aws/aws-sdk-go-v2/service/textract/types"

	cfg "github.com/docuvault/docscan/config"
	"github.com/docuvault/docscan/internal/models"
	"github.com/docuvault/docscan/pkg/logger"
)

// TextractEngine runs recognition through AWS Textract.
type TextractEngine struct {
	client      *textract.Client
	config      *cfg.TextractConfig
	logger      logger.Logger
	initialized atomic.Bool
}

func NewTextractEngine(config *cfg.TextractConfig, log logger.Logger) *TextractEngine {
	return &TextractEngine{
		config: config,
		logger: log,
	}
}

func (e *TextractEngine) Name() string {
	return "textract"
}

func (e *TextractEngine) Initialize(ctx context.Context) error {
	if e.config.AccessKey == "" || e.config.SecretKey == "" {
		return fmt.Errorf("textract credentials not configured")
	}

	creds := credentials.NewStaticCredentialsProvider(
		e.config.AccessKey,
		e.config.SecretKey,
		"",
	)

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(e.config.Region),
		awsconfig.WithCredentialsProvider(creds),
	)
	if err != nil {
		return fmt.Errorf("unable to load AWS config: %w", err)
	}

	e.client = textract.NewFromConfig(awsCfg)
	e.initialized.Store(true)
	return nil
}

func (e *TextractEngine) IsInitialized() bool {
	return e.initialized.Load()
}

func (e *TextractEngine) SupportsLanguage(code string) bool {
	// Textract auto-detects among its supported set.
	switch strings.ToLower(code) {
	case "en", "eng", "es", "de", "fr", "it", "pt":
		return true
	default:
		return false
	}
}

func (e *TextractEngine) ProcessImage(ctx context.Context, path string) (*models.OCRResult, error) {
	start := time.Now()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}

	width, height := imageSize(path)

	output, err := e.client.DetectDocumentText(ctx, &textract.DetectDocumentTextInput{
		Document: &types.Document{
			Bytes: data,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to analyze document: %w", err)
	}

	result := &models.OCRResult{
		EngineName: e.Name(),
	}

	var lines []string
	var total float64
	for _, block := range output.Blocks {
		if block.BlockType != types.BlockTypeLine || block.Text == nil {
			continue
		}

		confidence := 0.0
		if block.Confidence != nil {
			confidence = float64(*block.Confidence) / 100.0
		}

		ocrBlock := models.OCRBlock{
			Text:       *block.Text,
			Confidence: confidence,
		}
		if block.Geometry != nil && block.Geometry.BoundingBox != nil && width > 0 {
			// Textract reports normalized geometry.
			bb := block.Geometry.BoundingBox
			ocrBlock.BoundingBox = models.BoundingBox{
				X:      int(float64(bb.Left) * float64(width)),
				Y:      int(float64(bb.Top) * float64(height)),
				Width:  int(float64(bb.Width) * float64(width)),
				Height: int(float64(bb.Height) * float64(height)),
			}
		}

		result.Blocks = append(result.Blocks, ocrBlock)
		lines = append(lines, *block.Text)
		total += confidence
	}

	result.Text = strings.Join(lines, "\n")
	if len(result.Blocks) > 0 {
		result.Confidence = total / float64(len(result.Blocks))
	}
	result.ProcessingTimeMs = time.Since(start).Milliseconds()

	return result, nil
}

func imageSize(path string) (int, int) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0
	}
	defer f.Close()

	config, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0
	}
	return config.Width, config.Height
}
