package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	cfg "github.com/docuvault/docscan/config"
	"github.com/docuvault/docscan/internal/models"
	"github.com/docuvault/docscan/pkg/logger"
)

const ollamaPrompt = `Transcribe all text visible in this image exactly as written. ` +
	`Preserve line breaks. Output only the transcription, no commentary.`

// Confidence assigned to vision-model transcriptions; the model reports no
// per-token confidence of its own.
const ollamaConfidence = 0.7

type ollamaResponse struct {
	Response string `json:"response"`
	Model    string `json:"model"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

// OllamaEngine transcribes images through a local vision model.
type OllamaEngine struct {
	endpoint    string
	model       string
	maxTokens   int
	temperature float64
	httpClient  *http.Client
	logger      logger.Logger
	initialized atomic.Bool
}

func NewOllamaEngine(config cfg.OllamaConfig, log logger.Logger) *OllamaEngine {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OllamaEngine{
		endpoint:    config.Endpoint,
		model:       config.Model,
		maxTokens:   config.MaxTokens,
		temperature: config.Temperature,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: log,
	}
}

func (e *OllamaEngine) Name() string {
	return "ollama"
}

func (e *OllamaEngine) Initialize(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.endpoint+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ollama unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama returned status %d", resp.StatusCode)
	}

	e.initialized.Store(true)
	return nil
}

func (e *OllamaEngine) IsInitialized() bool {
	return e.initialized.Load()
}

func (e *OllamaEngine) SupportsLanguage(code string) bool {
	// Vision models are language agnostic for transcription.
	return true
}

func (e *OllamaEngine) ProcessImage(ctx context.Context, path string) (*models.OCRResult, error) {
	start := time.Now()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}

	reqBody := map[string]interface{}{
		"model":       e.model,
		"prompt":      ollamaPrompt,
		"images":      []string{base64.StdEncoding.EncodeToString(data)},
		"stream":      false,
		"max_tokens":  e.maxTokens,
		"temperature": e.temperature,
	}

	reqData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint+"/api/generate", bytes.NewReader(reqData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(body))
	}

	var parsed ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if parsed.Error != "" {
		return nil, fmt.Errorf("ollama error: %s", parsed.Error)
	}

	return &models.OCRResult{
		Text:             parsed.Response,
		Confidence:       ollamaConfidence,
		ProcessingTimeMs: time.Since(start).Milliseconds(),
		EngineName:       e.Name(),
	}, nil
}
