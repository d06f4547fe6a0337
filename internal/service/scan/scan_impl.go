package scan

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/docuvault/docscan/config"
	"github.com/docuvault/docscan/internal/assets"
	"github.com/docuvault/docscan/internal/models"
	"github.com/docuvault/docscan/internal/ocr"
	"github.com/docuvault/docscan/internal/preprocess"
	"github.com/docuvault/docscan/internal/resource"
	"github.com/docuvault/docscan/internal/scanner"
	"github.com/docuvault/docscan/internal/store"
	"github.com/docuvault/docscan/pkg/logger"
	"github.com/docuvault/docscan/pkg/queue"
)

// ErrScanActive is returned by operations that refuse to run while a scan
// is in progress.
var ErrScanActive = errors.New("scan in progress")

type ScanService struct {
	cfg     *config.Config
	scanner *scanner.Scanner
	store   store.Store
	queue   queue.Queue // nil when the queue is disabled
	logger  logger.Logger
}

func NewService(
	cfg *config.Config,
	sc *scanner.Scanner,
	st store.Store,
	q queue.Queue,
	log logger.Logger,
) *ScanService {
	return &ScanService{
		cfg:     cfg,
		scanner: sc,
		store:   st,
		queue:   q,
		logger:  log,
	}
}

var (
	serviceOnce sync.Once
	service     *ScanService
	serviceErr  error
)

// GetService builds the fully wired service once per process. Config comes
// from DOCSCAN_CONFIG (default config.yaml); credentials from the
// environment.
func GetService(log logger.Logger) (*ScanService, error) {
	serviceOnce.Do(func() {
		service, serviceErr = buildService(log)
	})
	return service, serviceErr
}

func buildService(log logger.Logger) (*ScanService, error) {
	path := os.Getenv("DOCSCAN_CONFIG")
	if path == "" {
		path = "config.yaml"
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	st, err := store.New(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	source, err := assets.NewSource(assets.SourceType(cfg.Assets.Source), cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create asset source: %w", err)
	}

	registry := ocr.NewRegistry(log, buildEngines(cfg, log)...)
	initCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := registry.Initialize(initCtx); err != nil {
		return nil, fmt.Errorf("failed to initialize OCR engines: %w", err)
	}

	monitor := resource.NewHeapMonitor(resource.DeviceConditions{
		OnWifi:     os.Getenv("DOCSCAN_OFFLINE") == "",
		LowBattery: false,
	})

	sc := scanner.New(
		source,
		st,
		ocr.NewFusion(registry, log),
		preprocess.New(source, log),
		monitor,
		log,
		scanner.DefaultTiming(),
	)

	var q queue.Queue
	if cfg.Queue.Enabled {
		q, err = queue.NewAsynqQueue(&queue.Config{
			RedisAddr: cfg.Queue.RedisAddr,
			RedisDB:   cfg.Queue.RedisDB,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize queue: %w", err)
		}
	}

	return NewService(cfg, sc, st, q, log), nil
}

func buildEngines(cfg *config.Config, log logger.Logger) []ocr.Engine {
	var engines []ocr.Engine
	if cfg.Engines.Tesseract.Enabled {
		engines = append(engines, ocr.NewTesseractEngine(cfg.Engines.Tesseract.Languages, log))
	}
	if tc := config.GetTextractConfig(); tc.Enabled {
		engines = append(engines, ocr.NewTextractEngine(tc, log))
	}
	if cfg.Engines.Ollama.Enabled {
		engines = append(engines, ocr.NewOllamaEngine(cfg.Engines.Ollama, log))
	}
	return engines
}

// StartScan dispatches a scan. With the queue enabled the worker process
// picks it up; otherwise it runs on a background goroutine here.
func (s *ScanService) StartScan(ctx context.Context, overrides *models.ScanOptions) (string, bool, error) {
	if s.scanner.State() == models.ScanStateScanning {
		return "", false, nil
	}

	opts := s.cfg.ScanOptions()
	if overrides != nil {
		opts = *overrides
	}
	if err := s.scanner.CheckConditions(opts); err != nil {
		return "", false, err
	}

	taskID := uuid.NewString()
	if s.queue != nil {
		task := &queue.ScanTask{
			ID:        taskID,
			Type:      queue.TaskTypeScanRun,
			Options:   opts,
			CreatedAt: time.Now(),
		}
		if err := s.queue.Enqueue(ctx, task); err != nil {
			return "", false, err
		}
		s.logger.Info("Scan enqueued", logger.String("taskId", taskID))
		return taskID, true, nil
	}

	go func() {
		if _, err := s.scanner.Run(context.Background(), opts); err != nil {
			s.logger.Error("Scan failed", logger.Error(err))
		}
	}()
	s.logger.Info("Scan started in-process", logger.String("taskId", taskID))
	return taskID, true, nil
}

func (s *ScanService) RunScan(ctx context.Context, opts models.ScanOptions) (models.ScanState, error) {
	return s.scanner.Run(ctx, opts)
}

func (s *ScanService) StopScan(ctx context.Context) error {
	s.scanner.Stop()
	return nil
}

func (s *ScanService) RetryFailed(ctx context.Context) (int, int, error) {
	return s.scanner.RetryFailed(ctx, s.cfg.ScanOptions())
}

func (s *ScanService) Reset(ctx context.Context) error {
	if s.scanner.State() == models.ScanStateScanning {
		return ErrScanActive
	}
	return s.store.Reset(ctx)
}

func (s *ScanService) State() models.ScanState {
	return s.scanner.State()
}

func (s *ScanService) GetProgress(ctx context.Context) (models.ScanProgress, error) {
	return s.scanner.Progress(ctx)
}

func (s *ScanService) Subscribe() (<-chan models.ScanProgress, func()) {
	return s.scanner.Subscribe()
}

func (s *ScanService) History(ctx context.Context) ([]models.ScanHistoryEntry, error) {
	return s.store.History(ctx)
}

func (s *ScanService) Stats(ctx context.Context) (models.ScanStats, error) {
	return s.scanner.Stats(ctx)
}

func (s *ScanService) TaskStatus(ctx context.Context, taskID string) (*queue.TaskStatus, error) {
	if s.queue == nil {
		return nil, errors.New("queue disabled")
	}
	return s.queue.GetTaskStatus(ctx, taskID)
}

func (s *ScanService) ListDocuments(ctx context.Context) ([]*models.DocumentRecord, error) {
	return s.store.ListDocuments(ctx)
}

func (s *ScanService) GetDocument(ctx context.Context, id string) (*models.DocumentRecord, error) {
	return s.store.Document(ctx, id)
}

func (s *ScanService) UpdateDocument(ctx context.Context, id string, update models.DocumentFieldUpdate) (*models.DocumentRecord, error) {
	if update.Vendor == nil && update.TotalAmount == nil && update.Currency == nil {
		return nil, errors.New("no fields to update")
	}
	return s.store.UpdateFields(ctx, id, update)
}

func (s *ScanService) DeleteDocument(ctx context.Context, id string) error {
	return s.store.DeleteDocument(ctx, id)
}

func (s *ScanService) Close() error {
	if s.queue != nil {
		if err := s.queue.Close(); err != nil {
			s.logger.Warn("Failed to close queue", logger.Error(err))
		}
	}
	return s.store.Close()
}
