// Package ocr hosts the pluggable text-recognition engines and the fusion
// step that merges their per-asset outputs into a single result.
package ocr

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/docuvault/docscan/internal/models"
	"github.com/docuvault/docscan/internal/scanerr"
	"github.com/docuvault/docscan/pkg/logger"
)

// Engine is one text-recognition backend.
type Engine interface {
	Name() string
	Initialize(ctx context.Context) error
	// ProcessImage runs recognition against a readable local image path.
	ProcessImage(ctx context.Context, path string) (*models.OCRResult, error)
	IsInitialized() bool
	SupportsLanguage(code string) bool
}

// Registry holds the configured engines and the subset that initialized
// successfully. A failed engine is excluded, never fatal.
type Registry struct {
	mu        sync.RWMutex
	engines   []Engine
	available []Engine
	logger    logger.Logger
}

func NewRegistry(log logger.Logger, engines ...Engine) *Registry {
	return &Registry{
		engines: engines,
		logger:  log,
	}
}

// Initialize brings up every engine in parallel. Partial failure degrades
// the available set; only a fully empty set is an error.
func (r *Registry) Initialize(ctx context.Context) error {
	var mu sync.Mutex
	var available []Engine

	g, ctx := errgroup.WithContext(ctx)
	for _, engine := range r.engines {
		engine := engine
		g.Go(func() error {
			if err := engine.Initialize(ctx); err != nil {
				r.logger.Warn("OCR engine failed to initialize",
					logger.String("engine", engine.Name()),
					logger.Error(err),
				)
				return nil // degrade, don't fail the group
			}
			mu.Lock()
			available = append(available, engine)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	r.mu.Lock()
	r.available = available
	r.mu.Unlock()

	if len(available) == 0 {
		return scanerr.New(scanerr.KindEngineInitFailure, nil)
	}

	r.logger.Info("OCR engines initialized",
		logger.Int("available", len(available)),
		logger.Int("configured", len(r.engines)),
	)
	return nil
}

// Available returns the engines that initialized successfully.
func (r *Registry) Available() []Engine {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Engine, len(r.available))
	copy(out, r.available)
	return out
}

// RunAll fans the image out to every available engine in parallel and
// collects the successful results. The caller bounds the whole fan-out with
// its context deadline.
func (r *Registry) RunAll(ctx context.Context, path string) []*models.OCRResult {
	available := r.Available()
	results := make([]*models.OCRResult, len(available))

	var wg sync.WaitGroup
	for i, engine := range available {
		wg.Add(1)
		go func(i int, engine Engine) {
			defer wg.Done()
			result, err := engine.ProcessImage(ctx, path)
			if err != nil {
				r.logger.Warn("OCR engine failed",
					logger.String("engine", engine.Name()),
					logger.String("path", path),
					logger.Error(err),
				)
				return
			}
			results[i] = result
		}(i, engine)
	}
	wg.Wait()

	var collected []*models.OCRResult
	for _, result := range results {
		if result != nil {
			collected = append(collected, result)
		}
	}
	return collected
}
