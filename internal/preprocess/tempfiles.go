package preprocess

import (
	"os"
	"sync"

	"github.com/docuvault/docscan/pkg/logger"
)

// TempTracker owns every temp file created while processing one asset and
// guarantees removal on every exit path. The scheduler also holds a
// scan-scoped reference so an aborted scan can sweep stragglers.
type TempTracker struct {
	mu     sync.Mutex
	paths  []string
	logger logger.Logger
}

func NewTempTracker(log logger.Logger) *TempTracker {
	return &TempTracker{logger: log}
}

// Create makes a tracked temp file and returns its handle. The caller closes
// the file; the tracker removes it.
func (t *TempTracker) Create(pattern string) (*os.File, error) {
	f, err := os.CreateTemp("", pattern)
	if err != nil {
		return nil, err
	}
	t.Track(f.Name())
	return f, nil
}

// Track registers an externally created file for cleanup.
func (t *TempTracker) Track(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.paths = append(t.paths, path)
}

// Release removes every tracked file. Safe to call more than once.
func (t *TempTracker) Release() {
	t.mu.Lock()
	paths := t.paths
	t.paths = nil
	t.mu.Unlock()

	for _, path := range paths {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			t.logger.Warn("Failed to remove temp file",
				logger.String("path", path),
				logger.Error(err),
			)
		}
	}
}

// Count returns the number of currently tracked files.
func (t *TempTracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.paths)
}
