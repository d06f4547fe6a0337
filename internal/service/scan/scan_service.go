package scan

import (
	"context"

	"github.com/docuvault/docscan/internal/models"
	"github.com/docuvault/docscan/pkg/queue"
)

// Service is the application surface over the scanner and the stores. The
// API handlers and the queue worker both talk to this interface.
type Service interface {
	// StartScan launches a scan with the given option overrides (nil means
	// configured defaults). Returns the task ID and whether a new scan was
	// actually started; a start while scanning is a no-op.
	StartScan(ctx context.Context, overrides *models.ScanOptions) (taskID string, started bool, err error)

	// RunScan executes a scan synchronously. Called by the queue worker and
	// by StartScan's in-process path.
	RunScan(ctx context.Context, opts models.ScanOptions) (models.ScanState, error)

	// StopScan requests cooperative cancellation of the active scan.
	StopScan(ctx context.Context) error

	// RetryFailed re-attempts the recorded failed assets.
	RetryFailed(ctx context.Context) (attempted, recovered int, err error)

	// Reset clears all scan state (progress, hashes, failures, history).
	// Refused while a scan is active. Documents are kept.
	Reset(ctx context.Context) error

	State() models.ScanState
	GetProgress(ctx context.Context) (models.ScanProgress, error)
	Subscribe() (<-chan models.ScanProgress, func())
	History(ctx context.Context) ([]models.ScanHistoryEntry, error)
	Stats(ctx context.Context) (models.ScanStats, error)
	TaskStatus(ctx context.Context, taskID string) (*queue.TaskStatus, error)

	ListDocuments(ctx context.Context) ([]*models.DocumentRecord, error)
	GetDocument(ctx context.Context, id string) (*models.DocumentRecord, error)
	UpdateDocument(ctx context.Context, id string, update models.DocumentFieldUpdate) (*models.DocumentRecord, error)
	DeleteDocument(ctx context.Context, id string) error

	Close() error
}
