// Package store persists scan state and extracted documents. The bolt
// backend is the default; redis serves deployments that already run it
// for the task queue.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/docuvault/docscan/config"
	"github.com/docuvault/docscan/internal/models"
)

// HistoryLimit bounds the scan history ring. Older entries are evicted.
const HistoryLimit = 50

// ErrNotFound reports a lookup for a document ID that does not exist.
var ErrNotFound = errors.New("document not found")

// StateStore holds everything a scan needs to survive a restart: the
// progress checkpoint, the set of processed content hashes, the failed
// asset map and the scan history ring.
type StateStore interface {
	// Progress returns the persisted checkpoint, or a zero value when no
	// scan has ever run.
	Progress(ctx context.Context) (models.ScanProgress, error)

	// SaveProgress overwrites the checkpoint.
	SaveProgress(ctx context.Context, p models.ScanProgress) error

	// AddProcessedHash marks a content hash as processed.
	AddProcessedHash(ctx context.Context, hash string) error

	// HasProcessedHash reports whether a content hash was seen before.
	HasProcessedHash(ctx context.Context, hash string) (bool, error)

	// SaveFailedAsset records or updates a retryable failure keyed by URI.
	SaveFailedAsset(ctx context.Context, entry models.FailedAssetEntry) error

	// FailedAsset returns the entry for uri, or ok=false when absent.
	FailedAsset(ctx context.Context, uri string) (models.FailedAssetEntry, bool, error)

	// RemoveFailedAsset drops uri from the failed set. Missing URIs are a no-op.
	RemoveFailedAsset(ctx context.Context, uri string) error

	// FailedAssets lists every recorded failure.
	FailedAssets(ctx context.Context) ([]models.FailedAssetEntry, error)

	// AppendHistory adds one completed-scan entry, evicting beyond HistoryLimit.
	AppendHistory(ctx context.Context, entry models.ScanHistoryEntry) error

	// History returns entries newest first.
	History(ctx context.Context) ([]models.ScanHistoryEntry, error)

	// Reset clears all scan state. Documents are kept.
	Reset(ctx context.Context) error

	Close() error
}

// DocumentStore holds the extracted document records.
type DocumentStore interface {
	// SaveDocument persists doc. Saving a second document with the same
	// content hash keeps the existing record and reports false.
	SaveDocument(ctx context.Context, doc *models.DocumentRecord) (bool, error)

	// Document retrieves a record by ID.
	Document(ctx context.Context, id string) (*models.DocumentRecord, error)

	// FindByHash retrieves the record for a content hash, or nil when absent.
	FindByHash(ctx context.Context, hash string) (*models.DocumentRecord, error)

	// ListDocuments returns all records, newest first by ProcessedAt.
	ListDocuments(ctx context.Context) ([]*models.DocumentRecord, error)

	// UpdateFields applies a partial edit to a record.
	UpdateFields(ctx context.Context, id string, update models.DocumentFieldUpdate) (*models.DocumentRecord, error)

	// DeleteDocument removes a record by ID.
	DeleteDocument(ctx context.Context, id string) error
}

// Store is the combined persistence surface used by the scanner.
type Store interface {
	StateStore
	DocumentStore
}

// New opens the backend named by cfg.
func New(cfg config.StoreConfig) (Store, error) {
	switch cfg.Backend {
	case "", "bolt":
		return NewBoltStore(cfg.Path)
	case "redis":
		return NewRedisStore(cfg.RedisAddr, cfg.RedisDB)
	default:
		return nil, fmt.Errorf("unknown store backend: %s", cfg.Backend)
	}
}
