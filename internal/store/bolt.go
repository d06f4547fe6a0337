package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.etcd.io/bbolt"

	"github.com/docuvault/docscan/internal/models"
	"github.com/docuvault/docscan/internal/scanerr"
)

const (
	bucketProgress  = "scan_progress"
	bucketHashes    = "processed_hashes"
	bucketFailed    = "failed_assets"
	bucketHistory   = "scan_history"
	bucketDocuments = "documents"
	bucketHashIndex = "document_hash_index"

	progressKey = "current"
)

var allBuckets = []string{
	bucketProgress, bucketHashes, bucketFailed,
	bucketHistory, bucketDocuments, bucketHashIndex,
}

// BoltStore implements Store on a single bbolt file.
type BoltStore struct {
	db *bbolt.DB
}

// NewBoltStore opens (or creates) the database at path.
func NewBoltStore(path string) (*BoltStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltStore{db: db}, nil
}

func persistErr(err error) error {
	if err == nil {
		return nil
	}
	return scanerr.New(scanerr.KindPersistenceFailure, err)
}

// Progress returns the persisted checkpoint, or a zero value when none exists.
func (s *BoltStore) Progress(ctx context.Context) (models.ScanProgress, error) {
	var p models.ScanProgress
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(bucketProgress)).Get([]byte(progressKey))
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &p)
	})
	return p, persistErr(err)
}

// SaveProgress overwrites the checkpoint.
func (s *BoltStore) SaveProgress(ctx context.Context, p models.ScanProgress) error {
	return persistErr(s.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("marshaling progress: %w", err)
		}
		return tx.Bucket([]byte(bucketProgress)).Put([]byte(progressKey), data)
	}))
}

func (s *BoltStore) AddProcessedHash(ctx context.Context, hash string) error {
	return persistErr(s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketHashes)).Put([]byte(hash), []byte{1})
	}))
}

func (s *BoltStore) HasProcessedHash(ctx context.Context, hash string) (bool, error) {
	var found bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		found = tx.Bucket([]byte(bucketHashes)).Get([]byte(hash)) != nil
		return nil
	})
	return found, persistErr(err)
}

func (s *BoltStore) SaveFailedAsset(ctx context.Context, entry models.FailedAssetEntry) error {
	return persistErr(s.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("marshaling failed asset: %w", err)
		}
		return tx.Bucket([]byte(bucketFailed)).Put([]byte(entry.URI), data)
	}))
}

func (s *BoltStore) FailedAsset(ctx context.Context, uri string) (models.FailedAssetEntry, bool, error) {
	var entry models.FailedAssetEntry
	var found bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(bucketFailed)).Get([]byte(uri))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &entry)
	})
	return entry, found, persistErr(err)
}

func (s *BoltStore) RemoveFailedAsset(ctx context.Context, uri string) error {
	return persistErr(s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketFailed)).Delete([]byte(uri))
	}))
}

func (s *BoltStore) FailedAssets(ctx context.Context) ([]models.FailedAssetEntry, error) {
	entries := make([]models.FailedAssetEntry, 0)
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketFailed)).ForEach(func(k, v []byte) error {
			var entry models.FailedAssetEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				return fmt.Errorf("unmarshaling failed asset: %w", err)
			}
			entries = append(entries, entry)
			return nil
		})
	})
	if err != nil {
		return nil, persistErr(err)
	}
	return entries, nil
}

// AppendHistory stores one entry under a monotonic sequence key and evicts
// the oldest entries beyond HistoryLimit.
func (s *BoltStore) AppendHistory(ctx context.Context, entry models.ScanHistoryEntry) error {
	return persistErr(s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketHistory))
		seq, err := bucket.NextSequence()
		if err != nil {
			return err
		}
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, seq)
		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("marshaling history entry: %w", err)
		}
		if err := bucket.Put(key, data); err != nil {
			return err
		}
		count := 0
		c := bucket.Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			count++
		}
		for count > HistoryLimit {
			k, _ := bucket.Cursor().First()
			if k == nil {
				break
			}
			if err := bucket.Delete(k); err != nil {
				return err
			}
			count--
		}
		return nil
	}))
}

// History returns entries newest first.
func (s *BoltStore) History(ctx context.Context) ([]models.ScanHistoryEntry, error) {
	entries := make([]models.ScanHistoryEntry, 0)
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(bucketHistory)).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var entry models.ScanHistoryEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				return fmt.Errorf("unmarshaling history entry: %w", err)
			}
			entries = append(entries, entry)
		}
		return nil
	})
	if err != nil {
		return nil, persistErr(err)
	}
	return entries, nil
}

// Reset clears scan state buckets. Documents survive a reset.
func (s *BoltStore) Reset(ctx context.Context) error {
	return persistErr(s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{bucketProgress, bucketHashes, bucketFailed, bucketHistory} {
			if err := tx.DeleteBucket([]byte(name)); err != nil {
				return err
			}
			if _, err := tx.CreateBucket([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	}))
}

// SaveDocument persists doc keyed by ID and indexes its content hash. When
// the hash is already indexed the existing record wins and ok is false.
func (s *BoltStore) SaveDocument(ctx context.Context, doc *models.DocumentRecord) (bool, error) {
	var saved bool
	err := s.db.Update(func(tx *bbolt.Tx) error {
		index := tx.Bucket([]byte(bucketHashIndex))
		if existing := index.Get([]byte(doc.ContentHash)); existing != nil {
			return nil
		}
		data, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("marshaling document: %w", err)
		}
		if err := tx.Bucket([]byte(bucketDocuments)).Put([]byte(doc.ID), data); err != nil {
			return err
		}
		if err := index.Put([]byte(doc.ContentHash), []byte(doc.ID)); err != nil {
			return err
		}
		saved = true
		return nil
	})
	return saved, persistErr(err)
}

func (s *BoltStore) Document(ctx context.Context, id string) (*models.DocumentRecord, error) {
	var doc *models.DocumentRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(bucketDocuments)).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return json.Unmarshal(data, &doc)
	})
	if err != nil {
		return nil, persistErr(err)
	}
	return doc, nil
}

// FindByHash returns the document indexed under hash, or nil when absent.
func (s *BoltStore) FindByHash(ctx context.Context, hash string) (*models.DocumentRecord, error) {
	var doc *models.DocumentRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		id := tx.Bucket([]byte(bucketHashIndex)).Get([]byte(hash))
		if id == nil {
			return nil
		}
		data := tx.Bucket([]byte(bucketDocuments)).Get(id)
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &doc)
	})
	if err != nil {
		return nil, persistErr(err)
	}
	return doc, nil
}

func (s *BoltStore) ListDocuments(ctx context.Context) ([]*models.DocumentRecord, error) {
	docs := make([]*models.DocumentRecord, 0)
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketDocuments)).ForEach(func(k, v []byte) error {
			var doc models.DocumentRecord
			if err := json.Unmarshal(v, &doc); err != nil {
				return fmt.Errorf("unmarshaling document: %w", err)
			}
			docs = append(docs, &doc)
			return nil
		})
	})
	if err != nil {
		return nil, persistErr(err)
	}
	sort.Slice(docs, func(i, j int) bool {
		return docs[i].ProcessedAt.After(docs[j].ProcessedAt)
	})
	return docs, nil
}

// UpdateFields applies the user-editable fields to a stored record.
func (s *BoltStore) UpdateFields(ctx context.Context, id string, update models.DocumentFieldUpdate) (*models.DocumentRecord, error) {
	var doc *models.DocumentRecord
	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketDocuments))
		data := bucket.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		if err := json.Unmarshal(data, &doc); err != nil {
			return err
		}
		applyFieldUpdate(doc, update)
		data, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("marshaling document: %w", err)
		}
		return bucket.Put([]byte(id), data)
	})
	if err != nil {
		return nil, persistErr(err)
	}
	return doc, nil
}

func applyFieldUpdate(doc *models.DocumentRecord, update models.DocumentFieldUpdate) {
	if update.Vendor != nil {
		doc.Metadata.Vendor = *update.Vendor
	}
	if update.TotalAmount == nil && update.Currency == nil {
		return
	}
	for i := range doc.Metadata.Amounts {
		if !doc.Metadata.Amounts[i].IsTotal {
			continue
		}
		if update.TotalAmount != nil {
			doc.Metadata.Amounts[i].Value = *update.TotalAmount
		}
		if update.Currency != nil {
			doc.Metadata.Amounts[i].Currency = *update.Currency
		}
		return
	}
	// No total on record yet; create one from the edit.
	total := models.Amount{IsTotal: true}
	if update.TotalAmount != nil {
		total.Value = *update.TotalAmount
	}
	if update.Currency != nil {
		total.Currency = *update.Currency
	}
	doc.Metadata.Amounts = append(doc.Metadata.Amounts, total)
}

// DeleteDocument removes a record and its hash index entry.
func (s *BoltStore) DeleteDocument(ctx context.Context, id string) error {
	return persistErr(s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketDocuments))
		data := bucket.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		var doc models.DocumentRecord
		if err := json.Unmarshal(data, &doc); err != nil {
			return err
		}
		if err := tx.Bucket([]byte(bucketHashIndex)).Delete([]byte(doc.ContentHash)); err != nil {
			return err
		}
		return bucket.Delete([]byte(id))
	}))
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
