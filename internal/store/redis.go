package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/docuvault/docscan/internal/models"
)

const (
	keyProgress  = "docscan:progress"
	keyHashes    = "docscan:processed_hashes"
	keyFailed    = "docscan:failed_assets"
	keyHistory   = "docscan:scan_history"
	keyDocuments = "docscan:documents"
	keyHashIndex = "docscan:document_hash_index"
)

// RedisStore implements Store on a redis instance, for deployments that
// already run redis for the task queue.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to redis and verifies the connection.
func NewRedisStore(addr string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Progress(ctx context.Context) (models.ScanProgress, error) {
	var p models.ScanProgress
	data, err := s.client.Get(ctx, keyProgress).Bytes()
	if err == redis.Nil {
		return p, nil
	}
	if err != nil {
		return p, persistErr(err)
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return p, persistErr(err)
	}
	return p, nil
}

func (s *RedisStore) SaveProgress(ctx context.Context, p models.ScanProgress) error {
	data, err := json.Marshal(p)
	if err != nil {
		return persistErr(err)
	}
	return persistErr(s.client.Set(ctx, keyProgress, data, 0).Err())
}

func (s *RedisStore) AddProcessedHash(ctx context.Context, hash string) error {
	return persistErr(s.client.SAdd(ctx, keyHashes, hash).Err())
}

func (s *RedisStore) HasProcessedHash(ctx context.Context, hash string) (bool, error) {
	found, err := s.client.SIsMember(ctx, keyHashes, hash).Result()
	return found, persistErr(err)
}

func (s *RedisStore) SaveFailedAsset(ctx context.Context, entry models.FailedAssetEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return persistErr(err)
	}
	return persistErr(s.client.HSet(ctx, keyFailed, entry.URI, data).Err())
}

func (s *RedisStore) FailedAsset(ctx context.Context, uri string) (models.FailedAssetEntry, bool, error) {
	var entry models.FailedAssetEntry
	data, err := s.client.HGet(ctx, keyFailed, uri).Bytes()
	if err == redis.Nil {
		return entry, false, nil
	}
	if err != nil {
		return entry, false, persistErr(err)
	}
	if err := json.Unmarshal(data, &entry); err != nil {
		return entry, false, persistErr(err)
	}
	return entry, true, nil
}

func (s *RedisStore) RemoveFailedAsset(ctx context.Context, uri string) error {
	return persistErr(s.client.HDel(ctx, keyFailed, uri).Err())
}

func (s *RedisStore) FailedAssets(ctx context.Context) ([]models.FailedAssetEntry, error) {
	raw, err := s.client.HGetAll(ctx, keyFailed).Result()
	if err != nil {
		return nil, persistErr(err)
	}
	entries := make([]models.FailedAssetEntry, 0, len(raw))
	for _, v := range raw {
		var entry models.FailedAssetEntry
		if err := json.Unmarshal([]byte(v), &entry); err != nil {
			return nil, persistErr(err)
		}
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].URI < entries[j].URI })
	return entries, nil
}

// AppendHistory pushes to the head of the history list and trims the tail,
// keeping the list newest first.
func (s *RedisStore) AppendHistory(ctx context.Context, entry models.ScanHistoryEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return persistErr(err)
	}
	if err := s.client.LPush(ctx, keyHistory, data).Err(); err != nil {
		return persistErr(err)
	}
	return persistErr(s.client.LTrim(ctx, keyHistory, 0, HistoryLimit-1).Err())
}

func (s *RedisStore) History(ctx context.Context) ([]models.ScanHistoryEntry, error) {
	raw, err := s.client.LRange(ctx, keyHistory, 0, HistoryLimit-1).Result()
	if err != nil {
		return nil, persistErr(err)
	}
	entries := make([]models.ScanHistoryEntry, 0, len(raw))
	for _, v := range raw {
		var entry models.ScanHistoryEntry
		if err := json.Unmarshal([]byte(v), &entry); err != nil {
			return nil, persistErr(err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (s *RedisStore) Reset(ctx context.Context) error {
	return persistErr(s.client.Del(ctx, keyProgress, keyHashes, keyFailed, keyHistory).Err())
}

func (s *RedisStore) SaveDocument(ctx context.Context, doc *models.DocumentRecord) (bool, error) {
	// HSetNX makes the hash index the idempotency gate.
	claimed, err := s.client.HSetNX(ctx, keyHashIndex, doc.ContentHash, doc.ID).Result()
	if err != nil {
		return false, persistErr(err)
	}
	if !claimed {
		return false, nil
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return false, persistErr(err)
	}
	if err := s.client.HSet(ctx, keyDocuments, doc.ID, data).Err(); err != nil {
		return false, persistErr(err)
	}
	return true, nil
}

func (s *RedisStore) Document(ctx context.Context, id string) (*models.DocumentRecord, error) {
	data, err := s.client.HGet(ctx, keyDocuments, id).Bytes()
	if err == redis.Nil {
		return nil, persistErr(fmt.Errorf("%w: %s", ErrNotFound, id))
	}
	if err != nil {
		return nil, persistErr(err)
	}
	var doc models.DocumentRecord
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, persistErr(err)
	}
	return &doc, nil
}

func (s *RedisStore) FindByHash(ctx context.Context, hash string) (*models.DocumentRecord, error) {
	id, err := s.client.HGet(ctx, keyHashIndex, hash).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, persistErr(err)
	}
	return s.Document(ctx, id)
}

func (s *RedisStore) ListDocuments(ctx context.Context) ([]*models.DocumentRecord, error) {
	raw, err := s.client.HGetAll(ctx, keyDocuments).Result()
	if err != nil {
		return nil, persistErr(err)
	}
	docs := make([]*models.DocumentRecord, 0, len(raw))
	for _, v := range raw {
		var doc models.DocumentRecord
		if err := json.Unmarshal([]byte(v), &doc); err != nil {
			return nil, persistErr(err)
		}
		docs = append(docs, &doc)
	}
	sort.Slice(docs, func(i, j int) bool {
		return docs[i].ProcessedAt.After(docs[j].ProcessedAt)
	})
	return docs, nil
}

func (s *RedisStore) UpdateFields(ctx context.Context, id string, update models.DocumentFieldUpdate) (*models.DocumentRecord, error) {
	doc, err := s.Document(ctx, id)
	if err != nil {
		return nil, err
	}
	applyFieldUpdate(doc, update)
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, persistErr(err)
	}
	if err := s.client.HSet(ctx, keyDocuments, id, data).Err(); err != nil {
		return nil, persistErr(err)
	}
	return doc, nil
}

func (s *RedisStore) DeleteDocument(ctx context.Context, id string) error {
	doc, err := s.Document(ctx, id)
	if err != nil {
		return err
	}
	if err := s.client.HDel(ctx, keyHashIndex, doc.ContentHash).Err(); err != nil {
		return persistErr(err)
	}
	return persistErr(s.client.HDel(ctx, keyDocuments, id).Err())
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
