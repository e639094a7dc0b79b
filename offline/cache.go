package offline

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"

	"stockboard/observability"
	"stockboard/services"
)

// Key prefixes inside the badger store. Metadata is kept separate from
// payloads so stats, eviction and usage analysis never have to load or
// decompress entry bodies.
const (
	metaPrefix = "meta:"
	dataPrefix = "data:"
	syncPrefix = "sync:"
	settingsKey = "settings"
)

// Entry kinds used by the dashboard. Callers may use their own kinds;
// these are the ones the orchestration layer writes.
const (
	KindHistory    = "history"
	KindPrediction = "prediction"
	KindQuote      = "quote"
	KindNews       = "news"
	KindLayout     = "layout"
)

// entryMeta is the per-entry bookkeeping record.
type entryMeta struct {
	Kind         string    `json:"kind"`
	Key          string    `json:"key"`
	Compressed   bool      `json:"compressed"`
	OriginalSize int64     `json:"original_size"`
	StoredSize   int64     `json:"stored_size"`
	CreatedAt    time.Time `json:"created_at"`
	LastAccess   time.Time `json:"last_access"`
	ExpiresAt    time.Time `json:"expires_at"`
}

func (m *entryMeta) expired(now time.Time) bool {
	return !m.ExpiresAt.IsZero() && now.After(m.ExpiresAt)
}

// Config configures the cache service.
type Config struct {
	// Path is the directory for badger files. Ignored when InMemory is set.
	Path string
	// InMemory opens a non-persistent store, used by tests.
	InMemory bool
	// SyncWrites forces synchronous writes for durability.
	SyncWrites bool
}

// badgerLogger routes badger's internal logging through slog.
type badgerLogger struct{}

func (badgerLogger) Errorf(format string, args ...interface{}) {
	observability.Error(fmt.Sprintf("badger: "+format, args...))
}
func (badgerLogger) Warningf(format string, args ...interface{}) {
	observability.Warn(fmt.Sprintf("badger: "+format, args...))
}
func (badgerLogger) Infof(format string, args ...interface{})  {}
func (badgerLogger) Debugf(format string, args ...interface{}) {}

// CacheService is the offline cache and compression layer. It owns a
// badger store holding cached market data, dashboard state and the queue
// of mutations made while the backing repository was unreachable.
//
// All dependencies are constructor-injected; there is no package-level
// instance.
type CacheService struct {
	db       *badger.DB
	inMemory bool

	// retryConfig governs per-action backoff during sync replay.
	retryConfig services.RetryConfig

	// now is swapped out by tests exercising expiry.
	now func() time.Time
}

// NewCacheService opens the cache store.
func NewCacheService(cfg Config) (*CacheService, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, errors.New("cache path is required")
		}
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create cache directory: %w", err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithLogger(badgerLogger{})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open cache store: %w", err)
	}

	s := &CacheService{
		db:          db,
		inMemory:    cfg.InMemory,
		retryConfig: services.DefaultRetryConfig,
		now:         time.Now,
	}
	s.updateSizeGauge()
	return s, nil
}

// Close releases the underlying store. The service must not be used
// afterwards.
func (s *CacheService) Close() error {
	return s.db.Close()
}

// Flush forces pending writes to disk. A no-op for in-memory stores.
func (s *CacheService) Flush() error {
	if s.inMemory {
		return nil
	}
	return s.db.Sync()
}

func metaKey(kind, key string) []byte {
	return []byte(metaPrefix + kind + ":" + key)
}

func dataKey(kind, key string) []byte {
	return []byte(dataPrefix + kind + ":" + key)
}

// Get returns the cached value for (kind, key). A miss, an expired entry
// or any storage failure all report false; callers fall back to the live
// data path. A hit refreshes the entry's last-access time.
func (s *CacheService) Get(kind, key string) ([]byte, bool) {
	metrics := observability.GetMetrics()
	settings, _ := s.Settings()
	if !settings.Enabled {
		return nil, false
	}

	var payload []byte
	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(metaKey(kind, key))
		if err != nil {
			return err
		}
		var meta entryMeta
		if err := item.Value(func(v []byte) error { return json.Unmarshal(v, &meta) }); err != nil {
			return err
		}
		if meta.expired(s.now()) {
			return badger.ErrKeyNotFound
		}

		dataItem, err := txn.Get(dataKey(kind, key))
		if err != nil {
			return err
		}
		stored, err := dataItem.ValueCopy(nil)
		if err != nil {
			return err
		}

		if meta.Compressed {
			payload, err = gunzip(stored)
			if err != nil {
				return fmt.Errorf("decompress cache entry: %w", err)
			}
		} else {
			payload = stored
		}

		meta.LastAccess = s.now()
		return writeMeta(txn, &meta)
	})
	if err != nil {
		if !errors.Is(err, badger.ErrKeyNotFound) {
			observability.WithError(err).Warn("cache read failed", "kind", kind, "key", key)
		}
		metrics.RecordCacheMiss(kind)
		return nil, false
	}

	metrics.RecordCacheHit(kind)
	return payload, true
}

// Put stores a value under (kind, key). Values at or above the configured
// compression threshold are gzipped before storage. Returns false when
// caching is disabled, the store rejects the write, or eviction cannot
// free enough space to fit the entry under the quota.
func (s *CacheService) Put(kind, key string, value []byte) bool {
	metrics := observability.GetMetrics()
	settings, _ := s.Settings()
	if !settings.Enabled {
		return false
	}

	stored := value
	compressed := false
	if settings.CompressionEnabled && int64(len(value)) >= settings.CompressionThreshold {
		gz, err := gzipBytes(value)
		// Only keep the compressed form when it actually saves space.
		if err == nil && len(gz) < len(value) {
			stored = gz
			compressed = true
			metrics.RecordCompressionSavings(int64(len(value) - len(gz)))
		}
	}

	entrySize := int64(len(stored))
	if entrySize > settings.StorageQuota {
		observability.Warn("cache entry exceeds storage quota, skipping",
			"kind", kind, "key", key, "size", entrySize, "quota", settings.StorageQuota)
		return false
	}

	// Make room before writing. Eviction is best-effort; if the store is
	// still too full afterwards the write is skipped.
	used := s.usedBytes()
	if used+entrySize > settings.StorageQuota {
		s.evict(settings.StorageQuota - entrySize)
		if s.usedBytes()+entrySize > settings.StorageQuota {
			observability.Warn("cache quota exhausted, write skipped",
				"kind", kind, "key", key, "used", s.usedBytes(), "quota", settings.StorageQuota)
			return false
		}
	}

	now := s.now()
	meta := entryMeta{
		Kind:         kind,
		Key:          key,
		Compressed:   compressed,
		OriginalSize: int64(len(value)),
		StoredSize:   entrySize,
		CreatedAt:    now,
		LastAccess:   now,
		ExpiresAt:    now.Add(settings.CacheExpiration),
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(dataKey(kind, key), stored); err != nil {
			return err
		}
		return writeMeta(txn, &meta)
	})
	if err != nil {
		observability.WithError(err).Warn("cache write failed", "kind", kind, "key", key)
		return false
	}

	s.updateSizeGauge()
	return true
}

// Delete removes a single entry. Missing entries are not an error.
func (s *CacheService) Delete(kind, key string) bool {
	err := s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(metaKey(kind, key)); err != nil {
			return err
		}
		return txn.Delete(dataKey(kind, key))
	})
	if err != nil {
		observability.WithError(err).Warn("cache delete failed", "kind", kind, "key", key)
		return false
	}
	s.updateSizeGauge()
	return true
}

// GetJSON unmarshals a cached entry into out.
func (s *CacheService) GetJSON(kind, key string, out any) bool {
	data, ok := s.Get(kind, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		observability.WithError(err).Warn("cache entry corrupt", "kind", kind, "key", key)
		s.Delete(kind, key)
		return false
	}
	return true
}

// PutJSON marshals v and stores it.
func (s *CacheService) PutJSON(kind, key string, v any) bool {
	data, err := json.Marshal(v)
	if err != nil {
		observability.WithError(err).Warn("cache marshal failed", "kind", kind, "key", key)
		return false
	}
	return s.Put(kind, key, data)
}

func writeMeta(txn *badger.Txn, meta *entryMeta) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return txn.Set(metaKey(meta.Kind, meta.Key), data)
}

// forEachMeta iterates all entry metadata records in key order.
func (s *CacheService) forEachMeta(fn func(meta *entryMeta) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(metaPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var meta entryMeta
			err := it.Item().Value(func(v []byte) error { return json.Unmarshal(v, &meta) })
			if err != nil {
				continue
			}
			if err := fn(&meta); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *CacheService) usedBytes() int64 {
	var total int64
	_ = s.forEachMeta(func(meta *entryMeta) error {
		total += meta.StoredSize
		return nil
	})
	return total
}

func (s *CacheService) updateSizeGauge() {
	observability.GetMetrics().SetCacheSize(s.usedBytes())
}

func gzipBytes(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func gunzip(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
