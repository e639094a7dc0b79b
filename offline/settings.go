package offline

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Default cache settings.
const (
	DefaultCompressionThreshold = 4 * 1024         // bytes
	DefaultStorageQuota         = 50 * 1024 * 1024 // 50 MiB
	DefaultCacheExpiration      = 24 * time.Hour
)

// Settings controls the offline cache's behavior. Stored inside the
// cache itself so it survives restarts alongside the data it governs.
type Settings struct {
	Enabled              bool          `json:"enabled"`
	CompressionEnabled   bool          `json:"compression_enabled"`
	CompressionThreshold int64         `json:"compression_threshold"`
	StorageQuota         int64         `json:"storage_quota"`
	CacheExpiration      time.Duration `json:"cache_expiration"`
	AutoDetect           bool          `json:"auto_detect"`
	SyncOnReconnect      bool          `json:"sync_on_reconnect"`
}

// DefaultSettings returns the settings used until a caller saves its own.
func DefaultSettings() Settings {
	return Settings{
		Enabled:              true,
		CompressionEnabled:   true,
		CompressionThreshold: DefaultCompressionThreshold,
		StorageQuota:         DefaultStorageQuota,
		CacheExpiration:      DefaultCacheExpiration,
		AutoDetect:           true,
		SyncOnReconnect:      true,
	}
}

// Validate checks a settings payload before it is saved.
func (s *Settings) Validate() error {
	if s.CompressionThreshold < 0 {
		return errors.New("compression threshold cannot be negative")
	}
	if s.StorageQuota <= 0 {
		return errors.New("storage quota must be positive")
	}
	if s.CacheExpiration <= 0 {
		return errors.New("cache expiration must be positive")
	}
	return nil
}

// MarshalJSON keeps the expiration field human-readable in API payloads.
func (s Settings) MarshalJSON() ([]byte, error) {
	type alias Settings
	return json.Marshal(struct {
		alias
		CacheExpiration string `json:"cache_expiration"`
	}{alias(s), s.CacheExpiration.String()})
}

// UnmarshalJSON accepts the expiration as a Go duration string.
func (s *Settings) UnmarshalJSON(data []byte) error {
	type alias Settings
	aux := struct {
		*alias
		CacheExpiration string `json:"cache_expiration"`
	}{alias: (*alias)(s)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.CacheExpiration != "" {
		d, err := time.ParseDuration(aux.CacheExpiration)
		if err != nil {
			return fmt.Errorf("invalid cache_expiration: %w", err)
		}
		s.CacheExpiration = d
	}
	return nil
}

// Settings returns the persisted cache settings, falling back to the
// defaults when nothing has been saved yet.
func (s *CacheService) Settings() (Settings, error) {
	settings := DefaultSettings()
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(settingsKey))
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error { return json.Unmarshal(v, &settings) })
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return DefaultSettings(), nil
		}
		return DefaultSettings(), fmt.Errorf("load cache settings: %w", err)
	}
	return settings, nil
}

// SaveSettings validates and persists new cache settings. They take
// effect on the next cache operation.
func (s *CacheService) SaveSettings(settings Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshal cache settings: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(settingsKey), data)
	})
	if err != nil {
		return fmt.Errorf("save cache settings: %w", err)
	}
	return nil
}
