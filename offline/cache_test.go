package offline

import (
	"bytes"
	"testing"
	"time"
)

func newTestCache(t *testing.T) *CacheService {
	t.Helper()
	cache, err := NewCacheService(Config{InMemory: true})
	if err != nil {
		t.Fatalf("NewCacheService() error = %v", err)
	}
	t.Cleanup(func() { cache.Close() })
	return cache
}

func TestCache_PutAndGet(t *testing.T) {
	cache := newTestCache(t)

	value := []byte(`{"symbol":"AAPL","price":190.5}`)
	if !cache.Put(KindQuote, "AAPL", value) {
		t.Fatal("Put() = false, want true")
	}

	got, ok := cache.Get(KindQuote, "AAPL")
	if !ok {
		t.Fatal("Get() = false, want hit")
	}
	if !bytes.Equal(got, value) {
		t.Errorf("Get() = %s, want %s", got, value)
	}
}

func TestCache_GetMiss(t *testing.T) {
	cache := newTestCache(t)

	if _, ok := cache.Get(KindQuote, "MISSING"); ok {
		t.Error("Get() on missing key = true, want false")
	}
}

func TestCache_CompressesLargeValues(t *testing.T) {
	cache := newTestCache(t)

	// Highly compressible payload over the default threshold.
	large := bytes.Repeat([]byte("history-point,"), 1024)
	if int64(len(large)) < DefaultCompressionThreshold {
		t.Fatalf("test payload too small: %d", len(large))
	}

	if !cache.Put(KindHistory, "AAPL", large) {
		t.Fatal("Put() = false, want true")
	}

	stats, err := cache.Stats()
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.CompressedSize >= stats.TotalSize {
		t.Errorf("CompressedSize = %d, want < TotalSize %d", stats.CompressedSize, stats.TotalSize)
	}

	// Round trip must return the original bytes.
	got, ok := cache.Get(KindHistory, "AAPL")
	if !ok {
		t.Fatal("Get() = false, want hit")
	}
	if !bytes.Equal(got, large) {
		t.Error("compressed round trip did not return original value")
	}
}

func TestCache_SmallValuesStoredRaw(t *testing.T) {
	cache := newTestCache(t)

	small := []byte("below-threshold")
	if !cache.Put(KindQuote, "SPY", small) {
		t.Fatal("Put() = false, want true")
	}

	stats, err := cache.Stats()
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.CompressedSize != stats.TotalSize {
		t.Errorf("small value should be stored raw: stored %d, original %d",
			stats.CompressedSize, stats.TotalSize)
	}
}

func TestCache_ExpiredEntryIsMiss(t *testing.T) {
	cache := newTestCache(t)

	base := time.Now()
	cache.now = func() time.Time { return base }

	if !cache.Put(KindQuote, "AAPL", []byte("stale")) {
		t.Fatal("Put() = false, want true")
	}

	// Advance past the expiration window.
	cache.now = func() time.Time { return base.Add(DefaultCacheExpiration + time.Minute) }

	if _, ok := cache.Get(KindQuote, "AAPL"); ok {
		t.Error("Get() on expired entry = true, want miss")
	}
}

func TestCache_DisabledRejectsOperations(t *testing.T) {
	cache := newTestCache(t)

	settings := DefaultSettings()
	settings.Enabled = false
	if err := cache.SaveSettings(settings); err != nil {
		t.Fatalf("SaveSettings() error = %v", err)
	}

	if cache.Put(KindQuote, "AAPL", []byte("x")) {
		t.Error("Put() with caching disabled = true, want false")
	}
	if _, ok := cache.Get(KindQuote, "AAPL"); ok {
		t.Error("Get() with caching disabled = true, want false")
	}
}

func TestCache_QuotaEvictsLeastRecentlyUsed(t *testing.T) {
	cache := newTestCache(t)

	settings := DefaultSettings()
	settings.CompressionEnabled = false
	settings.StorageQuota = 3 * 100 // room for three 100-byte entries
	if err := cache.SaveSettings(settings); err != nil {
		t.Fatalf("SaveSettings() error = %v", err)
	}

	base := time.Now()
	clock := base
	cache.now = func() time.Time { return clock }

	payload := bytes.Repeat([]byte("x"), 100)
	for _, key := range []string{"OLD", "MID", "NEW"} {
		clock = clock.Add(time.Second)
		if !cache.Put(KindQuote, key, payload) {
			t.Fatalf("Put(%s) = false, want true", key)
		}
	}

	// Touch MID so OLD stays the least recently used.
	clock = clock.Add(time.Second)
	if _, ok := cache.Get(KindQuote, "MID"); !ok {
		t.Fatal("Get(MID) = false, want hit")
	}

	// A fourth entry forces eviction of OLD.
	clock = clock.Add(time.Second)
	if !cache.Put(KindQuote, "EXTRA", payload) {
		t.Fatal("Put(EXTRA) = false, want true after eviction")
	}

	if _, ok := cache.Get(KindQuote, "OLD"); ok {
		t.Error("least recently used entry survived eviction")
	}
	for _, key := range []string{"MID", "NEW", "EXTRA"} {
		if _, ok := cache.Get(KindQuote, key); !ok {
			t.Errorf("entry %s evicted, want retained", key)
		}
	}
}

func TestCache_OversizedWriteSkipped(t *testing.T) {
	cache := newTestCache(t)

	settings := DefaultSettings()
	settings.CompressionEnabled = false
	settings.StorageQuota = 64
	if err := cache.SaveSettings(settings); err != nil {
		t.Fatalf("SaveSettings() error = %v", err)
	}

	if cache.Put(KindHistory, "HUGE", bytes.Repeat([]byte("x"), 128)) {
		t.Error("Put() larger than quota = true, want false")
	}
}

func TestCache_Delete(t *testing.T) {
	cache := newTestCache(t)

	cache.Put(KindQuote, "AAPL", []byte("x"))
	if !cache.Delete(KindQuote, "AAPL") {
		t.Fatal("Delete() = false, want true")
	}
	if _, ok := cache.Get(KindQuote, "AAPL"); ok {
		t.Error("Get() after delete = true, want miss")
	}
}

func TestCache_JSONRoundTrip(t *testing.T) {
	cache := newTestCache(t)

	type point struct {
		Price float64 `json:"price"`
	}
	in := []point{{101.5}, {102.25}}

	if !cache.PutJSON(KindHistory, "AAPL", in) {
		t.Fatal("PutJSON() = false, want true")
	}

	var out []point
	if !cache.GetJSON(KindHistory, "AAPL", &out) {
		t.Fatal("GetJSON() = false, want hit")
	}
	if len(out) != 2 || out[0].Price != 101.5 {
		t.Errorf("GetJSON() = %+v, want %+v", out, in)
	}
}

func TestCache_GetJSONCorruptEntryDropped(t *testing.T) {
	cache := newTestCache(t)

	cache.Put(KindHistory, "BAD", []byte("not json"))

	var out map[string]any
	if cache.GetJSON(KindHistory, "BAD", &out) {
		t.Fatal("GetJSON() on corrupt entry = true, want false")
	}
	// Corrupt entries are removed on read.
	if _, ok := cache.Get(KindHistory, "BAD"); ok {
		t.Error("corrupt entry still present after failed GetJSON")
	}
}

func TestCache_SettingsPersistence(t *testing.T) {
	cache := newTestCache(t)

	settings := DefaultSettings()
	settings.StorageQuota = 1024
	settings.CompressionThreshold = 256
	settings.SyncOnReconnect = false
	if err := cache.SaveSettings(settings); err != nil {
		t.Fatalf("SaveSettings() error = %v", err)
	}

	got, err := cache.Settings()
	if err != nil {
		t.Fatalf("Settings() error = %v", err)
	}
	if got.StorageQuota != 1024 || got.CompressionThreshold != 256 || got.SyncOnReconnect {
		t.Errorf("Settings() = %+v, want saved values", got)
	}
}

func TestCache_SaveSettingsValidation(t *testing.T) {
	cache := newTestCache(t)

	tests := []struct {
		name   string
		mutate func(*Settings)
	}{
		{"negative threshold", func(s *Settings) { s.CompressionThreshold = -1 }},
		{"zero quota", func(s *Settings) { s.StorageQuota = 0 }},
		{"zero expiration", func(s *Settings) { s.CacheExpiration = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := DefaultSettings()
			tt.mutate(&settings)
			if err := cache.SaveSettings(settings); err == nil {
				t.Error("SaveSettings() = nil, want validation error")
			}
		})
	}
}
