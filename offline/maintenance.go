package offline

import (
	"fmt"
	"sort"

	"github.com/dgraph-io/badger/v4"

	"stockboard/observability"
)

// Stats summarizes what the cache currently holds. Sizes are bytes;
// TotalSize counts uncompressed payload sizes, CompressedSize what is
// actually stored.
type Stats struct {
	TotalItems       int            `json:"total_items"`
	TotalSize        int64          `json:"total_size"`
	CompressedSize   int64          `json:"compressed_size"`
	CompressionRatio float64        `json:"compression_ratio"`
	ItemsByType      map[string]int `json:"items_by_type"`
}

// Stats walks the entry metadata and aggregates counts and sizes.
func (s *CacheService) Stats() (*Stats, error) {
	stats := &Stats{ItemsByType: make(map[string]int)}
	err := s.forEachMeta(func(meta *entryMeta) error {
		stats.TotalItems++
		stats.TotalSize += meta.OriginalSize
		stats.CompressedSize += meta.StoredSize
		stats.ItemsByType[meta.Kind]++
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("collect cache stats: %w", err)
	}
	if stats.TotalSize > 0 {
		stats.CompressionRatio = float64(stats.CompressedSize) / float64(stats.TotalSize)
	}
	return stats, nil
}

// CompressResult reports what a CompressAll sweep did.
type CompressResult struct {
	Processed int   `json:"processed"`
	Saved     int64 `json:"saved"`
}

// CompressAll compresses every stored entry at or above the compression
// threshold that is not compressed yet. Entries written before
// compression was enabled, or before a threshold change, pick up the
// current policy here.
func (s *CacheService) CompressAll() (*CompressResult, error) {
	settings, err := s.Settings()
	if err != nil {
		return nil, err
	}

	var candidates []entryMeta
	err = s.forEachMeta(func(meta *entryMeta) error {
		if !meta.Compressed && meta.OriginalSize >= settings.CompressionThreshold {
			candidates = append(candidates, *meta)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan cache for compression: %w", err)
	}

	result := &CompressResult{}
	for i := range candidates {
		meta := candidates[i]
		err := s.db.Update(func(txn *badger.Txn) error {
			item, err := txn.Get(dataKey(meta.Kind, meta.Key))
			if err != nil {
				return err
			}
			raw, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			gz, err := gzipBytes(raw)
			if err != nil {
				return err
			}
			if len(gz) >= len(raw) {
				// Incompressible payload; leave it alone.
				return nil
			}
			if err := txn.Set(dataKey(meta.Kind, meta.Key), gz); err != nil {
				return err
			}
			saved := int64(len(raw) - len(gz))
			meta.Compressed = true
			meta.StoredSize = int64(len(gz))
			if err := writeMeta(txn, &meta); err != nil {
				return err
			}
			result.Processed++
			result.Saved += saved
			return nil
		})
		if err != nil {
			observability.WithError(err).Warn("compress sweep entry failed",
				"kind", meta.Kind, "key", meta.Key)
		}
	}

	if result.Saved > 0 {
		observability.GetMetrics().RecordCompressionSavings(result.Saved)
	}
	s.updateSizeGauge()
	return result, nil
}

// Cleanup removes expired entries, then, when force is set or the store
// is over quota, evicts least-recently-used entries until usage fits
// under the quota. Returns the number of entries removed.
func (s *CacheService) Cleanup(force bool) (int, error) {
	settings, err := s.Settings()
	if err != nil {
		return 0, err
	}

	removed := s.removeExpired()

	if force || s.usedBytes() > settings.StorageQuota {
		removed += s.evict(settings.StorageQuota)
	}

	s.updateSizeGauge()
	return removed, nil
}

// removeExpired drops every entry past its expiration.
func (s *CacheService) removeExpired() int {
	now := s.now()
	var expired []entryMeta
	_ = s.forEachMeta(func(meta *entryMeta) error {
		if meta.expired(now) {
			expired = append(expired, *meta)
		}
		return nil
	})

	removed := 0
	for i := range expired {
		if s.deleteEntry(&expired[i]) {
			removed++
		}
	}
	if removed > 0 {
		observability.GetMetrics().RecordCacheEviction("expired", removed)
	}
	return removed
}

// evict removes least-recently-used entries until stored bytes fit under
// targetBytes. Returns the number of entries removed.
func (s *CacheService) evict(targetBytes int64) int {
	var entries []entryMeta
	var used int64
	_ = s.forEachMeta(func(meta *entryMeta) error {
		entries = append(entries, *meta)
		used += meta.StoredSize
		return nil
	})
	if used <= targetBytes {
		return 0
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].LastAccess.Before(entries[j].LastAccess)
	})

	removed := 0
	for i := range entries {
		if used <= targetBytes {
			break
		}
		if s.deleteEntry(&entries[i]) {
			used -= entries[i].StoredSize
			removed++
		}
	}
	if removed > 0 {
		observability.GetMetrics().RecordCacheEviction("lru", removed)
		observability.Info("cache eviction completed", "removed", removed, "used", used)
	}
	return removed
}

func (s *CacheService) deleteEntry(meta *entryMeta) bool {
	err := s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(metaKey(meta.Kind, meta.Key)); err != nil {
			return err
		}
		return txn.Delete(dataKey(meta.Kind, meta.Key))
	})
	if err != nil {
		observability.WithError(err).Warn("cache eviction delete failed",
			"kind", meta.Kind, "key", meta.Key)
		return false
	}
	return true
}

// EntryInfo describes one cache entry in a usage report.
type EntryInfo struct {
	Kind       string `json:"kind"`
	Key        string `json:"key"`
	StoredSize int64  `json:"stored_size"`
	Compressed bool   `json:"compressed"`
}

// UsageReport is the read-only output of AnalyzeUsage.
type UsageReport struct {
	UsagePercentage float64     `json:"usage_percentage"`
	Suggestions     []string    `json:"suggestions"`
	LargestEntries  []EntryInfo `json:"largest_entries"`
}

const usageReportTopN = 10

// AnalyzeUsage inspects the cache and reports how full it is, the
// largest entries, and suggested actions. It never mutates the store.
func (s *CacheService) AnalyzeUsage() (*UsageReport, error) {
	settings, err := s.Settings()
	if err != nil {
		return nil, err
	}

	var entries []entryMeta
	var used int64
	uncompressedLarge := 0
	now := s.now()
	expired := 0
	err = s.forEachMeta(func(meta *entryMeta) error {
		entries = append(entries, *meta)
		used += meta.StoredSize
		if !meta.Compressed && meta.OriginalSize >= settings.CompressionThreshold {
			uncompressedLarge++
		}
		if meta.expired(now) {
			expired++
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("analyze cache usage: %w", err)
	}

	report := &UsageReport{
		UsagePercentage: float64(used) / float64(settings.StorageQuota) * 100,
	}

	if report.UsagePercentage > 90 {
		report.Suggestions = append(report.Suggestions,
			"cache is over 90% of quota; run cleanup or raise the storage quota")
	}
	if uncompressedLarge > 0 {
		report.Suggestions = append(report.Suggestions,
			fmt.Sprintf("%d large entries are uncompressed; run compress-all", uncompressedLarge))
	}
	if expired > 0 {
		report.Suggestions = append(report.Suggestions,
			fmt.Sprintf("%d expired entries can be cleaned up", expired))
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].StoredSize > entries[j].StoredSize
	})
	top := len(entries)
	if top > usageReportTopN {
		top = usageReportTopN
	}
	for _, meta := range entries[:top] {
		report.LargestEntries = append(report.LargestEntries, EntryInfo{
			Kind:       meta.Kind,
			Key:        meta.Key,
			StoredSize: meta.StoredSize,
			Compressed: meta.Compressed,
		})
	}
	return report, nil
}
