package offline

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"stockboard/services"
)

func newTestSyncCache(t *testing.T) *CacheService {
	t.Helper()
	cache := newTestCache(t)
	// Keep replay retries fast in tests.
	cache.retryConfig = services.RetryConfig{
		MaxRetries:     1,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
	}
	return cache
}

func TestSync_EnqueueAndPending(t *testing.T) {
	cache := newTestSyncCache(t)

	if !cache.EnqueueSync(SyncSaveLayout, "user-1", map[string]string{"id": "l1"}) {
		t.Fatal("EnqueueSync() = false, want true")
	}
	if !cache.EnqueueSync(SyncDeletePreset, "user-1", map[string]string{"id": "p1"}) {
		t.Fatal("EnqueueSync() = false, want true")
	}

	pending, err := cache.PendingSync()
	if err != nil {
		t.Fatalf("PendingSync() error = %v", err)
	}
	if pending != 2 {
		t.Errorf("PendingSync() = %d, want 2", pending)
	}
}

func TestSync_DrainsQueueInOrder(t *testing.T) {
	cache := newTestSyncCache(t)

	base := time.Now()
	clock := base
	cache.now = func() time.Time { return clock }

	for _, id := range []string{"first", "second", "third"} {
		clock = clock.Add(time.Millisecond)
		cache.EnqueueSync(SyncSaveLayout, "user-1", map[string]string{"id": id})
	}

	var replayed []string
	applier := SyncApplierFunc(func(ctx context.Context, action *SyncAction) error {
		var payload map[string]string
		if err := json.Unmarshal(action.Payload, &payload); err != nil {
			return err
		}
		replayed = append(replayed, payload["id"])
		return nil
	})

	result, err := cache.Sync(context.Background(), applier)
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if !result.Success || result.Processed != 3 || result.Failed != 0 {
		t.Errorf("Sync() = %+v, want success with 3 processed", result)
	}

	want := []string{"first", "second", "third"}
	for i, id := range want {
		if i >= len(replayed) || replayed[i] != id {
			t.Fatalf("replay order = %v, want %v", replayed, want)
		}
	}

	pending, _ := cache.PendingSync()
	if pending != 0 {
		t.Errorf("PendingSync() after drain = %d, want 0", pending)
	}
}

func TestSync_FailedActionStaysQueued(t *testing.T) {
	cache := newTestSyncCache(t)

	base := time.Now()
	clock := base
	cache.now = func() time.Time { return clock }

	clock = clock.Add(time.Millisecond)
	cache.EnqueueSync(SyncSaveLayout, "user-1", map[string]string{"id": "ok"})
	clock = clock.Add(time.Millisecond)
	cache.EnqueueSync(SyncDeleteLayout, "user-1", map[string]string{"id": "bad"})
	clock = clock.Add(time.Millisecond)
	cache.EnqueueSync(SyncCreatePreset, "user-1", map[string]string{"id": "ok2"})

	applier := SyncApplierFunc(func(ctx context.Context, action *SyncAction) error {
		if action.Type == SyncDeleteLayout {
			return errors.New("repository unavailable")
		}
		return nil
	})

	result, err := cache.Sync(context.Background(), applier)
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if result.Success {
		t.Error("Success = true with a failed action, want false")
	}
	if result.Processed != 2 {
		t.Errorf("Processed = %d, want 2", result.Processed)
	}
	if result.Failed != 1 {
		t.Errorf("Failed = %d, want 1", result.Failed)
	}

	// The failed action is retained for the next drain, attempts bumped.
	pending, _ := cache.PendingSync()
	if pending != 1 {
		t.Fatalf("PendingSync() = %d, want 1", pending)
	}

	retry, err := cache.Sync(context.Background(), SyncApplierFunc(
		func(ctx context.Context, action *SyncAction) error {
			if action.Attempts == 0 {
				t.Errorf("Attempts = 0 on retried action, want > 0")
			}
			return nil
		}))
	if err != nil {
		t.Fatalf("Sync() retry error = %v", err)
	}
	if !retry.Success || retry.Processed != 1 {
		t.Errorf("retry Sync() = %+v, want 1 processed", retry)
	}
}

func TestSync_EmptyQueue(t *testing.T) {
	cache := newTestSyncCache(t)

	result, err := cache.Sync(context.Background(), SyncApplierFunc(
		func(ctx context.Context, action *SyncAction) error {
			t.Error("applier called on empty queue")
			return nil
		}))
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if !result.Success || result.Processed != 0 || result.Failed != 0 {
		t.Errorf("Sync() on empty queue = %+v, want clean success", result)
	}
}

func TestSync_ContextCancellation(t *testing.T) {
	cache := newTestSyncCache(t)

	cache.EnqueueSync(SyncSaveLayout, "user-1", map[string]string{"id": "l1"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := cache.Sync(ctx, SyncApplierFunc(
		func(ctx context.Context, action *SyncAction) error { return nil }))
	if err == nil {
		t.Error("Sync() with cancelled context = nil, want error")
	}
}
