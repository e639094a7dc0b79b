package offline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"stockboard/observability"
	"stockboard/services"
)

// SyncActionType identifies a queued offline mutation.
type SyncActionType string

const (
	SyncSaveLayout   SyncActionType = "save_layout"
	SyncDeleteLayout SyncActionType = "delete_layout"
	SyncCreatePreset SyncActionType = "create_preset"
	SyncDeletePreset SyncActionType = "delete_preset"
)

// SyncAction is a mutation made while the backing repository was
// unreachable, queued for replay. Payload is the JSON form of whatever
// the action type needs (a layout, a preset, or a delete target).
type SyncAction struct {
	ID         uuid.UUID       `json:"id"`
	Type       SyncActionType  `json:"type"`
	UserID     string          `json:"user_id"`
	Payload    json.RawMessage `json:"payload"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
	Attempts   int             `json:"attempts"`
}

// SyncApplier replays one queued action against the live repository.
type SyncApplier interface {
	Apply(ctx context.Context, action *SyncAction) error
}

// SyncApplierFunc adapts a function to the SyncApplier interface.
type SyncApplierFunc func(ctx context.Context, action *SyncAction) error

func (f SyncApplierFunc) Apply(ctx context.Context, action *SyncAction) error {
	return f(ctx, action)
}

// SyncResult reports the outcome of a sync drain. Success is true only
// when every queued action replayed.
type SyncResult struct {
	Success   bool `json:"success"`
	Processed int  `json:"processed"`
	Failed    int  `json:"failed"`
}

func syncKey(enqueuedAt time.Time, id uuid.UUID) []byte {
	// Nanosecond timestamp prefix keeps iteration in enqueue order.
	return []byte(fmt.Sprintf("%s%020d:%s", syncPrefix, enqueuedAt.UnixNano(), id))
}

// EnqueueSync stores a mutation for later replay. Returns false when the
// queue write itself fails; the mutation is then lost to sync and the
// caller's in-memory state is the only copy.
func (s *CacheService) EnqueueSync(actionType SyncActionType, userID string, payload any) bool {
	data, err := json.Marshal(payload)
	if err != nil {
		observability.WithError(err).Error("sync enqueue marshal failed", "type", string(actionType))
		return false
	}
	action := SyncAction{
		ID:         uuid.New(),
		Type:       actionType,
		UserID:     userID,
		Payload:    data,
		EnqueuedAt: s.now(),
	}
	raw, err := json.Marshal(action)
	if err != nil {
		observability.WithError(err).Error("sync enqueue marshal failed", "type", string(actionType))
		return false
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(syncKey(action.EnqueuedAt, action.ID), raw)
	})
	if err != nil {
		observability.WithError(err).Error("sync enqueue write failed", "type", string(actionType))
		return false
	}
	observability.WithUser(userID).Info("mutation queued for sync", "type", string(actionType))
	return true
}

// PendingSync returns the number of queued actions.
func (s *CacheService) PendingSync() (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(syncPrefix)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("count sync queue: %w", err)
	}
	return count, nil
}

// Sync drains the queue in enqueue order. Each action is replayed
// independently with retry and backoff; one action failing never blocks
// the rest. Replayed actions leave the queue, failed ones stay for the
// next drain with their attempt count bumped.
func (s *CacheService) Sync(ctx context.Context, applier SyncApplier) (*SyncResult, error) {
	metrics := observability.GetMetrics()

	type queued struct {
		key    []byte
		action SyncAction
	}
	var actions []queued
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(syncPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			var action SyncAction
			err := item.Value(func(v []byte) error { return json.Unmarshal(v, &action) })
			if err != nil {
				observability.WithError(err).Warn("corrupt sync queue entry skipped")
				continue
			}
			actions = append(actions, queued{key: item.KeyCopy(nil), action: action})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read sync queue: %w", err)
	}

	result := &SyncResult{Success: true}
	for i := range actions {
		if err := ctx.Err(); err != nil {
			result.Success = false
			return result, err
		}
		q := &actions[i]

		err := services.WithRetry(ctx, s.retryConfig, func() error {
			return applier.Apply(ctx, &q.action)
		})
		if err != nil {
			result.Failed++
			result.Success = false
			metrics.RecordSyncAction("failed")
			observability.WithError(err).Warn("sync action failed",
				"type", string(q.action.Type), "attempts", q.action.Attempts+1)

			q.action.Attempts++
			s.rewriteSyncAction(q.key, &q.action)
			continue
		}

		result.Processed++
		metrics.RecordSyncAction("replayed")
		delErr := s.db.Update(func(txn *badger.Txn) error { return txn.Delete(q.key) })
		if delErr != nil {
			observability.WithError(delErr).Warn("sync dequeue failed", "type", string(q.action.Type))
		}
	}

	if result.Processed > 0 || result.Failed > 0 {
		observability.Info("sync drain finished",
			"processed", result.Processed, "failed", result.Failed)
	}
	return result, nil
}

func (s *CacheService) rewriteSyncAction(key []byte, action *SyncAction) {
	raw, err := json.Marshal(action)
	if err != nil {
		return
	}
	err = s.db.Update(func(txn *badger.Txn) error { return txn.Set(key, raw) })
	if err != nil {
		observability.WithError(err).Warn("sync attempt count update failed")
	}
}
