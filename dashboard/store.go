package dashboard

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"stockboard/models"
	"stockboard/observability"
	"stockboard/offline"
)

// anonymousKey partitions the in-memory state of unauthenticated
// sessions. Anonymous layouts are never persisted server-side.
const anonymousKey = "anonymous"

// LayoutRepository is the persistence surface the store needs.
type LayoutRepository interface {
	GetLayout(ctx context.Context, userID string) (*models.DashboardLayout, error)
	SaveLayout(ctx context.Context, layout *models.DashboardLayout) error
	DeleteLayout(ctx context.Context, userID string) error
}

// SyncQueue receives mutations whose persistence failed, for replay once
// the repository is reachable again.
type SyncQueue interface {
	EnqueueSync(actionType offline.SyncActionType, userID string, payload any) bool
}

// LayoutStore owns dashboard layouts. Every operation yields a usable
// result: reads fall back to the built-in default layout, mutations
// report success as a boolean and never propagate storage errors. The
// in-memory copy is the source of truth for reads; the repository is
// authoritative across restarts.
type LayoutStore struct {
	mu     sync.RWMutex
	repo   LayoutRepository // nil runs the store memory-only
	queue  SyncQueue        // optional
	memory map[string]*models.DashboardLayout
}

// NewLayoutStore creates a store. repo and queue may be nil.
func NewLayoutStore(repo LayoutRepository, queue SyncQueue) *LayoutStore {
	return &LayoutStore{
		repo:   repo,
		queue:  queue,
		memory: make(map[string]*models.DashboardLayout),
	}
}

func memoryKey(userID string) string {
	if userID == "" {
		return anonymousKey
	}
	return userID
}

// GetLayout returns the user's layout. Order of preference: in-memory
// copy, persisted copy, built-in default. It never fails.
func (s *LayoutStore) GetLayout(ctx context.Context, userID string) *models.DashboardLayout {
	key := memoryKey(userID)

	s.mu.RLock()
	cached := s.memory[key]
	s.mu.RUnlock()
	if cached != nil {
		return cached.Clone()
	}

	if userID != "" && s.repo != nil {
		layout, err := s.repo.GetLayout(ctx, userID)
		if err != nil {
			observability.WithUser(userID).Warn("layout load failed, serving default", "error", err.Error())
		} else if layout != nil {
			s.mu.Lock()
			s.memory[key] = layout
			s.mu.Unlock()
			return layout.Clone()
		}
	}

	layout := DefaultLayout(userID)
	s.mu.Lock()
	s.memory[key] = layout
	s.mu.Unlock()
	return layout.Clone()
}

// SaveLayout replaces the user's layout wholesale. On persistence
// failure the previous state is retained, the mutation is queued for
// sync, and false is returned.
func (s *LayoutStore) SaveLayout(ctx context.Context, userID string, layout *models.DashboardLayout) bool {
	if layout == nil || layout.Validate() != nil {
		observability.GetMetrics().RecordDashboardOp("save_layout", false)
		return false
	}
	replacement := layout.Clone()
	replacement.UserID = userID
	ok := s.commit(ctx, userID, "save_layout", func(*models.DashboardLayout) (*models.DashboardLayout, bool) {
		return replacement, true
	})
	return ok
}

// AddWidget appends a new widget of the given type. Placement follows
// the append-to-bottom heuristic: first free row at x=0 spanning the
// full grid width; an empty layout gets the default size at the origin.
func (s *LayoutStore) AddWidget(ctx context.Context, userID string, widgetType models.WidgetType, title string, settings *models.WidgetSettings) bool {
	if !models.ValidWidgetType(widgetType) {
		observability.GetMetrics().RecordDashboardOp("add_widget", false)
		return false
	}

	return s.commit(ctx, userID, "add_widget", func(current *models.DashboardLayout) (*models.DashboardLayout, bool) {
		next := current.Clone()

		id := uuid.NewString()
		widget := models.WidgetConfig{
			ID:    id,
			Type:  widgetType,
			Title: title,
			Position: models.GridPosition{
				I: id,
				X: 0,
				Y: next.NextFreeRow(),
				W: models.DefaultWidgetWidth,
				H: models.DefaultWidgetHeight,
			},
		}
		if settings != nil {
			widget.Settings = *settings
		} else {
			widget.Settings = models.DefaultSettings(widgetType)
		}

		next.Widgets = append(next.Widgets, widget)
		return next, true
	})
}

// WidgetUpdate carries the partial fields UpdateWidget merges into an
// existing widget. Nil fields are left untouched.
type WidgetUpdate struct {
	Title    *string                `json:"title,omitempty"`
	Settings *models.WidgetSettings `json:"settings,omitempty"`
}

// UpdateWidget merges a partial update into the widget with the given
// id. Returns false when the id does not exist.
func (s *LayoutStore) UpdateWidget(ctx context.Context, userID, widgetID string, update WidgetUpdate) bool {
	return s.commit(ctx, userID, "update_widget", func(current *models.DashboardLayout) (*models.DashboardLayout, bool) {
		next := current.Clone()
		widget := next.Widget(widgetID)
		if widget == nil {
			return nil, false
		}
		if update.Title != nil {
			widget.Title = *update.Title
		}
		if update.Settings != nil {
			widget.Settings.Merge(*update.Settings)
		}
		return next, true
	})
}

// RemoveWidget deletes the widget with the given id. Removing an absent
// widget is a successful no-op.
func (s *LayoutStore) RemoveWidget(ctx context.Context, userID, widgetID string) bool {
	return s.commit(ctx, userID, "remove_widget", func(current *models.DashboardLayout) (*models.DashboardLayout, bool) {
		next := current.Clone()
		kept := make([]models.WidgetConfig, 0, len(next.Widgets))
		for _, w := range next.Widgets {
			if w.ID != widgetID {
				kept = append(kept, w)
			}
		}
		next.Widgets = kept
		return next, true
	})
}

// UpdateLayout bulk-applies new grid positions after a drag-and-drop,
// matching widgets by the position correlation key.
func (s *LayoutStore) UpdateLayout(ctx context.Context, userID string, positions []models.GridPosition) bool {
	return s.commit(ctx, userID, "update_layout", func(current *models.DashboardLayout) (*models.DashboardLayout, bool) {
		next := current.Clone()
		byKey := make(map[string]models.GridPosition, len(positions))
		for _, p := range positions {
			byKey[p.I] = p
		}
		for i := range next.Widgets {
			if p, ok := byKey[next.Widgets[i].ID]; ok {
				next.Widgets[i].Position = models.GridPosition{
					I: next.Widgets[i].ID,
					X: p.X, Y: p.Y, W: p.W, H: p.H,
				}
			}
		}
		return next, true
	})
}

// ReplaceWidgets swaps in a whole new widget set. Used when applying a
// preset; documented as destructive.
func (s *LayoutStore) ReplaceWidgets(ctx context.Context, userID string, widgets []models.WidgetConfig) bool {
	return s.commit(ctx, userID, "replace_widgets", func(current *models.DashboardLayout) (*models.DashboardLayout, bool) {
		next := current.Clone()
		next.Widgets = make([]models.WidgetConfig, len(widgets))
		for i, w := range widgets {
			next.Widgets[i] = w.Clone()
		}
		return next, true
	})
}

// ResetDashboard replaces the layout with the built-in default set.
func (s *LayoutStore) ResetDashboard(ctx context.Context, userID string) bool {
	return s.commit(ctx, userID, "reset_dashboard", func(*models.DashboardLayout) (*models.DashboardLayout, bool) {
		return DefaultLayout(userID), true
	})
}

// commit runs a mutation against the current layout and persists the
// result. The in-memory state only advances when persistence succeeds
// (or is not applicable), so a failed write leaves readers on the prior
// state.
func (s *LayoutStore) commit(ctx context.Context, userID, op string, mutate func(*models.DashboardLayout) (*models.DashboardLayout, bool)) bool {
	metrics := observability.GetMetrics()

	current := s.GetLayout(ctx, userID)
	next, ok := mutate(current)
	if !ok {
		metrics.RecordDashboardOp(op, false)
		return false
	}
	next.UserID = userID
	next.LastUpdated = time.Now()

	if err := next.Validate(); err != nil {
		observability.WithUser(userID).Warn("layout mutation rejected", "op", op, "error", err.Error())
		metrics.RecordDashboardOp(op, false)
		return false
	}

	if userID != "" && s.repo != nil {
		if err := s.repo.SaveLayout(ctx, next); err != nil {
			observability.WithUser(userID).Warn("layout persistence failed", "op", op, "error", err.Error())
			if s.queue != nil {
				s.queue.EnqueueSync(offline.SyncSaveLayout, userID, next)
			}
			metrics.RecordDashboardOp(op, false)
			return false
		}
	}

	s.mu.Lock()
	s.memory[memoryKey(userID)] = next
	s.mu.Unlock()

	metrics.RecordDashboardOp(op, true)
	metrics.RecordLayoutSize(op, len(next.Widgets))
	return true
}
