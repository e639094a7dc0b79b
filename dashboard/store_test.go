package dashboard

import (
	"context"
	"errors"
	"sync"
	"testing"

	"stockboard/models"
	"stockboard/offline"
)

// mockLayoutRepo implements LayoutRepository in memory with injectable
// failures.
type mockLayoutRepo struct {
	mu      sync.Mutex
	layouts map[string]*models.DashboardLayout
	err     error
	saves   int
}

func newMockLayoutRepo() *mockLayoutRepo {
	return &mockLayoutRepo{layouts: make(map[string]*models.DashboardLayout)}
}

func (m *mockLayoutRepo) GetLayout(ctx context.Context, userID string) (*models.DashboardLayout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if l, ok := m.layouts[userID]; ok {
		return l.Clone(), nil
	}
	return nil, nil
}

func (m *mockLayoutRepo) SaveLayout(ctx context.Context, layout *models.DashboardLayout) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.saves++
	m.layouts[layout.UserID] = layout.Clone()
	return nil
}

func (m *mockLayoutRepo) DeleteLayout(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	delete(m.layouts, userID)
	return nil
}

// mockSyncQueue records enqueued actions.
type mockSyncQueue struct {
	mu      sync.Mutex
	actions []offline.SyncActionType
}

func (m *mockSyncQueue) EnqueueSync(actionType offline.SyncActionType, userID string, payload any) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actions = append(m.actions, actionType)
	return true
}

func TestGetLayout_DefaultWhenEmpty(t *testing.T) {
	store := NewLayoutStore(newMockLayoutRepo(), nil)

	layout := store.GetLayout(context.Background(), "user-1")
	if layout == nil {
		t.Fatal("GetLayout() = nil, want default layout")
	}
	if len(layout.Widgets) == 0 {
		t.Error("default layout has no widgets")
	}
	if err := layout.Validate(); err != nil {
		t.Errorf("default layout invalid: %v", err)
	}
}

func TestGetLayout_ReturnsPersisted(t *testing.T) {
	repo := newMockLayoutRepo()
	persisted := models.NewDashboardLayout("user-1")
	repo.layouts["user-1"] = persisted

	store := NewLayoutStore(repo, nil)
	layout := store.GetLayout(context.Background(), "user-1")
	if layout.ID != persisted.ID {
		t.Errorf("GetLayout() ID = %v, want persisted %v", layout.ID, persisted.ID)
	}
}

func TestGetLayout_RepoFailureServesDefault(t *testing.T) {
	repo := newMockLayoutRepo()
	repo.err = errors.New("connection refused")

	store := NewLayoutStore(repo, nil)
	layout := store.GetLayout(context.Background(), "user-1")
	if layout == nil {
		t.Fatal("GetLayout() = nil on repo failure, want default")
	}
}

func TestAddWidget_EmptyLayoutPlacement(t *testing.T) {
	store := NewLayoutStore(nil, nil)
	ctx := context.Background()
	userID := "user-1"

	// Start from an empty layout.
	if !store.SaveLayout(ctx, userID, models.NewDashboardLayout(userID)) {
		t.Fatal("SaveLayout() = false")
	}

	if !store.AddWidget(ctx, userID, models.WidgetTypeNews, "Actualités", nil) {
		t.Fatal("AddWidget() = false, want true")
	}

	layout := store.GetLayout(ctx, userID)
	if len(layout.Widgets) != 1 {
		t.Fatalf("len(Widgets) = %d, want 1", len(layout.Widgets))
	}
	w := layout.Widgets[0]
	if w.Position.X != 0 || w.Position.Y != 0 {
		t.Errorf("position = (%d,%d), want origin", w.Position.X, w.Position.Y)
	}
	if w.Position.W != models.DefaultWidgetWidth || w.Position.H != models.DefaultWidgetHeight {
		t.Errorf("size = (%d,%d), want defaults (%d,%d)",
			w.Position.W, w.Position.H, models.DefaultWidgetWidth, models.DefaultWidgetHeight)
	}
	if w.Position.I != w.ID {
		t.Error("position correlation key does not match widget id")
	}
	if w.Title != "Actualités" {
		t.Errorf("Title = %q, want Actualités", w.Title)
	}
}

func TestAddWidget_AppendsBelowExisting(t *testing.T) {
	store := NewLayoutStore(nil, nil)
	ctx := context.Background()
	userID := "user-1"
	store.SaveLayout(ctx, userID, models.NewDashboardLayout(userID))

	store.AddWidget(ctx, userID, models.WidgetTypeChart, "Chart", nil)
	store.AddWidget(ctx, userID, models.WidgetTypeNews, "News", nil)

	layout := store.GetLayout(ctx, userID)
	if len(layout.Widgets) != 2 {
		t.Fatalf("len(Widgets) = %d, want 2", len(layout.Widgets))
	}
	first, second := layout.Widgets[0], layout.Widgets[1]
	if second.Position.Y != first.Position.Y+first.Position.H {
		t.Errorf("second widget Y = %d, want %d (below the first)",
			second.Position.Y, first.Position.Y+first.Position.H)
	}
}

func TestAddWidget_NoIDCollisionUnderRapidCalls(t *testing.T) {
	store := NewLayoutStore(nil, nil)
	ctx := context.Background()
	userID := "user-1"
	store.SaveLayout(ctx, userID, models.NewDashboardLayout(userID))

	for i := 0; i < 50; i++ {
		if !store.AddWidget(ctx, userID, models.WidgetTypeChart, "Chart", nil) {
			t.Fatalf("AddWidget() #%d = false", i)
		}
	}

	layout := store.GetLayout(ctx, userID)
	seen := make(map[string]bool)
	for _, w := range layout.Widgets {
		if seen[w.ID] {
			t.Fatalf("duplicate widget id %s", w.ID)
		}
		seen[w.ID] = true
	}
	if len(seen) != 50 {
		t.Errorf("widget count = %d, want 50", len(seen))
	}
}

func TestUpdateWidget(t *testing.T) {
	store := NewLayoutStore(nil, nil)
	ctx := context.Background()
	userID := "user-1"
	store.SaveLayout(ctx, userID, models.NewDashboardLayout(userID))
	store.AddWidget(ctx, userID, models.WidgetTypeChart, "Old Title", nil)

	widgetID := store.GetLayout(ctx, userID).Widgets[0].ID

	title := "New Title"
	if !store.UpdateWidget(ctx, userID, widgetID, WidgetUpdate{Title: &title}) {
		t.Fatal("UpdateWidget() = false, want true")
	}
	if got := store.GetLayout(ctx, userID).Widgets[0].Title; got != "New Title" {
		t.Errorf("Title = %q, want New Title", got)
	}

	// Unknown id is a no-op reported as false.
	if store.UpdateWidget(ctx, userID, "missing", WidgetUpdate{Title: &title}) {
		t.Error("UpdateWidget() on missing id = true, want false")
	}
}

func TestUpdateWidget_MergesSettings(t *testing.T) {
	store := NewLayoutStore(nil, nil)
	ctx := context.Background()
	userID := "user-1"
	store.SaveLayout(ctx, userID, models.NewDashboardLayout(userID))
	store.AddWidget(ctx, userID, models.WidgetTypeChart, "Chart", nil)

	widgetID := store.GetLayout(ctx, userID).Widgets[0].ID
	update := WidgetUpdate{Settings: &models.WidgetSettings{
		Chart: &models.ChartSettings{Symbol: "AAPL", Range: "1y", ChartKind: "candlestick"},
	}}
	if !store.UpdateWidget(ctx, userID, widgetID, update) {
		t.Fatal("UpdateWidget() = false")
	}

	got := store.GetLayout(ctx, userID).Widgets[0].Settings.Chart
	if got == nil || got.Symbol != "AAPL" || got.Range != "1y" {
		t.Errorf("Settings.Chart = %+v, want merged update", got)
	}
}

func TestRemoveWidget_Idempotent(t *testing.T) {
	store := NewLayoutStore(nil, nil)
	ctx := context.Background()
	userID := "user-1"
	store.SaveLayout(ctx, userID, models.NewDashboardLayout(userID))
	store.AddWidget(ctx, userID, models.WidgetTypeChart, "Chart", nil)

	widgetID := store.GetLayout(ctx, userID).Widgets[0].ID

	if !store.RemoveWidget(ctx, userID, widgetID) {
		t.Fatal("RemoveWidget() = false, want true")
	}
	if got := len(store.GetLayout(ctx, userID).Widgets); got != 0 {
		t.Fatalf("widget count after remove = %d, want 0", got)
	}

	// Removing again is a successful no-op.
	if !store.RemoveWidget(ctx, userID, widgetID) {
		t.Error("RemoveWidget() second call = false, want true")
	}
}

func TestUpdateLayout_BulkPositions(t *testing.T) {
	store := NewLayoutStore(nil, nil)
	ctx := context.Background()
	userID := "user-1"
	store.SaveLayout(ctx, userID, models.NewDashboardLayout(userID))
	store.AddWidget(ctx, userID, models.WidgetTypeChart, "A", nil)
	store.AddWidget(ctx, userID, models.WidgetTypeNews, "B", nil)

	layout := store.GetLayout(ctx, userID)
	positions := []models.GridPosition{
		{I: layout.Widgets[0].ID, X: 6, Y: 0, W: 6, H: 4},
		{I: layout.Widgets[1].ID, X: 0, Y: 0, W: 6, H: 4},
	}

	if !store.UpdateLayout(ctx, userID, positions) {
		t.Fatal("UpdateLayout() = false, want true")
	}

	got := store.GetLayout(ctx, userID)
	if got.Widgets[0].Position.X != 6 || got.Widgets[1].Position.X != 0 {
		t.Errorf("positions not applied: %+v, %+v", got.Widgets[0].Position, got.Widgets[1].Position)
	}
}

func TestResetDashboard(t *testing.T) {
	store := NewLayoutStore(nil, nil)
	ctx := context.Background()
	userID := "user-1"
	store.SaveLayout(ctx, userID, models.NewDashboardLayout(userID))
	store.AddWidget(ctx, userID, models.WidgetTypeChart, "Mine", nil)

	if !store.ResetDashboard(ctx, userID) {
		t.Fatal("ResetDashboard() = false, want true")
	}

	layout := store.GetLayout(ctx, userID)
	want := DefaultLayout(userID)
	if len(layout.Widgets) != len(want.Widgets) {
		t.Errorf("widget count after reset = %d, want %d", len(layout.Widgets), len(want.Widgets))
	}
}

func TestSaveLayout_PersistenceFailure(t *testing.T) {
	repo := newMockLayoutRepo()
	queue := &mockSyncQueue{}
	store := NewLayoutStore(repo, queue)
	ctx := context.Background()
	userID := "user-1"

	// Establish a known-good state.
	if !store.SaveLayout(ctx, userID, models.NewDashboardLayout(userID)) {
		t.Fatal("initial SaveLayout() = false")
	}
	store.AddWidget(ctx, userID, models.WidgetTypeChart, "Keep Me", nil)
	before := store.GetLayout(ctx, userID)

	// Break the repository; the next mutation must fail, retain state and
	// queue the mutation for sync.
	repo.err = errors.New("connection lost")
	if store.AddWidget(ctx, userID, models.WidgetTypeNews, "Lost", nil) {
		t.Error("AddWidget() with broken repo = true, want false")
	}

	after := store.GetLayout(ctx, userID)
	if len(after.Widgets) != len(before.Widgets) {
		t.Errorf("state advanced on failed persist: %d widgets, want %d",
			len(after.Widgets), len(before.Widgets))
	}

	queue.mu.Lock()
	defer queue.mu.Unlock()
	if len(queue.actions) != 1 || queue.actions[0] != offline.SyncSaveLayout {
		t.Errorf("queued actions = %v, want one save_layout", queue.actions)
	}
}

func TestAnonymousUser_MemoryOnly(t *testing.T) {
	repo := newMockLayoutRepo()
	store := NewLayoutStore(repo, nil)
	ctx := context.Background()

	if !store.AddWidget(ctx, "", models.WidgetTypeChart, "Anon Chart", nil) {
		t.Fatal("AddWidget() for anonymous user = false, want true")
	}

	repo.mu.Lock()
	saves := repo.saves
	repo.mu.Unlock()
	if saves != 0 {
		t.Errorf("repository saves = %d for anonymous user, want 0", saves)
	}

	layout := store.GetLayout(ctx, "")
	found := false
	for _, w := range layout.Widgets {
		if w.Title == "Anon Chart" {
			found = true
		}
	}
	if !found {
		t.Error("anonymous widget not retained in memory")
	}
}

func TestSaveLayout_RejectsInvalid(t *testing.T) {
	store := NewLayoutStore(nil, nil)

	layout := models.NewDashboardLayout("user-1")
	layout.Widgets = []models.WidgetConfig{
		{ID: "w1", Type: models.WidgetTypeChart, Position: models.GridPosition{I: "other", W: 1, H: 1}},
	}

	if store.SaveLayout(context.Background(), "user-1", layout) {
		t.Error("SaveLayout() with invariant violation = true, want false")
	}
}
