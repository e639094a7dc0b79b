package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"stockboard/config"
	"stockboard/dashboard"
	"stockboard/models"
	"stockboard/offline"
	"stockboard/predict"
)

type mockRepo struct {
	mu             sync.Mutex
	savedLayouts   []models.DashboardLayout
	deletedLayouts []string
	createdPresets []models.PresetLayout
	deletedPresets []uuid.UUID
	err            error
}

func (m *mockRepo) Close()                           {}
func (m *mockRepo) Health(ctx context.Context) error { return m.err }

func (m *mockRepo) SaveLayout(ctx context.Context, layout *models.DashboardLayout) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.savedLayouts = append(m.savedLayouts, *layout)
	return nil
}

func (m *mockRepo) DeleteLayout(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.deletedLayouts = append(m.deletedLayouts, userID)
	return nil
}

func (m *mockRepo) CreatePreset(ctx context.Context, preset *models.PresetLayout) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.createdPresets = append(m.createdPresets, *preset)
	return nil
}

func (m *mockRepo) DeletePreset(ctx context.Context, id uuid.UUID, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	m.deletedPresets = append(m.deletedPresets, id)
	return true, nil
}

type mockEngine struct {
	mu     sync.Mutex
	calls  int
	result *models.PredictionResult
	err    error
}

func (m *mockEngine) Generate(ctx context.Context, symbol string, history []models.HistoryPoint, opts predict.Options) (*models.PredictionResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if m.result != nil {
		return m.result, nil
	}
	return &models.PredictionResult{
		Symbol:          symbol,
		Algorithm:       opts.Algorithm,
		Trend:           models.TrendNeutral,
		ShortTermTarget: decimal.NewFromInt(100),
		LongTermTarget:  decimal.NewFromInt(105),
		Confidence:      0.6,
		GeneratedAt:     time.Now(),
	}, nil
}

type mockHistoryProvider struct {
	mu     sync.Mutex
	calls  int
	points []models.HistoryPoint
	err    error
}

func (m *mockHistoryProvider) Name() string { return "mock" }

func (m *mockHistoryProvider) GetDailyHistory(ctx context.Context, symbol string, days int) ([]models.HistoryPoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.points, nil
}

type mockQuoteProvider struct {
	quote *models.Quote
	err   error
}

func (m *mockQuoteProvider) GetQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.quote, nil
}

type mockNewsProvider struct {
	articles []models.NewsArticle
	err      error
}

func (m *mockNewsProvider) GetNews(ctx context.Context, query string, limit int) ([]models.NewsArticle, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.articles, nil
}

func (m *mockNewsProvider) GetHeadlines(ctx context.Context, query string, limit int) ([]models.NewsArticle, error) {
	return m.GetNews(ctx, query, limit)
}

func testCache(t *testing.T) *offline.CacheService {
	t.Helper()
	cache, err := offline.NewCacheService(offline.Config{InMemory: true})
	if err != nil {
		t.Fatalf("NewCacheService() error = %v", err)
	}
	t.Cleanup(func() { cache.Close() })
	return cache
}

func testHistory(n int) []models.HistoryPoint {
	points := make([]models.HistoryPoint, n)
	start := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	for i := range points {
		points[i] = models.HistoryPoint{Date: start.AddDate(0, 0, i), Price: 100 + float64(i)*0.5}
	}
	return points
}

func newTestApp(t *testing.T, deps Deps) *App {
	t.Helper()
	if deps.Layouts == nil {
		deps.Layouts = dashboard.NewLayoutStore(nil, nil)
	}
	if deps.Presets == nil {
		deps.Presets = dashboard.NewPresetCatalog(nil, nil)
	}
	return New(config.NewTestConfig(), deps)
}

func TestPredict_HistoryReadThrough(t *testing.T) {
	cache := testCache(t)
	provider := &mockHistoryProvider{points: testHistory(60)}
	engine := &mockEngine{}
	a := newTestApp(t, Deps{Engine: engine, Cache: cache, History: provider})
	ctx := context.Background()

	if _, err := a.Predict(ctx, "AAPL", predict.Options{Algorithm: models.AlgorithmLinear, Days: 30}); err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	if provider.calls != 1 {
		t.Fatalf("provider calls = %d, want 1", provider.calls)
	}

	// A different horizon misses the prediction cache but the history
	// is already cached, so the provider is not hit again.
	if _, err := a.Predict(ctx, "AAPL", predict.Options{Algorithm: models.AlgorithmLinear, Days: 60}); err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	if provider.calls != 1 {
		t.Errorf("provider calls = %d, want 1 (history should come from cache)", provider.calls)
	}
}

func TestPredict_CachesResult(t *testing.T) {
	cache := testCache(t)
	engine := &mockEngine{}
	a := newTestApp(t, Deps{Engine: engine, Cache: cache, History: &mockHistoryProvider{points: testHistory(60)}})
	ctx := context.Background()
	opts := predict.Options{Algorithm: models.AlgorithmEnsemble, Days: 30}

	first, err := a.Predict(ctx, "msft", opts)
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	second, err := a.Predict(ctx, "MSFT", opts)
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}

	if engine.calls != 1 {
		t.Errorf("engine calls = %d, want 1 (second request should be cached)", engine.calls)
	}
	if first.Symbol != second.Symbol || !first.ShortTermTarget.Equal(second.ShortTermTarget) {
		t.Error("cached result differs from the original")
	}
}

func TestPredict_NoProviderNoCache(t *testing.T) {
	a := newTestApp(t, Deps{Engine: &mockEngine{}})

	if _, err := a.Predict(context.Background(), "AAPL", predict.Options{}); err == nil {
		t.Fatal("Predict() without provider or cache = nil error, want error")
	}
}

func TestPredict_EmptySymbol(t *testing.T) {
	a := newTestApp(t, Deps{Engine: &mockEngine{}})

	if _, err := a.Predict(context.Background(), "  ", predict.Options{}); err == nil {
		t.Fatal("Predict() with blank symbol = nil error, want error")
	}
}

func TestGetQuote_ServesStaleOnFailure(t *testing.T) {
	cache := testCache(t)
	provider := &mockQuoteProvider{quote: &models.Quote{
		Symbol: "AAPL",
		Last:   decimal.NewFromFloat(187.5),
	}}
	a := newTestApp(t, Deps{Cache: cache, Quotes: provider})
	ctx := context.Background()

	if _, err := a.GetQuote(ctx, "AAPL"); err != nil {
		t.Fatalf("GetQuote() error = %v", err)
	}

	provider.err = errors.New("provider down")
	quote, err := a.GetQuote(ctx, "AAPL")
	if err != nil {
		t.Fatalf("GetQuote() with broken provider = %v, want cached quote", err)
	}
	if !quote.Last.Equal(decimal.NewFromFloat(187.5)) {
		t.Errorf("Last = %s, want 187.5", quote.Last)
	}
}

func TestGetQuote_FailureWithoutCacheReturnsError(t *testing.T) {
	a := newTestApp(t, Deps{Quotes: &mockQuoteProvider{err: errors.New("provider down")}})

	if _, err := a.GetQuote(context.Background(), "AAPL"); err == nil {
		t.Fatal("GetQuote() = nil error, want provider error")
	}
}

func TestGetNews_ServesStaleOnFailure(t *testing.T) {
	cache := testCache(t)
	provider := &mockNewsProvider{articles: []models.NewsArticle{{Title: "Markets rally"}}}
	a := newTestApp(t, Deps{Cache: cache, News: provider})
	ctx := context.Background()

	if _, err := a.GetNews(ctx, "stocks", 10); err != nil {
		t.Fatalf("GetNews() error = %v", err)
	}

	provider.err = errors.New("provider down")
	articles, err := a.GetNews(ctx, "stocks", 10)
	if err != nil {
		t.Fatalf("GetNews() with broken provider = %v, want cached articles", err)
	}
	if len(articles) != 1 || articles[0].Title != "Markets rally" {
		t.Errorf("articles = %+v, want the cached rally headline", articles)
	}
}

func TestApplyPreset_ReplacesWidgets(t *testing.T) {
	a := newTestApp(t, Deps{})
	ctx := context.Background()

	presets := a.GetPresets(ctx, "user-1")
	if len(presets) == 0 {
		t.Fatal("no presets available")
	}
	target := presets[0]

	layout, ok := a.ApplyPreset(ctx, "user-1", target.ID)
	if !ok {
		t.Fatal("ApplyPreset() = false, want true")
	}
	if len(layout.Widgets) != len(target.Widgets) {
		t.Errorf("widget count = %d, want %d", len(layout.Widgets), len(target.Widgets))
	}
}

func TestApplyPreset_UnknownID(t *testing.T) {
	a := newTestApp(t, Deps{})

	if _, ok := a.ApplyPreset(context.Background(), "user-1", uuid.New()); ok {
		t.Fatal("ApplyPreset() with unknown id = true, want false")
	}
}

func TestSaveCurrentAsPreset(t *testing.T) {
	a := newTestApp(t, Deps{})
	ctx := context.Background()

	preset := a.SaveCurrentAsPreset(ctx, "user-1", "Snapshot", "", models.PresetCategoryCustom, false)
	if preset == nil {
		t.Fatal("SaveCurrentAsPreset() = nil")
	}
	if len(preset.Widgets) == 0 {
		t.Error("preset captured no widgets from the default layout")
	}
}

func TestSyncOfflineActions_ReplaysQueue(t *testing.T) {
	cache := testCache(t)
	repo := &mockRepo{}
	a := newTestApp(t, Deps{Repo: repo, Cache: cache})
	ctx := context.Background()

	layout := dashboard.DefaultLayout("user-1")
	cache.EnqueueSync(offline.SyncSaveLayout, "user-1", layout)
	cache.EnqueueSync(offline.SyncDeleteLayout, "user-2", nil)
	presetID := uuid.New()
	cache.EnqueueSync(offline.SyncDeletePreset, "user-1", map[string]string{"preset_id": presetID.String()})

	result, err := a.SyncOfflineActions(ctx)
	if err != nil {
		t.Fatalf("SyncOfflineActions() error = %v", err)
	}
	if !result.Success || result.Processed != 3 || result.Failed != 0 {
		t.Fatalf("result = %+v, want 3 processed, 0 failed", result)
	}

	if len(repo.savedLayouts) != 1 || repo.savedLayouts[0].UserID != "user-1" {
		t.Errorf("saved layouts = %d, want 1 for user-1", len(repo.savedLayouts))
	}
	if len(repo.deletedLayouts) != 1 || repo.deletedLayouts[0] != "user-2" {
		t.Errorf("deleted layouts = %v, want [user-2]", repo.deletedLayouts)
	}
	if len(repo.deletedPresets) != 1 || repo.deletedPresets[0] != presetID {
		t.Errorf("deleted presets = %v, want [%s]", repo.deletedPresets, presetID)
	}

	pending, err := a.PendingSyncCount()
	if err != nil {
		t.Fatalf("PendingSyncCount() error = %v", err)
	}
	if pending != 0 {
		t.Errorf("pending = %d, want 0 after full replay", pending)
	}
}

func TestSyncOfflineActions_NoRepo(t *testing.T) {
	a := newTestApp(t, Deps{Cache: testCache(t)})

	if _, err := a.SyncOfflineActions(context.Background()); err == nil {
		t.Fatal("SyncOfflineActions() without repo = nil error, want error")
	}
}

func TestCacheOps_NotInitialized(t *testing.T) {
	a := newTestApp(t, Deps{})

	if _, err := a.CacheStats(); err == nil {
		t.Error("CacheStats() = nil error, want error")
	}
	if _, err := a.CompressCache(); err == nil {
		t.Error("CompressCache() = nil error, want error")
	}
	if _, err := a.CleanupCache(true); err == nil {
		t.Error("CleanupCache() = nil error, want error")
	}
	if _, err := a.AnalyzeCacheUsage(); err == nil {
		t.Error("AnalyzeCacheUsage() = nil error, want error")
	}
	if err := a.SaveCacheSettings(offline.DefaultSettings()); err == nil {
		t.Error("SaveCacheSettings() = nil error, want error")
	}

	// Pending sync is a soft query: no cache just means nothing queued.
	if pending, err := a.PendingSyncCount(); err != nil || pending != 0 {
		t.Errorf("PendingSyncCount() = %d, %v, want 0, nil", pending, err)
	}
}

func TestParseUUID(t *testing.T) {
	id := uuid.New()
	parsed, err := ParseUUID(id.String())
	if err != nil {
		t.Fatalf("ParseUUID() error = %v", err)
	}
	if parsed != id {
		t.Errorf("ParseUUID() = %s, want %s", parsed, id)
	}

	if _, err := ParseUUID("not-a-uuid"); err == nil {
		t.Error("ParseUUID(garbage) = nil error, want error")
	}
}

func TestPredictSemCapacity(t *testing.T) {
	a := newTestApp(t, Deps{})
	if a.PredictSemCapacity() != maxConcurrentPredictions {
		t.Errorf("capacity = %d, want %d", a.PredictSemCapacity(), maxConcurrentPredictions)
	}
}
