package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"stockboard/config"
	"stockboard/dashboard"
	"stockboard/internal/settings"
	"stockboard/models"
	"stockboard/offline"
	"stockboard/predict"
	"stockboard/services"

	"github.com/google/uuid"
)

// RepositoryInterface defines the repository operations needed by App.
// The layout store and preset catalog carry their own narrower views;
// App only needs lifecycle, health and the sync-replay targets.
type RepositoryInterface interface {
	Close()
	Health(ctx context.Context) error
	SaveLayout(ctx context.Context, layout *models.DashboardLayout) error
	DeleteLayout(ctx context.Context, userID string) error
	CreatePreset(ctx context.Context, preset *models.PresetLayout) error
	DeletePreset(ctx context.Context, id uuid.UUID, userID string) (bool, error)
}

// PredictionEngine defines the forecast operation needed by App.
type PredictionEngine interface {
	Generate(ctx context.Context, symbol string, history []models.HistoryPoint, opts predict.Options) (*models.PredictionResult, error)
}

// historyLookbackDays is how much history is fetched per symbol. 250
// trading days covers the 200-day moving average used by the trend
// scorer with room to spare.
const historyLookbackDays = 250

// maxConcurrentPredictions bounds in-flight prediction runs; the AI
// algorithm in particular can hold an LLM call open for seconds.
const maxConcurrentPredictions = 8

// Deps bundles everything App composes. Any field may be nil; the
// corresponding feature degrades instead of failing construction.
type Deps struct {
	Repo     RepositoryInterface
	Layouts  *dashboard.LayoutStore
	Presets  *dashboard.PresetCatalog
	Engine   PredictionEngine
	Cache    *offline.CacheService
	History  services.HistoryProvider
	Quotes   services.QuoteProvider
	News     services.NewsProvider
	Settings *settings.Store
}

// App wires the dashboard, prediction and offline layers together and
// is the only thing HTTP handlers talk to.
type App struct {
	cfg        *config.Config
	repo       RepositoryInterface
	layouts    *dashboard.LayoutStore
	presets    *dashboard.PresetCatalog
	engine     PredictionEngine
	cache      *offline.CacheService
	history    services.HistoryProvider
	quotes     services.QuoteProvider
	news       services.NewsProvider
	settings   *settings.Store
	predictSem chan struct{}
}

// New creates a new App application struct
func New(cfg *config.Config, deps Deps) *App {
	return &App{
		cfg:        cfg,
		repo:       deps.Repo,
		layouts:    deps.Layouts,
		presets:    deps.Presets,
		engine:     deps.Engine,
		cache:      deps.Cache,
		history:    deps.History,
		quotes:     deps.Quotes,
		news:       deps.News,
		settings:   deps.Settings,
		predictSem: make(chan struct{}, maxConcurrentPredictions),
	}
}

// Startup is called when the app starts
func (a *App) Startup(ctx context.Context) {
	if a.cache != nil && a.cfg != nil && a.cfg.Cache.SyncOnReconnect && a.repo != nil {
		if pending, err := a.cache.PendingSync(); err == nil && pending > 0 {
			// Replay failures are not fatal; failed actions stay queued.
			_, _ = a.SyncOfflineActions(ctx)
		}
	}
}

// Shutdown is called when the app is closing
func (a *App) Shutdown(ctx context.Context) {
	if a.cache != nil {
		_ = a.cache.Flush()
		_ = a.cache.Close()
	}
	if a.repo != nil {
		a.repo.Close()
	}
}

// Repo returns the repository interface for API handlers
func (a *App) Repo() RepositoryInterface {
	return a.repo
}

// Settings returns the API key settings store, or nil when unavailable
func (a *App) Settings() *settings.Store {
	return a.settings
}

// Cache returns the offline cache, or nil when it failed to open
func (a *App) Cache() *offline.CacheService {
	return a.cache
}

// Dashboard operations

// GetDashboard returns the user's layout, falling back to the built-in
// default. It never fails.
func (a *App) GetDashboard(ctx context.Context, userID string) *models.DashboardLayout {
	return a.layouts.GetLayout(ctx, userID)
}

// SaveDashboard replaces the user's layout wholesale.
func (a *App) SaveDashboard(ctx context.Context, userID string, layout *models.DashboardLayout) bool {
	return a.layouts.SaveLayout(ctx, userID, layout)
}

// AddWidget appends a widget of the given type to the user's layout.
func (a *App) AddWidget(ctx context.Context, userID string, widgetType models.WidgetType, title string, ws *models.WidgetSettings) bool {
	return a.layouts.AddWidget(ctx, userID, widgetType, title, ws)
}

// UpdateWidget merges a partial update into one widget.
func (a *App) UpdateWidget(ctx context.Context, userID, widgetID string, update dashboard.WidgetUpdate) bool {
	return a.layouts.UpdateWidget(ctx, userID, widgetID, update)
}

// RemoveWidget deletes one widget; removing an absent widget succeeds.
func (a *App) RemoveWidget(ctx context.Context, userID, widgetID string) bool {
	return a.layouts.RemoveWidget(ctx, userID, widgetID)
}

// UpdateLayout bulk-applies grid positions after a drag-and-drop.
func (a *App) UpdateLayout(ctx context.Context, userID string, positions []models.GridPosition) bool {
	return a.layouts.UpdateLayout(ctx, userID, positions)
}

// ResetDashboard restores the built-in default layout.
func (a *App) ResetDashboard(ctx context.Context, userID string) bool {
	return a.layouts.ResetDashboard(ctx, userID)
}

// Preset operations

// GetPresets returns the presets visible to the user.
func (a *App) GetPresets(ctx context.Context, userID string) []models.PresetLayout {
	return a.presets.GetPresetLayouts(ctx, userID)
}

// SaveCurrentAsPreset snapshots the user's current layout into a preset.
func (a *App) SaveCurrentAsPreset(ctx context.Context, userID, name, description string, category models.PresetCategory, isPublic bool) *models.PresetLayout {
	layout := a.layouts.GetLayout(ctx, userID)
	return a.presets.SaveAsPreset(ctx, userID, layout, name, description, category, isPublic)
}

// ApplyPreset replaces the user's widgets with fresh clones of the
// preset's templates. Destructive: the previous widget set is gone.
func (a *App) ApplyPreset(ctx context.Context, userID string, presetID uuid.UUID) (*models.DashboardLayout, bool) {
	preset := a.presets.GetPreset(ctx, userID, presetID)
	if preset == nil {
		return nil, false
	}
	widgets := a.presets.ApplyPreset(preset)
	if !a.layouts.ReplaceWidgets(ctx, userID, widgets) {
		return nil, false
	}
	return a.layouts.GetLayout(ctx, userID), true
}

// DeletePreset removes a preset the user owns.
func (a *App) DeletePreset(ctx context.Context, userID string, presetID uuid.UUID) bool {
	return a.presets.DeletePreset(ctx, userID, presetID)
}

// Prediction

// Predict generates a forecast for the symbol. History is read through
// the offline cache; completed predictions are cached per symbol,
// algorithm and horizon so repeat requests are served locally.
func (a *App) Predict(ctx context.Context, symbol string, opts predict.Options) (*models.PredictionResult, error) {
	if a.engine == nil {
		return nil, fmt.Errorf("prediction engine not initialized")
	}

	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}

	select {
	case a.predictSem <- struct{}{}:
		defer func() { <-a.predictSem }()
	default:
		return nil, fmt.Errorf("prediction queue full, too many concurrent requests - try again later")
	}

	cacheKey := predictionCacheKey(symbol, opts)
	if a.cache != nil {
		var cached models.PredictionResult
		if a.cache.GetJSON(offline.KindPrediction, cacheKey, &cached) {
			return &cached, nil
		}
	}

	history, err := a.loadHistory(ctx, symbol)
	if err != nil {
		return nil, err
	}

	result, err := a.engine.Generate(ctx, symbol, history, opts)
	if err != nil {
		return nil, err
	}

	if a.cache != nil {
		a.cache.PutJSON(offline.KindPrediction, cacheKey, result)
	}
	return result, nil
}

func predictionCacheKey(symbol string, opts predict.Options) string {
	algorithm := opts.Algorithm
	if algorithm == "" {
		algorithm = models.AlgorithmEnsemble
	}
	days := opts.Days
	if days <= 0 {
		days = predict.DefaultDays
	}
	return fmt.Sprintf("%s:%s:%d", symbol, algorithm, days)
}

// loadHistory fetches daily history through the cache. A provider
// failure falls back to whatever the cache still holds.
func (a *App) loadHistory(ctx context.Context, symbol string) ([]models.HistoryPoint, error) {
	var cached []models.HistoryPoint
	if a.cache != nil && a.cache.GetJSON(offline.KindHistory, symbol, &cached) && len(cached) > 0 {
		return cached, nil
	}

	if a.history == nil {
		return nil, fmt.Errorf("no market data provider configured")
	}

	points, err := a.history.GetDailyHistory(ctx, symbol, historyLookbackDays)
	if err != nil {
		return nil, fmt.Errorf("fetching history for %s: %w", symbol, err)
	}

	if a.cache != nil {
		a.cache.PutJSON(offline.KindHistory, symbol, points)
	}
	return points, nil
}

// Market data

// GetQuote returns the latest quote, caching it for offline use. When
// the provider is unreachable a previously cached quote is served.
func (a *App) GetQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	if a.quotes == nil {
		return a.cachedQuote(symbol, fmt.Errorf("no quote provider configured"))
	}

	quote, err := a.quotes.GetQuote(ctx, symbol)
	if err != nil {
		return a.cachedQuote(symbol, err)
	}

	if a.cache != nil {
		a.cache.PutJSON(offline.KindQuote, symbol, quote)
	}
	return quote, nil
}

func (a *App) cachedQuote(symbol string, cause error) (*models.Quote, error) {
	if a.cache != nil {
		var cached models.Quote
		if a.cache.GetJSON(offline.KindQuote, symbol, &cached) {
			return &cached, nil
		}
	}
	return nil, cause
}

// GetNews returns articles for the news widget, with the same
// cache-on-success, serve-stale-on-failure behavior as quotes.
func (a *App) GetNews(ctx context.Context, query string, limit int) ([]models.NewsArticle, error) {
	if limit <= 0 {
		limit = 20
	}
	cacheKey := fmt.Sprintf("%s:%d", query, limit)

	if a.news == nil {
		return a.cachedNews(cacheKey, fmt.Errorf("no news provider configured"))
	}

	var (
		articles []models.NewsArticle
		err      error
	)
	if query == "" {
		articles, err = a.news.GetHeadlines(ctx, "", limit)
	} else {
		articles, err = a.news.GetNews(ctx, query, limit)
	}
	if err != nil {
		return a.cachedNews(cacheKey, err)
	}

	if a.cache != nil {
		a.cache.PutJSON(offline.KindNews, cacheKey, articles)
	}
	return articles, nil
}

func (a *App) cachedNews(cacheKey string, cause error) ([]models.NewsArticle, error) {
	if a.cache != nil {
		var cached []models.NewsArticle
		if a.cache.GetJSON(offline.KindNews, cacheKey, &cached) {
			return cached, nil
		}
	}
	return nil, cause
}

// Offline cache management

// CacheStats reports cache usage.
func (a *App) CacheStats() (*offline.Stats, error) {
	if a.cache == nil {
		return nil, fmt.Errorf("offline cache not initialized")
	}
	return a.cache.Stats()
}

// CompressCache compresses every eligible stored entry.
func (a *App) CompressCache() (*offline.CompressResult, error) {
	if a.cache == nil {
		return nil, fmt.Errorf("offline cache not initialized")
	}
	return a.cache.CompressAll()
}

// CleanupCache removes expired entries; force additionally evicts down
// to the storage quota.
func (a *App) CleanupCache(force bool) (int, error) {
	if a.cache == nil {
		return 0, fmt.Errorf("offline cache not initialized")
	}
	return a.cache.Cleanup(force)
}

// AnalyzeCacheUsage produces a usage report with suggestions.
func (a *App) AnalyzeCacheUsage() (*offline.UsageReport, error) {
	if a.cache == nil {
		return nil, fmt.Errorf("offline cache not initialized")
	}
	return a.cache.AnalyzeUsage()
}

// CacheSettings returns the persisted offline settings.
func (a *App) CacheSettings() (offline.Settings, error) {
	if a.cache == nil {
		return offline.Settings{}, fmt.Errorf("offline cache not initialized")
	}
	return a.cache.Settings()
}

// SaveCacheSettings validates and persists offline settings.
func (a *App) SaveCacheSettings(s offline.Settings) error {
	if a.cache == nil {
		return fmt.Errorf("offline cache not initialized")
	}
	return a.cache.SaveSettings(s)
}

// PendingSyncCount reports how many offline mutations await replay.
func (a *App) PendingSyncCount() (int, error) {
	if a.cache == nil {
		return 0, nil
	}
	return a.cache.PendingSync()
}

// SyncOfflineActions drains the offline mutation queue against the
// repository. Each action is replayed independently; a failed action
// stays queued and never blocks the rest.
func (a *App) SyncOfflineActions(ctx context.Context) (*offline.SyncResult, error) {
	if a.cache == nil {
		return nil, fmt.Errorf("offline cache not initialized")
	}
	if a.repo == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	return a.cache.Sync(ctx, offline.SyncApplierFunc(a.applySyncAction))
}

func (a *App) applySyncAction(ctx context.Context, action *offline.SyncAction) error {
	switch action.Type {
	case offline.SyncSaveLayout:
		var layout models.DashboardLayout
		if err := json.Unmarshal(action.Payload, &layout); err != nil {
			return fmt.Errorf("decoding queued layout: %w", err)
		}
		layout.UserID = action.UserID
		return a.repo.SaveLayout(ctx, &layout)

	case offline.SyncDeleteLayout:
		return a.repo.DeleteLayout(ctx, action.UserID)

	case offline.SyncCreatePreset:
		var preset models.PresetLayout
		if err := json.Unmarshal(action.Payload, &preset); err != nil {
			return fmt.Errorf("decoding queued preset: %w", err)
		}
		return a.repo.CreatePreset(ctx, &preset)

	case offline.SyncDeletePreset:
		var ref struct {
			PresetID string `json:"preset_id"`
		}
		if err := json.Unmarshal(action.Payload, &ref); err != nil {
			return fmt.Errorf("decoding queued preset delete: %w", err)
		}
		id, err := ParseUUID(ref.PresetID)
		if err != nil {
			return err
		}
		_, err = a.repo.DeletePreset(ctx, id, action.UserID)
		return err
	}
	return fmt.Errorf("unknown sync action type %q", action.Type)
}

// ParseUUID parses a string UUID into a [16]byte
func ParseUUID(id string) (uuid.UUID, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("invalid UUID: %w", err)
	}
	return parsed, nil
}

// PredictSemCapacity returns the capacity of the prediction semaphore (for testing)
func (a *App) PredictSemCapacity() int {
	return cap(a.predictSem)
}
