package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"stockboard/config"
	"stockboard/dashboard"
	"stockboard/internal/app"
	"stockboard/internal/settings"
	"stockboard/models"
	"stockboard/predict"
	"stockboard/services"

	"github.com/go-chi/chi/v5"
)

// userIDHeader carries the caller's identity. Requests without it are
// served as the anonymous user, whose state is never persisted.
const userIDHeader = "X-User-ID"

// Handler handles HTTP API requests
type Handler struct {
	app *app.App
	cfg *config.Config
}

// NewHandler creates a new Handler
func NewHandler(application *app.App, cfg *config.Config) *Handler {
	return &Handler{app: application, cfg: cfg}
}

func userID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(userIDHeader))
}

// HandleHealth returns the health status of the application
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status": "ok",
		"services": map[string]string{
			"database": "unknown",
		},
	}

	if h.app.Repo() != nil {
		if err := h.app.Repo().Health(r.Context()); err == nil {
			status["services"].(map[string]string)["database"] = "connected"
		} else {
			status["services"].(map[string]string)["database"] = "disconnected"
			status["status"] = "degraded"
		}
	} else {
		status["services"].(map[string]string)["database"] = "not_configured"
	}

	if h.app.Cache() != nil {
		status["services"].(map[string]string)["offline_cache"] = "ready"
		if pending, err := h.app.PendingSyncCount(); err == nil {
			status["pending_sync"] = pending
		}
	} else {
		status["services"].(map[string]string)["offline_cache"] = "not_configured"
	}

	// Circuit breaker state rolls into the overall status.
	cbStatus := services.GetGlobalRegistry().Status()
	status["circuit_breakers"] = cbStatus
	for _, cb := range cbStatus {
		if cb.State == "open" {
			status["status"] = "degraded"
			break
		}
	}

	h.jsonResponse(w, status)
}

// Dashboard layout handlers

// HandleGetDashboard returns the caller's layout, or the default one.
func (h *Handler) HandleGetDashboard(w http.ResponseWriter, r *http.Request) {
	h.jsonResponse(w, h.app.GetDashboard(r.Context(), userID(r)))
}

// HandleSaveDashboard replaces the caller's layout wholesale
func (h *Handler) HandleSaveDashboard(w http.ResponseWriter, r *http.Request) {
	var layout models.DashboardLayout
	if err := json.NewDecoder(r.Body).Decode(&layout); err != nil {
		h.jsonError(w, "Invalid JSON request", http.StatusBadRequest)
		return
	}

	if !h.app.SaveDashboard(r.Context(), userID(r), &layout) {
		h.jsonError(w, "Layout rejected", http.StatusUnprocessableEntity)
		return
	}
	h.jsonResponse(w, h.app.GetDashboard(r.Context(), userID(r)))
}

// HandleResetDashboard restores the built-in default layout
func (h *Handler) HandleResetDashboard(w http.ResponseWriter, r *http.Request) {
	if !h.app.ResetDashboard(r.Context(), userID(r)) {
		h.jsonError(w, "Reset failed", http.StatusInternalServerError)
		return
	}
	h.jsonResponse(w, h.app.GetDashboard(r.Context(), userID(r)))
}

// AddWidgetRequest is the body of POST /api/dashboard/widgets
type AddWidgetRequest struct {
	Type     models.WidgetType      `json:"type"`
	Title    string                 `json:"title"`
	Settings *models.WidgetSettings `json:"settings,omitempty"`
}

// HandleAddWidget appends a widget to the caller's layout
func (h *Handler) HandleAddWidget(w http.ResponseWriter, r *http.Request) {
	var req AddWidgetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "Invalid JSON request", http.StatusBadRequest)
		return
	}

	if !models.ValidWidgetType(req.Type) {
		h.jsonError(w, fmt.Sprintf("Unknown widget type %q", req.Type), http.StatusBadRequest)
		return
	}

	if !h.app.AddWidget(r.Context(), userID(r), req.Type, req.Title, req.Settings) {
		h.jsonError(w, "Widget rejected", http.StatusUnprocessableEntity)
		return
	}
	h.jsonResponse(w, h.app.GetDashboard(r.Context(), userID(r)))
}

// HandleUpdateWidget merges a partial update into one widget
func (h *Handler) HandleUpdateWidget(w http.ResponseWriter, r *http.Request) {
	widgetID := chi.URLParam(r, "id")
	if widgetID == "" {
		h.jsonError(w, "Missing widget ID", http.StatusBadRequest)
		return
	}

	var update dashboard.WidgetUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		h.jsonError(w, "Invalid JSON request", http.StatusBadRequest)
		return
	}

	if !h.app.UpdateWidget(r.Context(), userID(r), widgetID, update) {
		h.jsonError(w, "Widget not found", http.StatusNotFound)
		return
	}
	h.jsonResponse(w, h.app.GetDashboard(r.Context(), userID(r)))
}

// HandleRemoveWidget deletes one widget; absent widgets are a no-op
func (h *Handler) HandleRemoveWidget(w http.ResponseWriter, r *http.Request) {
	widgetID := chi.URLParam(r, "id")
	if widgetID == "" {
		h.jsonError(w, "Missing widget ID", http.StatusBadRequest)
		return
	}

	if !h.app.RemoveWidget(r.Context(), userID(r), widgetID) {
		h.jsonError(w, "Remove failed", http.StatusInternalServerError)
		return
	}
	h.jsonResponse(w, h.app.GetDashboard(r.Context(), userID(r)))
}

// HandleUpdatePositions bulk-applies grid positions after a drag
func (h *Handler) HandleUpdatePositions(w http.ResponseWriter, r *http.Request) {
	var positions []models.GridPosition
	if err := json.NewDecoder(r.Body).Decode(&positions); err != nil {
		h.jsonError(w, "Invalid JSON request", http.StatusBadRequest)
		return
	}

	if !h.app.UpdateLayout(r.Context(), userID(r), positions) {
		h.jsonError(w, "Positions rejected", http.StatusUnprocessableEntity)
		return
	}
	h.jsonResponse(w, h.app.GetDashboard(r.Context(), userID(r)))
}

// Preset handlers

// HandleGetPresets returns built-in, owned and public presets
func (h *Handler) HandleGetPresets(w http.ResponseWriter, r *http.Request) {
	h.jsonResponse(w, h.app.GetPresets(r.Context(), userID(r)))
}

// SavePresetRequest is the body of POST /api/presets
type SavePresetRequest struct {
	Name        string                `json:"name"`
	Description string                `json:"description"`
	Category    models.PresetCategory `json:"category"`
	IsPublic    bool                  `json:"is_public"`
}

// HandleSavePreset snapshots the caller's current layout into a preset
func (h *Handler) HandleSavePreset(w http.ResponseWriter, r *http.Request) {
	var req SavePresetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "Invalid JSON request", http.StatusBadRequest)
		return
	}

	if req.Category == "" {
		req.Category = models.PresetCategoryCustom
	}

	preset := h.app.SaveCurrentAsPreset(r.Context(), userID(r), req.Name, req.Description, req.Category, req.IsPublic)
	if preset == nil {
		h.jsonError(w, "Invalid preset: name and a known category are required", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(preset)
}

// HandleApplyPreset replaces the caller's widgets with the preset's
func (h *Handler) HandleApplyPreset(w http.ResponseWriter, r *http.Request) {
	id, err := app.ParseUUID(chi.URLParam(r, "id"))
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	layout, ok := h.app.ApplyPreset(r.Context(), userID(r), id)
	if !ok {
		h.jsonError(w, "Preset not found", http.StatusNotFound)
		return
	}
	h.jsonResponse(w, layout)
}

// HandleDeletePreset removes a preset the caller owns
func (h *Handler) HandleDeletePreset(w http.ResponseWriter, r *http.Request) {
	id, err := app.ParseUUID(chi.URLParam(r, "id"))
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if !h.app.DeletePreset(r.Context(), userID(r), id) {
		h.jsonError(w, "Preset not found or not owned by you", http.StatusNotFound)
		return
	}
	h.jsonResponse(w, map[string]string{"status": "deleted", "id": id.String()})
}

// Prediction and market data handlers

// PredictRequest is the body of POST /api/predict
type PredictRequest struct {
	Symbol    string           `json:"symbol"`
	Algorithm models.Algorithm `json:"algorithm"`
	Days      int              `json:"days"`
}

// HandlePredict generates a price forecast
func (h *Handler) HandlePredict(w http.ResponseWriter, r *http.Request) {
	var req PredictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "Invalid JSON request", http.StatusBadRequest)
		return
	}

	req.Symbol = strings.ToUpper(strings.TrimSpace(req.Symbol))
	if err := h.ValidateSymbol(req.Symbol); err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Algorithm != "" && !models.ValidAlgorithm(req.Algorithm) {
		h.jsonError(w, fmt.Sprintf("Unknown algorithm %q", req.Algorithm), http.StatusBadRequest)
		return
	}

	result, err := h.app.Predict(r.Context(), req.Symbol, predict.Options{
		Algorithm: req.Algorithm,
		Days:      req.Days,
	})
	if err != nil {
		h.jsonError(w, err.Error(), predictStatus(err))
		return
	}
	h.jsonResponse(w, result)
}

func predictStatus(err error) int {
	msg := err.Error()
	if strings.Contains(msg, "queue full") {
		return http.StatusTooManyRequests
	}
	if strings.Contains(msg, predict.ErrInsufficientHistory.Error()) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// HandleGetQuote returns the latest quote for a symbol
func (h *Handler) HandleGetQuote(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "symbol")))
	if err := h.ValidateSymbol(symbol); err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	quote, err := h.app.GetQuote(r.Context(), symbol)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusBadGateway)
		return
	}
	h.jsonResponse(w, quote)
}

// HandleGetNews returns articles for the news widget
func (h *Handler) HandleGetNews(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	limit := h.ParseLimitParam(r, 20)

	articles, err := h.app.GetNews(r.Context(), query, limit)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusBadGateway)
		return
	}
	h.jsonResponse(w, articles)
}

// Offline cache handlers

// HandleCacheStats reports cache usage
func (h *Handler) HandleCacheStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.app.CacheStats()
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	h.jsonResponse(w, stats)
}

// HandleCacheCompress compresses all eligible cached entries
func (h *Handler) HandleCacheCompress(w http.ResponseWriter, r *http.Request) {
	result, err := h.app.CompressCache()
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	h.jsonResponse(w, result)
}

// HandleCacheCleanup removes expired entries; ?force=true also evicts
// down to the storage quota
func (h *Handler) HandleCacheCleanup(w http.ResponseWriter, r *http.Request) {
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))

	removed, err := h.app.CleanupCache(force)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	h.jsonResponse(w, map[string]interface{}{"removed": removed, "forced": force})
}

// HandleCacheAnalyze produces a usage report with suggestions
func (h *Handler) HandleCacheAnalyze(w http.ResponseWriter, r *http.Request) {
	report, err := h.app.AnalyzeCacheUsage()
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	h.jsonResponse(w, report)
}

// HandleCacheSync replays queued offline mutations against the database
func (h *Handler) HandleCacheSync(w http.ResponseWriter, r *http.Request) {
	result, err := h.app.SyncOfflineActions(r.Context())
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	h.jsonResponse(w, result)
}

// HandleGetCacheSettings returns the persisted offline settings
func (h *Handler) HandleGetCacheSettings(w http.ResponseWriter, r *http.Request) {
	s, err := h.app.CacheSettings()
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	h.jsonResponse(w, s)
}

// HandleUpdateCacheSettings validates and persists offline settings
func (h *Handler) HandleUpdateCacheSettings(w http.ResponseWriter, r *http.Request) {
	s, err := h.app.CacheSettings()
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	// Decode over the current settings so omitted fields keep their values.
	if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
		h.jsonError(w, "Invalid JSON request", http.StatusBadRequest)
		return
	}

	if err := h.app.SaveCacheSettings(s); err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.jsonResponse(w, s)
}

// API key settings handlers

// HandleGetSettings returns masked API key settings
func (h *Handler) HandleGetSettings(w http.ResponseWriter, r *http.Request) {
	settingsStore := h.app.Settings()
	if settingsStore == nil {
		h.jsonError(w, "Settings not available", http.StatusServiceUnavailable)
		return
	}
	h.jsonResponse(w, settingsStore.GetMaskedSettings())
}

// HandleUpdateAPIKey updates a single API key configuration
func (h *Handler) HandleUpdateAPIKey(w http.ResponseWriter, r *http.Request) {
	settingsStore := h.app.Settings()
	if settingsStore == nil {
		h.jsonError(w, "Settings not available", http.StatusServiceUnavailable)
		return
	}

	var req settings.APIKeyConfig
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "Invalid JSON request", http.StatusBadRequest)
		return
	}

	if req.ServiceName == "" {
		h.jsonError(w, "Service name is required", http.StatusBadRequest)
		return
	}

	hasUpdate := req.APIKey != "" || req.APISecret != "" || req.BaseURL != "" || req.Region != "" || req.ModelID != ""
	if !hasUpdate {
		h.jsonResponse(w, map[string]string{"status": "no changes", "service": string(req.ServiceName)})
		return
	}

	// Merge with existing config to preserve fields not being updated
	if existing := settingsStore.GetAPIKey(req.ServiceName); existing != nil {
		if req.APIKey == "" {
			req.APIKey = existing.APIKey
		}
		if req.APISecret == "" {
			req.APISecret = existing.APISecret
		}
		if req.BaseURL == "" {
			req.BaseURL = existing.BaseURL
		}
		if req.Region == "" {
			req.Region = existing.Region
		}
		if req.ModelID == "" {
			req.ModelID = existing.ModelID
		}
	}

	if err := settingsStore.SetAPIKey(&req); err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonResponse(w, map[string]string{"status": "saved", "service": string(req.ServiceName)})
}

// HandleTestAPIKey tests if an API key is valid
func (h *Handler) HandleTestAPIKey(w http.ResponseWriter, r *http.Request) {
	service := chi.URLParam(r, "service")
	if service == "" {
		h.jsonError(w, "Service name is required", http.StatusBadRequest)
		return
	}

	settingsStore := h.app.Settings()
	if settingsStore == nil {
		h.jsonError(w, "Settings not available", http.StatusServiceUnavailable)
		return
	}

	serviceName := settings.ServiceName(service)
	cfg := settingsStore.GetAPIKey(serviceName)
	if cfg == nil {
		h.jsonError(w, "Service not configured", http.StatusNotFound)
		return
	}

	validator := settings.NewValidator()
	result, err := validator.ValidateAPIKey(r.Context(), cfg)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonResponse(w, result)
}

// HandleDeleteAPIKey removes an API key configuration
func (h *Handler) HandleDeleteAPIKey(w http.ResponseWriter, r *http.Request) {
	service := chi.URLParam(r, "service")
	if service == "" {
		h.jsonError(w, "Service name is required", http.StatusBadRequest)
		return
	}

	settingsStore := h.app.Settings()
	if settingsStore == nil {
		h.jsonError(w, "Settings not available", http.StatusServiceUnavailable)
		return
	}

	if err := settingsStore.DeleteAPIKey(settings.ServiceName(service)); err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonResponse(w, map[string]string{"status": "deleted", "service": service})
}

// Helper functions

// ValidateSymbol validates a stock symbol
func (h *Handler) ValidateSymbol(symbol string) error {
	if symbol == "" {
		return fmt.Errorf("symbol is required")
	}

	if len(symbol) > 10 {
		return fmt.Errorf("symbol too long (max 10 characters)")
	}

	matched, _ := regexp.MatchString("^[A-Z0-9.-]+$", symbol)
	if !matched {
		return fmt.Errorf("invalid symbol format (alphanumeric, dots, and dashes only)")
	}

	return nil
}

// ParseLimitParam parses the limit query parameter
func (h *Handler) ParseLimitParam(r *http.Request, defaultLimit int) int {
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			return l
		}
	}
	return defaultLimit
}

func (h *Handler) jsonResponse(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (h *Handler) jsonError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
