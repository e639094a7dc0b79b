package dashboard

import (
	"time"

	"github.com/google/uuid"

	"stockboard/models"
)

// Built-in preset ids are fixed so every process advertises the same
// catalog and clients can reference them stably.
var (
	presetSimpleID     = uuid.MustParse("5f7a1b9e-0c3d-4f6a-8b2e-1d9c4a7e5f01")
	presetAnalyticsID  = uuid.MustParse("5f7a1b9e-0c3d-4f6a-8b2e-1d9c4a7e5f02")
	presetMonitoringID = uuid.MustParse("5f7a1b9e-0c3d-4f6a-8b2e-1d9c4a7e5f03")
)

func newWidget(widgetType models.WidgetType, title string, x, y, w, h int) models.WidgetConfig {
	id := uuid.NewString()
	return models.WidgetConfig{
		ID:       id,
		Type:     widgetType,
		Title:    title,
		Position: models.GridPosition{I: id, X: x, Y: y, W: w, H: h},
		Settings: models.DefaultSettings(widgetType),
	}
}

// DefaultLayout is the built-in layout served to users with no persisted
// dashboard. Widget ids are fresh per call so two users never share ids.
func DefaultLayout(userID string) *models.DashboardLayout {
	layout := models.NewDashboardLayout(userID)
	layout.Widgets = []models.WidgetConfig{
		newWidget(models.WidgetTypeMarketOverview, "Market Overview", 0, 0, 12, 3),
		newWidget(models.WidgetTypeChart, "Price Chart", 0, 3, 8, 5),
		newWidget(models.WidgetTypeWatchlist, "Watchlist", 8, 3, 4, 5),
		newWidget(models.WidgetTypeNews, "Market News", 0, 8, 12, 4),
	}
	return layout
}

// builtinPresets returns the catalog's shipped presets, one per
// non-custom category. Widget ids inside templates are regenerated on
// every call; ApplyPreset re-ids them again anyway.
func builtinPresets() []models.PresetLayout {
	createdAt := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	return []models.PresetLayout{
		{
			ID:          presetSimpleID,
			Name:        "Essentials",
			Description: "A minimal board: one chart and a watchlist.",
			Category:    models.PresetCategorySimple,
			IsPublic:    true,
			CreatedAt:   createdAt,
			Widgets: []models.WidgetConfig{
				newWidget(models.WidgetTypeChart, "Price Chart", 0, 0, 8, 6),
				newWidget(models.WidgetTypeWatchlist, "Watchlist", 8, 0, 4, 6),
			},
		},
		{
			ID:          presetAnalyticsID,
			Name:        "Analyst Desk",
			Description: "Charts, predictions and news for deeper analysis.",
			Category:    models.PresetCategoryAnalytics,
			IsPublic:    true,
			CreatedAt:   createdAt,
			Widgets: []models.WidgetConfig{
				newWidget(models.WidgetTypeChart, "Price Chart", 0, 0, 8, 5),
				newWidget(models.WidgetTypePrediction, "Price Prediction", 8, 0, 4, 5),
				newWidget(models.WidgetTypeNews, "Market News", 0, 5, 12, 4),
			},
		},
		{
			ID:          presetMonitoringID,
			Name:        "Watch Floor",
			Description: "Wide market coverage for monitoring many symbols.",
			Category:    models.PresetCategoryMonitoring,
			IsPublic:    true,
			CreatedAt:   createdAt,
			Widgets: []models.WidgetConfig{
				newWidget(models.WidgetTypeMarketOverview, "Market Overview", 0, 0, 12, 3),
				newWidget(models.WidgetTypeWatchlist, "Watchlist A", 0, 3, 6, 5),
				newWidget(models.WidgetTypeWatchlist, "Watchlist B", 6, 3, 6, 5),
				newWidget(models.WidgetTypePortfolio, "Portfolio", 0, 8, 12, 4),
			},
		},
	}
}
