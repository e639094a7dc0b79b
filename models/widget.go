package models

import (
	"encoding/json"
	"fmt"
)

// WidgetType discriminates how a widget is rendered and which settings
// variant applies to it.
type WidgetType string

const (
	WidgetTypeChart          WidgetType = "chart"
	WidgetTypeWatchlist      WidgetType = "watchlist"
	WidgetTypeNews           WidgetType = "news"
	WidgetTypePrediction     WidgetType = "prediction"
	WidgetTypePortfolio      WidgetType = "portfolio"
	WidgetTypeMarketOverview WidgetType = "market-overview"
)

// GridPosition is a widget's placement in the dashboard grid.
// I must always equal the owning widget's ID; the grid front-end uses it
// as the correlation key when reporting drag-and-drop moves.
type GridPosition struct {
	I string `json:"i"`
	X int    `json:"x"`
	Y int    `json:"y"`
	W int    `json:"w"`
	H int    `json:"h"`
}

// Default widget dimensions in grid units. The grid is GridColumns wide.
const (
	GridColumns         = 12
	DefaultWidgetWidth  = 12
	DefaultWidgetHeight = 4
)

// WidgetConfig is a single widget on a dashboard.
type WidgetConfig struct {
	ID       string         `json:"id"`
	Type     WidgetType     `json:"type"`
	Title    string         `json:"title"`
	Position GridPosition   `json:"position"`
	Settings WidgetSettings `json:"settings"`
}

// WidgetSettings is the per-type settings variant. Exactly one field is
// non-nil, matching the widget's Type.
type WidgetSettings struct {
	Chart          *ChartSettings          `json:"chart,omitempty"`
	Watchlist      *WatchlistSettings      `json:"watchlist,omitempty"`
	News           *NewsSettings           `json:"news,omitempty"`
	Prediction     *PredictionSettings     `json:"prediction,omitempty"`
	Portfolio      *PortfolioSettings      `json:"portfolio,omitempty"`
	MarketOverview *MarketOverviewSettings `json:"market_overview,omitempty"`
}

// ChartSettings configures a price chart widget
type ChartSettings struct {
	Symbol    string `json:"symbol"`
	Range     string `json:"range"`      // "1m","3m","6m","1y"
	ChartKind string `json:"chart_kind"` // "line","candlestick","area"
	ShowSMA   bool   `json:"show_sma"`
	ShowEMA   bool   `json:"show_ema"`
}

// WatchlistSettings configures a watchlist widget
type WatchlistSettings struct {
	Symbols       []string `json:"symbols"`
	ShowChange    bool     `json:"show_change"`
	ShowSparkline bool     `json:"show_sparkline"`
}

// NewsSettings configures a news feed widget
type NewsSettings struct {
	Query    string `json:"query,omitempty"`
	Symbol   string `json:"symbol,omitempty"`
	Limit    int    `json:"limit"`
	Language string `json:"language,omitempty"`
}

// PredictionSettings configures a price prediction widget
type PredictionSettings struct {
	Symbol    string    `json:"symbol"`
	Algorithm Algorithm `json:"algorithm"`
	Days      int       `json:"days"`
}

// PortfolioSettings configures a portfolio summary widget
type PortfolioSettings struct {
	ShowAllocation bool `json:"show_allocation"`
	ShowPerformance bool `json:"show_performance"`
}

// MarketOverviewSettings configures a market overview widget
type MarketOverviewSettings struct {
	Indices    []string `json:"indices"`
	ShowMovers bool     `json:"show_movers"`
}

// DefaultSettings returns the default settings variant for a widget type.
func DefaultSettings(t WidgetType) WidgetSettings {
	switch t {
	case WidgetTypeChart:
		return WidgetSettings{Chart: &ChartSettings{Range: "3m", ChartKind: "line", ShowSMA: true}}
	case WidgetTypeWatchlist:
		return WidgetSettings{Watchlist: &WatchlistSettings{ShowChange: true}}
	case WidgetTypeNews:
		return WidgetSettings{News: &NewsSettings{Limit: 10}}
	case WidgetTypePrediction:
		return WidgetSettings{Prediction: &PredictionSettings{Algorithm: AlgorithmEnsemble, Days: 30}}
	case WidgetTypePortfolio:
		return WidgetSettings{Portfolio: &PortfolioSettings{ShowAllocation: true, ShowPerformance: true}}
	case WidgetTypeMarketOverview:
		return WidgetSettings{MarketOverview: &MarketOverviewSettings{Indices: []string{"SPY", "QQQ", "DIA"}}}
	default:
		return WidgetSettings{}
	}
}

// ValidWidgetType reports whether t is a known widget type.
func ValidWidgetType(t WidgetType) bool {
	switch t {
	case WidgetTypeChart, WidgetTypeWatchlist, WidgetTypeNews,
		WidgetTypePrediction, WidgetTypePortfolio, WidgetTypeMarketOverview:
		return true
	}
	return false
}

// Validate checks the widget's internal invariants: a known type, the
// grid correlation key matching the id, and a settings variant consistent
// with the type.
func (w *WidgetConfig) Validate() error {
	if w.ID == "" {
		return fmt.Errorf("widget id is required")
	}
	if !ValidWidgetType(w.Type) {
		return fmt.Errorf("unknown widget type %q", w.Type)
	}
	if w.Position.I != w.ID {
		return fmt.Errorf("position.i %q does not match widget id %q", w.Position.I, w.ID)
	}
	if w.Position.W <= 0 || w.Position.H <= 0 {
		return fmt.Errorf("widget %s has non-positive dimensions", w.ID)
	}
	if err := w.Settings.validateFor(w.Type); err != nil {
		return fmt.Errorf("widget %s: %w", w.ID, err)
	}
	return nil
}

func (s *WidgetSettings) validateFor(t WidgetType) error {
	variants := map[WidgetType]bool{
		WidgetTypeChart:          s.Chart != nil,
		WidgetTypeWatchlist:      s.Watchlist != nil,
		WidgetTypeNews:           s.News != nil,
		WidgetTypePrediction:     s.Prediction != nil,
		WidgetTypePortfolio:      s.Portfolio != nil,
		WidgetTypeMarketOverview: s.MarketOverview != nil,
	}
	for vt, set := range variants {
		if set && vt != t {
			return fmt.Errorf("settings variant %s does not match widget type %s", vt, t)
		}
	}
	return nil
}

// Merge overlays the non-nil variant of other onto s. Used by partial
// widget updates.
func (s *WidgetSettings) Merge(other WidgetSettings) {
	if other.Chart != nil {
		s.Chart = other.Chart
	}
	if other.Watchlist != nil {
		s.Watchlist = other.Watchlist
	}
	if other.News != nil {
		s.News = other.News
	}
	if other.Prediction != nil {
		s.Prediction = other.Prediction
	}
	if other.Portfolio != nil {
		s.Portfolio = other.Portfolio
	}
	if other.MarketOverview != nil {
		s.MarketOverview = other.MarketOverview
	}
}

// Clone returns a deep copy of the widget.
func (w WidgetConfig) Clone() WidgetConfig {
	// Round-trip through JSON; settings variants are plain data.
	data, _ := json.Marshal(w)
	var out WidgetConfig
	_ = json.Unmarshal(data, &out)
	return out
}
