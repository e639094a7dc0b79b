package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Algorithm selects the forecasting method used by the prediction engine.
type Algorithm string

const (
	AlgorithmSMA        Algorithm = "sma"
	AlgorithmEMA        Algorithm = "ema"
	AlgorithmLinear     Algorithm = "linear"
	AlgorithmPolynomial Algorithm = "polynomial"
	AlgorithmEnsemble   Algorithm = "ensemble"
	AlgorithmAI         Algorithm = "ai"
)

// ValidAlgorithm reports whether a is a known algorithm.
func ValidAlgorithm(a Algorithm) bool {
	switch a {
	case AlgorithmSMA, AlgorithmEMA, AlgorithmLinear, AlgorithmPolynomial, AlgorithmEnsemble, AlgorithmAI:
		return true
	}
	return false
}

// Trend is the classified direction of a prediction.
type Trend string

const (
	TrendUp      Trend = "up"
	TrendDown    Trend = "down"
	TrendNeutral Trend = "neutral"
)

// PricePoint is one observation or estimate in a price series.
type PricePoint struct {
	Date       time.Time `json:"date"`
	Price      float64   `json:"price"`
	IsEstimate bool      `json:"is_estimate"`
}

// HistoryPoint is a historical observation supplied by a market data
// provider. Volume is optional; zero means unknown.
type HistoryPoint struct {
	Date   time.Time `json:"date"`
	Price  float64   `json:"price"`
	Volume int64     `json:"volume,omitempty"`
}

// PredictionResult is the immutable output of one engine run. Points holds
// the actual history prefix (IsEstimate=false) followed by the projected
// suffix (IsEstimate=true); the boundary is the last historical date.
type PredictionResult struct {
	Symbol          string          `json:"symbol"`
	Algorithm       Algorithm       `json:"algorithm"`
	Points          []PricePoint    `json:"points"`
	Trend           Trend           `json:"trend"`
	TrendStrength   float64         `json:"trend_strength"` // 0-100
	ShortTermTarget decimal.Decimal `json:"short_term_target"`
	LongTermTarget  decimal.Decimal `json:"long_term_target"`
	Confidence      float64         `json:"confidence"` // 0-1
	AIReasoning     string          `json:"ai_reasoning,omitempty"`
	IsSimulated     bool            `json:"is_simulated"`
	GeneratedAt     time.Time       `json:"generated_at"`
}
