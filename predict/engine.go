package predict

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"stockboard/models"
	"stockboard/observability"
	"stockboard/services"
)

// ErrInsufficientHistory is returned when the supplied price history is
// too short to forecast from.
var ErrInsufficientHistory = errors.New("insufficient price history")

const (
	// DefaultMinHistory is the minimum number of history points required
	// before any algorithm runs.
	DefaultMinHistory = 30
	// DefaultDays is the forecast horizon used when the caller does not
	// specify one.
	DefaultDays = 30
	// MaxDays caps the forecast horizon.
	MaxDays = 365

	shortTermHorizon = 7
)

// Options selects the algorithm and forecast horizon for one run.
type Options struct {
	Algorithm models.Algorithm `json:"algorithm"`
	Days      int              `json:"days"`
}

// Engine produces price forecasts from historical series. The LLM
// service is optional: without one the ai algorithm runs permanently in
// simulated mode and flags its output accordingly.
type Engine struct {
	llm        services.LLMService
	minHistory int
}

// NewEngine creates an engine. llm may be nil.
func NewEngine(llm services.LLMService) *Engine {
	return &Engine{llm: llm, minHistory: DefaultMinHistory}
}

// Generate runs one prediction. history must be chronological, oldest
// first. The result is freshly allocated on every call; deterministic
// algorithms return identical Points for identical inputs.
func (e *Engine) Generate(ctx context.Context, symbol string, history []models.HistoryPoint, opts Options) (*models.PredictionResult, error) {
	metrics := observability.GetMetrics()
	algorithm := opts.Algorithm
	if algorithm == "" {
		algorithm = models.AlgorithmEnsemble
	}
	if !models.ValidAlgorithm(algorithm) {
		return nil, fmt.Errorf("unknown algorithm %q", opts.Algorithm)
	}

	metrics.RecordPredictionRequest(string(algorithm))
	timer := metrics.NewTimer()

	if len(history) < e.minHistory {
		metrics.RecordPredictionError(string(algorithm), "insufficient_history")
		timer.ObservePrediction(string(algorithm), "error")
		return nil, fmt.Errorf("%w: have %d points, need %d", ErrInsufficientHistory, len(history), e.minHistory)
	}

	days := opts.Days
	if days <= 0 {
		days = DefaultDays
	}
	if days > MaxDays {
		days = MaxDays
	}

	prices := make([]float64, len(history))
	for i, p := range history {
		prices[i] = p.Price
	}

	result, err := e.run(ctx, symbol, algorithm, history, prices, days)
	if err != nil {
		metrics.RecordPredictionError(string(algorithm), "generation_failed")
		timer.ObservePrediction(string(algorithm), "error")
		return nil, err
	}

	timer.ObservePrediction(string(algorithm), "success")
	metrics.RecordPrediction(string(algorithm), result.Confidence, result.IsSimulated)
	observability.WithSymbol(symbol).Info("prediction generated",
		"algorithm", string(algorithm),
		"days", days,
		"trend", string(result.Trend),
		"simulated", result.IsSimulated)
	return result, nil
}

func (e *Engine) run(ctx context.Context, symbol string, algorithm models.Algorithm, history []models.HistoryPoint, prices []float64, days int) (*models.PredictionResult, error) {
	if algorithm == models.AlgorithmAI {
		return e.generateAI(ctx, symbol, history, prices, days)
	}

	var forward []float64
	switch algorithm {
	case models.AlgorithmSMA:
		forward = forecastSMA(prices, days)
	case models.AlgorithmEMA:
		forward = forecastEMA(prices, days)
	case models.AlgorithmLinear:
		forward = forecastLinear(prices, days)
	case models.AlgorithmPolynomial:
		forward = forecastPolynomial(prices, days)
	case models.AlgorithmEnsemble:
		forward = forecastEnsemble(prices, days)
	default:
		return nil, fmt.Errorf("unknown algorithm %q", algorithm)
	}

	score := ScoreTrend(prices)
	result := e.buildResult(symbol, algorithm, history, forward)
	result.Trend = score.Trend
	result.TrendStrength = score.Strength
	result.Confidence = confidenceFor(algorithm, days)
	return result, nil
}

// buildResult assembles the actual-prefix/estimate-suffix point series
// and the price targets common to every algorithm.
func (e *Engine) buildResult(symbol string, algorithm models.Algorithm, history []models.HistoryPoint, forward []float64) *models.PredictionResult {
	points := make([]models.PricePoint, 0, len(history)+len(forward))
	for _, h := range history {
		points = append(points, models.PricePoint{Date: h.Date, Price: h.Price, IsEstimate: false})
	}
	lastDate := history[len(history)-1].Date
	for i, price := range forward {
		points = append(points, models.PricePoint{
			Date:       lastDate.AddDate(0, 0, i+1),
			Price:      price,
			IsEstimate: true,
		})
	}

	shortIdx := shortTermHorizon - 1
	if shortIdx >= len(forward) {
		shortIdx = len(forward) - 1
	}

	return &models.PredictionResult{
		Symbol:          symbol,
		Algorithm:       algorithm,
		Points:          points,
		ShortTermTarget: decimal.NewFromFloat(forward[shortIdx]).Round(2),
		LongTermTarget:  decimal.NewFromFloat(forward[len(forward)-1]).Round(2),
		GeneratedAt:     time.Now(),
	}
}

// confidenceFor derives a deterministic confidence from the algorithm
// and horizon. Longer horizons are penalized.
func confidenceFor(algorithm models.Algorithm, days int) float64 {
	base := map[models.Algorithm]float64{
		models.AlgorithmSMA:        0.55,
		models.AlgorithmEMA:        0.60,
		models.AlgorithmLinear:     0.65,
		models.AlgorithmPolynomial: 0.60,
		models.AlgorithmEnsemble:   0.70,
		models.AlgorithmAI:         0.75,
	}[algorithm]

	c := base - 0.003*float64(days)
	if c < 0.2 {
		c = 0.2
	}
	return c
}
