package predict

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"stockboard/models"
	"stockboard/observability"
)

const predictionSystemPrompt = `You are a financial analyst producing short-term stock outlooks.
You will be given recent price action and technical indicators for one symbol.

Respond ONLY with JSON in this exact format:
{
  "trend": "<up|down|neutral>",
  "confidence": <number from 0 to 100>,
  "reasoning": "<2-4 sentence explanation grounded in the indicators provided>"
}

Consider RSI overbought/oversold levels, MACD momentum, the price relative
to its moving averages, and the recent percentage change. Be objective; do
not invent indicators you were not given.`

// aiResponse is the JSON the model is asked to return.
type aiResponse struct {
	Trend      string  `json:"trend"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// generateAI runs the ai algorithm: ensemble numbers for the projected
// series, with direction, confidence and a narrative supplied by the
// LLM. Any model failure degrades to the rule-based simulated estimate
// instead of propagating; the caller always gets a result.
func (e *Engine) generateAI(ctx context.Context, symbol string, history []models.HistoryPoint, prices []float64, days int) (*models.PredictionResult, error) {
	score := ScoreTrend(prices)

	if e.llm == nil {
		return e.simulatedResult(symbol, history, prices, days, score), nil
	}

	response, err := e.llm.InvokeWithPrompt(ctx, predictionSystemPrompt, buildPredictionPrompt(symbol, prices, days, score))
	if err != nil {
		observability.WithSymbol(symbol).Warn("AI prediction degraded to simulated estimate",
			"error", err.Error())
		return e.simulatedResult(symbol, history, prices, days, score), nil
	}

	result := e.buildResult(symbol, models.AlgorithmAI, history, forecastEnsemble(prices, days))
	result.Trend = score.Trend
	result.TrendStrength = score.Strength
	result.Confidence = confidenceFor(models.AlgorithmAI, days)

	var parsed aiResponse
	if jsonErr := json.Unmarshal([]byte(extractJSON(response)), &parsed); jsonErr != nil {
		// Model answered off-format; keep its text as the narrative and
		// let the rule scorer carry the direction.
		result.AIReasoning = response
		return result, nil
	}

	if t := models.Trend(parsed.Trend); t == models.TrendUp || t == models.TrendDown || t == models.TrendNeutral {
		result.Trend = t
	}
	if parsed.Confidence > 0 && parsed.Confidence <= 100 {
		result.Confidence = parsed.Confidence / 100
	}
	result.AIReasoning = parsed.Reasoning
	return result, nil
}

// simulatedResult is the degraded ai output: seeded jitter forecast,
// rule-based trend, flagged IsSimulated.
func (e *Engine) simulatedResult(symbol string, history []models.HistoryPoint, prices []float64, days int, score TrendScore) *models.PredictionResult {
	result := e.buildResult(symbol, models.AlgorithmAI, history, simulatedForecast(symbol, prices, days))
	result.Trend = score.Trend
	result.TrendStrength = score.Strength
	result.Confidence = confidenceFor(models.AlgorithmEnsemble, days)
	result.AIReasoning = simulatedReasoning(symbol, score)
	result.IsSimulated = true
	return result
}

func buildPredictionPrompt(symbol string, prices []float64, days int, score TrendScore) string {
	last := prices[len(prices)-1]
	rsi := RSI(prices, 14)
	macd, signal, histogram := MACD(prices)
	ma20 := SMA(prices, 20)
	ma50 := SMA(prices, 50)

	var b strings.Builder
	fmt.Fprintf(&b, "Analyze %s over a %d-day horizon.\n\n", symbol, days)
	fmt.Fprintf(&b, "Current Price: $%.2f\n", last)
	fmt.Fprintf(&b, "RSI (14): %.2f\n", rsi)
	fmt.Fprintf(&b, "MACD: %.4f  Signal: %.4f  Histogram: %.4f\n", macd, signal, histogram)
	if ma20 > 0 {
		fmt.Fprintf(&b, "SMA 20: $%.2f (price %+.2f%%)\n", ma20, (last/ma20-1)*100)
	}
	if ma50 > 0 {
		fmt.Fprintf(&b, "SMA 50: $%.2f (price %+.2f%%)\n", ma50, (last/ma50-1)*100)
	}
	fmt.Fprintf(&b, "\nRule-based signals: %s\n", strings.Join(score.Signals, ", "))
	fmt.Fprintf(&b, "Rule-based score: %.2f (%s)\n", score.Score, score.Trend)
	b.WriteString("\nProvide your outlook.")
	return b.String()
}

// extractJSON pulls the first JSON object out of a response that may be
// wrapped in prose or a code fence.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}
