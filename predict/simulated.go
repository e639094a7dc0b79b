package predict

import (
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"strings"
)

// simulatedForecast is the estimator used when no LLM is configured or
// the AI path degrades. It jitters the ensemble forecast with noise
// seeded from the input series, so a given (symbol, history) pair always
// reproduces the same curve while still looking organic on a chart.
func simulatedForecast(symbol string, prices []float64, days int) []float64 {
	rng := rand.New(rand.NewSource(seriesSeed(symbol, prices)))

	base := forecastEnsemble(prices, days)
	volatility := dailyVolatility(prices)

	out := make([]float64, days)
	for i, v := range base {
		jitter := (rng.Float64()*2 - 1) * volatility
		out[i] = floorPrice(v * (1 + jitter))
	}
	return out
}

// seriesSeed hashes the symbol and every price into a stable rng seed.
func seriesSeed(symbol string, prices []float64) int64 {
	h := fnv.New64a()
	h.Write([]byte(symbol))
	var buf [8]byte
	for _, p := range prices {
		bits := math.Float64bits(p)
		for i := 0; i < 8; i++ {
			buf[i] = byte(bits >> (8 * i))
		}
		h.Write(buf[:])
	}
	return int64(h.Sum64())
}

// dailyVolatility is the mean absolute daily return, capped so jitter
// never dominates the underlying forecast.
func dailyVolatility(prices []float64) float64 {
	if len(prices) < 2 {
		return 0.01
	}
	sum := 0.0
	for i := 1; i < len(prices); i++ {
		if prices[i-1] != 0 {
			sum += math.Abs(prices[i]-prices[i-1]) / prices[i-1]
		}
	}
	v := sum / float64(len(prices)-1)
	if v > 0.05 {
		v = 0.05
	}
	if v < 0.002 {
		v = 0.002
	}
	return v
}

// simulatedReasoning renders the rule scorer's signals as the reasoning
// text shown when no model call was made.
func simulatedReasoning(symbol string, score TrendScore) string {
	direction := string(score.Trend)
	if len(score.Signals) == 0 {
		return fmt.Sprintf("Rule-based analysis of %s suggests a %s trend with no strong signals.", symbol, direction)
	}
	return fmt.Sprintf("Rule-based analysis of %s suggests a %s trend (strength %.0f). Signals: %s.",
		symbol, direction, score.Strength, strings.Join(score.Signals, ", "))
}
