package predict

import (
	"math"

	"stockboard/models"
)

// Classification thresholds. The comparison is strict: a score of
// exactly trendThreshold is neutral.
const trendThreshold = 0.3

// TrendScore is the output of the rule-based trend scorer.
type TrendScore struct {
	Trend    models.Trend
	Score    float64 // normalized mean of contributing signals, [-1, 1]
	Strength float64 // 0-100
	Signals  []string
}

// ScoreTrend classifies the direction of a price series from its
// technical signals. Every available signal contributes a point in
// {-1, -0.5, 0, 0.5, 1}; signals whose indicator cannot be computed from
// the available history are skipped rather than defaulted.
func ScoreTrend(prices []float64) TrendScore {
	var points []float64
	var signals []string
	add := func(p float64, name string) {
		points = append(points, p)
		if p != 0 {
			signals = append(signals, name)
		}
	}

	last := prices[len(prices)-1]

	// Recent percentage change over the trailing smoothing window.
	window := smoothingWindow
	if window >= len(prices) {
		window = len(prices) - 1
	}
	if window > 0 {
		change := (last - prices[len(prices)-1-window]) / prices[len(prices)-1-window] * 100
		switch {
		case change > 5:
			add(1, "strong recent gains")
		case change > 1:
			add(0.5, "recent gains")
		case change < -5:
			add(-1, "strong recent losses")
		case change < -1:
			add(-0.5, "recent losses")
		default:
			add(0, "flat recent price action")
		}
	}

	// RSI extremes read as reversal signals, the 40/60 band as momentum.
	if len(prices) >= 15 {
		rsi := RSI(prices, 14)
		switch {
		case rsi < 30:
			add(1, "RSI oversold")
		case rsi < 40:
			add(0.5, "RSI weak")
		case rsi > 70:
			add(-1, "RSI overbought")
		case rsi > 60:
			add(-0.5, "RSI elevated")
		default:
			add(0, "RSI neutral")
		}
	}

	if len(prices) >= 26 {
		_, _, histogram := MACD(prices)
		switch {
		case histogram > 0:
			add(0.5, "MACD bullish")
		case histogram < 0:
			add(-0.5, "MACD bearish")
		default:
			add(0, "MACD flat")
		}
	}

	ma20 := SMA(prices, 20)
	ma50 := SMA(prices, 50)
	ma200 := SMA(prices, 200)

	if ma20 > 0 {
		add(aboveBelow(last, ma20, 0.5), "price vs MA20")
	}
	if ma50 > 0 {
		add(aboveBelow(last, ma50, 0.5), "price vs MA50")
	}
	if ma200 > 0 {
		add(aboveBelow(last, ma200, 1), "price vs MA200")
	}
	if ma20 > 0 && ma50 > 0 {
		add(aboveBelow(ma20, ma50, 0.5), "MA20 vs MA50")
	}
	if ma50 > 0 && ma200 > 0 {
		add(aboveBelow(ma50, ma200, 1), "MA50 vs MA200")
	}

	score := 0.0
	if len(points) > 0 {
		sum := 0.0
		for _, p := range points {
			sum += p
		}
		score = sum / float64(len(points))
	}

	return TrendScore{
		Trend:    classifyScore(score),
		Score:    score,
		Strength: math.Min(100, math.Abs(score)*100+40),
		Signals:  signals,
	}
}

// classifyScore maps a normalized score to a trend. The comparison is
// strict: exactly the threshold stays neutral.
func classifyScore(score float64) models.Trend {
	if score > trendThreshold {
		return models.TrendUp
	}
	if score < -trendThreshold {
		return models.TrendDown
	}
	return models.TrendNeutral
}

func aboveBelow(value, reference, weight float64) float64 {
	if value > reference {
		return weight
	}
	if value < reference {
		return -weight
	}
	return 0
}
