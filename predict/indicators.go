package predict

// Technical indicator helpers shared by the trend scorer and the AI
// estimator prompt. All functions operate on chronologically ordered
// close prices, oldest first.

// SMA computes the simple moving average of the trailing period. Returns
// 0 when there is not enough data.
func SMA(prices []float64, period int) float64 {
	if len(prices) < period || period <= 0 {
		return 0
	}
	sum := 0.0
	for i := len(prices) - period; i < len(prices); i++ {
		sum += prices[i]
	}
	return sum / float64(period)
}

// EMASeries computes the exponential moving average at every index. The
// first period-1 values are seeded with the raw prices, index period-1
// with the SMA, the rest with the standard recurrence. Input shorter
// than the period is returned unchanged.
func EMASeries(prices []float64, period int) []float64 {
	if len(prices) < period || period <= 0 {
		return prices
	}

	ema := make([]float64, len(prices))
	multiplier := 2.0 / float64(period+1)

	sum := 0.0
	for i := 0; i < period; i++ {
		sum += prices[i]
		ema[i] = prices[i]
	}
	ema[period-1] = sum / float64(period)

	for i := period; i < len(prices); i++ {
		ema[i] = (prices[i]-ema[i-1])*multiplier + ema[i-1]
	}
	return ema
}

// RSI computes the Relative Strength Index over the trailing period.
// Returns the neutral value 50 when there is not enough data.
func RSI(prices []float64, period int) float64 {
	if len(prices) < period+1 {
		return 50.0
	}

	var gains, losses float64
	for i := 1; i <= period; i++ {
		change := prices[len(prices)-i] - prices[len(prices)-i-1]
		if change > 0 {
			gains += change
		} else {
			losses -= change
		}
	}

	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)

	if avgLoss == 0 {
		if avgGain == 0 {
			return 50.0 // no movement at all
		}
		return 100.0
	}

	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// MACD computes the 12/26 MACD line, its 9-period signal line and the
// histogram, all evaluated at the last price.
func MACD(prices []float64) (macd, signal, histogram float64) {
	if len(prices) < 26 {
		return 0, 0, 0
	}

	ema12 := EMASeries(prices, 12)
	ema26 := EMASeries(prices, 26)

	macdLine := make([]float64, len(prices))
	for i := range prices {
		macdLine[i] = ema12[i] - ema26[i]
	}
	signalLine := EMASeries(macdLine, 9)

	macd = macdLine[len(macdLine)-1]
	signal = signalLine[len(signalLine)-1]
	return macd, signal, macd - signal
}
