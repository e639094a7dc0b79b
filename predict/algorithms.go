package predict

// Forecasting algorithms. Each is a pure function from a chronological
// close-price series to a forward series of the requested length, so
// repeated calls with identical inputs are bit-identical.

const (
	smoothingWindow = 20
	// Polynomial extrapolation is clamped to this fraction of the last
	// price in either direction over the forecast horizon.
	curvatureClampPct = 0.5
)

// forecastSMA smooths the trailing window with a simple moving average
// and extrapolates forward at the smoothed per-step slope.
func forecastSMA(prices []float64, days int) []float64 {
	window := smoothingWindow
	if window > len(prices)/2 {
		window = len(prices) / 2
	}

	// Slope of the moving average across the last window steps.
	current := SMA(prices, window)
	previous := SMA(prices[:len(prices)-window], window)
	slope := (current - previous) / float64(window)

	return extrapolate(prices[len(prices)-1], slope, days)
}

// forecastEMA is forecastSMA with exponential smoothing.
func forecastEMA(prices []float64, days int) []float64 {
	window := smoothingWindow
	if window > len(prices)/2 {
		window = len(prices) / 2
	}

	ema := EMASeries(prices, window)
	current := ema[len(ema)-1]
	previous := ema[len(ema)-1-window]
	slope := (current - previous) / float64(window)

	return extrapolate(prices[len(prices)-1], slope, days)
}

// forecastLinear fits a least-squares line over the full history and
// extrapolates it.
func forecastLinear(prices []float64, days int) []float64 {
	n := float64(len(prices))
	var sumX, sumY, sumXY, sumXX float64
	for i, p := range prices {
		x := float64(i)
		sumX += x
		sumY += p
		sumXY += x * p
		sumXX += x * x
	}

	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return extrapolate(prices[len(prices)-1], 0, days)
	}
	slope := (n*sumXY - sumX*sumY) / denom
	intercept := (sumY - slope*sumX) / n

	out := make([]float64, days)
	for i := 0; i < days; i++ {
		x := float64(len(prices) + i)
		out[i] = floorPrice(intercept + slope*x)
	}
	return out
}

// forecastPolynomial fits a degree-2 curve over the full history and
// extrapolates it, clamping the projection to a bounded band around the
// last price so the quadratic term cannot run away over long horizons.
func forecastPolynomial(prices []float64, days int) []float64 {
	a, b, c, ok := fitQuadratic(prices)
	if !ok {
		return forecastLinear(prices, days)
	}

	last := prices[len(prices)-1]
	lo := last * (1 - curvatureClampPct)
	hi := last * (1 + curvatureClampPct)

	out := make([]float64, days)
	for i := 0; i < days; i++ {
		x := float64(len(prices) + i)
		v := a + b*x + c*x*x
		if v < lo {
			v = lo
		}
		if v > hi {
			v = hi
		}
		out[i] = floorPrice(v)
	}
	return out
}

// forecastEnsemble averages the four deterministic algorithms per step.
func forecastEnsemble(prices []float64, days int) []float64 {
	series := [][]float64{
		forecastSMA(prices, days),
		forecastEMA(prices, days),
		forecastLinear(prices, days),
		forecastPolynomial(prices, days),
	}

	out := make([]float64, days)
	for i := 0; i < days; i++ {
		sum := 0.0
		for _, s := range series {
			sum += s[i]
		}
		out[i] = sum / float64(len(series))
	}
	return out
}

// fitQuadratic solves the normal equations for y = a + b*x + c*x^2 by
// Cramer's rule. ok is false when the system is singular.
func fitQuadratic(prices []float64) (a, b, c float64, ok bool) {
	n := float64(len(prices))
	var sx, sx2, sx3, sx4, sy, sxy, sx2y float64
	for i, p := range prices {
		x := float64(i)
		x2 := x * x
		sx += x
		sx2 += x2
		sx3 += x2 * x
		sx4 += x2 * x2
		sy += p
		sxy += x * p
		sx2y += x2 * p
	}

	det := func(m [9]float64) float64 {
		return m[0]*(m[4]*m[8]-m[5]*m[7]) -
			m[1]*(m[3]*m[8]-m[5]*m[6]) +
			m[2]*(m[3]*m[7]-m[4]*m[6])
	}

	d := det([9]float64{n, sx, sx2, sx, sx2, sx3, sx2, sx3, sx4})
	if d == 0 {
		return 0, 0, 0, false
	}
	a = det([9]float64{sy, sx, sx2, sxy, sx2, sx3, sx2y, sx3, sx4}) / d
	b = det([9]float64{n, sy, sx2, sx, sxy, sx3, sx2, sx2y, sx4}) / d
	c = det([9]float64{n, sx, sy, sx, sx2, sxy, sx2, sx3, sx2y}) / d
	return a, b, c, true
}

func extrapolate(start, slope float64, days int) []float64 {
	out := make([]float64, days)
	for i := 0; i < days; i++ {
		out[i] = floorPrice(start + slope*float64(i+1))
	}
	return out
}

// floorPrice keeps projections from crossing into non-positive prices.
func floorPrice(v float64) float64 {
	if v < 0.01 {
		return 0.01
	}
	return v
}
