package predict

import (
	"math"
	"testing"
)

func TestSMA(t *testing.T) {
	prices := []float64{1, 2, 3, 4, 5}

	if got := SMA(prices, 5); got != 3 {
		t.Errorf("SMA(period 5) = %v, want 3", got)
	}
	if got := SMA(prices, 2); got != 4.5 {
		t.Errorf("SMA(period 2) = %v, want 4.5", got)
	}
	if got := SMA(prices, 10); got != 0 {
		t.Errorf("SMA with short input = %v, want 0", got)
	}
	if got := SMA(prices, 0); got != 0 {
		t.Errorf("SMA(period 0) = %v, want 0", got)
	}
}

func TestEMASeries(t *testing.T) {
	prices := []float64{10, 11, 12, 13, 14, 15}
	ema := EMASeries(prices, 3)

	if len(ema) != len(prices) {
		t.Fatalf("len(ema) = %d, want %d", len(ema), len(prices))
	}
	// Index period-1 is seeded with the SMA of the first period.
	if ema[2] != 11 {
		t.Errorf("ema[2] = %v, want 11", ema[2])
	}
	// The series tracks a rising input upward.
	for i := 3; i < len(ema); i++ {
		if ema[i] <= ema[i-1] {
			t.Errorf("ema not increasing at %d", i)
		}
	}

	// Too-short input comes back unchanged.
	short := []float64{1, 2}
	out := EMASeries(short, 5)
	if len(out) != 2 || out[0] != 1 || out[1] != 2 {
		t.Errorf("EMASeries short input = %v, want unchanged", out)
	}
}

func TestRSI(t *testing.T) {
	tests := []struct {
		name   string
		prices []float64
		want   float64
	}{
		{
			name:   "all gains",
			prices: risingPrices(20),
			want:   100,
		},
		{
			name: "all losses",
			prices: func() []float64 {
				p := make([]float64, 20)
				for i := range p {
					p[i] = 100 - float64(i)
				}
				return p
			}(),
			want: 0,
		},
		{
			name: "flat is neutral",
			prices: func() []float64 {
				p := make([]float64, 20)
				for i := range p {
					p[i] = 100
				}
				return p
			}(),
			want: 50,
		},
		{
			name:   "short input is neutral",
			prices: []float64{1, 2, 3},
			want:   50,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RSI(tt.prices, 14); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("RSI() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRSI_Bounded(t *testing.T) {
	// Mixed series stays strictly inside (0, 100).
	prices := make([]float64, 40)
	for i := range prices {
		if i%2 == 0 {
			prices[i] = 100 + float64(i)
		} else {
			prices[i] = 98 + float64(i)
		}
	}
	got := RSI(prices, 14)
	if got <= 0 || got >= 100 {
		t.Errorf("RSI() = %v, want in (0, 100)", got)
	}
}

func TestMACD(t *testing.T) {
	// Rising series: MACD positive, histogram non-negative.
	macd, signal, histogram := MACD(risingPrices(100))
	if macd <= 0 {
		t.Errorf("MACD = %v on rising series, want > 0", macd)
	}
	if math.Abs(histogram-(macd-signal)) > 1e-12 {
		t.Errorf("histogram = %v, want macd-signal = %v", histogram, macd-signal)
	}

	// Short input yields zeros.
	m, s, h := MACD([]float64{1, 2, 3})
	if m != 0 || s != 0 || h != 0 {
		t.Errorf("MACD on short input = (%v, %v, %v), want zeros", m, s, h)
	}
}
