package services

import (
	"context"
	"fmt"
	"time"

	"stockboard/models"
	"stockboard/observability"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/shopspring/decimal"
)

// AlpacaService supplies market data (bars and quotes) from Alpaca.
// It is the primary history provider for the prediction engine.
type AlpacaService struct {
	dataClient *marketdata.Client
}

// NewAlpacaService creates a new AlpacaService instance
func NewAlpacaService(apiKey, apiSecret string) *AlpacaService {
	dataClient := marketdata.NewClient(marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	})

	return &AlpacaService{dataClient: dataClient}
}

// Name identifies this provider in logs and fallback chains
func (s *AlpacaService) Name() string {
	return BreakerAlpaca
}

// GetQuote returns the latest quote for a symbol
func (s *AlpacaService) GetQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	metrics := observability.GetMetrics()
	metrics.RecordExternalAPIRequest(BreakerAlpaca, "quote")
	timer := metrics.NewTimer()

	quote, err := WithCircuitBreaker(ctx, BreakerAlpaca, func() (*marketdata.Quote, error) {
		return s.dataClient.GetLatestQuote(symbol, marketdata.GetLatestQuoteRequest{})
	})

	timer.ObserveExternalAPI(BreakerAlpaca, "quote")
	if err != nil {
		metrics.RecordExternalAPIError(BreakerAlpaca, "quote", "request_failed")
		return nil, fmt.Errorf("failed to get quote for %s: %w", symbol, err)
	}

	return &models.Quote{
		Symbol:    symbol,
		Bid:       decimal.NewFromFloat(quote.BidPrice),
		Ask:       decimal.NewFromFloat(quote.AskPrice),
		BidSize:   int64(quote.BidSize),
		AskSize:   int64(quote.AskSize),
		Timestamp: quote.Timestamp,
	}, nil
}

// GetBars returns historical bars for a symbol
func (s *AlpacaService) GetBars(ctx context.Context, symbol string, start, end time.Time, timeframe marketdata.TimeFrame) ([]models.Bar, error) {
	metrics := observability.GetMetrics()
	metrics.RecordExternalAPIRequest(BreakerAlpaca, "bars")
	timer := metrics.NewTimer()

	bars, err := WithCircuitBreaker(ctx, BreakerAlpaca, func() ([]marketdata.Bar, error) {
		return s.dataClient.GetBars(symbol, marketdata.GetBarsRequest{
			TimeFrame: timeframe,
			Start:     start,
			End:       end,
		})
	})

	timer.ObserveExternalAPI(BreakerAlpaca, "bars")
	if err != nil {
		metrics.RecordExternalAPIError(BreakerAlpaca, "bars", "request_failed")
		return nil, fmt.Errorf("failed to get bars for %s: %w", symbol, err)
	}

	result := make([]models.Bar, 0, len(bars))
	for _, bar := range bars {
		result = append(result, models.Bar{
			Symbol:    symbol,
			Timestamp: bar.Timestamp,
			Open:      decimal.NewFromFloat(bar.Open),
			High:      decimal.NewFromFloat(bar.High),
			Low:       decimal.NewFromFloat(bar.Low),
			Close:     decimal.NewFromFloat(bar.Close),
			Volume:    int64(bar.Volume),
			VWAP:      decimal.NewFromFloat(bar.VWAP),
		})
	}

	return result, nil
}

// GetDailyHistory returns daily close prices for the last N calendar days,
// oldest first, in the form the prediction engine consumes.
func (s *AlpacaService) GetDailyHistory(ctx context.Context, symbol string, days int) ([]models.HistoryPoint, error) {
	end := time.Now()
	start := end.AddDate(0, 0, -days)

	bars, err := s.GetBars(ctx, symbol, start, end, marketdata.OneDay)
	if err != nil {
		return nil, err
	}

	points := make([]models.HistoryPoint, 0, len(bars))
	for _, bar := range bars {
		points = append(points, models.HistoryPointFromBar(bar))
	}
	return points, nil
}
