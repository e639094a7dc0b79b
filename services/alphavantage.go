package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"stockboard/models"
	"stockboard/observability"

	"github.com/shopspring/decimal"
)

// AlphaVantageService handles communication with Alpha Vantage API.
// It is the fallback history provider when Alpaca is unavailable.
type AlphaVantageService struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
}

// NewAlphaVantageService creates a new AlphaVantageService instance
func NewAlphaVantageService(apiKey string) *AlphaVantageService {
	return &AlphaVantageService{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    "https://www.alphavantage.co/query",
	}
}

// Name identifies this provider in logs and fallback chains
func (s *AlphaVantageService) Name() string {
	return BreakerAlphaVantage
}

// DailySeriesResponse represents the TIME_SERIES_DAILY response
type DailySeriesResponse struct {
	MetaData struct {
		Symbol        string `json:"2. Symbol"`
		LastRefreshed string `json:"3. Last Refreshed"`
	} `json:"Meta Data"`
	TimeSeries map[string]struct {
		Open   string `json:"1. open"`
		High   string `json:"2. high"`
		Low    string `json:"3. low"`
		Close  string `json:"4. close"`
		Volume string `json:"5. volume"`
	} `json:"Time Series (Daily)"`
	Note         string `json:"Note"`
	ErrorMessage string `json:"Error Message"`
}

// GetDailyHistory returns daily close prices for the last N calendar days,
// oldest first.
func (s *AlphaVantageService) GetDailyHistory(ctx context.Context, symbol string, days int) ([]models.HistoryPoint, error) {
	metrics := observability.GetMetrics()
	metrics.RecordExternalAPIRequest(BreakerAlphaVantage, "daily_history")
	timer := metrics.NewTimer()

	outputSize := "compact"
	if days > 100 {
		outputSize = "full"
	}

	var series DailySeriesResponse
	err := WithRetry(ctx, DefaultRetryConfig, func() error {
		params := url.Values{}
		params.Set("function", "TIME_SERIES_DAILY")
		params.Set("symbol", symbol)
		params.Set("outputsize", outputSize)
		params.Set("apikey", s.apiKey)

		resp, reqErr := WithCircuitBreaker(ctx, BreakerAlphaVantage, func() (*http.Response, error) {
			req, err := http.NewRequestWithContext(ctx, "GET", s.baseURL+"?"+params.Encode(), nil)
			if err != nil {
				return nil, fmt.Errorf("failed to create request: %w", err)
			}
			return s.httpClient.Do(req)
		})
		if reqErr != nil {
			return fmt.Errorf("failed to fetch daily series: %w", reqErr)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("Alpha Vantage returned status %d", resp.StatusCode)
		}

		if err := json.NewDecoder(resp.Body).Decode(&series); err != nil {
			return fmt.Errorf("failed to decode daily series: %w", err)
		}
		if series.ErrorMessage != "" {
			return fmt.Errorf("Alpha Vantage error: %s", series.ErrorMessage)
		}
		if series.Note != "" {
			// Rate limit notes come back with a 200 status
			return fmt.Errorf("Alpha Vantage rate limited: %s", series.Note)
		}
		return nil
	})

	timer.ObserveExternalAPI(BreakerAlphaVantage, "daily_history")
	if err != nil {
		metrics.RecordExternalAPIError(BreakerAlphaVantage, "daily_history", "request_failed")
		return nil, err
	}

	cutoff := time.Now().AddDate(0, 0, -days)
	points := make([]models.HistoryPoint, 0, len(series.TimeSeries))
	for dateStr, entry := range series.TimeSeries {
		date, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			observability.Warn("failed to parse series date, skipping",
				"date", dateStr,
				"error", err)
			continue
		}
		if date.Before(cutoff) {
			continue
		}

		price, err := strconv.ParseFloat(entry.Close, 64)
		if err != nil {
			observability.Warn("failed to parse close price, skipping",
				"date", dateStr,
				"close", entry.Close,
				"error", err)
			continue
		}
		volume, _ := strconv.ParseInt(entry.Volume, 10, 64)

		points = append(points, models.HistoryPoint{
			Date:   date,
			Price:  price,
			Volume: volume,
		})
	}

	// The daily series arrives as a map keyed by date; callers expect
	// chronological order.
	sort.Slice(points, func(i, j int) bool {
		return points[i].Date.Before(points[j].Date)
	})

	return points, nil
}

// QuoteResponse represents a GLOBAL_QUOTE response from Alpha Vantage
type QuoteResponse struct {
	GlobalQuote struct {
		Symbol        string `json:"01. symbol"`
		Open          string `json:"02. open"`
		High          string `json:"03. high"`
		Low           string `json:"04. low"`
		Price         string `json:"05. price"`
		Volume        string `json:"06. volume"`
		LatestDay     string `json:"07. latest trading day"`
		PrevClose     string `json:"08. previous close"`
		Change        string `json:"09. change"`
		ChangePercent string `json:"10. change percent"`
	} `json:"Global Quote"`
}

// GetQuote returns the latest quote for a symbol
func (s *AlphaVantageService) GetQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	metrics := observability.GetMetrics()
	metrics.RecordExternalAPIRequest(BreakerAlphaVantage, "quote")
	timer := metrics.NewTimer()

	params := url.Values{}
	params.Set("function", "GLOBAL_QUOTE")
	params.Set("symbol", symbol)
	params.Set("apikey", s.apiKey)

	resp, err := WithCircuitBreaker(ctx, BreakerAlphaVantage, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, "GET", s.baseURL+"?"+params.Encode(), nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		return s.httpClient.Do(req)
	})

	timer.ObserveExternalAPI(BreakerAlphaVantage, "quote")
	if err != nil {
		metrics.RecordExternalAPIError(BreakerAlphaVantage, "quote", "request_failed")
		return nil, fmt.Errorf("failed to fetch quote: %w", err)
	}
	defer resp.Body.Close()

	var quoteResp QuoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&quoteResp); err != nil {
		metrics.RecordExternalAPIError(BreakerAlphaVantage, "quote", "decode_failed")
		return nil, fmt.Errorf("failed to decode quote: %w", err)
	}

	price, _ := decimal.NewFromString(quoteResp.GlobalQuote.Price)
	var volume int64
	if quoteResp.GlobalQuote.Volume != "" {
		volume, err = strconv.ParseInt(quoteResp.GlobalQuote.Volume, 10, 64)
		if err != nil {
			observability.Warn("failed to parse quote volume",
				"volume", quoteResp.GlobalQuote.Volume,
				"error", err)
		}
	}

	return &models.Quote{
		Symbol:    symbol,
		Last:      price,
		Volume:    volume,
		Timestamp: time.Now(),
	}, nil
}
