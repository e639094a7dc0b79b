package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Quote represents real-time quote data for a stock
type Quote struct {
	Symbol    string          `json:"symbol"`
	Bid       decimal.Decimal `json:"bid"`
	Ask       decimal.Decimal `json:"ask"`
	BidSize   int64           `json:"bid_size"`
	AskSize   int64           `json:"ask_size"`
	Last      decimal.Decimal `json:"last"`
	Volume    int64           `json:"volume"`
	Timestamp time.Time       `json:"timestamp"`
}

// Bar represents OHLCV price data for a time period
type Bar struct {
	Symbol    string          `json:"symbol"`
	Timestamp time.Time       `json:"timestamp"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	Volume    int64           `json:"volume"`
	VWAP      decimal.Decimal `json:"vwap"`
}

// HistoryPointFromBar converts an OHLCV bar to the close-price form the
// prediction engine consumes.
func HistoryPointFromBar(b Bar) HistoryPoint {
	price, _ := b.Close.Float64()
	return HistoryPoint{Date: b.Timestamp, Price: price, Volume: b.Volume}
}

// NewsArticle represents a news article shown by a news widget
type NewsArticle struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	Source      string    `json:"source"`
	Author      string    `json:"author,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	PublishedAt time.Time `json:"published_at"`
}
