package services

import (
	"context"

	"stockboard/models"
)

// LLMService defines the interface for AI/LLM completions. Both the
// Bedrock and OpenAI services implement it; the prediction engine's AI
// estimator only depends on this.
type LLMService interface {
	InvokeWithPrompt(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// HistoryProvider supplies daily close-price history for a symbol, most
// recent point last.
type HistoryProvider interface {
	GetDailyHistory(ctx context.Context, symbol string, days int) ([]models.HistoryPoint, error)
	Name() string
}

// QuoteProvider supplies the latest quote for a symbol.
type QuoteProvider interface {
	GetQuote(ctx context.Context, symbol string) (*models.Quote, error)
}

// NewsProvider supplies articles for the news widget.
type NewsProvider interface {
	GetNews(ctx context.Context, query string, limit int) ([]models.NewsArticle, error)
	GetHeadlines(ctx context.Context, query string, limit int) ([]models.NewsArticle, error)
}

// Compile-time interface verification
var _ LLMService = (*BedrockService)(nil)
var _ LLMService = (*OpenAIService)(nil)
var _ HistoryProvider = (*AlpacaService)(nil)
var _ HistoryProvider = (*AlphaVantageService)(nil)
var _ QuoteProvider = (*AlpacaService)(nil)
var _ QuoteProvider = (*AlphaVantageService)(nil)
var _ NewsProvider = (*NewsAPIService)(nil)
