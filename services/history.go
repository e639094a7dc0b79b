package services

import (
	"context"
	"errors"
	"fmt"

	"stockboard/models"
	"stockboard/observability"
)

// ErrNoHistoryProvider is returned when no provider in the chain is configured.
var ErrNoHistoryProvider = errors.New("no history provider configured")

// HistoryChain tries each configured history provider in order until one
// succeeds. Alpaca first, Alpha Vantage as fallback.
type HistoryChain struct {
	providers []HistoryProvider
}

// NewHistoryChain creates a chain from the given providers, skipping nils
func NewHistoryChain(providers ...HistoryProvider) *HistoryChain {
	chain := &HistoryChain{}
	for _, p := range providers {
		if p != nil {
			chain.providers = append(chain.providers, p)
		}
	}
	return chain
}

// Name identifies the chain in logs
func (c *HistoryChain) Name() string {
	return "history_chain"
}

// Available reports whether at least one provider is configured
func (c *HistoryChain) Available() bool {
	return len(c.providers) > 0
}

// GetDailyHistory returns daily history from the first provider that
// answers. Each provider failure is logged and the next one is tried.
func (c *HistoryChain) GetDailyHistory(ctx context.Context, symbol string, days int) ([]models.HistoryPoint, error) {
	if len(c.providers) == 0 {
		return nil, ErrNoHistoryProvider
	}

	var lastErr error
	for _, provider := range c.providers {
		points, err := provider.GetDailyHistory(ctx, symbol, days)
		if err == nil {
			return points, nil
		}

		lastErr = err
		observability.WithSymbol(symbol).Warn("history provider failed, trying next",
			"provider", provider.Name(),
			"error", err)

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("all history providers failed for %s: %w", symbol, lastErr)
}

var _ HistoryProvider = (*HistoryChain)(nil)
