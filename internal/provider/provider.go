// Package provider fetches quote snapshots and intraday klines from free
// public endpoints. Best-effort sources: consumers degrade gracefully when
// a provider is rate-limited or missing fields.
package provider

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"ashare-sentinel/internal/errors"
	"ashare-sentinel/internal/models"
)

// Provider fetches normalized quote data for exchange-prefixed symbols
// like sh600158.
type Provider interface {
	Name() string
	Quote(ctx context.Context, symbol string) (models.QuoteSnapshot, error)
	Kline(ctx context.Context, symbol string, scaleMin int, day time.Time) (models.BarSeries, error)
	Daily(ctx context.Context, symbol string, limit int) (models.BarSeries, error)
}

// Chain tries each provider in order and returns the first usable result.
type Chain struct {
	providers []Provider
	logger    zerolog.Logger
}

// NewChain creates a fallback chain over the given providers.
func NewChain(logger zerolog.Logger, providers ...Provider) *Chain {
	return &Chain{providers: providers, logger: logger}
}

// Name returns the chain's name.
func (c *Chain) Name() string { return "chain" }

// Quote returns the first provider's successful quote.
func (c *Chain) Quote(ctx context.Context, symbol string) (models.QuoteSnapshot, error) {
	var lastErr error
	for _, p := range c.providers {
		q, err := p.Quote(ctx, symbol)
		if err == nil {
			return q, nil
		}
		lastErr = err
		c.logger.Warn().Err(err).Str("provider", p.Name()).Str("symbol", symbol).Msg("quote fetch failed, trying next")
	}
	return models.QuoteSnapshot{}, errors.NewProviderError("chain", symbol, "all providers failed for quote", lastErr)
}

// Kline returns the first provider's non-empty bar series.
func (c *Chain) Kline(ctx context.Context, symbol string, scaleMin int, day time.Time) (models.BarSeries, error) {
	var lastErr error
	for _, p := range c.providers {
		bars, err := p.Kline(ctx, symbol, scaleMin, day)
		if err == nil && len(bars) > 0 {
			return bars, nil
		}
		if err != nil {
			lastErr = err
			c.logger.Warn().Err(err).Str("provider", p.Name()).Str("symbol", symbol).Msg("kline fetch failed, trying next")
		}
	}
	return nil, errors.NewProviderError("chain", symbol, "all providers failed for kline", lastErr)
}

// Daily returns the first provider's non-empty daily bar series.
func (c *Chain) Daily(ctx context.Context, symbol string, limit int) (models.BarSeries, error) {
	var lastErr error
	for _, p := range c.providers {
		bars, err := p.Daily(ctx, symbol, limit)
		if err == nil && len(bars) > 0 {
			return bars, nil
		}
		if err != nil {
			lastErr = err
			c.logger.Warn().Err(err).Str("provider", p.Name()).Str("symbol", symbol).Msg("daily fetch failed, trying next")
		}
	}
	return nil, errors.NewProviderError("chain", symbol, "all providers failed for daily bars", lastErr)
}

// httpGet performs a GET with the given headers and returns the body.
func httpGet(ctx context.Context, client *http.Client, url string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.Wrapf(errors.ErrProviderFailed, "status %d from %s", resp.StatusCode, url)
	}
	return io.ReadAll(resp.Body)
}
