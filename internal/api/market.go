package api

import (
	"context"
	"net/url"
	"strconv"

	"github.com/quantnexus/marketstream/internal/model"
)

const marketDataPrefix = "/api/v1/market-data"

// Default page sizes used when callers pass a non-positive limit.
const (
	DefaultOrderBookLimit = 20
	DefaultTradeLimit     = 50
	DefaultKlineLimit     = 500
)

// GetSymbols returns exchange symbol metadata.
func (c *Client) GetSymbols(ctx context.Context) ([]model.Symbol, error) {
	var out []model.Symbol
	if err := c.get(ctx, marketDataPrefix+"/symbols", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetTickers returns the 24h ticker of every symbol.
func (c *Client) GetTickers(ctx context.Context) ([]model.Ticker, error) {
	var out []model.Ticker
	if err := c.get(ctx, marketDataPrefix+"/tickers", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetTicker returns one symbol's ticker.
func (c *Client) GetTicker(ctx context.Context, symbol string) (*model.Ticker, error) {
	var out model.Ticker
	if err := c.get(ctx, marketDataPrefix+"/ticker/"+url.PathEscape(symbol), nil, &out); err != nil {
		return nil, err
	}
	if out.Symbol == "" {
		out.Symbol = symbol
	}
	return &out, nil
}

// GetOrderBook returns a depth snapshot with up to limit levels per side.
func (c *Client) GetOrderBook(ctx context.Context, symbol string, limit int) (*model.OrderBook, error) {
	if limit <= 0 {
		limit = DefaultOrderBookLimit
	}
	query := url.Values{"limit": {strconv.Itoa(limit)}}

	var out model.OrderBook
	if err := c.get(ctx, marketDataPrefix+"/orderbook/"+url.PathEscape(symbol), query, &out); err != nil {
		return nil, err
	}
	if out.Symbol == "" {
		out.Symbol = symbol
	}
	return &out, nil
}

// GetTrades returns recent trades.
func (c *Client) GetTrades(ctx context.Context, symbol string, limit int) ([]model.Trade, error) {
	if limit <= 0 {
		limit = DefaultTradeLimit
	}
	query := url.Values{"limit": {strconv.Itoa(limit)}}

	var out []model.Trade
	if err := c.get(ctx, marketDataPrefix+"/trades/"+url.PathEscape(symbol), query, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetKlines returns candles for interval (e.g. "1m", "1h").
func (c *Client) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]model.Kline, error) {
	if limit <= 0 {
		limit = DefaultKlineLimit
	}
	query := url.Values{
		"interval": {interval},
		"limit":    {strconv.Itoa(limit)},
	}

	var out []model.Kline
	if err := c.get(ctx, marketDataPrefix+"/klines/"+url.PathEscape(symbol), query, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetHealth returns the market data service health.
func (c *Client) GetHealth(ctx context.Context) (*HealthStatus, error) {
	var out HealthStatus
	if err := c.get(ctx, marketDataPrefix+"/health", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetGatewayHealth returns the gateway's own health.
func (c *Client) GetGatewayHealth(ctx context.Context) (*HealthStatus, error) {
	var out HealthStatus
	if err := c.get(ctx, "/health", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
