package router

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/quantnexus/marketstream/internal/model"
)

// MarketStats summarises the ticker cache: total 24h quote volume and how
// many symbols are up, down or flat.
func (c *Cache) MarketStats() model.MarketStats {
	stats := model.MarketStats{TotalVolume24h: decimal.Zero}
	for _, t := range c.Tickers() {
		stats.Symbols++
		stats.TotalVolume24h = stats.TotalVolume24h.Add(t.QuoteVolume)
		switch t.PriceChangePercent.Sign() {
		case 1:
			stats.Gainers++
		case -1:
			stats.Losers++
		default:
			stats.Unchanged++
		}
	}
	return stats
}

// TopGainers returns up to n tickers with the largest positive change.
func (c *Cache) TopGainers(n int) []model.Ticker {
	return c.topTickers(n,
		func(t model.Ticker) bool { return t.PriceChangePercent.IsPositive() },
		func(a, b model.Ticker) bool { return a.PriceChangePercent.GreaterThan(b.PriceChangePercent) },
	)
}

// TopLosers returns up to n tickers with the largest negative change.
func (c *Cache) TopLosers(n int) []model.Ticker {
	return c.topTickers(n,
		func(t model.Ticker) bool { return t.PriceChangePercent.IsNegative() },
		func(a, b model.Ticker) bool { return a.PriceChangePercent.LessThan(b.PriceChangePercent) },
	)
}

// TopVolume returns up to n tickers by quote volume.
func (c *Cache) TopVolume(n int) []model.Ticker {
	return c.topTickers(n,
		func(model.Ticker) bool { return true },
		func(a, b model.Ticker) bool { return a.QuoteVolume.GreaterThan(b.QuoteVolume) },
	)
}

func (c *Cache) topTickers(n int, keep func(model.Ticker) bool, less func(a, b model.Ticker) bool) []model.Ticker {
	if n <= 0 {
		return nil
	}
	var out []model.Ticker
	for _, t := range c.Tickers() {
		if keep(t) {
			out = append(out, t)
		}
	}
	// Tickers() is symbol-sorted, so ties stay in symbol order.
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	if len(out) > n {
		out = out[:n]
	}
	return out
}
