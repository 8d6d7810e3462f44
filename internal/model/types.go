package model

import "github.com/shopspring/decimal"

// Symbol is exchange metadata for a tradable pair.
type Symbol struct {
	Symbol     string          `json:"symbol"`
	BaseAsset  string          `json:"baseAsset"`
	QuoteAsset string          `json:"quoteAsset"`
	Status     string          `json:"status"`
	MinPrice   decimal.Decimal `json:"minPrice"`
	MaxPrice   decimal.Decimal `json:"maxPrice"`
	TickSize   decimal.Decimal `json:"tickSize"`
	MinQty     decimal.Decimal `json:"minQty"`
	MaxQty     decimal.Decimal `json:"maxQty"`
	StepSize   decimal.Decimal `json:"stepSize"`
}

// Ticker is a rolling 24h price/volume snapshot for one symbol.
type Ticker struct {
	Symbol             string          `json:"symbol"`
	Price              decimal.Decimal `json:"price"`
	LastPrice          decimal.Decimal `json:"lastPrice"`
	PriceChange        decimal.Decimal `json:"priceChange"`
	PriceChangePercent decimal.Decimal `json:"priceChangePercent"`
	Volume             decimal.Decimal `json:"volume"`
	QuoteVolume        decimal.Decimal `json:"quoteVolume"`
	High               decimal.Decimal `json:"high"`
	Low                decimal.Decimal `json:"low"`
	Open               decimal.Decimal `json:"open"`
	Close              decimal.Decimal `json:"close"`
	Count              int64           `json:"count"`
	Timestamp          int64           `json:"timestamp"`
}

// PriceLevel is one side entry of an order book.
type PriceLevel struct {
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
}

// OrderBook is a depth snapshot. Bids are sorted best (highest) first,
// asks best (lowest) first.
type OrderBook struct {
	Symbol       string       `json:"symbol"`
	Bids         []PriceLevel `json:"bids"`
	Asks         []PriceLevel `json:"asks"`
	LastUpdateID int64        `json:"lastUpdateId"`
	Timestamp    int64        `json:"timestamp"`
}

// BestBid returns the top bid level, if any.
func (ob OrderBook) BestBid() (PriceLevel, bool) {
	if len(ob.Bids) == 0 {
		return PriceLevel{}, false
	}
	return ob.Bids[0], true
}

// BestAsk returns the top ask level, if any.
func (ob OrderBook) BestAsk() (PriceLevel, bool) {
	if len(ob.Asks) == 0 {
		return PriceLevel{}, false
	}
	return ob.Asks[0], true
}

// Spread returns best ask minus best bid. ok is false when either side is empty.
func (ob OrderBook) Spread() (spread decimal.Decimal, ok bool) {
	bid, okBid := ob.BestBid()
	ask, okAsk := ob.BestAsk()
	if !okBid || !okAsk {
		return decimal.Zero, false
	}
	return ask.Price.Sub(bid.Price), true
}

// Clone returns a deep copy so callers cannot alias cached slices.
func (ob OrderBook) Clone() OrderBook {
	out := ob
	out.Bids = append([]PriceLevel(nil), ob.Bids...)
	out.Asks = append([]PriceLevel(nil), ob.Asks...)
	return out
}

// Trade sides.
const (
	SideBuy  = "buy"
	SideSell = "sell"
)

// Trade is a single executed trade.
type Trade struct {
	ID           int64           `json:"id"`
	Symbol       string          `json:"symbol"`
	Price        decimal.Decimal `json:"price"`
	Quantity     decimal.Decimal `json:"quantity"`
	Time         int64           `json:"time"`
	IsBuyerMaker bool            `json:"isBuyerMaker"`
	Side         string          `json:"side,omitempty"`
}

// TakerSide returns Side, deriving it from IsBuyerMaker when the gateway omitted it.
func (t Trade) TakerSide() string {
	if t.Side != "" {
		return t.Side
	}
	if t.IsBuyerMaker {
		return SideSell
	}
	return SideBuy
}

// Kline is one candlestick.
type Kline struct {
	Symbol      string          `json:"symbol"`
	Interval    string          `json:"interval"`
	OpenTime    int64           `json:"openTime"`
	CloseTime   int64           `json:"closeTime"`
	Open        decimal.Decimal `json:"open"`
	High        decimal.Decimal `json:"high"`
	Low         decimal.Decimal `json:"low"`
	Close       decimal.Decimal `json:"close"`
	Volume      decimal.Decimal `json:"volume"`
	QuoteVolume decimal.Decimal `json:"quoteVolume"`
	Trades      int64           `json:"trades"`
}

// MarketStats aggregates the ticker cache.
type MarketStats struct {
	TotalVolume24h decimal.Decimal `json:"totalVolume24h"`
	Gainers        int             `json:"gainers"`
	Losers         int             `json:"losers"`
	Unchanged      int             `json:"unchanged"`
	Symbols        int             `json:"symbols"`
}
