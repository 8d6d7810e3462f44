package api

import (
	"context"
	"net/url"
	"strconv"

	"github.com/shopspring/decimal"
)

const tradingPrefix = "/api/v1/trading-engine"

// DefaultFillLimit is the trade history page size used for non-positive limits.
const DefaultFillLimit = 50

// Order statuses reported by the trading engine.
const (
	OrderStatusNew             = "NEW"
	OrderStatusPartiallyFilled = "PARTIALLY_FILLED"
	OrderStatusFilled          = "FILLED"
	OrderStatusCanceled        = "CANCELED"
	OrderStatusRejected        = "REJECTED"
	OrderStatusExpired         = "EXPIRED"
)

// Balance is one asset's holdings.
type Balance struct {
	Asset    string          `json:"asset"`
	Free     decimal.Decimal `json:"free"`
	Locked   decimal.Decimal `json:"locked"`
	Total    decimal.Decimal `json:"total"`
	USDValue decimal.Decimal `json:"usdValue"`
}

// Account is the margin summary of the authenticated account.
type Account struct {
	TotalWalletBalance          decimal.Decimal `json:"totalWalletBalance"`
	TotalUnrealizedProfit       decimal.Decimal `json:"totalUnrealizedProfit"`
	TotalMarginBalance          decimal.Decimal `json:"totalMarginBalance"`
	TotalPositionInitialMargin  decimal.Decimal `json:"totalPositionInitialMargin"`
	TotalOpenOrderInitialMargin decimal.Decimal `json:"totalOpenOrderInitialMargin"`
	TotalCrossWalletBalance     decimal.Decimal `json:"totalCrossWalletBalance"`
	AvailableBalance            decimal.Decimal `json:"availableBalance"`
	MaxWithdrawAmount           decimal.Decimal `json:"maxWithdrawAmount"`
	MarginRatio                 decimal.Decimal `json:"marginRatio"`
	Balances                    []Balance       `json:"balances"`
}

// Order as held by the trading engine.
type Order struct {
	ID                  string          `json:"id"`
	ClientOrderID       string          `json:"clientOrderId"`
	Symbol              string          `json:"symbol"`
	Side                string          `json:"side"`
	Type                string          `json:"type"`
	Quantity            decimal.Decimal `json:"quantity"`
	Price               decimal.Decimal `json:"price"`
	StopPrice           decimal.Decimal `json:"stopPrice"`
	Status              string          `json:"status"`
	TimeInForce         string          `json:"timeInForce"`
	ExecutedQty         decimal.Decimal `json:"executedQty"`
	CummulativeQuoteQty decimal.Decimal `json:"cummulativeQuoteQty"`
	AvgPrice            decimal.Decimal `json:"avgPrice"`
	Commission          decimal.Decimal `json:"commission"`
	CommissionAsset     string          `json:"commissionAsset"`
	Time                int64           `json:"time"`
	UpdateTime          int64           `json:"updateTime"`
	IsWorking           bool            `json:"isWorking"`
}

// IsOpen reports whether the order can still fill.
func (o Order) IsOpen() bool {
	return o.Status == OrderStatusNew || o.Status == OrderStatusPartiallyFilled
}

// Position is an open exposure. Size is signed; zero means flat.
type Position struct {
	ID               string          `json:"id"`
	Symbol           string          `json:"symbol"`
	Side             string          `json:"side"`
	Size             decimal.Decimal `json:"size"`
	EntryPrice       decimal.Decimal `json:"entryPrice"`
	MarkPrice        decimal.Decimal `json:"markPrice"`
	UnrealizedPnl    decimal.Decimal `json:"unrealizedPnl"`
	RealizedPnl      decimal.Decimal `json:"realizedPnl"`
	Margin           decimal.Decimal `json:"margin"`
	MarginRatio      decimal.Decimal `json:"marginRatio"`
	LiquidationPrice decimal.Decimal `json:"liquidationPrice"`
	Leverage         decimal.Decimal `json:"leverage"`
	Timestamp        int64           `json:"timestamp"`
}

// Fill is one execution from the account's trade history.
type Fill struct {
	ID              string          `json:"id"`
	OrderID         string          `json:"orderId"`
	Symbol          string          `json:"symbol"`
	Side            string          `json:"side"`
	Quantity        decimal.Decimal `json:"quantity"`
	Price           decimal.Decimal `json:"price"`
	Commission      decimal.Decimal `json:"commission"`
	CommissionAsset string          `json:"commissionAsset"`
	Time            int64           `json:"time"`
	IsBuyer         bool            `json:"isBuyer"`
	IsMaker         bool            `json:"isMaker"`
	RealizedPnl     decimal.Decimal `json:"realizedPnl"`
}

// OrderFilter narrows GetOrders. Zero fields are not sent.
type OrderFilter struct {
	Symbol string
	Status string
	Limit  int
}

func (f OrderFilter) query() url.Values {
	q := url.Values{}
	if f.Symbol != "" {
		q.Set("symbol", f.Symbol)
	}
	if f.Status != "" {
		q.Set("status", f.Status)
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	if len(q) == 0 {
		return nil
	}
	return q
}

// GetAccount returns the account summary.
func (c *Client) GetAccount(ctx context.Context) (*Account, error) {
	var out Account
	if err := c.get(ctx, tradingPrefix+"/account", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetBalances returns per-asset balances.
func (c *Client) GetBalances(ctx context.Context) ([]Balance, error) {
	var out []Balance
	if err := c.get(ctx, tradingPrefix+"/balances", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetOrders lists orders matching filter.
func (c *Client) GetOrders(ctx context.Context, filter OrderFilter) ([]Order, error) {
	var out []Order
	if err := c.get(ctx, tradingPrefix+"/orders", filter.query(), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetOrder returns a single order by id.
func (c *Client) GetOrder(ctx context.Context, id string) (*Order, error) {
	var out Order
	if err := c.get(ctx, tradingPrefix+"/orders/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetPositions returns the account's positions, including flat ones.
func (c *Client) GetPositions(ctx context.Context) ([]Position, error) {
	var out []Position
	if err := c.get(ctx, tradingPrefix+"/positions", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetTradeHistory returns recent fills, optionally for one symbol.
func (c *Client) GetTradeHistory(ctx context.Context, symbol string, limit int) ([]Fill, error) {
	if limit <= 0 {
		limit = DefaultFillLimit
	}
	query := url.Values{"limit": {strconv.Itoa(limit)}}
	if symbol != "" {
		query.Set("symbol", symbol)
	}

	var out []Fill
	if err := c.get(ctx, tradingPrefix+"/trades", query, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetTradingHealth returns the trading engine's health.
func (c *Client) GetTradingHealth(ctx context.Context) (*HealthStatus, error) {
	var out HealthStatus
	if err := c.get(ctx, tradingPrefix+"/health", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// OpenOrders returns the orders that can still fill.
func OpenOrders(orders []Order) []Order {
	var out []Order
	for _, o := range orders {
		if o.IsOpen() {
			out = append(out, o)
		}
	}
	return out
}

// ActivePositions drops flat positions.
func ActivePositions(positions []Position) []Position {
	var out []Position
	for _, p := range positions {
		if !p.Size.IsZero() {
			out = append(out, p)
		}
	}
	return out
}

// TotalUnrealizedPnl sums unrealized PnL across positions.
func TotalUnrealizedPnl(positions []Position) decimal.Decimal {
	sum := decimal.Zero
	for _, p := range positions {
		sum = sum.Add(p.UnrealizedPnl)
	}
	return sum
}
