package api

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantnexus/marketstream/internal/auth"
)

func TestTradingEndpoints(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer acct-token", r.Header.Get("Authorization"))
		q := r.URL.Query()
		switch r.URL.Path {
		case "/api/v1/trading-engine/account":
			w.Write([]byte(`{"success":true,"data":{"totalWalletBalance":"1000.5","availableBalance":750,"marginRatio":"0.12","balances":[{"asset":"USDT","free":"750","locked":"250.5","total":"1000.5"}]}}`))
		case "/api/v1/trading-engine/balances":
			w.Write([]byte(`[{"asset":"BTC","free":"0.5","locked":"0","total":"0.5","usdValue":"25000"}]`))
		case "/api/v1/trading-engine/orders":
			assert.Equal(t, "BTCUSDT", q.Get("symbol"))
			assert.Equal(t, "NEW", q.Get("status"))
			assert.Empty(t, q.Get("limit"))
			w.Write([]byte(`[{"id":"o-1","symbol":"BTCUSDT","side":"BUY","type":"LIMIT","quantity":"0.1","price":"49000","status":"NEW","timeInForce":"GTC"}]`))
		case "/api/v1/trading-engine/orders/o 2":
			w.Write([]byte(`{"id":"o 2","status":"FILLED","executedQty":"0.2","avgPrice":"50010"}`))
		case "/api/v1/trading-engine/positions":
			w.Write([]byte(`[{"id":"p-1","symbol":"BTCUSDT","side":"LONG","size":"0.2","unrealizedPnl":"12.5"},{"id":"p-2","symbol":"ETHUSDT","side":"SHORT","size":"0","unrealizedPnl":"-2"}]`))
		case "/api/v1/trading-engine/trades":
			assert.Equal(t, "50", q.Get("limit"))
			assert.Equal(t, "ETHUSDT", q.Get("symbol"))
			w.Write([]byte(`[{"id":"f-1","orderId":"o-9","symbol":"ETHUSDT","side":"SELL","quantity":"1","price":"3000","isMaker":true}]`))
		case "/api/v1/trading-engine/health":
			w.Write([]byte(`{"status":"healthy","service":"trading-engine"}`))
		default:
			http.NotFound(w, r)
		}
	})

	c := NewClient(server.URL, auth.StaticProvider("acct-token"))
	ctx := context.Background()

	account, err := c.GetAccount(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1000.5", account.TotalWalletBalance.String())
	assert.True(t, account.AvailableBalance.Equal(decimal.NewFromInt(750)))
	require.Len(t, account.Balances, 1)
	assert.Equal(t, "250.5", account.Balances[0].Locked.String())

	balances, err := c.GetBalances(ctx)
	require.NoError(t, err)
	require.Len(t, balances, 1)
	assert.Equal(t, "BTC", balances[0].Asset)
	assert.Equal(t, "25000", balances[0].USDValue.String())

	orders, err := c.GetOrders(ctx, OrderFilter{Symbol: "BTCUSDT", Status: OrderStatusNew})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.True(t, orders[0].IsOpen())
	assert.Equal(t, "49000", orders[0].Price.String())

	order, err := c.GetOrder(ctx, "o 2")
	require.NoError(t, err)
	assert.False(t, order.IsOpen())
	assert.Equal(t, "0.2", order.ExecutedQty.String())

	positions, err := c.GetPositions(ctx)
	require.NoError(t, err)
	require.Len(t, positions, 2)
	active := ActivePositions(positions)
	require.Len(t, active, 1)
	assert.Equal(t, "p-1", active[0].ID)
	assert.Equal(t, "10.5", TotalUnrealizedPnl(positions).String())

	fills, err := c.GetTradeHistory(ctx, "ETHUSDT", 0)
	require.NoError(t, err)
	require.Len(t, fills, 1)
	assert.Equal(t, "o-9", fills[0].OrderID)
	assert.True(t, fills[0].IsMaker)

	health, err := c.GetTradingHealth(ctx)
	require.NoError(t, err)
	assert.True(t, health.Healthy())
}

func TestTradingEndpoints_RetryAndErrors(t *testing.T) {
	var attempts atomic.Int32
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/trading-engine/positions":
			if attempts.Add(1) == 1 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			w.Write([]byte(`[]`))
		default:
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(`{"success":false,"error":"trading disabled"}`))
		}
	})

	c := NewClient(server.URL, auth.StaticProvider("k"), WithRetries(2, 10*time.Millisecond))
	ctx := context.Background()

	positions, err := c.GetPositions(ctx)
	require.NoError(t, err)
	assert.Empty(t, positions)
	assert.Equal(t, int32(2), attempts.Load())

	_, err = c.GetAccount(ctx)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
}

func TestOrderFilterQuery(t *testing.T) {
	assert.Nil(t, OrderFilter{}.query())

	q := OrderFilter{Status: OrderStatusFilled, Limit: 25}.query()
	assert.Equal(t, "FILLED", q.Get("status"))
	assert.Equal(t, "25", q.Get("limit"))
	assert.False(t, q.Has("symbol"))
}

func TestOpenOrders(t *testing.T) {
	orders := []Order{
		{ID: "a", Status: OrderStatusNew},
		{ID: "b", Status: OrderStatusFilled},
		{ID: "c", Status: OrderStatusPartiallyFilled},
		{ID: "d", Status: OrderStatusCanceled},
	}

	open := OpenOrders(orders)
	require.Len(t, open, 2)
	assert.Equal(t, "a", open[0].ID)
	assert.Equal(t, "c", open[1].ID)
	assert.Empty(t, OpenOrders(nil))
}
