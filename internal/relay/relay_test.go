package relay

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantnexus/marketstream/internal/model"
	"github.com/quantnexus/marketstream/internal/router"
	"github.com/quantnexus/marketstream/internal/subscription"
)

type published struct {
	subject string
	data    []byte
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (f *fakePublisher) Publish(subject string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, published{subject: subject, data: append([]byte(nil), data...)})
	return nil
}

func (f *fakePublisher) snapshot() []published {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]published(nil), f.msgs...)
}

func tickerMessage(symbol string) model.MarketMessage {
	return model.MarketMessage{
		Type:      model.ChannelTicker,
		Symbol:    symbol,
		Data:      json.RawMessage(`{"symbol":"` + symbol + `","price":"51000"}`),
		Timestamp: 1700000000000,
	}
}

func TestSubject(t *testing.T) {
	tests := []struct {
		prefix, typ, symbol string
		want                string
	}{
		{"marketdata", "ticker", "BTCUSDT", "marketdata.ticker.BTCUSDT"},
		{"md", "kline", "", "md.kline.all"},
		{"md", "trade", "BTC.USDT", "md.trade.BTC_USDT"},
		{"md", "orderbook", "a b*>", "md.orderbook.a_b__"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Subject(tt.prefix, tt.typ, tt.symbol))
	}
}

func TestRelay_PublishesInOrder(t *testing.T) {
	pub := &fakePublisher{}
	r := New(Config{SubjectPrefix: "md"}, pub, nil)
	require.NoError(t, r.Start())

	r.Handle(tickerMessage("BTCUSDT"))
	r.Handle(tickerMessage("ETHUSDT"))

	require.Eventually(t, func() bool { return r.Stats().Published == 2 }, time.Second, 5*time.Millisecond)
	require.NoError(t, r.Close(time.Second))

	msgs := pub.snapshot()
	require.Len(t, msgs, 2)
	assert.Equal(t, "md.ticker.BTCUSDT", msgs[0].subject)
	assert.Equal(t, "md.ticker.ETHUSDT", msgs[1].subject)

	var got model.MarketMessage
	require.NoError(t, json.Unmarshal(msgs[0].data, &got))
	assert.Equal(t, tickerMessage("BTCUSDT"), got)
}

func TestRelay_CloseFlushesQueue(t *testing.T) {
	pub := &fakePublisher{}
	r := New(Config{}, pub, nil)

	for i := 0; i < 50; i++ {
		r.Handle(tickerMessage("BTCUSDT"))
	}
	require.NoError(t, r.Start())
	require.NoError(t, r.Close(time.Second))

	assert.Len(t, pub.snapshot(), 50)
	assert.Equal(t, int64(50), r.Stats().Published)
	assert.Zero(t, r.Stats().Queue.Depth)
}

func TestRelay_PublishErrorsCounted(t *testing.T) {
	pub := &fakePublisher{err: errors.New("nats: connection closed")}
	r := New(Config{}, pub, nil)
	require.NoError(t, r.Start())

	r.Handle(tickerMessage("BTCUSDT"))
	require.Eventually(t, func() bool { return r.Stats().Failed == 1 }, time.Second, 5*time.Millisecond)
	assert.Zero(t, r.Stats().Published)
	require.NoError(t, r.Close(time.Second))
}

func TestRelay_Lifecycle(t *testing.T) {
	r := New(Config{}, &fakePublisher{}, nil)

	require.NoError(t, r.Close(time.Second), "close before start")
	require.NoError(t, r.Close(time.Second), "second close")
	assert.ErrorIs(t, r.Start(), ErrClosed)

	r.Handle(tickerMessage("BTCUSDT"))
	assert.Zero(t, r.Stats().Queue.Enqueued)
}

func TestRelay_RouterObserver(t *testing.T) {
	pub := &fakePublisher{}
	r := New(Config{SubjectPrefix: "marketdata"}, pub, nil)
	require.NoError(t, r.Start())
	defer r.Close(time.Second)

	rt := router.NewRouter(router.DefaultConfig(), subscription.NewRegistry(), nil)
	unsubscribe := rt.OnMessage(r.Handle)

	rt.Route(tickerMessage("BTCUSDT"))
	require.Eventually(t, func() bool { return len(pub.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "marketdata.ticker.BTCUSDT", pub.snapshot()[0].subject)

	unsubscribe()
	rt.Route(tickerMessage("ETHUSDT"))
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, pub.snapshot(), 1)
}
