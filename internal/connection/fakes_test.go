package connection

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/quantnexus/marketstream/internal/model"
)

// fakeClient is an in-memory transport.
type fakeClient struct {
	cfg      ClientConfig
	dialErr  error
	gate     chan struct{} // when set, Connect blocks until closed
	messages chan TimestampedMessage
	errors   chan error

	mu        sync.Mutex
	connected bool
	closed    bool
	sent      [][]byte
}

func (c *fakeClient) Connect(ctx context.Context) error {
	if c.gate != nil {
		select {
		case <-c.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if c.dialErr != nil {
		return c.dialErr
	}
	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()
	return nil
}

func (c *fakeClient) Close() error {
	c.mu.Lock()
	c.closed = true
	c.connected = false
	c.mu.Unlock()
	return nil
}

func (c *fakeClient) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return ErrNotConnected
	}
	c.sent = append(c.sent, append([]byte(nil), data...))
	return nil
}

func (c *fakeClient) Messages() <-chan TimestampedMessage { return c.messages }
func (c *fakeClient) Errors() <-chan error                { return c.errors }

func (c *fakeClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *fakeClient) push(raw string) {
	c.messages <- TimestampedMessage{Data: []byte(raw), ReceivedAt: time.Now()}
}

func (c *fakeClient) sentControl() []model.ControlMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.ControlMessage, 0, len(c.sent))
	for _, raw := range c.sent {
		var m model.ControlMessage
		_ = json.Unmarshal(raw, &m)
		out = append(out, m)
	}
	return out
}

func (c *fakeClient) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// fakeDialer hands out fakeClients. fail decides per dial whether to fail.
type fakeDialer struct {
	mu      sync.Mutex
	clients []*fakeClient
	fail    func(n int) error
	gate    chan struct{}
}

func (d *fakeDialer) factory(cfg ClientConfig, _ *zap.Logger) Client {
	d.mu.Lock()
	defer d.mu.Unlock()
	c := &fakeClient{
		cfg:      cfg,
		gate:     d.gate,
		messages: make(chan TimestampedMessage, 16),
		errors:   make(chan error, 1),
	}
	if d.fail != nil {
		c.dialErr = d.fail(len(d.clients))
	}
	d.clients = append(d.clients, c)
	return c
}

func (d *fakeDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.clients)
}

func (d *fakeDialer) last() *fakeClient {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.clients) == 0 {
		return nil
	}
	return d.clients[len(d.clients)-1]
}

// fakeTimer records a scheduled callback for manual firing.
type fakeTimer struct {
	clock   *fakeClock
	delay   time.Duration
	fn      func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// fakeClock collects timers instead of running them.
type fakeClock struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, delay: d, fn: f}
	c.timers = append(c.timers, t)
	return t
}

// pending returns timers neither stopped nor fired.
func (c *fakeClock) pending() []*fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			out = append(out, t)
		}
	}
	return out
}

func (c *fakeClock) delays() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]time.Duration, len(c.timers))
	for i, t := range c.timers {
		out[i] = t.delay
	}
	return out
}

// fireNext runs the single pending timer. It reports false if none is armed.
func (c *fakeClock) fireNext() bool {
	p := c.pending()
	if len(p) == 0 {
		return false
	}
	t := p[len(p)-1]
	c.mu.Lock()
	t.fired = true
	c.mu.Unlock()
	t.fn()
	return true
}

// recordingHandler captures routed messages.
type recordingHandler struct {
	mu   sync.Mutex
	msgs []model.MarketMessage
}

func (h *recordingHandler) Route(msg model.MarketMessage) {
	h.mu.Lock()
	h.msgs = append(h.msgs, msg)
	h.mu.Unlock()
}

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.msgs)
}
