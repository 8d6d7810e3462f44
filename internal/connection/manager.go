package connection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/quantnexus/marketstream/internal/auth"
	"github.com/quantnexus/marketstream/internal/model"
	"github.com/quantnexus/marketstream/internal/notify"
	"github.com/quantnexus/marketstream/internal/subscription"
)

// Handler receives every decoded stream message.
type Handler interface {
	Route(msg model.MarketMessage)
}

// Timer is the part of *time.Timer the manager uses.
type Timer interface {
	Stop() bool
}

// AfterFunc runs f after d. Defaults to time.AfterFunc.
type AfterFunc func(d time.Duration, f func()) Timer

// ManagerOption customises a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithClientFactory replaces the gorilla transport.
func WithClientFactory(f ClientFactory) ManagerOption {
	return func(m *Manager) {
		if f != nil {
			m.newClient = f
		}
	}
}

// WithAfterFunc replaces the reconnect timer source.
func WithAfterFunc(f AfterFunc) ManagerOption {
	return func(m *Manager) {
		if f != nil {
			m.afterFunc = f
		}
	}
}

// session is one live transport. Its id is the manager epoch it was opened in.
type session struct {
	id     uint64
	client Client
	done   chan struct{}
	once   sync.Once
}

func (s *session) stop() {
	s.once.Do(func() {
		close(s.done)
		_ = s.client.Close()
	})
}

// Manager owns the gateway stream connection: state, reconnection and
// subscription replay.
//
// All state lives under mu. epoch advances on every dial, drop and
// Disconnect, so events from a superseded transport are ignored. At most one
// reconnect timer is armed; timerSeq invalidates a timer that already fired.
type Manager struct {
	cfg       ManagerConfig
	auth      auth.Provider
	registry  *subscription.Registry
	handler   Handler
	logger    *zap.Logger
	newClient ClientFactory
	afterFunc AfterFunc

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	state     State
	lastError string
	attempts  int
	endpoint  string
	epoch     uint64
	session   *session
	timer     Timer
	timerSeq  uint64
	closed    bool

	states notify.Hub[State]

	dispatching atomic.Int32

	connects    atomic.Int64
	received    atomic.Int64
	parseErrors atomic.Int64
	sent        atomic.Int64
	dropped     atomic.Int64
}

// NewManager creates a Connection Manager. Messages are decoded and passed to
// handler; registry holds the subscriptions replayed on every open.
func NewManager(cfg ManagerConfig, provider auth.Provider, registry *subscription.Registry, handler Handler, opts ...ManagerOption) *Manager {
	if registry == nil {
		registry = subscription.NewRegistry()
	}

	m := &Manager{
		cfg:       cfg,
		auth:      provider,
		registry:  registry,
		handler:   handler,
		logger:    zap.NewNop(),
		newClient: NewClient,
		afterFunc: func(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) },
		endpoint:  cfg.URL,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With(zap.String("component", "connection"))
	m.ctx, m.cancel = context.WithCancel(context.Background())

	return m
}

// Connect opens the stream to endpoint (the configured URL when empty). It is
// a no-op while connecting or connected. Without a credential it moves to the
// error state and returns ErrAuthMissing without dialing or scheduling a
// retry. A failed dial is treated like a dropped connection and schedules a
// reconnect if budget remains.
func (m *Manager) Connect(ctx context.Context, endpoint string) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrManagerClosed
	}
	if m.state == StateConnecting || m.state == StateConnected {
		m.mu.Unlock()
		return nil
	}
	if endpoint != "" {
		m.endpoint = endpoint
	}
	endpoint = m.endpoint

	token, ok := m.credential()
	if !ok {
		m.lastError = "authentication required: no auth token available"
		states := m.transitionLocked(StateError, nil)
		m.mu.Unlock()

		m.logger.Warn("cannot connect without auth token")
		m.notify(states)
		return ErrAuthMissing
	}

	target, err := streamURL(endpoint, m.cfg.StreamPath, token)
	if err != nil {
		m.lastError = err.Error()
		states := m.transitionLocked(StateError, nil)
		m.mu.Unlock()

		m.notify(states)
		return err
	}

	m.epoch++
	epoch := m.epoch
	states := m.transitionLocked(StateConnecting, nil)
	attempt := m.attempts
	m.mu.Unlock()
	m.notify(states)

	m.logger.Info("connecting", zap.String("endpoint", endpoint), zap.Int("attempt", attempt))

	clientCfg := m.cfg.Client
	clientCfg.URL = target
	c := m.newClient(clientCfg, m.logger)

	if err := c.Connect(ctx); err != nil {
		m.logger.Warn("dial failed", zap.String("endpoint", endpoint), zap.Error(err))
		m.handleDrop(epoch, err)
		return fmt.Errorf("connect %s: %w", endpoint, err)
	}

	return m.opened(epoch, c)
}

// opened installs a freshly dialed transport and replays the registry.
func (m *Manager) opened(epoch uint64, c Client) error {
	m.mu.Lock()
	if m.closed || m.epoch != epoch {
		m.mu.Unlock()
		_ = c.Close()
		m.logger.Debug("discarding superseded connection")
		return fmt.Errorf("connection superseded: %w", ErrNotConnected)
	}

	sess := &session{id: epoch, client: c, done: make(chan struct{})}
	m.session = sess
	m.attempts = 0
	m.lastError = ""
	states := m.transitionLocked(StateConnected, nil)
	subs := m.registry.Entries()
	m.wg.Add(1)
	m.mu.Unlock()

	m.connects.Add(1)
	go m.readLoop(sess)

	m.logger.Info("connected", zap.Int("subscriptions", len(subs)))
	m.notify(states)

	for _, sub := range subs {
		_ = m.SendMessage(model.ControlMessage{
			Action:  model.ActionSubscribe,
			Channel: sub.Channel,
			Symbol:  sub.Symbol,
		})
	}

	return nil
}

// Disconnect is a hard reset: it cancels any pending reconnect, closes the
// socket, clears the registry and resets the attempt counter.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.stopTimerLocked()
	m.epoch++
	sess := m.session
	m.session = nil
	cleared := m.registry.Clear()
	m.attempts = 0
	states := m.transitionLocked(StateDisconnected, nil)
	m.mu.Unlock()

	if sess != nil {
		sess.stop()
	}

	m.logger.Info("disconnected", zap.Int("subscriptions_cleared", cleared))
	m.notify(states)
}

// Reconnect performs Disconnect and then connects again after
// ManualReconnectDelay, using the same timer slot as automatic reconnects.
func (m *Manager) Reconnect() error {
	m.Disconnect()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrManagerClosed
	}
	m.armLocked(m.cfg.ManualReconnectDelay)

	m.logger.Info("manual reconnect scheduled", zap.Duration("delay", m.cfg.ManualReconnectDelay))
	return nil
}

// Subscribe records the subscription, replacing any callback under the same
// key, and sends a subscribe message if the stream is open.
func (m *Manager) Subscribe(channel, symbol string, cb subscription.Callback) error {
	replaced := m.registry.Put(subscription.Subscription{Channel: channel, Symbol: symbol, Callback: cb})
	m.logger.Debug("subscribe",
		zap.String("channel", channel),
		zap.String("symbol", symbol),
		zap.Bool("replaced", replaced),
	)

	if !m.IsConnected() {
		return nil
	}
	return m.SendMessage(model.ControlMessage{Action: model.ActionSubscribe, Channel: channel, Symbol: symbol})
}

// Unsubscribe removes the subscription and tells the gateway if open.
func (m *Manager) Unsubscribe(channel, symbol string) error {
	m.registry.Remove(channel, symbol)

	if !m.IsConnected() {
		return nil
	}
	return m.SendMessage(model.ControlMessage{Action: model.ActionUnsubscribe, Channel: channel, Symbol: symbol})
}

// UnsubscribeAll clears the registry and, if open, sends a single
// unsubscribe_all.
func (m *Manager) UnsubscribeAll() error {
	m.registry.Clear()

	if !m.IsConnected() {
		return nil
	}
	return m.SendMessage(model.ControlMessage{Action: model.ActionUnsubscribeAll})
}

// SendMessage JSON-encodes v and writes it to the open stream. When not
// connected the message is dropped with a warning and ErrNotConnected is
// returned.
func (m *Manager) SendMessage(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	m.mu.Lock()
	sess := m.session
	open := sess != nil && m.state == StateConnected
	m.mu.Unlock()

	if !open {
		m.dropped.Add(1)
		m.logger.Warn("not connected, dropping outbound message", zap.ByteString("message", data))
		return ErrNotConnected
	}

	if err := sess.client.Send(data); err != nil {
		m.dropped.Add(1)
		m.logger.Warn("send failed", zap.Error(err))
		return fmt.Errorf("send: %w", err)
	}
	m.sent.Add(1)
	return nil
}

// Close stops the manager for good. Pending timers are cancelled and the
// socket is closed; later calls return ErrManagerClosed. It is safe to call
// from a subscription callback or state listener.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.stopTimerLocked()
	m.epoch++
	sess := m.session
	m.session = nil
	states := m.transitionLocked(StateDisconnected, nil)
	m.mu.Unlock()

	m.cancel()
	if sess != nil {
		sess.stop()
	}
	// A busy loop exits on its own once the callback returns.
	if m.dispatching.Load() == 0 {
		m.wg.Wait()
	}

	m.logger.Info("connection manager stopped")
	m.notify(states)
	return nil
}

// OnStateChange registers l for state transitions.
func (m *Manager) OnStateChange(l func(State)) (unsubscribe func()) {
	return m.states.Subscribe(l)
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsConnected reports whether the stream is open.
func (m *Manager) IsConnected() bool {
	return m.State() == StateConnected
}

// LastError returns the last human-readable failure, empty after a
// successful open.
func (m *Manager) LastError() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastError
}

// Attempts returns the number of reconnects scheduled since the last open.
func (m *Manager) Attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

// Registry returns the subscription registry.
func (m *Manager) Registry() *subscription.Registry {
	return m.registry
}

// Stats returns current statistics.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	s := Stats{
		State:     m.state,
		LastError: m.lastError,
		Attempts:  m.attempts,
	}
	m.mu.Unlock()

	s.Subscriptions = m.registry.Len()
	s.Connects = m.connects.Load()
	s.MessagesReceived = m.received.Load()
	s.ParseErrors = m.parseErrors.Load()
	s.MessagesSent = m.sent.Load()
	s.MessagesDropped = m.dropped.Load()
	return s
}

// readLoop pumps one session's frames into the handler until the session
// ends or reports an error.
func (m *Manager) readLoop(sess *session) {
	defer m.wg.Done()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-sess.done:
			return
		case err := <-sess.client.Errors():
			m.dispatch(func() {
				m.drain(sess)
				m.handleDrop(sess.id, err)
			})
			return
		case msg := <-sess.client.Messages():
			m.dispatch(func() { m.handleFrame(msg) })
		}
	}
}

// dispatch runs fn on the read loop, marking it busy so Close invoked from a
// callback or state listener does not wait on the loop it is running on.
func (m *Manager) dispatch(fn func()) {
	m.dispatching.Add(1)
	defer m.dispatching.Add(-1)
	fn()
}

// drain routes frames that were buffered before the transport failed.
func (m *Manager) drain(sess *session) {
	for {
		select {
		case msg := <-sess.client.Messages():
			m.handleFrame(msg)
		default:
			return
		}
	}
}

func (m *Manager) handleFrame(msg TimestampedMessage) {
	var mm model.MarketMessage
	if err := json.Unmarshal(msg.Data, &mm); err != nil {
		m.parseErrors.Add(1)
		m.logger.Warn("discarding malformed frame", zap.Int("bytes", len(msg.Data)), zap.Error(err))
		return
	}
	m.received.Add(1)

	if m.handler != nil {
		m.handler.Route(mm)
	}
}

// handleDrop runs the close path for the transport opened in epoch. A
// non-clean cause is recorded and surfaces as the error state first.
func (m *Manager) handleDrop(epoch uint64, cause error) {
	m.mu.Lock()
	if m.closed || m.epoch != epoch {
		m.mu.Unlock()
		return
	}
	m.epoch++
	sess := m.session
	m.session = nil

	var states []State
	if cause != nil && !errors.Is(cause, ErrClosed) {
		m.lastError = describe(cause)
		states = m.transitionLocked(StateError, states)
	}
	states = m.transitionLocked(StateDisconnected, states)

	scheduled := m.attempts < m.cfg.MaxReconnectAttempts
	var delay time.Duration
	if scheduled {
		delay = m.scheduleReconnectLocked()
	}
	attempts := m.attempts
	m.mu.Unlock()

	if sess != nil {
		sess.stop()
	}

	if scheduled {
		m.logger.Info("connection lost, reconnect scheduled",
			zap.NamedError("cause", cause),
			zap.Int("attempt", attempts),
			zap.Int("max_attempts", m.cfg.MaxReconnectAttempts),
			zap.Duration("delay", delay),
		)
	} else {
		m.logger.Warn("connection lost, reconnect budget exhausted",
			zap.NamedError("cause", cause),
			zap.Int("attempts", attempts),
		)
	}
	m.notify(states)
}

// scheduleReconnectLocked arms the single reconnect timer with
// min(base*2^attempts, max) and counts the attempt.
func (m *Manager) scheduleReconnectLocked() time.Duration {
	delay := backoffDelay(m.cfg.ReconnectBaseDelay, m.cfg.ReconnectMaxDelay, m.attempts)
	m.attempts++
	m.armLocked(delay)
	return delay
}

func (m *Manager) armLocked(d time.Duration) {
	m.stopTimerLocked()
	seq := m.timerSeq
	m.timer = m.afterFunc(d, func() { m.fire(seq) })
}

func (m *Manager) stopTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.timerSeq++
}

func (m *Manager) fire(seq uint64) {
	m.mu.Lock()
	if m.closed || seq != m.timerSeq {
		m.mu.Unlock()
		return
	}
	m.timer = nil
	endpoint := m.endpoint
	m.mu.Unlock()

	if err := m.Connect(m.ctx, endpoint); err != nil {
		m.logger.Debug("scheduled connect failed", zap.Error(err))
	}
}

func (m *Manager) credential() (string, bool) {
	if m.auth == nil || !m.auth.IsAuthenticated() {
		return "", false
	}
	return m.auth.AuthToken()
}

// transitionLocked records a state change and appends it to out for
// publication once mu is released.
func (m *Manager) transitionLocked(s State, out []State) []State {
	if m.state == s {
		return out
	}
	m.state = s
	return append(out, s)
}

func (m *Manager) notify(states []State) {
	for _, s := range states {
		m.states.Publish(s)
	}
}

// backoffDelay returns min(base*2^attempts, max) without overflowing.
func backoffDelay(base, ceiling time.Duration, attempts int) time.Duration {
	d := base
	for i := 0; i < attempts && d < ceiling; i++ {
		d *= 2
	}
	if d > ceiling {
		d = ceiling
	}
	return d
}

// streamURL joins the stream path onto endpoint and adds the token query
// parameter. http(s) endpoints are mapped to ws(s).
func streamURL(endpoint, path, token string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("endpoint %q: unsupported scheme %q", endpoint, u.Scheme)
	}
	if path != "" {
		u.Path = strings.TrimSuffix(u.Path, "/") + "/" + strings.TrimPrefix(path, "/")
	}

	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func describe(err error) string {
	switch {
	case errors.Is(err, ErrStaleConnection):
		return "connection stale: no heartbeat from gateway"
	default:
		return "websocket error: " + err.Error()
	}
}
