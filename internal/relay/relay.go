// Package relay republishes routed market messages to NATS so services other
// than the local UI can consume the stream.
package relay

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/quantnexus/marketstream/internal/model"
)

// ErrClosed is returned by Start after Close.
var ErrClosed = errors.New("relay closed")

// Publisher sends one message to a subject. *nats.Conn satisfies it.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Config holds relay configuration.
type Config struct {
	URL           string
	Name          string
	SubjectPrefix string        // Subjects are <prefix>.<type>.<symbol>
	QueueSize     int           // Initial queue capacity (default: 256)
	QueueLimit    int           // Max queued messages before dropping oldest (default: 65536)
	ReconnectWait time.Duration // Default: 2s
	FlushTimeout  time.Duration // Default: 5s
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		URL:           nats.DefaultURL,
		Name:          "marketstream",
		SubjectPrefix: "marketdata",
		QueueSize:     256,
		QueueLimit:    65536,
		ReconnectWait: 2 * time.Second,
		FlushTimeout:  5 * time.Second,
	}
}

// Stats contains relay counters.
type Stats struct {
	Published int64      `json:"published"`
	Failed    int64      `json:"failed"`
	Queue     QueueStats `json:"queue"`
}

// Relay queues messages from the router and publishes them from a single
// worker, preserving arrival order.
type Relay struct {
	cfg    Config
	pub    Publisher
	logger *zap.Logger

	queue *queue[model.MarketMessage]

	published atomic.Int64
	failed    atomic.Int64

	mu      sync.Mutex
	started bool
	closed  bool
	done    chan struct{}
}

// New creates a relay over pub. Call Start to begin publishing.
func New(cfg Config, pub Publisher, logger *zap.Logger) *Relay {
	def := DefaultConfig()
	if cfg.SubjectPrefix == "" {
		cfg.SubjectPrefix = def.SubjectPrefix
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.QueueLimit < 1 {
		cfg.QueueLimit = def.QueueLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Relay{
		cfg:    cfg,
		pub:    pub,
		logger: logger.With(zap.String("component", "relay")),
		queue:  newQueue[model.MarketMessage](cfg.QueueSize, cfg.QueueLimit),
		done:   make(chan struct{}),
	}
}

// Dial connects to NATS with reconnects enabled and connection events logged.
func Dial(cfg Config, logger *zap.Logger) (*nats.Conn, error) {
	def := DefaultConfig()
	if cfg.URL == "" {
		cfg.URL = def.URL
	}
	if cfg.ReconnectWait <= 0 {
		cfg.ReconnectWait = def.ReconnectWait
	}
	if cfg.FlushTimeout <= 0 {
		cfg.FlushTimeout = def.FlushTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "relay"))

	nc, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.MaxReconnects(-1),
		nats.FlusherTimeout(cfg.FlushTimeout),
		nats.RetryOnFailedConnect(true),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			logger.Info("nats connection closed")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return nc, nil
}

// Start launches the publish worker. Safe to call more than once.
func (r *Relay) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}
	if !r.started {
		r.started = true
		go r.run()
	}
	return nil
}

// Handle enqueues a routed message. It never blocks; it matches the
// router's OnMessage listener signature.
func (r *Relay) Handle(msg model.MarketMessage) {
	if !r.queue.push(msg) {
		r.logger.Debug("relay closed, dropping message", zap.String("type", msg.Type))
	}
}

// Close stops accepting messages and waits up to timeout for the worker to
// publish what is already queued.
func (r *Relay) Close(timeout time.Duration) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	started := r.started
	r.mu.Unlock()

	r.queue.close()
	if !started {
		return nil
	}

	if timeout <= 0 {
		timeout = DefaultConfig().FlushTimeout
	}
	select {
	case <-r.done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("relay close: %d messages unpublished", r.queue.depth())
	}
}

// Stats returns relay counters.
func (r *Relay) Stats() Stats {
	return Stats{
		Published: r.published.Load(),
		Failed:    r.failed.Load(),
		Queue:     r.queue.stats(),
	}
}

func (r *Relay) run() {
	defer close(r.done)
	for {
		msg, ok := r.queue.pop()
		if !ok {
			return
		}
		r.publish(msg)
	}
}

func (r *Relay) publish(msg model.MarketMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		r.failed.Add(1)
		r.logger.Warn("failed to encode message", zap.String("type", msg.Type), zap.Error(err))
		return
	}

	subject := Subject(r.cfg.SubjectPrefix, msg.Type, msg.Symbol)
	if err := r.pub.Publish(subject, data); err != nil {
		r.failed.Add(1)
		r.logger.Warn("failed to publish", zap.String("subject", subject), zap.Error(err))
		return
	}
	r.published.Add(1)
}

// Subject builds <prefix>.<type>.<symbol>. NATS tokens cannot contain dots,
// spaces or wildcards, so those characters become underscores; an empty
// symbol becomes "all".
func Subject(prefix, typ, symbol string) string {
	if symbol == "" {
		symbol = "all"
	}
	return prefix + "." + subjectToken(typ) + "." + subjectToken(symbol)
}

var tokenReplacer = strings.NewReplacer(".", "_", " ", "_", "*", "_", ">", "_")

func subjectToken(s string) string {
	return tokenReplacer.Replace(s)
}
