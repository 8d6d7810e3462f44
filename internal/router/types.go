package router

// Config bounds the per-key history kept by the cache.
type Config struct {
	KlineLimit int // Max klines per (symbol, interval). Default: 500
	TradeLimit int // Max trades per symbol. Default: 100
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{
		KlineLimit: 500,
		TradeLimit: 100,
	}
}

// Stats contains runtime statistics.
type Stats struct {
	MessagesReceived int64 `json:"messagesReceived"`
	CallbacksInvoked int64 `json:"callbacksInvoked"`
	CallbackPanics   int64 `json:"callbackPanics"`
	ParseErrors      int64 `json:"parseErrors"`
	UnknownMessages  int64 `json:"unknownMessages"`
	CacheUpdates     int64 `json:"cacheUpdates"`
}

// Update describes one cache mutation. Interval is set for klines only.
type Update struct {
	Type     string `json:"type"`
	Symbol   string `json:"symbol"`
	Interval string `json:"interval,omitempty"`
	Source   string `json:"source"`
}

// Update sources.
const (
	SourceStream = "stream"
	SourceSeed   = "seed"
)
