package connection

import (
	"errors"
	"time"
)

// Errors
var (
	ErrAuthMissing     = errors.New("not authenticated")
	ErrNotConnected    = errors.New("not connected")
	ErrClosed          = errors.New("connection closed")
	ErrStaleConnection = errors.New("connection stale (no pong)")
	ErrAlreadyClosed   = errors.New("already closed")
	ErrManagerClosed   = errors.New("manager closed")
)

// State is the lifecycle state of the gateway connection.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateError
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalText renders the state name in JSON and logs.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// TimestampedMessage wraps raw frame bytes with the local receive time.
type TimestampedMessage struct {
	Data       []byte    // Raw message bytes from WebSocket
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// ClientConfig configures a WebSocket client.
type ClientConfig struct {
	URL              string        // Full stream URL including the token query
	HandshakeTimeout time.Duration // Dial + upgrade deadline
	PingInterval     time.Duration // How often the client pings
	PingTimeout      time.Duration // Max time without pong before the link is stale
	WriteTimeout     time.Duration // Write deadline for sends
	BufferSize       int           // Message channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		HandshakeTimeout: 10 * time.Second,
		PingInterval:     30 * time.Second,
		PingTimeout:      90 * time.Second,
		WriteTimeout:     5 * time.Second,
		BufferSize:       1000,
	}
}

// ManagerConfig configures the Connection Manager.
type ManagerConfig struct {
	URL                  string        // Gateway base URL (e.g. wss://gateway.example.com)
	StreamPath           string        // Appended to URL (e.g. /ws/market-data/stream)
	MaxReconnectAttempts int           // Automatic reconnects before giving up
	ReconnectBaseDelay   time.Duration // First backoff delay
	ReconnectMaxDelay    time.Duration // Backoff ceiling
	ManualReconnectDelay time.Duration // Delay between Disconnect and connect in Reconnect
	Client               ClientConfig  // Transport settings; URL is filled per dial
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		URL:                  "ws://localhost:8080",
		StreamPath:           "/ws/market-data/stream",
		MaxReconnectAttempts: 5,
		ReconnectBaseDelay:   1 * time.Second,
		ReconnectMaxDelay:    30 * time.Second,
		ManualReconnectDelay: 1 * time.Second,
		Client:               DefaultClientConfig(),
	}
}

// Stats is a point-in-time view of the manager.
type Stats struct {
	State            State  `json:"state"`
	LastError        string `json:"lastError,omitempty"`
	Attempts         int    `json:"reconnectAttempts"`
	Subscriptions    int    `json:"subscriptions"`
	Connects         int64  `json:"connects"`
	MessagesReceived int64  `json:"messagesReceived"`
	ParseErrors      int64  `json:"parseErrors"`
	MessagesSent     int64  `json:"messagesSent"`
	MessagesDropped  int64  `json:"messagesDropped"`
}
