package model

import (
	"encoding/json"
	"strings"
)

// Channels carried on the market data stream. A message's Type is one of these.
const (
	ChannelTicker    = "ticker"
	ChannelKline     = "kline"
	ChannelOrderBook = "orderbook"
	ChannelTrade     = "trade"
)

// Channels lists every known stream channel.
var Channels = []string{ChannelTicker, ChannelKline, ChannelOrderBook, ChannelTrade}

// IsChannel reports whether name is a known stream channel.
func IsChannel(name string) bool {
	for _, c := range Channels {
		if c == name {
			return true
		}
	}
	return false
}

// NormalizeSymbol upper-cases a symbol and strips the "/" used in display pairs.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(symbol), "/", ""))
}

// MarketMessage is an inbound push from the gateway stream.
type MarketMessage struct {
	Type      string          `json:"type"`
	Symbol    string          `json:"symbol"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// Control actions sent to the gateway.
const (
	ActionSubscribe      = "subscribe"
	ActionUnsubscribe    = "unsubscribe"
	ActionUnsubscribeAll = "unsubscribe_all"
)

// ControlMessage is an outbound subscription command.
type ControlMessage struct {
	Action  string `json:"action"`
	Channel string `json:"channel,omitempty"`
	Symbol  string `json:"symbol,omitempty"`
}
