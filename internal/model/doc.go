// Package model defines the market data types shared across marketstream.
//
// Conventions:
//   - Prices and quantities: shopspring/decimal, decoded from JSON numbers or strings
//   - Timestamps: int64 milliseconds since Unix epoch, as sent by the gateway
//   - Symbols: exchange form without separator (e.g. "BTCUSDT")
package model
