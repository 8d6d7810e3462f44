// Package api is the REST client for the gateway's market data service.
//
// Endpoints (under /api/v1/market-data):
//   - GET /symbols, /tickers, /ticker/{symbol}
//   - GET /orderbook/{symbol}?limit=, /trades/{symbol}?limit=
//   - GET /klines/{symbol}?interval=&limit=
//   - GET /health
//
// Every request carries the session bearer token and a fresh X-Request-ID.
// 5xx and 429 responses are retried with exponential backoff.
package api
