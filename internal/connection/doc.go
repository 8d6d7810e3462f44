// Package connection owns the single WebSocket link to the market data gateway.
//
// The Manager:
//   - Dials the gateway stream with the session token as a query parameter
//   - Tracks connection state and publishes transitions to observers
//   - Replays the subscription registry after every successful open
//   - Reconnects with capped exponential backoff up to a fixed attempt budget
//   - Decodes inbound frames and hands them to the Message Router
package connection
