package api

import (
	"encoding/json"
	"errors"
)

// ErrNoData is returned when a successful envelope carries no payload.
var ErrNoData = errors.New("response has no data")

// envelope is the gateway's standard response wrapper.
type envelope struct {
	Success   *bool           `json:"success"`
	Data      json.RawMessage `json:"data"`
	Error     json.RawMessage `json:"error"`
	RequestID string          `json:"request_id"`
}

func (e envelope) isEnvelope() bool {
	return e.Success != nil || len(e.Data) > 0
}

// HealthStatus from GET /health endpoints.
type HealthStatus struct {
	Status    string            `json:"status"`
	Service   string            `json:"service,omitempty"`
	Version   string            `json:"version,omitempty"`
	Timestamp string            `json:"timestamp,omitempty"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// Healthy reports whether the service declared itself up.
func (h HealthStatus) Healthy() bool {
	switch h.Status {
	case "ok", "healthy", "up", "UP":
		return true
	}
	return false
}
