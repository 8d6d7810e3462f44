package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quantnexus/marketstream/internal/auth"
	"github.com/quantnexus/marketstream/internal/version"
)

// HeaderRequestID correlates a request across gateway and services.
const HeaderRequestID = "X-Request-ID"

// APIError represents a non-2xx response or a failed envelope.
type APIError struct {
	StatusCode int
	Message    string
	RequestID  string
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gateway api error %d: %s", e.StatusCode, e.Message)
}

// IsRetryable returns true if the error should trigger a retry.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// IsUnauthorized reports a rejected credential.
func (e *APIError) IsUnauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized
}

// doRequest performs one HTTP request.
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values) ([]byte, error) {
	fullURL := c.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	req.Header.Set(HeaderRequestID, requestID)
	if h := auth.AuthorizationHeader(c.auth); h != "" {
		req.Header.Set("Authorization", h)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	c.logger.Debug("api response",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.String("request_id", requestID),
	)

	if resp.StatusCode >= 400 {
		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(body, http.StatusText(resp.StatusCode)),
			RequestID:  requestID,
			Body:       body,
		}
		if apiErr.IsUnauthorized() {
			c.dropCredential()
		}
		return nil, apiErr
	}

	return body, nil
}

// dropCredential logs the session out after a 401, when the provider allows it.
func (c *Client) dropCredential() {
	if s, ok := c.auth.(interface{ Clear() }); ok {
		c.logger.Warn("gateway rejected credential, clearing session")
		s.Clear()
	}
}

// doWithRetry retries retryable failures with exponential backoff.
func (c *Client) doWithRetry(ctx context.Context, method, path string, query url.Values) ([]byte, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryBackoff
	b.MaxInterval = c.maxBackoff
	b.Reset()

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			wait := b.NextBackOff()
			c.logger.Debug("retrying request",
				zap.Int("attempt", attempt),
				zap.Duration("backoff", wait),
				zap.String("path", path),
			)

			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}

		body, err := c.doRequest(ctx, method, path, query)
		if err == nil {
			return body, nil
		}
		lastErr = err

		var apiErr *APIError
		if !errors.As(err, &apiErr) || !apiErr.IsRetryable() {
			return nil, err
		}
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// get performs a GET request with retries and decodes the body into result.
func (c *Client) get(ctx context.Context, path string, query url.Values, result any) error {
	body, err := c.doWithRetry(ctx, http.MethodGet, path, query)
	if err != nil {
		return err
	}
	return decodeBody(body, result)
}

// decodeBody accepts either a bare JSON value or a {"success","data","error"}
// envelope. A failed envelope is reported as an APIError.
func decodeBody(body []byte, result any) error {
	var env envelope
	if err := json.Unmarshal(body, &env); err == nil && env.isEnvelope() {
		if env.Success != nil && !*env.Success {
			return &APIError{
				StatusCode: http.StatusOK,
				Message:    errorMessage(body, "request failed"),
				RequestID:  env.RequestID,
				Body:       body,
			}
		}
		if len(env.Data) == 0 || string(env.Data) == "null" {
			return ErrNoData
		}
		body = env.Data
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

// errorMessage extracts a message from {"error": "..."} or
// {"error": {"message": "..."}}, falling back to def.
func errorMessage(body []byte, def string) string {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil || len(env.Error) == 0 {
		return def
	}

	var s string
	if err := json.Unmarshal(env.Error, &s); err == nil && s != "" {
		return s
	}
	var obj struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(env.Error, &obj); err == nil && obj.Message != "" {
		if obj.Code != "" {
			return obj.Code + ": " + obj.Message
		}
		return obj.Message
	}
	return def
}
