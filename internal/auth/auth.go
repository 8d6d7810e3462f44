// Package auth supplies the bearer credential used for gateway access.
//
// The platform's login flow is a placeholder, so the credential is
// configured rather than negotiated: a literal token or a file holding one.
package auth

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
)

// ErrNoToken is returned when no credential source yields a token.
var ErrNoToken = errors.New("no auth token configured")

// Provider answers whether a credential is available and returns it.
type Provider interface {
	IsAuthenticated() bool
	AuthToken() (string, bool)
}

// Session holds a mutable bearer token. Safe for concurrent use.
type Session struct {
	mu    sync.RWMutex
	token string
}

// NewSession returns a session holding token, which may be empty.
func NewSession(token string) *Session {
	return &Session{token: strings.TrimSpace(token)}
}

// LoadSession builds a session from a literal token or a token file.
// The literal token takes precedence.
func LoadSession(token, tokenFile string) (*Session, error) {
	if t := strings.TrimSpace(token); t != "" {
		return NewSession(t), nil
	}
	if tokenFile == "" {
		return nil, ErrNoToken
	}

	data, err := os.ReadFile(tokenFile)
	if err != nil {
		return nil, fmt.Errorf("read token file: %w", err)
	}
	t := strings.TrimSpace(string(data))
	if t == "" {
		return nil, fmt.Errorf("token file %s: %w", tokenFile, ErrNoToken)
	}
	return NewSession(t), nil
}

// SetToken replaces the current token.
func (s *Session) SetToken(token string) {
	s.mu.Lock()
	s.token = strings.TrimSpace(token)
	s.mu.Unlock()
}

// Clear drops the token, logging the session out.
func (s *Session) Clear() {
	s.SetToken("")
}

// IsAuthenticated reports whether a token is present.
func (s *Session) IsAuthenticated() bool {
	_, ok := s.AuthToken()
	return ok
}

// AuthToken returns the token and whether one is set.
func (s *Session) AuthToken() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.token != ""
}

// AuthorizationHeader returns "Bearer <token>", or "" when logged out.
func AuthorizationHeader(p Provider) string {
	if p == nil || !p.IsAuthenticated() {
		return ""
	}
	token, ok := p.AuthToken()
	if !ok {
		return ""
	}
	return "Bearer " + token
}

// StaticProvider is a fixed credential, mainly for tests and tools.
type StaticProvider string

// IsAuthenticated reports whether the token is non-empty.
func (p StaticProvider) IsAuthenticated() bool { return p != "" }

// AuthToken returns the token.
func (p StaticProvider) AuthToken() (string, bool) { return string(p), p != "" }
