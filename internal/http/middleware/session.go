// Package middleware contains the shared Gin middleware used by the HTTP
// layer.
//
// This file implements cookie-based admin sessions. Tokens are random,
// held in memory only, and die with the process; the admin panel is a
// single-operator tool, so losing sessions on restart just means logging in
// again.
package middleware

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// SessionCookie is the cookie name carrying the admin session token.
const SessionCookie = "admin_session"

// sessionTTL bounds how long an issued token stays valid.
const sessionTTL = 24 * time.Hour

// SessionStore issues and validates admin session tokens.
// Safe for concurrent use.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]time.Time // token -> expiry
}

// NewSessionStore constructs an empty SessionStore.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]time.Time)}
}

// Issue mints a new session token.
func (s *SessionStore) Issue() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	token := hex.EncodeToString(buf)

	s.mu.Lock()
	s.sessions[token] = time.Now().Add(sessionTTL)
	s.mu.Unlock()
	return token, nil
}

// Valid reports whether token is a live session. Expired tokens are evicted
// on lookup.
func (s *SessionStore) Valid(token string) bool {
	if token == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.sessions[token]
	if !ok {
		return false
	}
	if time.Now().After(exp) {
		delete(s.sessions, token)
		return false
	}
	return true
}

// Revoke invalidates token; used by logout. Unknown tokens are a no-op.
func (s *SessionStore) Revoke(token string) {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
}

// RequireSession returns a Gin middleware that rejects requests lacking a
// valid admin session cookie with a 401 JSON error envelope.
func RequireSession(store *SessionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(SessionCookie)
		if err != nil || !store.Valid(token) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"request_id": c.Writer.Header().Get("X-Request-ID"),
				"code":       "unauthorized",
				"message":    "authentication required",
			})
			return
		}
		c.Next()
	}
}
