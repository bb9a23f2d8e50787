package remote

import (
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Session holds the bearer token for the remote store. Authentication
// itself is the backend's business; the client only needs the token
// string and a cheap way to notice it has expired, so the JWT is
// parsed without signature verification.
type Session struct {
	mu    sync.RWMutex
	token string
}

// NewSession creates a session around an access token. An empty token
// is allowed; requests will simply go out unauthenticated and be
// rejected upstream.
func NewSession(token string) *Session {
	return &Session{token: token}
}

// Token returns the current access token.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// SetToken replaces the access token after a re-auth.
func (s *Session) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// Expired reports whether the token carries an exp claim in the past.
// Opaque or malformed tokens report false; the server is the authority
// on those.
func (s *Session) Expired(now time.Time) bool {
	tok := s.Token()
	if tok == "" {
		return false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tok, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return now.After(exp.Time)
}
