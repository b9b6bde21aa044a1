package auth

import (
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// CredentialProvider supplies the bearer token for API calls. ok is false
// when the user is not authenticated.
type CredentialProvider interface {
	Credential() (token string, ok bool)
}

// TokenStore holds the current access token. Expired JWTs are reported as
// missing so callers fail with Unauthenticated before any request is sent.
type TokenStore struct {
	mu    sync.RWMutex
	token string
	now   func() time.Time
}

func NewTokenStore(token string) *TokenStore {
	return &TokenStore{token: strings.TrimSpace(token), now: time.Now}
}

func (s *TokenStore) Credential() (string, bool) {
	s.mu.RLock()
	token := s.token
	s.mu.RUnlock()

	if token == "" || Expired(token, s.now()) {
		return "", false
	}
	return token, true
}

func (s *TokenStore) Set(token string) {
	s.mu.Lock()
	s.token = strings.TrimSpace(token)
	s.mu.Unlock()
}

func (s *TokenStore) Clear() {
	s.Set("")
}

// SetClock replaces the time source. Used by tests.
func (s *TokenStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// Expired reports whether token is a JWT whose exp claim is in the past.
// The signature is not checked: the API does that. Opaque tokens never expire here.
func Expired(token string, now time.Time) bool {
	claims := jwt.MapClaims{}
	if _, _, err := new(jwt.Parser).ParseUnverified(token, claims); err != nil {
		return false
	}
	return !claims.VerifyExpiresAt(now.Unix(), false)
}

// BearerHeader formats the Authorization header value.
func BearerHeader(token string) string {
	return "Bearer " + token
}
