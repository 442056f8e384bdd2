// Package sandbox is a local stand-in for the provider: an implicit-flow
// sign-in dialog plus the Graph API subset the widgets call (Open Graph
// object lookup, likes, comments). All state is in memory; tokens are
// invalidated on restart.
package sandbox

import (
	"crypto/rand"
	"encoding/hex"
	"slices"
	"sync"
	"time"
)

// TokenInfo represents an issued access token.
type TokenInfo struct {
	Token     string
	UserID    string
	Scopes    []string
	ExpiresAt time.Time
}

// HasScope reports whether the token was granted scope.
func (t *TokenInfo) HasScope(scope string) bool {
	return slices.Contains(t.Scopes, scope)
}

const (
	// csrfExpiry controls how long a CSRF token remains valid.
	csrfExpiry = 10 * time.Minute

	// cleanupInterval controls how often expired entries are reaped.
	cleanupInterval = 5 * time.Minute

	// accessTokenBytes is the number of random bytes in an access token.
	accessTokenBytes = 32

	// csrfTokenBytes is the number of random bytes used to generate
	// a CSRF token (hex-encoded to twice this length).
	csrfTokenBytes = 16
)

// csrfEntry binds a CSRF token to the dialog parameters it was issued for.
type csrfEntry struct {
	clientID    string
	redirectURI string
	expiresAt   time.Time
}

// Store holds issued tokens and pending dialog CSRF tokens.
type Store struct {
	mu     sync.RWMutex
	tokens map[string]*TokenInfo
	csrf   map[string]csrfEntry
	now    func() time.Time
	stopGC chan struct{}
	once   sync.Once
}

// NewStore creates an empty store and starts a background goroutine
// that periodically removes expired entries. Call Stop() to clean up
// the goroutine.
func NewStore() *Store {
	s := &Store{
		tokens: make(map[string]*TokenInfo),
		csrf:   make(map[string]csrfEntry),
		now:    time.Now,
		stopGC: make(chan struct{}),
	}
	go s.gcLoop()

	return s
}

// Stop terminates the background cleanup goroutine.
func (s *Store) Stop() {
	s.once.Do(func() { close(s.stopGC) })
}

func (s *Store) gcLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopGC:
			return
		}
	}
}

// cleanup removes all expired entries from the store.
func (s *Store) cleanup() {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, ti := range s.tokens {
		if now.After(ti.ExpiresAt) {
			delete(s.tokens, k)
		}
	}

	for k, entry := range s.csrf {
		if now.After(entry.expiresAt) {
			delete(s.csrf, k)
		}
	}
}

// IssueToken creates and stores a token for userID.
func (s *Store) IssueToken(userID string, scopes []string, ttl time.Duration) *TokenInfo {
	ti := &TokenInfo{
		Token:     RandomHex(accessTokenBytes),
		UserID:    userID,
		Scopes:    scopes,
		ExpiresAt: s.now().Add(ttl),
	}

	s.mu.Lock()
	s.tokens[ti.Token] = ti
	s.mu.Unlock()

	return ti
}

// ValidateToken returns the token's info, or nil when the token is
// unknown or expired.
func (s *Store) ValidateToken(token string) *TokenInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ti, ok := s.tokens[token]
	if !ok {
		return nil
	}

	if s.now().After(ti.ExpiresAt) {
		return nil
	}

	return ti
}

// ExpireAll marks every issued token as expired. The entries stay until
// the next cleanup so lookups see an expired rather than unknown token.
func (s *Store) ExpireAll() {
	past := s.now().Add(-time.Second)

	s.mu.Lock()
	for _, ti := range s.tokens {
		ti.ExpiresAt = past
	}
	s.mu.Unlock()
}

// SaveCSRF stores a CSRF token bound to the dialog parameters.
func (s *Store) SaveCSRF(token, clientID, redirectURI string) {
	s.mu.Lock()
	s.csrf[token] = csrfEntry{
		clientID:    clientID,
		redirectURI: redirectURI,
		expiresAt:   s.now().Add(csrfExpiry),
	}
	s.mu.Unlock()
}

// ConsumeCSRF retrieves and deletes a CSRF token. It returns false if
// the token is empty, unknown, expired or bound to other parameters.
func (s *Store) ConsumeCSRF(token, clientID, redirectURI string) bool {
	if token == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.csrf[token]
	if !ok {
		return false
	}

	delete(s.csrf, token)

	if entry.clientID != clientID || entry.redirectURI != redirectURI {
		return false
	}

	return s.now().Before(entry.expiresAt)
}

// RandomHex generates a cryptographically random hex string of the given byte length.
func RandomHex(byteLen int) string {
	b := make([]byte, byteLen)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}

	return hex.EncodeToString(b)
}
