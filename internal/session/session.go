// Package session persists the single bearer token granted by the
// provider. It stands in for the browser's durable local storage: one
// value under a fixed provider-scoped key, no expiry tracking, and
// absence as the only signal that a sign-in is needed.
package session

import (
	"sync"

	"golang.org/x/oauth2"
)

// DefaultKey is the storage key used for the Facebook token.
const DefaultKey = "oauth2-fb"

// Store holds one bearer token for one provider.
type Store interface {
	// Put overwrites the stored token. The token shape is not checked.
	Put(token string) error
	// Get returns the stored token and whether one is present.
	Get() (string, bool)
	// IsGranted reports whether a token is present.
	IsGranted() bool
	// Clear removes the token, the way a user clearing site data would.
	Clear() error
}

// MemoryStore is an in-process Store. The zero value is empty and ready
// to use.
type MemoryStore struct {
	mu    sync.RWMutex
	token string
	set   bool
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Put(token string) error {
	m.mu.Lock()
	m.token = token
	m.set = true
	m.mu.Unlock()

	return nil
}

func (m *MemoryStore) Get() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.token, m.set
}

func (m *MemoryStore) IsGranted() bool {
	_, ok := m.Get()
	return ok
}

func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	m.token = ""
	m.set = false
	m.mu.Unlock()

	return nil
}

// storeTokenSource reads the store on every call so a token written by
// a redirect-back is picked up by the next request without rebuilding
// the HTTP client.
type storeTokenSource struct {
	store Store
}

// TokenSource adapts a Store to oauth2.TokenSource. An absent token is
// returned as an empty bearer credential rather than an error: the
// provider is expected to reject it and report an expired session.
func TokenSource(store Store) oauth2.TokenSource {
	return &storeTokenSource{store: store}
}

func (s *storeTokenSource) Token() (*oauth2.Token, error) {
	token, _ := s.store.Get()

	return &oauth2.Token{AccessToken: token, TokenType: "Bearer"}, nil
}
