package remote

import "sync"

// TokenStore holds the current bearer token for the project API. The auth
// endpoint replaces it after re-authentication; the client reads it on every
// request via Provider.
type TokenStore struct {
	mu    sync.RWMutex
	token string
}

// NewTokenStore creates a store, optionally seeded with an initial token
func NewTokenStore(initial string) *TokenStore {
	return &TokenStore{token: initial}
}

// Set replaces the current token
func (s *TokenStore) Set(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// Get returns the current token, empty when unauthenticated
func (s *TokenStore) Get() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Provider adapts the store to the client's TokenProvider
func (s *TokenStore) Provider() TokenProvider {
	return s.Get
}
