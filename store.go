package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/goliatone/hashid/pkg/hashid"
)

const (
	// TokenKey is the store slot holding the raw token.
	TokenKey = "auth_token"
	// UserKey is the store slot holding the JSON encoded user record.
	UserKey = "auth_user"
)

// StoreNamespace derives a stable namespace for an API endpoint so several
// portals can share one durable store without clobbering each other.
func StoreNamespace(baseURL string) string {
	if baseURL == "" {
		return "default"
	}
	id, err := hashid.NewUUID(baseURL)
	if err != nil {
		return "default"
	}
	return id.String()
}

// MemoryStore is a TokenStore that lives as long as the process.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]string
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: map[string]string{}}
}

// Get satisfies TokenStore.
func (m *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.entries[key]
	return v, ok, nil
}

// Set satisfies TokenStore.
func (m *MemoryStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = value
	return nil
}

// Remove satisfies TokenStore, removing a missing key is not an error.
func (m *MemoryStore) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func loadToken(ctx context.Context, store TokenStore) (string, error) {
	token, ok, err := store.Get(ctx, TokenKey)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", TokenKey, err)
	}
	if !ok {
		return "", nil
	}
	return token, nil
}

// loadUser returns nil without error when the slot is empty. A slot that
// does not decode is reported so the caller can treat it as absent.
func loadUser(ctx context.Context, store TokenStore) (*User, error) {
	raw, ok, err := store.Get(ctx, UserKey)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", UserKey, err)
	}
	if !ok || raw == "" {
		return nil, nil
	}
	user := &User{}
	if err := json.Unmarshal([]byte(raw), user); err != nil {
		return nil, fmt.Errorf("decode %s: %w", UserKey, err)
	}
	return user, nil
}

func saveUser(ctx context.Context, store TokenStore, user *User) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode %s: %w", UserKey, err)
	}
	return store.Set(ctx, UserKey, string(raw))
}
