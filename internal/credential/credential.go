// Package credential persists the single API credential that gates every pipeline entry point.
package credential

import (
	"context"
	"errors"
	"strings"
	"sync"
)

const keyPrefix = "AIza"

var (
	ErrNotSet  = errors.New("credential not set")
	ErrInvalid = errors.New("credential must start with " + keyPrefix)
)

// Store persists one opaque credential string.
type Store interface {
	Get(ctx context.Context) (string, error)
	Set(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

// Validate performs the prefix-format check. No network call is made; the first failed generation
// request is the only signal that a key does not work.
func Validate(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" || !strings.HasPrefix(key, keyPrefix) {
		return "", ErrInvalid
	}
	return key, nil
}

// Present reports whether the store holds a credential.
func Present(ctx context.Context, s Store) bool {
	if s == nil {
		return false
	}
	key, err := s.Get(ctx)
	return err == nil && key != ""
}

// Source adapts a Store to the generation client. The key is read on every call, so a credential
// change never affects requests already in flight.
type Source struct {
	Store Store
}

func (s Source) APIKey(ctx context.Context) (string, error) {
	if s.Store == nil {
		return "", ErrNotSet
	}
	return s.Store.Get(ctx)
}

// Mask hides all but the last four characters for logs and status output.
func Mask(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}

type MemoryStore struct {
	mu  sync.RWMutex
	key string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Get(context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.key == "" {
		return "", ErrNotSet
	}
	return m.key, nil
}

func (m *MemoryStore) Set(_ context.Context, key string) error {
	key, err := Validate(key)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.key = key
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Clear(context.Context) error {
	m.mu.Lock()
	m.key = ""
	m.mu.Unlock()
	return nil
}
