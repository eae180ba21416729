package persistence

import (
	"context"
	gosync "sync"
	"time"

	"github.com/storefront-kit/cartengine/internal/cart"
	pkgerrors "github.com/storefront-kit/cartengine/pkg/errors"
)

type memoryEntry struct {
	cart      *cart.Cart
	expiresAt time.Time
}

// MemoryStore keeps cart snapshots in process memory. Entries expire
// after the configured TTL; a zero TTL disables expiry.
type MemoryStore struct {
	mu      gosync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryStore builds an in-memory cart store.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Save stores a deep copy of the cart so later mutations of the live
// cart never leak into the snapshot.
func (s *MemoryStore) Save(ctx context.Context, c *cart.Cart) error {
	if c == nil || c.SessionID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart with a session id is required")
	}
	var expires time.Time
	if s.ttl > 0 {
		expires = s.now().Add(s.ttl)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[c.SessionID] = memoryEntry{cart: c.Clone(), expiresAt: expires}
	return nil
}

// Load returns a copy of the stored cart, or (nil, nil) when the
// session has no snapshot or the snapshot has expired.
func (s *MemoryStore) Load(ctx context.Context, sessionID string) (*cart.Cart, error) {
	s.mu.RLock()
	entry, ok := s.entries[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if !entry.expiresAt.IsZero() && s.now().After(entry.expiresAt) {
		s.mu.Lock()
		delete(s.entries, sessionID)
		s.mu.Unlock()
		return nil, nil
	}
	return entry.cart.Clone(), nil
}

// Clear removes the session's snapshot.
func (s *MemoryStore) Clear(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, sessionID)
	return nil
}
