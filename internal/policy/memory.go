package policy

import (
	"context"
	"fmt"
	"sync"

	"github.com/scrubworks/redactgate/internal/redaction"
)

// MemoryStore is an in-memory Store for tests and single-node development.
type MemoryStore struct {
	mu       sync.RWMutex
	policies map[string]*redaction.Policy
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{policies: make(map[string]*redaction.Policy)}
}

// Put stores or replaces a policy regardless of status.
func (m *MemoryStore) Put(policy *redaction.Policy) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.policies[policy.ID] = policy
}

// GetActive returns the policy when present and active, ErrNotFound otherwise.
func (m *MemoryStore) GetActive(ctx context.Context, id string) (*redaction.Policy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	policy, ok := m.policies[id]
	if !ok || policy.Status != redaction.PolicyActive {
		return nil, fmt.Errorf("policy %s: %w", id, ErrNotFound)
	}
	return policy, nil
}

// Close is a no-op for the in-memory store.
func (m *MemoryStore) Close() error {
	return nil
}
