package policy

import (
	"context"
	"errors"

	"github.com/scrubworks/redactgate/internal/redaction"
)

// ErrNotFound is returned when no active policy exists for an id. A policy
// that exists but is inactive is indistinguishable from a missing one at this
// boundary; callers retry only after changing the policy id or its state.
var ErrNotFound = errors.New("no active policy found")

// Store resolves active redaction policies by id.
type Store interface {
	// GetActive returns the active policy for id, or ErrNotFound.
	GetActive(ctx context.Context, id string) (*redaction.Policy, error)
	// Close releases any resources held by the store.
	Close() error
}
