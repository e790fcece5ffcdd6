package policy

import (
	"context"
	"errors"
	"testing"

	"github.com/scrubworks/redactgate/internal/redaction"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	store.Put(&redaction.Policy{ID: "pol-1", Status: redaction.PolicyActive})
	store.Put(&redaction.Policy{ID: "pol-2", Status: redaction.PolicyInactive})

	t.Run("ActivePolicyFound", func(t *testing.T) {
		policy, err := store.GetActive(ctx, "pol-1")
		if err != nil {
			t.Fatalf("GetActive failed: %v", err)
		}
		if policy.ID != "pol-1" {
			t.Errorf("Unexpected policy: %+v", policy)
		}
	})

	t.Run("InactivePolicyIsNotFound", func(t *testing.T) {
		if _, err := store.GetActive(ctx, "pol-2"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("Expected ErrNotFound, got %v", err)
		}
	})

	t.Run("MissingPolicyIsNotFound", func(t *testing.T) {
		if _, err := store.GetActive(ctx, "pol-404"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("Expected ErrNotFound, got %v", err)
		}
	})
}
