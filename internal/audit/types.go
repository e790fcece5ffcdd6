package audit

import (
	"context"
	"time"
)

// PreviewLimit bounds the redacted-content preview stored in a Record.
const PreviewLimit = 200

// Record is one append-only audit entry proving a redaction occurred. It
// carries the content-integrity hash and a bounded preview of the *redacted*
// output; raw original content never enters a Record.
type Record struct {
	ID              int64     `json:"id,omitempty" db:"id"`
	OrgID           string    `json:"org_id" db:"org_id"`
	PolicyID        string    `json:"policy_id" db:"policy_id"`
	AgentID         string    `json:"agent_id,omitempty" db:"agent_id"`
	RunID           string    `json:"run_id,omitempty" db:"run_id"`
	DataType        string    `json:"data_type" db:"data_type"`
	RedactionCount  int       `json:"redaction_count" db:"redaction_count"`
	PatternsMatched []string  `json:"patterns_matched" db:"-"`
	OriginalHash    string    `json:"original_hash" db:"original_hash"`
	RedactedPreview string    `json:"redacted_preview" db:"redacted_preview"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

// Sink is an append-only destination for audit records. Implementations never
// expose update or delete paths.
type Sink interface {
	Write(ctx context.Context, record *Record) error
	Close() error
}

// Preview truncates redacted content to the bounded preview length. Truncation
// is by rune so a multi-byte character is never split.
func Preview(redacted string) string {
	runes := []rune(redacted)
	if len(runes) <= PreviewLimit {
		return redacted
	}
	return string(runes[:PreviewLimit])
}
