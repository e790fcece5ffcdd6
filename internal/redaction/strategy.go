package redaction

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	maskChar     = "*"
	removeMarker = "[REDACTED]"
	// hashPrefixLen is the number of hex characters kept from the SHA-256
	// digest of a match. Long enough to correlate, far too short to reverse.
	hashPrefixLen = 16
)

// replaceMatch applies a replacement strategy to a single matched substring.
// mask, hash and remove are deterministic; tokenize is intentionally not:
// it emits a fresh opaque token per call and no reverse mapping is kept.
func replaceMatch(match string, strategy Strategy) string {
	switch strategy {
	case StrategyMask:
		return strings.Repeat(maskChar, len(match))
	case StrategyHash:
		sum := sha256.Sum256([]byte(match))
		return hex.EncodeToString(sum[:])[:hashPrefixLen]
	case StrategyRemove:
		return removeMarker
	case StrategyTokenize:
		return fmt.Sprintf("[TOKEN_%d_%s]", time.Now().UnixNano(), uuid.NewString()[:8])
	default:
		// Unknown strategies fall back to the remove marker rather than
		// leaving the match in place.
		return removeMarker
	}
}

// HashContent computes the tamper-evidence hash of raw content. It is a plain
// SHA-256 hex digest: deterministic, one-way, and never used for redaction.
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
