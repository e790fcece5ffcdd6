package redaction

import "regexp"

// builtinPatterns is the fixed pattern table for the common PII categories.
// It is built once at init and never mutated afterwards; regexp values are
// safe for concurrent use, so lookups need no locking.
var builtinPatterns = map[PatternType]*regexp.Regexp{
	PatternEmail:      regexp.MustCompile(`(?i)\b[a-z0-9._%+-]+@[a-z0-9.-]+\.[a-z]{2,}\b`),
	PatternPhone:      regexp.MustCompile(`(?:\+\d{1,3}[-.\s]?)?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}\b`),
	PatternSSN:        regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
	PatternCreditCard: regexp.MustCompile(`\b(?:\d{4}[-\s]?){3}\d{4}\b`),
}

// builtinTokens are the fixed replacement strings used by the built-in pass.
var builtinTokens = map[PatternType]string{
	PatternEmail:      "[EMAIL_REDACTED]",
	PatternPhone:      "[PHONE_REDACTED]",
	PatternSSN:        "[SSN_REDACTED]",
	PatternCreditCard: "[CC_REDACTED]",
}

// builtinOrder fixes the scan order of the built-in pass. Credit cards run
// before phones so a 16-digit card number is tokenized before the looser
// phone pattern can consume part of it.
var builtinOrder = []PatternType{
	PatternEmail,
	PatternSSN,
	PatternCreditCard,
	PatternPhone,
}

// BuiltinCategories returns the category names covered by the built-in pass,
// in scan order.
func BuiltinCategories() []string {
	out := make([]string, len(builtinOrder))
	for i, pt := range builtinOrder {
		out[i] = string(pt)
	}
	return out
}
