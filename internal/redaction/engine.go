package redaction

import (
	"errors"
	"fmt"
	"regexp"
	"sort"

	"go.uber.org/zap"
)

var (
	// ErrEmptyContent is returned when there is nothing to redact.
	ErrEmptyContent = errors.New("content is empty")
	// ErrPolicyNotActive is returned when the policy is not in the active state.
	ErrPolicyNotActive = errors.New("policy is not active")
	// ErrInvalidPattern is returned when a custom_regex rule fails to compile.
	// The whole call fails closed; skipping a bad rule would be a privacy leak.
	ErrInvalidPattern = errors.New("invalid custom pattern")
)

// Engine applies a redaction policy to free-form text. It holds no mutable
// state, so a single instance may be shared across any number of goroutines.
type Engine struct {
	logger *zap.Logger
}

// New creates a redaction engine.
func New(logger *zap.Logger) *Engine {
	return &Engine{logger: logger}
}

// Apply runs the policy against content and returns the sanitized copy. The
// original content is hashed once for tamper evidence and then only the
// working copy is touched; nothing here retains the raw input past the call.
//
// Two ordered passes: the policy's custom rules run first, cumulatively, each
// seeing the output of the previous rule. If the policy enables the pii data
// category, the fixed built-in detectors run second over whatever the custom
// rules left behind.
func (e *Engine) Apply(content string, policy *Policy) (*Result, error) {
	if content == "" {
		return nil, ErrEmptyContent
	}
	if policy.Status != PolicyActive {
		return nil, fmt.Errorf("policy %s: %w", policy.ID, ErrPolicyNotActive)
	}

	originalHash := HashContent(content)

	working := content
	totalCount := 0
	matched := make(map[string]struct{})

	for i, rule := range policy.Rules {
		matcher, err := e.resolveMatcher(rule)
		if err != nil {
			return nil, fmt.Errorf("rule %d (%s): %w", i, rule.PatternType, err)
		}
		if matcher == nil {
			// Unknown pattern type with no regex: a no-op, not an error.
			continue
		}

		count := 0
		working = matcher.ReplaceAllStringFunc(working, func(m string) string {
			count++
			return replaceMatch(m, rule.Replacement)
		})
		if count > 0 {
			matched[string(rule.PatternType)] = struct{}{}
			totalCount += count

			e.logger.Debug("Rule matched",
				zap.String("policy_id", policy.ID),
				zap.String("pattern_type", string(rule.PatternType)),
				zap.String("replacement", string(rule.Replacement)),
				zap.Int("count", count),
			)
		}
	}

	if policy.HasCategory(CategoryPII) {
		for _, pt := range builtinOrder {
			pattern := builtinPatterns[pt]
			count := len(pattern.FindAllStringIndex(working, -1))
			if count == 0 {
				continue
			}

			working = pattern.ReplaceAllString(working, builtinTokens[pt])
			matched[string(pt)] = struct{}{}
			totalCount += count

			e.logger.Debug("Built-in detector matched",
				zap.String("policy_id", policy.ID),
				zap.String("category", string(pt)),
				zap.Int("count", count),
			)
		}
	}

	categories := make([]string, 0, len(matched))
	for c := range matched {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	return &Result{
		RedactedContent: working,
		RedactionCount:  totalCount,
		PatternsMatched: categories,
		OriginalHash:    originalHash,
	}, nil
}

// resolveMatcher resolves the regex for a rule. Custom rules compile their
// user-supplied pattern case-insensitively per call; built-in types resolve
// from the fixed pattern table. A nil matcher with nil error means the rule
// matches nothing.
func (e *Engine) resolveMatcher(rule Rule) (*regexp.Regexp, error) {
	if rule.PatternType == PatternCustomRegex {
		if rule.Regex == "" {
			return nil, fmt.Errorf("%w: custom_regex rule has no pattern", ErrInvalidPattern)
		}
		matcher, err := regexp.Compile("(?i)" + rule.Regex)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPattern, err)
		}
		return matcher, nil
	}

	if pattern, ok := builtinPatterns[rule.PatternType]; ok {
		return pattern, nil
	}
	return nil, nil
}
