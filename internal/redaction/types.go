package redaction

// PatternType identifies what a redaction rule matches.
type PatternType string

const (
	PatternEmail       PatternType = "email"
	PatternPhone       PatternType = "phone"
	PatternSSN         PatternType = "ssn"
	PatternCreditCard  PatternType = "credit_card"
	PatternCustomRegex PatternType = "custom_regex"
)

// Strategy identifies how a matched substring is replaced.
type Strategy string

const (
	StrategyMask     Strategy = "mask"
	StrategyHash     Strategy = "hash"
	StrategyRemove   Strategy = "remove"
	StrategyTokenize Strategy = "tokenize"
)

// PolicyStatus is the lifecycle state of a policy.
type PolicyStatus string

const (
	PolicyActive   PolicyStatus = "active"
	PolicyInactive PolicyStatus = "inactive"
)

// CategoryPII is the data category that turns on the built-in detection pass.
const CategoryPII = "pii"

// Rule is a single pattern-type + replacement-strategy pair. Rules are
// evaluated in policy order and each rule sees the output of the previous one.
type Rule struct {
	PatternType PatternType `json:"pattern_type" db:"pattern_type"`
	Regex       string      `json:"regex,omitempty" db:"regex"`
	Replacement Strategy    `json:"replacement" db:"replacement"`
}

// Policy is an organization-scoped redaction configuration. The engine treats
// it as read-only input; ownership lives with the policy store.
type Policy struct {
	ID             string       `json:"id"`
	OrgID          string       `json:"org_id"`
	Status         PolicyStatus `json:"status"`
	DataCategories []string     `json:"data_categories"`
	Rules          []Rule       `json:"redaction_rules"`
}

// HasCategory reports whether the policy enables the given data category.
func (p *Policy) HasCategory(category string) bool {
	for _, c := range p.DataCategories {
		if c == category {
			return true
		}
	}
	return false
}

// Result is the outcome of a single engine application.
type Result struct {
	RedactedContent string   `json:"redacted_content"`
	RedactionCount  int      `json:"redaction_count"`
	PatternsMatched []string `json:"patterns_matched"`
	OriginalHash    string   `json:"original_hash"`
}
