// internal/models/policy.go
package models

// Confidence tags how a PolicyFact was produced. Callers branch on it: a
// fallback-default fact may be logged as a warning but never blocks a transition.
type Confidence string

const (
	ConfidenceParsed   Confidence = "parsed"
	ConfidenceFallback Confidence = "fallback-default"
)

// RuleKey names a numeric policy rule extractable from the knowledge corpus.
type RuleKey string

const (
	RuleMinPercentage   RuleKey = "min_percentage"
	RuleMaxLoanFraction RuleKey = "max_loan_fraction"
	RuleCourseFee       RuleKey = "course_fee"
)

// PolicyFact is a named numeric rule extracted from a reference document.
type PolicyFact struct {
	Key        RuleKey    `json:"key"`
	Value      float64    `json:"value"`
	Confidence Confidence `json:"confidence"`
	SourceID   string     `json:"sourceId,omitempty"`
}

// Parsed reports whether the fact came from actual document text rather than a
// conservative fallback constant.
func (f PolicyFact) Parsed() bool {
	return f.Confidence == ConfidenceParsed
}
