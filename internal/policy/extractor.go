package policy

import (
	"strconv"
	"strings"

	"admission-orchestrator/internal/common/logger"
	"admission-orchestrator/internal/common/metrics"
	"admission-orchestrator/internal/models"
)

// Label strings the extractor scans for. Policy documents are free text, so
// each rule is a labeled numeric token rather than structured data. Older
// revisions of the reference documents spelled some labels out in prose, so
// each rule accepts the known variants, canonical form first.
var ruleLabels = map[models.RuleKey][]string{
	models.RuleMinPercentage:   {"Minimum _PERCENTAGE_: ", "Minimum 12th grade percentage: "},
	models.RuleMaxLoanFraction: {"Maximum loan coverage: ", "Maximum loan: "},
	models.RuleCourseFee:       {"Total fee: "},
}

// Fallbacks are the pre-agreed conservative constants used when a rule cannot
// be located or parsed.
type Fallbacks struct {
	MinPercentage   float64
	MaxLoanFraction float64
	CourseFee       float64
}

func DefaultFallbacks() Fallbacks {
	return Fallbacks{
		MinPercentage:   60,
		MaxLoanFraction: 0.80,
		CourseFee:       10000,
	}
}

// Extractor parses numeric policy rules out of retrieved passages. It never
// returns an error: a missing or garbled reference document must not halt
// admissions, so failures degrade to a fallback-tagged fact instead.
type Extractor struct {
	fallbacks Fallbacks
	logger    logger.Logger
}

func NewExtractor(fallbacks Fallbacks, log logger.Logger) *Extractor {
	return &Extractor{
		fallbacks: fallbacks,
		logger:    log.WithFields(map[string]interface{}{"component": "policy-extractor"}),
	}
}

// ExtractNumericRule locates the labeled numeric token for key in passage.
// Callers must branch on the returned fact's Confidence tag.
func (e *Extractor) ExtractNumericRule(passage string, key models.RuleKey) models.PolicyFact {
	var fallback float64
	switch key {
	case models.RuleMinPercentage:
		fallback = e.fallbacks.MinPercentage
	case models.RuleMaxLoanFraction:
		fallback = e.fallbacks.MaxLoanFraction
	case models.RuleCourseFee:
		fallback = e.fallbacks.CourseFee
	default:
		e.logger.Warn("unknown rule key, returning fallback zero", map[string]interface{}{"rule": key})
		return e.fallbackFact(key, 0)
	}

	value, ok := parseFirstLabeledNumber(passage, ruleLabels[key])
	if !ok {
		e.logger.Warn("rule not parseable from passage, using fallback constant", map[string]interface{}{
			"rule":     key,
			"fallback": fallback,
		})
		return e.fallbackFact(key, fallback)
	}

	// Loan coverage is stated as a percentage in the documents but consumed as
	// a fraction of the course fee.
	if key == models.RuleMaxLoanFraction && value > 1 {
		value = value / 100
	}

	metrics.PolicyExtractions.WithLabelValues(string(key), string(models.ConfidenceParsed)).Inc()
	return models.PolicyFact{
		Key:        key,
		Value:      value,
		Confidence: models.ConfidenceParsed,
	}
}

func (e *Extractor) fallbackFact(key models.RuleKey, value float64) models.PolicyFact {
	metrics.PolicyExtractions.WithLabelValues(string(key), string(models.ConfidenceFallback)).Inc()
	return models.PolicyFact{
		Key:        key,
		Value:      value,
		Confidence: models.ConfidenceFallback,
	}
}

// parseFirstLabeledNumber tries each label variant in order and returns the
// first parseable match.
func parseFirstLabeledNumber(text string, labels []string) (float64, bool) {
	for _, label := range labels {
		if value, ok := parseLabeledNumber(text, label); ok {
			return value, true
		}
	}
	return 0, false
}

// parseLabeledNumber finds label in text and parses the numeric token that
// follows it, stopping at '%' or whitespace. Currency symbols and thousands
// separators are tolerated.
func parseLabeledNumber(text, label string) (float64, bool) {
	idx := strings.Index(text, label)
	if idx < 0 {
		return 0, false
	}
	rest := text[idx+len(label):]

	end := len(rest)
	for i, r := range rest {
		if r == '%' || r == '\n' || r == ' ' || r == '\t' {
			end = i
			break
		}
	}

	token := strings.TrimSpace(rest[:end])
	token = strings.TrimPrefix(token, "$")
	token = strings.ReplaceAll(token, ",", "")
	token = strings.TrimRight(token, ".,;:")
	if token == "" {
		return 0, false
	}

	value, err := strconv.ParseFloat(token, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}
