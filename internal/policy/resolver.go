package policy

import (
	"context"
	"fmt"

	"admission-orchestrator/internal/common/logger"
	"admission-orchestrator/internal/corpus"
	"admission-orchestrator/internal/models"
)

// Retriever is the slice of the corpus index the resolver needs.
type Retriever interface {
	Query(ctx context.Context, text string, k int) ([]corpus.Match, error)
	Degraded() bool
}

// Resolver turns a rule key plus course into a PolicyFact: retrieve the most
// relevant passage, extract the labeled number, fall back conservatively.
// Only parsed facts are cached; fallback facts are recomputed so a recovered
// corpus takes effect without a cache flush.
type Resolver struct {
	retriever Retriever
	extractor *Extractor
	cache     *FactCache
	logger    logger.Logger
}

func NewResolver(retriever Retriever, extractor *Extractor, cache *FactCache, log logger.Logger) *Resolver {
	return &Resolver{
		retriever: retriever,
		extractor: extractor,
		cache:     cache,
		logger:    log.WithFields(map[string]interface{}{"component": "policy-resolver"}),
	}
}

// Resolve never returns an error; degraded retrieval and parse failures both
// surface as fallback-tagged facts so transitions are never blocked.
func (r *Resolver) Resolve(ctx context.Context, key models.RuleKey, course string) models.PolicyFact {
	if fact, ok := r.cache.Get(ctx, key, course); ok {
		return fact
	}

	var passage, sourceID string
	matches, err := r.retriever.Query(ctx, queryFor(key, course), 1)
	if err != nil {
		r.logger.Warn("retrieval failed, extractor will fall back", map[string]interface{}{
			"rule":  key,
			"error": err,
		})
	} else if len(matches) > 0 {
		passage = matches[0].Text
		sourceID = matches[0].SourceID
	}

	fact := r.extractor.ExtractNumericRule(passage, key)
	if fact.Parsed() {
		fact.SourceID = sourceID
		r.cache.Put(ctx, fact, course)
	}
	return fact
}

func queryFor(key models.RuleKey, course string) string {
	switch key {
	case models.RuleMinPercentage:
		return fmt.Sprintf("Eligibility criteria for %s", course)
	case models.RuleMaxLoanFraction:
		return "Student loan eligibility and policy"
	case models.RuleCourseFee:
		return fmt.Sprintf("Fee structure for %s", course)
	default:
		return string(key)
	}
}
