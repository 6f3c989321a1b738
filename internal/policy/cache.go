package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"admission-orchestrator/internal/common/logger"
	"admission-orchestrator/internal/models"

	"github.com/redis/go-redis/v9"
)

// FactCache caches resolved policy facts in Redis so repeated transitions for
// the same course skip retrieval and parsing. A nil cache, or any Redis error,
// is a silent miss: caching never affects workflow correctness.
type FactCache struct {
	client *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

func NewFactCache(client *redis.Client, ttl time.Duration, log logger.Logger) *FactCache {
	return &FactCache{
		client: client,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "policy-fact-cache"}),
	}
}

func cacheKey(key models.RuleKey, course string) string {
	return fmt.Sprintf("policy:fact:%s:%s", key, course)
}

func (c *FactCache) Get(ctx context.Context, key models.RuleKey, course string) (models.PolicyFact, bool) {
	if c == nil || c.client == nil {
		return models.PolicyFact{}, false
	}

	raw, err := c.client.Get(ctx, cacheKey(key, course)).Result()
	if err != nil {
		if err != redis.Nil {
			c.logger.Debug("cache read failed", map[string]interface{}{"error": err})
		}
		return models.PolicyFact{}, false
	}

	var fact models.PolicyFact
	if err := json.Unmarshal([]byte(raw), &fact); err != nil {
		c.logger.Debug("cache entry corrupt, ignoring", map[string]interface{}{"error": err})
		return models.PolicyFact{}, false
	}
	return fact, true
}

func (c *FactCache) Put(ctx context.Context, fact models.PolicyFact, course string) {
	if c == nil || c.client == nil {
		return
	}

	raw, err := json.Marshal(fact)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, cacheKey(fact.Key, course), raw, c.ttl).Err(); err != nil {
		c.logger.Debug("cache write failed", map[string]interface{}{"error": err})
	}
}
