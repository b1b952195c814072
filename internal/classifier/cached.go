package classifier

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"sjsage522/reviewworker/internal/crawler"
	"sjsage522/reviewworker/logger"
	apperrors "sjsage522/reviewworker/pkg/errors"
	"sjsage522/reviewworker/services/cache"
)

// CachedClassifier remembers role assignments for identical selector
// mappings. A miss still costs exactly one request to the wrapped classifier.
type CachedClassifier struct {
	next crawler.RoleClassifier
	svc  cache.CacheService
	ttl  time.Duration
	log  *logger.Logger
}

// NewCachedClassifier wraps next with svc
func NewCachedClassifier(next crawler.RoleClassifier, svc cache.CacheService, ttl time.Duration) *CachedClassifier {
	return &CachedClassifier{
		next: next,
		svc:  svc,
		ttl:  ttl,
		log:  logger.ForCache(),
	}
}

// CacheKey derives the cache key of a selector mapping
func CacheKey(selectors map[string]string) (string, error) {
	data, err := json.Marshal(selectors)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return "roles:" + hex.EncodeToString(sum[:]), nil
}

func (c *CachedClassifier) Classify(ctx context.Context, selectors map[string]string) crawler.RoleAssignment {
	key, err := CacheKey(selectors)
	if err != nil {
		c.log.Warn().Err(apperrors.NewCache("failed to derive cache key", err)).Msg("Bypassing role cache")
		return c.next.Classify(ctx, selectors)
	}
	log := c.log.WithField("key", key)

	if roles, ok := c.lookup(key, log); ok {
		log.Debug().Msg("Role cache hit")
		return roles
	}

	roles := c.next.Classify(ctx, selectors)
	if roles.IsAbsent() {
		return roles
	}

	data, err := json.Marshal(roles)
	if err != nil {
		log.Warn().Err(apperrors.NewCache("failed to encode roles", err)).Msg("Role cache store skipped")
		return roles
	}
	if err := c.svc.Set(key, data, c.ttl); err != nil {
		log.Warn().Err(apperrors.NewCache("failed to store roles", err)).Msg("Role cache store failed")
	}
	return roles
}

func (c *CachedClassifier) lookup(key string, log *logger.Logger) (crawler.RoleAssignment, bool) {
	data, err := c.svc.Get(key)
	if errors.Is(err, cache.ErrCacheMiss) {
		return crawler.AbsentRoles(), false
	}
	if err != nil {
		log.Warn().Err(apperrors.NewCache("failed to read roles", err)).Msg("Role cache lookup failed")
		return crawler.AbsentRoles(), false
	}

	var roles crawler.RoleAssignment
	if err := json.Unmarshal(data, &roles); err != nil || roles.IsAbsent() {
		log.Warn().Msg("Discarding unusable cached roles")
		_ = c.svc.Delete(key)
		return crawler.AbsentRoles(), false
	}
	return roles, true
}
