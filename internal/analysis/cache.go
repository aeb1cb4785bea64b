package analysis

import (
	"strconv"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/lueurxax/channel-observatory/internal/core/domain"
	"github.com/lueurxax/channel-observatory/internal/platform/observability"
)

const cacheCleanupInterval = 10 * time.Minute

// resultCache memoises network responses, which are costly to rebuild.
type resultCache struct {
	store *gocache.Cache
}

func newResultCache(ttl time.Duration) *resultCache {
	if ttl <= 0 {
		return nil
	}

	return &resultCache{store: gocache.New(ttl, cacheCleanupInterval)}
}

func (c *resultCache) get(key string) (any, bool) {
	if c == nil {
		return nil, false
	}

	val, ok := c.store.Get(key)
	if ok {
		observability.AnalysisCacheLookups.WithLabelValues("hit").Inc()
	} else {
		observability.AnalysisCacheLookups.WithLabelValues("miss").Inc()
	}

	return val, ok
}

func (c *resultCache) set(key string, val any) {
	if c == nil {
		return
	}

	c.store.SetDefault(key, val)
}

func (c *resultCache) flush() {
	if c == nil {
		return
	}

	c.store.Flush()
}

// cacheKey identifies a query by route and normalised parameters.
func cacheKey(route string, seedLists []string, r domain.DateRange, extra string) string {
	return strings.Join([]string{
		route,
		strings.Join(seedLists, ","),
		strconv.FormatInt(r.Start.UnixNano(), 10),
		strconv.FormatInt(r.End.UnixNano(), 10),
		extra,
	}, "|")
}
