package hilbert

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/hupe1980/sfcgo/sfc"
)

// maxCachedQueries bounds the process-wide decomposition cache.
const maxCachedQueries = 500

var (
	cacheMu    sync.Mutex
	queryCache *lru.Cache[string, sfc.RangeDecomposition]
	cacheGroup singleflight.Group
)

func decompositionCache() *lru.Cache[string, sfc.RangeDecomposition] {
	cacheMu.Lock()
	defer cacheMu.Unlock()
	if queryCache == nil {
		// Capacity is static and positive, lru.New cannot fail.
		queryCache, _ = lru.New[string, sfc.RangeDecomposition](maxCachedQueries)
	}
	return queryCache
}

// cachedDecomposition returns the cached decomposition for key, invoking
// compute on a miss. Concurrent misses on the same key collapse into a
// single computation.
func cachedDecomposition(key string, compute func() sfc.RangeDecomposition) sfc.RangeDecomposition {
	cache := decompositionCache()
	if decomp, ok := cache.Get(key); ok {
		return decomp
	}
	v, _, _ := cacheGroup.Do(key, func() (any, error) {
		decomp := compute()
		cache.Add(key, decomp)
		return decomp, nil
	})
	return v.(sfc.RangeDecomposition)
}

// ResetDecompositionCache clears the process-wide decomposition cache.
// Intended for tests.
func ResetDecompositionCache() {
	cacheMu.Lock()
	defer cacheMu.Unlock()
	if queryCache != nil {
		queryCache.Purge()
	}
}
