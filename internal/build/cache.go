package build

// cache memoizes successful build results per (build name, resolved ref)
// for the process lifetime. A ref change yields a distinct key, so the same
// build against different snapshots compiles once each.
type cache struct {
	results map[cacheKey]Result
}

type cacheKey struct {
	name string
	ref  string
}

func newCache() *cache {
	return &cache{results: map[cacheKey]Result{}}
}

// lookup returns the cached result rewritten to the cached status, or
// false when the key is absent.
func (c *cache) lookup(name, ref string) (Result, bool) {
	res, ok := c.results[cacheKey{name: name, ref: ref}]
	if !ok {
		return Result{}, false
	}
	res.Status = StatusCached
	res.Cached = true
	return res, true
}

// store records a result; only successes are worth remembering.
func (c *cache) store(name, ref string, res Result) {
	if res.Status != StatusSuccess {
		return
	}
	c.results[cacheKey{name: name, ref: ref}] = res
}

// invalidate drops the entry for (name, ref), or every ref of the build
// when ref is empty. It returns the number of entries removed.
func (c *cache) invalidate(name, ref string) int {
	if ref != "" {
		key := cacheKey{name: name, ref: ref}
		if _, ok := c.results[key]; !ok {
			return 0
		}
		delete(c.results, key)
		return 1
	}
	n := 0
	for key := range c.results {
		if key.name == name {
			delete(c.results, key)
			n++
		}
	}
	return n
}
