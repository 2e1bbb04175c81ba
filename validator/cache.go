package validator

import "sync"

// cacheEntry holds the extraction result of one template. once guarantees
// the template is parsed at most once even when several experiments ask for
// it at the same time.
type cacheEntry struct {
	once sync.Once
	vars VariableSet
	err  error
}

// VariableCache memoizes free variable sets by template name for the
// lifetime of one generation run. Templates are immutable during a run, so
// entries are never invalidated; a new run uses a new cache.
//
// Thread-safety: All methods are safe for concurrent use.
type VariableCache struct {
	mu      sync.RWMutex           // Protects the entries map, not the entries
	entries map[string]*cacheEntry // Keyed by template name
	opts    []Option
}

// NewVariableCache returns an empty cache whose extractions use opts.
func NewVariableCache(opts ...Option) *VariableCache {
	return &VariableCache{
		entries: make(map[string]*cacheEntry, 16),
		opts:    opts,
	}
}

// Get returns the free variables of the named template. On the first call
// for a name, load supplies the template source; later calls reuse the
// result, including a failed one.
func (c *VariableCache) Get(name string, load func() (string, error)) (VariableSet, error) {
	e := c.entry(name)
	e.once.Do(func() {
		src, err := load()
		if err != nil {
			e.err = err
			return
		}
		e.vars, e.err = ExtractFreeVariables(name, src, c.opts...)
	})
	return e.vars, e.err
}

// Len returns the number of templates requested so far.
func (c *VariableCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// entry returns the entry for name, inserting an empty one if absent.
func (c *VariableCache) entry(name string) *cacheEntry {
	c.mu.RLock()
	e, ok := c.entries[name]
	c.mu.RUnlock()
	if ok {
		return e
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[name]; ok {
		return e
	}
	e = &cacheEntry{}
	c.entries[name] = e
	return e
}
