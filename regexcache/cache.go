// Package regexcache implements the process-wide concurrent memoizing
// pattern-string to compiled-regex cache used by MATCH/NOT_MATCH
// constraints (spec.md §4.2.4, §9). A compile failure is never cached as
// a permanent poison: it re-fails on the next lookup so a caller cannot
// be permanently punished for a transient pattern typo making it into
// the cache before the real one.
package regexcache

import (
	"regexp"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultSize bounds the number of distinct compiled patterns retained.
// RAM programs draw patterns from a fixed, compiled-in set of MATCH/
// NOT_MATCH constraints, so this comfortably covers real programs while
// keeping the cache's memory bounded (spec.md's Non-goals exclude
// persistent/unbounded storage growth).
const DefaultSize = 1024

// Cache is a thread-safe pattern -> compiled regex memoizer.
type Cache struct {
	lru *lru.Cache[string, *regexp.Regexp]
}

// New returns a Cache holding up to size distinct compiled patterns.
func New(size int) *Cache {
	if size <= 0 {
		size = DefaultSize
	}
	c, err := lru.New[string, *regexp.Regexp](size)
	if err != nil {
		// Only returns an error for a non-positive size, which is
		// excluded above.
		panic(err)
	}
	return &Cache{lru: c}
}

// Compile returns the compiled regex for pattern, compiling and caching
// it on first use. It returns the compile error on failure without
// caching anything, so the next call retries the compile (spec.md §9).
func (c *Cache) Compile(pattern string) (*regexp.Regexp, error) {
	if re, ok := c.lru.Get(pattern); ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	c.lru.Add(pattern, re)
	return re, nil
}
