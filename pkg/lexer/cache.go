package lexer

import (
	"slices"
	"sync"

	"github.com/leapstack-labs/sqlsense/pkg/token"
)

// Cache memoizes the token stream of the most recently scanned text.
//
// Editors re-request completion many times for the same buffer, so a single
// entry keyed by the exact text covers the common case. Any change to the text
// is a miss and replaces the entry.
type Cache struct {
	mu     sync.Mutex
	text   string
	tokens []token.Token
	valid  bool

	hits   int
	misses int
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{}
}

// Tokenize returns the token stream for text, scanning only on a miss.
// The result is a copy, so callers may modify it freely.
func (c *Cache) Tokenize(text string) []token.Token {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.valid && c.text == text {
		c.hits++
		return slices.Clone(c.tokens)
	}
	c.misses++
	c.text = text
	c.tokens = Tokenize(text)
	c.valid = true
	return slices.Clone(c.tokens)
}

// Invalidate drops the cached entry.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.text = ""
	c.tokens = nil
	c.valid = false
}

// Stats returns the hit and miss counters.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}
