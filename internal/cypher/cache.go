package cypher

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// statementCacheSize bounds the number of distinct query shapes kept
const statementCacheSize = 512

var statementCache = mustCache(statementCacheSize)

func mustCache(size int) *lru.Cache[string, string] {
	cache, err := lru.New[string, string](size)
	if err != nil {
		panic(err)
	}
	return cache
}

// cached returns the text for shape, rendering and storing it on a miss
func cached(shape string, render func() string) string {
	if text, ok := statementCache.Get(shape); ok {
		return text
	}
	text := render()
	statementCache.Add(shape, text)
	return text
}

// CachedStatements reports how many statement shapes are cached
func CachedStatements() int {
	return statementCache.Len()
}
