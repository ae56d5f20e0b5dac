// Package cache provides a generic soft-limit LRU cache.
//
// The host driver keeps compiled program units here, keyed by a hash of
// the program source, so rebuilding an unchanged program skips parsing.
//
//	c := cache.New[uint64, *unit](64)
//	u := c.GetOrCreate(key, func() *unit { return compile(src) })
//
// When the cache exceeds its soft limit the least recently used quarter
// of the entries is evicted.
//
// # Thread Safety
//
// Cache is safe for concurrent use and must not be copied after creation.
package cache
