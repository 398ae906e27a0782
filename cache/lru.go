// Copyright (c) 2025 The Vigil developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package cache provides size-bounded caches with hit rate tracking.
package cache

import lru "github.com/hashicorp/golang-lru"

// LRU is a size-bounded cache with LRU eviction. Lookups through GetOrLoad
// feed the hit rate stats.
type LRU struct {
	*lru.Cache
	stats Stats
}

// NewLRU creates an LRU cache holding up to maxSize entries.
func NewLRU(maxSize int) (*LRU, error) {
	c, err := lru.New(maxSize)
	if err != nil {
		return nil, err
	}
	return &LRU{Cache: c}, nil
}

// Loader loads the value for a missing key.
type Loader func(key interface{}) (interface{}, error)

// GetOrLoad returns the cached value, invoking loader on a miss. A value
// enters the cache only when the loader succeeds, so a failed load is
// retried on the next lookup.
func (l *LRU) GetOrLoad(key interface{}, loader Loader) (interface{}, error) {
	if v, ok := l.Get(key); ok {
		l.stats.Hit()
		return v, nil
	}
	l.stats.Miss()

	v, err := loader(key)
	if err != nil {
		return nil, err
	}
	l.Add(key, v)
	return v, nil
}

// Stats reports lookup hits and misses, and whether the hit rate moved
// since the last call.
func (l *LRU) Stats() (bool, int64, int64) {
	return l.stats.Stats()
}
