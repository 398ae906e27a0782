// Copyright (c) 2025 The Vigil developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package cache

import "sync/atomic"

// Stats counts cache hits and misses.
type Stats struct {
	hit, miss atomic.Int64
	mark      atomic.Int32
}

// Hit records a hit.
func (s *Stats) Hit() int64 { return s.hit.Add(1) }

// Miss records a miss.
func (s *Stats) Miss() int64 { return s.miss.Add(1) }

// Stats returns the hit and miss counts and whether the hit rate moved
// since the last call. Movements below a tenth of a percent do not count,
// keeping periodic reporters quiet on a stable cache.
func (s *Stats) Stats() (bool, int64, int64) {
	hit := s.hit.Load()
	miss := s.miss.Load()

	rate := float64(0)
	if lookups := hit + miss; lookups > 0 {
		rate = float64(hit) / float64(lookups)
	}
	mark := int32(rate * 1000)
	return s.mark.Swap(mark) != mark, hit, miss
}
