// Copyright (c) 2025 The Vigil developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package checkpoint provides the append-only, block-indexed history ledger
// used to answer "value as of block X" queries.
package checkpoint

import (
	"io"
	"slices"
	"sort"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"
)

// ErrBlockOutOfOrder is returned when a push references a block lower than the
// last recorded checkpoint. Writers are serialized upstream, so hitting this
// means the caller broke the monotonic-block invariant.
var ErrBlockOutOfOrder = errors.New("checkpoint block out of order")

// Checkpoint is a single (block, value) entry of a History.
type Checkpoint[V comparable] struct {
	Block uint64
	Value V
}

// History is an ordered series of checkpoints with strictly increasing block
// numbers. The zero value is an empty, ready-to-use ledger. Entries are never
// deleted; the series grows for the lifetime of the tracked quantity.
//
// History is not safe for concurrent use; the owning registry serializes
// access.
type History[V comparable] struct {
	entries []Checkpoint[V]
}

// Push records value at the given block. Pushing at the block of the last
// checkpoint overwrites it instead of appending, so several writes within one
// block collapse into a single entry. Pushing a value equal to the current
// latest is skipped entirely; the observable query results do not change
// either way.
func (h *History[V]) Push(block uint64, value V) error {
	if n := len(h.entries); n > 0 {
		last := &h.entries[n-1]
		if block < last.Block {
			return errors.WithMessagef(ErrBlockOutOfOrder, "push at %d behind %d", block, last.Block)
		}
		if value == last.Value {
			return nil
		}
		if block == last.Block {
			last.Value = value
			return nil
		}
	}
	h.entries = append(h.entries, Checkpoint[V]{Block: block, Value: value})
	return nil
}

// Latest returns the most recently recorded value, or the zero value of V
// when the ledger is empty.
func (h *History[V]) Latest() (value V) {
	if n := len(h.entries); n > 0 {
		value = h.entries[n-1].Value
	}
	return
}

// LatestBlock returns the block of the newest checkpoint. ok is false when
// the ledger is empty.
func (h *History[V]) LatestBlock() (block uint64, ok bool) {
	if n := len(h.entries); n > 0 {
		return h.entries[n-1].Block, true
	}
	return 0, false
}

// AtBlock returns the value recorded by the newest checkpoint with a block
// number not greater than block, or the zero value of V when block precedes
// the first checkpoint. Callers enforce that block is strictly in the past of
// the current chain head; the ledger itself has no notion of "now".
func (h *History[V]) AtBlock(block uint64) (value V) {
	// first entry above block; the answer sits just before it
	i := sort.Search(len(h.entries), func(i int) bool {
		return h.entries[i].Block > block
	})
	if i > 0 {
		value = h.entries[i-1].Value
	}
	return
}

// Len returns the number of recorded checkpoints.
func (h *History[V]) Len() int {
	return len(h.entries)
}

// Checkpoint returns the i-th checkpoint, oldest first.
func (h *History[V]) Checkpoint(i int) Checkpoint[V] {
	return h.entries[i]
}

// Checkpoints returns a copy of all checkpoints, oldest first.
func (h *History[V]) Checkpoints() []Checkpoint[V] {
	return slices.Clone(h.entries)
}

// FromCheckpoints rebuilds a History from a previously exported checkpoint
// series, re-validating the strict block order.
func FromCheckpoints[V comparable](entries []Checkpoint[V]) (*History[V], error) {
	for i := 1; i < len(entries); i++ {
		if entries[i].Block <= entries[i-1].Block {
			return nil, errors.WithMessagef(ErrBlockOutOfOrder, "entry %d", i)
		}
	}
	return &History[V]{entries: slices.Clone(entries)}, nil
}

// EncodeRLP implements rlp.Encoder.
func (h *History[V]) EncodeRLP(w io.Writer) error {
	return rlp.Encode(w, h.entries)
}

// DecodeRLP implements rlp.Decoder.
func (h *History[V]) DecodeRLP(s *rlp.Stream) error {
	var entries []Checkpoint[V]
	if err := s.Decode(&entries); err != nil {
		return err
	}
	h.entries = entries
	return nil
}
