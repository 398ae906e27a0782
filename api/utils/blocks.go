// Copyright (c) 2025 The Vigil developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package utils

import (
	"strconv"
)

const refLatest int64 = -1

// BlockRef selects either the live view or a historical block.
type BlockRef struct {
	val any
}

func (ref *BlockRef) IsLatest() bool {
	return ref.val == refLatest
}

// Number returns the referenced block number, or false for the live view.
func (ref *BlockRef) Number() (uint64, bool) {
	n, ok := ref.val.(uint64)
	return n, ok
}

// ParseBlockRef parses a query parameter into a block reference.
// Empty input and "latest" both select the live view.
func ParseBlockRef(block string) (*BlockRef, error) {
	if block == "" || block == "latest" {
		return &BlockRef{refLatest}, nil
	}
	n, err := strconv.ParseUint(block, 0, 64)
	if err != nil {
		return nil, err
	}
	return &BlockRef{n}, nil
}
