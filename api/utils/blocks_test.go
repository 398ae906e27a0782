// Copyright (c) 2025 The Vigil developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBlockRef(t *testing.T) {
	for _, input := range []string{"", "latest"} {
		ref, err := ParseBlockRef(input)
		require.NoError(t, err)
		assert.True(t, ref.IsLatest())
		_, ok := ref.Number()
		assert.False(t, ok)
	}

	ref, err := ParseBlockRef("1024")
	require.NoError(t, err)
	assert.False(t, ref.IsLatest())
	n, ok := ref.Number()
	require.True(t, ok)
	assert.Equal(t, uint64(1024), n)

	// hex form is accepted as well
	ref, err = ParseBlockRef("0x10")
	require.NoError(t, err)
	n, ok = ref.Number()
	require.True(t, ok)
	assert.Equal(t, uint64(16), n)

	for _, input := range []string{"nope", "-1", "1.5"} {
		_, err := ParseBlockRef(input)
		assert.Error(t, err, input)
	}
}
