// Copyright (c) 2025 The Vigil developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package health

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusTransitions(t *testing.T) {
	h := New(time.Minute)

	status, err := h.Status()
	require.NoError(t, err)
	assert.False(t, status.Healthy)
	assert.Nil(t, status.HeadIngestion.IngestedAt)

	h.NewHead(10)
	status, err = h.Status()
	require.NoError(t, err)
	assert.False(t, status.Healthy, "not synced yet")
	assert.Equal(t, uint64(10), status.HeadIngestion.Head)

	h.ChainSyncStatus(true)
	status, err = h.Status()
	require.NoError(t, err)
	assert.True(t, status.Healthy)

	h.ChainSyncStatus(false)
	status, err = h.Status()
	require.NoError(t, err)
	assert.False(t, status.Healthy)
}

func TestStaleHead(t *testing.T) {
	h := New(time.Millisecond)
	h.NewHead(1)
	h.ChainSyncStatus(true)

	time.Sleep(5 * time.Millisecond)

	status, err := h.Status()
	require.NoError(t, err)
	assert.False(t, status.Healthy)

	// a wider window rehabilitates the same head
	status, err = h.StatusWithin(time.Minute)
	require.NoError(t, err)
	assert.True(t, status.Healthy)
}
