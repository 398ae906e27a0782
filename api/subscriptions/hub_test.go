// Copyright (c) 2025 The Vigil developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package subscriptions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigilprotocol/vigil/registry"
	"github.com/vigilprotocol/vigil/vigil"
)

func addr(b byte) vigil.Address {
	return vigil.BytesToAddress([]byte{b})
}

func addrPtr(b byte) *vigil.Address {
	a := addr(b)
	return &a
}

func TestHubFanOut(t *testing.T) {
	h := newHub()

	all := h.subscribe(filterSpec{})
	kind := registry.KindJailed
	jailedOnly := h.subscribe(filterSpec{kind: &kind})
	op2 := addr(0x02)
	op2Only := h.subscribe(filterSpec{operator: &op2})

	h.publish(&registry.Event{Block: 10, Kind: registry.KindOperatorRegistered, Operator: addrPtr(0x01)})
	h.publish(&registry.Event{Block: 11, Kind: registry.KindJailed, Operator: addrPtr(0x02), Challenger: addrPtr(0xC1)})

	assert.Len(t, all.ch, 2)
	require.Len(t, jailedOnly.ch, 1)
	got := <-jailedOnly.ch
	assert.Equal(t, uint64(11), got.Block)

	require.Len(t, op2Only.ch, 1)
	got = <-op2Only.ch
	assert.Equal(t, registry.KindJailed, got.Kind)

	h.unsubscribe(all)
	_, open := <-all.ch
	// drains the first buffered event
	assert.True(t, open)

	h.close()
	_, open = <-jailedOnly.ch
	assert.False(t, open)
}

func TestHubSlowConsumerDropped(t *testing.T) {
	h := newHub()
	sub := h.subscribe(filterSpec{})

	for i := 0; i < subQueueSize+1; i++ {
		h.publish(&registry.Event{Block: uint64(i), Kind: registry.KindTotalWeightUpdated})
	}

	// queue filled up, the subscriber was dropped and its channel closed
	count := 0
	for range sub.ch {
		count++
	}
	assert.Equal(t, subQueueSize, count)

	// publishing continues without subscribers
	h.publish(&registry.Event{Block: 99, Kind: registry.KindTotalWeightUpdated})
}

func TestHubSubscribeAfterClose(t *testing.T) {
	h := newHub()
	h.close()

	sub := h.subscribe(filterSpec{})
	_, open := <-sub.ch
	assert.False(t, open)
}

func TestFilterSpecMatch(t *testing.T) {
	kind := registry.KindEnrolled
	op := addr(0x01)
	ch := addr(0xC1)

	spec := filterSpec{kind: &kind, operator: &op, challenger: &ch}

	assert.True(t, spec.match(&registry.Event{Kind: registry.KindEnrolled, Operator: &op, Challenger: &ch}))
	assert.False(t, spec.match(&registry.Event{Kind: registry.KindUnenrolled, Operator: &op, Challenger: &ch}))
	assert.False(t, spec.match(&registry.Event{Kind: registry.KindEnrolled, Challenger: &ch}))
	other := addr(0x02)
	assert.False(t, spec.match(&registry.Event{Kind: registry.KindEnrolled, Operator: &other, Challenger: &ch}))

	assert.True(t, (&filterSpec{}).match(&registry.Event{Kind: registry.KindJailed}))
}
