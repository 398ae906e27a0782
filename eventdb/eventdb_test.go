// Copyright (c) 2025 The Vigil developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package eventdb

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/holiman/uint256"
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

func kindPtr(k registry.Kind) *registry.Kind {
	return &k
}

func seedEvents(t *testing.T, db *EventDB) {
	t.Helper()
	events := []*registry.Event{
		{Block: 10, Kind: registry.KindOperatorRegistered, Operator: addrPtr(0x01)},
		{Block: 10, Kind: registry.KindOperatorWeightUpdated, Operator: addrPtr(0x01), Amount: uint256.NewInt(600)},
		{Block: 10, Kind: registry.KindTotalWeightUpdated, Amount: uint256.NewInt(600)},
		{Block: 12, Kind: registry.KindEnrolled, Operator: addrPtr(0x01), Challenger: addrPtr(0xC1)},
		{Block: 20, Kind: registry.KindOperatorRegistered, Operator: addrPtr(0x02)},
		{Block: 30, Kind: registry.KindJailed, Operator: addrPtr(0x01), Challenger: addrPtr(0xC1)},
		{Block: 40, Kind: registry.KindOperatorWeightUpdated, Operator: addrPtr(0x02), Amount: new(uint256.Int)},
	}
	require.NoError(t, db.Append(context.Background(), events))
}

func TestAppendAndFilterAll(t *testing.T) {
	db, err := NewMem()
	require.NoError(t, err)
	defer db.Close()
	seedEvents(t, db)

	records, err := db.Filter(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, records, 7)

	// commit order, sequences strictly increasing
	for i := 1; i < len(records); i++ {
		assert.Greater(t, records[i].Sequence, records[i-1].Sequence)
	}
	assert.Equal(t, registry.KindOperatorRegistered, records[0].Kind)
	assert.Equal(t, addr(0x01), *records[0].Operator)
	assert.Nil(t, records[0].Amount)

	// a zero amount round-trips as zero, not as absent
	last := records[6]
	require.NotNil(t, last.Amount)
	assert.True(t, last.Amount.IsZero())

	seq, ok, err := db.Newest(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, records[6].Sequence, seq)
}

func TestFilterByBlockRange(t *testing.T) {
	db, err := NewMem()
	require.NoError(t, err)
	defer db.Close()
	seedEvents(t, db)

	records, err := db.Filter(context.Background(), &Filter{
		Range: &Range{From: 12, To: 30},
	})
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, registry.KindEnrolled, records[0].Kind)
	assert.Equal(t, registry.KindJailed, records[2].Kind)
}

func TestFilterByCriteria(t *testing.T) {
	db, err := NewMem()
	require.NoError(t, err)
	defer db.Close()
	seedEvents(t, db)

	// single column
	records, err := db.Filter(context.Background(), &Filter{
		CriteriaSet: []*Criteria{{Operator: addrPtr(0x02)}},
	})
	require.NoError(t, err)
	require.Len(t, records, 2)

	// AND within a criteria
	records, err = db.Filter(context.Background(), &Filter{
		CriteriaSet: []*Criteria{{
			Kind:     kindPtr(registry.KindOperatorWeightUpdated),
			Operator: addrPtr(0x01),
		}},
	})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, uint256.NewInt(600), records[0].Amount)

	// OR across criteria
	records, err = db.Filter(context.Background(), &Filter{
		CriteriaSet: []*Criteria{
			{Kind: kindPtr(registry.KindJailed)},
			{Kind: kindPtr(registry.KindEnrolled)},
		},
	})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, registry.KindEnrolled, records[0].Kind)
	assert.Equal(t, registry.KindJailed, records[1].Kind)
}

func TestFilterOrderAndPaging(t *testing.T) {
	db, err := NewMem()
	require.NoError(t, err)
	defer db.Close()
	seedEvents(t, db)

	records, err := db.Filter(context.Background(), &Filter{
		Order:   DESC,
		Options: &Options{Offset: 0, Limit: 2},
	})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, uint64(40), records[0].Block)
	assert.Equal(t, uint64(30), records[1].Block)

	records, err = db.Filter(context.Background(), &Filter{
		Order:   DESC,
		Options: &Options{Offset: 2, Limit: 2},
	})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, uint64(20), records[0].Block)
	assert.Equal(t, uint64(12), records[1].Block)
}

func TestFilterCancelledContext(t *testing.T) {
	db, err := NewMem()
	require.NoError(t, err)
	defer db.Close()
	seedEvents(t, db)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = db.Filter(ctx, nil)
	require.Error(t, err)
}

func TestPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.db")

	db, err := New(path)
	require.NoError(t, err)
	seedEvents(t, db)
	require.NoError(t, db.Close())

	db, err = New(path)
	require.NoError(t, err)
	defer db.Close()

	records, err := db.Filter(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, records, 7)
	assert.Equal(t, path, db.Path())
}
