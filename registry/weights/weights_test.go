// Copyright (c) 2025 The Vigil developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package weights

import (
	"math/rand"
	"testing"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigilprotocol/vigil/registry/delta"
	"github.com/vigilprotocol/vigil/registry/operators"
	"github.com/vigilprotocol/vigil/registry/quorum"
	"github.com/vigilprotocol/vigil/vigil"
)

var (
	assetA = vigil.BytesToAddress([]byte{0x0a})
	assetB = vigil.BytesToAddress([]byte{0x0b})
	assetC = vigil.BytesToAddress([]byte{0x0c})
)

func addr(b byte) vigil.Address {
	return vigil.BytesToAddress([]byte{b})
}

type fakeCore struct {
	vaults   map[vigil.Address][]vigil.Address
	assets   map[vigil.Address]vigil.Address
	balances map[vigil.Address]map[vigil.Address]*uint256.Int
}

func newFakeCore() *fakeCore {
	return &fakeCore{
		vaults:   make(map[vigil.Address][]vigil.Address),
		assets:   make(map[vigil.Address]vigil.Address),
		balances: make(map[vigil.Address]map[vigil.Address]*uint256.Int),
	}
}

// stake wires a vault holding the given asset and balance for the operator.
func (f *fakeCore) stake(op, vault, asset vigil.Address, balance uint64) {
	found := false
	for _, v := range f.vaults[op] {
		if v == vault {
			found = true
			break
		}
	}
	if !found {
		f.vaults[op] = append(f.vaults[op], vault)
	}
	f.assets[vault] = asset
	if f.balances[op] == nil {
		f.balances[op] = make(map[vigil.Address]*uint256.Int)
	}
	f.balances[op][vault] = uint256.NewInt(balance)
}

func (f *fakeCore) StakedVaults(op vigil.Address) ([]vigil.Address, error) {
	return f.vaults[op], nil
}

func (f *fakeCore) VaultAsset(vault vigil.Address) (vigil.Address, error) {
	asset, ok := f.assets[vault]
	if !ok {
		return vigil.Address{}, errors.New("unknown vault")
	}
	return asset, nil
}

func (f *fakeCore) ReportableBalance(op, vault vigil.Address) (*uint256.Int, error) {
	if b := f.balances[op][vault]; b != nil {
		return b, nil
	}
	return new(uint256.Int), nil
}

func newTestQuorum(t *testing.T, min *uint256.Int) *quorum.Service {
	q, err := quorum.New(quorum.Quorum{
		{Asset: assetA, Weight: 6000},
		{Asset: assetB, Weight: 4000},
	}, min)
	require.NoError(t, err)
	return q
}

func TestComputeWeight(t *testing.T) {
	ledger := operators.NewLedger()
	core := newFakeCore()
	svc := New(ledger, newTestQuorum(t, nil), core)

	op := addr(0x01)
	core.stake(op, addr(0x10), assetA, 1000)
	core.stake(op, addr(0x11), assetB, 500)
	// assetC is outside the quorum and must not count
	core.stake(op, addr(0x12), assetC, 999999)

	w, err := svc.ComputeWeight(op)
	require.NoError(t, err)
	// (1000*6000 + 500*4000) / 10000
	assert.Equal(t, uint256.NewInt(800), w)
}

func TestComputeWeightNoVaults(t *testing.T) {
	svc := New(operators.NewLedger(), newTestQuorum(t, nil), newFakeCore())

	w, err := svc.ComputeWeight(addr(0x01))
	require.NoError(t, err)
	assert.True(t, w.IsZero())
}

func TestComputeWeightMinimumFloor(t *testing.T) {
	core := newFakeCore()
	svc := New(operators.NewLedger(), newTestQuorum(t, uint256.NewInt(100)), core)

	op := addr(0x01)
	core.stake(op, addr(0x10), assetA, 1)
	core.stake(op, addr(0x11), assetB, 1)

	// raw weight 1 is below the minimum of 100: floors to zero
	w, err := svc.ComputeWeight(op)
	require.NoError(t, err)
	assert.True(t, w.IsZero())

	// exactly the minimum passes
	core.stake(op, addr(0x10), assetA, 100)
	core.stake(op, addr(0x11), assetB, 100)
	w, err = svc.ComputeWeight(op)
	require.NoError(t, err)
	assert.Equal(t, uint256.NewInt(100), w)
}

func TestUpdateOperatorWeight(t *testing.T) {
	ledger := operators.NewLedger()
	core := newFakeCore()
	svc := New(ledger, newTestQuorum(t, nil), core)

	op := addr(0x01)
	ledger.GetOrCreate(op).SetRegistered(true)
	core.stake(op, addr(0x10), assetA, 1000)

	d, err := svc.UpdateOperatorWeight(op, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, d.Sign())
	assert.Equal(t, uint256.NewInt(600), d.Magnitude())
	assert.Equal(t, *uint256.NewInt(600), ledger.Get(op).Weights().Latest())

	// unchanged weight writes no checkpoint
	d, err = svc.UpdateOperatorWeight(op, 11)
	require.NoError(t, err)
	assert.True(t, d.IsZero())
	assert.Equal(t, 1, ledger.Get(op).Weights().Len())

	// stake drops, delta goes negative
	core.stake(op, addr(0x10), assetA, 500)
	d, err = svc.UpdateOperatorWeight(op, 12)
	require.NoError(t, err)
	assert.Equal(t, -1, d.Sign())
	assert.Equal(t, uint256.NewInt(300), d.Magnitude())
}

func TestUpdateOperatorWeightUnregistered(t *testing.T) {
	ledger := operators.NewLedger()
	core := newFakeCore()
	svc := New(ledger, newTestQuorum(t, nil), core)

	op := addr(0x01)
	rec := ledger.GetOrCreate(op)
	rec.SetRegistered(true)
	core.stake(op, addr(0x10), assetA, 1000)
	_, err := svc.UpdateOperatorWeight(op, 10)
	require.NoError(t, err)

	// deregistered operators are forced to zero despite remaining stake
	rec.SetRegistered(false)
	d, err := svc.UpdateOperatorWeight(op, 11)
	require.NoError(t, err)
	assert.Equal(t, -1, d.Sign())
	assert.Equal(t, uint256.NewInt(600), d.Magnitude())
	assert.True(t, rec.Weights().Latest().IsZero())
}

func TestUpdateTotalWeight(t *testing.T) {
	svc := New(operators.NewLedger(), newTestQuorum(t, nil), newFakeCore())

	total, err := svc.UpdateTotalWeight(delta.Of(uint256.NewInt(0), uint256.NewInt(100)), 10)
	require.NoError(t, err)
	assert.Equal(t, uint256.NewInt(100), total)
	assert.Equal(t, *uint256.NewInt(100), svc.Total().Latest())

	// a delta below zero is a bookkeeping violation
	_, err = svc.UpdateTotalWeight(delta.Of(uint256.NewInt(150), uint256.NewInt(0)), 11)
	assert.ErrorIs(t, err, delta.ErrNegativeTotal)
}

func TestUpdateOperatorsBatch(t *testing.T) {
	ledger := operators.NewLedger()
	core := newFakeCore()
	svc := New(ledger, newTestQuorum(t, nil), core)

	op1, op2 := addr(0x01), addr(0x02)
	ledger.GetOrCreate(op1).SetRegistered(true)
	ledger.GetOrCreate(op2).SetRegistered(true)
	core.stake(op1, addr(0x10), assetA, 1000)
	core.stake(op2, addr(0x20), assetB, 1000)

	changes, err := svc.UpdateOperators([]vigil.Address{op1, op2}, 10)
	require.NoError(t, err)
	require.Len(t, changes, 2)
	assert.Equal(t, op1, changes[0].Operator)
	assert.Equal(t, *uint256.NewInt(600), changes[0].Weight)
	assert.Equal(t, 1, changes[0].Delta.Sign())

	assert.Equal(t, *uint256.NewInt(600), ledger.Get(op1).Weights().Latest())
	assert.Equal(t, *uint256.NewInt(400), ledger.Get(op2).Weights().Latest())
	// batching folds both deltas into one aggregate checkpoint
	assert.Equal(t, *uint256.NewInt(1000), svc.Total().Latest())
	assert.Equal(t, 1, svc.Total().Len())
}

func TestUpdateOperatorsRejectsUnregistered(t *testing.T) {
	ledger := operators.NewLedger()
	core := newFakeCore()
	svc := New(ledger, newTestQuorum(t, nil), core)

	op1, op2 := addr(0x01), addr(0x02)
	ledger.GetOrCreate(op1).SetRegistered(true)
	core.stake(op1, addr(0x10), assetA, 1000)

	_, err := svc.UpdateOperators([]vigil.Address{op1, op2}, 10)
	assert.ErrorIs(t, err, operators.ErrNotRegistered)

	// all-or-nothing: nothing was written
	assert.Equal(t, 0, ledger.Get(op1).Weights().Len())
	assert.Equal(t, 0, svc.Total().Len())
}

func TestUpdateOperatorsCollaboratorFailure(t *testing.T) {
	ledger := operators.NewLedger()
	core := newFakeCore()
	svc := New(ledger, newTestQuorum(t, nil), core)

	op := addr(0x01)
	ledger.GetOrCreate(op).SetRegistered(true)
	// vault with no asset mapping makes VaultAsset fail
	core.vaults[op] = append(core.vaults[op], addr(0x10))

	_, err := svc.UpdateOperators([]vigil.Address{op}, 10)
	require.Error(t, err)
	assert.Equal(t, 0, ledger.Get(op).Weights().Len())
	assert.Equal(t, 0, svc.Total().Len())
}

func TestUpdateThreshold(t *testing.T) {
	svc := New(operators.NewLedger(), newTestQuorum(t, nil), newFakeCore())

	require.NoError(t, svc.UpdateThreshold(uint256.NewInt(6000), 10))
	require.NoError(t, svc.UpdateThreshold(uint256.NewInt(7000), 20))

	assert.Equal(t, *uint256.NewInt(7000), svc.Threshold().Latest())
	assert.Equal(t, *uint256.NewInt(6000), svc.Threshold().AtBlock(15))
}

// TestWeightConservation drives random register, deregister and stake-change
// sequences through the engine and checks after every step that the latest
// total equals the sum of the latest weights of registered operators.
func TestWeightConservation(t *testing.T) {
	ledger := operators.NewLedger()
	core := newFakeCore()
	svc := New(ledger, newTestQuorum(t, nil), core)

	r := rand.New(rand.NewPCG(42, 7))
	ops := []vigil.Address{addr(0x01), addr(0x02), addr(0x03), addr(0x04)}
	vaults := map[vigil.Address]vigil.Address{
		ops[0]: addr(0x10),
		ops[1]: addr(0x11),
		ops[2]: addr(0x12),
		ops[3]: addr(0x13),
	}

	block := uint64(1)
	for step := 0; step < 300; step++ {
		block++
		op := ops[r.IntN(len(ops))]
		rec := ledger.GetOrCreate(op)

		switch r.IntN(3) {
		case 0: // (re)register with fresh stake
			if !rec.Registered() {
				rec.SetRegistered(true)
			}
			core.stake(op, vaults[op], assetA, r.Uint64N(100_000))
			d, err := svc.UpdateOperatorWeight(op, block)
			require.NoError(t, err)
			_, err = svc.UpdateTotalWeight(d, block)
			require.NoError(t, err)
		case 1: // deregister
			rec.SetRegistered(false)
			d, err := svc.UpdateOperatorWeight(op, block)
			require.NoError(t, err)
			_, err = svc.UpdateTotalWeight(d, block)
			require.NoError(t, err)
		case 2: // stake change swept over all registered operators
			core.stake(op, vaults[op], assetA, r.Uint64N(100_000))
			var registered []vigil.Address
			for _, candidate := range ops {
				if ledger.IsRegistered(candidate) {
					registered = append(registered, candidate)
				}
			}
			_, err := svc.UpdateOperators(registered, block)
			require.NoError(t, err)
		}

		expected := new(uint256.Int)
		require.NoError(t, ledger.ForEachRegistered(func(_ vigil.Address, r *operators.Record) error {
			latest := r.Weights().Latest()
			expected.Add(expected, &latest)
			return nil
		}))
		total := svc.Total().Latest()
		require.Equal(t, *expected, total, "conservation broken at step %d", step)
	}
}
