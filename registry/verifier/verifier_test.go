// Copyright (c) 2025 The Vigil developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package verifier

import (
	"crypto/ecdsa"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigilprotocol/vigil/checkpoint"
	"github.com/vigilprotocol/vigil/test/datagen"
	"github.com/vigilprotocol/vigil/vigil"
)

type fakeSource struct {
	keys      map[vigil.Address]vigil.Address
	weights   map[vigil.Address]*uint256.Int
	total     *uint256.Int
	threshold *uint256.Int
	keyAt     func(op vigil.Address, block uint64) vigil.Address
}

func (f *fakeSource) SigningKeyAt(op vigil.Address, block uint64) vigil.Address {
	if f.keyAt != nil {
		return f.keyAt(op, block)
	}
	return f.keys[op]
}

func (f *fakeSource) WeightAt(op vigil.Address, _ uint64) *uint256.Int {
	if w := f.weights[op]; w != nil {
		return w
	}
	return new(uint256.Int)
}

func (f *fakeSource) TotalWeightAt(_ uint64) *uint256.Int     { return f.total }
func (f *fakeSource) ThresholdWeightAt(_ uint64) *uint256.Int { return f.threshold }

type fakeContractSigner struct {
	approve bool
	err     error
	calls   int
}

func (f *fakeContractSigner) VerifySignature(vigil.Address, vigil.Bytes32, []byte) (bool, error) {
	f.calls++
	return f.approve, f.err
}

type signer struct {
	op   vigil.Address
	key  *ecdsa.PrivateKey
	addr vigil.Address
}

func newSigner(t *testing.T, op byte) *signer {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return &signer{
		op:   vigil.BytesToAddress([]byte{op}),
		key:  key,
		addr: vigil.Address(crypto.PubkeyToAddress(key.PublicKey)),
	}
}

func (s *signer) sign(t *testing.T, hash vigil.Bytes32) []byte {
	sig, err := crypto.Sign(hash.Bytes(), s.key)
	require.NoError(t, err)
	return sig
}

// setup builds a source where each signer's operator maps to its recovered
// address with the given weight.
func setup(total, threshold uint64, signers []*signer, weights []uint64) *fakeSource {
	src := &fakeSource{
		keys:      make(map[vigil.Address]vigil.Address),
		weights:   make(map[vigil.Address]*uint256.Int),
		total:     uint256.NewInt(total),
		threshold: uint256.NewInt(threshold),
	}
	for i, s := range signers {
		src.keys[s.op] = s.addr
		src.weights[s.op] = uint256.NewInt(weights[i])
	}
	return src
}

func TestVerifyThresholdBoundary(t *testing.T) {
	hash := datagen.RandomHash()
	s1 := newSigner(t, 0x01)
	s2 := newSigner(t, 0x02)
	ops := []vigil.Address{s1.op, s2.op}
	sigs := [][]byte{s1.sign(t, hash), s2.sign(t, hash)}

	// summed weight exactly at the threshold passes
	src := setup(10000, 6000, []*signer{s1, s2}, []uint64{3000, 3000})
	assert.NoError(t, New(src, nil).Verify(hash, ops, sigs, 10))

	// one unit short fails
	src = setup(10000, 6000, []*signer{s1, s2}, []uint64{3000, 2999})
	err := New(src, nil).Verify(hash, ops, sigs, 10)
	assert.ErrorIs(t, err, ErrInsufficientSignedWeight)
}

func TestVerifyNotSorted(t *testing.T) {
	hash := datagen.RandomHash()
	sAA := newSigner(t, 0xaa)
	sBB := newSigner(t, 0xbb)
	src := setup(10000, 1, []*signer{sAA, sBB}, []uint64{5000, 5000})
	v := New(src, nil)

	// descending pair rejected regardless of weight
	err := v.Verify(hash,
		[]vigil.Address{sBB.op, sAA.op},
		[][]byte{sBB.sign(t, hash), sAA.sign(t, hash)}, 10)
	assert.ErrorIs(t, err, ErrNotSorted)

	// duplicates rejected by the same check
	err = v.Verify(hash,
		[]vigil.Address{sAA.op, sAA.op},
		[][]byte{sAA.sign(t, hash), sAA.sign(t, hash)}, 10)
	assert.ErrorIs(t, err, ErrNotSorted)
}

func TestVerifyLengthChecks(t *testing.T) {
	hash := datagen.RandomHash()
	s1 := newSigner(t, 0x01)
	src := setup(10000, 1, []*signer{s1}, []uint64{5000})
	v := New(src, nil)

	err := v.Verify(hash, []vigil.Address{s1.op}, nil, 10)
	assert.ErrorIs(t, err, ErrLengthMismatch)

	err = v.Verify(hash, nil, nil, 10)
	assert.ErrorIs(t, err, ErrEmptySignerSet)
}

func TestVerifyBadSignature(t *testing.T) {
	hash := datagen.RandomHash()
	s1 := newSigner(t, 0x01)
	impostor := newSigner(t, 0x02)
	src := setup(10000, 1, []*signer{s1}, []uint64{5000})
	v := New(src, nil)

	err := v.Verify(hash, []vigil.Address{s1.op}, [][]byte{impostor.sign(t, hash)}, 10)
	assert.ErrorIs(t, err, ErrInvalidSignature)

	err = v.Verify(hash, []vigil.Address{s1.op}, [][]byte{{0x01, 0x02}}, 10)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerifyNoSigningKey(t *testing.T) {
	hash := datagen.RandomHash()
	s1 := newSigner(t, 0x01)
	src := setup(10000, 1, nil, nil)
	v := New(src, nil)

	err := v.Verify(hash, []vigil.Address{s1.op}, [][]byte{s1.sign(t, hash)}, 10)
	assert.ErrorIs(t, err, ErrInvalidSignature)
	assert.Contains(t, err.Error(), "no signing key")
}

func TestVerifyExceedsTotal(t *testing.T) {
	hash := datagen.RandomHash()
	s1 := newSigner(t, 0x01)
	s2 := newSigner(t, 0x02)
	src := setup(10000, 1, []*signer{s1, s2}, []uint64{6000, 6001})
	v := New(src, nil)

	err := v.Verify(hash,
		[]vigil.Address{s1.op, s2.op},
		[][]byte{s1.sign(t, hash), s2.sign(t, hash)}, 10)
	assert.ErrorIs(t, err, ErrSignedWeightExceedsTotal)
}

func TestVerifyLegacyRecoveryID(t *testing.T) {
	hash := datagen.RandomHash()
	s1 := newSigner(t, 0x01)
	src := setup(10000, 1, []*signer{s1}, []uint64{5000})
	v := New(src, nil)

	// 27/28 style recovery ids are normalized before recovery
	sig := s1.sign(t, hash)
	sig[64] += 27
	assert.NoError(t, v.Verify(hash, []vigil.Address{s1.op}, [][]byte{sig}, 10))
	// the caller's slice is left untouched
	assert.GreaterOrEqual(t, sig[64], byte(27))
}

func TestVerifyKeyRotation(t *testing.T) {
	hash := datagen.RandomHash()
	oldKey := newSigner(t, 0x01)
	newKey := newSigner(t, 0x01)

	var history checkpoint.History[vigil.Address]
	require.NoError(t, history.Push(10, oldKey.addr))
	require.NoError(t, history.Push(50, newKey.addr))

	src := setup(10000, 1, []*signer{oldKey}, []uint64{5000})
	src.keyAt = func(_ vigil.Address, block uint64) vigil.Address {
		return history.AtBlock(block)
	}
	v := New(src, nil)

	ops := []vigil.Address{oldKey.op}
	oldSig := [][]byte{oldKey.sign(t, hash)}
	newSig := [][]byte{newKey.sign(t, hash)}

	assert.NoError(t, v.Verify(hash, ops, oldSig, 40))
	assert.ErrorIs(t, v.Verify(hash, ops, oldSig, 60), ErrInvalidSignature)
	assert.NoError(t, v.Verify(hash, ops, newSig, 60))
}

func TestVerifyContractSigner(t *testing.T) {
	hash := datagen.RandomHash()
	s1 := newSigner(t, 0x01)
	src := setup(10000, 1, []*signer{s1}, []uint64{5000})
	// the registered key belongs to a contract, not the recovered address
	contractKey := vigil.BytesToAddress([]byte{0xcc})
	src.keys[s1.op] = contractKey

	hook := &fakeContractSigner{approve: true}
	v := New(src, hook)
	assert.NoError(t, v.Verify(hash, []vigil.Address{s1.op}, [][]byte{s1.sign(t, hash)}, 10))
	assert.Equal(t, 1, hook.calls)

	hook = &fakeContractSigner{approve: false}
	v = New(src, hook)
	err := v.Verify(hash, []vigil.Address{s1.op}, [][]byte{s1.sign(t, hash)}, 10)
	assert.ErrorIs(t, err, ErrInvalidSignature)

	hook = &fakeContractSigner{err: errors.New("rpc unreachable")}
	v = New(src, hook)
	err = v.Verify(hash, []vigil.Address{s1.op}, [][]byte{s1.sign(t, hash)}, 10)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidSignature)
	assert.Contains(t, err.Error(), "rpc unreachable")
}

func TestVerifyMatchingKeySkipsContractHook(t *testing.T) {
	hash := datagen.RandomHash()
	s1 := newSigner(t, 0x01)
	src := setup(10000, 1, []*signer{s1}, []uint64{5000})

	hook := &fakeContractSigner{approve: false}
	v := New(src, hook)
	assert.NoError(t, v.Verify(hash, []vigil.Address{s1.op}, [][]byte{s1.sign(t, hash)}, 10))
	assert.Equal(t, 0, hook.calls)
}
