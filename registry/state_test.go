// Copyright (c) 2025 The Vigil developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package registry

import (
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigilprotocol/vigil/registry/enrollment"
	"github.com/vigilprotocol/vigil/vigil"
)

func TestStateRoundTrip(t *testing.T) {
	core := newFakeCore()
	reg := newTestRegistry(t, core, nil)

	op1, op2, op3 := addr(0x01), addr(0x02), addr(0x03)
	keyPriv, err := crypto.GenerateKey()
	require.NoError(t, err)
	signer := vigil.Address(crypto.PubkeyToAddress(keyPriv.PublicKey))

	core.stake(op1, addr(0x51), assetA, 1000)
	require.NoError(t, reg.RegisterOperator(op1, signer, 10))
	require.NoError(t, reg.RegisterOperator(op2, addr(0xE2), 11))
	require.NoError(t, reg.RegisterOperator(op3, addr(0xE3), 11))
	require.NoError(t, reg.Enroll(op1, challenger, 12))
	require.NoError(t, reg.Enroll(op3, challenger, 13))
	require.NoError(t, reg.StartUnenrollment(op3, challenger, 14))
	require.NoError(t, reg.Jail(op1, challenger, 15))
	require.NoError(t, reg.UpdateStakeThreshold(uint256.NewInt(500), 16))
	require.NoError(t, reg.UpdateMinimumWeight(uint256.NewInt(10), []vigil.Address{op1, op2}, 17))
	require.NoError(t, reg.DeregisterOperator(op2, 18))
	reg.OnBlock(30)

	data, err := reg.ExportState()
	require.NoError(t, err)

	// the encoding is deterministic
	again, err := reg.ExportState()
	require.NoError(t, err)
	assert.Equal(t, data, again)

	restored := newTestRegistry(t, core, nil)
	require.NoError(t, restored.RestoreState(data))

	assert.Equal(t, reg.Head(), restored.Head())
	assert.Equal(t, reg.TotalWeight(), restored.TotalWeight())
	assert.Equal(t, reg.ThresholdWeight(), restored.ThresholdWeight())
	assert.Equal(t, reg.MinimumWeight(), restored.MinimumWeight())
	assert.Equal(t, reg.Quorum(), restored.Quorum())
	assert.Equal(t, reg.QuorumVersion(), restored.QuorumVersion())
	assert.Equal(t, reg.Operators(), restored.Operators())

	status, _ := restored.EnrollmentStatus(op1, challenger)
	assert.Equal(t, enrollment.StatusEnrolled, status)
	status, start := restored.EnrollmentStatus(op3, challenger)
	assert.Equal(t, enrollment.StatusPendingUnenrollment, status)
	assert.Equal(t, uint64(14), start)
	status, _ = restored.EnrollmentStatus(op2, challenger)
	assert.Equal(t, enrollment.StatusUnenrolled, status)

	// historical queries survive the round trip
	w, err := restored.OperatorWeightAt(op1, 16)
	require.NoError(t, err)
	assert.Equal(t, uint256.NewInt(600), w)

	// signatures verify against the restored history
	hash := vigil.Blake2b([]byte("claim"))
	sig, err := crypto.Sign(hash.Bytes(), keyPriv)
	require.NoError(t, err)
	require.NoError(t, restored.Verify(hash, []vigil.Address{op1}, [][]byte{sig}, 20))

	// a restored registry re-exports to the same bytes and keeps mutating
	rexport, err := restored.ExportState()
	require.NoError(t, err)
	assert.Equal(t, data, rexport)
	require.NoError(t, restored.UpdateSigningKey(op1, addr(0xE9), 31))
}

func TestRestoreStateRejectsGarbage(t *testing.T) {
	core := newFakeCore()
	reg := newTestRegistry(t, core, nil)

	require.Error(t, reg.RestoreState([]byte{0x01, 0x02}))

	// the failed restore leaves the registry usable
	require.NoError(t, reg.RegisterOperator(addr(0x01), addr(0xE1), 10))
	assert.Equal(t, 1, reg.RegisteredCount())
}
