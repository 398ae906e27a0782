// Copyright (c) 2025 The Vigil developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package node

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigilprotocol/vigil/registry"
	"github.com/vigilprotocol/vigil/registry/quorum"
	"github.com/vigilprotocol/vigil/vigil"
)

type stubCore struct{}

func (stubCore) StakedVaults(vigil.Address) ([]vigil.Address, error) { return nil, nil }
func (stubCore) VaultAsset(vigil.Address) (vigil.Address, error) {
	return vigil.Address{}, errors.New("unknown vault")
}
func (stubCore) ReportableBalance(vigil.Address, vigil.Address) (*uint256.Int, error) {
	return uint256.NewInt(0), nil
}

type stubDirectory struct{}

func (stubDirectory) ChallengeDelay(vigil.Address) (uint64, error) {
	return 0, errors.New("unknown challenger")
}

type stubChain struct {
	head   uint64
	synced bool
}

func (s *stubChain) ChainHead() uint64 { return s.head }
func (s *stubChain) Synced() bool      { return s.synced }

func TestNodeStatus(t *testing.T) {
	reg, err := registry.New(registry.Options{
		Quorum:          quorum.Quorum{{Asset: vigil.BytesToAddress([]byte{0xA1}), Weight: 10000}},
		ThresholdWeight: uint256.NewInt(600),
		GenesisBlock:    100,
		Core:            stubCore{},
		Directory:       stubDirectory{},
	})
	require.NoError(t, err)
	reg.OnBlock(128)

	genesisID := vigil.Blake2b([]byte("genesis"))

	router := mux.NewRouter()
	New(reg, genesisID, &stubChain{head: 130, synced: true}).Mount(router, "/node")
	ts := httptest.NewServer(router)
	defer ts.Close()

	res, err := http.Get(ts.URL + "/node/status")
	require.NoError(t, err)
	body, err := io.ReadAll(res.Body)
	require.NoError(t, res.Body.Close())
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)

	var status Status
	require.NoError(t, json.Unmarshal(body, &status))
	assert.Equal(t, uint64(128), status.Head)
	assert.Equal(t, genesisID, status.GenesisID)
	assert.Equal(t, 0, status.OperatorCount)
	assert.Equal(t, uint256.NewInt(600), status.ThresholdWeight)
	require.NotNil(t, status.ChainHead)
	assert.Equal(t, uint64(130), *status.ChainHead)
	require.NotNil(t, status.Synced)
	assert.True(t, *status.Synced)
}

func TestNodeStatusDetached(t *testing.T) {
	reg, err := registry.New(registry.Options{
		Quorum:    quorum.Quorum{{Asset: vigil.BytesToAddress([]byte{0xA1}), Weight: 10000}},
		Core:      stubCore{},
		Directory: stubDirectory{},
	})
	require.NoError(t, err)

	router := mux.NewRouter()
	New(reg, vigil.Bytes32{}, nil).Mount(router, "/node")
	ts := httptest.NewServer(router)
	defer ts.Close()

	res, err := http.Get(ts.URL + "/node/status")
	require.NoError(t, err)
	body, err := io.ReadAll(res.Body)
	require.NoError(t, res.Body.Close())
	require.NoError(t, err)

	var status Status
	require.NoError(t, json.Unmarshal(body, &status))
	assert.Nil(t, status.ChainHead)
	assert.Nil(t, status.Synced)
}
