// Copyright (c) 2025 The Vigil developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package operators

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

var (
	assetA     = addr(0xA1)
	assetB     = addr(0xA2)
	challenger = addr(0xC1)
	op1        = addr(0x01)
	signer1    = addr(0x11)
	vault1     = addr(0x51)

	ts *httptest.Server
)

func addr(b byte) vigil.Address {
	return vigil.BytesToAddress([]byte{b})
}

type stubCore struct {
	vaults   map[vigil.Address][]vigil.Address
	assets   map[vigil.Address]vigil.Address
	balances map[[2]vigil.Address]*uint256.Int
}

func (c *stubCore) StakedVaults(op vigil.Address) ([]vigil.Address, error) {
	return c.vaults[op], nil
}

func (c *stubCore) VaultAsset(vault vigil.Address) (vigil.Address, error) {
	asset, ok := c.assets[vault]
	if !ok {
		return vigil.Address{}, errors.New("unknown vault")
	}
	return asset, nil
}

func (c *stubCore) ReportableBalance(op, vault vigil.Address) (*uint256.Int, error) {
	if b, ok := c.balances[[2]vigil.Address{op, vault}]; ok {
		return b.Clone(), nil
	}
	return uint256.NewInt(0), nil
}

type stubDirectory map[vigil.Address]uint64

func (d stubDirectory) ChallengeDelay(ch vigil.Address) (uint64, error) {
	delay, ok := d[ch]
	if !ok {
		return 0, errors.New("unknown challenger")
	}
	return delay, nil
}

func initOperatorsServer(t *testing.T) *registry.Registry {
	core := &stubCore{
		vaults:   map[vigil.Address][]vigil.Address{op1: {vault1}},
		assets:   map[vigil.Address]vigil.Address{vault1: assetA},
		balances: map[[2]vigil.Address]*uint256.Int{{op1, vault1}: uint256.NewInt(1000)},
	}
	reg, err := registry.New(registry.Options{
		Quorum: quorum.Quorum{
			{Asset: assetA, Weight: 6000},
			{Asset: assetB, Weight: 4000},
		},
		ThresholdWeight: uint256.NewInt(600),
		Core:            core,
		Directory:       stubDirectory{challenger: 100},
	})
	require.NoError(t, err)

	require.NoError(t, reg.RegisterOperator(op1, signer1, 10))
	require.NoError(t, reg.Enroll(op1, challenger, 12))
	reg.OnBlock(20)

	router := mux.NewRouter()
	New(reg).Mount(router, "/operators")
	ts = httptest.NewServer(router)
	return reg
}

func httpGet(t *testing.T, url string) ([]byte, int) {
	res, err := http.Get(url) //#nosec G107
	require.NoError(t, err)
	body, err := io.ReadAll(res.Body)
	require.NoError(t, res.Body.Close())
	require.NoError(t, err)
	return body, res.StatusCode
}

func TestOperators(t *testing.T) {
	initOperatorsServer(t)
	defer ts.Close()

	for name, tt := range map[string]func(*testing.T){
		"listOperators":     testListOperators,
		"getOperator":       testGetOperator,
		"getVaults":         testGetVaults,
		"getChallengers":    testGetChallengers,
		"getKeyHistorical":  testGetKeyHistorical,
		"getWeightLiveView": testGetWeightLiveView,
	} {
		t.Run(name, tt)
	}
}

func testListOperators(t *testing.T) {
	body, status := httpGet(t, ts.URL+"/operators")
	assert.Equal(t, http.StatusOK, status)

	var ops []*Operator
	require.NoError(t, json.Unmarshal(body, &ops))
	require.Len(t, ops, 1)
	assert.Equal(t, op1, ops[0].Address)
	assert.True(t, ops[0].Registered)
	assert.False(t, ops[0].Jailed)
	assert.Nil(t, ops[0].JailedBy)
	assert.Equal(t, signer1, ops[0].SigningKey)
	assert.Equal(t, uint256.NewInt(600), ops[0].Weight)
	assert.Equal(t, []vigil.Address{challenger}, ops[0].Challengers)
}

func testGetOperator(t *testing.T) {
	body, status := httpGet(t, ts.URL+"/operators/"+op1.String())
	assert.Equal(t, http.StatusOK, status)

	var op Operator
	require.NoError(t, json.Unmarshal(body, &op))
	assert.Equal(t, op1, op.Address)

	// a never seen operator responds null
	body, status = httpGet(t, ts.URL+"/operators/"+addr(0xEE).String())
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "null", string(body[:4]))

	_, status = httpGet(t, ts.URL+"/operators/invalid")
	assert.Equal(t, http.StatusBadRequest, status)
}

func testGetVaults(t *testing.T) {
	body, status := httpGet(t, ts.URL+"/operators/"+op1.String()+"/vaults")
	assert.Equal(t, http.StatusOK, status)

	var vaults []*Vault
	require.NoError(t, json.Unmarshal(body, &vaults))
	require.Len(t, vaults, 1)
	assert.Equal(t, vault1, vaults[0].Vault)
	assert.Equal(t, assetA, vaults[0].Asset)
	assert.Equal(t, uint256.NewInt(1000), vaults[0].Balance)
	assert.Equal(t, uint64(6000), vaults[0].QuorumWeight)
}

func testGetChallengers(t *testing.T) {
	body, status := httpGet(t, ts.URL+"/operators/"+op1.String()+"/challengers")
	assert.Equal(t, http.StatusOK, status)

	var challengers []*Challenger
	require.NoError(t, json.Unmarshal(body, &challengers))
	require.Len(t, challengers, 1)
	assert.Equal(t, challenger, challengers[0].Address)
	assert.Equal(t, "enrolled", challengers[0].Status)
	assert.Nil(t, challengers[0].UnenrollmentStartedAt)
}

func testGetKeyHistorical(t *testing.T) {
	body, status := httpGet(t, ts.URL+"/operators/"+op1.String()+"/key?block=15")
	assert.Equal(t, http.StatusOK, status)

	var key SigningKey
	require.NoError(t, json.Unmarshal(body, &key))
	assert.Equal(t, signer1, key.Key)
	require.NotNil(t, key.Block)
	assert.Equal(t, uint64(15), *key.Block)

	// before registration the key is unset
	body, status = httpGet(t, ts.URL+"/operators/"+op1.String()+"/key?block=5")
	assert.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(body, &key))
	assert.True(t, key.Key.IsZero())

	// the head itself is not historical
	_, status = httpGet(t, ts.URL+"/operators/"+op1.String()+"/key?block=20")
	assert.Equal(t, http.StatusBadRequest, status)

	_, status = httpGet(t, ts.URL+"/operators/"+op1.String()+"/key?block=nope")
	assert.Equal(t, http.StatusBadRequest, status)
}

func testGetWeightLiveView(t *testing.T) {
	body, status := httpGet(t, ts.URL+"/operators/"+op1.String()+"/weight")
	assert.Equal(t, http.StatusOK, status)

	var weight Weight
	require.NoError(t, json.Unmarshal(body, &weight))
	assert.Equal(t, uint256.NewInt(600), weight.Weight)
	assert.Nil(t, weight.Block)

	body, status = httpGet(t, ts.URL+"/operators/"+op1.String()+"/weight?block=15")
	assert.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(body, &weight))
	assert.Equal(t, uint256.NewInt(600), weight.Weight)

	// unknown operators weigh nothing
	body, status = httpGet(t, ts.URL+"/operators/"+addr(0xEE).String()+"/weight")
	assert.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(body, &weight))
	assert.True(t, weight.Weight.IsZero())
}
