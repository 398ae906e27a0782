// Copyright (c) 2025 The Vigil developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package verify

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gorilla/mux"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigilprotocol/vigil/registry"
	"github.com/vigilprotocol/vigil/registry/quorum"
	"github.com/vigilprotocol/vigil/test/datagen"
	"github.com/vigilprotocol/vigil/vigil"
)

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

func addr(b byte) vigil.Address {
	return vigil.BytesToAddress([]byte{b})
}

func httpPostJSON(t *testing.T, url string, payload any) ([]byte, int) {
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	res, err := http.Post(url, "application/json", bytes.NewReader(data)) //#nosec G107
	require.NoError(t, err)
	body, err := io.ReadAll(res.Body)
	require.NoError(t, res.Body.Close())
	require.NoError(t, err)
	return body, res.StatusCode
}

func TestVerify(t *testing.T) {
	op := addr(0x01)
	vault := addr(0x51)
	asset := addr(0xA1)

	core := &stubCore{
		vaults:   map[vigil.Address][]vigil.Address{op: {vault}},
		assets:   map[vigil.Address]vigil.Address{vault: asset},
		balances: map[[2]vigil.Address]*uint256.Int{{op, vault}: uint256.NewInt(1000)},
	}
	reg, err := registry.New(registry.Options{
		Quorum:          quorum.Quorum{{Asset: asset, Weight: 10000}},
		ThresholdWeight: uint256.NewInt(600),
		Core:            core,
		Directory:       stubDirectory{},
	})
	require.NoError(t, err)

	keyPriv, err := crypto.GenerateKey()
	require.NoError(t, err)
	signer := vigil.Address(crypto.PubkeyToAddress(keyPriv.PublicKey))

	require.NoError(t, reg.RegisterOperator(op, signer, 10))
	reg.OnBlock(20)

	hash := datagen.RandomHash()
	sig, err := crypto.Sign(hash.Bytes(), keyPriv)
	require.NoError(t, err)

	router := mux.NewRouter()
	New(reg).Mount(router, "/verify")
	ts := httptest.NewServer(router)
	defer ts.Close()

	valid := Request{
		Hash:           hash,
		Signers:        []vigil.Address{op},
		Signatures:     []hexutil.Bytes{sig},
		ReferenceBlock: 15,
	}

	t.Run("valid", func(t *testing.T) {
		body, status := httpPostJSON(t, ts.URL+"/verify", &valid)
		assert.Equal(t, http.StatusOK, status)

		var result Result
		require.NoError(t, json.Unmarshal(body, &result))
		assert.True(t, result.Valid)
		assert.Empty(t, result.Code)
	})

	t.Run("wrongSigner", func(t *testing.T) {
		req := valid
		req.Signers = []vigil.Address{addr(0x02)}
		body, status := httpPostJSON(t, ts.URL+"/verify", &req)
		assert.Equal(t, http.StatusOK, status)

		var result Result
		require.NoError(t, json.Unmarshal(body, &result))
		assert.False(t, result.Valid)
		assert.Equal(t, "invalid_signature", result.Code)
		assert.NotEmpty(t, result.Reason)
	})

	t.Run("badReference", func(t *testing.T) {
		req := valid
		req.ReferenceBlock = 20
		body, status := httpPostJSON(t, ts.URL+"/verify", &req)
		assert.Equal(t, http.StatusOK, status)

		var result Result
		require.NoError(t, json.Unmarshal(body, &result))
		assert.False(t, result.Valid)
		assert.Equal(t, "bad_reference", result.Code)
	})

	t.Run("emptySignerSet", func(t *testing.T) {
		req := valid
		req.Signers = nil
		req.Signatures = nil
		body, status := httpPostJSON(t, ts.URL+"/verify", &req)
		assert.Equal(t, http.StatusOK, status)

		var result Result
		require.NoError(t, json.Unmarshal(body, &result))
		assert.False(t, result.Valid)
		assert.Equal(t, "malformed", result.Code)
	})

	t.Run("malformedBody", func(t *testing.T) {
		res, err := http.Post(ts.URL+"/verify", "application/json", bytes.NewReader([]byte(`{"hash": 42}`)))
		require.NoError(t, err)
		require.NoError(t, res.Body.Close())
		assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	})

	t.Run("unknownField", func(t *testing.T) {
		res, err := http.Post(ts.URL+"/verify", "application/json", bytes.NewReader([]byte(`{"bogus": 1}`)))
		require.NoError(t, err)
		require.NoError(t, res.Body.Close())
		assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	})
}
