// Copyright (c) 2025 The Vigil developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package events

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigilprotocol/vigil/eventdb"
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

func initEventsServer(t *testing.T, limit uint64) *httptest.Server {
	db, err := eventdb.NewMem()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	events := []*registry.Event{
		{Block: 10, Kind: registry.KindOperatorRegistered, Operator: addrPtr(0x01), Key: addrPtr(0x11)},
		{Block: 10, Kind: registry.KindOperatorWeightUpdated, Operator: addrPtr(0x01), Amount: uint256.NewInt(600)},
		{Block: 12, Kind: registry.KindEnrolled, Operator: addrPtr(0x01), Challenger: addrPtr(0xC1)},
		{Block: 20, Kind: registry.KindJailed, Operator: addrPtr(0x01), Challenger: addrPtr(0xC1)},
		{Block: 30, Kind: registry.KindUnjailed, Operator: addrPtr(0x01)},
	}
	require.NoError(t, db.Append(context.Background(), events))

	router := mux.NewRouter()
	New(db, limit).Mount(router, "/events")
	return httptest.NewServer(router)
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

func TestEventsFilter(t *testing.T) {
	ts := initEventsServer(t, 100)
	defer ts.Close()

	t.Run("all", func(t *testing.T) {
		body, status := httpPostJSON(t, ts.URL+"/events", &eventdb.Filter{})
		assert.Equal(t, http.StatusOK, status)

		var records []*eventdb.Record
		require.NoError(t, json.Unmarshal(body, &records))
		require.Len(t, records, 5)
		assert.Equal(t, registry.KindOperatorRegistered, records[0].Kind)
		assert.Equal(t, uint64(10), records[0].Block)
	})

	t.Run("byCriteria", func(t *testing.T) {
		kind := registry.KindJailed
		filter := &eventdb.Filter{
			CriteriaSet: []*eventdb.Criteria{{Kind: &kind}},
		}
		body, status := httpPostJSON(t, ts.URL+"/events", filter)
		assert.Equal(t, http.StatusOK, status)

		var records []*eventdb.Record
		require.NoError(t, json.Unmarshal(body, &records))
		require.Len(t, records, 1)
		assert.Equal(t, uint64(20), records[0].Block)
		require.NotNil(t, records[0].Challenger)
		assert.Equal(t, addr(0xC1), *records[0].Challenger)
	})

	t.Run("descendingPaged", func(t *testing.T) {
		filter := &eventdb.Filter{
			Order:   eventdb.DESC,
			Options: &eventdb.Options{Offset: 1, Limit: 2},
		}
		body, status := httpPostJSON(t, ts.URL+"/events", filter)
		assert.Equal(t, http.StatusOK, status)

		var records []*eventdb.Record
		require.NoError(t, json.Unmarshal(body, &records))
		require.Len(t, records, 2)
		assert.Equal(t, uint64(20), records[0].Block)
		assert.Equal(t, uint64(12), records[1].Block)
	})

	t.Run("nullCriteria", func(t *testing.T) {
		res, err := http.Post(ts.URL+"/events", "application/json", bytes.NewReader([]byte(`{"criteriaSet": [null]}`)))
		require.NoError(t, err)
		require.NoError(t, res.Body.Close())
		assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	})

	t.Run("invertedRange", func(t *testing.T) {
		filter := &eventdb.Filter{Range: &eventdb.Range{From: 30, To: 10}}
		_, status := httpPostJSON(t, ts.URL+"/events", filter)
		assert.Equal(t, http.StatusBadRequest, status)
	})
}

func TestEventsLimit(t *testing.T) {
	ts := initEventsServer(t, 3)
	defer ts.Close()

	// explicit limit above the maximum is forbidden
	filter := &eventdb.Filter{Options: &eventdb.Options{Limit: 10}}
	_, status := httpPostJSON(t, ts.URL+"/events", filter)
	assert.Equal(t, http.StatusForbidden, status)

	// an unoptioned query over more events than the maximum is forbidden too
	_, status = httpPostJSON(t, ts.URL+"/events", &eventdb.Filter{})
	assert.Equal(t, http.StatusForbidden, status)

	// within the limit passes
	filter = &eventdb.Filter{Options: &eventdb.Options{Limit: 3}}
	body, status := httpPostJSON(t, ts.URL+"/events", filter)
	assert.Equal(t, http.StatusOK, status)

	var records []*eventdb.Record
	require.NoError(t, json.Unmarshal(body, &records))
	assert.Len(t, records, 3)
}
