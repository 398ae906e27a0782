// Copyright (c) 2025 The Vigil developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigilprotocol/vigil/health"
)

func initHealthServer(t *testing.T, svc *health.Health) *httptest.Server {
	t.Helper()
	router := mux.NewRouter()
	NewAPI(svc).Mount(router, "/health")
	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)
	return ts
}

func getStatus(t *testing.T, url string) (*health.Status, int) {
	res, err := http.Get(url) //#nosec G107
	require.NoError(t, err)
	defer res.Body.Close()

	var status health.Status
	require.NoError(t, json.NewDecoder(res.Body).Decode(&status))
	return &status, res.StatusCode
}

func TestHealthyNode(t *testing.T) {
	svc := health.New(time.Minute)
	svc.NewHead(42)
	svc.ChainSyncStatus(true)
	ts := initHealthServer(t, svc)

	status, code := getStatus(t, ts.URL+"/health")
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, status.Healthy)
	assert.Equal(t, uint64(42), status.HeadIngestion.Head)
	assert.NotNil(t, status.HeadIngestion.IngestedAt)
}

func TestUnhealthyNode(t *testing.T) {
	svc := health.New(time.Minute)
	ts := initHealthServer(t, svc)

	// no head ingested yet
	status, code := getStatus(t, ts.URL+"/health")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.False(t, status.Healthy)

	// head ingested but the chain is not synced
	svc.NewHead(7)
	status, code = getStatus(t, ts.URL+"/health")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.False(t, status.Healthy)
	assert.False(t, status.ChainSync)
}

func TestRecencyWindowOverride(t *testing.T) {
	svc := health.New(time.Hour)
	svc.NewHead(1)
	svc.ChainSyncStatus(true)
	ts := initHealthServer(t, svc)

	time.Sleep(5 * time.Millisecond)

	// a window shorter than the ingestion age flips the verdict
	_, code := getStatus(t, ts.URL+"/health?recencyWindow=1ms")
	assert.Equal(t, http.StatusServiceUnavailable, code)

	_, code = getStatus(t, ts.URL+"/health?recencyWindow=10m")
	assert.Equal(t, http.StatusOK, code)
}
