// Copyright (c) 2025 The Vigil developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package admin

import (
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/vigilprotocol/vigil/api/admin/apilogs"
	"github.com/vigilprotocol/vigil/api/admin/control"
	"github.com/vigilprotocol/vigil/api/admin/loglevel"
	"github.com/vigilprotocol/vigil/health"

	healthAPI "github.com/vigilprotocol/vigil/api/admin/health"
)

func New(logLevel *slog.LevelVar, apiLogsEnabled *atomic.Bool, healthStatus *health.Health, ctrl *control.Control) http.HandlerFunc {
	router := mux.NewRouter()
	subRouter := router.PathPrefix("/admin").Subrouter()

	loglevel.New(logLevel).Mount(subRouter, "/loglevel")
	apilogs.New(apiLogsEnabled).Mount(subRouter, "/apilogs")
	healthAPI.NewAPI(healthStatus).Mount(subRouter, "/health")
	if ctrl != nil {
		ctrl.Mount(subRouter, "/registry")
	}

	handler := handlers.CompressHandler(router)

	return handler.ServeHTTP
}
