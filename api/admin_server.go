// Copyright (c) 2025 The Vigil developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package api

import (
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/vigilprotocol/vigil/api/admin"
	"github.com/vigilprotocol/vigil/api/admin/control"
	"github.com/vigilprotocol/vigil/co"
	"github.com/vigilprotocol/vigil/health"
)

func StartAdminServer(
	addr string,
	logLevel *slog.LevelVar,
	apiLogsEnabled *atomic.Bool,
	healthStatus *health.Health,
	ctrl *control.Control,
) (string, func(), error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", nil, errors.Wrapf(err, "listen admin API addr [%v]", addr)
	}

	adminHandler := admin.New(logLevel, apiLogsEnabled, healthStatus, ctrl)

	srv := &http.Server{Handler: adminHandler, ReadHeaderTimeout: time.Second, ReadTimeout: 5 * time.Second}
	var goes co.Goes
	goes.Go(func() {
		srv.Serve(listener)
	})
	return "http://" + listener.Addr().String() + "/admin", func() {
		srv.Close()
		goes.Wait()
	}, nil
}
