// Copyright (c) 2025 The Vigil developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package api

import (
	"net/http"
	"net/http/pprof"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/vigilprotocol/vigil/api/doc"
	"github.com/vigilprotocol/vigil/api/events"
	"github.com/vigilprotocol/vigil/api/node"
	"github.com/vigilprotocol/vigil/api/operators"
	"github.com/vigilprotocol/vigil/api/quorum"
	"github.com/vigilprotocol/vigil/api/subscriptions"
	"github.com/vigilprotocol/vigil/api/verify"
	"github.com/vigilprotocol/vigil/eventdb"
	"github.com/vigilprotocol/vigil/log"
	"github.com/vigilprotocol/vigil/registry"
	"github.com/vigilprotocol/vigil/vigil"
)

var logger = log.WithContext("pkg", "api")

type Options struct {
	AllowedOrigins     string
	PprofOn            bool
	EnableReqLogger    bool
	EnableMetrics      bool
	EventsLimit        uint64
	APILogsEnabled     *atomic.Bool
	SlowQueryThreshold time.Duration
}

// New return api router
func New(
	reg *registry.Registry,
	eventDB *eventdb.EventDB,
	subs *subscriptions.Subscriptions,
	genesisID vigil.Bytes32,
	chainStatus node.ChainStatus,
	opts Options,
) (http.HandlerFunc, func()) {
	origins := strings.Split(strings.TrimSpace(opts.AllowedOrigins), ",")
	for i, o := range origins {
		origins[i] = strings.ToLower(strings.TrimSpace(o))
	}

	router := mux.NewRouter()

	// to serve the api docs
	router.PathPrefix("/doc").Handler(
		http.StripPrefix("/doc/", http.FileServer(http.FS(doc.FS))),
	)

	router.Path("/").HandlerFunc(
		func(w http.ResponseWriter, req *http.Request) {
			http.Redirect(w, req, "doc/vigil.yaml", http.StatusTemporaryRedirect)
		})

	operators.New(reg).
		Mount(router, "/operators")
	quorum.New(reg).
		Mount(router, "/quorum")
	verify.New(reg).
		Mount(router, "/verify")
	if eventDB != nil {
		events.New(eventDB, opts.EventsLimit).
			Mount(router, "/events")
	}
	node.New(reg, genesisID, chainStatus).
		Mount(router, "/node")
	if subs == nil {
		subs = subscriptions.New()
	}
	subs.Mount(router, "/subscriptions")

	if opts.PprofOn {
		router.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		router.HandleFunc("/debug/pprof/profile", pprof.Profile)
		router.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		router.HandleFunc("/debug/pprof/trace", pprof.Trace)
		router.PathPrefix("/debug/pprof/").HandlerFunc(pprof.Index)
	}

	router.Use(genesisIDHandler(genesisID))
	if opts.EnableMetrics {
		router.Use(metricsHandler)
	}

	handler := handlers.CompressHandler(router)
	handler = handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedHeaders([]string{"content-type", "x-genesis-id"}),
		handlers.ExposedHeaders([]string{"x-genesis-id", "x-vigil-ver"}),
	)(handler)

	if opts.EnableReqLogger || opts.SlowQueryThreshold > 0 {
		enabled := opts.APILogsEnabled
		if enabled == nil {
			enabled = new(atomic.Bool)
			enabled.Store(opts.EnableReqLogger)
		}
		handler = requestLoggerMiddleware(logger, enabled, opts.SlowQueryThreshold)(handler)
	}

	return handler.ServeHTTP, subs.Close // subscriptions handles hijacked conns, which need to be closed
}

// genesisIDHandler stamps responses with the genesis id and rejects requests
// pinned to a different one.
func genesisIDHandler(genesisID vigil.Bytes32) mux.MiddlewareFunc {
	id := genesisID.String()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if reqID := r.Header.Get("x-genesis-id"); reqID != "" && reqID != id {
				http.Error(w, "genesis id mismatch", http.StatusForbidden)
				return
			}
			w.Header().Set("x-genesis-id", id)
			next.ServeHTTP(w, r)
		})
	}
}
