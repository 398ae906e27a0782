// Copyright (c) 2025 The Vigil developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"

	cli "gopkg.in/urfave/cli.v1"

	"github.com/vigilprotocol/vigil/api"
	"github.com/vigilprotocol/vigil/api/admin/control"
	"github.com/vigilprotocol/vigil/api/subscriptions"
	"github.com/vigilprotocol/vigil/cmd/vigil/httpserver"
	"github.com/vigilprotocol/vigil/cmd/vigil/node"
	"github.com/vigilprotocol/vigil/cmd/vigil/solo"
	"github.com/vigilprotocol/vigil/eventdb"
	"github.com/vigilprotocol/vigil/health"
	"github.com/vigilprotocol/vigil/log"
	"github.com/vigilprotocol/vigil/metrics"
	"github.com/vigilprotocol/vigil/store"
)

var (
	version   string
	gitCommit string
	gitTag    string

	logger = log.WithContext("pkg", "main")
)

func fullVersion() string {
	versionMeta := "release"
	if gitTag == "" {
		versionMeta = "dev"
	}
	return fmt.Sprintf("%s-%s-%s", version, gitCommit, versionMeta)
}

func main() {
	app := cli.App{
		Version:   fullVersion(),
		Name:      "Vigil",
		Usage:     "Node of the Vigil operator registry",
		Copyright: "2025 The Vigil developers",
		Flags: []cli.Flag{
			genesisFlag,
			configDirFlag,
			dataDirFlag,
			coreFlag,
			coreAddressFlag,
			apiAddrFlag,
			apiCorsFlag,
			apiTimeoutFlag,
			apiEventsLimitFlag,
			enableAPILogsFlag,
			verbosityFlag,
			jsonLogsFlag,
			pollIntervalFlag,
			updateCadenceFlag,
			snapshotIntervalFlag,
			cacheFlag,
			snapshotsKeepFlag,
			pprofFlag,
			enableMetricsFlag,
			metricsAddrFlag,
			enableAdminFlag,
			adminAddrFlag,
		},
		Action: defaultAction,
		Commands: []cli.Command{
			{
				Name:  "solo",
				Usage: "runs the registry in solo mode for test & dev",
				Flags: []cli.Flag{
					genesisFlag,
					dataDirFlag,
					apiAddrFlag,
					apiCorsFlag,
					apiTimeoutFlag,
					apiEventsLimitFlag,
					enableAPILogsFlag,
					verbosityFlag,
					jsonLogsFlag,
					pollIntervalFlag,
					snapshotIntervalFlag,
					cacheFlag,
					snapshotsKeepFlag,
					persistFlag,
					pprofFlag,
					enableMetricsFlag,
					metricsAddrFlag,
					adminAddrFlag,
				},
				Action: soloAction,
			},
			{
				Name:  "master-key",
				Usage: "master key management",
				Flags: []cli.Flag{
					configDirFlag,
					importMasterKeyFlag,
					exportMasterKeyFlag,
					masterKeyStdinFlag,
				},
				Action: masterKeyAction,
			},
			{
				Name:  "bundle",
				Usage: "signature bundle management",
				Subcommands: []cli.Command{
					{
						Name:  "sign",
						Usage: "add a signature to a bundle file",
						Flags: []cli.Flag{
							configDirFlag,
							hashFlag,
							blockFlag,
							keyFlag,
							bundleFlag,
						},
						Action: bundleSignAction,
					},
					{
						Name:  "verify",
						Usage: "verify a bundle against a running node",
						Flags: []cli.Flag{
							bundleFlag,
							nodeURLFlag,
						},
						Action: bundleVerifyAction,
					},
				},
			},
			{
				Name:  "export-events",
				Usage: "export committed registry events as JSON lines",
				Flags: []cli.Flag{
					genesisFlag,
					dataDirFlag,
					outputFlag,
					fromFlag,
					toFlag,
				},
				Action: exportEventsAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func defaultAction(ctx *cli.Context) error {
	defer func() { logger.Info("exited") }()

	logLevel := initLogger(ctx.Int(verbosityFlag.Name), ctx.Bool(jsonLogsFlag.Name))

	// enable metrics as soon as possible
	if ctx.Bool(enableMetricsFlag.Name) {
		metrics.InitializePrometheusMetrics()
		url, closeFunc, err := httpserver.StartMetricsServer(ctx.String(metricsAddrFlag.Name))
		if err != nil {
			fatal("start metrics server:", err)
		}
		logger.Info("metrics server started", "url", url)
		defer closeFunc()
	}

	gene := selectGenesis(ctx)
	instanceDir := makeInstanceDir(ctx, gene)
	master := loadMasterAddress(ctx)

	stor := openStore(ctx, instanceDir, gene)
	defer func() { logger.Info("closing state database..."); stor.Close() }()

	eventDB := openEventDB(instanceDir)
	defer func() { logger.Info("closing event database..."); eventDB.Close() }()

	subs := subscriptions.New()
	writer := startEventWriter(eventDB, subs)
	defer func() { logger.Info("flushing event writer..."); writer.Close() }()

	bridge := connectCore(ctx, gene)
	reg := initRegistry(gene, bridge, bridge, bridge, stor, writer.Sink)

	healthStatus := health.New(0)
	vigilNode := node.New(reg, bridge, stor, healthStatus, node.Options{
		PollInterval:     time.Duration(ctx.Uint64(pollIntervalFlag.Name)) * time.Second,
		UpdateCadence:    time.Duration(ctx.Uint64(updateCadenceFlag.Name)) * time.Second,
		SnapshotInterval: time.Duration(ctx.Uint64(snapshotIntervalFlag.Name)) * time.Second,
	})

	apiLogs := &atomic.Bool{}
	apiLogs.Store(ctx.Bool(enableAPILogsFlag.Name))

	apiHandler, apiCloser := api.New(reg, eventDB, subs, gene.ID(), vigilNode, api.Options{
		AllowedOrigins:     ctx.String(apiCorsFlag.Name),
		PprofOn:            ctx.Bool(pprofFlag.Name),
		EnableMetrics:      ctx.Bool(enableMetricsFlag.Name),
		EventsLimit:        ctx.Uint64(apiEventsLimitFlag.Name),
		APILogsEnabled:     apiLogs,
		SlowQueryThreshold: time.Second,
	})
	defer func() { logger.Info("closing subscriptions..."); apiCloser() }()

	apiURL, apiSrvCloser := startAPIServer(ctx, apiHandler)
	defer func() { logger.Info("stopping API server..."); apiSrvCloser() }()

	if ctx.Bool(enableAdminFlag.Name) {
		url, closeFunc, err := httpserver.StartAdminServer(
			ctx.String(adminAddrFlag.Name),
			logLevel,
			apiLogs,
			healthStatus,
			control.New(reg, vigilNode),
		)
		if err != nil {
			fatal("start admin server:", err)
		}
		logger.Info("admin server started", "url", url)
		defer func() { logger.Info("stopping admin server..."); closeFunc() }()
	}

	printStartupMessage(gene, reg, master, instanceDir, apiURL)

	return vigilNode.Run(handleExitSignal())
}

func soloAction(ctx *cli.Context) error {
	defer func() { logger.Info("exited") }()

	logLevel := initLogger(ctx.Int(verbosityFlag.Name), ctx.Bool(jsonLogsFlag.Name))

	if ctx.Bool(enableMetricsFlag.Name) {
		metrics.InitializePrometheusMetrics()
		url, closeFunc, err := httpserver.StartMetricsServer(ctx.String(metricsAddrFlag.Name))
		if err != nil {
			fatal("start metrics server:", err)
		}
		logger.Info("metrics server started", "url", url)
		defer closeFunc()
	}

	gene := selectGenesis(ctx)

	var stor *store.Store
	var eventDB *eventdb.EventDB
	var instanceDir string

	if ctx.Bool(persistFlag.Name) {
		instanceDir = makeInstanceDir(ctx, gene)
		stor = openStore(ctx, instanceDir, gene)
		eventDB = openEventDB(instanceDir)
	} else {
		instanceDir = "Memory"
		stor = openMemStore(ctx, gene)
		eventDB = openMemEventDB()
	}
	defer func() { logger.Info("closing state database..."); stor.Close() }()
	defer func() { logger.Info("closing event database..."); eventDB.Close() }()

	subs := subscriptions.New()
	writer := startEventWriter(eventDB, subs)
	defer func() { logger.Info("flushing event writer..."); writer.Close() }()

	reg := initRegistry(gene, solo.Core{}, gene.Directory(), nil, stor, writer.Sink)

	healthStatus := health.New(0)
	vigilNode := node.New(reg, nil, stor, healthStatus, node.Options{
		PollInterval:     time.Duration(ctx.Uint64(pollIntervalFlag.Name)) * time.Second,
		SnapshotInterval: time.Duration(ctx.Uint64(snapshotIntervalFlag.Name)) * time.Second,
	})

	apiLogs := &atomic.Bool{}
	apiLogs.Store(ctx.Bool(enableAPILogsFlag.Name))

	apiHandler, apiCloser := api.New(reg, eventDB, subs, gene.ID(), nil, api.Options{
		AllowedOrigins:     ctx.String(apiCorsFlag.Name),
		PprofOn:            ctx.Bool(pprofFlag.Name),
		EnableMetrics:      ctx.Bool(enableMetricsFlag.Name),
		EventsLimit:        ctx.Uint64(apiEventsLimitFlag.Name),
		APILogsEnabled:     apiLogs,
		SlowQueryThreshold: time.Second,
	})
	defer func() { logger.Info("closing subscriptions..."); apiCloser() }()

	apiURL, apiSrvCloser := startAPIServer(ctx, apiHandler)
	defer func() { logger.Info("stopping API server..."); apiSrvCloser() }()

	// solo state only moves through the admin API, so it is always on
	adminURL, adminCloser, err := httpserver.StartAdminServer(
		ctx.String(adminAddrFlag.Name),
		logLevel,
		apiLogs,
		healthStatus,
		control.New(reg, vigilNode),
	)
	if err != nil {
		fatal("start admin server:", err)
	}
	defer func() { logger.Info("stopping admin server..."); adminCloser() }()

	printSoloStartupMessage(gene, reg, instanceDir, apiURL, adminURL)

	return vigilNode.Run(handleExitSignal())
}
