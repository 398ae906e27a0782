// Copyright (c) 2025 The Vigil developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	cli "gopkg.in/urfave/cli.v1"

	"github.com/vigilprotocol/vigil/log"
)

var (
	genesisFlag = cli.StringFlag{
		Name:  "genesis",
		Usage: "path to genesis file, if not set, the default devnet genesis will be used",
	}
	configDirFlag = cli.StringFlag{
		Name:   "config-dir",
		Value:  defaultConfigDir(),
		Hidden: true,
		Usage:  "directory for user global configurations",
	}
	masterKeyStdinFlag = cli.BoolFlag{
		Name:   "master-key-stdin",
		Usage:  "read master key from stdin",
		Hidden: true,
	}
	dataDirFlag = cli.StringFlag{
		Name:  "data-dir",
		Value: defaultDataDir(),
		Usage: "directory for registry databases",
	}
	coreFlag = cli.StringFlag{
		Name:  "core",
		Usage: "RPC URL of the chain node hosting the restaking core",
	}
	coreAddressFlag = cli.StringFlag{
		Name:  "core-address",
		Usage: "address of the restaking core contract",
	}
	apiAddrFlag = cli.StringFlag{
		Name:  "api-addr",
		Value: "localhost:8669",
		Usage: "API service listening address",
	}
	apiCorsFlag = cli.StringFlag{
		Name:  "api-cors",
		Value: "",
		Usage: "comma separated list of domains from which to accept cross origin requests to API",
	}
	apiTimeoutFlag = cli.Uint64Flag{
		Name:  "api-timeout",
		Value: 10000,
		Usage: "API request timeout value in milliseconds",
	}
	apiEventsLimitFlag = cli.Uint64Flag{
		Name:  "api-events-limit",
		Value: 1000,
		Usage: "limit the number of events returned by /events API",
	}
	enableAPILogsFlag = cli.BoolFlag{
		Name:  "enable-api-logs",
		Usage: "enables API requests logging",
	}

	verbosityFlag = cli.Uint64Flag{
		Name:  "verbosity",
		Value: log.LegacyLevelInfo,
		Usage: "log verbosity (0-9)",
	}
	jsonLogsFlag = cli.BoolFlag{
		Name:  "json-logs",
		Usage: "output logs in JSON format",
	}
	pollIntervalFlag = cli.Uint64Flag{
		Name:  "poll-interval",
		Value: 5,
		Usage: "interval between chain head polls (seconds)",
	}
	updateCadenceFlag = cli.Uint64Flag{
		Name:  "update-cadence",
		Value: 600,
		Usage: "interval between operator weight refreshes (seconds, 0 to disable)",
	}
	snapshotIntervalFlag = cli.Uint64Flag{
		Name:  "snapshot-interval",
		Value: 300,
		Usage: "interval between state snapshots (seconds, 0 to disable)",
	}
	cacheFlag = cli.Uint64Flag{
		Name:  "cache",
		Value: 128,
		Usage: "megabytes of ram allocated to the snapshot store cache",
	}
	snapshotsKeepFlag = cli.Uint64Flag{
		Name:  "snapshots-keep",
		Value: 3,
		Usage: "number of state snapshots retained on disk",
	}
	importMasterKeyFlag = cli.BoolFlag{
		Name:  "import",
		Usage: "import master key from keystore",
	}
	exportMasterKeyFlag = cli.BoolFlag{
		Name:  "export",
		Usage: "export master key to keystore",
	}
	pprofFlag = cli.BoolFlag{
		Name:  "pprof",
		Usage: "turn on go-pprof",
	}
	enableMetricsFlag = cli.BoolFlag{
		Name:  "enable-metrics",
		Usage: "enables metrics collection",
	}
	metricsAddrFlag = cli.StringFlag{
		Name:  "metrics-addr",
		Value: "localhost:2112",
		Usage: "metrics service listening address",
	}
	enableAdminFlag = cli.BoolFlag{
		Name:  "enable-admin",
		Usage: "enables admin server",
	}
	adminAddrFlag = cli.StringFlag{
		Name:  "admin-addr",
		Value: "localhost:2113",
		Usage: "admin service listening address",
	}

	// solo mode only flags
	persistFlag = cli.BoolFlag{
		Name:  "persist",
		Usage: "registry data storage option, if set data will be saved to disk",
	}

	// bundle command flags
	hashFlag = cli.StringFlag{
		Name:  "hash",
		Usage: "hex encoded 32-byte message hash",
	}
	blockFlag = cli.Uint64Flag{
		Name:  "block",
		Usage: "reference block the signer weights are read at",
	}
	keyFlag = cli.StringFlag{
		Name:  "key",
		Usage: "hex encoded private key to sign with (defaults to the master key)",
	}
	bundleFlag = cli.StringFlag{
		Name:  "bundle",
		Value: "bundle.json",
		Usage: "path to the signature bundle file",
	}
	nodeURLFlag = cli.StringFlag{
		Name:  "node",
		Value: "http://localhost:8669",
		Usage: "URL of the node to verify against",
	}

	// events export flags
	outputFlag = cli.StringFlag{
		Name:  "output",
		Usage: "path of the export file, if not set events go to stdout",
	}
	fromFlag = cli.Uint64Flag{
		Name:  "from",
		Usage: "export events from this block (inclusive)",
	}
	toFlag = cli.Uint64Flag{
		Name:  "to",
		Usage: "export events up to this block (inclusive)",
	}
)
