// Copyright (c) 2025 The Vigil developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/elastic/gosigar"
	"github.com/ethereum/go-ethereum/common/fdlimit"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/vigilprotocol/vigil/api/subscriptions"
	"github.com/vigilprotocol/vigil/co"
	"github.com/vigilprotocol/vigil/corebridge"
	"github.com/vigilprotocol/vigil/eventdb"
	"github.com/vigilprotocol/vigil/genesis"
	"github.com/vigilprotocol/vigil/registry"
	"github.com/vigilprotocol/vigil/registry/verifier"
	"github.com/vigilprotocol/vigil/store"
	"github.com/vigilprotocol/vigil/vault"
	"github.com/vigilprotocol/vigil/vigil"
)

func selectGenesis(ctx *cli.Context) *genesis.Config {
	path := ctx.String(genesisFlag.Name)
	if path == "" {
		return genesis.Devnet()
	}

	gene, err := genesis.LoadFile(path)
	if err != nil {
		fatal(fmt.Sprintf("load genesis file [%v]: %v", path, err))
	}
	return gene
}

func makeConfigDir(ctx *cli.Context) string {
	configDir := ctx.String(configDirFlag.Name)
	if configDir == "" {
		fatal(fmt.Sprintf("unable to infer default config dir, use -%s to specify", configDirFlag.Name))
	}
	if err := os.MkdirAll(configDir, 0700); err != nil {
		fatal(fmt.Sprintf("create config dir [%v]: %v", configDir, err))
	}
	return configDir
}

func makeDataDir(ctx *cli.Context) string {
	dataDir := ctx.String(dataDirFlag.Name)
	if dataDir == "" {
		fatal(fmt.Sprintf("unable to infer default data dir, use -%s to specify", dataDirFlag.Name))
	}
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		fatal(fmt.Sprintf("create data dir [%v]: %v", dataDir, err))
	}
	return dataDir
}

func makeInstanceDir(ctx *cli.Context, gene *genesis.Config) string {
	dataDir := makeDataDir(ctx)

	instanceDir := filepath.Join(dataDir, fmt.Sprintf("instance-%x", gene.ID().Bytes()[24:]))
	if err := os.MkdirAll(instanceDir, 0700); err != nil {
		fatal(fmt.Sprintf("create instance dir [%v]: %v", instanceDir, err))
	}
	return instanceDir
}

func masterKeyPath(ctx *cli.Context) string {
	configDir := makeConfigDir(ctx)
	return filepath.Join(configDir, "master.key")
}

func loadMasterAddress(ctx *cli.Context) vigil.Address {
	key, err := loadOrGeneratePrivateKey(masterKeyPath(ctx))
	if err != nil {
		fatal("load or generate master key:", err)
	}
	return vigil.Address(crypto.PubkeyToAddress(key.PublicKey))
}

func normalizeCacheSize(sizeMB int) int {
	if sizeMB < 32 {
		sizeMB = 32
	}

	var mem gosigar.Mem
	if err := mem.Get(); err != nil {
		logger.Warn("failed to get total mem:", "err", err)
	} else {
		// limit to 1/2 os physical ram
		limitMB := int(mem.Total / 1024 / 1024 / 2)
		if sizeMB > limitMB {
			sizeMB = limitMB
			logger.Warn("cache size(MB) limited", "limit", limitMB)
		}
	}
	return sizeMB
}

func suggestFDCache() int {
	limit, err := fdlimit.Current()
	if err != nil {
		fatal("failed to get fd limit:", err)
	}
	if limit <= 1024 {
		logger.Warn("low fd limit, increase it if possible", "limit", limit)
	}

	n := limit / 2
	if n > 5120 {
		return 5120
	}
	return n
}

func openStore(ctx *cli.Context, instanceDir string, gene *genesis.Config) *store.Store {
	cacheMB := normalizeCacheSize(ctx.Int(cacheFlag.Name))
	logger.Debug("cache size(MB)", "size", cacheMB)

	fdCache := suggestFDCache()
	logger.Debug("fd cache", "n", fdCache)

	dir := filepath.Join(instanceDir, "state.db")
	stor, err := store.Open(dir, store.Options{
		CacheSize:              cacheMB,
		OpenFilesCacheCapacity: fdCache,
		Keep:                   ctx.Int(snapshotsKeepFlag.Name),
	})
	if err != nil {
		fatal(fmt.Sprintf("open state database [%v]: %v", dir, err))
	}
	checkStoreGenesis(stor, gene)
	return stor
}

func openMemStore(ctx *cli.Context, gene *genesis.Config) *store.Store {
	stor, err := store.OpenMem(store.Options{
		Keep: ctx.Int(snapshotsKeepFlag.Name),
	})
	if err != nil {
		fatal(fmt.Sprintf("open state database: %v", err))
	}
	checkStoreGenesis(stor, gene)
	return stor
}

func checkStoreGenesis(stor *store.Store, gene *genesis.Config) {
	if err := stor.CheckGenesis(gene.ID()); err != nil {
		if errors.Is(err, store.ErrGenesisMismatch) {
			fatal(fmt.Sprintf("data dir was initialized with a different genesis, use another -%s", dataDirFlag.Name))
		}
		fatal("check genesis:", err)
	}
}

func openEventDB(instanceDir string) *eventdb.EventDB {
	dir := filepath.Join(instanceDir, "events.db")
	db, err := eventdb.New(dir)
	if err != nil {
		fatal(fmt.Sprintf("open event database [%v]: %v", dir, err))
	}
	return db
}

func openMemEventDB() *eventdb.EventDB {
	db, err := eventdb.NewMem()
	if err != nil {
		fatal(fmt.Sprintf("open event database: %v", err))
	}
	return db
}

func connectCore(ctx *cli.Context, gene *genesis.Config) *corebridge.Bridge {
	url := ctx.String(coreFlag.Name)
	if url == "" {
		fatal(fmt.Sprintf("core RPC URL not specified, use -%s to set one, or run the solo subcommand", coreFlag.Name))
	}
	addrStr := ctx.String(coreAddressFlag.Name)
	if addrStr == "" {
		fatal(fmt.Sprintf("core contract address not specified, use -%s to set one", coreAddressFlag.Name))
	}
	coreAddr, err := vigil.ParseAddress(addrStr)
	if err != nil {
		fatal("invalid core contract address:", err)
	}

	client, err := corebridge.Dial(context.Background(), url)
	if err != nil {
		fatal("connect core:", err)
	}
	bridge, err := corebridge.New(client, corebridge.Options{
		CoreAddress: coreAddr,
		Directory:   gene.Directory(),
	})
	if err != nil {
		fatal("init core bridge:", err)
	}
	logger.Info("core bridge connected", "url", url, "contract", coreAddr)
	return bridge
}

// eventWriter decouples registry mutations from event persistence. Committed
// events queue up here and a single goroutine writes them out in commit
// order.
type eventWriter struct {
	ch   chan *registry.Event
	goes co.Goes
}

func startEventWriter(eventDB *eventdb.EventDB, subs *subscriptions.Subscriptions) *eventWriter {
	w := &eventWriter{ch: make(chan *registry.Event, 256)}
	w.goes.Go(func() {
		for ev := range w.ch {
			if err := eventDB.Append(context.Background(), []*registry.Event{ev}); err != nil {
				logger.Warn("failed to write event", "kind", ev.Kind, "err", err)
			}
			subs.Publish(ev)
		}
	})
	return w
}

// Sink blocks when the queue is full so no committed event is ever dropped.
func (w *eventWriter) Sink(ev *registry.Event) {
	w.ch <- ev
}

// Close flushes queued events and stops the writer. The sink must not be
// called afterwards.
func (w *eventWriter) Close() {
	close(w.ch)
	w.goes.Wait()
}

// initRegistry restores the registry from the latest snapshot, or builds the
// genesis state when the store holds none.
func initRegistry(
	gene *genesis.Config,
	core vault.Core,
	directory vault.ChallengerDirectory,
	contracts verifier.ContractSigner,
	stor *store.Store,
	sink registry.Sink,
) *registry.Registry {
	head, data, err := stor.LatestSnapshot()
	if err == nil {
		reg := newRegistry(gene, core, directory, contracts, sink)
		if err := reg.RestoreState(data); err != nil {
			fatal("restore registry state:", err)
		}
		logger.Info("registry state restored", "head", head)
		return reg
	}
	if !errors.Is(err, store.ErrNoSnapshot) {
		fatal("load latest snapshot:", err)
	}

	reg, err := gene.Build(core, directory, contracts, sink)
	if err != nil {
		fatal("build genesis state:", err)
	}
	logger.Info("genesis state built", "id", gene.ID(), "operators", len(gene.Operators))
	return reg
}

func newRegistry(
	gene *genesis.Config,
	core vault.Core,
	directory vault.ChallengerDirectory,
	contracts verifier.ContractSigner,
	sink registry.Sink,
) *registry.Registry {
	minimum, err := gene.MinimumWeight.Uint256()
	if err != nil {
		fatal("invalid minimum weight:", err)
	}
	threshold, err := gene.ThresholdWeight.Uint256()
	if err != nil {
		fatal("invalid threshold weight:", err)
	}
	reg, err := registry.New(registry.Options{
		Quorum:          gene.Quorum,
		MinimumWeight:   minimum,
		ThresholdWeight: threshold,
		GenesisBlock:    gene.StartBlock,
		Core:            core,
		Directory:       directory,
		ContractSigner:  contracts,
		Sink:            sink,
	})
	if err != nil {
		fatal("init registry:", err)
	}
	return reg
}

func startAPIServer(ctx *cli.Context, handler http.Handler) (string, func()) {
	addr := ctx.String(apiAddrFlag.Name)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		fatal(fmt.Sprintf("listen API addr [%v]: %v", addr, err))
	}
	timeout := ctx.Int(apiTimeoutFlag.Name)
	if timeout > 0 {
		handler = handleAPITimeout(handler, time.Duration(timeout)*time.Millisecond)
	}
	handler = handleXVigilVersion(handler)
	handler = handleRequestBodyLimit(handler)
	srv := &http.Server{Handler: handler, ReadHeaderTimeout: time.Second, ReadTimeout: 5 * time.Second}
	var goes co.Goes
	goes.Go(func() {
		srv.Serve(listener)
	})
	return "http://" + listener.Addr().String() + "/", func() {
		srv.Close()
		goes.Wait()
	}
}

func printStartupMessage(
	gene *genesis.Config,
	reg *registry.Registry,
	master vigil.Address,
	instanceDir string,
	apiURL string,
) {
	fmt.Printf(`Starting %v
    Genesis      [ %v %v ]
    Head block   [ #%v ]
    Operators    [ %v registered / %v tracked ]
    Quorum       [ v%v with %v assets ]
    Master       [ %v ]
    Instance dir [ %v ]
    API portal   [ %v ]
`,
		fmt.Sprintf("Vigil %v", fullVersion()),
		gene.ID(), gene.Name,
		reg.Head(),
		reg.RegisteredCount(), reg.OperatorCount(),
		reg.QuorumVersion(), len(reg.Quorum()),
		master,
		instanceDir,
		apiURL)
}

func printSoloStartupMessage(
	gene *genesis.Config,
	reg *registry.Registry,
	instanceDir string,
	apiURL string,
	adminURL string,
) {
	tableHead := `
┌────────────────────────────────────────────┬──────────────────┐
│                 Challenger                 │  Challenge Delay │`
	tableContent := `
├────────────────────────────────────────────┼──────────────────┤
│ %v │ %16v │`
	tableEnd := `
└────────────────────────────────────────────┴──────────────────┘`

	info := fmt.Sprintf(`Starting %v
    Genesis     [ %v %v ]
    Head block  [ #%v ]
    Data dir    [ %v ]
    API portal  [ %v ]
    Admin       [ %v ]`,
		fmt.Sprintf("Vigil solo %v", fullVersion()),
		gene.ID(), gene.Name,
		reg.Head(),
		instanceDir,
		apiURL,
		adminURL)

	info += tableHead

	for _, c := range gene.Challengers {
		info += fmt.Sprintf(tableContent, c.Address, c.ChallengeDelay)
	}
	info += tableEnd + "\r\n"

	fmt.Print(info)
}
