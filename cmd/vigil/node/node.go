// Copyright (c) 2025 The Vigil developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package node runs the registry against the watched chain. It owns the
// background loops: head polling, periodic weight refresh and snapshots.
package node

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common/mclock"

	"github.com/vigilprotocol/vigil/co"
	"github.com/vigilprotocol/vigil/corebridge"
	"github.com/vigilprotocol/vigil/health"
	"github.com/vigilprotocol/vigil/log"
	"github.com/vigilprotocol/vigil/registry"
	"github.com/vigilprotocol/vigil/store"
	"github.com/vigilprotocol/vigil/vigil"
)

var logger = log.WithContext("pkg", "node")

// Options tune the background loops. A zero or negative interval disables
// the corresponding loop.
type Options struct {
	PollInterval     time.Duration
	UpdateCadence    time.Duration
	SnapshotInterval time.Duration
}

// Node ties the registry to its chain bridge and snapshot store. The bridge
// may be nil, in which case the node runs detached and state only changes
// through the admin API.
type Node struct {
	goes co.Goes

	reg    *registry.Registry
	bridge *corebridge.Bridge
	stor   *store.Store
	status *health.Health
	opts   Options

	chainHead atomic.Uint64
	synced    atomic.Bool
}

func New(
	reg *registry.Registry,
	bridge *corebridge.Bridge,
	stor *store.Store,
	status *health.Health,
	opts Options,
) *Node {
	return &Node{
		reg:    reg,
		bridge: bridge,
		stor:   stor,
		status: status,
		opts:   opts,
	}
}

// Run blocks until ctx is done and all loops have drained. A final snapshot
// is taken on the way out so a restart resumes close to where we stopped.
func (n *Node) Run(ctx context.Context) error {
	n.goes.Go(func() { n.headLoop(ctx) })
	n.goes.Go(func() { n.updateLoop(ctx) })
	n.goes.Go(func() { n.snapshotLoop(ctx) })
	n.goes.Wait()

	if n.stor != nil {
		if head, err := n.SaveNow(); err != nil {
			logger.Warn("failed to save shutdown snapshot", "err", err)
		} else {
			logger.Info("shutdown snapshot saved", "head", head)
		}
	}
	return nil
}

// ChainHead implements the API chain status.
func (n *Node) ChainHead() uint64 {
	return n.chainHead.Load()
}

// Synced implements the API chain status.
func (n *Node) Synced() bool {
	return n.synced.Load()
}

// SaveNow exports the registry state and persists it. It implements the
// admin control saver.
func (n *Node) SaveNow() (uint64, error) {
	data, err := n.reg.ExportState()
	if err != nil {
		return 0, err
	}
	if err := n.stor.SaveSnapshot(data); err != nil {
		return 0, err
	}
	return n.reg.Head(), nil
}

func (n *Node) headLoop(ctx context.Context) {
	logger.Debug("enter head loop")
	defer logger.Debug("leave head loop")

	if n.opts.PollInterval <= 0 {
		return
	}

	if n.bridge == nil {
		// no chain to follow; report our own head so health stays green
		n.synced.Store(true)
		n.status.ChainSyncStatus(true)

		ticker := time.NewTicker(n.opts.PollInterval)
		defer ticker.Stop()
		for {
			n.status.NewHead(n.reg.Head())
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}

	n.bridge.PollHeads(ctx, n.opts.PollInterval, func(head uint64) {
		n.chainHead.Store(head)
		if n.synced.CompareAndSwap(false, true) {
			n.status.ChainSyncStatus(true)
			logger.Info("chain head stream started", "head", head)
		}
		n.status.NewHead(head)
		n.reg.OnBlock(head)
	})
}

func (n *Node) updateLoop(ctx context.Context) {
	logger.Debug("enter update loop")
	defer logger.Debug("leave update loop")

	if n.bridge == nil || n.opts.UpdateCadence <= 0 {
		return
	}

	ticker := time.NewTicker(n.opts.UpdateCadence)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n.refreshWeights()
		}
	}
}

// refreshWeights recomputes every registered operator's weight at the
// current chain head. Deregistered operators keep their zero weight and are
// skipped.
func (n *Node) refreshWeights() {
	head := n.chainHead.Load()
	if head == 0 {
		return
	}

	var ops []vigil.Address
	for _, info := range n.reg.Operators() {
		if info.Registered {
			ops = append(ops, info.Address)
		}
	}
	if len(ops) == 0 {
		return
	}

	startTime := mclock.Now()
	if err := n.reg.UpdateOperators(ops, head); err != nil {
		logger.Warn("weight refresh failed", "block", head, "err", err)
		return
	}
	logger.Info("weights refreshed",
		"operators", len(ops),
		"block", head,
		"elapsed", time.Duration(mclock.Now()-startTime),
	)
}

func (n *Node) snapshotLoop(ctx context.Context) {
	logger.Debug("enter snapshot loop")
	defer logger.Debug("leave snapshot loop")

	if n.stor == nil || n.opts.SnapshotInterval <= 0 {
		return
	}

	ticker := time.NewTicker(n.opts.SnapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if head, err := n.SaveNow(); err != nil {
				logger.Warn("failed to save snapshot", "err", err)
			} else {
				logger.Debug("snapshot saved", "head", head)
			}
		}
	}
}
