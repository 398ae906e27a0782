// Copyright (c) 2025 The Vigil developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package registry

import (
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/vigilprotocol/vigil/checkpoint"
	"github.com/vigilprotocol/vigil/registry/enrollment"
	"github.com/vigilprotocol/vigil/registry/operators"
	"github.com/vigilprotocol/vigil/registry/quorum"
	"github.com/vigilprotocol/vigil/registry/weights"
	"github.com/vigilprotocol/vigil/vigil"
)

type operatorSnapshot struct {
	Address vigil.Address
	Record  *operators.Record
}

// snapshot is the wire form of the full registry state. A zero MinimumWeight
// means no floor.
type snapshot struct {
	Head          uint64
	QuorumVersion uint64
	Quorum        quorum.Quorum
	MinimumWeight uint256.Int
	Total         []checkpoint.Checkpoint[uint256.Int]
	Threshold     []checkpoint.Checkpoint[uint256.Int]
	Operators     []operatorSnapshot
	Pairs         []enrollment.PairState
}

// ExportState serializes the full registry state. The encoding is
// deterministic: operators in first-touch order, enrollment pairs sorted.
func (r *Registry) ExportState() ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := snapshot{
		Head:          r.head,
		QuorumVersion: r.quorums.Version(),
		Quorum:        r.quorums.Entries(),
		MinimumWeight: *r.quorums.MinimumWeight(),
		Total:         r.engine.Total().Checkpoints(),
		Threshold:     r.engine.Threshold().Checkpoints(),
		Pairs:         r.pairs.Export(),
	}
	_ = r.ledger.ForEach(func(op vigil.Address, rec *operators.Record) error {
		snap.Operators = append(snap.Operators, operatorSnapshot{Address: op, Record: rec})
		return nil
	})
	return rlp.EncodeToBytes(&snap)
}

// RestoreState replaces the registry state with a previously exported
// snapshot. The replacement services are assembled off to the side and
// swapped in under the write lock; committed events are not replayed.
func (r *Registry) RestoreState(data []byte) error {
	var snap snapshot
	if err := rlp.DecodeBytes(data, &snap); err != nil {
		return errors.Wrap(err, "decode registry state")
	}

	minimum := snap.MinimumWeight
	quorums, err := quorum.Restore(snap.Quorum, snap.QuorumVersion, &minimum)
	if err != nil {
		return errors.WithMessage(err, "restore quorum")
	}
	ledger := operators.NewLedger()
	for _, os := range snap.Operators {
		if os.Record == nil {
			return errors.Errorf("restore: missing record for operator %v", os.Address)
		}
		ledger.Put(os.Address, os.Record)
	}
	total, err := checkpoint.FromCheckpoints(snap.Total)
	if err != nil {
		return errors.WithMessage(err, "total weight history")
	}
	threshold, err := checkpoint.FromCheckpoints(snap.Threshold)
	if err != nil {
		return errors.WithMessage(err, "threshold history")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	pairs := enrollment.New(ledger, r.directory)
	if err := pairs.Restore(snap.Pairs); err != nil {
		return err
	}
	engine := weights.New(ledger, quorums, r.core)
	engine.Restore(total, threshold)

	r.ledger = ledger
	r.quorums = quorums
	r.pairs = pairs
	r.engine = engine
	r.head = snap.Head

	metricHeadBlock().Set(int64(r.head))
	metricRegisteredOperators().Set(int64(ledger.RegisteredCount()))
	t := engine.Total().Latest()
	metricTotalWeight().Set(gaugeValue(&t))
	logger.Info("state restored", "head", snap.Head, "operators", len(snap.Operators), "pairs", len(snap.Pairs))
	return nil
}
