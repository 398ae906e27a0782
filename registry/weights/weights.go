// Copyright (c) 2025 The Vigil developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package weights derives operator weights from externally reported vault
// holdings and keeps the aggregate histories consistent. The total weight is
// maintained incrementally through signed deltas and is never recomputed from
// scratch.
package weights

import (
	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/vigilprotocol/vigil/checkpoint"
	"github.com/vigilprotocol/vigil/registry/delta"
	"github.com/vigilprotocol/vigil/registry/operators"
	"github.com/vigilprotocol/vigil/registry/quorum"
	"github.com/vigilprotocol/vigil/vault"
	"github.com/vigilprotocol/vigil/vigil"
)

// ErrWeightOverflow is returned when scaled vault balances exceed the uint256
// range. Balances that large indicate corrupt collaborator data.
var ErrWeightOverflow = errors.New("operator weight overflow")

// Service computes and records operator weights. It owns the two global
// histories: the total weight of all registered operators and the threshold
// weight required of signer sets.
//
// Service is not safe for concurrent use; the owning registry serializes
// access.
type Service struct {
	ledger *operators.Ledger
	quorum *quorum.Service
	core   vault.Core

	total     checkpoint.History[uint256.Int]
	threshold checkpoint.History[uint256.Int]
}

// New creates the weight engine on top of the operator ledger, the active
// quorum and the external vault core.
func New(ledger *operators.Ledger, quorum *quorum.Service, core vault.Core) *Service {
	return &Service{
		ledger: ledger,
		quorum: quorum,
		core:   core,
	}
}

// WeightLookup resolves the basis-point weight of an asset, 0 when the asset
// does not participate. Both quorum.Service and a plain quorum.Quorum satisfy
// it, so weights can be computed under a candidate quorum before it is
// installed.
type WeightLookup interface {
	WeightOf(asset vigil.Address) uint64
}

// Compute derives an operator's weight under the given asset weights and
// minimum: for every staked vault whose asset participates, the reportable
// balance is scaled by the asset's basis-point weight, the scaled balances
// are summed and divided by the weight denominator. A result below minimum
// floors to zero rather than counting partially. minimum may be nil.
//
// Compute performs no writes.
func Compute(core vault.Core, lookup WeightLookup, minimum *uint256.Int, op vigil.Address) (*uint256.Int, error) {
	vaults, err := core.StakedVaults(op)
	if err != nil {
		return nil, errors.Wrapf(err, "staked vaults of %v", op)
	}
	sum := new(uint256.Int)
	for _, v := range vaults {
		asset, err := core.VaultAsset(v)
		if err != nil {
			return nil, errors.Wrapf(err, "asset of vault %v", v)
		}
		weight := lookup.WeightOf(asset)
		if weight == 0 {
			continue
		}
		balance, err := core.ReportableBalance(op, v)
		if err != nil {
			return nil, errors.Wrapf(err, "balance of vault %v", v)
		}
		var scaled uint256.Int
		if _, overflow := scaled.MulOverflow(balance, uint256.NewInt(weight)); overflow {
			return nil, errors.WithMessagef(ErrWeightOverflow, "vault %v", v)
		}
		if _, overflow := sum.AddOverflow(sum, &scaled); overflow {
			return nil, errors.WithMessagef(ErrWeightOverflow, "operator %v", op)
		}
	}
	sum.Div(sum, uint256.NewInt(vigil.WeightDenominator))
	if minimum != nil && sum.Lt(minimum) {
		return new(uint256.Int), nil
	}
	return sum, nil
}

// ComputeWeight derives the operator's current weight under the active quorum
// and minimum weight. See Compute.
func (s *Service) ComputeWeight(op vigil.Address) (*uint256.Int, error) {
	return Compute(s.core, s.quorum, s.quorum.MinimumWeight(), op)
}

// UpdateOperatorWeight recomputes the operator's weight and records it at the
// given block. An unregistered operator is forced to weight zero. When the
// weight is unchanged no checkpoint is written. The returned delta feeds
// UpdateTotalWeight.
func (s *Service) UpdateOperatorWeight(op vigil.Address, block uint64) (delta.Delta, error) {
	newWeight := new(uint256.Int)
	if s.ledger.IsRegistered(op) {
		w, err := s.ComputeWeight(op)
		if err != nil {
			return delta.Delta{}, err
		}
		newWeight = w
	}
	return s.ApplyWeight(op, newWeight, block)
}

// ApplyWeight records a precomputed weight for the operator. It exists so
// multi-step mutations can stage every fallible computation before the first
// write; a failure here means the block order invariant broke. When the
// weight is unchanged no checkpoint is written and the returned delta is
// zero.
func (s *Service) ApplyWeight(op vigil.Address, newWeight *uint256.Int, block uint64) (delta.Delta, error) {
	rec := s.ledger.Get(op)
	var old uint256.Int
	if rec != nil {
		old = rec.Weights().Latest()
	}
	d := delta.Of(&old, newWeight)
	if d.IsZero() {
		return d, nil
	}
	if rec == nil {
		rec = s.ledger.GetOrCreate(op)
	}
	if err := rec.Weights().Push(block, *newWeight); err != nil {
		return delta.Delta{}, err
	}
	return d, nil
}

// UpdateTotalWeight applies a signed delta to the latest total and records
// the result. A delta that would drive the total negative means per-operator
// and aggregate bookkeeping have diverged; the resulting error is fatal for
// the mutation that produced it and must not be suppressed.
func (s *Service) UpdateTotalWeight(d delta.Delta, block uint64) (*uint256.Int, error) {
	current := s.total.Latest()
	next, err := d.Apply(&current)
	if err != nil {
		return nil, errors.WithMessage(err, "total weight")
	}
	if err := s.total.Push(block, *next); err != nil {
		return nil, err
	}
	return next, nil
}

// WeightChange reports one applied per-operator weight update.
type WeightChange struct {
	Operator vigil.Address
	Weight   uint256.Int // weight after the update
	Delta    delta.Delta
}

// UpdateOperators recomputes every listed operator at the given block and
// folds the per-operator deltas into a single total weight update. The batch
// is all-or-nothing: an unregistered operator or a collaborator failure
// rejects the whole batch before any checkpoint is written. The returned
// changes cover every listed operator, including no-op entries with a zero
// delta.
func (s *Service) UpdateOperators(ops []vigil.Address, block uint64) ([]WeightChange, error) {
	computed := make([]*uint256.Int, len(ops))
	for i, op := range ops {
		if !s.ledger.IsRegistered(op) {
			return nil, errors.WithMessagef(operators.ErrNotRegistered, "operator %v", op)
		}
		w, err := s.ComputeWeight(op)
		if err != nil {
			return nil, err
		}
		computed[i] = w
	}
	return s.applyBatch(ops, computed, block)
}

// ApplyOperators records precomputed weights for a batch of operators with a
// single folded total update. Like ApplyWeight, it is the staged write phase
// of a mutation that computed its weights up front.
func (s *Service) ApplyOperators(ops []vigil.Address, computed []*uint256.Int, block uint64) ([]WeightChange, error) {
	return s.applyBatch(ops, computed, block)
}

func (s *Service) applyBatch(ops []vigil.Address, computed []*uint256.Int, block uint64) ([]WeightChange, error) {
	changes := make([]WeightChange, 0, len(ops))
	var sum delta.Delta
	for i, op := range ops {
		d, err := s.ApplyWeight(op, computed[i], block)
		if err != nil {
			return nil, err
		}
		if err := sum.Add(d); err != nil {
			return nil, errors.WithMessagef(err, "operator %v", op)
		}
		changes = append(changes, WeightChange{Operator: op, Weight: *computed[i], Delta: d})
	}
	if _, err := s.UpdateTotalWeight(sum, block); err != nil {
		return nil, err
	}
	return changes, nil
}

// UpdateThreshold records a new threshold weight at the given block.
func (s *Service) UpdateThreshold(threshold *uint256.Int, block uint64) error {
	return s.threshold.Push(block, *threshold)
}

// Total returns the aggregate weight history of all registered operators.
func (s *Service) Total() *checkpoint.History[uint256.Int] {
	return &s.total
}

// Threshold returns the threshold weight history.
func (s *Service) Threshold() *checkpoint.History[uint256.Int] {
	return &s.threshold
}

// Restore replaces the global histories with previously exported ones.
func (s *Service) Restore(total, threshold *checkpoint.History[uint256.Int]) {
	s.total = *total
	s.threshold = *threshold
}
