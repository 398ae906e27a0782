// Copyright (c) 2025 The Vigil developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package registry composes the operator ledger, quorum configuration, weight
// engine, enrollment state machine and signature verifier behind a single
// serialized facade. Every mutation is atomic and totally ordered; reads of
// historical state are snapshot safe because the underlying histories are
// append-only.
package registry

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/vigilprotocol/vigil/checkpoint"
	"github.com/vigilprotocol/vigil/log"
	"github.com/vigilprotocol/vigil/registry/enrollment"
	"github.com/vigilprotocol/vigil/registry/operators"
	"github.com/vigilprotocol/vigil/registry/quorum"
	"github.com/vigilprotocol/vigil/registry/verifier"
	"github.com/vigilprotocol/vigil/registry/weights"
	"github.com/vigilprotocol/vigil/vault"
	"github.com/vigilprotocol/vigil/vigil"
)

var logger = log.WithContext("pkg", "registry")

var (
	// ErrInvalidReferenceBlock is returned by historical queries whose
	// reference block is not strictly in the past. The registry never
	// silently clamps to latest.
	ErrInvalidReferenceBlock = errors.New("reference block not strictly in the past")

	// ErrChallengerNotAuthorized is returned when a jail request comes from
	// a challenger the operator is not currently enrolled with.
	ErrChallengerNotAuthorized = errors.New("challenger not authorized")

	// ErrInvalidSigningKey is returned when a registration or rotation
	// carries the zero signing key.
	ErrInvalidSigningKey = errors.New("invalid signing key")
)

// Options configures a new Registry.
type Options struct {
	// Quorum is the initial asset-weight configuration, installed at
	// version 0.
	Quorum quorum.Quorum

	// MinimumWeight is the floor-or-nothing threshold; nil means no floor.
	MinimumWeight *uint256.Int

	// ThresholdWeight, when non-nil, is recorded at GenesisBlock as the
	// initial signer-set threshold.
	ThresholdWeight *uint256.Int

	// GenesisBlock is the block the registry starts tracking from; the head
	// starts here.
	GenesisBlock uint64

	Core      vault.Core
	Directory vault.ChallengerDirectory

	// ContractSigner optionally verifies contract-based signing keys.
	ContractSigner verifier.ContractSigner

	// Sink receives committed events; may be nil.
	Sink Sink
}

// Registry is the facade over all registry state. A single RWMutex serializes
// mutations; reads take the read lock.
type Registry struct {
	mu sync.RWMutex

	core      vault.Core
	directory vault.ChallengerDirectory
	sink      Sink

	ledger  *operators.Ledger
	quorums *quorum.Service
	pairs   *enrollment.Service
	engine  *weights.Service
	check   *verifier.Verifier

	head uint64
}

// New builds a registry from the given options.
func New(opts Options) (*Registry, error) {
	if opts.Core == nil {
		return nil, errors.New("nil vault core")
	}
	if opts.Directory == nil {
		return nil, errors.New("nil challenger directory")
	}
	quorums, err := quorum.New(opts.Quorum, opts.MinimumWeight)
	if err != nil {
		return nil, err
	}

	r := &Registry{
		core:      opts.Core,
		directory: opts.Directory,
		sink:      opts.Sink,
		ledger:    operators.NewLedger(),
		quorums:   quorums,
		head:      opts.GenesisBlock,
	}
	r.engine = weights.New(r.ledger, quorums, opts.Core)
	r.pairs = enrollment.New(r.ledger, opts.Directory)
	r.check = verifier.New(historicalSource{r}, opts.ContractSigner)

	if opts.ThresholdWeight != nil {
		if err := r.engine.UpdateThreshold(opts.ThresholdWeight, opts.GenesisBlock); err != nil {
			return nil, err
		}
	}
	metricHeadBlock().Set(int64(r.head))
	return r, nil
}

// historicalSource adapts the registry's current state to the verifier. The
// caller holds at least the read lock.
type historicalSource struct {
	r *Registry
}

func (s historicalSource) SigningKeyAt(op vigil.Address, block uint64) vigil.Address {
	if rec := s.r.ledger.Get(op); rec != nil {
		return rec.SigningKeys().AtBlock(block)
	}
	return vigil.Address{}
}

func (s historicalSource) WeightAt(op vigil.Address, block uint64) *uint256.Int {
	if rec := s.r.ledger.Get(op); rec != nil {
		w := rec.Weights().AtBlock(block)
		return &w
	}
	return new(uint256.Int)
}

func (s historicalSource) TotalWeightAt(block uint64) *uint256.Int {
	w := s.r.engine.Total().AtBlock(block)
	return &w
}

func (s historicalSource) ThresholdWeightAt(block uint64) *uint256.Int {
	w := s.r.engine.Threshold().AtBlock(block)
	return &w
}

func (r *Registry) emit(ev *Event) {
	metricEventCounter().Add(1)
	if r.sink != nil {
		r.sink(ev)
	}
}

// advance validates the mutation block against the head and moves the head
// forward. Callers hold the write lock.
func (r *Registry) advance(block uint64) error {
	if block < r.head {
		return errors.WithMessagef(checkpoint.ErrBlockOutOfOrder,
			"mutation at block %d behind head %d", block, r.head)
	}
	r.head = block
	metricHeadBlock().Set(int64(block))
	return nil
}

// OnBlock advances the head to the given chain height. Lower heights are
// ignored, keeping the head monotonic across out-of-order notifications.
func (r *Registry) OnBlock(height uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if height <= r.head {
		return
	}
	r.head = height
	metricHeadBlock().Set(int64(height))
}

// Head returns the highest block the registry has seen.
func (r *Registry) Head() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.head
}

// RegisterOperator activates the operator with the given signing key at the
// given block: the registered flag flips, the weight and total histories are
// brought up to date and the signing key is recorded. All external queries
// are staged before the first write, so a collaborator failure leaves no
// partial state.
func (r *Registry) RegisterOperator(op, signingKey vigil.Address, block uint64) error {
	if signingKey.IsZero() {
		return errors.WithMessagef(ErrInvalidSigningKey, "operator %v", op)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.advance(block); err != nil {
		return err
	}
	if r.ledger.IsRegistered(op) {
		return errors.WithMessagef(operators.ErrAlreadyRegistered, "operator %v", op)
	}
	weight, err := r.engine.ComputeWeight(op)
	if err != nil {
		return err
	}

	rec := r.ledger.GetOrCreate(op)
	rec.SetRegistered(true)
	d, err := r.engine.ApplyWeight(op, weight, block)
	if err != nil {
		return err
	}
	total, err := r.engine.UpdateTotalWeight(d, block)
	if err != nil {
		return err
	}
	keyChanged := rec.SigningKeys().Latest() != signingKey
	if err := rec.SigningKeys().Push(block, signingKey); err != nil {
		return err
	}

	metricMutationCounter().AddWithLabel(1, map[string]string{"op": "register"})
	metricRegisteredOperators().Set(int64(r.ledger.RegisteredCount()))
	metricTotalWeight().Set(gaugeValue(total))
	logger.Info("operator registered", "operator", op, "weight", weight.Dec(), "block", block)

	r.emit(&Event{Block: block, Kind: KindOperatorRegistered, Operator: &op})
	if !d.IsZero() {
		r.emit(&Event{Block: block, Kind: KindOperatorWeightUpdated, Operator: &op, Amount: weight})
		r.emit(&Event{Block: block, Kind: KindTotalWeightUpdated, Amount: total})
	}
	if keyChanged {
		r.emit(&Event{Block: block, Kind: KindSigningKeyRotated, Operator: &op, Key: &signingKey})
	}
	return nil
}

// DeregisterOperator logically deletes the operator: the registered flag
// clears first, the weight is forced to zero with the matching total update,
// and every enrollment pair is drained without delay validation. Histories
// are retained for historical queries.
func (r *Registry) DeregisterOperator(op vigil.Address, block uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.advance(block); err != nil {
		return err
	}
	rec := r.ledger.Get(op)
	if rec == nil || !rec.Registered() {
		return errors.WithMessagef(operators.ErrNotRegistered, "operator %v", op)
	}

	rec.SetRegistered(false)
	d, err := r.engine.UpdateOperatorWeight(op, block)
	if err != nil {
		return err
	}
	total, err := r.engine.UpdateTotalWeight(d, block)
	if err != nil {
		return err
	}
	drained := r.pairs.DrainAll(op)

	metricMutationCounter().AddWithLabel(1, map[string]string{"op": "deregister"})
	metricRegisteredOperators().Set(int64(r.ledger.RegisteredCount()))
	metricTotalWeight().Set(gaugeValue(total))
	logger.Info("operator deregistered", "operator", op, "block", block, "drained", len(drained))

	r.emit(&Event{Block: block, Kind: KindOperatorDeregistered, Operator: &op})
	if !d.IsZero() {
		r.emit(&Event{Block: block, Kind: KindOperatorWeightUpdated, Operator: &op, Amount: new(uint256.Int)})
		r.emit(&Event{Block: block, Kind: KindTotalWeightUpdated, Amount: total})
	}
	for i := range drained {
		r.emit(&Event{Block: block, Kind: KindUnenrolled, Operator: &op, Challenger: &drained[i], Detail: "deregistration"})
	}
	return nil
}

// UpdateSigningKey rotates the operator's signing key. Rotating to the
// current key is a no-op.
func (r *Registry) UpdateSigningKey(op, key vigil.Address, block uint64) error {
	if key.IsZero() {
		return errors.WithMessagef(ErrInvalidSigningKey, "operator %v", op)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.advance(block); err != nil {
		return err
	}
	rec := r.ledger.Get(op)
	if rec == nil || !rec.Registered() {
		return errors.WithMessagef(operators.ErrNotRegistered, "operator %v", op)
	}
	if rec.SigningKeys().Latest() == key {
		return nil
	}
	if err := rec.SigningKeys().Push(block, key); err != nil {
		return err
	}

	metricMutationCounter().AddWithLabel(1, map[string]string{"op": "update_key"})
	logger.Info("signing key rotated", "operator", op, "key", key, "block", block)
	r.emit(&Event{Block: block, Kind: KindSigningKeyRotated, Operator: &op, Key: &key})
	return nil
}

// UpdateOperators recomputes the listed operators' weights and folds the
// deltas into one total update. Strict all-or-nothing per the engine.
func (r *Registry) UpdateOperators(ops []vigil.Address, block uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.advance(block); err != nil {
		return err
	}
	prevTotal := r.engine.Total().Latest()
	changes, err := r.engine.UpdateOperators(ops, block)
	if err != nil {
		return err
	}

	metricMutationCounter().AddWithLabel(1, map[string]string{"op": "update_operators"})
	r.emitWeightChanges(block, changes, prevTotal)
	return nil
}

type quorumChange struct {
	Before quorum.Quorum `json:"before"`
	After  quorum.Quorum `json:"after"`
}

// UpdateQuorum validates and installs a new asset-weight configuration, then
// recomputes the listed operators under it with a single total update. New
// weights are computed against the candidate configuration before anything is
// installed, so a rejected batch leaves the old quorum in place untouched.
func (r *Registry) UpdateQuorum(newQuorum quorum.Quorum, ops []vigil.Address, block uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.advance(block); err != nil {
		return err
	}
	if err := quorum.Validate(newQuorum); err != nil {
		return fmt.Errorf("%w: %w", quorum.ErrInvalidQuorum, err)
	}
	minimum := r.quorums.MinimumWeight()
	computed := make([]*uint256.Int, len(ops))
	for i, op := range ops {
		if !r.ledger.IsRegistered(op) {
			return errors.WithMessagef(operators.ErrNotRegistered, "operator %v", op)
		}
		w, err := weights.Compute(r.core, newQuorum, minimum, op)
		if err != nil {
			return err
		}
		computed[i] = w
	}

	old, err := r.quorums.Update(newQuorum)
	if err != nil {
		return err
	}
	prevTotal := r.engine.Total().Latest()
	changes, err := r.engine.ApplyOperators(ops, computed, block)
	if err != nil {
		return err
	}

	metricMutationCounter().AddWithLabel(1, map[string]string{"op": "update_quorum"})
	logger.Info("quorum updated", "version", r.quorums.Version(), "assets", len(newQuorum), "block", block)

	detail, _ := json.Marshal(quorumChange{Before: old, After: r.quorums.Entries()})
	r.emit(&Event{Block: block, Kind: KindQuorumUpdated, Detail: string(detail)})
	r.emitWeightChanges(block, changes, prevTotal)
	return nil
}

// UpdateMinimumWeight replaces the floor-or-nothing threshold and recomputes
// the listed operators under it. nil clears the floor.
func (r *Registry) UpdateMinimumWeight(newMinimum *uint256.Int, ops []vigil.Address, block uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.advance(block); err != nil {
		return err
	}
	minimum := new(uint256.Int)
	if newMinimum != nil {
		minimum.Set(newMinimum)
	}
	computed := make([]*uint256.Int, len(ops))
	for i, op := range ops {
		if !r.ledger.IsRegistered(op) {
			return errors.WithMessagef(operators.ErrNotRegistered, "operator %v", op)
		}
		w, err := weights.Compute(r.core, r.quorums, minimum, op)
		if err != nil {
			return err
		}
		computed[i] = w
	}

	r.quorums.SetMinimumWeight(minimum)
	prevTotal := r.engine.Total().Latest()
	changes, err := r.engine.ApplyOperators(ops, computed, block)
	if err != nil {
		return err
	}

	metricMutationCounter().AddWithLabel(1, map[string]string{"op": "update_minimum"})
	logger.Info("minimum weight updated", "minimum", minimum.Dec(), "block", block)

	r.emit(&Event{Block: block, Kind: KindMinimumWeightUpdated, Amount: minimum})
	r.emitWeightChanges(block, changes, prevTotal)
	return nil
}

// UpdateStakeThreshold records a new signer-set threshold weight.
func (r *Registry) UpdateStakeThreshold(threshold *uint256.Int, block uint64) error {
	if threshold == nil {
		return errors.New("nil threshold")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.advance(block); err != nil {
		return err
	}
	changed := r.engine.Threshold().Latest() != *threshold
	if err := r.engine.UpdateThreshold(threshold, block); err != nil {
		return err
	}

	metricMutationCounter().AddWithLabel(1, map[string]string{"op": "update_threshold"})
	logger.Info("stake threshold updated", "threshold", threshold.Dec(), "block", block)
	if changed {
		amount := new(uint256.Int).Set(threshold)
		r.emit(&Event{Block: block, Kind: KindThresholdUpdated, Amount: amount})
	}
	return nil
}

func (r *Registry) emitWeightChanges(block uint64, changes []weights.WeightChange, prevTotal uint256.Int) {
	for i := range changes {
		c := &changes[i]
		if c.Delta.IsZero() {
			continue
		}
		w := c.Weight
		r.emit(&Event{Block: block, Kind: KindOperatorWeightUpdated, Operator: &c.Operator, Amount: &w})
	}
	total := r.engine.Total().Latest()
	metricTotalWeight().Set(gaugeValue(&total))
	if total != prevTotal {
		t := total
		r.emit(&Event{Block: block, Kind: KindTotalWeightUpdated, Amount: &t})
	}
}

// Enroll enrolls the operator with the challenger. Enrolling an already
// enrolled pair is a no-op.
func (r *Registry) Enroll(op, challenger vigil.Address, block uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.advance(block); err != nil {
		return err
	}
	prior, _ := r.pairs.Status(op, challenger)
	if err := r.pairs.Enroll(op, challenger); err != nil {
		return err
	}
	if prior == enrollment.StatusEnrolled {
		return nil
	}

	metricMutationCounter().AddWithLabel(1, map[string]string{"op": "enroll"})
	logger.Info("operator enrolled", "operator", op, "challenger", challenger, "block", block)
	r.emit(&Event{Block: block, Kind: KindEnrolled, Operator: &op, Challenger: &challenger})
	return nil
}

// StartUnenrollment begins the delayed unenrollment of the pair at the given
// block. Already pending pairs are left untouched.
func (r *Registry) StartUnenrollment(op, challenger vigil.Address, block uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.advance(block); err != nil {
		return err
	}
	prior, _ := r.pairs.Status(op, challenger)
	if err := r.pairs.StartUnenrollment(op, challenger, block); err != nil {
		return err
	}
	if prior == enrollment.StatusPendingUnenrollment {
		return nil
	}

	metricMutationCounter().AddWithLabel(1, map[string]string{"op": "start_unenrollment"})
	logger.Info("unenrollment started", "operator", op, "challenger", challenger, "block", block)
	r.emit(&Event{Block: block, Kind: KindUnenrollmentStarted, Operator: &op, Challenger: &challenger})
	return nil
}

// CompleteUnenrollment finishes a pending unenrollment. With validateDelay
// the challenger's delay window must have elapsed.
func (r *Registry) CompleteUnenrollment(op, challenger vigil.Address, block uint64, validateDelay bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.advance(block); err != nil {
		return err
	}
	if err := r.pairs.CompleteUnenrollment(op, challenger, block, validateDelay); err != nil {
		return err
	}

	metricMutationCounter().AddWithLabel(1, map[string]string{"op": "complete_unenrollment"})
	logger.Info("operator unenrolled", "operator", op, "challenger", challenger, "block", block)
	r.emit(&Event{Block: block, Kind: KindUnenrolled, Operator: &op, Challenger: &challenger})
	return nil
}

// Jail flags the operator on behalf of a challenger it is currently enrolled
// with. The flag has no automatic effect on weights or verification; drivers
// decide the consequences.
func (r *Registry) Jail(op, challenger vigil.Address, block uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.advance(block); err != nil {
		return err
	}
	rec := r.ledger.Get(op)
	if rec == nil || !rec.Registered() {
		return errors.WithMessagef(operators.ErrNotRegistered, "operator %v", op)
	}
	if !r.pairs.IsEnrolled(op, challenger) {
		return errors.WithMessagef(ErrChallengerNotAuthorized, "challenger %v", challenger)
	}
	if rec.Jailed() {
		return nil
	}
	rec.Jail(challenger)

	metricMutationCounter().AddWithLabel(1, map[string]string{"op": "jail"})
	logger.Warn("operator jailed", "operator", op, "challenger", challenger, "block", block)
	r.emit(&Event{Block: block, Kind: KindJailed, Operator: &op, Challenger: &challenger})
	return nil
}

// Unjail clears the jail flag. It is the owner/admin counterpart of Jail and
// is idempotent.
func (r *Registry) Unjail(op vigil.Address, block uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.advance(block); err != nil {
		return err
	}
	rec := r.ledger.Get(op)
	if rec == nil {
		return errors.WithMessagef(operators.ErrNotRegistered, "operator %v", op)
	}
	if !rec.Jailed() {
		return nil
	}
	jailer := rec.JailedBy()
	rec.Unjail()

	metricMutationCounter().AddWithLabel(1, map[string]string{"op": "unjail"})
	logger.Info("operator unjailed", "operator", op, "block", block)
	r.emit(&Event{Block: block, Kind: KindUnjailed, Operator: &op, Challenger: &jailer})
	return nil
}

// Verify checks a weighted multi-signature against the state at
// referenceBlock, which must be strictly below the current head.
func (r *Registry) Verify(hash vigil.Bytes32, signers []vigil.Address, sigs [][]byte, referenceBlock uint64) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if referenceBlock >= r.head {
		metricVerificationCounter().AddWithLabel(1, map[string]string{"outcome": "bad_reference"})
		return errors.WithMessagef(ErrInvalidReferenceBlock, "reference %d, head %d", referenceBlock, r.head)
	}
	err := r.check.Verify(hash, signers, sigs, referenceBlock)
	metricVerificationCounter().AddWithLabel(1, map[string]string{"outcome": verifyOutcome(err)})
	return err
}

func verifyOutcome(err error) string {
	switch {
	case err == nil:
		return "valid"
	case errors.Is(err, verifier.ErrInsufficientSignedWeight):
		return "insufficient_weight"
	case errors.Is(err, verifier.ErrInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, verifier.ErrNotSorted),
		errors.Is(err, verifier.ErrLengthMismatch),
		errors.Is(err, verifier.ErrEmptySignerSet):
		return "malformed"
	case errors.Is(err, verifier.ErrSignedWeightExceedsTotal):
		return "integrity"
	default:
		return "error"
	}
}

// OperatorInfo is a read snapshot of one operator.
type OperatorInfo struct {
	Address     vigil.Address
	Registered  bool
	Jailed      bool
	JailedBy    vigil.Address
	SigningKey  vigil.Address
	Weight      *uint256.Int
	Challengers []vigil.Address
}

func (r *Registry) operatorInfo(op vigil.Address, rec *operators.Record) *OperatorInfo {
	weight := rec.Weights().Latest()
	return &OperatorInfo{
		Address:     op,
		Registered:  rec.Registered(),
		Jailed:      rec.Jailed(),
		JailedBy:    rec.JailedBy(),
		SigningKey:  rec.SigningKeys().Latest(),
		Weight:      &weight,
		Challengers: r.pairs.Challengers(op),
	}
}

// Operator returns a snapshot of the operator, or false if the operator was
// never seen.
func (r *Registry) Operator(op vigil.Address) (*OperatorInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec := r.ledger.Get(op)
	if rec == nil {
		return nil, false
	}
	return r.operatorInfo(op, rec), true
}

// Operators returns snapshots of every known operator in first-touch order,
// deregistered ones included.
func (r *Registry) Operators() []*OperatorInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*OperatorInfo, 0, r.ledger.Len())
	_ = r.ledger.ForEach(func(op vigil.Address, rec *operators.Record) error {
		out = append(out, r.operatorInfo(op, rec))
		return nil
	})
	return out
}

// OperatorCount returns the number of known operators, registered or not.
func (r *Registry) OperatorCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ledger.Len()
}

// RegisteredCount returns the number of currently registered operators.
func (r *Registry) RegisteredCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ledger.RegisteredCount()
}

func (r *Registry) pastOnly(block uint64) error {
	if block >= r.head {
		return errors.WithMessagef(ErrInvalidReferenceBlock, "reference %d, head %d", block, r.head)
	}
	return nil
}

// SigningKeyAt returns the operator's signing key as of a strictly past
// block.
func (r *Registry) SigningKeyAt(op vigil.Address, block uint64) (vigil.Address, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if err := r.pastOnly(block); err != nil {
		return vigil.Address{}, err
	}
	return historicalSource{r}.SigningKeyAt(op, block), nil
}

// OperatorWeightAt returns the operator's weight as of a strictly past block.
func (r *Registry) OperatorWeightAt(op vigil.Address, block uint64) (*uint256.Int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if err := r.pastOnly(block); err != nil {
		return nil, err
	}
	return historicalSource{r}.WeightAt(op, block), nil
}

// TotalWeightAt returns the aggregate weight as of a strictly past block.
func (r *Registry) TotalWeightAt(block uint64) (*uint256.Int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if err := r.pastOnly(block); err != nil {
		return nil, err
	}
	return historicalSource{r}.TotalWeightAt(block), nil
}

// ThresholdWeightAt returns the threshold weight as of a strictly past block.
func (r *Registry) ThresholdWeightAt(block uint64) (*uint256.Int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if err := r.pastOnly(block); err != nil {
		return nil, err
	}
	return historicalSource{r}.ThresholdWeightAt(block), nil
}

// TotalWeight returns the latest aggregate weight.
func (r *Registry) TotalWeight() *uint256.Int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	w := r.engine.Total().Latest()
	return &w
}

// ThresholdWeight returns the latest threshold weight.
func (r *Registry) ThresholdWeight() *uint256.Int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	w := r.engine.Threshold().Latest()
	return &w
}

// MinimumWeight returns the current floor-or-nothing threshold.
func (r *Registry) MinimumWeight() *uint256.Int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.quorums.MinimumWeight()
}

// Quorum returns the current asset-weight configuration.
func (r *Registry) Quorum() quorum.Quorum {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.quorums.Entries()
}

// QuorumVersion returns the current configuration version index.
func (r *Registry) QuorumVersion() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.quorums.Version()
}

// RestakeableAssets lists the assets of the current quorum, order preserved.
func (r *Registry) RestakeableAssets() []vigil.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.quorums.RestakeableAssets()
}

// EnrollmentStatus returns the pair's state and, when pending, the block the
// unenrollment started at.
func (r *Registry) EnrollmentStatus(op, challenger vigil.Address) (enrollment.Status, uint64) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.pairs.Status(op, challenger)
}

// Challengers lists the challengers the operator has a tracked pair with.
func (r *Registry) Challengers(op vigil.Address) []vigil.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.pairs.Challengers(op)
}

// VaultInfo describes one staked vault that counts toward an operator's
// weight.
type VaultInfo struct {
	Vault        vigil.Address
	Asset        vigil.Address
	Balance      *uint256.Int
	QuorumWeight uint64
}

// OperatorVaults lists the operator's staked vaults whose assets participate
// in the current quorum. The external collaborator is queried outside the
// registry lock.
func (r *Registry) OperatorVaults(op vigil.Address) ([]VaultInfo, error) {
	r.mu.RLock()
	entries := r.quorums.Entries()
	r.mu.RUnlock()

	vaults, err := r.core.StakedVaults(op)
	if err != nil {
		return nil, errors.Wrapf(err, "staked vaults of %v", op)
	}
	var out []VaultInfo
	for _, v := range vaults {
		asset, err := r.core.VaultAsset(v)
		if err != nil {
			return nil, errors.Wrapf(err, "asset of vault %v", v)
		}
		weight := entries.WeightOf(asset)
		if weight == 0 {
			continue
		}
		balance, err := r.core.ReportableBalance(op, v)
		if err != nil {
			return nil, errors.Wrapf(err, "balance of vault %v", v)
		}
		out = append(out, VaultInfo{
			Vault:        v,
			Asset:        asset,
			Balance:      balance,
			QuorumWeight: weight,
		})
	}
	return out, nil
}
