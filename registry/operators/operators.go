// Copyright (c) 2025 The Vigil developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package operators maintains the per-operator records of the registry: the
// registration and jail flags plus the block-indexed signing key and weight
// histories. Records are created lazily on first touch and never physically
// deleted, so historical queries keep working after an operator leaves.
package operators

import (
	"io"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/vigilprotocol/vigil/checkpoint"
	"github.com/vigilprotocol/vigil/vigil"
)

var (
	// ErrNotRegistered is returned when an operation requires a currently
	// registered operator.
	ErrNotRegistered = errors.New("operator not registered")

	// ErrAlreadyRegistered is returned when registering an operator that
	// already holds an active registration.
	ErrAlreadyRegistered = errors.New("operator already registered")
)

// Record is the mutable per-operator state. The zero value is an unregistered
// operator with empty histories.
type Record struct {
	registered  bool
	jailed      bool
	jailedBy    vigil.Address
	signingKeys checkpoint.History[vigil.Address]
	weights     checkpoint.History[uint256.Int]
}

// Registered reports whether the operator currently holds an active
// registration.
func (r *Record) Registered() bool {
	return r.registered
}

// SetRegistered flips the registration flag. Deregistration is logical only;
// the histories stay in place.
func (r *Record) SetRegistered(v bool) {
	r.registered = v
}

// Jailed reports whether the operator carries the jail flag.
func (r *Record) Jailed() bool {
	return r.jailed
}

// JailedBy returns the challenger that set the jail flag, or the zero address
// if the operator is not jailed.
func (r *Record) JailedBy() vigil.Address {
	return r.jailedBy
}

// Jail sets the jail flag on behalf of the given challenger. Authorization is
// checked by the caller against the enrollment state.
func (r *Record) Jail(by vigil.Address) {
	r.jailed = true
	r.jailedBy = by
}

// Unjail clears the jail flag.
func (r *Record) Unjail() {
	r.jailed = false
	r.jailedBy = vigil.Address{}
}

// SigningKeys returns the operator's signing key history. The history is owned
// by the record; callers mutate it only through the registry's write path.
func (r *Record) SigningKeys() *checkpoint.History[vigil.Address] {
	return &r.signingKeys
}

// Weights returns the operator's weight history.
func (r *Record) Weights() *checkpoint.History[uint256.Int] {
	return &r.weights
}

type recordBody struct {
	Registered  bool
	Jailed      bool
	JailedBy    vigil.Address
	SigningKeys []checkpoint.Checkpoint[vigil.Address]
	Weights     []checkpoint.Checkpoint[uint256.Int]
}

// EncodeRLP implements rlp.Encoder.
func (r *Record) EncodeRLP(w io.Writer) error {
	return rlp.Encode(w, &recordBody{
		Registered:  r.registered,
		Jailed:      r.jailed,
		JailedBy:    r.jailedBy,
		SigningKeys: r.signingKeys.Checkpoints(),
		Weights:     r.weights.Checkpoints(),
	})
}

// DecodeRLP implements rlp.Decoder.
func (r *Record) DecodeRLP(s *rlp.Stream) error {
	var body recordBody
	if err := s.Decode(&body); err != nil {
		return err
	}
	keys, err := checkpoint.FromCheckpoints(body.SigningKeys)
	if err != nil {
		return errors.WithMessage(err, "signing key history")
	}
	weights, err := checkpoint.FromCheckpoints(body.Weights)
	if err != nil {
		return errors.WithMessage(err, "weight history")
	}
	*r = Record{
		registered:  body.Registered,
		jailed:      body.Jailed,
		jailedBy:    body.JailedBy,
		signingKeys: *keys,
		weights:     *weights,
	}
	return nil
}

// Ledger indexes operator records by address. Iteration follows first-touch
// order so exports and batch sweeps are deterministic.
//
// Ledger is not safe for concurrent use; the owning registry serializes
// access.
type Ledger struct {
	records map[vigil.Address]*Record
	order   []vigil.Address
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{records: make(map[vigil.Address]*Record)}
}

// Get returns the record for the given operator, or nil if the operator was
// never seen.
func (l *Ledger) Get(op vigil.Address) *Record {
	return l.records[op]
}

// GetOrCreate returns the record for the given operator, creating an empty
// one on first touch.
func (l *Ledger) GetOrCreate(op vigil.Address) *Record {
	if r, ok := l.records[op]; ok {
		return r
	}
	r := &Record{}
	l.records[op] = r
	l.order = append(l.order, op)
	return r
}

// Put installs a restored record, replacing any existing one.
func (l *Ledger) Put(op vigil.Address, r *Record) {
	if _, ok := l.records[op]; !ok {
		l.order = append(l.order, op)
	}
	l.records[op] = r
}

// IsRegistered reports whether the operator currently holds an active
// registration.
func (l *Ledger) IsRegistered(op vigil.Address) bool {
	r := l.records[op]
	return r != nil && r.registered
}

// Len returns the number of known operators, registered or not.
func (l *Ledger) Len() int {
	return len(l.records)
}

// RegisteredCount returns the number of currently registered operators.
func (l *Ledger) RegisteredCount() int {
	n := 0
	for _, op := range l.order {
		if l.records[op].registered {
			n++
		}
	}
	return n
}

// ForEach visits every known record in first-touch order. It stops at the
// first error and returns it.
func (l *Ledger) ForEach(fn func(vigil.Address, *Record) error) error {
	for _, op := range l.order {
		if err := fn(op, l.records[op]); err != nil {
			return err
		}
	}
	return nil
}

// ForEachRegistered visits only currently registered operators, in first-touch
// order.
func (l *Ledger) ForEachRegistered(fn func(vigil.Address, *Record) error) error {
	return l.ForEach(func(op vigil.Address, r *Record) error {
		if !r.registered {
			return nil
		}
		return fn(op, r)
	})
}
