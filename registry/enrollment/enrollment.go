// Copyright (c) 2025 The Vigil developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package enrollment implements the challenger enrollment state machine. Each
// (operator, challenger) pair moves UNENROLLED -> ENROLLED ->
// PENDING_UNENROLLMENT and back to implicit UNENROLLED when the entry is
// removed. Unenrollment is delayed so a challenger keeps a guaranteed window
// to detect and penalize misbehavior before the operator walks away.
package enrollment

import (
	"slices"

	"github.com/pkg/errors"

	"github.com/vigilprotocol/vigil/registry/operators"
	"github.com/vigilprotocol/vigil/vault"
	"github.com/vigilprotocol/vigil/vigil"
)

var (
	// ErrPendingUnenrollment is returned when enrolling a pair that has an
	// unenrollment in flight. The pair must complete unenrollment first.
	ErrPendingUnenrollment = errors.New("unenrollment pending for challenger")

	// ErrNotEnrolled is returned when starting unenrollment for a pair that
	// is not enrolled.
	ErrNotEnrolled = errors.New("operator not enrolled with challenger")

	// ErrNotQueuedForUnenrollment is returned when completing unenrollment
	// for a pair that never started it.
	ErrNotQueuedForUnenrollment = errors.New("operator not queued for unenrollment")

	// ErrChallengeDelayNotPassed is returned when completing unenrollment
	// before the challenger's delay window has elapsed.
	ErrChallengeDelayNotPassed = errors.New("challenge delay not passed")
)

// Status is the enrollment state of an (operator, challenger) pair.
type Status uint8

const (
	StatusUnenrolled Status = iota
	StatusEnrolled
	StatusPendingUnenrollment
)

func (s Status) String() string {
	switch s {
	case StatusUnenrolled:
		return "unenrolled"
	case StatusEnrolled:
		return "enrolled"
	case StatusPendingUnenrollment:
		return "pendingUnenrollment"
	default:
		return "unknown"
	}
}

// Enrollment tracks one (operator, challenger) relationship. Absent entries
// are implicitly UNENROLLED.
type Enrollment struct {
	Status     Status
	StartBlock uint64 // block at which unenrollment was requested
}

// Registrar is the slice of the operator ledger the state machine needs.
type Registrar interface {
	IsRegistered(op vigil.Address) bool
}

// Service owns the enrollment pairs of all operators.
//
// Service is not safe for concurrent use; the owning registry serializes
// access.
type Service struct {
	registrar Registrar
	directory vault.ChallengerDirectory
	pairs     map[vigil.Address]map[vigil.Address]*Enrollment
}

// New creates the state machine on top of the given registrar and challenger
// directory.
func New(registrar Registrar, directory vault.ChallengerDirectory) *Service {
	return &Service{
		registrar: registrar,
		directory: directory,
		pairs:     make(map[vigil.Address]map[vigil.Address]*Enrollment),
	}
}

// Status returns the pair's state and, for PENDING_UNENROLLMENT, the block at
// which unenrollment started.
func (s *Service) Status(op, challenger vigil.Address) (Status, uint64) {
	e := s.pairs[op][challenger]
	if e == nil {
		return StatusUnenrolled, 0
	}
	return e.Status, e.StartBlock
}

// IsEnrolled reports whether the pair is currently ENROLLED.
func (s *Service) IsEnrolled(op, challenger vigil.Address) bool {
	st, _ := s.Status(op, challenger)
	return st == StatusEnrolled
}

// Enroll moves the pair from UNENROLLED to ENROLLED. Re-enrolling an already
// enrolled pair is a no-op, so batch enrollments stay idempotent. A pair with
// an unenrollment in flight must complete it first.
func (s *Service) Enroll(op, challenger vigil.Address) error {
	if !s.registrar.IsRegistered(op) {
		return operators.ErrNotRegistered
	}
	switch st, _ := s.Status(op, challenger); st {
	case StatusEnrolled:
		return nil
	case StatusPendingUnenrollment:
		return errors.WithMessagef(ErrPendingUnenrollment, "challenger %v", challenger)
	}
	byCh := s.pairs[op]
	if byCh == nil {
		byCh = make(map[vigil.Address]*Enrollment)
		s.pairs[op] = byCh
	}
	byCh[challenger] = &Enrollment{Status: StatusEnrolled}
	return nil
}

// StartUnenrollment records the current block and moves the pair to
// PENDING_UNENROLLMENT. Calling it again while pending is a no-op.
func (s *Service) StartUnenrollment(op, challenger vigil.Address, block uint64) error {
	e := s.pairs[op][challenger]
	if e == nil {
		return errors.WithMessagef(ErrNotEnrolled, "challenger %v", challenger)
	}
	if e.Status == StatusPendingUnenrollment {
		return nil
	}
	e.Status = StatusPendingUnenrollment
	e.StartBlock = block
	return nil
}

// CompleteUnenrollment removes the pair, reverting it to implicit UNENROLLED.
// The pair must be PENDING_UNENROLLMENT. With validateDelay the current block
// must be at least StartBlock plus the challenger's delay; without it the
// delay check is skipped, which is the deregistration path where the operator
// has already served the external unstaking delay.
func (s *Service) CompleteUnenrollment(op, challenger vigil.Address, block uint64, validateDelay bool) error {
	e := s.pairs[op][challenger]
	if e == nil || e.Status != StatusPendingUnenrollment {
		return errors.WithMessagef(ErrNotQueuedForUnenrollment, "challenger %v", challenger)
	}
	if validateDelay {
		delay, err := s.directory.ChallengeDelay(challenger)
		if err != nil {
			return errors.Wrapf(err, "challenge delay of %v", challenger)
		}
		if block < e.StartBlock+delay {
			return errors.WithMessagef(ErrChallengeDelayNotPassed,
				"eligible at block %d, current %d", e.StartBlock+delay, block)
		}
	}
	s.remove(op, challenger)
	return nil
}

// DrainAll removes every tracked pair of the operator regardless of state and
// returns the affected challengers in ascending order. Used when the operator
// deregisters.
func (s *Service) DrainAll(op vigil.Address) []vigil.Address {
	byCh := s.pairs[op]
	if len(byCh) == 0 {
		return nil
	}
	drained := make([]vigil.Address, 0, len(byCh))
	for ch := range byCh {
		drained = append(drained, ch)
	}
	slices.SortFunc(drained, vigil.Address.Compare)
	delete(s.pairs, op)
	return drained
}

// Challengers returns the challengers the operator has a tracked pair with,
// in ascending order.
func (s *Service) Challengers(op vigil.Address) []vigil.Address {
	byCh := s.pairs[op]
	if len(byCh) == 0 {
		return nil
	}
	list := make([]vigil.Address, 0, len(byCh))
	for ch := range byCh {
		list = append(list, ch)
	}
	slices.SortFunc(list, vigil.Address.Compare)
	return list
}

func (s *Service) remove(op, challenger vigil.Address) {
	byCh := s.pairs[op]
	delete(byCh, challenger)
	if len(byCh) == 0 {
		delete(s.pairs, op)
	}
}

// PairState is the exportable state of one tracked pair.
type PairState struct {
	Operator   vigil.Address
	Challenger vigil.Address
	Status     Status
	StartBlock uint64
}

// Export returns all tracked pairs ordered by operator then challenger.
func (s *Service) Export() []PairState {
	var out []PairState
	for op, byCh := range s.pairs {
		for ch, e := range byCh {
			out = append(out, PairState{
				Operator:   op,
				Challenger: ch,
				Status:     e.Status,
				StartBlock: e.StartBlock,
			})
		}
	}
	slices.SortFunc(out, func(a, b PairState) int {
		if c := a.Operator.Compare(b.Operator); c != 0 {
			return c
		}
		return a.Challenger.Compare(b.Challenger)
	})
	return out
}

// Restore replaces the tracked pairs with a previously exported set.
func (s *Service) Restore(pairs []PairState) error {
	restored := make(map[vigil.Address]map[vigil.Address]*Enrollment)
	for _, p := range pairs {
		if p.Status != StatusEnrolled && p.Status != StatusPendingUnenrollment {
			return errors.Errorf("restore: invalid enrollment status %d", p.Status)
		}
		byCh := restored[p.Operator]
		if byCh == nil {
			byCh = make(map[vigil.Address]*Enrollment)
			restored[p.Operator] = byCh
		}
		byCh[p.Challenger] = &Enrollment{Status: p.Status, StartBlock: p.StartBlock}
	}
	s.pairs = restored
	return nil
}
