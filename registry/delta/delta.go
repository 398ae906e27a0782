// Copyright (c) 2025 The Vigil developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package delta carries signed weight adjustments between the weight engine
// and the running totals. Magnitudes are 256-bit and every operation is
// overflow-checked; totals must never wrap silently.
package delta

import (
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
)

var (
	// ErrNegativeTotal reports that applying a delta would drive a total
	// below zero. Totals are maintained incrementally from per-operator
	// deltas, so going negative means the bookkeeping itself is broken and
	// the caller must treat it as fatal.
	ErrNegativeTotal = errors.New("delta would drive total negative")

	// ErrOverflow reports 256-bit overflow while combining magnitudes.
	ErrOverflow = errors.New("delta magnitude overflow")
)

// Delta is a signed 256-bit value in sign-and-magnitude form.
// The zero Delta is the additive identity.
type Delta struct {
	neg bool
	mag uint256.Int
}

// Of returns the signed difference to - from.
func Of(from, to *uint256.Int) Delta {
	var d Delta
	switch to.Cmp(from) {
	case 1:
		d.mag.Sub(to, from)
	case -1:
		d.neg = true
		d.mag.Sub(from, to)
	}
	return d
}

// IsZero reports whether d is the identity.
func (d *Delta) IsZero() bool {
	return d.mag.IsZero()
}

// Sign returns -1, 0 or 1.
func (d *Delta) Sign() int {
	if d.mag.IsZero() {
		return 0
	}
	if d.neg {
		return -1
	}
	return 1
}

// Magnitude returns a copy of the absolute value of d.
func (d *Delta) Magnitude() *uint256.Int {
	return new(uint256.Int).Set(&d.mag)
}

// Add accumulates other into d.
func (d *Delta) Add(other Delta) error {
	if other.mag.IsZero() {
		return nil
	}
	if d.mag.IsZero() {
		*d = other
		return nil
	}

	if d.neg == other.neg {
		if _, overflow := d.mag.AddOverflow(&d.mag, &other.mag); overflow {
			return ErrOverflow
		}
		return nil
	}

	// opposite signs cancel; the larger magnitude determines the sign
	switch d.mag.Cmp(&other.mag) {
	case 1:
		d.mag.Sub(&d.mag, &other.mag)
	case -1:
		d.mag.Sub(&other.mag, &d.mag)
		d.neg = other.neg
	default:
		*d = Delta{}
	}
	return nil
}

// Apply returns total adjusted by d. A negative result is reported as
// ErrNegativeTotal and a 256-bit overflow as ErrOverflow; total is never
// modified in place.
func (d *Delta) Apply(total *uint256.Int) (*uint256.Int, error) {
	result := new(uint256.Int)
	if d.neg {
		if _, underflow := result.SubOverflow(total, &d.mag); underflow {
			return nil, errors.WithMessagef(ErrNegativeTotal, "total %s, delta -%s", total.Dec(), d.mag.Dec())
		}
		return result, nil
	}
	if _, overflow := result.AddOverflow(total, &d.mag); overflow {
		return nil, ErrOverflow
	}
	return result, nil
}

// String renders d with an explicit sign, e.g. "+250" or "-10"; the identity
// renders as "0".
func (d *Delta) String() string {
	switch d.Sign() {
	case -1:
		return "-" + d.mag.Dec()
	case 1:
		return "+" + d.mag.Dec()
	default:
		return "0"
	}
}
