// Copyright (c) 2025 The Vigil developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package registry

import (
	"github.com/holiman/uint256"

	"github.com/vigilprotocol/vigil/vigil"
)

// Kind identifies a registry event type.
type Kind string

const (
	KindOperatorRegistered    Kind = "operator_registered"
	KindOperatorDeregistered  Kind = "operator_deregistered"
	KindSigningKeyRotated     Kind = "signing_key_rotated"
	KindOperatorWeightUpdated Kind = "operator_weight_updated"
	KindTotalWeightUpdated    Kind = "total_weight_updated"
	KindThresholdUpdated      Kind = "threshold_updated"
	KindMinimumWeightUpdated  Kind = "minimum_weight_updated"
	KindQuorumUpdated         Kind = "quorum_updated"
	KindEnrolled              Kind = "enrolled"
	KindUnenrollmentStarted   Kind = "unenrollment_started"
	KindUnenrolled            Kind = "unenrolled"
	KindJailed                Kind = "jailed"
	KindUnjailed              Kind = "unjailed"
)

// Event is one committed registry state change. Fields beyond Block and Kind
// are set when the kind carries them.
type Event struct {
	Block      uint64         `json:"block"`
	Kind       Kind           `json:"kind"`
	Operator   *vigil.Address `json:"operator,omitempty"`
	Challenger *vigil.Address `json:"challenger,omitempty"`
	Key        *vigil.Address `json:"key,omitempty"`
	Amount     *uint256.Int   `json:"amount,omitempty"`
	Detail     string         `json:"detail,omitempty"`
}

// Sink consumes committed events. It is called inside the mutation's critical
// section so events arrive in commit order; implementations must be fast and
// must not call back into the registry. A typical sink hands the event to a
// buffered channel.
type Sink func(ev *Event)
