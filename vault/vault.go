// Copyright (c) 2025 The Vigil developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package vault declares the read-only view of the external restaking core
// that the registry consumes. The registry never mutates vault state; share
// accounting, deposits and withdrawal mechanics live entirely on the other
// side of these interfaces.
package vault

import (
	"github.com/holiman/uint256"

	"github.com/vigilprotocol/vigil/vigil"
)

// Core reports operator stake positions.
type Core interface {
	// StakedVaults returns the vaults the operator currently restakes
	// into, order as reported by the core.
	StakedVaults(operator vigil.Address) ([]vigil.Address, error)

	// VaultAsset returns the asset a vault holds. The binding is immutable
	// for the lifetime of a vault, so results may be memoized.
	VaultAsset(vault vigil.Address) (vigil.Address, error)

	// ReportableBalance returns the operator's stake in the vault counted
	// for weighting: amounts queued for withdrawal are already excluded,
	// so exiting stake cannot back signatures during the exit window.
	ReportableBalance(operator, vault vigil.Address) (*uint256.Int, error)
}

// ChallengerDirectory resolves per-challenger enrollment parameters.
type ChallengerDirectory interface {
	// ChallengeDelay returns the number of blocks an operator must wait
	// between starting and completing unenrollment from the challenger.
	// An unknown challenger is reported as an error.
	//
	// Deployments must configure each delay to be at least the external
	// stake-withdrawal delay; the registry relies on that property but
	// cannot check it.
	ChallengeDelay(challenger vigil.Address) (uint64, error)
}
