// Copyright (c) 2025 The Vigil developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package operators

import (
	"github.com/holiman/uint256"

	"github.com/vigilprotocol/vigil/registry"
	"github.com/vigilprotocol/vigil/vigil"
)

type Operator struct {
	Address     vigil.Address   `json:"address"`
	Registered  bool            `json:"registered"`
	Jailed      bool            `json:"jailed"`
	JailedBy    *vigil.Address  `json:"jailedBy,omitempty"`
	SigningKey  vigil.Address   `json:"signingKey"`
	Weight      *uint256.Int    `json:"weight"`
	Challengers []vigil.Address `json:"challengers"`
}

func convertOperator(info *registry.OperatorInfo) *Operator {
	op := &Operator{
		Address:     info.Address,
		Registered:  info.Registered,
		Jailed:      info.Jailed,
		SigningKey:  info.SigningKey,
		Weight:      info.Weight,
		Challengers: info.Challengers,
	}
	if info.Jailed {
		jailer := info.JailedBy
		op.JailedBy = &jailer
	}
	return op
}

type Vault struct {
	Vault        vigil.Address `json:"vault"`
	Asset        vigil.Address `json:"asset"`
	Balance      *uint256.Int  `json:"balance"`
	QuorumWeight uint64        `json:"quorumWeight"`
}

func convertVault(v *registry.VaultInfo) *Vault {
	return &Vault{
		Vault:        v.Vault,
		Asset:        v.Asset,
		Balance:      v.Balance,
		QuorumWeight: v.QuorumWeight,
	}
}

type Challenger struct {
	Address vigil.Address `json:"address"`
	Status  string        `json:"status"`
	// Block the pending unenrollment started at, present only while pending.
	UnenrollmentStartedAt *uint64 `json:"unenrollmentStartedAt,omitempty"`
}

type SigningKey struct {
	Key   vigil.Address `json:"key"`
	Block *uint64       `json:"block,omitempty"`
}

type Weight struct {
	Weight *uint256.Int `json:"weight"`
	Block  *uint64      `json:"block,omitempty"`
}
