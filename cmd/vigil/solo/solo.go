// Copyright (c) 2025 The Vigil developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package solo provides a stand-in vault core so the registry can run
// detached from any chain, for test & dev. Every operator weighs zero and
// state only changes through the admin API.
package solo

import (
	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/vigilprotocol/vigil/vigil"
)

// Core implements vault.Core without a chain behind it.
type Core struct{}

// StakedVaults reports no vaults for any operator.
func (Core) StakedVaults(_ vigil.Address) ([]vigil.Address, error) {
	return nil, nil
}

// VaultAsset fails for every vault. With StakedVaults always empty the
// weight engine never asks, so a call here is a bug.
func (Core) VaultAsset(vault vigil.Address) (vigil.Address, error) {
	return vigil.Address{}, errors.Errorf("unknown vault %v", vault)
}

// ReportableBalance reports zero stake everywhere.
func (Core) ReportableBalance(_, _ vigil.Address) (*uint256.Int, error) {
	return new(uint256.Int), nil
}
