// Copyright (c) 2025 The Vigil developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package vigil

// Constants of the weighting scheme.
const (
	// WeightDenominator is the basis-point denominator every quorum's asset
	// weights must sum to. Vault balances are scaled by assetWeight/WeightDenominator
	// when converted into operator weight.
	WeightDenominator uint64 = 10_000

	// SignatureLength is the length of a raw secp256k1 signature [R || S || V].
	SignatureLength = 65
)
