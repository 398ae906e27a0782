// Copyright (c) 2025 The Vigil developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package genesis

import (
	"github.com/vigilprotocol/vigil/registry/quorum"
	"github.com/vigilprotocol/vigil/vigil"
)

// Devnet returns a fixed configuration for local development: two restaked
// assets, one challenger with a short delay, no operators and no thresholds.
func Devnet() *Config {
	return &Config{
		Name: "devnet",
		Quorum: quorum.Quorum{
			{Asset: vigil.MustParseAddress("0x7f39c581f595b53c5cb19bd0b3f8da6c935e2ca0"), Weight: 6000},
			{Asset: vigil.MustParseAddress("0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2"), Weight: 4000},
		},
		Challengers: []Challenger{
			{Address: vigil.MustParseAddress("0x4e59b44847b379578588920ca78fbf26c0b4956c"), ChallengeDelay: 10},
		},
	}
}
