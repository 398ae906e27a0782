// Copyright (c) 2025 The Vigil developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package datagen

import (
	"crypto/rand"

	"github.com/vigilprotocol/vigil/vigil"
)

func RandAddress() (a vigil.Address) {
	rand.Read(a[:])
	return
}
