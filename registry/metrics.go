// Copyright (c) 2025 The Vigil developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package registry

import (
	"math"

	"github.com/holiman/uint256"

	"github.com/vigilprotocol/vigil/metrics"
)

var (
	metricHeadBlock           = metrics.LazyLoadGauge("registry_head_block_gauge")
	metricRegisteredOperators = metrics.LazyLoadGauge("registry_registered_operators_gauge")
	metricTotalWeight         = metrics.LazyLoadGauge("registry_total_weight_gauge")
	metricMutationCounter     = metrics.LazyLoadCounterVec("registry_mutation_count", []string{"op"})
	metricVerificationCounter = metrics.LazyLoadCounterVec("registry_verification_count", []string{"outcome"})
	metricEventCounter        = metrics.LazyLoadCounter("registry_event_count")
)

// gaugeValue clamps a weight into the int64 range a gauge can carry.
func gaugeValue(w *uint256.Int) int64 {
	if !w.IsUint64() {
		return math.MaxInt64
	}
	u := w.Uint64()
	if u > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(u)
}
