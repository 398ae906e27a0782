// Copyright (c) 2025 The Vigil developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package corebridge

import "github.com/vigilprotocol/vigil/metrics"

var metricAssetCacheHitMiss = metrics.LazyLoadGaugeVec("corebridge_asset_cache_hit_miss_gauge", []string{"event"})
