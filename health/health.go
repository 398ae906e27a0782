// Copyright (c) 2025 The Vigil developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package health

import (
	"sync"
	"time"
)

// DefaultRecencyWindow bounds how long the head may stand still before the
// node reports unhealthy.
const DefaultRecencyWindow = 2 * time.Minute

type HeadIngestion struct {
	Head       uint64     `json:"head"`
	IngestedAt *time.Time `json:"ingestedAt"`
}

type Status struct {
	Healthy       bool           `json:"healthy"`
	HeadIngestion *HeadIngestion `json:"headIngestion"`
	ChainSync     bool           `json:"chainSync"`
}

type Health struct {
	lock          sync.RWMutex
	newHeadAt     time.Time
	head          uint64
	chainSynced   bool
	recencyWindow time.Duration
}

func New(recencyWindow time.Duration) *Health {
	if recencyWindow <= 0 {
		recencyWindow = DefaultRecencyWindow
	}
	return &Health{recencyWindow: recencyWindow}
}

// NewHead records a freshly ingested head block.
func (h *Health) NewHead(head uint64) {
	h.lock.Lock()
	defer h.lock.Unlock()

	h.newHeadAt = time.Now()
	h.head = head
}

func (h *Health) ChainSyncStatus(synced bool) {
	h.lock.Lock()
	defer h.lock.Unlock()

	h.chainSynced = synced
}

func (h *Health) Status() (*Status, error) {
	return h.StatusWithin(0)
}

// StatusWithin evaluates health against the given recency window. A
// non-positive window falls back to the configured one.
func (h *Health) StatusWithin(window time.Duration) (*Status, error) {
	h.lock.RLock()
	defer h.lock.RUnlock()

	if window <= 0 {
		window = h.recencyWindow
	}

	ingestion := &HeadIngestion{Head: h.head}
	if !h.newHeadAt.IsZero() {
		at := h.newHeadAt
		ingestion.IngestedAt = &at
	}

	healthy := !h.newHeadAt.IsZero() &&
		time.Since(h.newHeadAt) <= window &&
		h.chainSynced

	return &Status{
		Healthy:       healthy,
		HeadIngestion: ingestion,
		ChainSync:     h.chainSynced,
	}, nil
}
