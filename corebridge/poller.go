// Copyright (c) 2025 The Vigil developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package corebridge

import (
	"context"
	"time"

	"github.com/vigilprotocol/vigil/log"
)

var logger = log.WithContext("pkg", "corebridge")

const defaultPollInterval = 5 * time.Second

// HeadFunc receives each newly observed chain head.
type HeadFunc func(head uint64)

// PollHeads polls the execution client for the chain head until ctx ends,
// invoking onHead for each advance. The first poll happens immediately; a
// failed poll is logged and retried on the next tick.
func (b *Bridge) PollHeads(ctx context.Context, interval time.Duration, onHead HeadFunc) {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last uint64
	for {
		head, err := b.head(ctx)
		switch {
		case ctx.Err() != nil:
			return
		case err != nil:
			logger.Warn("head poll failed", "err", err)
		case head > last:
			last = head
			onHead(head)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (b *Bridge) head(ctx context.Context) (uint64, error) {
	callCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return b.client.BlockNumber(callCtx)
}
