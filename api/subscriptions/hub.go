// Copyright (c) 2025 The Vigil developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package subscriptions

import (
	"sync"

	"github.com/vigilprotocol/vigil/registry"
	"github.com/vigilprotocol/vigil/vigil"
)

const subQueueSize = 64

type filterSpec struct {
	kind       *registry.Kind
	operator   *vigil.Address
	challenger *vigil.Address
}

func (f *filterSpec) match(ev *registry.Event) bool {
	if f.kind != nil && ev.Kind != *f.kind {
		return false
	}
	if f.operator != nil && (ev.Operator == nil || *ev.Operator != *f.operator) {
		return false
	}
	if f.challenger != nil && (ev.Challenger == nil || *ev.Challenger != *f.challenger) {
		return false
	}
	return true
}

type subscriber struct {
	spec filterSpec
	ch   chan *registry.Event
}

// hub fans committed events out to subscribers. Publish never blocks; a
// subscriber that cannot keep up has its channel closed and is dropped.
type hub struct {
	mu     sync.Mutex
	subs   map[*subscriber]struct{}
	closed bool
}

func newHub() *hub {
	return &hub{subs: make(map[*subscriber]struct{})}
}

func (h *hub) subscribe(spec filterSpec) *subscriber {
	sub := &subscriber{
		spec: spec,
		ch:   make(chan *registry.Event, subQueueSize),
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(sub.ch)
		return sub
	}
	h.subs[sub] = struct{}{}
	return sub
}

func (h *hub) unsubscribe(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[sub]; ok {
		delete(h.subs, sub)
		close(sub.ch)
	}
}

func (h *hub) publish(ev *registry.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		if !sub.spec.match(ev) {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			delete(h.subs, sub)
			close(sub.ch)
		}
	}
}

func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for sub := range h.subs {
		delete(h.subs, sub)
		close(sub.ch)
	}
}
