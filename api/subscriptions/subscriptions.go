// Copyright (c) 2025 The Vigil developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package subscriptions

import (
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/vigilprotocol/vigil/api/utils"
	"github.com/vigilprotocol/vigil/log"
	"github.com/vigilprotocol/vigil/registry"
	"github.com/vigilprotocol/vigil/vigil"
)

var logger = log.WithContext("pkg", "subscriptions")

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

type Subscriptions struct {
	hub  *hub
	done chan struct{}
}

func New() *Subscriptions {
	return &Subscriptions{
		hub:  newHub(),
		done: make(chan struct{}),
	}
}

// Publish hands a committed event to all matching subscribers. It never
// blocks and is safe to call from the registry sink.
func (s *Subscriptions) Publish(ev *registry.Event) {
	s.hub.publish(ev)
}

// Close drops all subscribers and makes their handlers return.
func (s *Subscriptions) Close() {
	close(s.done)
	s.hub.close()
}

func parseFilter(query url.Values) (spec filterSpec, err error) {
	if raw := query.Get("kind"); raw != "" {
		kind := registry.Kind(raw)
		spec.kind = &kind
	}
	if raw := query.Get("operator"); raw != "" {
		addr, err := vigil.ParseAddress(raw)
		if err != nil {
			return filterSpec{}, errors.WithMessage(err, "operator")
		}
		spec.operator = &addr
	}
	if raw := query.Get("challenger"); raw != "" {
		addr, err := vigil.ParseAddress(raw)
		if err != nil {
			return filterSpec{}, errors.WithMessage(err, "challenger")
		}
		spec.challenger = &addr
	}
	return spec, nil
}

func (s *Subscriptions) handleSubscribeEvents(w http.ResponseWriter, req *http.Request) error {
	spec, err := parseFilter(req.URL.Query())
	if err != nil {
		return utils.BadRequest(err)
	}

	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		// the upgrader already responded with an error
		return nil
	}
	defer conn.Close()

	sub := s.hub.subscribe(spec)
	defer s.hub.unsubscribe(sub)

	// the read loop notices the peer going away
	peerGone := make(chan struct{})
	go func() {
		defer close(peerGone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	pingTicker := time.NewTicker(pingPeriod)
	defer pingTicker.Stop()

	for {
		select {
		case ev, ok := <-sub.ch:
			if !ok {
				// dropped as a slow consumer or the hub closed
				deadline := time.Now().Add(writeWait)
				msg := websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "cannot keep up")
				_ = conn.WriteControl(websocket.CloseMessage, msg, deadline)
				return nil
			}
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return nil
			}
			if err := conn.WriteJSON(ev); err != nil {
				logger.Debug("subscriber write failed", "err", err)
				return nil
			}
		case <-pingTicker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return nil
			}
		case <-peerGone:
			return nil
		case <-s.done:
			return nil
		}
	}
}

func (s *Subscriptions) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("/events").
		Methods(http.MethodGet).
		Name("GET /subscriptions/events").
		HandlerFunc(utils.WrapHandlerFunc(s.handleSubscribeEvents))
}
