// Copyright (c) 2025 The Vigil developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package quorum

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/vigilprotocol/vigil/api/utils"
	"github.com/vigilprotocol/vigil/registry"
	regquorum "github.com/vigilprotocol/vigil/registry/quorum"
)

type Config struct {
	Version       uint64                  `json:"version"`
	Assets        []regquorum.AssetWeight `json:"assets"`
	MinimumWeight *uint256.Int            `json:"minimumWeight,omitempty"`
}

type Weights struct {
	Total     *uint256.Int `json:"total"`
	Threshold *uint256.Int `json:"threshold"`
	Block     *uint64      `json:"block,omitempty"`
}

type Quorum struct {
	reg *registry.Registry
}

func New(reg *registry.Registry) *Quorum {
	return &Quorum{reg}
}

func (q *Quorum) handleGetConfig(w http.ResponseWriter, _ *http.Request) error {
	return utils.WriteJSON(w, &Config{
		Version:       q.reg.QuorumVersion(),
		Assets:        q.reg.Quorum(),
		MinimumWeight: q.reg.MinimumWeight(),
	})
}

func (q *Quorum) handleGetWeights(w http.ResponseWriter, req *http.Request) error {
	ref, err := utils.ParseBlockRef(req.URL.Query().Get("block"))
	if err != nil {
		return utils.BadRequest(errors.WithMessage(err, "block"))
	}
	if n, ok := ref.Number(); ok {
		total, err := q.reg.TotalWeightAt(n)
		if err != nil {
			return utils.BadRequest(errors.WithMessage(err, "block"))
		}
		threshold, err := q.reg.ThresholdWeightAt(n)
		if err != nil {
			return utils.BadRequest(errors.WithMessage(err, "block"))
		}
		return utils.WriteJSON(w, &Weights{Total: total, Threshold: threshold, Block: &n})
	}
	return utils.WriteJSON(w, &Weights{
		Total:     q.reg.TotalWeight(),
		Threshold: q.reg.ThresholdWeight(),
	})
}

func (q *Quorum) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("").
		Methods(http.MethodGet).
		Name("GET /quorum").
		HandlerFunc(utils.WrapHandlerFunc(q.handleGetConfig))
	sub.Path("/weights").
		Methods(http.MethodGet).
		Name("GET /quorum/weights").
		HandlerFunc(utils.WrapHandlerFunc(q.handleGetWeights))
}
