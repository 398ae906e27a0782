// Copyright (c) 2025 The Vigil developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package node

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/holiman/uint256"

	"github.com/vigilprotocol/vigil/api/utils"
	"github.com/vigilprotocol/vigil/registry"
	"github.com/vigilprotocol/vigil/vigil"
)

// ChainStatus reports the watched chain's progress. It is nil when the node
// runs detached from a chain.
type ChainStatus interface {
	ChainHead() uint64
	Synced() bool
}

type Status struct {
	Head            uint64        `json:"head"`
	GenesisID       vigil.Bytes32 `json:"genesisId"`
	OperatorCount   int           `json:"operatorCount"`
	RegisteredCount int           `json:"registeredCount"`
	TotalWeight     *uint256.Int  `json:"totalWeight"`
	ThresholdWeight *uint256.Int  `json:"thresholdWeight"`
	QuorumVersion   uint64        `json:"quorumVersion"`
	ChainHead       *uint64       `json:"chainHead,omitempty"`
	Synced          *bool         `json:"synced,omitempty"`
}

type Node struct {
	reg       *registry.Registry
	genesisID vigil.Bytes32
	chain     ChainStatus
}

func New(reg *registry.Registry, genesisID vigil.Bytes32, chain ChainStatus) *Node {
	return &Node{reg, genesisID, chain}
}

func (n *Node) handleGetStatus(w http.ResponseWriter, _ *http.Request) error {
	status := &Status{
		Head:            n.reg.Head(),
		GenesisID:       n.genesisID,
		OperatorCount:   n.reg.OperatorCount(),
		RegisteredCount: n.reg.RegisteredCount(),
		TotalWeight:     n.reg.TotalWeight(),
		ThresholdWeight: n.reg.ThresholdWeight(),
		QuorumVersion:   n.reg.QuorumVersion(),
	}
	if n.chain != nil {
		head := n.chain.ChainHead()
		synced := n.chain.Synced()
		status.ChainHead = &head
		status.Synced = &synced
	}
	return utils.WriteJSON(w, status)
}

func (n *Node) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("/status").
		Methods(http.MethodGet).
		Name("GET /node/status").
		HandlerFunc(utils.WrapHandlerFunc(n.handleGetStatus))
}
