// Copyright (c) 2025 The Vigil developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package operators

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/vigilprotocol/vigil/api/utils"
	"github.com/vigilprotocol/vigil/registry"
	"github.com/vigilprotocol/vigil/registry/enrollment"
	"github.com/vigilprotocol/vigil/vigil"
)

type Operators struct {
	reg *registry.Registry
}

func New(reg *registry.Registry) *Operators {
	return &Operators{reg}
}

func (o *Operators) handleGetOperators(w http.ResponseWriter, _ *http.Request) error {
	infos := o.reg.Operators()
	out := make([]*Operator, len(infos))
	for i, info := range infos {
		out[i] = convertOperator(info)
	}
	return utils.WriteJSON(w, out)
}

func (o *Operators) handleGetOperator(w http.ResponseWriter, req *http.Request) error {
	addr, err := vigil.ParseAddress(mux.Vars(req)["address"])
	if err != nil {
		return utils.BadRequest(errors.WithMessage(err, "address"))
	}
	info, found := o.reg.Operator(addr)
	if !found {
		return utils.WriteJSON(w, nil)
	}
	return utils.WriteJSON(w, convertOperator(info))
}

func (o *Operators) handleGetVaults(w http.ResponseWriter, req *http.Request) error {
	addr, err := vigil.ParseAddress(mux.Vars(req)["address"])
	if err != nil {
		return utils.BadRequest(errors.WithMessage(err, "address"))
	}
	vaults, err := o.reg.OperatorVaults(addr)
	if err != nil {
		return err
	}
	out := make([]*Vault, len(vaults))
	for i := range vaults {
		out[i] = convertVault(&vaults[i])
	}
	return utils.WriteJSON(w, out)
}

func (o *Operators) handleGetChallengers(w http.ResponseWriter, req *http.Request) error {
	addr, err := vigil.ParseAddress(mux.Vars(req)["address"])
	if err != nil {
		return utils.BadRequest(errors.WithMessage(err, "address"))
	}
	challengers := o.reg.Challengers(addr)
	out := make([]*Challenger, len(challengers))
	for i, ch := range challengers {
		status, startedAt := o.reg.EnrollmentStatus(addr, ch)
		c := &Challenger{
			Address: ch,
			Status:  status.String(),
		}
		if status == enrollment.StatusPendingUnenrollment {
			c.UnenrollmentStartedAt = &startedAt
		}
		out[i] = c
	}
	return utils.WriteJSON(w, out)
}

func (o *Operators) handleGetKey(w http.ResponseWriter, req *http.Request) error {
	addr, err := vigil.ParseAddress(mux.Vars(req)["address"])
	if err != nil {
		return utils.BadRequest(errors.WithMessage(err, "address"))
	}
	ref, err := utils.ParseBlockRef(req.URL.Query().Get("block"))
	if err != nil {
		return utils.BadRequest(errors.WithMessage(err, "block"))
	}
	if n, ok := ref.Number(); ok {
		key, err := o.reg.SigningKeyAt(addr, n)
		if err != nil {
			return utils.BadRequest(errors.WithMessage(err, "block"))
		}
		return utils.WriteJSON(w, &SigningKey{Key: key, Block: &n})
	}
	info, found := o.reg.Operator(addr)
	if !found {
		return utils.WriteJSON(w, &SigningKey{})
	}
	return utils.WriteJSON(w, &SigningKey{Key: info.SigningKey})
}

func (o *Operators) handleGetWeight(w http.ResponseWriter, req *http.Request) error {
	addr, err := vigil.ParseAddress(mux.Vars(req)["address"])
	if err != nil {
		return utils.BadRequest(errors.WithMessage(err, "address"))
	}
	ref, err := utils.ParseBlockRef(req.URL.Query().Get("block"))
	if err != nil {
		return utils.BadRequest(errors.WithMessage(err, "block"))
	}
	if n, ok := ref.Number(); ok {
		weight, err := o.reg.OperatorWeightAt(addr, n)
		if err != nil {
			return utils.BadRequest(errors.WithMessage(err, "block"))
		}
		return utils.WriteJSON(w, &Weight{Weight: weight, Block: &n})
	}
	info, found := o.reg.Operator(addr)
	if !found {
		return utils.WriteJSON(w, &Weight{Weight: uint256.NewInt(0)})
	}
	return utils.WriteJSON(w, &Weight{Weight: info.Weight})
}

func (o *Operators) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("").
		Methods(http.MethodGet).
		Name("GET /operators").
		HandlerFunc(utils.WrapHandlerFunc(o.handleGetOperators))
	sub.Path("/{address}").
		Methods(http.MethodGet).
		Name("GET /operators/{address}").
		HandlerFunc(utils.WrapHandlerFunc(o.handleGetOperator))
	sub.Path("/{address}/vaults").
		Methods(http.MethodGet).
		Name("GET /operators/{address}/vaults").
		HandlerFunc(utils.WrapHandlerFunc(o.handleGetVaults))
	sub.Path("/{address}/challengers").
		Methods(http.MethodGet).
		Name("GET /operators/{address}/challengers").
		HandlerFunc(utils.WrapHandlerFunc(o.handleGetChallengers))
	sub.Path("/{address}/key").
		Methods(http.MethodGet).
		Name("GET /operators/{address}/key").
		HandlerFunc(utils.WrapHandlerFunc(o.handleGetKey))
	sub.Path("/{address}/weight").
		Methods(http.MethodGet).
		Name("GET /operators/{address}/weight").
		HandlerFunc(utils.WrapHandlerFunc(o.handleGetWeight))
}
