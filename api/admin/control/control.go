// Copyright (c) 2025 The Vigil developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package control exposes registry mutations on the admin listener. The
// public API stays read-only; state changes enter either through the chain
// bridge or through these endpoints.
package control

import (
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common/math"
	"github.com/gorilla/mux"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/vigilprotocol/vigil/api/utils"
	"github.com/vigilprotocol/vigil/checkpoint"
	"github.com/vigilprotocol/vigil/genesis"
	"github.com/vigilprotocol/vigil/registry"
	"github.com/vigilprotocol/vigil/registry/enrollment"
	"github.com/vigilprotocol/vigil/registry/operators"
	"github.com/vigilprotocol/vigil/registry/quorum"
	"github.com/vigilprotocol/vigil/vigil"
)

// Saver persists a registry snapshot on demand.
type Saver interface {
	SaveNow() (uint64, error)
}

type Control struct {
	reg   *registry.Registry
	saver Saver
}

// New creates the control surface. saver may be nil when the node runs
// without a store.
func New(reg *registry.Registry, saver Saver) *Control {
	return &Control{reg, saver}
}

type Result struct {
	Head uint64 `json:"head"`
}

type RegisterRequest struct {
	Operator   vigil.Address `json:"operator"`
	SigningKey vigil.Address `json:"signingKey"`
	Block      uint64        `json:"block"`
}

type OperatorRequest struct {
	Operator vigil.Address `json:"operator"`
	Block    uint64        `json:"block"`
}

type KeyRequest struct {
	Operator vigil.Address `json:"operator"`
	Key      vigil.Address `json:"key"`
	Block    uint64        `json:"block"`
}

type PairRequest struct {
	Operator   vigil.Address `json:"operator"`
	Challenger vigil.Address `json:"challenger"`
	Block      uint64        `json:"block"`
}

type CompleteUnenrollRequest struct {
	Operator   vigil.Address `json:"operator"`
	Challenger vigil.Address `json:"challenger"`
	Block      uint64        `json:"block"`
	SkipDelay  bool          `json:"skipDelay"`
}

type OperatorsRequest struct {
	Operators []vigil.Address `json:"operators"`
	Block     uint64          `json:"block"`
}

type QuorumRequest struct {
	Quorum    quorum.Quorum   `json:"quorum"`
	Operators []vigil.Address `json:"operators"`
	Block     uint64          `json:"block"`
}

type WeightRequest struct {
	// Weight accepts decimal or 0x-prefixed hex. Null clears the minimum
	// weight; the threshold requires a value.
	Weight    *math.HexOrDecimal256 `json:"weight"`
	Operators []vigil.Address       `json:"operators"`
	Block     uint64                `json:"block"`
}

func (r *WeightRequest) weight() (*uint256.Int, error) {
	if r.Weight == nil {
		return nil, nil
	}
	u, overflow := uint256.FromBig((*big.Int)(r.Weight))
	if overflow {
		return nil, errors.New("weight must be a non-negative 256-bit integer")
	}
	return u, nil
}

// domainError reports whether the mutation failed on its input rather than
// on the node itself.
func domainError(err error) bool {
	for _, sentinel := range []error{
		registry.ErrInvalidSigningKey,
		registry.ErrChallengerNotAuthorized,
		registry.ErrInvalidReferenceBlock,
		checkpoint.ErrBlockOutOfOrder,
		operators.ErrAlreadyRegistered,
		operators.ErrNotRegistered,
		enrollment.ErrPendingUnenrollment,
		enrollment.ErrNotEnrolled,
		enrollment.ErrNotQueuedForUnenrollment,
		enrollment.ErrChallengeDelayNotPassed,
		quorum.ErrInvalidQuorum,
		genesis.ErrUnknownChallenger,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

func (c *Control) respond(w http.ResponseWriter, err error) error {
	if err != nil {
		if domainError(err) {
			return utils.BadRequest(err)
		}
		return err
	}
	return utils.WriteJSON(w, &Result{Head: c.reg.Head()})
}

func (c *Control) handleRegister(w http.ResponseWriter, r *http.Request) error {
	var req RegisterRequest
	if err := utils.ParseJSON(r.Body, &req); err != nil {
		return utils.BadRequest(errors.WithMessage(err, "body"))
	}
	return c.respond(w, c.reg.RegisterOperator(req.Operator, req.SigningKey, req.Block))
}

func (c *Control) handleDeregister(w http.ResponseWriter, r *http.Request) error {
	var req OperatorRequest
	if err := utils.ParseJSON(r.Body, &req); err != nil {
		return utils.BadRequest(errors.WithMessage(err, "body"))
	}
	return c.respond(w, c.reg.DeregisterOperator(req.Operator, req.Block))
}

func (c *Control) handleUpdateKey(w http.ResponseWriter, r *http.Request) error {
	var req KeyRequest
	if err := utils.ParseJSON(r.Body, &req); err != nil {
		return utils.BadRequest(errors.WithMessage(err, "body"))
	}
	return c.respond(w, c.reg.UpdateSigningKey(req.Operator, req.Key, req.Block))
}

func (c *Control) handleEnroll(w http.ResponseWriter, r *http.Request) error {
	var req PairRequest
	if err := utils.ParseJSON(r.Body, &req); err != nil {
		return utils.BadRequest(errors.WithMessage(err, "body"))
	}
	return c.respond(w, c.reg.Enroll(req.Operator, req.Challenger, req.Block))
}

func (c *Control) handleStartUnenroll(w http.ResponseWriter, r *http.Request) error {
	var req PairRequest
	if err := utils.ParseJSON(r.Body, &req); err != nil {
		return utils.BadRequest(errors.WithMessage(err, "body"))
	}
	return c.respond(w, c.reg.StartUnenrollment(req.Operator, req.Challenger, req.Block))
}

func (c *Control) handleCompleteUnenroll(w http.ResponseWriter, r *http.Request) error {
	var req CompleteUnenrollRequest
	if err := utils.ParseJSON(r.Body, &req); err != nil {
		return utils.BadRequest(errors.WithMessage(err, "body"))
	}
	return c.respond(w, c.reg.CompleteUnenrollment(req.Operator, req.Challenger, req.Block, !req.SkipDelay))
}

func (c *Control) handleJail(w http.ResponseWriter, r *http.Request) error {
	var req PairRequest
	if err := utils.ParseJSON(r.Body, &req); err != nil {
		return utils.BadRequest(errors.WithMessage(err, "body"))
	}
	return c.respond(w, c.reg.Jail(req.Operator, req.Challenger, req.Block))
}

func (c *Control) handleUnjail(w http.ResponseWriter, r *http.Request) error {
	var req OperatorRequest
	if err := utils.ParseJSON(r.Body, &req); err != nil {
		return utils.BadRequest(errors.WithMessage(err, "body"))
	}
	return c.respond(w, c.reg.Unjail(req.Operator, req.Block))
}

func (c *Control) handleUpdateOperators(w http.ResponseWriter, r *http.Request) error {
	var req OperatorsRequest
	if err := utils.ParseJSON(r.Body, &req); err != nil {
		return utils.BadRequest(errors.WithMessage(err, "body"))
	}
	return c.respond(w, c.reg.UpdateOperators(req.Operators, req.Block))
}

func (c *Control) handleUpdateQuorum(w http.ResponseWriter, r *http.Request) error {
	var req QuorumRequest
	if err := utils.ParseJSON(r.Body, &req); err != nil {
		return utils.BadRequest(errors.WithMessage(err, "body"))
	}
	return c.respond(w, c.reg.UpdateQuorum(req.Quorum, req.Operators, req.Block))
}

func (c *Control) handleUpdateMinimum(w http.ResponseWriter, r *http.Request) error {
	var req WeightRequest
	if err := utils.ParseJSON(r.Body, &req); err != nil {
		return utils.BadRequest(errors.WithMessage(err, "body"))
	}
	weight, err := req.weight()
	if err != nil {
		return utils.BadRequest(errors.WithMessage(err, "weight"))
	}
	return c.respond(w, c.reg.UpdateMinimumWeight(weight, req.Operators, req.Block))
}

func (c *Control) handleUpdateThreshold(w http.ResponseWriter, r *http.Request) error {
	var req WeightRequest
	if err := utils.ParseJSON(r.Body, &req); err != nil {
		return utils.BadRequest(errors.WithMessage(err, "body"))
	}
	weight, err := req.weight()
	if err != nil {
		return utils.BadRequest(errors.WithMessage(err, "weight"))
	}
	if weight == nil {
		return utils.BadRequest(errors.New("weight: threshold requires a value"))
	}
	return c.respond(w, c.reg.UpdateStakeThreshold(weight, req.Block))
}

func (c *Control) handleSnapshot(w http.ResponseWriter, _ *http.Request) error {
	if c.saver == nil {
		return utils.HTTPError(errors.New("snapshots not configured"), http.StatusNotImplemented)
	}
	head, err := c.saver.SaveNow()
	if err != nil {
		return err
	}
	return utils.WriteJSON(w, &Result{Head: head})
}

func (c *Control) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	post := func(path, name string, h utils.HandlerFunc) {
		sub.Path(path).
			Methods(http.MethodPost).
			Name(name).
			HandlerFunc(utils.WrapHandlerFunc(h))
	}

	post("/register", "post-register", c.handleRegister)
	post("/deregister", "post-deregister", c.handleDeregister)
	post("/key", "post-key", c.handleUpdateKey)
	post("/enroll", "post-enroll", c.handleEnroll)
	post("/unenroll/start", "post-unenroll-start", c.handleStartUnenroll)
	post("/unenroll/complete", "post-unenroll-complete", c.handleCompleteUnenroll)
	post("/jail", "post-jail", c.handleJail)
	post("/unjail", "post-unjail", c.handleUnjail)
	post("/operators", "post-operators", c.handleUpdateOperators)
	post("/quorum", "post-quorum", c.handleUpdateQuorum)
	post("/minimum", "post-minimum", c.handleUpdateMinimum)
	post("/threshold", "post-threshold", c.handleUpdateThreshold)
	post("/snapshot", "post-snapshot", c.handleSnapshot)
}
