// Copyright (c) 2025 The Vigil developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package verify

import (
	"net/http"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/vigilprotocol/vigil/api/utils"
	"github.com/vigilprotocol/vigil/registry"
	"github.com/vigilprotocol/vigil/registry/verifier"
	"github.com/vigilprotocol/vigil/vigil"
)

type Request struct {
	Hash           vigil.Bytes32   `json:"hash"`
	Signers        []vigil.Address `json:"signers"`
	Signatures     []hexutil.Bytes `json:"signatures"`
	ReferenceBlock uint64          `json:"referenceBlock"`
}

type Result struct {
	Valid  bool   `json:"valid"`
	Code   string `json:"code,omitempty"`
	Reason string `json:"reason,omitempty"`
}

type Verify struct {
	reg *registry.Registry
}

func New(reg *registry.Registry) *Verify {
	return &Verify{reg}
}

func (v *Verify) handleVerify(w http.ResponseWriter, req *http.Request) error {
	var r Request
	if err := utils.ParseJSON(req.Body, &r); err != nil {
		return utils.BadRequest(errors.WithMessage(err, "body"))
	}
	sigs := make([][]byte, len(r.Signatures))
	for i, s := range r.Signatures {
		sigs[i] = s
	}
	err := v.reg.Verify(r.Hash, r.Signers, sigs, r.ReferenceBlock)
	if err == nil {
		return utils.WriteJSON(w, &Result{Valid: true})
	}
	code, outcome := verdict(err)
	if !outcome {
		return err
	}
	return utils.WriteJSON(w, &Result{
		Valid:  false,
		Code:   code,
		Reason: err.Error(),
	})
}

// verdict classifies a verification failure. Outcomes are responded with
// status 200; anything else is an internal failure.
func verdict(err error) (string, bool) {
	switch {
	case errors.Is(err, registry.ErrInvalidReferenceBlock):
		return "bad_reference", true
	case errors.Is(err, verifier.ErrInsufficientSignedWeight):
		return "insufficient_weight", true
	case errors.Is(err, verifier.ErrInvalidSignature):
		return "invalid_signature", true
	case errors.Is(err, verifier.ErrNotSorted),
		errors.Is(err, verifier.ErrLengthMismatch),
		errors.Is(err, verifier.ErrEmptySignerSet):
		return "malformed", true
	case errors.Is(err, verifier.ErrSignedWeightExceedsTotal):
		return "integrity", true
	default:
		return "", false
	}
}

func (v *Verify) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("").
		Methods(http.MethodPost).
		Name("POST /verify").
		HandlerFunc(utils.WrapHandlerFunc(v.handleVerify))
}
