// Copyright (c) 2025 The Vigil developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package verifier checks whether a set of operator signatures over a message
// carried enough stake weight at a historical block. It is a pure read-only
// query against the weight and signing-key histories; it performs no writes.
package verifier

import (
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/vigilprotocol/vigil/vigil"
)

var (
	// ErrLengthMismatch is returned when the operator and signature lists
	// have different lengths.
	ErrLengthMismatch = errors.New("operator and signature counts differ")

	// ErrEmptySignerSet is returned when the operator list is empty.
	ErrEmptySignerSet = errors.New("empty signer set")

	// ErrNotSorted is returned when the operator list is not strictly
	// ascending. The ordering check doubles as the duplicate check.
	ErrNotSorted = errors.New("signers not strictly ascending")

	// ErrInvalidSignature is returned when a signature does not verify
	// against the operator's signing key at the reference block.
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrSignedWeightExceedsTotal is returned when the summed signer weight
	// exceeds the total weight at the reference block. That cannot happen
	// with consistent histories, so it signals corruption rather than an
	// ordinary verification failure.
	ErrSignedWeightExceedsTotal = errors.New("signed weight exceeds total weight")

	// ErrInsufficientSignedWeight is returned when the summed signer weight
	// is below the threshold at the reference block.
	ErrInsufficientSignedWeight = errors.New("insufficient signed weight")
)

// Source resolves historical registry state for the verifier. All lookups are
// as of the given block.
type Source interface {
	SigningKeyAt(op vigil.Address, block uint64) vigil.Address
	WeightAt(op vigil.Address, block uint64) *uint256.Int
	TotalWeightAt(block uint64) *uint256.Int
	ThresholdWeightAt(block uint64) *uint256.Int
}

// ContractSigner verifies signatures produced by contract-based signing keys
// when plain key recovery does not match.
type ContractSigner interface {
	VerifySignature(key vigil.Address, hash vigil.Bytes32, sig []byte) (bool, error)
}

// Verifier validates weighted multi-signatures against historical state.
type Verifier struct {
	source    Source
	contracts ContractSigner
}

// New creates a verifier over the given source. contracts may be nil, in
// which case only recovered-key signatures are accepted.
func New(source Source, contracts ContractSigner) *Verifier {
	return &Verifier{
		source:    source,
		contracts: contracts,
	}
}

// Verify checks that the signatures, one per operator in strictly ascending
// operator order, are valid over hash and that the signers' summed weight at
// referenceBlock meets the threshold at that block. A nil error means the
// message carries enough stake.
//
// The caller guarantees referenceBlock is strictly in the past.
func (v *Verifier) Verify(hash vigil.Bytes32, signers []vigil.Address, sigs [][]byte, referenceBlock uint64) error {
	if len(signers) != len(sigs) {
		return errors.WithMessagef(ErrLengthMismatch, "%d operators, %d signatures", len(signers), len(sigs))
	}
	if len(signers) == 0 {
		return ErrEmptySignerSet
	}

	signed := new(uint256.Int)
	var last vigil.Address
	for i, signer := range signers {
		if i > 0 && signer.Compare(last) <= 0 {
			return errors.WithMessagef(ErrNotSorted, "operator %v at index %d", signer, i)
		}
		last = signer

		if err := v.verifyOne(hash, signer, sigs[i], referenceBlock); err != nil {
			return err
		}
		if _, overflow := signed.AddOverflow(signed, v.source.WeightAt(signer, referenceBlock)); overflow {
			return errors.WithMessage(ErrSignedWeightExceedsTotal, "signed weight overflow")
		}
	}

	total := v.source.TotalWeightAt(referenceBlock)
	if signed.Gt(total) {
		return errors.WithMessagef(ErrSignedWeightExceedsTotal, "signed %s, total %s", signed.Dec(), total.Dec())
	}
	threshold := v.source.ThresholdWeightAt(referenceBlock)
	if signed.Lt(threshold) {
		return errors.WithMessagef(ErrInsufficientSignedWeight, "signed %s, threshold %s", signed.Dec(), threshold.Dec())
	}
	return nil
}

func (v *Verifier) verifyOne(hash vigil.Bytes32, signer vigil.Address, sig []byte, block uint64) error {
	key := v.source.SigningKeyAt(signer, block)
	if key.IsZero() {
		return errors.WithMessagef(ErrInvalidSignature, "operator %v has no signing key at block %d", signer, block)
	}
	if recovered, err := recoverSigner(hash, sig); err == nil && recovered == key {
		return nil
	}
	if v.contracts != nil {
		ok, err := v.contracts.VerifySignature(key, hash, sig)
		if err != nil {
			return errors.Wrapf(err, "contract signer %v", key)
		}
		if ok {
			return nil
		}
	}
	return errors.WithMessagef(ErrInvalidSignature, "operator %v", signer)
}

func recoverSigner(hash vigil.Bytes32, sig []byte) (vigil.Address, error) {
	if len(sig) != 65 {
		return vigil.Address{}, errors.Errorf("signature length %d", len(sig))
	}
	normalized := sig
	if sig[64] >= 27 {
		normalized = append([]byte(nil), sig...)
		normalized[64] -= 27
	}
	pub, err := crypto.SigToPub(hash.Bytes(), normalized)
	if err != nil {
		return vigil.Address{}, err
	}
	return vigil.Address(crypto.PubkeyToAddress(*pub)), nil
}
