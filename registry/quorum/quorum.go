// Copyright (c) 2025 The Vigil developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package quorum holds the versioned asset-weight configuration that converts
// staked vault balances into one weight unit.
package quorum

import (
	"fmt"
	"slices"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/vigilprotocol/vigil/vigil"
)

var (
	// ErrNotSorted reports assets out of strict ascending order, duplicates
	// included.
	ErrNotSorted = errors.New("quorum assets not strictly ascending")

	// ErrInvalidWeightSum reports weights that do not sum to exactly
	// 10,000 bps.
	ErrInvalidWeightSum = errors.New("quorum weights must sum to 10000 bps")

	// ErrInvalidQuorum wraps the validation reason when an update is
	// rejected.
	ErrInvalidQuorum = errors.New("invalid quorum")
)

// AssetWeight assigns a basis-point weight to one restakeable asset.
type AssetWeight struct {
	Asset  vigil.Address `json:"asset"`
	Weight uint64        `json:"weight"`
}

// Quorum is the full configuration: strictly ascending by asset, weights
// summing to exactly vigil.WeightDenominator.
type Quorum []AssetWeight

// WeightOf returns the weight for asset within q, 0 when absent. It lets a
// candidate configuration be used for weight computation before being
// installed.
func (q Quorum) WeightOf(asset vigil.Address) uint64 {
	for _, e := range q {
		if e.Asset == asset {
			return e.Weight
		}
	}
	return 0
}

// Validate checks q without mutating anything. Order is checked first, so a
// config that is both unsorted and mis-summed reports ErrNotSorted.
func Validate(q Quorum) error {
	for i := range q {
		if i > 0 && q[i-1].Asset.Compare(q[i].Asset) >= 0 {
			return errors.WithMessagef(ErrNotSorted, "entry %d", i)
		}
	}

	var sum uint64
	for _, e := range q {
		if e.Weight > vigil.WeightDenominator {
			return errors.WithMessagef(ErrInvalidWeightSum, "entry weight %d exceeds denominator", e.Weight)
		}
		sum += e.Weight
	}
	if sum != vigil.WeightDenominator {
		return errors.WithMessagef(ErrInvalidWeightSum, "got %d bps", sum)
	}
	return nil
}

// Service is the active quorum configuration plus the floor-or-nothing
// minimum weight. Not safe for concurrent use; the registry serializes
// access.
type Service struct {
	version       uint64
	entries       Quorum
	weights       map[vigil.Address]uint64
	minimumWeight uint256.Int
}

// New builds a Service holding the initial configuration at version 0.
func New(initial Quorum, minimumWeight *uint256.Int) (*Service, error) {
	return Restore(initial, 0, minimumWeight)
}

// Restore builds a Service at a previously exported version.
func Restore(entries Quorum, version uint64, minimumWeight *uint256.Int) (*Service, error) {
	if err := Validate(entries); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidQuorum, err)
	}
	s := &Service{version: version}
	if minimumWeight != nil {
		s.minimumWeight.Set(minimumWeight)
	}
	s.apply(entries)
	return s, nil
}

func (s *Service) apply(q Quorum) {
	entries := slices.Clone(q)
	weights := make(map[vigil.Address]uint64, len(entries))
	for _, e := range entries {
		weights[e.Asset] = e.Weight
	}
	s.entries = entries
	s.weights = weights
}

// Update validates and atomically replaces the configuration, bumping the
// version index. The previous entries are returned for the event sink.
func (s *Service) Update(newQuorum Quorum) (Quorum, error) {
	if err := Validate(newQuorum); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidQuorum, err)
	}
	old := s.entries
	s.version++
	s.apply(newQuorum)
	return old, nil
}

// Version returns the current configuration version index. The initial
// configuration is version 0; only the current version is queryable.
func (s *Service) Version() uint64 {
	return s.version
}

// WeightOf returns the configured weight for asset, 0 when absent.
func (s *Service) WeightOf(asset vigil.Address) uint64 {
	return s.weights[asset]
}

// Contains reports whether asset is part of the current configuration.
func (s *Service) Contains(asset vigil.Address) bool {
	_, ok := s.weights[asset]
	return ok
}

// Entries returns a copy of the current configuration, order preserved.
func (s *Service) Entries() Quorum {
	return slices.Clone(s.entries)
}

// RestakeableAssets lists the asset identifiers of the current version,
// order preserved.
func (s *Service) RestakeableAssets() []vigil.Address {
	assets := make([]vigil.Address, len(s.entries))
	for i, e := range s.entries {
		assets[i] = e.Asset
	}
	return assets
}

// MinimumWeight returns a copy of the floor threshold: computed operator
// weights below it are recorded as 0.
func (s *Service) MinimumWeight() *uint256.Int {
	return new(uint256.Int).Set(&s.minimumWeight)
}

// SetMinimumWeight replaces the floor threshold and returns the previous one.
func (s *Service) SetMinimumWeight(w *uint256.Int) *uint256.Int {
	old := new(uint256.Int).Set(&s.minimumWeight)
	if w == nil {
		s.minimumWeight.Clear()
	} else {
		s.minimumWeight.Set(w)
	}
	return old
}
