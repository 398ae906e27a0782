// Copyright (c) 2025 The Vigil developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package genesis defines the JSON bootstrap configuration of a registry
// node: the initial quorum, thresholds, the challenger directory and the
// operators to register at the start block.
package genesis

import (
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common/math"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/vigilprotocol/vigil/registry"
	"github.com/vigilprotocol/vigil/registry/quorum"
	"github.com/vigilprotocol/vigil/registry/verifier"
	"github.com/vigilprotocol/vigil/vault"
	"github.com/vigilprotocol/vigil/vigil"
)

// ErrUnknownChallenger is returned by the static directory for challengers
// absent from the configuration.
var ErrUnknownChallenger = errors.New("challenger not in directory")

// Config is the user supplied genesis configuration.
type Config struct {
	Name            string           `json:"name"`
	StartBlock      uint64           `json:"startBlock"`
	Quorum          quorum.Quorum    `json:"quorum"`
	MinimumWeight   *HexOrDecimal256 `json:"minimumWeight"`
	ThresholdWeight *HexOrDecimal256 `json:"thresholdWeight"`
	Challengers     []Challenger     `json:"challengers"`
	Operators       []Operator       `json:"operators"`
}

// Challenger is one entry of the static challenger directory.
type Challenger struct {
	Address        vigil.Address `json:"address"`
	ChallengeDelay uint64        `json:"challengeDelay"`
}

// Operator is an operator registered at the start block.
type Operator struct {
	Address    vigil.Address   `json:"address"`
	SigningKey vigil.Address   `json:"signingKey"`
	EnrollWith []vigil.Address `json:"enrollWith"`
}

// HexOrDecimal256 marshals big.Int as hex or decimal.
// Copied from go-ethereum/common/math and implement json. Marshaler
type HexOrDecimal256 math.HexOrDecimal256

// UnmarshalJSON implements the json.Unmarshaler interface.
func (i *HexOrDecimal256) UnmarshalJSON(input []byte) error {
	var hex string
	if err := json.Unmarshal(input, &hex); err != nil {
		if err = (*big.Int)(i).UnmarshalJSON(input); err != nil {
			return err
		}
		return nil
	}
	bigint, ok := math.ParseBig256(hex)
	if !ok {
		return fmt.Errorf("invalid hex or decimal integer %q", input)
	}
	*i = HexOrDecimal256(*bigint)
	return nil
}

// MarshalJSON implements the json.Marshaler interface.
func (i HexOrDecimal256) MarshalJSON() ([]byte, error) {
	decimal256 := math.HexOrDecimal256(i)
	text, err := decimal256.MarshalText()
	if err != nil {
		return nil, err
	}
	return json.Marshal(string(text))
}

// Uint256 converts the value, rejecting negatives and overflow. A nil
// receiver converts to nil.
func (i *HexOrDecimal256) Uint256() (*uint256.Int, error) {
	if i == nil {
		return nil, nil
	}
	v, overflow := uint256.FromBig((*big.Int)(i))
	if overflow {
		return nil, errors.New("must be a non-negative 256-bit integer")
	}
	return v, nil
}

// Load decodes a configuration, rejecting unknown fields, and validates it.
func Load(r io.Reader) (*Config, error) {
	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()

	var c Config
	if err := decoder.Decode(&c); err != nil {
		return nil, errors.Wrap(err, "decode genesis")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// LoadFile reads and decodes the configuration at path.
func LoadFile(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open genesis file")
	}
	defer file.Close()
	return Load(file)
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if err := quorum.Validate(c.Quorum); err != nil {
		return errors.WithMessage(err, "quorum")
	}
	if _, err := c.MinimumWeight.Uint256(); err != nil {
		return errors.WithMessage(err, "minimumWeight")
	}
	if _, err := c.ThresholdWeight.Uint256(); err != nil {
		return errors.WithMessage(err, "thresholdWeight")
	}

	challengers := make(map[vigil.Address]bool, len(c.Challengers))
	for _, ch := range c.Challengers {
		if ch.Address.IsZero() {
			return errors.New("challenger address must not be zero")
		}
		if challengers[ch.Address] {
			return errors.Errorf("duplicate challenger %v", ch.Address)
		}
		challengers[ch.Address] = true
	}

	seen := make(map[vigil.Address]bool, len(c.Operators))
	for _, op := range c.Operators {
		if op.Address.IsZero() {
			return errors.New("operator address must not be zero")
		}
		if seen[op.Address] {
			return errors.Errorf("duplicate operator %v", op.Address)
		}
		seen[op.Address] = true
		if op.SigningKey.IsZero() {
			return errors.Errorf("operator %v: signing key must not be zero", op.Address)
		}
		for _, ch := range op.EnrollWith {
			if !challengers[ch] {
				return errors.Errorf("operator %v: enrollWith %v not in challenger directory", op.Address, ch)
			}
		}
	}
	return nil
}

// ID is the deterministic digest of the configuration, used to guard data
// directories against genesis mismatches.
func (c *Config) ID() vigil.Bytes32 {
	data, _ := json.Marshal(c)
	return vigil.Blake2b(data)
}

// StaticDirectory serves challenge delays from the genesis configuration.
type StaticDirectory struct {
	delays map[vigil.Address]uint64
}

// Directory builds the static challenger directory.
func (c *Config) Directory() *StaticDirectory {
	delays := make(map[vigil.Address]uint64, len(c.Challengers))
	for _, ch := range c.Challengers {
		delays[ch.Address] = ch.ChallengeDelay
	}
	return &StaticDirectory{delays: delays}
}

// ChallengeDelay implements vault.ChallengerDirectory.
func (d *StaticDirectory) ChallengeDelay(challenger vigil.Address) (uint64, error) {
	delay, ok := d.delays[challenger]
	if !ok {
		return 0, errors.WithMessagef(ErrUnknownChallenger, "%v", challenger)
	}
	return delay, nil
}

// Build creates a registry from the configuration and plays in the
// configured operators and enrollments at the start block. Initial weights
// come from the vault core. A nil directory falls back to the static one
// built from the configured challengers.
func (c *Config) Build(core vault.Core, directory vault.ChallengerDirectory, contracts verifier.ContractSigner, sink registry.Sink) (*registry.Registry, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	minimum, err := c.MinimumWeight.Uint256()
	if err != nil {
		return nil, errors.WithMessage(err, "minimumWeight")
	}
	threshold, err := c.ThresholdWeight.Uint256()
	if err != nil {
		return nil, errors.WithMessage(err, "thresholdWeight")
	}
	if directory == nil {
		directory = c.Directory()
	}

	reg, err := registry.New(registry.Options{
		Quorum:          c.Quorum,
		MinimumWeight:   minimum,
		ThresholdWeight: threshold,
		GenesisBlock:    c.StartBlock,
		Core:            core,
		Directory:       directory,
		ContractSigner:  contracts,
		Sink:            sink,
	})
	if err != nil {
		return nil, err
	}

	for _, op := range c.Operators {
		if err := reg.RegisterOperator(op.Address, op.SigningKey, c.StartBlock); err != nil {
			return nil, errors.WithMessagef(err, "register operator %v", op.Address)
		}
		for _, ch := range op.EnrollWith {
			if err := reg.Enroll(op.Address, ch, c.StartBlock); err != nil {
				return nil, errors.WithMessagef(err, "enroll operator %v with %v", op.Address, ch)
			}
		}
	}
	return reg, nil
}
