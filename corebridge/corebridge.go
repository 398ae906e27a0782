// Copyright (c) 2025 The Vigil developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package corebridge reads operator stake state from the external restaking
// core over JSON-RPC. It implements vault.Core and, for contract-based
// signing keys, verifier.ContractSigner. The bridge never sends transactions.
package corebridge

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum"
	ethabi "github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/vigilprotocol/vigil/cache"
	"github.com/vigilprotocol/vigil/genesis"
	"github.com/vigilprotocol/vigil/vault"
	"github.com/vigilprotocol/vigil/vigil"
)

// coreABI covers the read surface of the restaking core contract.
const coreABI = `[
	{"inputs":[{"name":"operator","type":"address"}],"name":"stakedVaults","outputs":[{"name":"","type":"address[]"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"name":"vault","type":"address"}],"name":"vaultAsset","outputs":[{"name":"","type":"address"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"name":"operator","type":"address"},{"name":"vault","type":"address"}],"name":"reportableBalance","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"name":"challenger","type":"address"}],"name":"challengeDelay","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"}
]`

// signerABI is the ERC-1271 surface of contract signing keys.
const signerABI = `[
	{"inputs":[{"name":"hash","type":"bytes32"},{"name":"signature","type":"bytes"}],"name":"isValidSignature","outputs":[{"name":"","type":"bytes4"}],"stateMutability":"view","type":"function"}
]`

// erc1271Magic is the isValidSignature return value meaning valid.
var erc1271Magic = [4]byte{0x16, 0x26, 0xba, 0x7e}

const (
	defaultCallTimeout    = 10 * time.Second
	defaultAssetCacheSize = 1024
	statsReportInterval   = 20 * time.Second
)

// Caller is the slice of the execution client the bridge needs.
// *ethclient.Client satisfies it.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// Dial connects to the execution client at url.
func Dial(ctx context.Context, url string) (*ethclient.Client, error) {
	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, errors.Wrapf(err, "dial core rpc [%v]", url)
	}
	return client, nil
}

type Options struct {
	// CoreAddress is the restaking core contract.
	CoreAddress vigil.Address

	// CallTimeout bounds each eth_call. Zero means the default.
	CallTimeout time.Duration

	// AssetCacheSize bounds the vault to asset memo. Zero means the default.
	AssetCacheSize int

	// Directory, when set, serves challenge delays instead of the core
	// contract. Deployments with a genesis-file directory use this.
	Directory vault.ChallengerDirectory
}

// Bridge implements vault.Core and verifier.ContractSigner over eth_call.
type Bridge struct {
	client     Caller
	core       common.Address
	coreABI    ethabi.ABI
	signerABI  ethabi.ABI
	timeout    time.Duration
	assets     *cache.LRU
	directory  vault.ChallengerDirectory
	reportedAt atomic.Int64
}

func New(client Caller, opts Options) (*Bridge, error) {
	if opts.CoreAddress.IsZero() {
		return nil, errors.New("core address must not be zero")
	}
	parsedCore, err := ethabi.JSON(strings.NewReader(coreABI))
	if err != nil {
		return nil, errors.Wrap(err, "parse core abi")
	}
	parsedSigner, err := ethabi.JSON(strings.NewReader(signerABI))
	if err != nil {
		return nil, errors.Wrap(err, "parse signer abi")
	}

	timeout := opts.CallTimeout
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	cacheSize := opts.AssetCacheSize
	if cacheSize <= 0 {
		cacheSize = defaultAssetCacheSize
	}
	assets, err := cache.NewLRU(cacheSize)
	if err != nil {
		return nil, errors.Wrap(err, "create asset cache")
	}

	return &Bridge{
		client:    client,
		core:      common.Address(opts.CoreAddress),
		coreABI:   parsedCore,
		signerABI: parsedSigner,
		timeout:   timeout,
		assets:    assets,
		directory: opts.Directory,
	}, nil
}

// StakedVaults implements vault.Core.
func (b *Bridge) StakedVaults(operator vigil.Address) ([]vigil.Address, error) {
	out, err := b.call(b.core, &b.coreABI, "stakedVaults", common.Address(operator))
	if err != nil {
		return nil, errors.WithMessagef(err, "stakedVaults %v", operator)
	}
	raw, ok := out[0].([]common.Address)
	if !ok {
		return nil, errors.Errorf("stakedVaults: unexpected output %T", out[0])
	}

	vaults := make([]vigil.Address, len(raw))
	for i, a := range raw {
		vaults[i] = vigil.Address(a)
	}
	return vaults, nil
}

// VaultAsset implements vault.Core. The vault to asset binding is immutable,
// so results are memoized.
func (b *Bridge) VaultAsset(vaultAddr vigil.Address) (vigil.Address, error) {
	defer b.reportAssetCache()

	asset, err := b.assets.GetOrLoad(vaultAddr, func(interface{}) (interface{}, error) {
		out, err := b.call(b.core, &b.coreABI, "vaultAsset", common.Address(vaultAddr))
		if err != nil {
			return nil, err
		}
		raw, ok := out[0].(common.Address)
		if !ok {
			return nil, errors.Errorf("vaultAsset: unexpected output %T", out[0])
		}
		return vigil.Address(raw), nil
	})
	if err != nil {
		return vigil.Address{}, errors.WithMessagef(err, "vaultAsset %v", vaultAddr)
	}
	return asset.(vigil.Address), nil
}

// ReportableBalance implements vault.Core.
func (b *Bridge) ReportableBalance(operator, vaultAddr vigil.Address) (*uint256.Int, error) {
	out, err := b.call(b.core, &b.coreABI, "reportableBalance", common.Address(operator), common.Address(vaultAddr))
	if err != nil {
		return nil, errors.WithMessagef(err, "reportableBalance %v %v", operator, vaultAddr)
	}
	raw, ok := out[0].(*big.Int)
	if !ok {
		return nil, errors.Errorf("reportableBalance: unexpected output %T", out[0])
	}
	balance, overflow := uint256.FromBig(raw)
	if overflow {
		return nil, errors.New("reportableBalance: overflows 256 bits")
	}
	return balance, nil
}

// ChallengeDelay implements vault.ChallengerDirectory. A configured static
// directory takes precedence; otherwise the core contract is asked, and a
// revert means the challenger is unknown.
func (b *Bridge) ChallengeDelay(challenger vigil.Address) (uint64, error) {
	if b.directory != nil {
		return b.directory.ChallengeDelay(challenger)
	}

	out, err := b.call(b.core, &b.coreABI, "challengeDelay", common.Address(challenger))
	if err != nil {
		if isRevert(err) {
			return 0, errors.WithMessagef(genesis.ErrUnknownChallenger, "%v", challenger)
		}
		return 0, errors.WithMessagef(err, "challengeDelay %v", challenger)
	}
	raw, ok := out[0].(*big.Int)
	if !ok {
		return 0, errors.Errorf("challengeDelay: unexpected output %T", out[0])
	}
	if !raw.IsUint64() {
		return 0, errors.Errorf("challengeDelay %v: out of range", challenger)
	}
	return raw.Uint64(), nil
}

// VerifySignature implements verifier.ContractSigner via ERC-1271. Contract
// keys reject either by reverting or by returning a non-magic value; both
// mean invalid, not failure. An EOA key has no code and returns no data.
func (b *Bridge) VerifySignature(key vigil.Address, hash vigil.Bytes32, sig []byte) (bool, error) {
	data, err := b.signerABI.Pack("isValidSignature", [32]byte(hash), sig)
	if err != nil {
		return false, errors.Wrap(err, "pack isValidSignature")
	}

	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	to := common.Address(key)
	out, err := b.client.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		if isRevert(err) {
			return false, nil
		}
		return false, errors.WithMessagef(err, "isValidSignature %v", key)
	}
	if len(out) < 4 {
		return false, nil
	}

	var magic [4]byte
	copy(magic[:], out[:4])
	return magic == erc1271Magic, nil
}

func (b *Bridge) call(contract common.Address, parsed *ethabi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "pack %s", method)
	}

	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	out, err := b.client.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: data}, nil)
	if err != nil {
		return nil, err
	}
	res, err := parsed.Unpack(method, out)
	if err != nil {
		return nil, errors.Wrapf(err, "unpack %s", method)
	}
	if len(res) == 0 {
		return nil, errors.Errorf("%s: empty result", method)
	}
	return res, nil
}

// reportAssetCache logs and gauges asset cache hit rates, at most once per
// statsReportInterval. The log line appears only when the rate moved.
func (b *Bridge) reportAssetCache() {
	now := time.Now().UnixNano()
	last := b.reportedAt.Load()
	if now-last < int64(statsReportInterval) || !b.reportedAt.CompareAndSwap(last, now) {
		return
	}

	changed, hit, miss := b.assets.Stats()
	if changed {
		lookups := hit + miss
		rate := "n/a"
		if lookups > 0 {
			rate = fmt.Sprintf("%.3f", float64(hit)/float64(lookups))
		}
		logger.Info("asset cache stats", "lookups", lookups, "hitrate", rate)
	}
	metricAssetCacheHitMiss().SetWithLabel(hit, map[string]string{"event": "hit"})
	metricAssetCacheHitMiss().SetWithLabel(miss, map[string]string{"event": "miss"})
}

// isRevert recognizes an eth_call rejected by the contract. Nodes report
// reverts as errors rather than return data.
func isRevert(err error) bool {
	return err != nil && strings.Contains(err.Error(), "execution reverted")
}
