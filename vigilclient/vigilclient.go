// Copyright (c) 2025 The Vigil developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package vigilclient is the Go client for the Vigil registry API. It wraps
// the HTTP surface and, when constructed with NewWithWS, the websocket event
// stream.
package vigilclient

import (
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/vigilprotocol/vigil/api/node"
	"github.com/vigilprotocol/vigil/api/operators"
	"github.com/vigilprotocol/vigil/api/quorum"
	"github.com/vigilprotocol/vigil/api/verify"
	"github.com/vigilprotocol/vigil/eventdb"
	"github.com/vigilprotocol/vigil/registry"
	"github.com/vigilprotocol/vigil/vigil"
	"github.com/vigilprotocol/vigil/vigilclient/common"
	"github.com/vigilprotocol/vigil/vigilclient/httpclient"
	"github.com/vigilprotocol/vigil/vigilclient/wsclient"
)

type Client struct {
	httpConn *httpclient.Client
	wsConn   *wsclient.Client
}

func New(url string) *Client {
	return &Client{
		httpConn: httpclient.New(url),
	}
}

func NewWithWS(url string) (*Client, error) {
	wsClient, err := wsclient.NewClient(url)
	if err != nil {
		return nil, err
	}

	return &Client{
		httpConn: httpclient.New(url),
		wsConn:   wsClient,
	}, nil
}

type Option func(*getOptions)

type getOptions struct {
	block string
}

func applyOptions(opts []Option) *getOptions {
	options := &getOptions{}
	for _, o := range opts {
		o(options)
	}
	return options
}

// AtBlock makes a query historical, answered as of the given past block
// instead of the live head.
func AtBlock(block uint64) Option {
	return func(o *getOptions) {
		o.block = strconv.FormatUint(block, 10)
	}
}

func (c *Client) RawHTTPClient() *httpclient.Client {
	return c.httpConn
}

func (c *Client) RawWSClient() *wsclient.Client {
	return c.wsConn
}

// PinGenesisID makes every subsequent request carry the x-genesis-id header,
// so a node built from a different genesis refuses to answer.
func (c *Client) PinGenesisID(id vigil.Bytes32) {
	c.httpConn.PinGenesisID(id)
}

func (c *Client) Operators() ([]*operators.Operator, error) {
	return c.httpConn.GetOperators()
}

func (c *Client) Operator(addr *vigil.Address) (*operators.Operator, error) {
	return c.httpConn.GetOperator(addr)
}

func (c *Client) OperatorVaults(addr *vigil.Address) ([]*operators.Vault, error) {
	return c.httpConn.GetOperatorVaults(addr)
}

func (c *Client) OperatorChallengers(addr *vigil.Address) ([]*operators.Challenger, error) {
	return c.httpConn.GetOperatorChallengers(addr)
}

func (c *Client) SigningKey(addr *vigil.Address, opts ...Option) (*operators.SigningKey, error) {
	options := applyOptions(opts)
	return c.httpConn.GetOperatorKey(addr, options.block)
}

func (c *Client) Weight(addr *vigil.Address, opts ...Option) (*operators.Weight, error) {
	options := applyOptions(opts)
	return c.httpConn.GetOperatorWeight(addr, options.block)
}

func (c *Client) QuorumConfig() (*quorum.Config, error) {
	return c.httpConn.GetQuorumConfig()
}

func (c *Client) QuorumWeights(opts ...Option) (*quorum.Weights, error) {
	options := applyOptions(opts)
	return c.httpConn.GetQuorumWeights(options.block)
}

// Verify submits a prepared verification request.
func (c *Client) Verify(req *verify.Request) (*verify.Result, error) {
	return c.httpConn.Verify(req)
}

// VerifySigned asks whether the signatures over hash carry threshold weight
// as of referenceBlock. Signers must be sorted ascending and signatures must
// line up with them.
func (c *Client) VerifySigned(hash vigil.Bytes32, signers []vigil.Address, signatures [][]byte, referenceBlock uint64) (*verify.Result, error) {
	sigs := make([]hexutil.Bytes, len(signatures))
	for i, s := range signatures {
		sigs[i] = s
	}

	return c.httpConn.Verify(&verify.Request{
		Hash:           hash,
		Signers:        signers,
		Signatures:     sigs,
		ReferenceBlock: referenceBlock,
	})
}

func (c *Client) FilterEvents(req *eventdb.Filter) ([]*eventdb.Record, error) {
	return c.httpConn.FilterEvents(req)
}

func (c *Client) NodeStatus() (*node.Status, error) {
	return c.httpConn.GetNodeStatus()
}

// GenesisID fetches the node's genesis configuration ID.
func (c *Client) GenesisID() (vigil.Bytes32, error) {
	status, err := c.httpConn.GetNodeStatus()
	if err != nil {
		return vigil.Bytes32{}, err
	}
	return status.GenesisID, nil
}

func (c *Client) SubscribeEvents(query string) (<-chan common.EventWrapper[*registry.Event], error) {
	if c.wsConn == nil {
		return nil, fmt.Errorf("not a websocket typed client")
	}
	return c.wsConn.SubscribeEvents(query)
}
