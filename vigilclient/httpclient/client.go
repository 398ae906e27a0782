// Copyright (c) 2025 The Vigil developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package httpclient provides an HTTP client for the Vigil registry API.
// It offers methods to retrieve operators, quorum configuration, events and
// node status, and to submit verification requests.
package httpclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/vigilprotocol/vigil/api/node"
	"github.com/vigilprotocol/vigil/api/operators"
	"github.com/vigilprotocol/vigil/api/quorum"
	"github.com/vigilprotocol/vigil/api/verify"
	"github.com/vigilprotocol/vigil/eventdb"
	"github.com/vigilprotocol/vigil/vigil"
)

// Client communicates with a registry node over HTTP.
type Client struct {
	url     string
	c       *http.Client
	genesis atomic.Pointer[vigil.Bytes32]
}

// New creates a new Client with the provided URL.
func New(url string) *Client {
	return NewWithHTTP(url, http.DefaultClient)
}

func NewWithHTTP(url string, c *http.Client) *Client {
	return &Client{
		url: url,
		c:   c,
	}
}

// PinGenesisID makes every subsequent request carry the x-genesis-id header.
// A node built from a different genesis rejects pinned requests with 403.
func (c *Client) PinGenesisID(id vigil.Bytes32) {
	c.genesis.Store(&id)
}

// GetOperators retrieves the live view of every operator the registry has seen.
func (c *Client) GetOperators() ([]*operators.Operator, error) {
	body, err := c.httpGET(c.url + "/operators")
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve operators - %w", err)
	}

	var ops []*operators.Operator
	if err = json.Unmarshal(body, &ops); err != nil {
		return nil, fmt.Errorf("unable to unmarshal operators - %w", err)
	}

	return ops, nil
}

// GetOperator retrieves the live view of a single operator.
// It returns ErrNotFound when the registry has never seen the address.
func (c *Client) GetOperator(addr *vigil.Address) (*operators.Operator, error) {
	body, err := c.httpGET(c.url + "/operators/" + addr.String())
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve operator - %w", err)
	}

	if isNullBody(body) {
		return nil, ErrNotFound
	}

	var op operators.Operator
	if err = json.Unmarshal(body, &op); err != nil {
		return nil, fmt.Errorf("unable to unmarshal operator - %w", err)
	}

	return &op, nil
}

// GetOperatorVaults retrieves the vault stakes backing an operator's weight.
func (c *Client) GetOperatorVaults(addr *vigil.Address) ([]*operators.Vault, error) {
	body, err := c.httpGET(c.url + "/operators/" + addr.String() + "/vaults")
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve vaults - %w", err)
	}

	var vaults []*operators.Vault
	if err = json.Unmarshal(body, &vaults); err != nil {
		return nil, fmt.Errorf("unable to unmarshal vaults - %w", err)
	}

	return vaults, nil
}

// GetOperatorChallengers retrieves the enrollment state of every challenger
// known for the operator.
func (c *Client) GetOperatorChallengers(addr *vigil.Address) ([]*operators.Challenger, error) {
	body, err := c.httpGET(c.url + "/operators/" + addr.String() + "/challengers")
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve challengers - %w", err)
	}

	var challengers []*operators.Challenger
	if err = json.Unmarshal(body, &challengers); err != nil {
		return nil, fmt.Errorf("unable to unmarshal challengers - %w", err)
	}

	return challengers, nil
}

// GetOperatorKey retrieves the operator's signing key, live when block is
// empty or "latest", otherwise as of the given past block.
func (c *Client) GetOperatorKey(addr *vigil.Address, block string) (*operators.SigningKey, error) {
	url := c.url + "/operators/" + addr.String() + "/key"
	if block != "" {
		url += "?block=" + block
	}

	body, err := c.httpGET(url)
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve signing key - %w", err)
	}

	var key operators.SigningKey
	if err = json.Unmarshal(body, &key); err != nil {
		return nil, fmt.Errorf("unable to unmarshal signing key - %w", err)
	}

	return &key, nil
}

// GetOperatorWeight retrieves the operator's stake weight, live when block is
// empty or "latest", otherwise as of the given past block.
func (c *Client) GetOperatorWeight(addr *vigil.Address, block string) (*operators.Weight, error) {
	url := c.url + "/operators/" + addr.String() + "/weight"
	if block != "" {
		url += "?block=" + block
	}

	body, err := c.httpGET(url)
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve weight - %w", err)
	}

	var weight operators.Weight
	if err = json.Unmarshal(body, &weight); err != nil {
		return nil, fmt.Errorf("unable to unmarshal weight - %w", err)
	}

	return &weight, nil
}

// GetQuorumConfig retrieves the active quorum configuration.
func (c *Client) GetQuorumConfig() (*quorum.Config, error) {
	body, err := c.httpGET(c.url + "/quorum")
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve quorum config - %w", err)
	}

	var config quorum.Config
	if err = json.Unmarshal(body, &config); err != nil {
		return nil, fmt.Errorf("unable to unmarshal quorum config - %w", err)
	}

	return &config, nil
}

// GetQuorumWeights retrieves the total and threshold weights, live when block
// is empty or "latest", otherwise as of the given past block.
func (c *Client) GetQuorumWeights(block string) (*quorum.Weights, error) {
	url := c.url + "/quorum/weights"
	if block != "" {
		url += "?block=" + block
	}

	body, err := c.httpGET(url)
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve quorum weights - %w", err)
	}

	var weights quorum.Weights
	if err = json.Unmarshal(body, &weights); err != nil {
		return nil, fmt.Errorf("unable to unmarshal quorum weights - %w", err)
	}

	return &weights, nil
}

// Verify submits a threshold verification request.
func (c *Client) Verify(req *verify.Request) (*verify.Result, error) {
	body, err := c.httpPOST(c.url+"/verify", req)
	if err != nil {
		return nil, fmt.Errorf("unable to verify - %w", err)
	}

	var result verify.Result
	if err = json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("unable to unmarshal verify result - %w", err)
	}

	return &result, nil
}

// FilterEvents filters committed registry events based on the provided filter.
func (c *Client) FilterEvents(req *eventdb.Filter) ([]*eventdb.Record, error) {
	body, err := c.httpPOST(c.url+"/events", req)
	if err != nil {
		return nil, fmt.Errorf("unable to filter events - %w", err)
	}

	var records []*eventdb.Record
	if err = json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("unable to unmarshal events - %w", err)
	}

	return records, nil
}

// GetNodeStatus retrieves the node status.
func (c *Client) GetNodeStatus() (*node.Status, error) {
	body, err := c.httpGET(c.url + "/node/status")
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve node status - %w", err)
	}

	var status node.Status
	if err = json.Unmarshal(body, &status); err != nil {
		return nil, fmt.Errorf("unable to unmarshal node status - %w", err)
	}

	return &status, nil
}

// RawHTTPPost sends a raw HTTP POST request to the specified path with the provided data.
func (c *Client) RawHTTPPost(path string, calldata any) ([]byte, int, error) {
	var data []byte
	var err error

	if b, ok := calldata.([]byte); ok {
		data = b
	} else {
		data, err = json.Marshal(calldata)
		if err != nil {
			return nil, 0, fmt.Errorf("unable to marshal payload - %w", err)
		}
	}

	return c.rawHTTPRequest("POST", c.url+path, bytes.NewBuffer(data))
}

// RawHTTPGet sends a raw HTTP GET request to the specified path.
func (c *Client) RawHTTPGet(path string) ([]byte, int, error) {
	return c.rawHTTPRequest("GET", c.url+path, nil)
}

func isNullBody(body []byte) bool {
	return len(body) == 0 || bytes.Equal(bytes.TrimSpace(body), []byte("null"))
}
