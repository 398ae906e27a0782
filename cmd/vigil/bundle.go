// Copyright (c) 2025 The Vigil developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/vigilprotocol/vigil/api/verify"
	"github.com/vigilprotocol/vigil/vigil"
	"github.com/vigilprotocol/vigil/vigilclient"
)

// A bundle file is the verification request itself, accumulated one
// signature at a time and posted to a node as-is.

// loadBundle reads a bundle file. A missing file is reported with ok false.
func loadBundle(path string) (*verify.Request, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, errors.Wrap(err, "read bundle")
	}
	var req verify.Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, false, errors.Wrap(err, "decode bundle")
	}
	if len(req.Signers) != len(req.Signatures) {
		return nil, false, errors.New("malformed bundle: signer/signature count mismatch")
	}
	return &req, true, nil
}

func saveBundle(path string, req *verify.Request) error {
	data, err := json.MarshalIndent(req, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0600)
}

func signingKey(ctx *cli.Context) (*ecdsa.PrivateKey, error) {
	if hexKey := ctx.String(keyFlag.Name); hexKey != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
		if err != nil {
			return nil, errors.WithMessage(err, "parse -key")
		}
		return key, nil
	}
	return loadOrGeneratePrivateKey(masterKeyPath(ctx))
}

// bundleSignAction signs the bundle's hash and splices the signature in,
// keeping signers in ascending address order as the verifier expects.
func bundleSignAction(ctx *cli.Context) error {
	path := ctx.String(bundleFlag.Name)
	req, found, err := loadBundle(path)
	if err != nil {
		return err
	}

	if found {
		if ctx.IsSet(hashFlag.Name) {
			hash, err := vigil.ParseBytes32(ctx.String(hashFlag.Name))
			if err != nil {
				return errors.WithMessage(err, "parse -hash")
			}
			if hash != req.Hash {
				return errors.Errorf("bundle %v holds a different hash %v", path, req.Hash)
			}
		}
		if ctx.IsSet(blockFlag.Name) && ctx.Uint64(blockFlag.Name) != req.ReferenceBlock {
			return errors.Errorf("bundle %v holds a different reference block #%v", path, req.ReferenceBlock)
		}
	} else {
		if !ctx.IsSet(hashFlag.Name) || !ctx.IsSet(blockFlag.Name) {
			return errors.Errorf("creating %v requires both -%s and -%s", path, hashFlag.Name, blockFlag.Name)
		}
		hash, err := vigil.ParseBytes32(ctx.String(hashFlag.Name))
		if err != nil {
			return errors.WithMessage(err, "parse -hash")
		}
		req = &verify.Request{Hash: hash, ReferenceBlock: ctx.Uint64(blockFlag.Name)}
	}

	key, err := signingKey(ctx)
	if err != nil {
		return err
	}
	sig, err := crypto.Sign(req.Hash.Bytes(), key)
	if err != nil {
		return errors.Wrap(err, "sign")
	}
	signer := vigil.Address(crypto.PubkeyToAddress(key.PublicKey))

	insertSignature(req, signer, sig)

	if err := saveBundle(path, req); err != nil {
		return err
	}
	fmt.Printf(`Signed bundle %v
    Hash       [ %v ]
    Block      [ #%v ]
    Signer     [ %v ]
    Signatures [ %v ]
`, path, req.Hash, req.ReferenceBlock, signer, len(req.Signers))
	return nil
}

// insertSignature places the signature at the signer's ordered slot,
// replacing an earlier signature by the same signer.
func insertSignature(req *verify.Request, signer vigil.Address, sig []byte) {
	pos := len(req.Signers)
	for i, s := range req.Signers {
		cmp := bytes.Compare(s.Bytes(), signer.Bytes())
		if cmp == 0 {
			req.Signatures[i] = sig
			return
		}
		if cmp > 0 {
			pos = i
			break
		}
	}
	req.Signers = append(req.Signers, vigil.Address{})
	copy(req.Signers[pos+1:], req.Signers[pos:])
	req.Signers[pos] = signer
	req.Signatures = append(req.Signatures, nil)
	copy(req.Signatures[pos+1:], req.Signatures[pos:])
	req.Signatures[pos] = sig
}

// bundleVerifyAction posts the bundle to a node, which checks it against the
// registry state at the bundle's reference block.
func bundleVerifyAction(ctx *cli.Context) error {
	path := ctx.String(bundleFlag.Name)
	req, found, err := loadBundle(path)
	if err != nil {
		return err
	}
	if !found {
		return errors.Errorf("no bundle at %v", path)
	}

	client := vigilclient.New(ctx.String(nodeURLFlag.Name))
	res, err := client.Verify(req)
	if err != nil {
		return errors.WithMessage(err, "verify")
	}

	if !res.Valid {
		return cli.NewExitError(fmt.Sprintf("bundle rejected [%v]: %v", res.Code, res.Reason), 1)
	}
	fmt.Printf(`Bundle accepted
    Hash       [ %v ]
    Block      [ #%v ]
    Signatures [ %v ]
`, req.Hash, req.ReferenceBlock, len(req.Signers))
	return nil
}
