// Copyright (c) 2025 The Vigil developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/vigilprotocol/vigil/vigil"
)

func readPassword(ctx *cli.Context, prompt string) (string, error) {
	if ctx.Bool(masterKeyStdinFlag.Name) {
		reader := bufio.NewReader(os.Stdin)
		line, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return "", err
		}
		return strings.TrimRight(line, "\r\n"), nil
	}
	return readPasswordFromNewTTY(prompt)
}

// masterKeyAction prints the master address, or moves the key in and out of
// the JSON keystore format.
func masterKeyAction(ctx *cli.Context) error {
	hasImportFlag := ctx.Bool(importMasterKeyFlag.Name)
	hasExportFlag := ctx.Bool(exportMasterKeyFlag.Name)
	if hasImportFlag && hasExportFlag {
		return fmt.Errorf("flag %s and %s are exclusive", importMasterKeyFlag.Name, exportMasterKeyFlag.Name)
	}

	if !hasImportFlag && !hasExportFlag {
		masterKey, err := loadOrGeneratePrivateKey(masterKeyPath(ctx))
		if err != nil {
			return err
		}
		fmt.Println("Master:", vigil.Address(crypto.PubkeyToAddress(masterKey.PublicKey)))
		return nil
	}

	if hasImportFlag {
		// import should not override existing master key file
		keyPath := masterKeyPath(ctx)
		if _, err := os.Stat(keyPath); !os.IsNotExist(err) {
			return fmt.Errorf("master key file '%v' already exists", keyPath)
		}

		if isatty.IsTerminal(os.Stdin.Fd()) {
			fmt.Println("Input JSON keystore (end with ^d):")
		}
		keyjson, err := io.ReadAll(os.Stdin)
		if err != nil {
			return err
		}

		if err := json.Unmarshal(keyjson, &map[string]interface{}{}); err != nil {
			return errors.WithMessage(err, "unmarshal")
		}
		password, err := readPassword(ctx, "Enter passphrase: ")
		if err != nil {
			return err
		}

		key, err := keystore.DecryptKey(keyjson, password)
		if err != nil {
			return errors.WithMessage(err, "decrypt")
		}

		if err := crypto.SaveECDSA(keyPath, key.PrivateKey); err != nil {
			return err
		}
		fmt.Println("Master key imported:", vigil.Address(key.Address))
		return nil
	}

	// export
	masterKey, err := loadOrGeneratePrivateKey(masterKeyPath(ctx))
	if err != nil {
		return err
	}

	password, err := readPassword(ctx, "Enter passphrase: ")
	if err != nil {
		return err
	}
	if password == "" {
		return errors.New("non-empty passphrase required")
	}
	confirm, err := readPassword(ctx, "Confirm passphrase: ")
	if err != nil {
		return err
	}
	if password != confirm {
		return errors.New("passphrase confirmation mismatch")
	}

	keyjson, err := keystore.EncryptKey(&keystore.Key{
		PrivateKey: masterKey,
		Address:    crypto.PubkeyToAddress(masterKey.PublicKey),
		Id:         uuid.New(),
	}, password, keystore.StandardScryptN, keystore.StandardScryptP)
	if err != nil {
		return err
	}
	fmt.Println("=== JSON keystore ===")
	fmt.Println(string(keyjson))
	return nil
}
