// Copyright (c) 2025 The Vigil developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package common holds types shared between the HTTP and websocket clients.
package common

import "fmt"

var (
	ErrNotFound      = fmt.Errorf("not found")
	ErrNot200Status  = fmt.Errorf("not 200 status code")
	ErrUnexpectedMsg = fmt.Errorf("unexpected message format")
)

// EventWrapper carries either a received message or the error that ended the
// subscription. After a wrapper with a non-nil Error the channel is closed.
type EventWrapper[T any] struct {
	Data  T
	Error error
}
