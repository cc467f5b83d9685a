/*
 * TDB
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

/*
Package txn contains the transaction manager which composes several block
stores and other resources into atomic multi-file commits.

Every registered block store has an undo journal. A write transaction works
on a JournaledStore which keeps all changed blocks in memory. Before a block
is changed for the first time its pre-image is recorded in the journal. On
commit the journals are synced, the changes are written to the base stores and
finally the commit marker file is updated with the sequence number of the
transaction. The journals are truncated afterwards.

If anything fails before the commit marker was written, all journals are
replayed over the base stores which restores the pre-transaction state. On
startup Recover undoes every journal of a transaction which is not covered by
the commit marker.

There is only one write transaction at a time. Read transactions work on
readonly views of the base stores and block the apply phase of commits for
their lifetime - a read transaction should therefore not be kept open by a
goroutine which wants to commit a write transaction.
*/
package txn

import (
	"fmt"

	"devt.de/krotik/common/logutil"
	"github.com/pkg/errors"
)

/*
MarkerFile is the name of the commit marker file
*/
const MarkerFile = "tdb.txn"

/*
Transaction related errors
*/
var (
	ErrNotActive         = errors.New("Transaction is not active")
	ErrReadOnly          = errors.New("Transaction is readonly")
	ErrMissingResource   = errors.New("Missing resource")
	ErrDuplicateResource = errors.New("Resource was already registered")
	ErrCommitFailed      = errors.New("Commit failed")
	ErrUnrecoverable     = errors.New("Unrecoverable transaction failure")
	ErrMarker            = errors.New("Invalid commit marker")
	ErrInUse             = errors.New("Transactions are still active")
	ErrClosed            = errors.New("Transaction manager was closed")
)

/*
TransactionError is a transaction related error.
*/
type TransactionError struct {
	Type   error
	Detail string
}

/*
newTransactionError returns a new transaction specific error.
*/
func newTransactionError(teType error, teDetail string) *TransactionError {
	return &TransactionError{teType, teDetail}
}

/*
Error returns a string representation of the error.
*/
func (e *TransactionError) Error() string {
	if e.Detail == "" {
		return e.Type.Error()
	}
	return fmt.Sprintf("%s (%s)", e.Type.Error(), e.Detail)
}

/*
IsError checks if a given error (or its cause) is a transaction error of a
given type.
*/
func IsError(err error, teType error) bool {
	te, ok := errors.Cause(err).(*TransactionError)
	return ok && te.Type == teType
}

/*
Mode is the access mode of a transaction
*/
type Mode int

/*
Transaction modes
*/
const (
	ModeRead Mode = iota
	ModeWrite
)

/*
String returns a string representation of a mode.
*/
func (m Mode) String() string {
	if m == ModeWrite {
		return "write"
	}
	return "read"
}

/*
State is the state of a transaction
*/
type State int

/*
Transaction states
*/
const (
	StateActive State = iota
	StateCommitting
	StateCommitted
	StateAborting
	StateAborted
)

/*
String returns a string representation of a state.
*/
func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateCommitting:
		return "committing"
	case StateCommitted:
		return "committed"
	case StateAborting:
		return "aborting"
	}
	return "aborted"
}

/*
Config is the configuration of a transaction manager.
*/
type Config struct {
	Logger logutil.Logger // Logger for recovery and commit failures (nil for default)
}
