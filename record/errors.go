/*
 * TDB
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package record

import (
	"errors"
	"fmt"
)

/*
Record related errors
*/
var (
	ErrCapacity     = errors.New("Record buffer capacity exceeded")
	ErrOutOfBounds  = errors.New("Index out of bounds")
	ErrRecordLength = errors.New("Unexpected record length")
	ErrDuplicateKey = errors.New("Duplicate key")
)

/*
BufferError is a record or record buffer related error.
*/
type BufferError struct {
	Type   error
	Detail string
}

/*
newBufferError returns a new record buffer specific error.
*/
func newBufferError(beType error, beDetail string) *BufferError {
	return &BufferError{beType, beDetail}
}

/*
Error returns a string representation of the error.
*/
func (e *BufferError) Error() string {
	if e.Detail == "" {
		return e.Type.Error()
	}
	return fmt.Sprintf("%s (%s)", e.Type.Error(), e.Detail)
}
