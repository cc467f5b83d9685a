/*
 * TDB
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package storage

import (
	"errors"
	"fmt"
)

/*
Errors of block stores and block managers
*/
var (
	ErrBlockNotFound = errors.New("Block not found")
	ErrInUse         = errors.New("Blocks are still in use")
	ErrReadonly      = errors.New("Storage is readonly")
	ErrIO            = errors.New("Simulated IO error")
	ErrFreeBlock     = errors.New("Block cannot be freed")
	ErrHeader        = errors.New("Unexpected header")
)

/*
ManagerError is an error of a block store or block manager. Detail says what
was attempted.
*/
type ManagerError struct {
	Type        error
	Detail      string
	Managername string
}

/*
NewStorageManagerError returns a new storage manager specific error.
*/
func NewStorageManagerError(smeType error, smeDetail string, smeManagername string) *ManagerError {
	return &ManagerError{smeType, smeDetail, smeManagername}
}

/*
Error returns a string representation of the error.
*/
func (e *ManagerError) Error() string {
	return fmt.Sprintf("%s (%s - %s)", e.Type.Error(), e.Managername, e.Detail)
}
