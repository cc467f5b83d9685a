/*
 * TDB
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package file

import (
	"errors"
	"fmt"
)

/*
Common storage file related errors
*/
var (
	ErrNilData   = errors.New("Block has nil data")
	ErrBlockSize = errors.New("Block has an unexpected size")
	ErrReadonly  = errors.New("File is readonly")
	ErrBadMagic  = errors.New("Bad magic for journal")
	ErrChecksum  = errors.New("Checksum mismatch")
	ErrClosed    = errors.New("File was closed")
)

/*
StorageFileError is a storage file related error.
*/
type StorageFileError struct {
	Type     error
	Detail   string
	Filename string
}

/*
NewStorageFileError returns a new storage file specific error.
*/
func NewStorageFileError(sfeType error, sfeDetail string, sfeFilename string) *StorageFileError {
	return &StorageFileError{sfeType, sfeDetail, sfeFilename}
}

/*
Error returns a string representation of the error.
*/
func (e *StorageFileError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s (%s)", e.Type.Error(), e.Filename)
	}
	return fmt.Sprintf("%s (%s - %s)", e.Type.Error(), e.Filename, e.Detail)
}
