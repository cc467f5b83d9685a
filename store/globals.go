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
Package store contains a triple store which is built from a node table and
three B+Tree indexes.

Every triple is stored as a key of three node ids in the indexes SPO, POS and
OSP. Each index holds the ids in a different order so that any pattern of
bound and unbound triple parts is a range scan in one of them. All files of a
store are transactional resources of one transaction manager.
*/
package store

import (
	"errors"
	"fmt"
	"time"

	"devt.de/krotik/common/logutil"
	"devt.de/krotik/tdb/btree"
	"devt.de/krotik/tdb/nodetable"
	"devt.de/krotik/tdb/storage/file"
)

/*
File names inside a store directory
*/
const (
	LockFileName = "tdb.lck"
	MetaFileName = "tdb.meta"
)

/*
FormatVersion is the version of the store format
*/
const FormatVersion = "1"

/*
Store related errors
*/
var (
	ErrOpening      = errors.New("Could not open store")
	ErrReadOnly     = errors.New("Store is readonly")
	ErrClosed       = errors.New("Store was closed")
	ErrInconsistent = errors.New("Indexes are inconsistent")
)

/*
StoreError is a store related error.
*/
type StoreError struct {
	Type   error
	Detail string
}

/*
newStoreError returns a new store specific error.
*/
func newStoreError(seType error, seDetail string) *StoreError {
	return &StoreError{seType, seDetail}
}

/*
Error returns a string representation of the error.
*/
func (e *StoreError) Error() string {
	if e.Detail == "" {
		return e.Type.Error()
	}
	return fmt.Sprintf("%s (%s)", e.Type.Error(), e.Detail)
}

/*
Options holds all settings of a store.
*/
type Options struct {
	BlockSize      int                   // Size of index blocks
	LeafCapacity   int                   // Leaf capacity of the triple indexes (0 for maximum)
	BranchCapacity int                   // Branch capacity of the triple indexes (0 for maximum)
	BlockCacheSize int                   // Number of cached blocks per index file (0 disables)
	Duplicates     btree.DuplicatePolicy // Handling of triples which are added twice
	ClearDeleted   bool                  // Clear unused slots of index nodes
	Nodes          nodetable.Params      // Settings of the node table
	LockFile       bool                  // Flag if a lock file should be used
	LockInterval   time.Duration         // Check interval of the lock file
	ReadOnly       bool                  // Flag if the store can only be read
	Logger         logutil.Logger        // Logger (nil for the default logger)
}

/*
DefaultOptions returns the default store options.
*/
func DefaultOptions() Options {
	return Options{
		BlockSize:      file.DefaultBlockSize,
		BlockCacheSize: 1000,
		Duplicates:     btree.DuplicateReplace,
		ClearDeleted:   true,
		Nodes:          nodetable.DefaultParams(),
		LockFile:       true,
		LockInterval:   time.Second,
	}
}

/*
Triple is a statement of three terms.
*/
type Triple struct {
	S nodetable.Node // Subject
	P nodetable.Node // Predicate
	O nodetable.Node // Object
}

/*
String returns the triple in N-Triples syntax.
*/
func (t Triple) String() string {
	return fmt.Sprintf("%v %v %v .", t.S, t.P, t.O)
}
