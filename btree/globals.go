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
Package btree contains a B+Tree index over fixed width records which is
stored in the blocks of a BlockManager.

Leaf nodes hold the records in ascending key order and are linked from left
to right. Branch nodes hold separator keys and child pointers. The separator
at position i is the lowest key of the subtree of child i+1 at the time it was
created; all keys of child i are smaller and all keys of child i+1 are bigger
or equal.

Node layout (after the page view header):

	count    uint16        number of records / keys
	records  [capacity]    packed records (leaf) or keys (branch)
	children [capacity+1]  uint64 child block ids (branch only)

Every node except the root holds at least capacity/2 entries. The root of a
non-empty tree is either a leaf or a branch with at least one key. A tree is
not safe for concurrent use; every transaction uses its own tree instance.
*/
package btree

import (
	"errors"
	"fmt"

	"devt.de/krotik/common/logutil"
	"devt.de/krotik/tdb/storage/file"
	"devt.de/krotik/tdb/storage/paging/view"
)

/*
OffsetCount is the offset of the entry count in a node block
*/
const OffsetCount = view.OffsetData

/*
OffsetRecords is the offset of the first record in a node block
*/
const OffsetRecords = OffsetCount + file.SizeUnsignedShort

/*
MinLeafCapacity is the minimal number of records in a leaf node
*/
const MinLeafCapacity = 2

/*
MinBranchCapacity is the minimal number of keys in a branch node
*/
const MinBranchCapacity = 3

/*
maxCapacity is the highest capacity which can be stored in the count field
*/
const maxCapacity = 0xFFFF

/*
Tree related errors
*/
var (
	ErrCorrupt          = errors.New("Tree is corrupt")
	ErrDuplicate        = errors.New("Duplicate key")
	ErrClosed           = errors.New("Tree was closed")
	ErrRecordShape      = errors.New("Record does not fit the tree")
	ErrCapacityTooSmall = errors.New("Invalid node capacity")
	ErrNoMoreItems      = errors.New("No more items")
)

/*
TreeError is a tree related error.
*/
type TreeError struct {
	Type   error
	Detail string
}

/*
newTreeError returns a new tree specific error.
*/
func newTreeError(teType error, teDetail string) *TreeError {
	return &TreeError{teType, teDetail}
}

/*
Error returns a string representation of the error.
*/
func (e *TreeError) Error() string {
	if e.Detail == "" {
		return e.Type.Error()
	}
	return fmt.Sprintf("%s (%s)", e.Type.Error(), e.Detail)
}

/*
DuplicatePolicy determines what happens if a record is added whose key is
already in the tree.
*/
type DuplicatePolicy int

/*
Duplicate policies
*/
const (
	DuplicateDefault DuplicatePolicy = iota // Replace for records with values, error otherwise
	DuplicateError                          // Adding an existing key is an error
	DuplicateReplace                        // Adding an existing key replaces the stored record
)

/*
ParseDuplicatePolicy turns a string ("error", "replace" or "") into a
DuplicatePolicy.
*/
func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	switch s {
	case "":
		return DuplicateDefault, nil
	case "error":
		return DuplicateError, nil
	case "replace":
		return DuplicateReplace, nil
	}
	return DuplicateDefault, fmt.Errorf("Unknown duplicate policy: %v", s)
}

/*
Params are the parameters of a tree.
*/
type Params struct {
	LeafCapacity   int             // Records per leaf (0 for the maximum which fits a block)
	BranchCapacity int             // Keys per branch (0 for the maximum which fits a block)
	RootSlot       int             // Root slot of the block manager which holds the root node id
	Duplicates     DuplicatePolicy // Policy for adding existing keys
	ClearDeleted   bool            // Zero out slots of moved or deleted entries
	Logger         logutil.Logger  // Logger for structural changes (nil for default)
}

/*
DefaultParams returns the default tree parameters.
*/
func DefaultParams() Params {
	return Params{ClearDeleted: true}
}

/*
MaxLeafCapacity returns the maximal number of records of a given length which
fit into a leaf node.
*/
func MaxLeafCapacity(blockSize int, recordLength int) int {
	c := (blockSize - OffsetRecords) / recordLength
	if c > maxCapacity {
		c = maxCapacity
	}
	return c
}

/*
MaxBranchCapacity returns the maximal number of keys of a given length which
fit into a branch node.
*/
func MaxBranchCapacity(blockSize int, keyLength int) int {
	c := (blockSize - OffsetRecords - file.SizeLong) / (keyLength + file.SizeLong)
	if c > maxCapacity {
		c = maxCapacity
	}
	return c
}
