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
Package nodetable maps RDF terms to fixed width node ids and back.

Terms are appended to an object file. The id of a term is the offset of its
entry in the object file. A hash index (a B+Tree keyed by the MD5 hash of the
encoded term) finds the id of a known term. Both are transactional resources
of a transaction manager: the hash index is a journaled block store and the
object file undoes a failed commit by truncating the file to its previous
length.

Lookups are cached. The caches only ever see mappings of committed
transactions.
*/
package nodetable

import (
	"encoding/binary"
	"errors"
	"fmt"

	"devt.de/krotik/common/logutil"
)

/*
IndexName is the name of the block store of the hash index
*/
const IndexName = "nodes.idx"

/*
ObjectFileName is the name of the object file resource
*/
const ObjectFileName = "nodes.obj"

/*
NodeID is the id of a term in a node table.
*/
type NodeID uint64

/*
NodeIDNone is an id which is never assigned to a term
*/
const NodeIDNone NodeID = 0

/*
NodeIDSize is the size of an encoded node id
*/
const NodeIDSize = 8

/*
Bytes returns the big-endian encoding of this id.
*/
func (id NodeID) Bytes() []byte {
	b := make([]byte, NodeIDSize)
	binary.BigEndian.PutUint64(b, uint64(id))
	return b
}

/*
NodeIDFromBytes decodes a node id from the first bytes of a given slice.
*/
func NodeIDFromBytes(b []byte) NodeID {
	return NodeID(binary.BigEndian.Uint64(b[:NodeIDSize]))
}

/*
Node table related errors
*/
var (
	ErrInvalidNode   = errors.New("Invalid node data")
	ErrUnknownNodeID = errors.New("Unknown node id")
	ErrReadOnly      = errors.New("Cannot add nodes in a read transaction")
	ErrHashCollision = errors.New("Hash collision")
	ErrObjectFile    = errors.New("Object file is corrupt")
)

/*
TableError is a node table related error.
*/
type TableError struct {
	Type   error
	Detail string
}

/*
newTableError returns a new node table specific error.
*/
func newTableError(teType error, teDetail string) *TableError {
	return &TableError{teType, teDetail}
}

/*
Error returns a string representation of the error.
*/
func (e *TableError) Error() string {
	return fmt.Sprintf("%s (%s)", e.Type.Error(), e.Detail)
}

/*
Params holds the construction parameters of a node table.
*/
type Params struct {
	LeafCapacity    int            // Leaf capacity of the hash index (0 for maximum)
	BranchCapacity  int            // Branch capacity of the hash index (0 for maximum)
	ClearDeleted    bool           // Clear unused slots of the hash index
	Compress        bool           // Compress larger object file entries
	NodeCacheSize   int            // Number of cached id -> term mappings (0 disables)
	NodeIDCacheSize int64          // Cost limit of the term -> id cache in bytes (0 disables)
	MissCacheSize   uint64         // Number of cached unknown terms (0 disables)
	MissCacheMaxAge int64          // Maximal age of cached unknown terms in seconds (0 for no limit)
	Logger          logutil.Logger // Logger (nil for the default logger)
}

/*
DefaultParams returns the default node table parameters.
*/
func DefaultParams() Params {
	return Params{
		ClearDeleted:    true,
		Compress:        true,
		NodeCacheSize:   10000,
		NodeIDCacheSize: 1 << 20,
		MissCacheSize:   1000,
		MissCacheMaxAge: 60,
	}
}
