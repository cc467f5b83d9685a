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
Package storage contains the low-level API for block storage. Data is stored
in fixed size blocks which are addressed by a block id.

BlockStore

A block store reads and writes raw block images. The main implementation is
file.BlockFile. There are also wrappers which add functionality to a given
block store:

CachedBlockStore

The CachedBlockStore is a cache wrapper for a BlockStore. Its purpose is to
intercept calls and to maintain a cache of block images. The cache is limited
in size by the number of total blocks it references. Once the cache is full it
will forget the blocks which have been requested the least.

MemoryBlockStore

A block store which keeps all its data in memory and provides several
error simulation facilities.

BlockManager

A block manager hands out blocks for reading and writing, allocates new
blocks and maintains a list of free blocks. It also maintains a set of root
values which can be used by data structures to find their entry points.
*/
package storage

import "devt.de/krotik/tdb/storage/file"

/*
BlockStore is the interface for raw block storage.
*/
type BlockStore interface {

	/*
		Name returns the name of the block store.
	*/
	Name() string

	/*
		BlockSize returns the size of every block in this store.
	*/
	BlockSize() int

	/*
		ReadBlock fills a given block with the stored data. The block id
		determines which data is read. Blocks which were never written
		contain only zeros.
	*/
	ReadBlock(b *file.Block) error

	/*
		WriteBlock stores the data of a given block.
	*/
	WriteBlock(b *file.Block) error

	/*
		Sync makes sure all written data is stored persistently.
	*/
	Sync() error

	/*
		Close closes the block store.
	*/
	Close() error
}

/*
BlockManager is the interface for block allocation and access.
*/
type BlockManager interface {

	/*
		Name returns the name of the block manager.
	*/
	Name() string

	/*
		BlockSize returns the size of every block.
	*/
	BlockSize() int

	/*
		Allocate allocates a new block of a given page type. The returned
		block is checked out for writing and must be released.
	*/
	Allocate(pagetype int16) (*file.Block, error)

	/*
		GetRead checks out a block for reading. The block must be released.
	*/
	GetRead(id uint64) (*file.Block, error)

	/*
		GetWrite checks out a block for writing. The block must be released.
	*/
	GetWrite(id uint64) (*file.Block, error)

	/*
		Release releases a checked out block.
	*/
	Release(b *file.Block)

	/*
		Free returns a block to the free list. The block must not be
		checked out.
	*/
	Free(id uint64) error

	/*
		Roots returns the number of available root values.
	*/
	Roots() int

	/*
		Root returns a root value.
	*/
	Root(root int) uint64

	/*
		SetRoot writes a root value.
	*/
	SetRoot(root int, val uint64) error

	/*
		Sync writes all changed blocks to the underlying store.
	*/
	Sync() error

	/*
		Close closes the block manager. The underlying store is not closed.
	*/
	Close() error
}
