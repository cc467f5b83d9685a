/*
 * TDB
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package paging

import (
	"fmt"

	"devt.de/krotik/tdb/storage"
	"devt.de/krotik/tdb/storage/file"
)

/*
PageHeader is the magic number to identify header blocks
*/
const PageHeader = 0x1980

/*
OffsetFreeList is the offset of the first element of the free list
*/
const OffsetFreeList = file.SizeUnsignedShort

/*
OffsetNextBlock is the offset of the next block which was never allocated
*/
const OffsetNextBlock = OffsetFreeList + file.SizeLong

/*
OffsetFreeCount is the offset of the number of blocks in the free list
*/
const OffsetFreeCount = OffsetNextBlock + file.SizeLong

/*
OffsetRoots is the offset of the first root value
*/
const OffsetRoots = OffsetFreeCount + file.SizeLong

/*
BlockManagerHeader data structure
*/
type BlockManagerHeader struct {
	block      *file.Block // Block which is being used for the header information
	totalRoots int         // Number of root values which can be stored
}

/*
NewBlockManagerHeader creates a new BlockManagerHeader. A block which
contains only zeros is initialised as a new header.
*/
func NewBlockManagerHeader(block *file.Block) (*BlockManagerHeader, error) {
	totalRoots := (len(block.Data()) - OffsetRoots) / file.SizeLong
	if totalRoots < 1 {
		return nil, storage.NewStorageManagerError(storage.ErrHeader,
			fmt.Sprintf("Block of %v bytes cannot store any roots", len(block.Data())), "")
	}

	ret := &BlockManagerHeader{block, totalRoots}

	if magic := block.ReadUInt16(0); magic == 0 && block.ReadUInt64(OffsetNextBlock) == 0 {
		block.WriteUInt16(0, PageHeader)
		block.WriteUInt64(OffsetNextBlock, 1)

	} else if magic != PageHeader {
		return nil, storage.NewStorageManagerError(storage.ErrHeader,
			fmt.Sprintf("Unexpected magic %x", magic), "")
	}

	return ret, nil
}

/*
Roots returns the number of possible root values which can be set.
*/
func (h *BlockManagerHeader) Roots() int {
	return h.totalRoots
}

/*
Root returns a root value.
*/
func (h *BlockManagerHeader) Root(root int) uint64 {
	return h.block.ReadUInt64(OffsetRoots + root*file.SizeLong)
}

/*
SetRoot sets a root value.
*/
func (h *BlockManagerHeader) SetRoot(root int, val uint64) {
	h.block.WriteUInt64(OffsetRoots+root*file.SizeLong, val)
}

/*
FreeList returns the first block of the free list.
*/
func (h *BlockManagerHeader) FreeList() uint64 {
	return h.block.ReadUInt64(OffsetFreeList)
}

/*
SetFreeList sets the first block of the free list.
*/
func (h *BlockManagerHeader) SetFreeList(val uint64) {
	h.block.WriteUInt64(OffsetFreeList, val)
}

/*
FreeCount returns the number of blocks in the free list.
*/
func (h *BlockManagerHeader) FreeCount() uint64 {
	return h.block.ReadUInt64(OffsetFreeCount)
}

/*
SetFreeCount sets the number of blocks in the free list.
*/
func (h *BlockManagerHeader) SetFreeCount(val uint64) {
	h.block.WriteUInt64(OffsetFreeCount, val)
}

/*
NextBlock returns the id of the next block which was never allocated.
*/
func (h *BlockManagerHeader) NextBlock() uint64 {
	return h.block.ReadUInt64(OffsetNextBlock)
}

/*
SetNextBlock sets the id of the next block which was never allocated.
*/
func (h *BlockManagerHeader) SetNextBlock(val uint64) {
	h.block.WriteUInt64(OffsetNextBlock, val)
}
