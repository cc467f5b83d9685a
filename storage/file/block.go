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
Package file deals with low level file storage of fixed size blocks and
undo journals.

Block

A block is a fixed size page of a BlockFile. It is a wrapper data structure
for a byte array which provides read and write methods for several data types.
All multi-byte values are stored in big-endian order.

BlockFile

BlockFile models a logical file which stores fixed size blocks on disk. Each
block has a unique block id. On disk this logical file might be split into
several smaller files.

Journal

Journal is an append-only undo log. Before the new content of a block can
reach a BlockFile the old content (pre-image) is appended to the journal.
Should the process crash the journal is used on the next startup to restore
all blocks which were touched by an uncommitted transaction.
*/
package file

import (
	"fmt"

	"devt.de/krotik/common/bitutil"
)

/*
Size constants for values in a block
*/
const (
	SizeByte          = 1
	SizeUnsignedShort = 2
	SizeShort         = 2
	SizeUnsignedInt   = 4
	SizeInt           = 4
	SizeLong          = 8
)

/*
DefaultBlockSize is the default size of a block in bytes
*/
const DefaultBlockSize = 4096

/*
Block data structure
*/
type Block struct {
	id       uint64      // 64-bit block id
	data     []byte      // Slice of the whole data byte array
	dirty    bool        // Dirty flag to indicate change
	pageView interface{} // View on this block (this is not persisted)
}

/*
NewBlock creates a new Block and returns a pointer to it.
*/
func NewBlock(id uint64, data []byte) *Block {
	return &Block{id, data, false, nil}
}

/*
ID returns the id of a Block.
*/
func (b *Block) ID() uint64 {
	return b.id
}

/*
SetID changes the id of a Block.
*/
func (b *Block) SetID(id uint64) {
	b.id = id
}

/*
Data returns the raw data of a Block.
*/
func (b *Block) Data() []byte {
	return b.data
}

/*
Dirty returns the dirty flag of a Block.
*/
func (b *Block) Dirty() bool {
	return b.dirty
}

/*
SetDirty sets the dirty flag of a Block.
*/
func (b *Block) SetDirty() {
	b.dirty = true
}

/*
ClearDirty clears the dirty flag of a Block.
*/
func (b *Block) ClearDirty() {
	b.dirty = false
}

/*
ClearData zeroes all stored data of a Block. The dirty flag is not touched.
*/
func (b *Block) ClearData() {
	for i := range b.data {
		b.data[i] = 0
	}
	b.pageView = nil
}

/*
Copy returns a deep copy of this Block. The page view is not copied.
*/
func (b *Block) Copy() *Block {
	data := make([]byte, len(b.data))
	copy(data, b.data)
	return &Block{b.id, data, b.dirty, nil}
}

/*
PageView returns the view on this block. The view determines how the block
is being used.
*/
func (b *Block) PageView() interface{} {
	return b.pageView
}

/*
SetPageView sets the view on this block.
*/
func (b *Block) SetPageView(view interface{}) {
	b.pageView = view
}

/*
String prints a string representation the Block.
*/
func (b *Block) String() string {
	return fmt.Sprintf("Block: %v (dirty:%v len:%v)\n%v",
		b.id, b.dirty, len(b.data), bitutil.HexDump(b.data))
}

// Read and Write functions
// ========================

/*
ReadSingleByte reads a byte from a Block.
*/
func (b *Block) ReadSingleByte(pos int) byte {
	return b.data[pos]
}

/*
WriteSingleByte writes a byte to a Block.
*/
func (b *Block) WriteSingleByte(pos int, value byte) {
	b.data[pos] = value
	b.SetDirty()
}

/*
ReadUInt16 reads a 16-bit unsigned integer from a Block.
*/
func (b *Block) ReadUInt16(pos int) uint16 {
	return (uint16(b.data[pos+0]) << 8) |
		(uint16(b.data[pos+1]) << 0)
}

/*
WriteUInt16 writes a 16-bit unsigned integer to a Block.
*/
func (b *Block) WriteUInt16(pos int, value uint16) {
	b.data[pos+0] = byte(value >> 8)
	b.data[pos+1] = byte(value >> 0)
	b.SetDirty()
}

/*
ReadInt16 reads a 16-bit signed integer from a Block.
*/
func (b *Block) ReadInt16(pos int) int16 {
	return int16(b.ReadUInt16(pos))
}

/*
WriteInt16 writes a 16-bit signed integer to a Block.
*/
func (b *Block) WriteInt16(pos int, value int16) {
	b.WriteUInt16(pos, uint16(value))
}

/*
ReadUInt32 reads a 32-bit unsigned integer from a Block.
*/
func (b *Block) ReadUInt32(pos int) uint32 {
	return (uint32(b.data[pos+0]) << 24) |
		(uint32(b.data[pos+1]) << 16) |
		(uint32(b.data[pos+2]) << 8) |
		(uint32(b.data[pos+3]) << 0)
}

/*
WriteUInt32 writes a 32-bit unsigned integer to a Block.
*/
func (b *Block) WriteUInt32(pos int, value uint32) {
	b.data[pos+0] = byte(value >> 24)
	b.data[pos+1] = byte(value >> 16)
	b.data[pos+2] = byte(value >> 8)
	b.data[pos+3] = byte(value >> 0)
	b.SetDirty()
}

/*
ReadInt32 reads a 32-bit signed integer from a Block.
*/
func (b *Block) ReadInt32(pos int) int32 {
	return int32(b.ReadUInt32(pos))
}

/*
WriteInt32 writes a 32-bit signed integer to a Block.
*/
func (b *Block) WriteInt32(pos int, value int32) {
	b.WriteUInt32(pos, uint32(value))
}

/*
ReadUInt64 reads a 64-bit unsigned integer from a Block.
*/
func (b *Block) ReadUInt64(pos int) uint64 {
	return (uint64(b.data[pos+0]) << 56) |
		(uint64(b.data[pos+1]) << 48) |
		(uint64(b.data[pos+2]) << 40) |
		(uint64(b.data[pos+3]) << 32) |
		(uint64(b.data[pos+4]) << 24) |
		(uint64(b.data[pos+5]) << 16) |
		(uint64(b.data[pos+6]) << 8) |
		(uint64(b.data[pos+7]) << 0)
}

/*
WriteUInt64 writes a 64-bit unsigned integer to a Block.
*/
func (b *Block) WriteUInt64(pos int, value uint64) {
	b.data[pos+0] = byte(value >> 56)
	b.data[pos+1] = byte(value >> 48)
	b.data[pos+2] = byte(value >> 40)
	b.data[pos+3] = byte(value >> 32)
	b.data[pos+4] = byte(value >> 24)
	b.data[pos+5] = byte(value >> 16)
	b.data[pos+6] = byte(value >> 8)
	b.data[pos+7] = byte(value >> 0)
	b.SetDirty()
}

/*
ReadBytes returns a slice of the block data. The returned slice shares
memory with the block.
*/
func (b *Block) ReadBytes(pos int, length int) []byte {
	return b.data[pos : pos+length]
}

/*
WriteBytes copies a byte slice into the block at a given position.
*/
func (b *Block) WriteBytes(pos int, value []byte) {
	copy(b.data[pos:pos+len(value)], value)
	b.SetDirty()
}
