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
	"bytes"
	"fmt"
	"sync"

	"devt.de/krotik/common/errorutil"
	"devt.de/krotik/common/sortutil"
	"devt.de/krotik/tdb/storage"
	"devt.de/krotik/tdb/storage/file"
	"devt.de/krotik/tdb/storage/paging/view"
)

/*
PagedBlockManager data structure
*/
type PagedBlockManager struct {
	store    storage.BlockStore     // Underlying block store
	readonly bool                   // Flag if blocks can only be read
	header   *BlockManagerHeader    // Header information stored in block 0
	hblock   *file.Block            // Block 0
	inUse    map[uint64]*checkout   // Blocks which are checked out
	dirty    map[uint64]*file.Block // Changed blocks which were not yet synced
	mutex    *sync.Mutex            // Mutex to protect map operations
}

/*
checkout data structure
*/
type checkout struct {
	block *file.Block // Checked out block
	refs  int         // Number of times the block was checked out
	write bool        // Flag if the block was checked out for writing
}

/*
NewPagedBlockManager creates a new PagedBlockManager for a given block store.
*/
func NewPagedBlockManager(store storage.BlockStore, readonly bool) (*PagedBlockManager, error) {
	hblock := file.NewBlock(0, make([]byte, store.BlockSize()))

	if err := store.ReadBlock(hblock); err != nil {
		return nil, err
	}

	header, err := NewBlockManagerHeader(hblock)
	if err != nil {
		err.(*storage.ManagerError).Managername = store.Name()
		return nil, err
	}

	return &PagedBlockManager{store, readonly, header, hblock,
		make(map[uint64]*checkout), make(map[uint64]*file.Block), &sync.Mutex{}}, nil
}

/*
Name returns the name of the underlying block store.
*/
func (pbm *PagedBlockManager) Name() string {
	return pbm.store.Name()
}

/*
BlockSize returns the size of every block.
*/
func (pbm *PagedBlockManager) BlockSize() int {
	return pbm.store.BlockSize()
}

/*
Store returns the underlying block store.
*/
func (pbm *PagedBlockManager) Store() storage.BlockStore {
	return pbm.store
}

/*
Readonly returns if this block manager only allows read access.
*/
func (pbm *PagedBlockManager) Readonly() bool {
	return pbm.readonly
}

/*
Roots returns the number of available root values.
*/
func (pbm *PagedBlockManager) Roots() int {
	return pbm.header.Roots()
}

/*
Root returns a root value.
*/
func (pbm *PagedBlockManager) Root(root int) uint64 {
	pbm.mutex.Lock()
	defer pbm.mutex.Unlock()

	if root < 0 || root >= pbm.header.Roots() {
		return 0
	}

	return pbm.header.Root(root)
}

/*
SetRoot writes a root value.
*/
func (pbm *PagedBlockManager) SetRoot(root int, val uint64) error {
	pbm.mutex.Lock()
	defer pbm.mutex.Unlock()

	if pbm.readonly {
		return storage.NewStorageManagerError(storage.ErrReadonly,
			fmt.Sprintf("Set root %v", root), pbm.Name())
	} else if root < 0 || root >= pbm.header.Roots() {
		return storage.NewStorageManagerError(storage.ErrHeader,
			fmt.Sprintf("Root %v does not exist", root), pbm.Name())
	}

	pbm.header.SetRoot(root, val)

	return nil
}

/*
BlockCount returns the number of blocks which were ever allocated (including
free blocks and the header).
*/
func (pbm *PagedBlockManager) BlockCount() uint64 {
	pbm.mutex.Lock()
	defer pbm.mutex.Unlock()

	return pbm.header.NextBlock()
}

/*
FreeCount returns the number of blocks in the free list.
*/
func (pbm *PagedBlockManager) FreeCount() uint64 {
	pbm.mutex.Lock()
	defer pbm.mutex.Unlock()

	return pbm.header.FreeCount()
}

/*
FreeList returns the first block of the free list.
*/
func (pbm *PagedBlockManager) FreeList() uint64 {
	pbm.mutex.Lock()
	defer pbm.mutex.Unlock()

	return pbm.header.FreeList()
}

/*
CheckFreeList walks the free list and compares its length with the free
count of the header.
*/
func (pbm *PagedBlockManager) CheckFreeList() error {
	count, err := CountPages(pbm, pbm.FreeList())
	if err != nil {
		return err
	}

	if expected := pbm.FreeCount(); uint64(count) != expected {
		return storage.NewStorageManagerError(storage.ErrHeader,
			fmt.Sprintf("Free list has %v pages instead of %v", count, expected), pbm.Name())
	}

	return nil
}

/*
InUse returns the number of checked out blocks.
*/
func (pbm *PagedBlockManager) InUse() int {
	pbm.mutex.Lock()
	defer pbm.mutex.Unlock()

	return len(pbm.inUse)
}

/*
Allocate allocates a new block of a given page type. Blocks from the free
list are reused before the file is extended.
*/
func (pbm *PagedBlockManager) Allocate(pagetype int16) (*file.Block, error) {
	pbm.mutex.Lock()
	defer pbm.mutex.Unlock()

	if pbm.readonly {
		return nil, storage.NewStorageManagerError(storage.ErrReadonly,
			"Allocate", pbm.Name())
	}

	var b *file.Block
	var err error

	if id := pbm.header.FreeList(); id != 0 {

		if b, err = pbm.fetchBlock(id); err != nil {
			return nil, err
		}

		pbm.header.SetFreeList(view.GetPageView(b).NextPage())
		pbm.header.SetFreeCount(pbm.header.FreeCount() - 1)

	} else {
		id = pbm.header.NextBlock()

		b = file.NewBlock(id, make([]byte, pbm.store.BlockSize()))

		pbm.header.SetNextBlock(id + 1)
	}

	b.ClearData()
	view.NewPageView(b, pagetype)

	pbm.inUse[b.ID()] = &checkout{b, 1, true}

	return b, nil
}

/*
Free returns a block to the free list.
*/
func (pbm *PagedBlockManager) Free(id uint64) error {
	pbm.mutex.Lock()
	defer pbm.mutex.Unlock()

	if pbm.readonly {
		return storage.NewStorageManagerError(storage.ErrReadonly,
			fmt.Sprintf("Free block %v", id), pbm.Name())
	} else if id == 0 || id >= pbm.header.NextBlock() {
		return storage.NewStorageManagerError(storage.ErrFreeBlock,
			fmt.Sprintf("Block %v was not allocated", id), pbm.Name())
	} else if _, ok := pbm.inUse[id]; ok {
		return storage.NewStorageManagerError(storage.ErrFreeBlock,
			fmt.Sprintf("Block %v is in use", id), pbm.Name())
	}

	b, err := pbm.fetchBlock(id)
	if err != nil {
		return err
	}

	if !view.IsPageView(b) || view.GetPageView(b).Type() == view.TypeFreePage {
		return storage.NewStorageManagerError(storage.ErrFreeBlock,
			fmt.Sprintf("Block %v is not an allocated page", id), pbm.Name())
	}

	// Freed blocks do not keep any data

	b.ClearData()

	pv := view.NewPageView(b, view.TypeFreePage)
	pv.SetNextPage(pbm.header.FreeList())

	pbm.header.SetFreeList(id)
	pbm.header.SetFreeCount(pbm.header.FreeCount() + 1)

	pbm.dirty[id] = b

	return nil
}

/*
GetRead checks out a block for reading.
*/
func (pbm *PagedBlockManager) GetRead(id uint64) (*file.Block, error) {
	return pbm.get(id, false)
}

/*
GetWrite checks out a block for writing.
*/
func (pbm *PagedBlockManager) GetWrite(id uint64) (*file.Block, error) {
	if pbm.readonly {
		return nil, storage.NewStorageManagerError(storage.ErrReadonly,
			fmt.Sprintf("Write access to block %v", id), pbm.Name())
	}
	return pbm.get(id, true)
}

/*
get checks out a block. A block which is already checked out is returned
again.
*/
func (pbm *PagedBlockManager) get(id uint64, write bool) (*file.Block, error) {
	pbm.mutex.Lock()
	defer pbm.mutex.Unlock()

	if id == 0 || id >= pbm.header.NextBlock() {
		return nil, storage.NewStorageManagerError(storage.ErrBlockNotFound,
			fmt.Sprint(id), pbm.Name())
	}

	if co, ok := pbm.inUse[id]; ok {
		co.refs++
		co.write = co.write || write
		return co.block, nil
	}

	b, err := pbm.fetchBlock(id)
	if err != nil {
		return nil, err
	}

	pbm.inUse[id] = &checkout{b, 1, write}

	return b, nil
}

/*
fetchBlock returns a block either from the dirty blocks or from the
underlying block store.
*/
func (pbm *PagedBlockManager) fetchBlock(id uint64) (*file.Block, error) {
	if b, ok := pbm.dirty[id]; ok {
		return b, nil
	}

	b := file.NewBlock(id, make([]byte, pbm.store.BlockSize()))

	if err := pbm.store.ReadBlock(b); err != nil {
		return nil, err
	}

	return b, nil
}

/*
Release releases a checked out block. Changed blocks are kept until the next
Sync. Releasing a block which is not checked out or releasing a changed block
which was only checked out for reading causes a panic.
*/
func (pbm *PagedBlockManager) Release(b *file.Block) {
	pbm.mutex.Lock()
	defer pbm.mutex.Unlock()

	co, ok := pbm.inUse[b.ID()]

	errorutil.AssertTrue(ok && co.block == b,
		fmt.Sprintf("Block %v was not checked out from %v", b.ID(), pbm.Name()))

	if b.Dirty() {
		_, wasDirty := pbm.dirty[b.ID()]

		errorutil.AssertTrue(co.write || wasDirty,
			fmt.Sprintf("Block %v was changed without write access", b.ID()))

		pbm.dirty[b.ID()] = b
	}

	if co.refs--; co.refs == 0 {
		delete(pbm.inUse, b.ID())
	}
}

/*
Sync writes all changed blocks and the header to the underlying block store
and syncs it. Changed blocks which are still checked out are written as well.
*/
func (pbm *PagedBlockManager) Sync() error {
	pbm.mutex.Lock()
	defer pbm.mutex.Unlock()

	if pbm.readonly {
		return nil
	}

	for id, co := range pbm.inUse {
		if co.block.Dirty() {
			pbm.dirty[id] = co.block
		}
	}

	if len(pbm.dirty) == 0 && !pbm.hblock.Dirty() {
		return nil
	}

	ids := make([]uint64, 0, len(pbm.dirty))
	for id := range pbm.dirty {
		ids = append(ids, id)
	}
	sortutil.UInt64s(ids)

	for _, id := range ids {
		b := pbm.dirty[id]

		if err := pbm.store.WriteBlock(b); err != nil {
			return err
		}

		b.ClearDirty()
		delete(pbm.dirty, id)
	}

	if pbm.hblock.Dirty() {
		if err := pbm.store.WriteBlock(pbm.hblock); err != nil {
			return err
		}
		pbm.hblock.ClearDirty()
	}

	return pbm.store.Sync()
}

/*
Close syncs all changes and closes the block manager. The underlying block
store stays open. Returns an error if blocks are still checked out.
*/
func (pbm *PagedBlockManager) Close() error {
	if n := pbm.InUse(); n > 0 {
		return storage.NewStorageManagerError(storage.ErrInUse,
			fmt.Sprintf("%v blocks", n), pbm.Name())
	}

	return pbm.Sync()
}

/*
String returns a string representation of this block manager.
*/
func (pbm *PagedBlockManager) String() string {
	pbm.mutex.Lock()
	defer pbm.mutex.Unlock()

	buf := new(bytes.Buffer)

	buf.WriteString(fmt.Sprintf("PagedBlockManager: %v (readonly:%v blocks:%v free:%v)\n",
		pbm.store.Name(), pbm.readonly, pbm.header.NextBlock(), pbm.header.FreeCount()))

	ids := make([]uint64, 0, len(pbm.inUse))
	for id := range pbm.inUse {
		ids = append(ids, id)
	}
	sortutil.UInt64s(ids)

	buf.WriteString(fmt.Sprintf("In use: %v\n", ids))

	ids = make([]uint64, 0, len(pbm.dirty))
	for id := range pbm.dirty {
		ids = append(ids, id)
	}
	sortutil.UInt64s(ids)

	buf.WriteString(fmt.Sprintf("Dirty: %v\n", ids))

	return buf.String()
}
