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
	"bytes"
	"fmt"
	"sync"

	"devt.de/krotik/common/sortutil"
	"devt.de/krotik/tdb/storage/file"
)

/*
AccessReadError means the block will not be accessible via ReadBlock
*/
const AccessReadError = 1

/*
AccessWriteError means the block will not be accessible via WriteBlock
*/
const AccessWriteError = 2

/*
AccessReadWriteError means the block will neither be accessible via ReadBlock
nor via WriteBlock
*/
const AccessReadWriteError = 3

/*
MemoryBlockStore data structure
*/
type MemoryBlockStore struct {
	name      string            // Name of the block store
	blockSize int               // Size of every block
	data      map[uint64][]byte // Map of block data
	mutex     *sync.Mutex       // Mutex to protect map operations

	AccessMap map[uint64]int // Special map to simulate access issues
	SyncErr   error          // Error which is returned by Sync
	CloseErr  error          // Error which is returned by Close
	SyncCount int            // Number of Sync calls
}

/*
NewMemoryBlockStore creates a new MemoryBlockStore instance.
*/
func NewMemoryBlockStore(name string, blockSize int) *MemoryBlockStore {
	return &MemoryBlockStore{name, blockSize, make(map[uint64][]byte),
		&sync.Mutex{}, make(map[uint64]int), nil, nil, 0}
}

/*
Name returns the name of the block store.
*/
func (mbs *MemoryBlockStore) Name() string {
	return mbs.name
}

/*
BlockSize returns the size of every block in this store.
*/
func (mbs *MemoryBlockStore) BlockSize() int {
	return mbs.blockSize
}

/*
ReadBlock fills a given block with the stored data.
*/
func (mbs *MemoryBlockStore) ReadBlock(b *file.Block) error {
	mbs.mutex.Lock()
	defer mbs.mutex.Unlock()

	if a := mbs.AccessMap[b.ID()]; a == AccessReadError || a == AccessReadWriteError {
		return NewStorageManagerError(ErrIO, fmt.Sprintf("Read of block %v", b.ID()), mbs.name)
	} else if len(b.Data()) != mbs.blockSize {
		return file.NewStorageFileError(file.ErrBlockSize, fmt.Sprintf("Block %v has %v bytes",
			b.ID(), len(b.Data())), mbs.name)
	}

	if data, ok := mbs.data[b.ID()]; ok {
		copy(b.Data(), data)
	} else {
		for i := range b.Data() {
			b.Data()[i] = 0
		}
	}

	b.SetPageView(nil)
	b.ClearDirty()

	return nil
}

/*
WriteBlock stores the data of a given block.
*/
func (mbs *MemoryBlockStore) WriteBlock(b *file.Block) error {
	mbs.mutex.Lock()
	defer mbs.mutex.Unlock()

	if a := mbs.AccessMap[b.ID()]; a == AccessWriteError || a == AccessReadWriteError {
		return NewStorageManagerError(ErrIO, fmt.Sprintf("Write of block %v", b.ID()), mbs.name)
	} else if len(b.Data()) != mbs.blockSize {
		return file.NewStorageFileError(file.ErrBlockSize, fmt.Sprintf("Block %v has %v bytes",
			b.ID(), len(b.Data())), mbs.name)
	}

	data := make([]byte, mbs.blockSize)
	copy(data, b.Data())
	mbs.data[b.ID()] = data

	return nil
}

/*
Contains checks if a given block was ever written.
*/
func (mbs *MemoryBlockStore) Contains(id uint64) bool {
	mbs.mutex.Lock()
	defer mbs.mutex.Unlock()

	_, ok := mbs.data[id]
	return ok
}

/*
Sync does nothing except returning the SyncErr value.
*/
func (mbs *MemoryBlockStore) Sync() error {
	mbs.mutex.Lock()
	defer mbs.mutex.Unlock()

	mbs.SyncCount++

	return mbs.SyncErr
}

/*
Close does nothing except returning the CloseErr value.
*/
func (mbs *MemoryBlockStore) Close() error {
	return mbs.CloseErr
}

/*
String returns a string representation of this block store.
*/
func (mbs *MemoryBlockStore) String() string {
	mbs.mutex.Lock()
	defer mbs.mutex.Unlock()

	buf := new(bytes.Buffer)

	buf.WriteString(fmt.Sprintf("MemoryBlockStore %v\n", mbs.name))

	ids := make([]uint64, 0, len(mbs.data))
	for id := range mbs.data {
		ids = append(ids, id)
	}
	sortutil.UInt64s(ids)

	for _, id := range ids {
		buf.WriteString(fmt.Sprintf("%v - %v bytes\n", id, len(mbs.data[id])))
	}

	return buf.String()
}
