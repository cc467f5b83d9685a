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
	"fmt"
	"sync"

	"devt.de/krotik/tdb/storage/file"
)

/*
CachedBlockStore data structure
*/
type CachedBlockStore struct {
	store      BlockStore             // Wrapped block store
	mutex      *sync.Mutex            // Mutex to protect list and map operations
	cache      map[uint64]*cacheEntry // Map of stored cacheEntry objects
	maxBlocks  int                    // Max number of blocks which should be held in the cache
	firstentry *cacheEntry            // Pointer to first entry in cacheEntry linked list
	lastentry  *cacheEntry            // Pointer to last entry in cacheEntry linked list

	Hits   uint64 // Number of reads which were served from the cache
	Misses uint64 // Number of reads which were passed to the wrapped store
}

/*
cacheEntry data structure
*/
type cacheEntry struct {
	id   uint64      // Block id of the entry
	data []byte      // Block image of the entry
	prev *cacheEntry // Pointer to previous entry in cacheEntry linked list
	next *cacheEntry // Pointer to next entry in cacheEntry linked list
}

/*
Pool for cache entries
*/
var entryPool = &sync.Pool{New: func() interface{} { return &cacheEntry{} }}

/*
NewCachedBlockStore creates a new cache wrapper for a BlockStore.
*/
func NewCachedBlockStore(store BlockStore, maxBlocks int) *CachedBlockStore {
	return &CachedBlockStore{store, &sync.Mutex{}, make(map[uint64]*cacheEntry),
		maxBlocks, nil, nil, 0, 0}
}

/*
Name returns the name of the wrapped block store.
*/
func (cbs *CachedBlockStore) Name() string {
	return cbs.store.Name()
}

/*
BlockSize returns the size of every block in this store.
*/
func (cbs *CachedBlockStore) BlockSize() int {
	return cbs.store.BlockSize()
}

/*
ReadBlock fills a given block with the stored data.
*/
func (cbs *CachedBlockStore) ReadBlock(b *file.Block) error {
	cbs.mutex.Lock()

	if entry, ok := cbs.cache[b.ID()]; ok && len(b.Data()) == len(entry.data) {
		copy(b.Data(), entry.data)
		b.SetPageView(nil)
		b.ClearDirty()

		cbs.llTouchEntry(entry)
		cbs.Hits++
		cbs.mutex.Unlock()

		return nil
	}

	cbs.Misses++
	cbs.mutex.Unlock()

	if err := cbs.store.ReadBlock(b); err != nil {
		return err
	}

	cbs.mutex.Lock()
	defer cbs.mutex.Unlock()

	cbs.putInCache(b)

	return nil
}

/*
WriteBlock stores the data of a given block. The cache is updated only if the
wrapped store accepted the data.
*/
func (cbs *CachedBlockStore) WriteBlock(b *file.Block) error {
	err := cbs.store.WriteBlock(b)

	cbs.mutex.Lock()
	defer cbs.mutex.Unlock()

	if err != nil {

		// The state of the block in the wrapped store is unknown

		if entry, ok := cbs.cache[b.ID()]; ok {
			delete(cbs.cache, entry.id)
			cbs.llRemoveEntry(entry)
			entryPool.Put(entry)
		}

		return err
	}

	cbs.putInCache(b)

	return nil
}

/*
Sync syncs the wrapped block store.
*/
func (cbs *CachedBlockStore) Sync() error {
	return cbs.store.Sync()
}

/*
Close empties the cache and closes the wrapped block store.
*/
func (cbs *CachedBlockStore) Close() error {
	cbs.Clear()
	return cbs.store.Close()
}

/*
Clear empties the cache.
*/
func (cbs *CachedBlockStore) Clear() {
	cbs.mutex.Lock()
	defer cbs.mutex.Unlock()

	cbs.cache = make(map[uint64]*cacheEntry)
	cbs.firstentry = nil
	cbs.lastentry = nil
}

/*
Size returns the number of blocks in the cache.
*/
func (cbs *CachedBlockStore) Size() int {
	cbs.mutex.Lock()
	defer cbs.mutex.Unlock()

	return len(cbs.cache)
}

/*
String returns a string representation of this block store.
*/
func (cbs *CachedBlockStore) String() string {
	cbs.mutex.Lock()
	defer cbs.mutex.Unlock()

	return fmt.Sprintf("CachedBlockStore: %v (size:%v max:%v hits:%v misses:%v)",
		cbs.store.Name(), len(cbs.cache), cbs.maxBlocks, cbs.Hits, cbs.Misses)
}

/*
putInCache stores a copy of the data of a given block.
*/
func (cbs *CachedBlockStore) putInCache(b *file.Block) {
	if cbs.maxBlocks <= 0 {
		return
	}

	entry, ok := cbs.cache[b.ID()]

	if !ok {

		// Get an entry from the pool or recycle an entry from the cacheEntry
		// linked list if the list is full

		if len(cbs.cache) >= cbs.maxBlocks {
			entry = cbs.removeOldestFromCache()
		} else {
			entry = entryPool.Get().(*cacheEntry)
		}

		entry.id = b.ID()
		cbs.llAppendEntry(entry)
		cbs.cache[entry.id] = entry

	} else {
		cbs.llTouchEntry(entry)
	}

	if len(entry.data) != len(b.Data()) {
		entry.data = make([]byte, len(b.Data()))
	}

	copy(entry.data, b.Data())
}

/*
removeOldestFromCache removes the oldest entry from the cache and return it.
*/
func (cbs *CachedBlockStore) removeOldestFromCache() *cacheEntry {
	entry := cbs.firstentry

	// If no entries were stored yet just return an entry from the pool

	if entry == nil {
		return entryPool.Get().(*cacheEntry)
	}

	cbs.llRemoveEntry(entry)

	delete(cbs.cache, entry.id)

	return entry
}

/*
llTouchEntry puts an entry to the last position of the cacheEntry linked list.
Calling llTouchEntry on all requested items ensures that the oldest used
entry is at the beginning of the list.
*/
func (cbs *CachedBlockStore) llTouchEntry(entry *cacheEntry) {
	if cbs.lastentry == entry {
		return
	}

	cbs.llRemoveEntry(entry)
	cbs.llAppendEntry(entry)
}

/*
llAppendEntry appends a cacheEntry to the end of the cacheEntry linked list.
*/
func (cbs *CachedBlockStore) llAppendEntry(entry *cacheEntry) {
	if cbs.firstentry == nil {
		cbs.firstentry = entry
		cbs.lastentry = entry
		entry.prev = nil
	} else {
		cbs.lastentry.next = entry
		entry.prev = cbs.lastentry
		cbs.lastentry = entry
	}
	entry.next = nil
}

/*
llRemoveEntry removes a cacheEntry from the cacheEntry linked list.
*/
func (cbs *CachedBlockStore) llRemoveEntry(entry *cacheEntry) {
	if entry == cbs.firstentry {
		cbs.firstentry = entry.next
	}
	if cbs.lastentry == entry {
		cbs.lastentry = entry.prev
	}

	if entry.prev != nil {
		entry.prev.next = entry.next
	}
	if entry.next != nil {
		entry.next.prev = entry.prev
	}

	entry.prev = nil
	entry.next = nil
}
