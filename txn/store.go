/*
 * TDB
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package txn

import (
	"fmt"
	"sync"

	"devt.de/krotik/common/sortutil"
	"devt.de/krotik/tdb/storage"
	"devt.de/krotik/tdb/storage/file"
	"github.com/pkg/errors"
)

/*
JournaledStore data structure. A JournaledStore is the view of a write
transaction on a base block store. Written blocks are kept in memory until
Apply is called.
*/
type JournaledStore struct {
	base    storage.BlockStore // Base block store
	journal *file.Journal      // Undo journal of the base store
	seq     uint64             // Sequence number of the transaction
	pending map[uint64][]byte  // Changed blocks
	mutex   *sync.Mutex        // Mutex to protect the pending blocks
}

/*
NewJournaledStore creates a new JournaledStore for a transaction with a given
sequence number.
*/
func NewJournaledStore(base storage.BlockStore, journal *file.Journal, seq uint64) *JournaledStore {
	return &JournaledStore{base, journal, seq, make(map[uint64][]byte), &sync.Mutex{}}
}

/*
Name returns the name of the base store.
*/
func (js *JournaledStore) Name() string {
	return js.base.Name()
}

/*
BlockSize returns the size of every block.
*/
func (js *JournaledStore) BlockSize() int {
	return js.base.BlockSize()
}

/*
Pending returns the number of changed blocks.
*/
func (js *JournaledStore) Pending() int {
	js.mutex.Lock()
	defer js.mutex.Unlock()

	return len(js.pending)
}

/*
ReadBlock fills a given block. Changed blocks are returned before blocks of
the base store.
*/
func (js *JournaledStore) ReadBlock(b *file.Block) error {
	js.mutex.Lock()
	data, ok := js.pending[b.ID()]
	js.mutex.Unlock()

	if !ok {
		return js.base.ReadBlock(b)
	}

	if len(b.Data()) != len(data) {
		return file.NewStorageFileError(file.ErrBlockSize,
			fmt.Sprintf("Block %v", b.ID()), js.Name())
	}

	copy(b.Data(), data)
	b.SetPageView(nil)
	b.ClearDirty()

	return nil
}

/*
WriteBlock stores a changed block. The pre-image of the block is recorded in
the journal when the block is written for the first time.
*/
func (js *JournaledStore) WriteBlock(b *file.Block) error {
	js.mutex.Lock()
	defer js.mutex.Unlock()

	data, ok := js.pending[b.ID()]

	if !ok {
		pre := file.NewBlock(b.ID(), make([]byte, js.base.BlockSize()))

		if err := js.base.ReadBlock(pre); err != nil {
			return errors.Wrapf(err, "Could not read pre-image of block %v", b.ID())
		}

		if err := js.journal.Record(js.seq, b.ID(), pre.Data()); err != nil {
			return errors.Wrapf(err, "Could not record pre-image of block %v", b.ID())
		}

		data = make([]byte, len(b.Data()))
		js.pending[b.ID()] = data
	}

	copy(data, b.Data())

	return nil
}

/*
Prepare writes all recorded pre-images to disk.
*/
func (js *JournaledStore) Prepare() error {
	return js.journal.Sync()
}

/*
Apply writes all changed blocks (in ascending order) to the base store and
syncs it.
*/
func (js *JournaledStore) Apply() error {
	js.mutex.Lock()
	defer js.mutex.Unlock()

	ids := make([]uint64, 0, len(js.pending))
	for id := range js.pending {
		ids = append(ids, id)
	}
	sortutil.UInt64s(ids)

	for _, id := range ids {
		if err := js.base.WriteBlock(file.NewBlock(id, js.pending[id])); err != nil {
			return errors.Wrapf(err, "Could not write block %v to %v", id, js.Name())
		}
	}

	return errors.Wrapf(js.base.Sync(), "Could not sync %v", js.Name())
}

/*
Discard drops all changed blocks.
*/
func (js *JournaledStore) Discard() {
	js.mutex.Lock()
	defer js.mutex.Unlock()

	js.pending = make(map[uint64][]byte)
}

/*
Sync does nothing. Changed blocks are only written by Apply.
*/
func (js *JournaledStore) Sync() error {
	return nil
}

/*
Close does nothing. The base store is owned by the transaction manager.
*/
func (js *JournaledStore) Close() error {
	return nil
}

/*
String returns a string representation of this store.
*/
func (js *JournaledStore) String() string {
	return fmt.Sprintf("JournaledStore: %v (seq:%v pending:%v)", js.Name(), js.seq, js.Pending())
}

/*
ReadOnlyStore data structure. A ReadOnlyStore is the view of a read
transaction on a base block store.
*/
type ReadOnlyStore struct {
	base storage.BlockStore // Base block store
}

/*
NewReadOnlyStore creates a new ReadOnlyStore.
*/
func NewReadOnlyStore(base storage.BlockStore) *ReadOnlyStore {
	return &ReadOnlyStore{base}
}

/*
Name returns the name of the base store.
*/
func (rs *ReadOnlyStore) Name() string {
	return rs.base.Name()
}

/*
BlockSize returns the size of every block.
*/
func (rs *ReadOnlyStore) BlockSize() int {
	return rs.base.BlockSize()
}

/*
ReadBlock fills a given block from the base store.
*/
func (rs *ReadOnlyStore) ReadBlock(b *file.Block) error {
	return rs.base.ReadBlock(b)
}

/*
WriteBlock returns an error.
*/
func (rs *ReadOnlyStore) WriteBlock(b *file.Block) error {
	return newTransactionError(ErrReadOnly, fmt.Sprintf("Write of block %v to %v", b.ID(), rs.Name()))
}

/*
Sync does nothing.
*/
func (rs *ReadOnlyStore) Sync() error {
	return nil
}

/*
Close does nothing.
*/
func (rs *ReadOnlyStore) Close() error {
	return nil
}

/*
undoJournal writes all pre-images of transactions after a given sequence
number back to a base store (newest first), syncs the store and truncates the
journal. Entries of older transactions are stale and are dropped. Returns the
number of restored blocks.
*/
func undoJournal(base storage.BlockStore, journal *file.Journal, after uint64) (int, error) {
	entries, err := journal.Entries()
	if err != nil {
		return 0, errors.Wrapf(err, "Could not read journal %v", journal.Name())
	}

	n := 0

	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]

		if e.Seq <= after {
			continue
		}

		if err := base.WriteBlock(file.NewBlock(e.ID, e.Data)); err != nil {
			return 0, errors.Wrapf(err, "Could not restore block %v of %v", e.ID, base.Name())
		}

		n++
	}

	if n > 0 {
		if err := base.Sync(); err != nil {
			return 0, errors.Wrapf(err, "Could not sync %v", base.Name())
		}
	}

	return n, journal.Truncate()
}
