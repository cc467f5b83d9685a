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

	"devt.de/krotik/common/errorutil"
	"devt.de/krotik/common/logutil"
	"devt.de/krotik/tdb/storage"
	"devt.de/krotik/tdb/storage/file"
	"devt.de/krotik/tdb/storage/paging"
)

/*
Component is the part of a transaction which handles one resource. The
transaction manager calls the methods of all components of a write
transaction in the following order:

Commit: Prepare (all components), Apply (all components), Finish (all
components after the commit marker was written).

Failed commit: Undo (all components).

Abort: Abort (all components).
*/
type Component interface {

	/*
		Name returns the name of the resource of this component.
	*/
	Name() string

	/*
		Prepare writes the undo information of the component to disk. After
		Prepare returned the component must be able to undo any change which
		Apply may make.
	*/
	Prepare(seq uint64) error

	/*
		Apply writes all changes of the component to its resource.
	*/
	Apply() error

	/*
		Finish removes the undo information after a successful commit.
	*/
	Finish() error

	/*
		Abort discards all changes of the component. Nothing was applied yet.
	*/
	Abort() error

	/*
		Undo restores the resource from its undo information.
	*/
	Undo() error
}

/*
Flusher is an optional interface for components which need to move pending
changes into their transaction view before the commit lock is taken.
*/
type Flusher interface {

	/*
		Flush moves pending changes into the transaction view.
	*/
	Flush() error
}

/*
Resource is a transactional resource which is registered with the
transaction manager.
*/
type Resource interface {

	/*
		Name returns the unique name of this resource.
	*/
	Name() string

	/*
		Begin creates the component of this resource for a given transaction.
	*/
	Begin(tx *Transaction) (Component, error)

	/*
		Recover undoes all changes of transactions with a sequence number
		above the last committed one and removes stale undo information.
		Returns the number of undone changes.
	*/
	Recover(lastCommitted uint64) (int, error)

	/*
		Close closes this resource.
	*/
	Close() error
}

/*
blockResource is a registered block store with its undo journal.
*/
type blockResource struct {
	name    string             // Name of the resource
	base    storage.BlockStore // Base block store
	journal *file.Journal      // Undo journal
	logger  logutil.Logger     // Logger for recovery
}

/*
Name returns the name of this resource.
*/
func (br *blockResource) Name() string {
	return br.name
}

/*
Begin creates a block component for a given transaction.
*/
func (br *blockResource) Begin(tx *Transaction) (Component, error) {
	var bc *blockComponent
	var err error

	if tx.Mode() == ModeWrite {

		// Entries of earlier transactions are left over if a commit could
		// not truncate the journal

		if !br.journal.Empty() {
			if err := br.journal.Truncate(); err != nil {
				return nil, err
			}
		}

		js := NewJournaledStore(br.base, br.journal, tx.Seq())
		bc = &blockComponent{res: br, store: js}
		bc.bm, err = paging.NewPagedBlockManager(js, false)
	} else {
		bc = &blockComponent{res: br}
		bc.bm, err = paging.NewPagedBlockManager(NewReadOnlyStore(br.base), true)
	}

	return bc, err
}

/*
Recover undoes all journal entries of uncommitted transactions and drops
the stale entries of committed ones.
*/
func (br *blockResource) Recover(lastCommitted uint64) (int, error) {
	if br.journal.Empty() {
		return 0, nil
	}

	n, err := undoJournal(br.base, br.journal, lastCommitted)

	if err == nil && n > 0 {
		br.logger.Info(fmt.Sprintf("Restored %v blocks of %v from uncommitted transactions after %v",
			n, br.name, lastCommitted))
	}

	return n, err
}

/*
Close closes the journal and the base store.
*/
func (br *blockResource) Close() error {
	ce := errorutil.NewCompositeError()

	if err := br.journal.Close(); err != nil {
		ce.Add(err)
	}
	if err := br.base.Close(); err != nil {
		ce.Add(err)
	}

	if ce.HasErrors() {
		return ce
	}

	return nil
}

/*
blockComponent is the component of a block resource in one transaction.
*/
type blockComponent struct {
	res   *blockResource            // Resource of this component
	store *JournaledStore           // Transaction view on the base store (nil for read)
	bm    *paging.PagedBlockManager // Block manager of the transaction
}

/*
Name returns the name of the resource of this component.
*/
func (bc *blockComponent) Name() string {
	return bc.res.name
}

/*
Flush writes all changed blocks of the block manager into the transaction
view.
*/
func (bc *blockComponent) Flush() error {
	if bc.store == nil {
		return nil
	}
	return bc.bm.Sync()
}

/*
Prepare writes the journal to disk.
*/
func (bc *blockComponent) Prepare(seq uint64) error {
	return bc.store.Prepare()
}

/*
Apply writes all changed blocks to the base store.
*/
func (bc *blockComponent) Apply() error {
	return bc.store.Apply()
}

/*
Finish truncates the journal.
*/
func (bc *blockComponent) Finish() error {
	bc.store.Discard()
	return bc.res.journal.Truncate()
}

/*
Abort drops all changes and truncates the journal.
*/
func (bc *blockComponent) Abort() error {
	if bc.store == nil {
		return nil
	}
	bc.store.Discard()
	return bc.res.journal.Truncate()
}

/*
Undo restores the base store from the journal.
*/
func (bc *blockComponent) Undo() error {
	bc.store.Discard()
	_, err := undoJournal(bc.res.base, bc.res.journal, bc.store.seq-1)
	return err
}
