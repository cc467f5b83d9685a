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
	"sort"

	"devt.de/krotik/common/errorutil"
	"devt.de/krotik/tdb/storage"
	"github.com/google/uuid"
)

/*
Transaction data structure. A transaction is not safe for concurrent use.
*/
type Transaction struct {
	id         uuid.UUID            // Unique id for log correlation
	tm         *TransactionManager  // Manager of this transaction
	seq        uint64               // Sequence number
	mode       Mode                 // Access mode
	state      State                // Current state
	components map[string]Component // Components by resource name
	order      map[string]int       // Registration index of resource components
	adhoc      []Component          // Components which were added explicitly
}

/*
ID returns the unique id of this transaction.
*/
func (tx *Transaction) ID() uuid.UUID {
	return tx.id
}

/*
Seq returns the sequence number of this transaction. Write transactions have
the sequence number they will commit with. Read transactions have the
sequence number of the last commit they see.
*/
func (tx *Transaction) Seq() uint64 {
	return tx.seq
}

/*
Mode returns the access mode of this transaction.
*/
func (tx *Transaction) Mode() Mode {
	return tx.mode
}

/*
State returns the state of this transaction.
*/
func (tx *Transaction) State() State {
	return tx.state
}

/*
IsActive returns if the transaction is still active.
*/
func (tx *Transaction) IsActive() bool {
	return tx.state == StateActive
}

/*
checkActive returns an error if the transaction is not active.
*/
func (tx *Transaction) checkActive() error {
	if tx.state != StateActive {
		return newTransactionError(ErrNotActive, fmt.Sprintf("%v is %v", tx.id, tx.state))
	}
	return nil
}

/*
AddComponent adds a component to this transaction. Explicitly added
components are committed after all components of registered resources.
*/
func (tx *Transaction) AddComponent(c Component) error {
	if err := tx.checkActive(); err != nil {
		return err
	} else if tx.mode != ModeWrite {
		return newTransactionError(ErrReadOnly, fmt.Sprintf("Component %v", c.Name()))
	}

	tx.adhoc = append(tx.adhoc, c)

	return nil
}

/*
Resource returns the component of a registered resource. The component is
created on first access.
*/
func (tx *Transaction) Resource(name string) (Component, error) {
	if err := tx.checkActive(); err != nil {
		return nil, err
	}

	if c, ok := tx.components[name]; ok {
		return c, nil
	}

	res, idx, ok := tx.tm.resource(name)
	if !ok {
		return nil, newTransactionError(ErrMissingResource, name)
	}

	c, err := res.Begin(tx)
	if err != nil {
		return nil, err
	}

	tx.components[name] = c
	tx.order[name] = idx

	return c, nil
}

/*
BlockManager returns the block manager of a registered block store for this
transaction. The block manager of a read transaction rejects writes.
*/
func (tx *Transaction) BlockManager(name string) (storage.BlockManager, error) {
	c, err := tx.Resource(name)
	if err != nil {
		return nil, err
	}

	bc, ok := c.(*blockComponent)
	if !ok {
		return nil, newTransactionError(ErrMissingResource, fmt.Sprintf("%v is not a block store", name))
	}

	return bc.bm, nil
}

/*
sortedComponents returns all components in commit order.
*/
func (tx *Transaction) sortedComponents() []Component {
	names := make([]string, 0, len(tx.components))
	for name := range tx.components {
		names = append(names, name)
	}

	sort.Slice(names, func(i, j int) bool {
		return tx.order[names[i]] < tx.order[names[j]]
	})

	res := make([]Component, 0, len(names)+len(tx.adhoc))
	for _, name := range names {
		res = append(res, tx.components[name])
	}

	return append(res, tx.adhoc...)
}

/*
Commit commits this transaction. Committing a read transaction just ends it.
Committing a write transaction waits until all open read transactions have
ended. A goroutine which still holds a read transaction of the same manager
must end it before committing, otherwise the commit never returns.
*/
func (tx *Transaction) Commit() error {
	if err := tx.checkActive(); err != nil {
		return err
	}

	tx.state = StateCommitting

	var err error

	if tx.mode == ModeWrite {
		err = tx.tm.commit(tx, tx.sortedComponents())
	}

	if err != nil {
		tx.state = StateAborted
	} else {
		tx.state = StateCommitted
	}

	tx.tm.end(tx)

	tx.tm.logger.Debug("Commit ", tx)

	return err
}

/*
Abort discards all changes of this transaction. Aborting an aborted
transaction does nothing.
*/
func (tx *Transaction) Abort() error {
	if tx.state == StateAborted {
		return nil
	} else if err := tx.checkActive(); err != nil {
		return err
	}

	tx.state = StateAborting

	ce := errorutil.NewCompositeError()

	for _, c := range tx.sortedComponents() {
		if err := c.Abort(); err != nil {
			ce.Add(err)
		}
	}

	tx.state = StateAborted

	tx.tm.end(tx)

	tx.tm.logger.Debug("Abort ", tx)

	if ce.HasErrors() {
		return ce
	}

	return nil
}

/*
String returns a string representation of this transaction.
*/
func (tx *Transaction) String() string {
	return fmt.Sprintf("Transaction %v (seq:%v mode:%v state:%v)", tx.id, tx.seq, tx.mode, tx.state)
}
