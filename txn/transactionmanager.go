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
	"path/filepath"
	"sync"

	"devt.de/krotik/common/errorutil"
	"devt.de/krotik/common/logutil"
	"devt.de/krotik/common/stringutil"
	"devt.de/krotik/tdb/storage"
	"devt.de/krotik/tdb/storage/file"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

/*
TransactionManager data structure
*/
type TransactionManager struct {
	dir           string                     // Directory of journals and commit marker
	logger        logutil.Logger             // Logger
	resources     map[string]Resource        // Registered resources
	order         []string                   // Registration order of resources
	lastCommitted uint64                     // Sequence number of the last commit
	active        map[uuid.UUID]*Transaction // Active transactions
	broken        error                      // Error which made the manager unusable
	closed        bool                       // Flag if the manager was closed
	rwlock        *sync.RWMutex              // Shared by readers, exclusive for commit apply
	writer        *sync.Mutex                // Serializes write transactions
	lock          *sync.Mutex                // Protects the fields of the manager
}

/*
NewTransactionManager creates a new transaction manager which keeps its
journals and commit marker in a given directory.
*/
func NewTransactionManager(dir string, config Config) (*TransactionManager, error) {
	seq, err := readMarker(filepath.Join(dir, MarkerFile))
	if err != nil {
		return nil, err
	}

	logger := config.Logger
	if logger == nil {
		logger = logutil.GetLogger("tdb.txn")
	}

	return &TransactionManager{dir, logger, make(map[string]Resource), nil, seq,
		make(map[uuid.UUID]*Transaction), nil, false, &sync.RWMutex{},
		&sync.Mutex{}, &sync.Mutex{}}, nil
}

/*
RegisterStore registers a block store. The undo journal of the store is kept
in the directory of the manager under the given name.
*/
func (tm *TransactionManager) RegisterStore(name string, store storage.BlockStore) error {
	tm.lock.Lock()
	_, ok := tm.resources[name]
	tm.lock.Unlock()

	if ok {
		return newTransactionError(ErrDuplicateResource, name)
	}

	journal, err := file.NewJournal(filepath.Join(tm.dir, name))
	if err != nil {
		return err
	}

	return tm.RegisterResource(&blockResource{name, store, journal, tm.logger})
}

/*
RegisterResource registers a transactional resource.
*/
func (tm *TransactionManager) RegisterResource(res Resource) error {
	tm.lock.Lock()
	defer tm.lock.Unlock()

	if _, ok := tm.resources[res.Name()]; ok {
		return newTransactionError(ErrDuplicateResource, res.Name())
	}

	tm.resources[res.Name()] = res
	tm.order = append(tm.order, res.Name())

	return nil
}

/*
Resources returns the names of all registered resources in registration
order.
*/
func (tm *TransactionManager) Resources() []string {
	tm.lock.Lock()
	defer tm.lock.Unlock()

	return append([]string(nil), tm.order...)
}

/*
resource returns a registered resource.
*/
func (tm *TransactionManager) resource(name string) (Resource, int, bool) {
	tm.lock.Lock()
	defer tm.lock.Unlock()

	res, ok := tm.resources[name]
	if !ok {
		return nil, -1, false
	}

	for i, n := range tm.order {
		if n == name {
			return res, i, true
		}
	}

	return res, -1, true
}

/*
Recover undoes the changes of all uncommitted transactions in all registered
resources. Should be called once after all resources were registered and
before the first transaction starts.
*/
func (tm *TransactionManager) Recover() error {
	tm.writer.Lock()
	defer tm.writer.Unlock()

	ce := errorutil.NewCompositeError()
	restored := 0

	for _, name := range tm.Resources() {
		res, _, _ := tm.resource(name)

		n, err := res.Recover(tm.LastCommitted())
		if err != nil {
			ce.Add(errors.Wrapf(err, "Recovery of %v failed", name))
		}

		restored += n
	}

	if ce.HasErrors() {
		return ce
	}

	if restored > 0 {
		tm.logger.Info(fmt.Sprintf("Recovery restored %v change%v", restored,
			stringutil.Plural(restored)))
	}

	return nil
}

/*
LastCommitted returns the sequence number of the last committed transaction.
*/
func (tm *TransactionManager) LastCommitted() uint64 {
	tm.lock.Lock()
	defer tm.lock.Unlock()

	return tm.lastCommitted
}

/*
Active returns the number of active transactions.
*/
func (tm *TransactionManager) Active() int {
	tm.lock.Lock()
	defer tm.lock.Unlock()

	return len(tm.active)
}

/*
checkUsable returns an error if no new transaction can be started.
*/
func (tm *TransactionManager) checkUsable() error {
	tm.lock.Lock()
	defer tm.lock.Unlock()

	if tm.closed {
		return newTransactionError(ErrClosed, "")
	} else if tm.broken != nil {
		return tm.broken
	}

	return nil
}

/*
Begin starts a new transaction. A write transaction waits until the current
write transaction has finished. Read transactions block the commit of a write
transaction so a goroutine should not hold a read transaction while it
commits a write transaction.
*/
func (tm *TransactionManager) Begin(mode Mode) (*Transaction, error) {
	if err := tm.checkUsable(); err != nil {
		return nil, err
	}

	if mode == ModeWrite {
		tm.writer.Lock()
	} else {
		tm.rwlock.RLock()
	}

	// The manager may have become unusable while waiting

	if err := tm.checkUsable(); err != nil {
		tm.unlock(mode)
		return nil, err
	}

	tm.lock.Lock()
	defer tm.lock.Unlock()

	seq := tm.lastCommitted
	if mode == ModeWrite {
		seq++
	}

	tx := &Transaction{uuid.New(), tm, seq, mode, StateActive,
		make(map[string]Component), make(map[string]int), nil}

	tm.active[tx.id] = tx

	tm.logger.Debug("Begin ", tx)

	return tx, nil
}

/*
unlock releases the locks of a transaction with a given mode.
*/
func (tm *TransactionManager) unlock(mode Mode) {
	if mode == ModeWrite {
		tm.writer.Unlock()
	} else {
		tm.rwlock.RUnlock()
	}
}

/*
end removes a transaction from the active transactions.
*/
func (tm *TransactionManager) end(tx *Transaction) {
	tm.lock.Lock()
	delete(tm.active, tx.id)
	tm.lock.Unlock()

	tm.unlock(tx.mode)
}

/*
commit runs the commit protocol for a write transaction.
*/
func (tm *TransactionManager) commit(tx *Transaction, components []Component) error {

	// Move pending changes into the transaction views

	for _, c := range components {
		if f, ok := c.(Flusher); ok {
			if err := f.Flush(); err != nil {
				return tm.failCommit(tx, components, errors.Wrapf(err, "Flush of %v failed", c.Name()))
			}
		}
	}

	tm.rwlock.Lock()
	defer tm.rwlock.Unlock()

	for _, c := range components {
		if err := c.Prepare(tx.seq); err != nil {
			return tm.failCommit(tx, components, errors.Wrapf(err, "Prepare of %v failed", c.Name()))
		}
	}

	for _, c := range components {
		if err := c.Apply(); err != nil {
			return tm.failCommit(tx, components, errors.Wrapf(err, "Apply of %v failed", c.Name()))
		}
	}

	if err := writeMarker(filepath.Join(tm.dir, MarkerFile), tx.seq); err != nil {
		return tm.failCommit(tx, components, err)
	}

	tm.lock.Lock()
	tm.lastCommitted = tx.seq
	tm.lock.Unlock()

	// The transaction is durable - stale undo information is removed on the
	// next recovery if it cannot be removed now

	for _, c := range components {
		if err := c.Finish(); err != nil {
			tm.logger.Warning(fmt.Sprintf("Could not finish %v for %v: %v", c.Name(), tx, err))
		}
	}

	return nil
}

/*
failCommit undoes all components after a failed commit.
*/
func (tm *TransactionManager) failCommit(tx *Transaction, components []Component, cause error) error {
	ce := errorutil.NewCompositeError()

	for _, c := range components {
		if err := c.Undo(); err != nil {
			ce.Add(errors.Wrapf(err, "Undo of %v failed", c.Name()))
		}
	}

	if ce.HasErrors() {
		err := errors.Wrapf(newTransactionError(ErrUnrecoverable,
			fmt.Sprintf("%v - %v", cause, ce)), "Commit of %v", tx)

		tm.lock.Lock()
		tm.broken = err
		tm.lock.Unlock()

		tm.logger.Error(err.Error())

		return err
	}

	return errors.Wrapf(newTransactionError(ErrCommitFailed, cause.Error()), "Commit of %v", tx)
}

/*
Close closes all registered resources. Fails if there are active
transactions.
*/
func (tm *TransactionManager) Close() error {
	tm.lock.Lock()
	defer tm.lock.Unlock()

	if tm.closed {
		return newTransactionError(ErrClosed, "")
	} else if n := len(tm.active); n > 0 {
		return newTransactionError(ErrInUse, fmt.Sprintf("%v transaction%v", n, stringutil.Plural(n)))
	}

	tm.closed = true

	ce := errorutil.NewCompositeError()

	for _, name := range tm.order {
		if err := tm.resources[name].Close(); err != nil {
			ce.Add(err)
		}
	}

	if ce.HasErrors() {
		return ce
	}

	return nil
}

/*
String returns a string representation of this transaction manager.
*/
func (tm *TransactionManager) String() string {
	tm.lock.Lock()
	defer tm.lock.Unlock()

	return fmt.Sprintf("TransactionManager: %v (resources:%v last committed:%v active:%v)",
		tm.dir, tm.order, tm.lastCommitted, len(tm.active))
}
