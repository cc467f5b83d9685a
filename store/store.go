/*
 * TDB
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"devt.de/krotik/common/datautil"
	"devt.de/krotik/common/fileutil"
	"devt.de/krotik/common/lockutil"
	"devt.de/krotik/common/logutil"
	"devt.de/krotik/tdb/nodetable"
	"devt.de/krotik/tdb/storage"
	"devt.de/krotik/tdb/storage/file"
	"devt.de/krotik/tdb/txn"
)

/*
Store data structure
*/
type Store struct {
	dir     string                     // Store directory
	options Options                    // Store options
	tm      *txn.TransactionManager    // Transaction manager of all files
	nodes   *nodetable.NodeTable       // Node table
	files   map[string]*file.BlockFile // Block files of all indexes
	lock    *lockutil.LockFile         // Lock file (nil if disabled)
	logger  logutil.Logger             // Logger
	closed  bool                       // Flag if the store was closed
	mutex   *sync.Mutex                // Protects the closed flag
}

/*
Open opens or creates a store in a given directory. Uncommitted changes of a
previous run are undone.
*/
func Open(dir string, options Options) (*Store, error) {
	logger := options.Logger
	if logger == nil {
		logger = logutil.GetLogger("tdb.store")
	}

	if res, _ := fileutil.PathExists(dir); !res {
		if options.ReadOnly {
			return nil, newStoreError(ErrOpening, fmt.Sprintf("Store %v does not exist", dir))
		} else if err := os.MkdirAll(dir, 0770); err != nil {
			return nil, newStoreError(ErrOpening, err.Error())
		}
	}

	s := &Store{dir, options, nil, nil, make(map[string]*file.BlockFile), nil,
		logger, false, &sync.Mutex{}}

	if options.LockFile && !options.ReadOnly {
		s.lock = lockutil.NewLockFile(filepath.Join(dir, LockFileName), options.LockInterval)

		if err := s.lock.Start(); err != nil {
			return nil, newStoreError(ErrOpening, fmt.Sprintf("Could not lock %v: %v", dir, err))
		}
	}

	if err := s.open(); err != nil {
		s.release()
		return nil, err
	}

	logger.Info(fmt.Sprintf("Opened store %v (last commit:%v)", dir, s.tm.LastCommitted()))

	return s, nil
}

/*
open opens all files of the store.
*/
func (s *Store) open() error {
	var err error

	if err = s.checkMeta(); err != nil {
		return err
	}

	if s.tm, err = txn.NewTransactionManager(s.dir, txn.Config{Logger: s.options.Logger}); err != nil {
		return err
	}

	nodesParams := s.options.Nodes
	if nodesParams.Logger == nil {
		nodesParams.Logger = s.options.Logger
	}

	nodeStore, err := s.openBlockStore(nodetable.IndexName)
	if err != nil {
		return err
	}

	if s.nodes, err = nodetable.NewNodeTable(s.tm, s.dir, nodeStore, nodesParams); err != nil {
		nodeStore.Close()
		return err
	}

	for _, ix := range indexes {
		bs, err := s.openBlockStore(ix.name)
		if err != nil {
			return err
		}

		if err = s.tm.RegisterStore(ix.name, bs); err != nil {
			bs.Close()
			return err
		}
	}

	return s.tm.Recover()
}

/*
checkMeta writes or checks the meta data of the store directory.
*/
func (s *Store) checkMeta() error {
	filename := filepath.Join(s.dir, MetaFileName)

	if res, _ := fileutil.PathExists(filename); !res {
		if s.options.ReadOnly {
			return newStoreError(ErrOpening, fmt.Sprintf("Missing %v", filename))
		}

		meta, err := datautil.NewPersistentStringMap(filename)
		if err == nil {
			meta.Data["version"] = FormatVersion
			meta.Data["blocksize"] = strconv.Itoa(s.options.BlockSize)
			err = meta.Flush()
		}

		return err
	}

	meta, err := datautil.LoadPersistentStringMap(filename)
	if err != nil {
		return err
	}

	if v := meta.Data["version"]; v != FormatVersion {
		return newStoreError(ErrOpening, fmt.Sprintf("Unsupported store version %q", v))
	}

	if bs := meta.Data["blocksize"]; bs != strconv.Itoa(s.options.BlockSize) {
		return newStoreError(ErrOpening, fmt.Sprintf("Store uses block size %v not %v",
			bs, s.options.BlockSize))
	}

	return nil
}

/*
openBlockStore opens the block file of an index.
*/
func (s *Store) openBlockStore(name string) (storage.BlockStore, error) {
	bf, err := file.NewBlockFile(filepath.Join(s.dir, name), s.options.BlockSize, s.options.ReadOnly)
	if err != nil {
		return nil, err
	}

	s.files[name] = bf

	if s.options.BlockCacheSize > 0 {
		return storage.NewCachedBlockStore(bf, s.options.BlockCacheSize), nil
	}

	return bf, nil
}

/*
release closes everything which was opened so far after a failed open.
*/
func (s *Store) release() {
	if s.nodes != nil {
		s.nodes.Close()
	}

	if s.tm != nil {
		s.tm.Close()
	}

	if s.lock != nil {
		s.lock.Finish()
	}
}

/*
Dir returns the directory of this store.
*/
func (s *Store) Dir() string {
	return s.dir
}

/*
TransactionManager returns the transaction manager of this store.
*/
func (s *Store) TransactionManager() *txn.TransactionManager {
	return s.tm
}

/*
NodeTable returns the node table of this store.
*/
func (s *Store) NodeTable() *nodetable.NodeTable {
	return s.nodes
}

/*
Begin starts a new transaction. There is only one write transaction at a
time. A goroutine must end its read transactions before it commits a write
transaction.
*/
func (s *Store) Begin(mode txn.Mode) (*Txn, error) {
	s.mutex.Lock()
	closed := s.closed
	s.mutex.Unlock()

	if closed {
		return nil, newStoreError(ErrClosed, s.dir)
	} else if mode == txn.ModeWrite && s.options.ReadOnly {
		return nil, newStoreError(ErrReadOnly, s.dir)
	}

	tx, err := s.tm.Begin(mode)
	if err != nil {
		return nil, err
	}

	t, err := newTxn(s, tx)
	if err != nil {
		tx.Abort()
		return nil, err
	}

	return t, nil
}

/*
Close closes this store. Fails if there are active transactions.
*/
func (s *Store) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed {
		return newStoreError(ErrClosed, s.dir)
	}

	if err := s.tm.Close(); err != nil {
		return err
	}

	s.closed = true
	s.nodes.Close()

	s.logger.Info(fmt.Sprintf("Closed store %v", s.dir))

	if s.lock != nil {
		return s.lock.Finish()
	}

	return nil
}

/*
String returns a string representation of this store.
*/
func (s *Store) String() string {
	return fmt.Sprintf("Store: %v (readonly:%v last commit:%v)", s.dir,
		s.options.ReadOnly, s.tm.LastCommitted())
}
