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

	"devt.de/krotik/common/errorutil"
	"devt.de/krotik/tdb/btree"
	"devt.de/krotik/tdb/nodetable"
	"devt.de/krotik/tdb/storage/paging"
	"devt.de/krotik/tdb/txn"
)

/*
Txn is a transaction on a store. A transaction is not safe for concurrent
use.
*/
type Txn struct {
	store   *Store             // Store of this transaction
	tx      *txn.Transaction   // Underlying transaction
	nodes   *nodetable.View    // Node table view
	indexes []*btree.BPlusTree // Triple indexes (in the order of indexes)
}

/*
newTxn creates the node table view and the index trees of a transaction.
*/
func newTxn(s *Store, tx *txn.Transaction) (*Txn, error) {
	nodes, err := s.nodes.Begin(tx)
	if err != nil {
		return nil, err
	}

	t := &Txn{s, tx, nodes, make([]*btree.BPlusTree, len(indexes))}

	for i, ix := range indexes {
		bm, err := tx.BlockManager(ix.name)
		if err != nil {
			return nil, err
		}

		t.indexes[i], err = btree.NewBPlusTree(bm, tripleFactory, btree.Params{
			LeafCapacity:   s.options.LeafCapacity,
			BranchCapacity: s.options.BranchCapacity,
			Duplicates:     s.options.Duplicates,
			ClearDeleted:   s.options.ClearDeleted,
			Logger:         s.options.Logger,
		})
		if err != nil {
			return nil, err
		}
	}

	return t, nil
}

/*
Transaction returns the underlying transaction.
*/
func (t *Txn) Transaction() *txn.Transaction {
	return t.tx
}

/*
Nodes returns the node table view of this transaction.
*/
func (t *Txn) Nodes() *nodetable.View {
	return t.nodes
}

/*
Add adds a triple. Returns false if the triple was already stored and the
duplicate policy of the store ignores duplicates.
*/
func (t *Txn) Add(s nodetable.Node, p nodetable.Node, o nodetable.Node) (bool, error) {
	var ids [3]nodetable.NodeID

	for i, n := range []nodetable.Node{s, p, o} {
		id, err := t.nodes.NodeIDForNode(n)
		if err != nil {
			return false, err
		}
		ids[i] = id
	}

	added, err := t.indexes[idxSPO].Add(indexes[idxSPO].key(ids))
	if err != nil || !added {
		return false, err
	}

	for i := idxPOS; i <= idxOSP; i++ {
		if _, err := t.indexes[i].Add(indexes[i].key(ids)); err != nil {
			return false, err
		}
	}

	return true, nil
}

/*
lookup returns the node ids of a triple. Returns false if one of the terms is
unknown.
*/
func (t *Txn) lookup(s nodetable.Node, p nodetable.Node, o nodetable.Node) ([3]nodetable.NodeID, bool, error) {
	var ids [3]nodetable.NodeID

	for i, n := range []nodetable.Node{s, p, o} {
		id, ok, err := t.nodes.GetNodeIDForNode(n)
		if err != nil || !ok {
			return ids, false, err
		}
		ids[i] = id
	}

	return ids, true, nil
}

/*
Delete removes a triple. Returns false if the triple was not stored. The
terms of a removed triple stay in the node table.
*/
func (t *Txn) Delete(s nodetable.Node, p nodetable.Node, o nodetable.Node) (bool, error) {
	ids, ok, err := t.lookup(s, p, o)
	if err != nil || !ok {
		return false, err
	}

	removed, err := t.indexes[idxSPO].Delete(indexes[idxSPO].key(ids))
	if err != nil || !removed {
		return false, err
	}

	for i := idxPOS; i <= idxOSP; i++ {
		if _, err := t.indexes[i].Delete(indexes[i].key(ids)); err != nil {
			return false, err
		}
	}

	return true, nil
}

/*
Contains checks if a triple is stored.
*/
func (t *Txn) Contains(s nodetable.Node, p nodetable.Node, o nodetable.Node) (bool, error) {
	ids, ok, err := t.lookup(s, p, o)
	if err != nil || !ok {
		return false, err
	}

	return t.indexes[idxSPO].Contains(indexes[idxSPO].key(ids))
}

/*
Find returns a cursor over all triples which match a pattern. A nil term
matches everything.
*/
func (t *Txn) Find(s *nodetable.Node, p *nodetable.Node, o *nodetable.Node) (*Cursor, error) {
	var ids [3]nodetable.NodeID
	var bound [3]bool

	for i, n := range []*nodetable.Node{s, p, o} {
		if n == nil {
			continue
		}

		id, ok, err := t.nodes.GetNodeIDForNode(*n)
		if err != nil {
			return nil, err
		} else if !ok {

			// An unknown term matches nothing

			return &Cursor{t, nil, indexes[idxSPO]}, nil
		}

		ids[i], bound[i] = id, true
	}

	i, prefixLen := chooseIndex(bound)
	min, max := scanRange(indexes[i], ids, prefixLen)

	it, err := t.indexes[i].IteratorRange(min, max)
	if err != nil {
		return nil, err
	}

	return &Cursor{t, it, indexes[i]}, nil
}

/*
Count returns the number of triples which match a pattern.
*/
func (t *Txn) Count(s *nodetable.Node, p *nodetable.Node, o *nodetable.Node) (int, error) {
	c, err := t.Find(s, p, o)
	if err != nil {
		return 0, err
	}

	return c.count()
}

/*
Commit commits this transaction.
*/
func (t *Txn) Commit() error {
	return t.tx.Commit()
}

/*
Abort discards all changes of this transaction.
*/
func (t *Txn) Abort() error {
	return t.tx.Abort()
}

/*
Check checks all index trees and compares the sizes of the triple indexes.
*/
func (t *Txn) Check() error {
	ce := errorutil.NewCompositeError()

	if err := t.nodes.Check(); err != nil {
		ce.Add(fmt.Errorf("%v: %v", nodetable.IndexName, err))
	}

	for _, name := range t.store.tm.Resources() {
		bm, err := t.tx.BlockManager(name)
		if err != nil {
			continue
		}

		if pbm, ok := bm.(*paging.PagedBlockManager); ok {
			if err := pbm.CheckFreeList(); err != nil {
				ce.Add(err)
			}
		}
	}

	sizes := make([]int, len(indexes))

	for i, tree := range t.indexes {
		if err := tree.Check(); err != nil {
			ce.Add(fmt.Errorf("%v: %v", indexes[i].name, err))
			continue
		}

		size, err := tree.Size()
		if err != nil {
			ce.Add(fmt.Errorf("%v: %v", indexes[i].name, err))
		}
		sizes[i] = size
	}

	if !ce.HasErrors() && (sizes[idxPOS] != sizes[idxSPO] || sizes[idxOSP] != sizes[idxSPO]) {
		ce.Add(newStoreError(ErrInconsistent, fmt.Sprintf("Index sizes %v", sizes)))
	}

	if ce.HasErrors() {
		return ce
	}

	return nil
}

/*
String returns a string representation of this transaction.
*/
func (t *Txn) String() string {
	return fmt.Sprintf("Txn: %v (%v)", t.store.dir, t.tx)
}

/*
Cursor iterates over the triples of a pattern.
*/
type Cursor struct {
	txn *Txn            // Transaction of this cursor
	it  *btree.Iterator // Iterator over the chosen index (nil if nothing matches)
	ix  index           // Chosen index
}

/*
HasNext returns if there is a next triple.
*/
func (c *Cursor) HasNext() bool {
	return c.it != nil && c.it.HasNext()
}

/*
Next returns the next triple.
*/
func (c *Cursor) Next() (Triple, error) {
	ids, err := c.NextIDs()
	if err != nil {
		return Triple{}, err
	}

	var nodes [3]nodetable.Node

	for i, id := range ids {
		if nodes[i], err = c.txn.nodes.NodeForNodeID(id); err != nil {
			return Triple{}, err
		}
	}

	return Triple{nodes[0], nodes[1], nodes[2]}, nil
}

/*
NextIDs returns the node ids of the next triple.
*/
func (c *Cursor) NextIDs() ([3]nodetable.NodeID, error) {
	if c.it == nil {
		return [3]nodetable.NodeID{}, btree.ErrNoMoreItems
	}

	r, err := c.it.Next()
	if err != nil {
		return [3]nodetable.NodeID{}, err
	}

	return c.ix.ids(r), nil
}

/*
count returns the number of remaining triples.
*/
func (c *Cursor) count() (int, error) {
	n := 0

	for c.HasNext() {
		if _, err := c.NextIDs(); err != nil {
			return n, err
		}
		n++
	}

	if c.it != nil {
		return n, c.it.LastError
	}

	return n, nil
}
