/*
 * TDB
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package btree

import (
	"bytes"

	"devt.de/krotik/tdb/record"
)

/*
Iterator data structure. An iterator walks the leaf chain and works on copies
of the leaf records. The tree should not be modified while it is iterated.
*/
type Iterator struct {
	tree      *BPlusTree           // Tree which is iterated
	min       []byte               // Lowest key (inclusive, nil for no lower bound)
	max       []byte               // Highest key (exclusive, nil for no upper bound)
	recs      *record.RecordBuffer // Copy of the records of the current leaf
	pos       int                  // Position in the current leaf
	next      uint64               // Next leaf (0 if there is none)
	LastError error                // Last encountered error
}

/*
Iterator returns an iterator over all records of the tree.
*/
func (t *BPlusTree) Iterator() (*Iterator, error) {
	return t.IteratorRange(record.Record{}, record.Record{})
}

/*
IteratorRange returns an iterator over all records with a key in the range
[min, max). Nil records stand for an open bound.
*/
func (t *BPlusTree) IteratorRange(min record.Record, max record.Record) (*Iterator, error) {
	if err := t.checkOpen(); err != nil {
		return nil, err
	}

	it := &Iterator{tree: t}

	if !min.IsNil() {
		key, err := t.lookupKey(min)
		if err != nil {
			return nil, err
		}
		it.min = append([]byte(nil), key...)
	}

	if !max.IsNil() {
		key, err := t.lookupKey(max)
		if err != nil {
			return nil, err
		}
		it.max = append([]byte(nil), key...)
	}

	return it, it.Reset()
}

/*
Reset positions the iterator at the start of its range again.
*/
func (it *Iterator) Reset() error {
	it.recs, it.pos, it.next, it.LastError = nil, 0, 0, nil

	t := it.tree

	if err := t.checkOpen(); err != nil || t.root == 0 {
		it.LastError = err
		return err
	}

	var n *node
	var err error

	if it.min == nil {
		n, err = t.edgeLeaf(true)
	} else {
		n, err = t.findLeaf(it.min)
	}

	if err != nil {
		it.LastError = err
		return err
	}

	it.load(n)

	if it.min != nil {
		if it.pos = it.recs.FindKey(it.min); it.pos < 0 {
			it.pos = -it.pos - 1
		}
	}

	return nil
}

/*
load copies the records of a given leaf and releases it.
*/
func (it *Iterator) load(n *node) {
	it.recs = n.recs.Duplicate()
	it.pos = 0
	it.next = n.next()
	it.tree.release(n)
}

/*
HasNext returns if there is a next record.
*/
func (it *Iterator) HasNext() bool {
	if it.LastError != nil || it.recs == nil {
		return false
	}

	for it.pos >= it.recs.Size() {
		if it.next == 0 {
			return false
		}

		n, err := it.tree.getNode(it.next, false)
		if err != nil {
			it.LastError = err
			return false
		} else if !n.leaf {
			it.tree.release(n)
			it.LastError = newTreeError(ErrCorrupt, "Leaf chain points to a branch")
			return false
		}

		it.load(n)
	}

	if it.max != nil {
		key, _ := it.recs.GetKey(it.pos)
		return bytes.Compare(key, it.max) < 0
	}

	return true
}

/*
Next returns the next record.
*/
func (it *Iterator) Next() (record.Record, error) {
	if !it.HasNext() {
		if it.LastError != nil {
			return record.Record{}, it.LastError
		}
		return record.Record{}, newTreeError(ErrNoMoreItems, "")
	}

	r, err := it.recs.Get(it.pos)
	it.pos++

	return r, err
}

/*
CopyIndex adds all records of a source tree to a destination tree. An
optional transform function can change each record before it is added (e.g.
to reorder a composite key). Returns the number of copied records.
*/
func CopyIndex(src *BPlusTree, dst *BPlusTree, transform func(record.Record) (record.Record, error)) (int, error) {
	it, err := src.Iterator()
	if err != nil {
		return 0, err
	}

	count := 0

	for it.HasNext() {
		r, err := it.Next()

		if err == nil && transform != nil {
			r, err = transform(r)
		}

		if err == nil {
			_, err = dst.Add(r)
		}

		if err != nil {
			return count, err
		}

		count++
	}

	return count, it.LastError
}
