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
	"fmt"

	"devt.de/krotik/common/logutil"
	"devt.de/krotik/tdb/record"
	"devt.de/krotik/tdb/storage"
)

/*
BPlusTree data structure
*/
type BPlusTree struct {
	bm         storage.BlockManager  // Block manager which stores the nodes
	factory    *record.RecordFactory // Factory for leaf records
	keys       *record.RecordFactory // Factory for branch keys
	leafCap    int                   // Records per leaf
	branchCap  int                   // Keys per branch
	rootSlot   int                   // Root slot which holds the root node id
	root       uint64                // Root node id (0 for an empty tree)
	duplicates DuplicatePolicy       // Resolved duplicate policy
	clear      bool                  // Flag if unused slots should be zeroed
	closed     bool                  // Flag if the tree was closed
	logger     logutil.Logger        // Logger for structural changes
}

/*
split is the result of a node split which must be inserted into the parent.
*/
type split struct {
	key   record.Record // Separator key
	right uint64        // New right sibling
}

/*
NewBPlusTree opens a tree in a given block manager. The root node id is read
from the root slot of the block manager. The tree is empty if the slot is 0.
*/
func NewBPlusTree(bm storage.BlockManager, factory *record.RecordFactory, params Params) (*BPlusTree, error) {
	maxLeaf := MaxLeafCapacity(bm.BlockSize(), factory.RecordLength())
	maxBranch := MaxBranchCapacity(bm.BlockSize(), factory.KeyLength())

	leafCap, branchCap := params.LeafCapacity, params.BranchCapacity

	if leafCap == 0 {
		leafCap = maxLeaf
	}
	if branchCap == 0 {
		branchCap = maxBranch
	}

	if leafCap < MinLeafCapacity || leafCap > maxLeaf {
		return nil, newTreeError(ErrCapacityTooSmall,
			fmt.Sprintf("Leaf capacity %v not in [%v, %v]", leafCap, MinLeafCapacity, maxLeaf))
	} else if branchCap < MinBranchCapacity || branchCap > maxBranch {
		return nil, newTreeError(ErrCapacityTooSmall,
			fmt.Sprintf("Branch capacity %v not in [%v, %v]", branchCap, MinBranchCapacity, maxBranch))
	} else if params.RootSlot < 0 || params.RootSlot >= bm.Roots() {
		return nil, newTreeError(ErrCorrupt,
			fmt.Sprintf("Root slot %v not available in %v", params.RootSlot, bm.Name()))
	}

	duplicates := params.Duplicates
	if duplicates == DuplicateDefault {
		if factory.HasValue() {
			duplicates = DuplicateReplace
		} else {
			duplicates = DuplicateError
		}
	}

	logger := params.Logger
	if logger == nil {
		logger = logutil.GetLogger("tdb.btree")
	}

	return &BPlusTree{bm, factory, factory.KeyFactory(), leafCap, branchCap,
		params.RootSlot, bm.Root(params.RootSlot), duplicates, params.ClearDeleted,
		false, logger}, nil
}

/*
Factory returns the record factory of this tree.
*/
func (t *BPlusTree) Factory() *record.RecordFactory {
	return t.factory
}

/*
LeafCapacity returns the number of records per leaf.
*/
func (t *BPlusTree) LeafCapacity() int {
	return t.leafCap
}

/*
BranchCapacity returns the number of keys per branch.
*/
func (t *BPlusTree) BranchCapacity() int {
	return t.branchCap
}

/*
Root returns the id of the root node (0 for an empty tree).
*/
func (t *BPlusTree) Root() uint64 {
	return t.root
}

/*
leafMin returns the minimal number of records in a non-root leaf.
*/
func (t *BPlusTree) leafMin() int {
	return t.leafCap / 2
}

/*
branchMin returns the minimal number of keys in a non-root branch.
*/
func (t *BPlusTree) branchMin() int {
	return t.branchCap / 2
}

/*
minSize returns the minimal number of entries for a given non-root node.
*/
func (t *BPlusTree) minSize(n *node) int {
	if n.leaf {
		return t.leafMin()
	}
	return t.branchMin()
}

/*
checkOpen returns an error if the tree was closed.
*/
func (t *BPlusTree) checkOpen() error {
	if t.closed {
		return newTreeError(ErrClosed, "")
	}
	return nil
}

/*
lookupKey extracts the key of a given record or key record.
*/
func (t *BPlusTree) lookupKey(r record.Record) ([]byte, error) {
	if !t.factory.Accepts(r) && !t.keys.Accepts(r) {
		return nil, newTreeError(ErrRecordShape, fmt.Sprintf("Record %v does not fit %v", r, t.factory))
	}
	return r.Key(), nil
}

/*
setRoot changes the root node of this tree.
*/
func (t *BPlusTree) setRoot(id uint64) error {
	if err := t.bm.SetRoot(t.rootSlot, id); err != nil {
		return err
	}
	t.root = id
	return nil
}

/*
Find looks up the record with the key of a given record (or key record).
*/
func (t *BPlusTree) Find(r record.Record) (record.Record, bool, error) {
	if err := t.checkOpen(); err != nil {
		return record.Record{}, false, err
	}

	key, err := t.lookupKey(r)
	if err != nil || t.root == 0 {
		return record.Record{}, false, err
	}

	n, err := t.findLeaf(key)
	if err != nil {
		return record.Record{}, false, err
	}
	defer t.release(n)

	i := n.recs.FindKey(key)
	if i < 0 {
		return record.Record{}, false, nil
	}

	res, err := n.recs.Get(i)

	return res, err == nil, err
}

/*
Contains checks if the key of a given record is in the tree.
*/
func (t *BPlusTree) Contains(r record.Record) (bool, error) {
	_, ok, err := t.Find(r)
	return ok, err
}

/*
findLeaf returns the leaf which holds a given key. The leaf is checked out for
reading.
*/
func (t *BPlusTree) findLeaf(key []byte) (*node, error) {
	id := t.root

	for {
		n, err := t.getNode(id, false)
		if err != nil {
			return nil, err
		} else if n.leaf {
			return n, nil
		}

		id = n.child(n.childIndex(key))
		t.release(n)
	}
}

/*
edgeLeaf returns the leftmost or rightmost leaf. The leaf is checked out for
reading.
*/
func (t *BPlusTree) edgeLeaf(leftmost bool) (*node, error) {
	id := t.root

	for {
		n, err := t.getNode(id, false)
		if err != nil {
			return nil, err
		} else if n.leaf {
			return n, nil
		}

		if leftmost {
			id = n.child(0)
		} else {
			id = n.child(n.size())
		}
		t.release(n)
	}
}

/*
MinKey returns the record with the lowest key.
*/
func (t *BPlusTree) MinKey() (record.Record, bool, error) {
	return t.edgeRecord(true)
}

/*
MaxKey returns the record with the highest key.
*/
func (t *BPlusTree) MaxKey() (record.Record, bool, error) {
	return t.edgeRecord(false)
}

/*
edgeRecord returns the lowest or highest record.
*/
func (t *BPlusTree) edgeRecord(lowest bool) (record.Record, bool, error) {
	if err := t.checkOpen(); err != nil || t.root == 0 {
		return record.Record{}, false, err
	}

	n, err := t.edgeLeaf(lowest)
	if err != nil {
		return record.Record{}, false, err
	}
	defer t.release(n)

	if n.recs.IsEmpty() {
		return record.Record{}, false, nil
	}

	var res record.Record

	if lowest {
		res, err = n.recs.Low()
	} else {
		res, err = n.recs.High()
	}

	return res, err == nil, err
}

/*
Add adds a record to the tree. Returns true if a new key was added and false if
an existing record was replaced or left untouched.
*/
func (t *BPlusTree) Add(r record.Record) (bool, error) {
	if err := t.checkOpen(); err != nil {
		return false, err
	} else if !t.factory.Accepts(r) {
		return false, newTreeError(ErrRecordShape, fmt.Sprintf("Record %v does not fit %v", r, t.factory))
	}

	if t.root == 0 {
		n, err := t.newNode(true)
		if err != nil {
			return false, err
		}
		t.release(n)

		if err := t.setRoot(n.id()); err != nil {
			return false, err
		}
	}

	s, added, err := t.insert(t.root, r)

	if err == nil && s != nil {

		// The root was split - grow the tree by one level

		var n *node

		if n, err = t.newNode(false); err == nil {
			if err = n.recs.Set(0, s.key); err == nil {
				err = n.recs.SetSize(1)
			}

			if err != nil {
				t.release(n)
				return added, corrupt(n, err)
			}

			n.setChild(0, t.root)
			n.setChild(1, s.right)
			n.update()
			t.release(n)

			t.logger.Debug("New root ", n.id(), " for ", t.bm.Name())

			err = t.setRoot(n.id())
		}
	}

	return added, err
}

/*
insert inserts a record into the subtree of a given node.
*/
func (t *BPlusTree) insert(id uint64, r record.Record) (*split, bool, error) {
	n, err := t.getNode(id, true)
	if err != nil {
		return nil, false, err
	}
	defer t.release(n)

	if n.leaf {
		return t.insertLeaf(n, r)
	}

	i := n.childIndex(r.Key())

	s, added, err := t.insert(n.child(i), r)
	if err != nil || s == nil {
		return nil, added, err
	}

	s, err = t.insertBranch(n, i, s)

	return s, added, err
}

/*
insertLeaf inserts a record into a leaf node.
*/
func (t *BPlusTree) insertLeaf(n *node, r record.Record) (*split, bool, error) {
	i := n.recs.Find(r)

	if i >= 0 {
		if t.duplicates == DuplicateError {
			return nil, false, newTreeError(ErrDuplicate, fmt.Sprintf("%x", r.Key()))
		}

		existing, err := n.recs.Get(i)
		if err != nil || existing.SameBytes(r) {
			return nil, false, err
		}

		if err = n.recs.Set(i, r); err == nil {
			n.block.SetDirty()
		}

		return nil, false, err
	}

	i = -i - 1

	if !n.recs.IsFull() {
		if err := n.recs.ShiftUp(i); err != nil {
			return nil, false, corrupt(n, err)
		} else if err := n.recs.Set(i, r); err != nil {
			return nil, false, corrupt(n, err)
		}

		n.update()

		return nil, true, nil
	}

	// Build the overfull sequence and move its upper half into a new leaf

	tmp := record.NewRecordBuffer(t.factory, t.leafCap+1)

	if err := n.recs.Copy(0, tmp, 0, n.size()); err != nil {
		return nil, false, corrupt(n, err)
	} else if err := tmp.ShiftUp(i); err != nil {
		return nil, false, corrupt(n, err)
	} else if err := tmp.Set(i, r); err != nil {
		return nil, false, corrupt(n, err)
	}

	right, err := t.newNode(true)
	if err != nil {
		return nil, false, err
	}
	defer t.release(right)

	total := tmp.Size()
	leftCount := total - total/2

	if err := n.recs.SetSize(0); err != nil {
		return nil, false, corrupt(n, err)
	} else if err := tmp.Copy(0, n.recs, 0, leftCount); err != nil {
		return nil, false, corrupt(n, err)
	} else if err := tmp.Copy(leftCount, right.recs, 0, total-leftCount); err != nil {
		return nil, false, corrupt(right, err)
	}

	if t.clear {
		if err := n.recs.Clear(leftCount, t.leafCap); err != nil {
			return nil, false, corrupt(n, err)
		}
	}

	right.setNext(n.next())
	n.setNext(right.id())

	n.update()
	right.update()

	low, err := right.recs.GetKey(0)
	if err != nil {
		return nil, false, corrupt(right, err)
	}

	sep, err := t.keys.CreateKey(low)
	if err != nil {
		return nil, false, corrupt(right, err)
	}

	t.logger.Debug("Split leaf ", n.id(), " into ", right.id())

	return &split{sep, right.id()}, true, nil
}

/*
insertBranch inserts a separator key and a new child into a branch node. The
key is inserted at position i and the child at position i+1.
*/
func (t *BPlusTree) insertBranch(n *node, i int, s *split) (*split, error) {
	size := n.size()

	if !n.recs.IsFull() {
		for j := size; j > i; j-- {
			n.setChild(j+1, n.child(j))
		}
		n.setChild(i+1, s.right)

		if err := n.recs.ShiftUp(i); err != nil {
			return nil, corrupt(n, err)
		} else if err := n.recs.Set(i, s.key); err != nil {
			return nil, corrupt(n, err)
		}

		n.update()

		return nil, nil
	}

	// Build the overfull sequence, keep the lower half, promote the middle key
	// and move the upper half into a new branch

	tmp := record.NewRecordBuffer(t.keys, t.branchCap+1)

	if err := n.recs.Copy(0, tmp, 0, size); err != nil {
		return nil, corrupt(n, err)
	} else if err := tmp.ShiftUp(i); err != nil {
		return nil, corrupt(n, err)
	} else if err := tmp.Set(i, s.key); err != nil {
		return nil, corrupt(n, err)
	}

	children := make([]uint64, 0, size+2)
	for j := 0; j <= size; j++ {
		children = append(children, n.child(j))
		if j == i {
			children = append(children, s.right)
		}
	}

	right, err := t.newNode(false)
	if err != nil {
		return nil, err
	}
	defer t.release(right)

	total := tmp.Size()
	mid := total / 2

	promoted, err := tmp.Get(mid)
	if err != nil {
		return nil, corrupt(n, err)
	}

	if err := n.recs.SetSize(0); err != nil {
		return nil, corrupt(n, err)
	} else if err := tmp.Copy(0, n.recs, 0, mid); err != nil {
		return nil, corrupt(n, err)
	} else if err := tmp.Copy(mid+1, right.recs, 0, total-mid-1); err != nil {
		return nil, corrupt(right, err)
	}

	for j := 0; j <= mid; j++ {
		n.setChild(j, children[j])
	}
	for j := mid + 1; j < len(children); j++ {
		right.setChild(j-mid-1, children[j])
	}

	if t.clear {
		if err := n.recs.Clear(mid, t.branchCap); err != nil {
			return nil, corrupt(n, err)
		}
		for j := mid + 1; j <= t.branchCap; j++ {
			n.setChild(j, 0)
		}
	}

	n.update()
	right.update()

	t.logger.Debug("Split branch ", n.id(), " into ", right.id())

	return &split{promoted, right.id()}, nil
}

/*
Delete removes the record with the key of a given record (or key record).
Returns true if a record was removed.
*/
func (t *BPlusTree) Delete(r record.Record) (bool, error) {
	if err := t.checkOpen(); err != nil {
		return false, err
	}

	key, err := t.lookupKey(r)
	if err != nil || t.root == 0 {
		return false, err
	}

	removed, _, err := t.remove(t.root, key)
	if err != nil || !removed {
		return removed, err
	}

	return true, t.collapseRoot()
}

/*
remove removes a key from the subtree of a given node. Returns if a record
was removed and if the node fell below its minimal size.
*/
func (t *BPlusTree) remove(id uint64, key []byte) (bool, bool, error) {
	n, err := t.getNode(id, true)
	if err != nil {
		return false, false, err
	}
	defer t.release(n)

	if n.leaf {
		i := n.recs.FindKey(key)
		if i < 0 {
			return false, false, nil
		}

		if err := n.recs.Remove(i); err != nil {
			return false, false, err
		}
		n.update()

		return true, n.size() < t.leafMin(), nil
	}

	i := n.childIndex(key)

	removed, underflow, err := t.remove(n.child(i), key)
	if err != nil || !underflow {
		return removed, false, err
	}

	if err := t.rebalance(n, i); err != nil {
		return true, false, err
	}

	return true, n.size() < t.branchMin(), nil
}

/*
rebalance fixes the underflow of child i of a given branch by borrowing from
or merging with a sibling. The richer sibling is used, on a tie the left one.
*/
func (t *BPlusTree) rebalance(p *node, i int) error {
	var left, right *node
	var err error

	c, err := t.getNode(p.child(i), true)
	if err != nil {
		return err
	}

	if i > 0 {
		if left, err = t.getNode(p.child(i-1), true); err != nil {
			t.release(c)
			return err
		}
	}

	if i < p.size() {
		if right, err = t.getNode(p.child(i+1), true); err != nil {
			t.release(c)
			if left != nil {
				t.release(left)
			}
			return err
		}
	}

	if left != nil && right != nil {
		if right.size() > left.size() {
			t.release(left)
			left = nil
		} else {
			t.release(right)
			right = nil
		}
	}

	if left != nil {
		if left.size() > t.minSize(left) {
			err = t.borrowLeft(p, i, c, left)
			t.release(left)
			t.release(c)

			return err
		}

		err = t.merge(p, i-1, left, c)
		t.release(left)
		t.release(c)

		if err != nil {
			return err
		}

		return t.bm.Free(c.id())
	}

	if right.size() > t.minSize(right) {
		err = t.borrowRight(p, i, c, right)
		t.release(right)
		t.release(c)

		return err
	}

	err = t.merge(p, i, c, right)
	t.release(c)
	t.release(right)

	if err != nil {
		return err
	}

	return t.bm.Free(right.id())
}

/*
borrowLeft moves the highest entry of the left sibling into child i.
*/
func (t *BPlusTree) borrowLeft(p *node, i int, c *node, left *node) error {
	ls := left.size()

	if c.leaf {
		rec, err := left.recs.High()
		if err != nil {
			return corrupt(left, err)
		} else if err := left.recs.RemoveTop(); err != nil {
			return corrupt(left, err)
		} else if err := c.recs.ShiftUp(0); err != nil {
			return corrupt(c, err)
		} else if err := c.recs.Set(0, rec); err != nil {
			return corrupt(c, err)
		}

		sep, err := t.keys.CreateKey(rec.Key())
		if err != nil {
			return corrupt(c, err)
		} else if err := p.recs.Set(i-1, sep); err != nil {
			return corrupt(p, err)
		}

	} else {
		cs := c.size()

		sep, err := p.recs.Get(i - 1)
		if err != nil {
			return corrupt(p, err)
		}

		high, err := left.recs.High()
		if err != nil {
			return corrupt(left, err)
		}

		for j := cs; j >= 0; j-- {
			c.setChild(j+1, c.child(j))
		}

		if err := c.recs.ShiftUp(0); err != nil {
			return corrupt(c, err)
		} else if err := c.recs.Set(0, sep); err != nil {
			return corrupt(c, err)
		}
		c.setChild(0, left.child(ls))

		if err := p.recs.Set(i-1, high); err != nil {
			return corrupt(p, err)
		} else if err := left.recs.RemoveTop(); err != nil {
			return corrupt(left, err)
		}
		left.setChild(ls, 0)
	}

	left.update()
	c.update()
	p.update()

	return nil
}

/*
borrowRight moves the lowest entry of the right sibling into child i.
*/
func (t *BPlusTree) borrowRight(p *node, i int, c *node, right *node) error {
	cs := c.size()

	if c.leaf {
		rec, err := right.recs.Low()
		if err != nil {
			return corrupt(right, err)
		} else if err := right.recs.Remove(0); err != nil {
			return corrupt(right, err)
		} else if err := c.recs.ShiftUp(cs); err != nil {
			return corrupt(c, err)
		} else if err := c.recs.Set(cs, rec); err != nil {
			return corrupt(c, err)
		}

		low, err := right.recs.GetKey(0)
		if err != nil {
			return corrupt(right, err)
		}

		sep, err := t.keys.CreateKey(low)
		if err != nil {
			return corrupt(right, err)
		} else if err := p.recs.Set(i, sep); err != nil {
			return corrupt(p, err)
		}

	} else {
		sep, err := p.recs.Get(i)
		if err != nil {
			return corrupt(p, err)
		}

		low, err := right.recs.Low()
		if err != nil {
			return corrupt(right, err)
		}

		if err := c.recs.ShiftUp(cs); err != nil {
			return corrupt(c, err)
		} else if err := c.recs.Set(cs, sep); err != nil {
			return corrupt(c, err)
		}
		c.setChild(cs+1, right.child(0))

		if err := p.recs.Set(i, low); err != nil {
			return corrupt(p, err)
		} else if err := right.recs.Remove(0); err != nil {
			return corrupt(right, err)
		}

		rs := right.size()
		for j := 0; j <= rs; j++ {
			right.setChild(j, right.child(j+1))
		}
		right.setChild(rs+1, 0)
	}

	right.update()
	c.update()
	p.update()

	return nil
}

/*
merge moves all entries of child s+1 (b) into child s (a) and removes the
separator s from the parent. The caller frees b.
*/
func (t *BPlusTree) merge(p *node, s int, a *node, b *node) error {
	as, bs := a.size(), b.size()

	if a.leaf {
		if err := b.recs.Copy(0, a.recs, as, bs); err != nil {
			return corrupt(a, err)
		}
		a.setNext(b.next())

	} else {
		sep, err := p.recs.Get(s)
		if err != nil {
			return corrupt(p, err)
		} else if err := a.recs.ShiftUp(as); err != nil {
			return corrupt(a, err)
		} else if err := a.recs.Set(as, sep); err != nil {
			return corrupt(a, err)
		} else if err := b.recs.Copy(0, a.recs, as+1, bs); err != nil {
			return corrupt(a, err)
		}

		for j := 0; j <= bs; j++ {
			a.setChild(as+1+j, b.child(j))
		}
	}

	a.update()

	ps := p.size()

	if err := p.recs.Remove(s); err != nil {
		return corrupt(p, err)
	}
	for j := s + 1; j < ps; j++ {
		p.setChild(j, p.child(j+1))
	}
	p.setChild(ps, 0)
	p.update()

	t.logger.Debug("Merged node ", b.id(), " into ", a.id())

	return nil
}

/*
corrupt returns the error for a failed record buffer operation on a node.
*/
func corrupt(n *node, err error) error {
	return newTreeError(ErrCorrupt, fmt.Sprintf("Node %v: %v", n.id(), err))
}

/*
collapseRoot removes empty branch roots until the root is a leaf or holds at
least one key.
*/
func (t *BPlusTree) collapseRoot() error {
	for {
		n, err := t.getNode(t.root, false)
		if err != nil {
			return err
		}

		if n.leaf || n.size() > 0 {
			t.release(n)
			return nil
		}

		old, child := t.root, n.child(0)
		t.release(n)

		if err := t.setRoot(child); err != nil {
			return err
		}
		if err := t.bm.Free(old); err != nil {
			return err
		}

		t.logger.Debug("Collapsed root ", old, " into ", child)
	}
}

/*
Height returns the number of levels of this tree.
*/
func (t *BPlusTree) Height() (int, error) {
	if err := t.checkOpen(); err != nil || t.root == 0 {
		return 0, err
	}

	height := 1
	id := t.root

	for {
		n, err := t.getNode(id, false)
		if err != nil {
			return 0, err
		}

		leaf, child := n.leaf, uint64(0)
		if !leaf {
			child = n.child(0)
		}
		t.release(n)

		if leaf {
			return height, nil
		}

		id = child
		height++
	}
}

/*
Size returns the number of records in this tree.
*/
func (t *BPlusTree) Size() (int, error) {
	it, err := t.Iterator()
	if err != nil {
		return 0, err
	}

	count := 0
	for it.HasNext() {
		if _, err := it.Next(); err != nil {
			return count, err
		}
		count++
	}

	return count, it.LastError
}

/*
Clear removes all records from this tree and frees all its nodes.
*/
func (t *BPlusTree) Clear() error {
	if err := t.checkOpen(); err != nil || t.root == 0 {
		return err
	}

	ids := []uint64{t.root}

	for i := 0; i < len(ids); i++ {
		n, err := t.getNode(ids[i], false)
		if err != nil {
			return err
		}

		if !n.leaf {
			for j := 0; j <= n.size(); j++ {
				ids = append(ids, n.child(j))
			}
		}

		t.release(n)
	}

	for _, id := range ids {
		if err := t.bm.Free(id); err != nil {
			return err
		}
	}

	t.logger.Debug("Freed ", len(ids), " nodes of ", t.bm.Name())

	return t.setRoot(0)
}

/*
Sync writes all pending changes of the underlying block manager.
*/
func (t *BPlusTree) Sync() error {
	if err := t.checkOpen(); err != nil {
		return err
	}
	return t.bm.Sync()
}

/*
Close syncs and closes this tree. The underlying block manager stays open
since several trees may share it.
*/
func (t *BPlusTree) Close() error {
	if err := t.checkOpen(); err != nil {
		return err
	}
	err := t.bm.Sync()
	t.closed = true
	return err
}

/*
String returns a string representation of this tree.
*/
func (t *BPlusTree) String() string {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("BPlusTree: %v (root:%v leaf:%v branch:%v)\n",
		t.bm.Name(), t.root, t.leafCap, t.branchCap))

	if t.root != 0 && !t.closed {
		t.dump(&buf, t.root, 0)
	}

	return buf.String()
}

/*
dump writes a string representation of a subtree into a given buffer.
*/
func (t *BPlusTree) dump(buf *bytes.Buffer, id uint64, level int) {
	n, err := t.getNode(id, false)
	if err != nil {
		buf.WriteString(fmt.Sprintf("%*s%v\n", level*2, "", err))
		return
	}
	defer t.release(n)

	buf.WriteString(fmt.Sprintf("%*s%v\n", level*2, "", n))

	if !n.leaf {
		for j := 0; j <= n.size(); j++ {
			t.dump(buf, n.child(j), level+1)
		}
	}
}
