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
	"fmt"

	"devt.de/krotik/tdb/record"
	"devt.de/krotik/tdb/storage/file"
	"devt.de/krotik/tdb/storage/paging/view"
)

/*
node data structure
*/
type node struct {
	block *file.Block          // Block which holds the node
	leaf  bool                 // Flag if this is a leaf node
	recs  *record.RecordBuffer // Records (leaf) or keys (branch) - view on the block data
	ptrs  int                  // Offset of the child pointers (branch)
}

/*
getNode checks out a node for reading or writing.
*/
func (t *BPlusTree) getNode(id uint64, write bool) (*node, error) {
	var b *file.Block
	var err error

	if write {
		b, err = t.bm.GetWrite(id)
	} else {
		b, err = t.bm.GetRead(id)
	}

	if err != nil {
		return nil, err
	}

	n, err := t.wrapNode(b)
	if err != nil {
		t.bm.Release(b)
	}

	return n, err
}

/*
newNode allocates a new empty node.
*/
func (t *BPlusTree) newNode(leaf bool) (*node, error) {
	pagetype := int16(view.TypeBranchPage)
	if leaf {
		pagetype = view.TypeLeafPage
	}

	b, err := t.bm.Allocate(pagetype)
	if err != nil {
		return nil, err
	}

	b.WriteUInt16(OffsetCount, 0)

	n, err := t.wrapNode(b)
	if err != nil {
		t.bm.Release(b)
	}

	return n, err
}

/*
wrapNode creates a node object for a given block.
*/
func (t *BPlusTree) wrapNode(b *file.Block) (*node, error) {
	if !view.IsPageView(b) {
		return nil, newTreeError(ErrCorrupt, fmt.Sprintf("Block %v is not a node", b.ID()))
	}

	var leaf bool
	var f *record.RecordFactory
	var capacity int

	switch view.GetPageView(b).Type() {
	case view.TypeLeafPage:
		leaf, f, capacity = true, t.factory, t.leafCap
	case view.TypeBranchPage:
		leaf, f, capacity = false, t.keys, t.branchCap
	default:
		return nil, newTreeError(ErrCorrupt, fmt.Sprintf("Block %v has unexpected page type %v",
			b.ID(), view.GetPageView(b).Type()))
	}

	count := int(b.ReadUInt16(OffsetCount))

	recs, err := record.WrapRecordBuffer(f, b.Data()[OffsetRecords:], capacity, count)
	if err != nil {
		return nil, newTreeError(ErrCorrupt, fmt.Sprintf("Block %v: %v", b.ID(), err))
	}

	return &node{b, leaf, recs, OffsetRecords + capacity*f.RecordLength()}, nil
}

/*
release releases the block of a node.
*/
func (t *BPlusTree) release(n *node) {
	t.bm.Release(n.block)
}

/*
id returns the block id of this node.
*/
func (n *node) id() uint64 {
	return n.block.ID()
}

/*
size returns the number of records or keys of this node.
*/
func (n *node) size() int {
	return n.recs.Size()
}

/*
update stores the entry count in the block and marks the block as changed.
*/
func (n *node) update() {
	n.block.WriteUInt16(OffsetCount, uint16(n.recs.Size()))
}

/*
child returns a child pointer of a branch node.
*/
func (n *node) child(i int) uint64 {
	return n.block.ReadUInt64(n.ptrs + i*file.SizeLong)
}

/*
setChild sets a child pointer of a branch node.
*/
func (n *node) setChild(i int, id uint64) {
	n.block.WriteUInt64(n.ptrs+i*file.SizeLong, id)
}

/*
next returns the next leaf of a leaf node.
*/
func (n *node) next() uint64 {
	return view.GetPageView(n.block).NextPage()
}

/*
setNext sets the next leaf of a leaf node.
*/
func (n *node) setNext(id uint64) {
	view.GetPageView(n.block).SetNextPage(id)
}

/*
childIndex returns the index of the child pointer which leads to a given key.
*/
func (n *node) childIndex(key []byte) int {
	i := n.recs.FindKey(key)
	if i >= 0 {

		// The separator is the lowest key of the right subtree

		return i + 1
	}
	return -i - 1
}

/*
String returns a string representation of this node.
*/
func (n *node) String() string {
	if n.leaf {
		return fmt.Sprintf("Leaf %v (next:%v) %v", n.id(), n.next(), n.recs)
	}

	children := make([]uint64, n.size()+1)
	for i := range children {
		children[i] = n.child(i)
	}

	return fmt.Sprintf("Branch %v %v %v", n.id(), n.recs, children)
}
