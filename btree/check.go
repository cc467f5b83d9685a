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
)

/*
checkState is the state of a consistency check
*/
type checkState struct {
	leafDepth int      // Depth of the first found leaf (-1 if none was found yet)
	leaves    []uint64 // Leaves in key order
	nexts     []uint64 // Next pointers of the leaves
	seen      map[uint64]bool
}

/*
Check validates the structure of the tree. The following is checked:

- Every node is a leaf or branch page and holds no more entries than its capacity.
- Every non-root node holds at least its minimal number of entries.
- Keys are strictly ascending in every node and lie within the bounds given
by the separators of the parents.
- All leaves are on the same level.
- The leaf chain links all leaves in key order.
*/
func (t *BPlusTree) Check() error {
	if err := t.checkOpen(); err != nil || t.root == 0 {
		return err
	}

	cs := &checkState{-1, nil, nil, make(map[uint64]bool)}

	if err := t.checkNode(cs, t.root, nil, nil, 0); err != nil {
		return err
	}

	for i, id := range cs.leaves {
		var expected uint64

		if i < len(cs.leaves)-1 {
			expected = cs.leaves[i+1]
		}

		if cs.nexts[i] != expected {
			return newTreeError(ErrCorrupt, fmt.Sprintf("Leaf %v points to %v instead of %v",
				id, cs.nexts[i], expected))
		}
	}

	return nil
}

/*
checkNode checks a subtree. All keys must be in [lower, upper).
*/
func (t *BPlusTree) checkNode(cs *checkState, id uint64, lower []byte, upper []byte, depth int) error {
	if cs.seen[id] {
		return newTreeError(ErrCorrupt, fmt.Sprintf("Node %v is referenced more than once", id))
	}
	cs.seen[id] = true

	n, err := t.getNode(id, false)
	if err != nil {
		return err
	}
	defer t.release(n)

	size := n.size()

	if depth > 0 && size < t.minSize(n) {
		return newTreeError(ErrCorrupt, fmt.Sprintf("Node %v has only %v entries", id, size))
	} else if depth == 0 && !n.leaf && size == 0 {
		return newTreeError(ErrCorrupt, fmt.Sprintf("Root branch %v has no keys", id))
	}

	var prev []byte

	for i := 0; i < size; i++ {
		key, _ := n.recs.GetKey(i)

		if prev != nil && bytes.Compare(prev, key) >= 0 {
			return newTreeError(ErrCorrupt, fmt.Sprintf("Node %v is not sorted at %v", id, i))
		} else if lower != nil && bytes.Compare(key, lower) < 0 {
			return newTreeError(ErrCorrupt, fmt.Sprintf("Node %v has key %x below %x", id, key, lower))
		} else if upper != nil && bytes.Compare(key, upper) >= 0 {
			return newTreeError(ErrCorrupt, fmt.Sprintf("Node %v has key %x above %x", id, key, upper))
		}

		prev = key
	}

	if n.leaf {
		if cs.leafDepth == -1 {
			cs.leafDepth = depth
		} else if cs.leafDepth != depth {
			return newTreeError(ErrCorrupt, fmt.Sprintf("Leaf %v is on level %v instead of %v",
				id, depth, cs.leafDepth))
		}

		cs.leaves = append(cs.leaves, id)
		cs.nexts = append(cs.nexts, n.next())

		return nil
	}

	for i := 0; i <= size; i++ {
		l, u := lower, upper

		if i > 0 {
			l, _ = n.recs.GetKey(i - 1)
		}
		if i < size {
			u, _ = n.recs.GetKey(i)
		}

		if err := t.checkNode(cs, n.child(i), l, u, depth+1); err != nil {
			return err
		}
	}

	return nil
}
