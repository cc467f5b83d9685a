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
	"encoding/binary"

	"devt.de/krotik/tdb/nodetable"
	"devt.de/krotik/tdb/record"
)

/*
tripleFactory creates the index records of triples
*/
var tripleFactory = record.NewRecordFactory(3*nodetable.NodeIDSize, 0)

/*
index describes a triple index. The order lists which triple part (0 for
subject, 1 for predicate and 2 for object) is stored at each key position.
*/
type index struct {
	name  string
	order [3]int
}

/*
Triple indexes - SPO is the primary index
*/
var indexes = []index{
	{"spo.idx", [3]int{0, 1, 2}},
	{"pos.idx", [3]int{1, 2, 0}},
	{"osp.idx", [3]int{2, 0, 1}},
}

const (
	idxSPO = iota
	idxPOS
	idxOSP
)

/*
key returns the index key of a triple of node ids.
*/
func (ix index) key(ids [3]nodetable.NodeID) record.Record {
	b := make([]byte, tripleFactory.KeyLength())

	for i, part := range ix.order {
		binary.BigEndian.PutUint64(b[i*nodetable.NodeIDSize:], uint64(ids[part]))
	}

	r, _ := tripleFactory.CreateKey(b)

	return r
}

/*
ids returns the triple of node ids of an index key.
*/
func (ix index) ids(r record.Record) [3]nodetable.NodeID {
	var ids [3]nodetable.NodeID

	k := r.Key()

	for i, part := range ix.order {
		ids[part] = nodetable.NodeIDFromBytes(k[i*nodetable.NodeIDSize:])
	}

	return ids
}

/*
prefix returns the number of leading key positions which are bound.
*/
func (ix index) prefix(bound [3]bool) int {
	n := 0
	for _, part := range ix.order {
		if !bound[part] {
			break
		}
		n++
	}
	return n
}

/*
chooseIndex returns the index with the longest bound key prefix for a
pattern. Ties go to the earlier index.
*/
func chooseIndex(bound [3]bool) (int, int) {
	best, bestLen := idxSPO, -1

	for i, ix := range indexes {
		if l := ix.prefix(bound); l > bestLen {
			best, bestLen = i, l
		}
	}

	return best, bestLen
}

/*
scanRange returns the key range [min, max) of all keys which start with the
given bound node ids. A zero record is an open bound.
*/
func scanRange(ix index, ids [3]nodetable.NodeID, prefixLen int) (record.Record, record.Record) {
	if prefixLen == 0 {
		return record.Record{}, record.Record{}
	}

	min := ix.key(ids)
	b := min.Key()

	// Clear the unbound positions

	for i := prefixLen * nodetable.NodeIDSize; i < len(b); i++ {
		b[i] = 0
	}

	maxb := make([]byte, len(b))
	copy(maxb, b)

	// Increment the prefix - an overflow leaves the upper bound open

	for i := prefixLen*nodetable.NodeIDSize - 1; i >= 0; i-- {
		maxb[i]++
		if maxb[i] != 0 {
			max, _ := tripleFactory.CreateKey(maxb)
			return min, max
		}
	}

	return min, record.Record{}
}
