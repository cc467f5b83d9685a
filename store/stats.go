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
	"sort"

	"devt.de/krotik/tdb/txn"
)

/*
Stats holds statistics of a store.
*/
type Stats struct {
	Triples        int               // Number of stored triples
	Nodes          int               // Number of terms in the node table
	LastCommitted  uint64            // Sequence number of the last commit
	ObjectFileSize int64             // Size of the object file in bytes
	IndexFileSizes map[string]uint64 // Sizes of the index files in bytes
}

/*
IndexNames returns the names of all index files in sorted order.
*/
func (st *Stats) IndexNames() []string {
	names := make([]string, 0, len(st.IndexFileSizes))
	for name := range st.IndexFileSizes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

/*
Stats collects statistics of this store in a read transaction.
*/
func (s *Store) Stats() (*Stats, error) {
	t, err := s.Begin(txn.ModeRead)
	if err != nil {
		return nil, err
	}
	defer t.Commit()

	st := &Stats{LastCommitted: t.tx.Seq(), IndexFileSizes: make(map[string]uint64)}

	if st.Triples, err = t.indexes[idxSPO].Size(); err != nil {
		return nil, err
	}

	if st.Nodes, err = t.nodes.Count(); err != nil {
		return nil, err
	}

	st.ObjectFileSize = s.nodes.Objects().Length()

	for name, bf := range s.files {
		size, err := bf.Size()
		if err != nil {
			return nil, err
		}
		st.IndexFileSizes[name] = size
	}

	return st, nil
}
