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

	"devt.de/krotik/tdb/btree"
	"devt.de/krotik/tdb/record"
	"devt.de/krotik/tdb/txn"
	"github.com/pkg/errors"
)

/*
BuildSecondaryIndexes rebuilds the POS and OSP indexes of a write
transaction from its SPO index. Returns the number of triples in each index.
*/
func BuildSecondaryIndexes(t *Txn) (int, error) {
	if t.tx.Mode() != txn.ModeWrite {
		return 0, newStoreError(ErrReadOnly, "Cannot rebuild indexes in a read transaction")
	}

	count := 0

	for i := idxPOS; i <= idxOSP; i++ {
		dst := indexes[i]

		if err := t.indexes[i].Clear(); err != nil {
			return 0, err
		}

		n, err := btree.CopyIndex(t.indexes[idxSPO], t.indexes[i], func(r record.Record) (record.Record, error) {
			return dst.key(indexes[idxSPO].ids(r)), nil
		})

		if err != nil {
			return 0, errors.Wrapf(err, "Could not rebuild %v", dst.name)
		}

		t.store.logger.Info(fmt.Sprintf("Rebuilt %v with %v triples", dst.name, n))

		count = n
	}

	return count, nil
}
