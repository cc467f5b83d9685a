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
	"testing"

	"devt.de/krotik/tdb/record"
	"devt.de/krotik/tdb/storage"
	"devt.de/krotik/tdb/storage/paging"
)

func rangeKeys(t *testing.T, tree *BPlusTree, min record.Record, max record.Record) string {
	it, err := tree.IteratorRange(min, max)
	if err != nil {
		t.Fatal(err)
	}

	var res []uint32

	for it.HasNext() {
		r, err := it.Next()
		if err != nil {
			t.Fatal(err)
		}
		res = append(res, keyOf(r))
	}

	return fmt.Sprint(res)
}

func TestIterator(t *testing.T) {
	tree, pbm := newTestTree(t, keyFactory, 4, 4)

	if res := collect(t, tree); res != "[]" {
		t.Error("Unexpected result for empty tree:", res)
		return
	}

	for i := uint32(0); i < 100; i += 2 {
		tree.Add(key(i))
	}

	if res := rangeKeys(t, tree, key(10), key(20)); res != "[10 12 14 16 18]" {
		t.Error("Unexpected range:", res)
		return
	}

	if res := rangeKeys(t, tree, key(11), key(17)); res != "[12 14 16]" {
		t.Error("Unexpected range:", res)
		return
	}

	if res := rangeKeys(t, tree, key(93), record.Record{}); res != "[94 96 98]" {
		t.Error("Unexpected range:", res)
		return
	}

	if res := rangeKeys(t, tree, record.Record{}, key(5)); res != "[0 2 4]" {
		t.Error("Unexpected range:", res)
		return
	}

	if res := rangeKeys(t, tree, key(20), key(20)); res != "[]" {
		t.Error("Unexpected range:", res)
		return
	}

	if res := rangeKeys(t, tree, key(200), record.Record{}); res != "[]" {
		t.Error("Unexpected range:", res)
		return
	}

	it, _ := tree.IteratorRange(key(40), key(44))

	it.Next()
	it.Next()

	if _, err := it.Next(); err == nil || err.Error() != "No more items" {
		t.Error("Unexpected error:", err)
		return
	}

	// Iterators can be restarted

	if err := it.Reset(); err != nil {
		t.Error(err)
		return
	}

	if r, err := it.Next(); err != nil || keyOf(r) != 40 {
		t.Error("Unexpected record after reset:", r, err)
		return
	}

	if pbm.InUse() != 0 {
		t.Error("Iterators should not keep blocks checked out:", pbm.InUse())
		return
	}

	wrong, _ := record.NewRecordFactory(2, 0).CreateKey([]byte{1, 2})

	if _, err := tree.IteratorRange(wrong, record.Record{}); err == nil {
		t.Error("Wrong bound shape should cause an error")
		return
	}

	if _, err := tree.IteratorRange(record.Record{}, wrong); err == nil {
		t.Error("Wrong bound shape should cause an error")
		return
	}

	tree.Close()

	if _, err := tree.Iterator(); err == nil {
		t.Error("Iterating a closed tree should cause an error")
		return
	}
}

func TestCopyIndex(t *testing.T) {
	src, _ := newTestTree(t, valueFactory, 4, 4)

	for i := uint32(0); i < 40; i++ {
		src.Add(keyValue(i, 1000+i))
	}

	dst, _ := newTestTree(t, valueFactory, 4, 4)

	// Swap key and value of every record

	count, err := CopyIndex(src, dst, func(r record.Record) (record.Record, error) {
		return valueFactory.Create(r.Value(), r.Key())
	})

	if count != 40 || err != nil {
		t.Error("Unexpected copy result:", count, err)
		return
	}

	if err := dst.Check(); err != nil {
		t.Error(err)
		return
	}

	r, ok, _ := dst.Find(key(1005))
	if !ok || r.String() != "[000003ed:00000005]" {
		t.Error("Unexpected record:", r)
		return
	}

	// Copying into a tree of another shape fails

	pbm, _ := paging.NewPagedBlockManager(storage.NewMemoryBlockStore("test", 256), false)
	other, _ := NewBPlusTree(pbm, keyFactory, DefaultParams())

	if count, err := CopyIndex(src, other, nil); count != 0 || err == nil {
		t.Error("Unexpected copy result:", count, err)
		return
	}

	if count, err := CopyIndex(src, other, func(r record.Record) (record.Record, error) {
		return keyFactory.CreateKey(r.Key())
	}); count != 40 || err != nil {
		t.Error("Unexpected copy result:", count, err)
		return
	}
}
