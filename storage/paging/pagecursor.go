/*
 * TDB
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

/*
Package paging contains functions and constants necessary for paging of blocks.

	NOTE: Operations in this code are expected to either fail completely or succeed.
	Errors in the middle of an operation may leave the datastructures in an
	inconsistent state. Use a transaction to be able to undo such a state.

PagedBlockManager

PagedBlockManager is a block manager which views the blocks of a BlockStore
as pages. Block 0 is the header block which stores the head of the free list,
the allocation cursor and a number of root values. Every other block starts
with a page view which stores the page type and pointers to the next and the
previous page.

PageCursor

PageCursor is a pointer into a BlockManager and can be used to traverse
a linked list of pages (e.g. the free list or the leaf level of a tree).
*/
package paging

import (
	"devt.de/krotik/tdb/storage"
	"devt.de/krotik/tdb/storage/paging/view"
)

/*
PageCursor data structure
*/
type PageCursor struct {
	bm      storage.BlockManager // Block manager to be used
	first   uint64               // First page of the list
	current uint64               // Current page
}

/*
NewPageCursor creates a new cursor object which can be used to traverse a
list of pages starting with a given page.
*/
func NewPageCursor(bm storage.BlockManager, first uint64) *PageCursor {
	return &PageCursor{bm, first, 0}
}

/*
Current gets the page this cursor currently points at.
*/
func (pc *PageCursor) Current() uint64 {
	return pc.current
}

/*
Next moves the PageCursor to the next page and returns it. Returns 0 if the
end of the list was reached.
*/
func (pc *PageCursor) Next() (uint64, error) {
	var page uint64

	if pc.current == 0 {
		page = pc.first

	} else {
		b, err := pc.bm.GetRead(pc.current)
		if err != nil {
			return 0, err
		}

		page = view.GetPageView(b).NextPage()

		pc.bm.Release(b)
	}

	if page != 0 {
		pc.current = page
	}

	return page, nil
}

/*
CountPages counts the pages of a list starting with a given page.
*/
func CountPages(bm storage.BlockManager, first uint64) (int, error) {
	var count int

	pc := NewPageCursor(bm, first)

	page, err := pc.Next()

	for page != 0 && err == nil {
		count++
		page, err = pc.Next()
	}

	if err != nil {
		return -1, err
	}

	return count, nil
}
