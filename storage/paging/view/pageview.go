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
Package view contains general page view constants and functions.

PageView is the super-struct for all page views. A page view is a special
object attached to a particular block. A view provides specialised functions
for the block it is attached to.

Use GetPageView if the block has already view information stored on it or
NewPageView to initialise or reassign a given block.
*/
package view

import (
	"fmt"

	"devt.de/krotik/tdb/storage/file"
)

/*
ViewPageHeader is the header magic number to identify page views
*/
const ViewPageHeader = 0x1990

/*
OffsetNextPage is the offset for next page id
*/
const OffsetNextPage = file.SizeShort

/*
OffsetPrevPage is the offset for previous page id
*/
const OffsetPrevPage = OffsetNextPage + file.SizeLong

/*
OffsetData is the offset for page specific data
*/
const OffsetData = OffsetPrevPage + file.SizeLong

/*
TypeFreePage is a free page waiting to be (re)allocated
*/
const TypeFreePage = 0

/*
TypeLeafPage is a page which holds a leaf node of a tree
*/
const TypeLeafPage = 1

/*
TypeBranchPage is a page which holds a branch node of a tree
*/
const TypeBranchPage = 2

/*
TypeObjectPage is a page which holds object data
*/
const TypeObjectPage = 3

/*
maxPageType is the highest known page type
*/
const maxPageType = TypeObjectPage

/*
PageView data structure
*/
type PageView struct {
	Block *file.Block // Block which is wrapped by the PageView
}

/*
GetPageView returns the page view of a given block.
*/
func GetPageView(block *file.Block) *PageView {
	bpv := block.PageView()

	pv, ok := bpv.(*PageView)
	if ok {
		return pv
	}

	pv = &PageView{block}
	pv.checkMagic()
	block.SetPageView(pv)

	return pv
}

/*
NewPageView creates a new page view for a given block.
*/
func NewPageView(block *file.Block, pagetype int16) *PageView {
	pv := &PageView{block}
	block.SetPageView(pv)
	pv.SetType(pagetype)
	return pv
}

/*
IsPageView checks if a given block holds a valid page view magic.
*/
func IsPageView(block *file.Block) bool {
	magic := block.ReadInt16(0)
	return magic >= ViewPageHeader && magic <= ViewPageHeader+maxPageType
}

/*
Type gets the type of this page view which is stored on the block.
*/
func (pv *PageView) Type() int16 {
	return pv.Block.ReadInt16(0) - ViewPageHeader
}

/*
SetType sets the type of this page view which is stored on the block.
*/
func (pv *PageView) SetType(pagetype int16) {
	pv.Block.WriteInt16(0, ViewPageHeader+pagetype)
}

/*
checkMagic checks if the magic number at the beginning of the wrapped block
is valid.
*/
func (pv *PageView) checkMagic() bool {
	if IsPageView(pv.Block) {
		return true
	}
	panic(fmt.Sprintf("Unexpected header found in PageView of block %v", pv.Block.ID()))
}

/*
NextPage returns the id of the next page.
*/
func (pv *PageView) NextPage() uint64 {
	pv.checkMagic()
	return pv.Block.ReadUInt64(OffsetNextPage)
}

/*
SetNextPage sets the id of the next page.
*/
func (pv *PageView) SetNextPage(val uint64) {
	pv.checkMagic()
	pv.Block.WriteUInt64(OffsetNextPage, val)
}

/*
PrevPage returns the id of the previous page.
*/
func (pv *PageView) PrevPage() uint64 {
	pv.checkMagic()
	return pv.Block.ReadUInt64(OffsetPrevPage)
}

/*
SetPrevPage sets the id of the previous page.
*/
func (pv *PageView) SetPrevPage(val uint64) {
	pv.checkMagic()
	pv.Block.WriteUInt64(OffsetPrevPage, val)
}

/*
String returns a string representation of a PageView.
*/
func (pv *PageView) String() string {
	return fmt.Sprintf("PageView: %v (type:%v previous page:%v next page:%v)",
		pv.Block.ID(), pv.Type(), pv.PrevPage(), pv.NextPage())
}
