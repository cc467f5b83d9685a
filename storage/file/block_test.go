/*
 * TDB
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package file

import (
	"testing"

	"devt.de/krotik/common/bitutil"
)

func TestBlockInitialisation(t *testing.T) {
	b := new(Block)
	out := b.String()

	if out != "Block: 0 (dirty:false len:0)\n"+
		"====\n"+
		"000000   \n"+
		"====\n" {
		t.Error("Unexpected output of empty block:", out)
	}

	bdata := []byte("This is a test")
	b = NewBlock(123, bdata)

	if id := b.ID(); id != 123 {
		t.Error("Unexpected id:", id)
		return
	}

	if b.SetID(5); b.ID() != 5 {
		t.Error("Unexpected id:", b.ID())
		return
	}

	if !bitutil.CompareByteArray(b.Data(), bdata) {
		t.Error("Unexpected initial data", b.Data())
		return
	}

	if b.Dirty() {
		t.Error("Block shouldn't be dirty right after it was created.")
		return
	}

	dummyString := "TEST"

	b.SetPageView(dummyString)

	if b.PageView() != dummyString {
		t.Error("Unexpected page view object")
		return
	}

	c := b.Copy()

	if c.PageView() != nil || !bitutil.CompareByteArray(c.Data(), bdata) {
		t.Error("Unexpected copy:", c)
		return
	}

	c.WriteSingleByte(0, 'X')

	if b.ReadSingleByte(0) != 'T' {
		t.Error("Copy should not share data with the original")
		return
	}

	b.ClearData()

	if b.PageView() != nil || !bitutil.CompareByteArray(b.Data(), make([]byte, len(bdata))) {
		t.Error("Unexpected data after clear:", b.Data())
		return
	}
}

func TestBlockReadAndWrite(t *testing.T) {
	b := NewBlock(123, make([]byte, 20))

	b.WriteSingleByte(3, 0x42)

	if b.data[3] != 0x42 || b.ReadSingleByte(3) != 0x42 {
		t.Error("Unexpected value in read/write test", b.data[3])
		return
	}

	if !b.Dirty() {
		t.Error("Block should be marked as dirty after write operation.")
		return
	}

	b.ClearDirty()

	b.WriteUInt16(0, 0x1234)

	if b.data[0] != 0x12 || b.data[1] != 0x34 || b.ReadUInt16(0) != 0x1234 {
		t.Error("Unexpected big-endian layout:", b.data[:2])
		return
	}

	if !b.Dirty() {
		t.Error("Block should be marked as dirty after write operation.")
		return
	}

	b.WriteInt16(2, -2)

	if b.ReadInt16(2) != -2 {
		t.Error("Unexpected value:", b.ReadInt16(2))
		return
	}

	b.WriteUInt32(4, 0xFFFFFFF0)

	if b.ReadUInt32(4) != 0xFFFFFFF0 {
		t.Error("Unexpected value:", b.ReadUInt32(4))
		return
	}

	b.WriteInt32(4, -70000)

	if b.ReadInt32(4) != -70000 {
		t.Error("Unexpected value:", b.ReadInt32(4))
		return
	}

	b.WriteUInt64(8, 0x0102030405060708)

	if b.data[8] != 0x01 || b.data[15] != 0x08 || b.ReadUInt64(8) != 0x0102030405060708 {
		t.Error("Unexpected value:", b.ReadUInt64(8))
		return
	}

	b.WriteBytes(16, []byte("abcd"))

	if string(b.ReadBytes(16, 4)) != "abcd" {
		t.Error("Unexpected value:", string(b.ReadBytes(16, 4)))
		return
	}
}
