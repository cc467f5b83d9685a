/*
 * TDB
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package record

import (
	"math/rand"
	"sort"
	"testing"
)

func key(f *RecordFactory, k byte) Record {
	r, err := f.CreateKey([]byte{k})
	if err != nil {
		panic(err)
	}
	return r
}

func buffer(f *RecordFactory, capacity int, keys ...byte) *RecordBuffer {
	rb := NewRecordBuffer(f, capacity)
	for _, k := range keys {
		if err := rb.Add(key(f, k)); err != nil {
			panic(err)
		}
	}
	return rb
}

func checkKeys(t *testing.T, rb *RecordBuffer, keys ...byte) bool {
	if rb.Size() != len(keys) {
		t.Error("Unexpected size:", rb.Size(), "expected:", len(keys), rb)
		return false
	}
	for i, k := range keys {
		if rk, err := rb.GetKey(i); err != nil || rk[0] != k {
			t.Error("Unexpected key at", i, ":", rk, err, rb)
			return false
		}
	}
	return true
}

func TestRecordFactory(t *testing.T) {
	f := NewRecordFactory(2, 3)

	if f.KeyLength() != 2 || f.ValueLength() != 3 || f.RecordLength() != 5 || !f.HasValue() {
		t.Error("Unexpected factory:", f)
		return
	}

	if f.String() != "RecordFactory: key 2 value 3" {
		t.Error("Unexpected string output:", f.String())
		return
	}

	if kf := f.KeyFactory(); kf.RecordLength() != 2 || kf.HasValue() || kf.KeyFactory() != kf {
		t.Error("Unexpected key factory:", kf)
		return
	}

	r, err := f.Create([]byte{1, 2}, []byte{3, 4, 5})
	if err != nil {
		t.Error(err)
		return
	}

	if r.String() != "[0102:030405]" || r.Len() != 5 || r.IsNil() || !f.Accepts(r) {
		t.Error("Unexpected record:", r)
		return
	}

	if _, err := f.Create([]byte{1}, []byte{3, 4, 5}); err == nil ||
		err.Error() != "Unexpected record length (Expected key 2 value 3 got key 1 value 3)" {
		t.Error("Unexpected error:", err)
		return
	}

	if _, err := f.CreateKey([]byte{1}); err == nil {
		t.Error("Wrong key length should cause an error")
		return
	}

	if _, err := f.FromBytes([]byte{1}); err == nil {
		t.Error("Wrong record length should cause an error")
		return
	}

	data := []byte{1, 2, 9, 9, 9}
	r2, _ := f.FromBytes(data)
	data[0] = 7

	if r2.Key()[0] != 1 {
		t.Error("Record should not share memory with the input")
		return
	}

	// Comparison uses only key bytes while SameBytes includes the value

	if r.Compare(r2) != 0 || f.Compare(r, r2) != 0 || r.SameBytes(r2) {
		t.Error("Unexpected comparison result")
		return
	}

	r3, _ := f.Create(r.Key(), r.Value())

	if !r.SameBytes(r3) || r3.SameBytes(r2) || r2.SameBytes(r3) {
		t.Error("Unexpected byte comparison result")
		return
	}

	k, _ := f.CreateKey([]byte{1, 0xFF})

	if k.Compare(r) != 1 || r.Compare(k) != -1 {
		t.Error("Keys should be compared as unsigned bytes")
		return
	}

	if new(Record).IsNil() != true {
		t.Error("Empty record should be nil")
		return
	}

	testFactoryPanic(t)
}

func testFactoryPanic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Invalid record shape did not cause a panic.")
		}
	}()

	NewRecordFactory(0, 1)
}

func TestRecordBufferFind(t *testing.T) {
	f := NewRecordFactory(1, 0)
	rb := buffer(f, 4, 8, 2, 6, 4)

	if !checkKeys(t, rb, 2, 4, 6, 8) {
		return
	}

	if i := rb.Find(key(f, 6)); i != 2 {
		t.Error("Unexpected find result:", i)
		return
	}

	if i := rb.Find(key(f, 3)); i != -2 {
		t.Error("Unexpected find result:", i)
		return
	}

	if i := rb.Find(key(f, 10)); i != -5 {
		t.Error("Unexpected find result:", i)
		return
	}

	if i := rb.Find(key(f, 1)); i != -1 {
		t.Error("Unexpected find result:", i)
		return
	}

	if i := NewRecordBuffer(f, 4).Find(key(f, 1)); i != -1 {
		t.Error("Unexpected find result:", i)
		return
	}

	if !rb.IsFull() || rb.IsEmpty() || rb.MaxSize() != 4 {
		t.Error("Unexpected buffer state:", rb)
		return
	}

	if err := rb.Add(key(f, 5)); err == nil || err.(*BufferError).Type != ErrCapacity {
		t.Error("Unexpected error:", err)
		return
	}

	if err := rb.ShiftUp(0); err == nil || err.(*BufferError).Type != ErrCapacity {
		t.Error("Unexpected error:", err)
		return
	}

	if rb.String() != "RecordBuffer (4/4) [[02] [04] [06] [08]]" {
		t.Error("Unexpected string output:", rb.String())
		return
	}
}

func TestRecordBufferFindProperty(t *testing.T) {
	f := NewRecordFactory(1, 0)
	rnd := rand.New(rand.NewSource(42))

	for round := 0; round < 50; round++ {
		keys := make(map[byte]bool)
		rb := NewRecordBuffer(f, 20)

		n := rnd.Intn(20) + 1

		for rb.Size() < n {
			k := byte(rnd.Intn(100))
			if !keys[k] {
				keys[k] = true
				rb.Add(key(f, k))
			}
		}

		var sorted []int
		for k := range keys {
			sorted = append(sorted, int(k))
		}
		sort.Ints(sorted)

		for probe := 0; probe < 100; probe++ {
			i := rb.Find(key(f, byte(probe)))
			p := sort.SearchInts(sorted, probe)

			if keys[byte(probe)] {
				if i != p {
					t.Error("Unexpected index for present key", probe, i, p)
					return
				}
			} else if i != -p-1 {
				t.Error("Unexpected index for absent key", probe, i, p)
				return
			}
		}
	}
}

func TestRecordBufferShift(t *testing.T) {
	f := NewRecordFactory(1, 0)
	rb := buffer(f, 4, 2, 4, 6, 8)

	if err := rb.ShiftDown(0); err != nil {
		t.Error(err)
		return
	}

	if !checkKeys(t, rb, 4, 6, 8) {
		return
	}

	// The former top slot is cleared

	if rb.slot(3)[0] != 0 {
		t.Error("Top slot was not cleared")
		return
	}

	if err := rb.ShiftUp(0); err != nil {
		t.Error(err)
		return
	}

	if err := rb.Set(0, key(f, 1)); err != nil {
		t.Error(err)
		return
	}

	if !checkKeys(t, rb, 1, 4, 6, 8) {
		return
	}

	// Round trip: shiftUp, set, shiftDown

	before := rb.Duplicate()
	rb.RemoveTop()
	before.RemoveTop()

	if err := rb.ShiftUp(1); err != nil {
		t.Error(err)
		return
	}
	rb.Set(1, key(f, 3))

	if !checkKeys(t, rb, 1, 3, 4, 6) {
		return
	}

	if err := rb.ShiftDown(1); err != nil {
		t.Error(err)
		return
	}

	if string(rb.data) != string(before.data) || rb.Size() != before.Size() {
		t.Error("Round trip changed the buffer:", rb, before)
		return
	}

	// Bounds

	if err := rb.ShiftDown(3); err == nil || err.(*BufferError).Type != ErrOutOfBounds {
		t.Error("Shift down at the occupied count should fail:", err)
		return
	}

	if err := rb.ShiftDown(-1); err == nil {
		t.Error("Negative index should fail")
		return
	}

	if err := rb.ShiftUp(4); err == nil || err.Error() != "Index out of bounds (Index 4 not in [0, 4))" {
		t.Error("Unexpected error:", err)
		return
	}

	if err := rb.ShiftUp(3); err != nil {
		t.Error("Shift up at the occupied count should open a slot at the end:", err)
		return
	}

	rb.Set(3, key(f, 9))

	if !checkKeys(t, rb, 1, 4, 6, 9) {
		return
	}

	if err := rb.Remove(1); err != nil {
		t.Error(err)
		return
	}

	if !checkKeys(t, rb, 1, 6, 9) {
		return
	}

	rb.RemoveTop()
	rb.RemoveTop()
	rb.RemoveTop()

	if err := rb.RemoveTop(); err == nil || !rb.IsEmpty() {
		t.Error("Removing from an empty buffer should fail")
		return
	}

	if _, err := rb.Low(); err == nil {
		t.Error("Low of an empty buffer should fail")
		return
	}
}

func TestRecordBufferAccess(t *testing.T) {
	f := NewRecordFactory(1, 1)
	rb := NewRecordBuffer(f, 3)

	r1, _ := f.Create([]byte{5}, []byte{50})
	r2, _ := f.Create([]byte{3}, []byte{30})

	rb.Add(r1)
	rb.Add(r2)

	if err := rb.Add(r1); err == nil || err.(*BufferError).Type != ErrDuplicateKey {
		t.Error("Unexpected error:", err)
		return
	}

	if low, _ := rb.Low(); !low.SameBytes(r2) {
		t.Error("Unexpected low record:", low)
		return
	}

	if high, _ := rb.High(); !high.SameBytes(r1) {
		t.Error("Unexpected high record:", high)
		return
	}

	// Search ignores values

	probe, _ := f.Create([]byte{5}, []byte{99})

	if rb.Find(probe) != 1 || rb.FindKey([]byte{3}) != 0 {
		t.Error("Unexpected find result")
		return
	}

	if _, err := rb.Get(2); err == nil {
		t.Error("Get beyond the occupied slots should fail")
		return
	}

	if _, err := rb.GetKey(-1); err == nil {
		t.Error("Get with negative index should fail")
		return
	}

	if err := rb.Set(3, r1); err == nil || err.(*BufferError).Type != ErrOutOfBounds {
		t.Error("Set beyond capacity should fail:", err)
		return
	}

	if err := rb.Set(0, key(NewRecordFactory(1, 0), 1)); err == nil ||
		err.(*BufferError).Type != ErrRecordLength {
		t.Error("Set with wrong record shape should fail:", err)
		return
	}

	// Records returned by Get are detached

	r, _ := rb.Get(0)
	rb.Set(0, probe)

	if r.Value()[0] != 30 {
		t.Error("Record should not share memory with the buffer")
		return
	}

	// Duplicates are independent

	d := rb.Duplicate()
	d.Set(0, r2)
	d.RemoveTop()

	if v, _ := rb.Get(0); v.Value()[0] != 99 || rb.Size() != 2 || d.Size() != 1 {
		t.Error("Duplicate should not affect the original")
		return
	}

	if err := rb.SetSize(4); err == nil {
		t.Error("Size beyond capacity should fail")
		return
	}

	if err := rb.SetSize(1); err != nil || rb.Size() != 1 || rb.Factory() != f {
		t.Error("Unexpected result:", err)
		return
	}
}

func TestRecordBufferCopyClear(t *testing.T) {
	f := NewRecordFactory(1, 0)
	src := buffer(f, 6, 1, 2, 3, 4, 5, 6)
	dst := NewRecordBuffer(f, 6)

	// Move the upper half into an empty buffer

	if err := src.Copy(3, dst, 0, 3); err != nil {
		t.Error(err)
		return
	}

	if err := src.Clear(3, 6); err != nil {
		t.Error(err)
		return
	}

	src.SetSize(3)

	if !checkKeys(t, src, 1, 2, 3) || !checkKeys(t, dst, 4, 5, 6) {
		return
	}

	for i := 3; i < 6; i++ {
		if src.slot(i)[0] != 0 {
			t.Error("Slot was not cleared:", i)
			return
		}
	}

	// Append to the end of a buffer

	if err := src.Copy(0, dst, 3, 3); err != nil {
		t.Error(err)
		return
	}

	if !checkKeys(t, dst, 4, 5, 6, 1, 2, 3) {
		return
	}

	if err := src.Copy(0, dst, 4, 3); err == nil || err.(*BufferError).Type != ErrCapacity {
		t.Error("Copy beyond capacity should fail:", err)
		return
	}

	if err := src.Copy(1, dst, 0, 3); err == nil || err.(*BufferError).Type != ErrOutOfBounds {
		t.Error("Copy beyond the source size should fail:", err)
		return
	}

	empty := NewRecordBuffer(f, 6)

	if err := src.Copy(0, empty, 1, 1); err == nil || err.(*BufferError).Type != ErrOutOfBounds {
		t.Error("Copy which leaves a gap should fail:", err)
		return
	}

	if err := src.Copy(0, NewRecordBuffer(NewRecordFactory(2, 0), 6), 0, 1); err == nil {
		t.Error("Copy between different shapes should fail")
		return
	}

	if err := src.Clear(2, 1); err == nil {
		t.Error("Invalid clear range should fail")
		return
	}

	if err := src.Clear(0, 7); err == nil {
		t.Error("Clear beyond capacity should fail")
		return
	}
}

func TestWrapRecordBuffer(t *testing.T) {
	f := NewRecordFactory(1, 0)
	data := []byte{1, 3, 5, 0, 0, 42}

	if _, err := WrapRecordBuffer(f, data, 7, 0); err == nil {
		t.Error("Too small data should fail")
		return
	}

	if _, err := WrapRecordBuffer(f, data, 5, 6); err == nil {
		t.Error("Size beyond capacity should fail")
		return
	}

	rb, err := WrapRecordBuffer(f, data, 5, 3)
	if err != nil {
		t.Error(err)
		return
	}

	if !checkKeys(t, rb, 1, 3, 5) {
		return
	}

	rb.Add(key(f, 2))

	// The buffer is a view on the data

	if data[1] != 2 || data[3] != 5 || data[5] != 42 {
		t.Error("Unexpected data:", data)
		return
	}
}
