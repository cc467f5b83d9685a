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
	"bytes"
	"fmt"
)

/*
RecordBuffer data structure
*/
type RecordBuffer struct {
	factory  *RecordFactory // Factory which determines the record shape
	data     []byte         // Slot data
	capacity int            // Maximum number of records
	size     int            // Number of occupied slots
}

/*
NewRecordBuffer creates a new empty RecordBuffer which owns its memory.
*/
func NewRecordBuffer(factory *RecordFactory, capacity int) *RecordBuffer {
	return &RecordBuffer{factory, make([]byte, capacity*factory.RecordLength()),
		capacity, 0}
}

/*
WrapRecordBuffer creates a new RecordBuffer which is a view over a given byte
slice. The first size slots of the slice are expected to hold sorted records.
*/
func WrapRecordBuffer(factory *RecordFactory, data []byte, capacity int, size int) (*RecordBuffer, error) {
	if len(data) < capacity*factory.RecordLength() {
		return nil, newBufferError(ErrCapacity,
			fmt.Sprintf("%v bytes cannot hold %v records", len(data), capacity))
	} else if size < 0 || size > capacity {
		return nil, newBufferError(ErrOutOfBounds,
			fmt.Sprintf("Size %v for capacity %v", size, capacity))
	}

	return &RecordBuffer{factory, data[:capacity*factory.RecordLength()], capacity, size}, nil
}

/*
Factory returns the record factory of this buffer.
*/
func (rb *RecordBuffer) Factory() *RecordFactory {
	return rb.factory
}

/*
Size returns the number of occupied slots.
*/
func (rb *RecordBuffer) Size() int {
	return rb.size
}

/*
SetSize sets the number of occupied slots.
*/
func (rb *RecordBuffer) SetSize(size int) error {
	if size < 0 || size > rb.capacity {
		return newBufferError(ErrOutOfBounds,
			fmt.Sprintf("Size %v for capacity %v", size, rb.capacity))
	}
	rb.size = size
	return nil
}

/*
MaxSize returns the capacity of this buffer.
*/
func (rb *RecordBuffer) MaxSize() int {
	return rb.capacity
}

/*
IsFull returns if all slots are occupied.
*/
func (rb *RecordBuffer) IsFull() bool {
	return rb.size >= rb.capacity
}

/*
IsEmpty returns if no slot is occupied.
*/
func (rb *RecordBuffer) IsEmpty() bool {
	return rb.size == 0
}

/*
slot returns the bytes of a given slot.
*/
func (rb *RecordBuffer) slot(i int) []byte {
	rl := rb.factory.RecordLength()
	return rb.data[i*rl : (i+1)*rl]
}

/*
keyAt returns the key bytes of a given slot.
*/
func (rb *RecordBuffer) keyAt(i int) []byte {
	rl := rb.factory.RecordLength()
	return rb.data[i*rl : i*rl+rb.factory.KeyLength()]
}

/*
checkRecord checks the shape of a given record.
*/
func (rb *RecordBuffer) checkRecord(r Record) error {
	if r.keyLength != rb.factory.KeyLength() || len(r.data) != rb.factory.RecordLength() {
		return newBufferError(ErrRecordLength,
			fmt.Sprintf("Record %v does not fit %v", r, rb.factory))
	}
	return nil
}

/*
outOfBounds returns an out of bounds error.
*/
func (rb *RecordBuffer) outOfBounds(i int, lower int, upper int) error {
	return newBufferError(ErrOutOfBounds,
		fmt.Sprintf("Index %v not in [%v, %v)", i, lower, upper))
}

/*
Find searches for a given key in the occupied slots. Returns the index of the
record with the same key or -(insertion point)-1 if the key is not present.
*/
func (rb *RecordBuffer) Find(r Record) int {
	return rb.FindKey(r.Key())
}

/*
FindKey searches for a given key in the occupied slots. Returns the index of
the record with the same key or -(insertion point)-1 if the key is not present.
*/
func (rb *RecordBuffer) FindKey(key []byte) int {
	low, high := 0, rb.size-1

	for low <= high {
		mid := int(uint(low+high) >> 1)

		switch c := bytes.Compare(rb.keyAt(mid), key); {
		case c < 0:
			low = mid + 1
		case c > 0:
			high = mid - 1
		default:
			return mid
		}
	}

	return -(low + 1)
}

/*
Get returns the record at a given occupied slot.
*/
func (rb *RecordBuffer) Get(i int) (Record, error) {
	if i < 0 || i >= rb.size {
		return Record{}, rb.outOfBounds(i, 0, rb.size)
	}

	data := make([]byte, rb.factory.RecordLength())
	copy(data, rb.slot(i))

	return Record{data, rb.factory.KeyLength()}, nil
}

/*
GetKey returns the key of the record at a given occupied slot. The returned
slice shares memory with the buffer.
*/
func (rb *RecordBuffer) GetKey(i int) ([]byte, error) {
	if i < 0 || i >= rb.size {
		return nil, rb.outOfBounds(i, 0, rb.size)
	}
	return rb.keyAt(i), nil
}

/*
Set writes a record into a given slot. The order of the records is not
checked and the number of occupied slots is not changed.
*/
func (rb *RecordBuffer) Set(i int, r Record) error {
	if i < 0 || i >= rb.capacity {
		return rb.outOfBounds(i, 0, rb.capacity)
	} else if err := rb.checkRecord(r); err != nil {
		return err
	}

	copy(rb.slot(i), r.data)

	return nil
}

/*
Low returns the record with the lowest key.
*/
func (rb *RecordBuffer) Low() (Record, error) {
	return rb.Get(0)
}

/*
High returns the record with the highest key.
*/
func (rb *RecordBuffer) High() (Record, error) {
	return rb.Get(rb.size - 1)
}

/*
Add inserts a record at its sorted position.
*/
func (rb *RecordBuffer) Add(r Record) error {
	if err := rb.checkRecord(r); err != nil {
		return err
	} else if rb.IsFull() {
		return newBufferError(ErrCapacity, fmt.Sprintf("Buffer holds %v records", rb.size))
	}

	i := rb.Find(r)

	if i >= 0 {
		return newBufferError(ErrDuplicateKey, r.String())
	}

	i = -i - 1

	if err := rb.ShiftUp(i); err != nil {
		return err
	}

	return rb.Set(i, r)
}

/*
ShiftUp moves all occupied slots at and after a given index one position up.
The opened slot is cleared.
*/
func (rb *RecordBuffer) ShiftUp(i int) error {
	if rb.IsFull() {
		return newBufferError(ErrCapacity, fmt.Sprintf("Buffer holds %v records", rb.size))
	} else if i < 0 || i > rb.size {
		return rb.outOfBounds(i, 0, rb.size+1)
	}

	rl := rb.factory.RecordLength()

	copy(rb.data[(i+1)*rl:(rb.size+1)*rl], rb.data[i*rl:rb.size*rl])

	rb.clear(i, i+1)
	rb.size++

	return nil
}

/*
ShiftDown moves all occupied slots after a given index one position down.
The slot at the given index is overwritten and the former top slot is cleared.
*/
func (rb *RecordBuffer) ShiftDown(i int) error {
	if i < 0 || i >= rb.size {
		return rb.outOfBounds(i, 0, rb.size)
	}

	rl := rb.factory.RecordLength()

	copy(rb.data[i*rl:(rb.size-1)*rl], rb.data[(i+1)*rl:rb.size*rl])

	rb.size--
	rb.clear(rb.size, rb.size+1)

	return nil
}

/*
Remove removes the record at a given index.
*/
func (rb *RecordBuffer) Remove(i int) error {
	return rb.ShiftDown(i)
}

/*
RemoveTop removes the record with the highest key.
*/
func (rb *RecordBuffer) RemoveTop() error {
	return rb.ShiftDown(rb.size - 1)
}

/*
Clear zero fills the slots in the range [from, to). The number of occupied
slots is not changed.
*/
func (rb *RecordBuffer) Clear(from int, to int) error {
	if from < 0 || from > rb.capacity {
		return rb.outOfBounds(from, 0, rb.capacity+1)
	} else if to < from || to > rb.capacity {
		return rb.outOfBounds(to, from, rb.capacity+1)
	}

	rb.clear(from, to)

	return nil
}

/*
clear zero fills a range of slots.
*/
func (rb *RecordBuffer) clear(from int, to int) {
	rl := rb.factory.RecordLength()
	d := rb.data[from*rl : to*rl]

	for i := range d {
		d[i] = 0
	}
}

/*
Duplicate returns a deep copy of this buffer which owns its memory.
*/
func (rb *RecordBuffer) Duplicate() *RecordBuffer {
	data := make([]byte, len(rb.data))
	copy(data, rb.data)
	return &RecordBuffer{rb.factory, data, rb.capacity, rb.size}
}

/*
Copy copies a range of occupied slots into another buffer at a given index.
The destination index must not leave a gap after the occupied slots of the
destination. The number of occupied slots of the destination grows if the
copied range extends beyond it.
*/
func (rb *RecordBuffer) Copy(srcStart int, dst *RecordBuffer, dstStart int, length int) error {
	if dst.factory.RecordLength() != rb.factory.RecordLength() ||
		dst.factory.KeyLength() != rb.factory.KeyLength() {
		return newBufferError(ErrRecordLength,
			fmt.Sprintf("Cannot copy from %v to %v", rb.factory, dst.factory))
	} else if length < 0 {
		return rb.outOfBounds(length, 0, rb.size+1)
	} else if srcStart < 0 || srcStart+length > rb.size {
		return rb.outOfBounds(srcStart, 0, rb.size-length+1)
	} else if dstStart < 0 || dstStart > dst.size {
		return dst.outOfBounds(dstStart, 0, dst.size+1)
	} else if dstStart+length > dst.capacity {
		return newBufferError(ErrCapacity,
			fmt.Sprintf("Cannot copy %v records to %v with capacity %v",
				length, dstStart, dst.capacity))
	}

	rl := rb.factory.RecordLength()

	copy(dst.data[dstStart*rl:(dstStart+length)*rl], rb.data[srcStart*rl:(srcStart+length)*rl])

	if dstStart+length > dst.size {
		dst.size = dstStart + length
	}

	return nil
}

/*
String returns a string representation of this buffer.
*/
func (rb *RecordBuffer) String() string {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("RecordBuffer (%v/%v) [", rb.size, rb.capacity))

	for i := 0; i < rb.size; i++ {
		r, _ := rb.Get(i)
		if i > 0 {
			buf.WriteString(" ")
		}
		buf.WriteString(r.String())
	}

	buf.WriteString("]")

	return buf.String()
}
