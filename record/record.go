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
Package record contains fixed width binary records and sorted record buffers.

Record

A record is an immutable sequence of bytes which consists of a key followed
by an optional value. Records are ordered by their key bytes which are
compared lexicographically as unsigned bytes. The value is never used for
comparisons.

RecordFactory

A record factory creates records of a fixed shape (key length and value
length). All records of one data structure are created by the same factory.

RecordBuffer

A record buffer is a capacity bounded, sorted array of records which are
stored contiguously in a byte slice. It is used as the content of tree nodes
and can either own its memory or be a view over the data of a block.
*/
package record

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"devt.de/krotik/common/errorutil"
)

/*
Record data structure
*/
type Record struct {
	data      []byte // Key bytes followed by value bytes
	keyLength int    // Length of the key
}

/*
Key returns the key bytes of this record.
*/
func (r Record) Key() []byte {
	return r.data[:r.keyLength]
}

/*
Value returns the value bytes of this record.
*/
func (r Record) Value() []byte {
	return r.data[r.keyLength:]
}

/*
Bytes returns all bytes of this record. The returned slice must not be
modified.
*/
func (r Record) Bytes() []byte {
	return r.data
}

/*
Len returns the total length of this record.
*/
func (r Record) Len() int {
	return len(r.data)
}

/*
IsNil returns if this record has no data.
*/
func (r Record) IsNil() bool {
	return r.data == nil
}

/*
Compare compares the keys of two records. The result is 0 if both keys are
equal, -1 if this key is smaller and +1 if this key is bigger.
*/
func (r Record) Compare(other Record) int {
	return bytes.Compare(r.Key(), other.Key())
}

/*
SameBytes checks if two records have the same key and the same value.
Unlike Compare this includes the payload. Records with equal keys but
different values are not the same.
*/
func (r Record) SameBytes(other Record) bool {
	return r.keyLength == other.keyLength && bytes.Equal(r.data, other.data)
}

/*
String returns a string representation of this record.
*/
func (r Record) String() string {
	if r.keyLength == len(r.data) {
		return fmt.Sprintf("[%v]", hex.EncodeToString(r.Key()))
	}
	return fmt.Sprintf("[%v:%v]", hex.EncodeToString(r.Key()), hex.EncodeToString(r.Value()))
}

/*
RecordFactory data structure
*/
type RecordFactory struct {
	keyLength   int // Length of record keys
	valueLength int // Length of record values
}

/*
NewRecordFactory creates a new RecordFactory. The key length must be positive
and the value length must not be negative.
*/
func NewRecordFactory(keyLength int, valueLength int) *RecordFactory {
	errorutil.AssertTrue(keyLength > 0 && valueLength >= 0,
		fmt.Sprintf("Invalid record shape: key %v value %v", keyLength, valueLength))

	return &RecordFactory{keyLength, valueLength}
}

/*
KeyLength returns the length of record keys.
*/
func (f *RecordFactory) KeyLength() int {
	return f.keyLength
}

/*
ValueLength returns the length of record values.
*/
func (f *RecordFactory) ValueLength() int {
	return f.valueLength
}

/*
RecordLength returns the total length of records.
*/
func (f *RecordFactory) RecordLength() int {
	return f.keyLength + f.valueLength
}

/*
HasValue returns if records of this factory have a value part.
*/
func (f *RecordFactory) HasValue() bool {
	return f.valueLength > 0
}

/*
KeyFactory returns a factory for records which consist only of the key part
of this factory's records.
*/
func (f *RecordFactory) KeyFactory() *RecordFactory {
	if f.valueLength == 0 {
		return f
	}
	return &RecordFactory{f.keyLength, 0}
}

/*
Create creates a new record from a given key and value. The value must be nil
for factories without a value part.
*/
func (f *RecordFactory) Create(key []byte, value []byte) (Record, error) {
	if len(key) != f.keyLength || len(value) != f.valueLength {
		return Record{}, newBufferError(ErrRecordLength,
			fmt.Sprintf("Expected key %v value %v got key %v value %v",
				f.keyLength, f.valueLength, len(key), len(value)))
	}

	data := make([]byte, f.RecordLength())
	copy(data, key)
	copy(data[f.keyLength:], value)

	return Record{data, f.keyLength}, nil
}

/*
CreateKey creates a new record from a given key. The value part is all zeros.
*/
func (f *RecordFactory) CreateKey(key []byte) (Record, error) {
	if len(key) != f.keyLength {
		return Record{}, newBufferError(ErrRecordLength,
			fmt.Sprintf("Expected key %v got key %v", f.keyLength, len(key)))
	}

	data := make([]byte, f.RecordLength())
	copy(data, key)

	return Record{data, f.keyLength}, nil
}

/*
FromBytes creates a new record from the bytes of a complete record.
*/
func (f *RecordFactory) FromBytes(data []byte) (Record, error) {
	if len(data) != f.RecordLength() {
		return Record{}, newBufferError(ErrRecordLength,
			fmt.Sprintf("Expected %v bytes got %v", f.RecordLength(), len(data)))
	}

	cdata := make([]byte, len(data))
	copy(cdata, data)

	return Record{cdata, f.keyLength}, nil
}

/*
Accepts checks if a given record has the shape of this factory.
*/
func (f *RecordFactory) Accepts(r Record) bool {
	return r.keyLength == f.keyLength && len(r.data) == f.RecordLength()
}

/*
Compare compares the keys of two records.
*/
func (f *RecordFactory) Compare(r1 Record, r2 Record) int {
	return r1.Compare(r2)
}

/*
String returns a string representation of this factory.
*/
func (f *RecordFactory) String() string {
	return fmt.Sprintf("RecordFactory: key %v value %v", f.keyLength, f.valueLength)
}
