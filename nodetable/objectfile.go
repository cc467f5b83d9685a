/*
 * TDB
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package nodetable

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"devt.de/krotik/common/errorutil"
	"devt.de/krotik/common/logutil"
	"devt.de/krotik/common/pools"
	"devt.de/krotik/tdb/storage/file"
	"devt.de/krotik/tdb/txn"
	"github.com/golang/snappy"
	"github.com/pkg/errors"
)

/*
objectFileHeader is the magic number at the start of an object file
*/
var objectFileHeader = []byte{0x66, 0x4F}

/*
Layout of an object file entry:

	flags   byte
	length  uint32
	payload [length]byte
*/
const entryHead = 5

/*
flagSnappy marks a snappy compressed payload
*/
const flagSnappy = 0x01

/*
compressThreshold is the minimal payload size which is compressed
*/
const compressThreshold = 32

/*
bufferPool holds the buffers of pending entries.
*/
var bufferPool = pools.NewByteBufferPool()

/*
ObjectFile is an append-only log of encoded terms. An entry is never changed
once it was committed.
*/
type ObjectFile struct {
	name     string         // Resource name
	file     *os.File       // Log file
	journal  *file.Journal  // Journal holding the length before a commit
	length   int64          // Committed length of the log
	compress bool           // Flag if new entries should be compressed
	logger   logutil.Logger // Logger for recovery
	lock     *sync.RWMutex  // Protects length and file
}

/*
NewObjectFile opens or creates an object file in a given directory.
*/
func NewObjectFile(dir string, name string, compress bool, logger logutil.Logger) (*ObjectFile, error) {
	f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_RDWR, 0660)
	if err != nil {
		return nil, err
	}

	fi, err := f.Stat()
	if err == nil {
		if fi.Size() == 0 {
			if _, err = f.WriteAt(objectFileHeader, 0); err == nil {
				err = f.Sync()
			}
		} else {
			magic := make([]byte, len(objectFileHeader))
			if _, err = f.ReadAt(magic, 0); err == nil && !bytes.Equal(magic, objectFileHeader) {
				err = newTableError(ErrObjectFile, fmt.Sprintf("Bad magic in %v", f.Name()))
			}
		}
	}

	var journal *file.Journal

	if err == nil {
		journal, err = file.NewJournal(filepath.Join(dir, name))
	}

	if err != nil {
		f.Close()
		return nil, err
	}

	of := &ObjectFile{name, f, journal, 0, compress, logger, &sync.RWMutex{}}

	return of, of.updateLength()
}

/*
updateLength reads the committed length from the file size.
*/
func (of *ObjectFile) updateLength() error {
	fi, err := of.file.Stat()
	if err == nil {
		of.lock.Lock()
		of.length = fi.Size()
		of.lock.Unlock()
	}
	return err
}

/*
Name returns the resource name of this object file.
*/
func (of *ObjectFile) Name() string {
	return of.name
}

/*
Length returns the committed length of this object file.
*/
func (of *ObjectFile) Length() int64 {
	of.lock.RLock()
	defer of.lock.RUnlock()

	return of.length
}

/*
Begin creates the component of this object file for a given transaction.
*/
func (of *ObjectFile) Begin(tx *txn.Transaction) (txn.Component, error) {
	oc := &objectComponent{of: of, base: of.Length()}

	if tx.Mode() == txn.ModeWrite {

		// A commit which could not truncate the journal leaves stale entries

		if !of.journal.Empty() {
			if err := of.journal.Truncate(); err != nil {
				return nil, err
			}
		}

		oc.pending = bufferPool.Get().(*bytes.Buffer)
		oc.pending.Reset()
	}

	return oc, nil
}

/*
Recover truncates the object file if it was extended by an uncommitted
transaction.
*/
func (of *ObjectFile) Recover(lastCommitted uint64) (int, error) {
	n := 0

	if !of.journal.Empty() {
		entries, err := of.journal.Entries()
		if err != nil {
			return 0, err
		}

		// Entries of committed transactions are stale; the oldest entry of
		// an uncommitted transaction holds the committed length

		for _, e := range entries {
			if e.Seq <= lastCommitted {
				continue
			}

			length := int64(binary.BigEndian.Uint64(e.Data))

			if err := of.truncate(length); err != nil {
				return 0, err
			}

			of.logger.Info(fmt.Sprintf("Truncated %v to %v bytes from uncommitted transaction %v",
				of.name, length, e.Seq))

			n = 1

			break
		}

		if err := of.journal.Truncate(); err != nil {
			return n, err
		}
	}

	return n, of.updateLength()
}

/*
Close closes the object file and its journal.
*/
func (of *ObjectFile) Close() error {
	of.lock.Lock()
	defer of.lock.Unlock()

	ce := errorutil.NewCompositeError()

	if err := of.journal.Close(); err != nil {
		ce.Add(err)
	}
	if err := of.file.Close(); err != nil {
		ce.Add(err)
	}

	if ce.HasErrors() {
		return ce
	}

	return nil
}

/*
read reads the payload of the entry at a given offset. Only entries below a
given limit can be read.
*/
func (of *ObjectFile) read(id NodeID, limit int64) ([]byte, error) {
	of.lock.RLock()
	defer of.lock.RUnlock()

	offset := int64(id)

	if offset < int64(len(objectFileHeader)) || offset+entryHead > limit {
		return nil, newTableError(ErrUnknownNodeID, fmt.Sprint(id))
	}

	head := make([]byte, entryHead)
	if _, err := of.file.ReadAt(head, offset); err != nil {
		return nil, err
	}

	l := int64(binary.BigEndian.Uint32(head[1:]))
	if offset+entryHead+l > limit {
		return nil, newTableError(ErrObjectFile, fmt.Sprintf("Entry %v exceeds the log", id))
	}

	payload := make([]byte, l)
	if _, err := of.file.ReadAt(payload, offset+entryHead); err != nil && err != io.EOF {
		return nil, err
	}

	return decodePayload(head[0], payload)
}

/*
append writes new entries at a given offset and syncs the file.
*/
func (of *ObjectFile) append(offset int64, data []byte) error {
	of.lock.Lock()
	defer of.lock.Unlock()

	if offset != of.length {
		return newTableError(ErrObjectFile, fmt.Sprintf("Append at %v but length is %v", offset, of.length))
	}

	if _, err := of.file.WriteAt(data, offset); err != nil {
		return err
	}

	if err := of.file.Sync(); err != nil {
		return err
	}

	of.length = offset + int64(len(data))

	return nil
}

/*
truncate cuts the object file to a given length.
*/
func (of *ObjectFile) truncate(length int64) error {
	of.lock.Lock()
	defer of.lock.Unlock()

	if err := of.file.Truncate(length); err != nil {
		return err
	}

	of.length = length

	return of.file.Sync()
}

/*
String returns a string representation of this object file.
*/
func (of *ObjectFile) String() string {
	return fmt.Sprintf("ObjectFile: %v (length:%v compress:%v)", of.name, of.Length(), of.compress)
}

/*
encodeEntry writes a new entry for a given payload.
*/
func encodeEntry(buf *bytes.Buffer, payload []byte, compress bool) {
	var flags byte

	if compress && len(payload) >= compressThreshold {
		if c := snappy.Encode(nil, payload); len(c) < len(payload) {
			payload = c
			flags |= flagSnappy
		}
	}

	head := make([]byte, entryHead)
	head[0] = flags
	binary.BigEndian.PutUint32(head[1:], uint32(len(payload)))

	buf.Write(head)
	buf.Write(payload)
}

/*
decodePayload returns the uncompressed payload of an entry.
*/
func decodePayload(flags byte, payload []byte) ([]byte, error) {
	if flags&^flagSnappy != 0 {
		return nil, newTableError(ErrObjectFile, fmt.Sprintf("Unknown entry flags %v", flags))
	} else if flags&flagSnappy == 0 {
		return payload, nil
	}

	res, err := snappy.Decode(nil, payload)
	if err != nil {
		return nil, errors.Wrap(newTableError(ErrObjectFile, err.Error()), "Could not decompress entry")
	}

	return res, nil
}

/*
objectComponent is the component of an object file in one transaction. New
entries are kept in memory until the transaction commits.
*/
type objectComponent struct {
	of      *ObjectFile   // Object file of this component
	base    int64         // Committed length when the transaction started
	pending *bytes.Buffer // New entries (nil for read transactions)
}

/*
Name returns the resource name of this component.
*/
func (oc *objectComponent) Name() string {
	return oc.of.name
}

/*
Append adds a new entry and returns its id.
*/
func (oc *objectComponent) Append(payload []byte) (NodeID, error) {
	if oc.pending == nil {
		return NodeIDNone, newTableError(ErrReadOnly, oc.of.name)
	}

	id := NodeID(oc.base + int64(oc.pending.Len()))

	encodeEntry(oc.pending, payload, oc.of.compress)

	return id, nil
}

/*
Read reads the payload of an entry. Entries of this transaction are read
from memory.
*/
func (oc *objectComponent) Read(id NodeID) ([]byte, error) {
	offset := int64(id)

	if offset < oc.base {
		return oc.of.read(id, oc.base)
	} else if oc.pending == nil {
		return nil, newTableError(ErrUnknownNodeID, fmt.Sprint(id))
	}

	data := oc.pending.Bytes()
	offset -= oc.base

	if offset+entryHead > int64(len(data)) {
		return nil, newTableError(ErrUnknownNodeID, fmt.Sprint(id))
	}

	l := int64(binary.BigEndian.Uint32(data[offset+1:]))

	if offset+entryHead+l > int64(len(data)) {
		return nil, newTableError(ErrUnknownNodeID, fmt.Sprint(id))
	}

	payload := data[offset+entryHead : offset+entryHead+l]

	return decodePayload(data[offset], append([]byte(nil), payload...))
}

/*
Pending returns the number of bytes which were appended in this transaction.
*/
func (oc *objectComponent) Pending() int {
	if oc.pending == nil {
		return 0
	}
	return oc.pending.Len()
}

/*
Prepare records the committed length of the object file.
*/
func (oc *objectComponent) Prepare(seq uint64) error {
	if oc.Pending() == 0 {
		return nil
	}

	length := make([]byte, file.SizeLong)
	binary.BigEndian.PutUint64(length, uint64(oc.base))

	if err := oc.of.journal.Record(seq, 0, length); err != nil {
		return err
	}

	return oc.of.journal.Sync()
}

/*
Apply appends all new entries to the object file.
*/
func (oc *objectComponent) Apply() error {
	if oc.Pending() == 0 {
		return nil
	}
	return oc.of.append(oc.base, oc.pending.Bytes())
}

/*
Finish removes the recorded length.
*/
func (oc *objectComponent) Finish() error {
	oc.release()

	if oc.of.journal.Empty() {
		return nil
	}

	return oc.of.journal.Truncate()
}

/*
Abort drops all new entries.
*/
func (oc *objectComponent) Abort() error {
	oc.release()
	return nil
}

/*
Undo truncates the object file to its committed length.
*/
func (oc *objectComponent) Undo() error {
	oc.release()

	if err := oc.of.truncate(oc.base); err != nil {
		return err
	}

	return oc.of.journal.Truncate()
}

/*
release returns the buffer of new entries to the pool.
*/
func (oc *objectComponent) release() {
	if oc.pending != nil {
		bufferPool.Put(oc.pending)
		oc.pending = nil
	}
}
