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
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync"

	"devt.de/krotik/common/pools"
	"github.com/cespare/xxhash/v2"
)

/*
JournalFileSuffix is the file suffix for journal files
*/
const JournalFileSuffix = "jrn"

/*
JournalHeader is the magic number to identify journal files
*/
var JournalHeader = []byte{0x66, 0x4A}

/*
Size of the fixed part of a journal entry: sequence number, block id and
data length.
*/
const journalEntryHead = SizeLong + SizeLong + SizeInt

/*
Size of the checksum which follows the data of a journal entry
*/
const journalEntryTail = SizeLong

/*
bufferPool is a pool of byte buffers used to encode journal entries.
*/
var bufferPool = pools.NewByteBufferPool()

/*
JournalEntry is a single entry of a journal. It holds the pre-image of
a block before it was changed by the transaction with the given sequence
number.
*/
type JournalEntry struct {
	Seq  uint64 // Sequence number of the transaction
	ID   uint64 // Block id (or component specific location)
	Data []byte // Old content
}

/*
Journal data structure
*/
type Journal struct {
	name    string        // Name of the journal file
	file    *os.File      // Journal file
	writer  *bufio.Writer // Buffered writer for new entries
	entries int           // Number of entries in the journal
	lock    *sync.Mutex
}

/*
NewJournal opens or creates the journal file <name>.jrn. A journal with a bad
magic number is truncated. A torn last entry (from a crash during writing) is
discarded.
*/
func NewJournal(name string) (*Journal, error) {
	filename := fmt.Sprintf("%s.%s", name, JournalFileSuffix)

	file, err := os.OpenFile(filename, os.O_CREATE|os.O_RDWR, 0660)
	if err != nil {
		return nil, err
	}

	j := &Journal{filename, file, bufio.NewWriter(file), 0, &sync.Mutex{}}

	magic := make([]byte, len(JournalHeader))
	n, _ := file.ReadAt(magic, 0)

	if n != len(JournalHeader) || !bytes.Equal(magic, JournalHeader) {

		// Start a new journal if the file is empty or has a bad magic

		if err = j.reset(); err != nil {
			file.Close()
			return nil, err
		}

		return j, nil
	}

	entries, end, err := j.readEntries()
	if err != nil {
		file.Close()
		return nil, err
	}

	j.entries = len(entries)

	// Remove any torn entry at the end and position the file for appending

	if err = file.Truncate(end); err == nil {
		_, err = file.Seek(end, io.SeekStart)
	}

	if err != nil {
		file.Close()
		return nil, err
	}

	return j, nil
}

/*
Name returns the name of the journal file.
*/
func (j *Journal) Name() string {
	return j.name
}

/*
Empty returns if the journal holds no entries.
*/
func (j *Journal) Empty() bool {
	j.lock.Lock()
	defer j.lock.Unlock()

	return j.entries == 0
}

/*
Len returns the number of entries in the journal.
*/
func (j *Journal) Len() int {
	j.lock.Lock()
	defer j.lock.Unlock()

	return j.entries
}

/*
Record appends a new entry to the journal. The entry is buffered until Sync
is called.
*/
func (j *Journal) Record(seq uint64, id uint64, data []byte) error {
	j.lock.Lock()
	defer j.lock.Unlock()

	if j.file == nil {
		return NewStorageFileError(ErrClosed, "", j.name)
	}

	bb := bufferPool.Get().(*bytes.Buffer)
	defer func() {
		bb.Reset()
		bufferPool.Put(bb)
	}()

	head := make([]byte, journalEntryHead)
	binary.BigEndian.PutUint64(head, seq)
	binary.BigEndian.PutUint64(head[SizeLong:], id)
	binary.BigEndian.PutUint32(head[2*SizeLong:], uint32(len(data)))

	bb.Write(head)
	bb.Write(data)

	tail := make([]byte, journalEntryTail)
	binary.BigEndian.PutUint64(tail, xxhash.Sum64(bb.Bytes()))
	bb.Write(tail)

	if _, err := j.writer.Write(bb.Bytes()); err != nil {
		return err
	}

	j.entries++

	return nil
}

/*
Sync writes all buffered entries to disk.
*/
func (j *Journal) Sync() error {
	j.lock.Lock()
	defer j.lock.Unlock()

	return j.sync()
}

/*
sync writes all buffered entries to disk.
*/
func (j *Journal) sync() error {
	if j.file == nil {
		return NewStorageFileError(ErrClosed, "", j.name)
	}

	if err := j.writer.Flush(); err != nil {
		return err
	}

	return j.file.Sync()
}

/*
Entries returns all entries of the journal in the order they were recorded.
Buffered entries are written to disk first.
*/
func (j *Journal) Entries() ([]*JournalEntry, error) {
	j.lock.Lock()
	defer j.lock.Unlock()

	if err := j.sync(); err != nil {
		return nil, err
	}

	entries, _, err := j.readEntries()

	return entries, err
}

/*
readEntries reads all entries from the journal file. Returns the entries and
the end position of the last complete entry.
*/
func (j *Journal) readEntries() ([]*JournalEntry, int64, error) {
	var ret []*JournalEntry

	fi, err := j.file.Stat()
	if err != nil {
		return nil, 0, err
	}

	size := fi.Size()
	pos := int64(len(JournalHeader))
	head := make([]byte, journalEntryHead)
	tail := make([]byte, journalEntryTail)

	for pos < size {

		if n, _ := j.file.ReadAt(head, pos); n != len(head) {
			break // Torn entry header
		}

		dataLen := int64(binary.BigEndian.Uint32(head[2*SizeLong:]))
		entryEnd := pos + journalEntryHead + dataLen + journalEntryTail

		if entryEnd > size {
			break // Torn entry data
		}

		data := make([]byte, dataLen)

		if n, _ := j.file.ReadAt(data, pos+journalEntryHead); int64(n) != dataLen {
			break
		}

		if n, _ := j.file.ReadAt(tail, pos+journalEntryHead+dataLen); n != len(tail) {
			break
		}

		digest := xxhash.New()
		digest.Write(head)
		digest.Write(data)

		if digest.Sum64() != binary.BigEndian.Uint64(tail) {

			// A bad last entry is a torn write - anything else is corruption

			if entryEnd == size {
				break
			}

			return nil, 0, NewStorageFileError(ErrChecksum,
				fmt.Sprintf("Entry at %v", pos), j.name)
		}

		ret = append(ret, &JournalEntry{
			Seq:  binary.BigEndian.Uint64(head),
			ID:   binary.BigEndian.Uint64(head[SizeLong:]),
			Data: data,
		})

		pos = entryEnd
	}

	return ret, pos, nil
}

/*
Truncate removes all entries from the journal.
*/
func (j *Journal) Truncate() error {
	j.lock.Lock()
	defer j.lock.Unlock()

	if j.file == nil {
		return NewStorageFileError(ErrClosed, "", j.name)
	}

	return j.reset()
}

/*
reset discards all buffered data and writes a new empty journal.
*/
func (j *Journal) reset() error {
	j.writer.Reset(j.file)
	j.entries = 0

	if err := j.file.Truncate(0); err != nil {
		return err
	}

	if _, err := j.file.WriteAt(JournalHeader, 0); err != nil {
		return err
	}

	if _, err := j.file.Seek(int64(len(JournalHeader)), io.SeekStart); err != nil {
		return err
	}

	return j.file.Sync()
}

/*
Close syncs and closes the journal file.
*/
func (j *Journal) Close() error {
	j.lock.Lock()
	defer j.lock.Unlock()

	if j.file == nil {
		return nil
	}

	err := j.sync()

	if cerr := j.file.Close(); err == nil {
		err = cerr
	}

	j.file = nil

	return err
}

/*
String returns a string representation of a Journal.
*/
func (j *Journal) String() string {
	j.lock.Lock()
	defer j.lock.Unlock()

	return fmt.Sprintf("Journal: %v (entries:%v)", j.name, j.entries)
}
