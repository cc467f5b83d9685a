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
	"fmt"
	"io"
	"os"
	"sync"

	"devt.de/krotik/common/errorutil"
)

/*
DefaultFileSize is the default maximum size of a physical file (10GB)
*/
const DefaultFileSize = 0x2540BE401

/*
BlockFile data structure
*/
type BlockFile struct {
	name        string     // Name of the logical file
	readonly    bool       // Flag if this file can only be read
	blockSize   int        // Size of a single block
	maxFileSize uint64     // Max size of a physical file on disk
	files       []*os.File // List of physical files
	closed      bool       // Flag if this file was closed
	lock        *sync.Mutex
}

/*
NewDefaultBlockFile creates a new BlockFile with the default block size and
returns a pointer to it.
*/
func NewDefaultBlockFile(name string, readonly bool) (*BlockFile, error) {
	return NewBlockFile(name, DefaultBlockSize, readonly)
}

/*
NewBlockFile creates a new BlockFile and returns a pointer to it. The physical
files are named <name>.0, <name>.1, ...
*/
func NewBlockFile(name string, blockSize int, readonly bool) (*BlockFile, error) {
	if blockSize <= 0 {
		return nil, NewStorageFileError(ErrBlockSize, fmt.Sprint(blockSize), name)
	}

	maxFileSize := uint64(DefaultFileSize)
	maxFileSize -= maxFileSize % uint64(blockSize)

	bf := &BlockFile{name, readonly, blockSize, maxFileSize,
		make([]*os.File, 0), false, &sync.Mutex{}}

	// Make sure the first physical file can be accessed

	if _, err := bf.getFile(0); err != nil {
		return nil, err
	}

	return bf, nil
}

/*
Name returns the name of this BlockFile.
*/
func (bf *BlockFile) Name() string {
	return bf.name
}

/*
BlockSize returns the size of a block in this BlockFile.
*/
func (bf *BlockFile) BlockSize() int {
	return bf.blockSize
}

/*
Readonly returns if this BlockFile can only be read.
*/
func (bf *BlockFile) Readonly() bool {
	return bf.readonly
}

/*
getFile returns the physical file for a given offset. Returns nil if the file
does not exist and this BlockFile is readonly.
*/
func (bf *BlockFile) getFile(offset uint64) (*os.File, error) {
	bf.lock.Lock()
	defer bf.lock.Unlock()

	if bf.closed {
		return nil, NewStorageFileError(ErrClosed, "", bf.name)
	}

	filenumber := int(offset / bf.maxFileSize)

	for i := len(bf.files); i <= filenumber; i++ {
		bf.files = append(bf.files, nil)
	}

	ret := bf.files[filenumber]

	if ret == nil {
		var err error

		// Important not to have os.O_APPEND since we really want
		// to have random access to the file.

		filename := fmt.Sprintf("%s.%d", bf.name, filenumber)

		if bf.readonly {
			if ret, err = os.OpenFile(filename, os.O_RDONLY, 0660); os.IsNotExist(err) {
				return nil, nil
			}
		} else {
			ret, err = os.OpenFile(filename, os.O_CREATE|os.O_RDWR, 0660)
		}

		if err != nil {
			return nil, err
		}

		bf.files[filenumber] = ret
	}

	return ret, nil
}

/*
checkBlock checks that a given block can be used with this file.
*/
func (bf *BlockFile) checkBlock(b *Block) error {
	if b.Data() == nil {
		return NewStorageFileError(ErrNilData, fmt.Sprintf("Block %v", b.ID()), bf.name)
	} else if len(b.Data()) != bf.blockSize {
		return NewStorageFileError(ErrBlockSize, fmt.Sprintf("Block %v has %v bytes",
			b.ID(), len(b.Data())), bf.name)
	}
	return nil
}

/*
ReadBlock fills a given block with data from disk. Blocks which were never
written contain only zeros.
*/
func (bf *BlockFile) ReadBlock(b *Block) error {
	if err := bf.checkBlock(b); err != nil {
		return err
	}

	offset := b.ID() * uint64(bf.blockSize)

	file, err := bf.getFile(offset)
	if err != nil {
		return err
	}

	data := b.Data()
	n := 0

	if file != nil {
		n, err = file.ReadAt(data, int64(offset%bf.maxFileSize))
		if err != nil && err != io.EOF {
			return err
		}
	}

	for i := n; i < len(data); i++ {
		data[i] = 0
	}

	b.SetPageView(nil)
	b.ClearDirty()

	return nil
}

/*
WriteBlock writes a given block to disk.
*/
func (bf *BlockFile) WriteBlock(b *Block) error {
	if bf.readonly {
		return NewStorageFileError(ErrReadonly, fmt.Sprintf("Block %v", b.ID()), bf.name)
	} else if err := bf.checkBlock(b); err != nil {
		return err
	}

	offset := b.ID() * uint64(bf.blockSize)

	file, err := bf.getFile(offset)
	if err != nil {
		return err
	}

	_, err = file.WriteAt(b.Data(), int64(offset%bf.maxFileSize))

	return err
}

/*
Size returns the number of blocks up to the last block which is stored on disk.
*/
func (bf *BlockFile) Size() (uint64, error) {
	bf.lock.Lock()
	defer bf.lock.Unlock()

	var size uint64

	for i := 0; ; i++ {
		fi, err := os.Stat(fmt.Sprintf("%s.%d", bf.name, i))
		if os.IsNotExist(err) {
			if i >= len(bf.files) {
				break
			}
			continue
		} else if err != nil {
			return 0, err
		}

		size = uint64(i)*bf.maxFileSize + uint64(fi.Size())
	}

	return size / uint64(bf.blockSize), nil
}

/*
Sync syncs all physical files of this BlockFile to disk.
*/
func (bf *BlockFile) Sync() error {
	bf.lock.Lock()
	defer bf.lock.Unlock()

	if bf.readonly {
		return nil
	}

	ce := errorutil.NewCompositeError()

	for _, file := range bf.files {
		if file != nil {
			if err := file.Sync(); err != nil {
				ce.Add(err)
			}
		}
	}

	if ce.HasErrors() {
		return ce
	}

	return nil
}

/*
Close syncs and closes all physical files of this BlockFile.
*/
func (bf *BlockFile) Close() error {
	if err := bf.Sync(); err != nil {
		return err
	}

	bf.lock.Lock()
	defer bf.lock.Unlock()

	ce := errorutil.NewCompositeError()

	for _, file := range bf.files {
		if file != nil {
			if err := file.Close(); err != nil {
				ce.Add(err)
			}
		}
	}

	bf.files = make([]*os.File, 0)
	bf.closed = true

	if ce.HasErrors() {
		return ce
	}

	return nil
}

/*
String returns a string representation of a BlockFile.
*/
func (bf *BlockFile) String() string {
	return fmt.Sprintf("BlockFile: %v (readonly:%v blockSize:%v maxFileSize:%v)",
		bf.name, bf.readonly, bf.blockSize, bf.maxFileSize)
}
