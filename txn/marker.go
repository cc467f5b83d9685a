/*
 * TDB
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package txn

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"

	"devt.de/krotik/common/fileutil"
	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"
)

/*
markerMagic is the magic number at the start of the commit marker file
*/
var markerMagic = []byte{0x66, 0x54}

/*
markerSize is the size of the commit marker file (magic, seq and checksum)
*/
const markerSize = 2 + 8 + 8

/*
readMarker reads the last committed sequence number from a commit marker
file. A missing file means nothing was committed yet.
*/
func readMarker(path string) (uint64, error) {
	if ok, err := fileutil.PathExists(path); err != nil || !ok {
		return 0, err
	}

	data, err := ioutil.ReadFile(path)
	if err != nil {
		return 0, err
	}

	if len(data) != markerSize || !bytes.Equal(data[:2], markerMagic) {
		return 0, newTransactionError(ErrMarker, path)
	}

	seq := binary.BigEndian.Uint64(data[2:10])

	if xxhash.Sum64(data[:10]) != binary.BigEndian.Uint64(data[10:]) {
		return 0, newTransactionError(ErrMarker, fmt.Sprintf("Checksum mismatch in %v", path))
	}

	return seq, nil
}

/*
writeMarker atomically replaces the commit marker file. The new marker is
written and synced to a temporary file which is then renamed. The
directory is synced afterwards so the rename itself is durable.
*/
func writeMarker(path string, seq uint64) error {
	data := make([]byte, markerSize)

	copy(data, markerMagic)
	binary.BigEndian.PutUint64(data[2:10], seq)
	binary.BigEndian.PutUint64(data[10:], xxhash.Sum64(data[:10]))

	tmp := path + ".tmp"

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0660)
	if err != nil {
		return errors.Wrap(err, "Could not create commit marker")
	}

	if _, err = f.Write(data); err == nil {
		err = f.Sync()
	}

	if cerr := f.Close(); err == nil {
		err = cerr
	}

	if err == nil {
		err = os.Rename(tmp, path)
	}

	if err == nil {
		err = syncDir(filepath.Dir(path))
	}

	return errors.Wrap(err, "Could not write commit marker")
}

/*
syncDir flushes the directory entries of a given directory to disk.
*/
func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}

	err = d.Sync()

	if cerr := d.Close(); err == nil {
		err = cerr
	}

	return err
}
