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
	"os"
	"testing"
)

func TestJournal(t *testing.T) {
	if _, err := NewJournal(DBDir + "/" + InvalidFileName); err == nil {
		t.Error("Invalid name should cause an error")
		return
	}

	j, err := NewJournal(DBDir + "/journal1")
	if err != nil {
		t.Error(err)
		return
	}

	if j.Name() != DBDir+"/journal1.jrn" || !j.Empty() {
		t.Error("Unexpected journal:", j)
		return
	}

	if err := j.Record(1, 5, []byte("old5")); err != nil {
		t.Error(err)
		return
	}

	if err := j.Record(1, 7, []byte("old7!")); err != nil {
		t.Error(err)
		return
	}

	if j.Empty() || j.Len() != 2 {
		t.Error("Unexpected journal:", j)
		return
	}

	entries, err := j.Entries()
	if err != nil || len(entries) != 2 {
		t.Error("Unexpected result:", entries, err)
		return
	}

	if entries[0].Seq != 1 || entries[0].ID != 5 || string(entries[0].Data) != "old5" ||
		entries[1].Seq != 1 || entries[1].ID != 7 || string(entries[1].Data) != "old7!" {
		t.Error("Unexpected entries:", entries[0], entries[1])
		return
	}

	if j.String() != "Journal: blockfiletest/journal1.jrn (entries:2)" {
		t.Error("Unexpected string output:", j.String())
		return
	}

	if err := j.Close(); err != nil {
		t.Error(err)
		return
	}

	if err := j.Record(1, 1, nil); err == nil {
		t.Error("Closed journal should not accept entries")
		return
	}

	// Reopen the journal - entries must still be there

	j, err = NewJournal(DBDir + "/journal1")
	if err != nil {
		t.Error(err)
		return
	}

	if j.Len() != 2 {
		t.Error("Unexpected number of entries:", j.Len())
		return
	}

	if err := j.Truncate(); err != nil {
		t.Error(err)
		return
	}

	if !j.Empty() {
		t.Error("Journal should be empty")
		return
	}

	if entries, err := j.Entries(); err != nil || len(entries) != 0 {
		t.Error("Unexpected result:", entries, err)
		return
	}

	j.Record(2, 1, []byte("a"))
	j.Close()

	if fi, _ := os.Stat(DBDir + "/journal1.jrn"); fi.Size() != 2+20+1+8 {
		t.Error("Unexpected file size:", fi.Size())
		return
	}
}

func TestJournalTornTail(t *testing.T) {
	j, err := NewJournal(DBDir + "/journal2")
	if err != nil {
		t.Error(err)
		return
	}

	j.Record(3, 1, []byte("first"))
	j.Record(3, 2, []byte("second"))
	j.Close()

	// Cut the last entry in half

	fi, _ := os.Stat(DBDir + "/journal2.jrn")
	os.Truncate(DBDir+"/journal2.jrn", fi.Size()-5)

	j, err = NewJournal(DBDir + "/journal2")
	if err != nil {
		t.Error(err)
		return
	}

	entries, err := j.Entries()
	if err != nil || len(entries) != 1 || string(entries[0].Data) != "first" {
		t.Error("Unexpected result:", entries, err)
		return
	}

	// New entries are appended after the last complete entry

	j.Record(4, 3, []byte("third"))

	entries, err = j.Entries()
	if err != nil || len(entries) != 2 || string(entries[1].Data) != "third" {
		t.Error("Unexpected result:", entries, err)
		return
	}

	j.Close()

	// Corrupt the data of the first entry

	f, _ := os.OpenFile(DBDir+"/journal2.jrn", os.O_RDWR, 0660)
	f.WriteAt([]byte("X"), 2+20)
	f.Close()

	if _, err = NewJournal(DBDir + "/journal2"); err == nil ||
		err.(*StorageFileError).Type != ErrChecksum {
		t.Error("Unexpected error:", err)
		return
	}
}

func TestJournalBadMagic(t *testing.T) {
	f, _ := os.Create(DBDir + "/journal3.jrn")
	f.Write([]byte("garbage"))
	f.Close()

	j, err := NewJournal(DBDir + "/journal3")
	if err != nil {
		t.Error(err)
		return
	}
	defer j.Close()

	if !j.Empty() {
		t.Error("Journal with bad magic should be reset")
		return
	}

	if fi, _ := os.Stat(DBDir + "/journal3.jrn"); fi.Size() != 2 {
		t.Error("Unexpected file size:", fi.Size())
		return
	}
}
