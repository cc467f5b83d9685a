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
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"devt.de/krotik/common/fileutil"
	"devt.de/krotik/tdb/storage"
	"devt.de/krotik/tdb/storage/file"
	"devt.de/krotik/tdb/storage/paging/view"
	"github.com/pkg/errors"
)

const DBDir = "txntest"

func TestMain(m *testing.M) {
	flag.Parse()

	// Setup
	if res, _ := fileutil.PathExists(DBDir); res {
		os.RemoveAll(DBDir)
	}

	err := os.Mkdir(DBDir, 0770)
	if err != nil {
		fmt.Print("Could not create test directory:", err.Error())
		os.Exit(1)
	}

	// Run the tests
	res := m.Run()

	// Teardown
	err = os.RemoveAll(DBDir)
	if err != nil {
		fmt.Print("Could not remove test directory:", err.Error())
	}

	os.Exit(res)
}

/*
testDir creates a fresh directory for a test.
*/
func testDir(t *testing.T, name string) string {
	dir := filepath.Join(DBDir, name)
	if err := os.MkdirAll(dir, 0770); err != nil {
		t.Fatal(err)
	}
	return dir
}

/*
newTestManager creates a transaction manager with one registered memory
block store.
*/
func newTestManager(t *testing.T, dir string, mbs *storage.MemoryBlockStore) *TransactionManager {
	tm, err := NewTransactionManager(dir, Config{})
	if err != nil {
		t.Fatal(err)
	}

	if err := tm.RegisterStore("test", mbs); err != nil {
		t.Fatal(err)
	}

	if err := tm.Recover(); err != nil {
		t.Fatal(err)
	}

	return tm
}

/*
writeValue writes a value into a given block (the block is allocated if
the id is 0) and returns the block id.
*/
func writeValue(t *testing.T, tx *Transaction, id uint64, val uint64) uint64 {
	bm, err := tx.BlockManager("test")
	if err != nil {
		t.Fatal(err)
	}

	if id == 0 {
		b, err := bm.Allocate(view.TypeLeafPage)
		if err != nil {
			t.Fatal(err)
		}
		b.WriteUInt64(view.OffsetData, val)
		bm.Release(b)

		return b.ID()
	}

	b, err := bm.GetWrite(id)
	if err != nil {
		t.Fatal(err)
	}
	b.WriteUInt64(view.OffsetData, val)
	bm.Release(b)

	return id
}

/*
readValue reads the value of a given block in a new read transaction.
*/
func readValue(t *testing.T, tm *TransactionManager, id uint64) uint64 {
	tx, err := tm.Begin(ModeRead)
	if err != nil {
		t.Fatal(err)
	}
	defer tx.Commit()

	bm, err := tx.BlockManager("test")
	if err != nil {
		t.Fatal(err)
	}

	b, err := bm.GetRead(id)
	if err != nil {
		t.Fatal(err)
	}
	defer bm.Release(b)

	return b.ReadUInt64(view.OffsetData)
}

func journalOf(tm *TransactionManager) *blockResource {
	res, _, _ := tm.resource("test")
	return res.(*blockResource)
}

func TestCommitAndAbort(t *testing.T) {
	dir := testDir(t, "commit")
	mbs := storage.NewMemoryBlockStore("test", 128)
	tm := newTestManager(t, dir, mbs)

	tx, _ := tm.Begin(ModeWrite)

	if tx.Seq() != 1 || tx.Mode() != ModeWrite || tx.State() != StateActive || !tx.IsActive() {
		t.Error("Unexpected transaction:", tx)
		return
	}

	id := writeValue(t, tx, 0, 42)

	bm, _ := tx.BlockManager("test")
	bm.SetRoot(0, id)

	// Nothing reaches the base store before commit

	if mbs.Contains(id) {
		t.Error("Block should not be in the base store yet")
		return
	}

	if err := tx.Commit(); err != nil {
		t.Error(err)
		return
	}

	if tx.State() != StateCommitted || tm.LastCommitted() != 1 || tm.Active() != 0 {
		t.Error("Unexpected state after commit:", tx, tm)
		return
	}

	if !mbs.Contains(id) || !journalOf(tm).journal.Empty() {
		t.Error("Unexpected base store or journal after commit")
		return
	}

	if ok, _ := fileutil.PathExists(filepath.Join(dir, MarkerFile)); !ok {
		t.Error("Commit marker should exist")
		return
	}

	if v := readValue(t, tm, id); v != 42 {
		t.Error("Unexpected value:", v)
		return
	}

	// Abort a transaction which already moved blocks into its journaled view

	tx, _ = tm.Begin(ModeWrite)

	writeValue(t, tx, id, 43)
	id2 := writeValue(t, tx, 0, 44)

	bm, _ = tx.BlockManager("test")
	bm.SetRoot(1, id2)

	if err := bm.Sync(); err != nil {
		t.Error(err)
		return
	}

	if journalOf(tm).journal.Empty() {
		t.Error("Journal should hold pre-images")
		return
	}

	if err := tx.Abort(); err != nil {
		t.Error(err)
		return
	}

	if tx.State() != StateAborted || !journalOf(tm).journal.Empty() || mbs.Contains(id2) {
		t.Error("Unexpected state after abort:", tx)
		return
	}

	// Abort is safe to retry - commit is not possible anymore

	if err := tx.Abort(); err != nil {
		t.Error(err)
		return
	}

	if err := tx.Commit(); !IsError(err, ErrNotActive) {
		t.Error("Unexpected error:", err)
		return
	}

	if v := readValue(t, tm, id); v != 42 {
		t.Error("Unexpected value:", v)
		return
	}

	rtx, _ := tm.Begin(ModeRead)
	rbm, _ := rtx.BlockManager("test")

	if rbm.Root(0) != id || rbm.Root(1) != 0 || rtx.Seq() != 1 {
		t.Error("Unexpected roots:", rbm.Root(0), rbm.Root(1), rtx.Seq())
		return
	}

	if err := tm.Close(); !IsError(err, ErrInUse) {
		t.Error("Unexpected error:", err)
		return
	}

	rtx.Commit()

	if err := tm.Close(); err != nil {
		t.Error(err)
		return
	}

	if _, err := tm.Begin(ModeRead); !IsError(err, ErrClosed) {
		t.Error("Unexpected error:", err)
		return
	}

	// The committed state survives a restart

	tm = newTestManager(t, dir, mbs)

	if tm.LastCommitted() != 1 || readValue(t, tm, id) != 42 {
		t.Error("Unexpected state after restart:", tm)
		return
	}
}

func TestResources(t *testing.T) {
	dir := testDir(t, "resources")
	tm := newTestManager(t, dir, storage.NewMemoryBlockStore("test", 128))

	if err := tm.RegisterStore("test", storage.NewMemoryBlockStore("test", 128)); !IsError(err, ErrDuplicateResource) {
		t.Error("Unexpected error:", err)
		return
	}

	tm.RegisterStore("test2", storage.NewMemoryBlockStore("test2", 128))

	if res := fmt.Sprint(tm.Resources()); res != "[test test2]" {
		t.Error("Unexpected resources:", res)
		return
	}

	tx, _ := tm.Begin(ModeRead)

	if _, err := tx.BlockManager("foo"); err == nil || err.Error() != "Missing resource (foo)" {
		t.Error("Unexpected error:", err)
		return
	}

	// Read transactions cannot write

	bm, _ := tx.BlockManager("test")

	if _, err := bm.Allocate(view.TypeLeafPage); err == nil {
		t.Error("Allocation in a read transaction should fail")
		return
	}

	if err := tx.AddComponent(&testComponent{name: "foo"}); !IsError(err, ErrReadOnly) {
		t.Error("Unexpected error:", err)
		return
	}

	tx.Commit()

	if _, err := tx.Resource("test"); !IsError(err, ErrNotActive) {
		t.Error("Unexpected error:", err)
		return
	}

	// Components are committed in registration order followed by explicitly
	// added components

	var calls []string

	tx, _ = tm.Begin(ModeWrite)
	tx.AddComponent(&testComponent{name: "extra", calls: &calls})
	tx.BlockManager("test2")
	tx.BlockManager("test")

	cs := tx.sortedComponents()
	if len(cs) != 3 || cs[0].Name() != "test" || cs[1].Name() != "test2" || cs[2].Name() != "extra" {
		t.Error("Unexpected component order:", cs)
		return
	}

	if err := tx.Commit(); err != nil {
		t.Error(err)
		return
	}

	if res := fmt.Sprint(calls); res != "[extra.Prepare(1) extra.Apply extra.Finish]" {
		t.Error("Unexpected calls:", res)
		return
	}

	calls = nil

	tx, _ = tm.Begin(ModeWrite)
	tx.AddComponent(&testComponent{name: "extra", calls: &calls})
	tx.Abort()

	if res := fmt.Sprint(calls); res != "[extra.Abort]" {
		t.Error("Unexpected calls:", res)
		return
	}
}

func TestCommitFailure(t *testing.T) {
	dir := testDir(t, "failure")
	mbs := storage.NewMemoryBlockStore("test", 128)
	tm := newTestManager(t, dir, mbs)

	tx, _ := tm.Begin(ModeWrite)
	id := writeValue(t, tx, 0, 42)
	tx.Commit()

	// A failing component after the block store undoes the applied blocks

	var calls []string

	tx, _ = tm.Begin(ModeWrite)
	writeValue(t, tx, id, 43)
	id2 := writeValue(t, tx, 0, 44)
	tx.AddComponent(&testComponent{name: "extra", calls: &calls, failApply: true})

	err := tx.Commit()

	if !IsError(err, ErrCommitFailed) {
		t.Error("Unexpected error:", err)
		return
	}

	if terr := errors.Cause(err).(*TransactionError); terr.Detail != "Apply of extra failed: Apply error" {
		t.Error("Unexpected error detail:", terr.Detail)
		return
	}

	if res := fmt.Sprint(calls); res != "[extra.Prepare(2) extra.Apply extra.Undo]" {
		t.Error("Unexpected calls:", res)
		return
	}

	if tx.State() != StateAborted || tx.Abort() != nil || tm.LastCommitted() != 1 {
		t.Error("Unexpected state after failed commit:", tx)
		return
	}

	// The block which was allocated in the failed transaction was written to
	// the base store but restored to its pre-image

	if !mbs.Contains(id2) || !journalOf(tm).journal.Empty() {
		t.Error("Unexpected base store or journal after undo")
		return
	}

	if v := readValue(t, tm, id); v != 42 {
		t.Error("Unexpected value:", v)
		return
	}

	rtx, _ := tm.Begin(ModeRead)
	rbm, _ := rtx.BlockManager("test")
	_, err = rbm.GetRead(id2)
	rtx.Commit()

	if err == nil {
		t.Error("Block of failed transaction should not be allocated")
		return
	}

	// The manager is still usable

	tx, err = tm.Begin(ModeWrite)
	if err != nil {
		t.Error(err)
		return
	}

	writeValue(t, tx, id, 45)

	if err := tx.Commit(); err != nil {
		t.Error(err)
		return
	}

	if v := readValue(t, tm, id); v != 45 || tm.LastCommitted() != 2 {
		t.Error("Unexpected value:", v, tm.LastCommitted())
		return
	}
}

func TestUnrecoverable(t *testing.T) {
	dir := testDir(t, "unrecoverable")
	mbs := storage.NewMemoryBlockStore("test", 128)
	tm := newTestManager(t, dir, mbs)

	tx, _ := tm.Begin(ModeWrite)
	id := writeValue(t, tx, 0, 42)
	tx.Commit()

	// Writes to the block fail during apply and during undo

	mbs.AccessMap[id] = storage.AccessWriteError

	tx, _ = tm.Begin(ModeWrite)
	writeValue(t, tx, id, 43)

	err := tx.Commit()

	if !IsError(err, ErrUnrecoverable) {
		t.Error("Unexpected error:", err)
		return
	}

	if _, err := tm.Begin(ModeRead); !IsError(err, ErrUnrecoverable) {
		t.Error("Unexpected error:", err)
		return
	}

	// The journal survives for the next recovery

	if journalOf(tm).journal.Empty() {
		t.Error("Journal should not be empty")
		return
	}

	delete(mbs.AccessMap, id)

	tm2 := newTestManager(t, dir, mbs)

	if v := readValue(t, tm2, id); v != 42 {
		t.Error("Unexpected value after recovery:", v)
		return
	}
}

func TestRecovery(t *testing.T) {
	dir := testDir(t, "recovery")
	mbs := storage.NewMemoryBlockStore("test", 128)
	tm := newTestManager(t, dir, mbs)

	tx, _ := tm.Begin(ModeWrite)
	id := writeValue(t, tx, 0, 42)
	tx.Commit()

	// Simulate a crash after the changes were applied but before the commit
	// marker was written

	tx, _ = tm.Begin(ModeWrite)
	writeValue(t, tx, id, 99)

	c, _ := tx.Resource("test")

	if err := c.(Flusher).Flush(); err != nil {
		t.Error(err)
		return
	}
	if err := c.Prepare(tx.Seq()); err != nil {
		t.Error(err)
		return
	}
	if err := c.Apply(); err != nil {
		t.Error(err)
		return
	}

	// The base store now holds the uncommitted value

	tm2, err := NewTransactionManager(dir, Config{})
	if err != nil {
		t.Error(err)
		return
	}
	tm2.RegisterStore("test", mbs)

	if v := readValue(t, tm2, id); v != 99 {
		t.Error("Unexpected value before recovery:", v)
		return
	}

	if err := tm2.Recover(); err != nil {
		t.Error(err)
		return
	}

	if v := readValue(t, tm2, id); v != 42 || tm2.LastCommitted() != 1 {
		t.Error("Unexpected value after recovery:", v)
		return
	}

	// Simulate a crash after the commit marker was written but before the
	// journal was truncated

	tx, _ = tm2.Begin(ModeWrite)
	writeValue(t, tx, id, 77)

	c, _ = tx.Resource("test")
	c.(Flusher).Flush()
	c.Prepare(tx.Seq())
	c.Apply()

	if err := writeMarker(filepath.Join(dir, MarkerFile), tx.Seq()); err != nil {
		t.Error(err)
		return
	}

	tm3 := newTestManager(t, dir, mbs)

	if v := readValue(t, tm3, id); v != 77 || tm3.LastCommitted() != 2 {
		t.Error("Unexpected value after recovery:", v, tm3.LastCommitted())
		return
	}

	if !journalOf(tm3).journal.Empty() {
		t.Error("Stale journal should have been removed")
		return
	}
}

func TestRecoveryStaleJournal(t *testing.T) {
	dir := testDir(t, "stalejournal")
	mbs := storage.NewMemoryBlockStore("test", 128)
	tm := newTestManager(t, dir, mbs)

	tx, _ := tm.Begin(ModeWrite)
	id := writeValue(t, tx, 0, 1)
	tx.Commit()

	journal := journalOf(tm).journal

	preImage := func() []byte {
		b := file.NewBlock(id, make([]byte, 128))
		mbs.ReadBlock(b)
		return b.Data()
	}

	// Leave an entry of the committed transaction in the journal as if
	// the truncation after the commit had failed

	journal.Record(1, id, make([]byte, 128))
	journal.Sync()

	// A new write transaction starts with an empty journal

	tx, _ = tm.Begin(ModeWrite)
	writeValue(t, tx, id, 2)

	c, _ := tx.Resource("test")
	c.(Flusher).Flush()

	entries, _ := journal.Entries()
	if len(entries) != 1 || entries[0].Seq != 2 {
		t.Error("Unexpected journal entries:", entries)
		return
	}

	c.Prepare(tx.Seq())
	c.Apply()

	// Crash before the commit marker with a stale entry in front of the
	// entries of the uncommitted transaction

	journal.Truncate()
	journal.Record(1, id, make([]byte, 128))

	b := file.NewBlock(id, preImage())
	b.WriteUInt64(view.OffsetData, 1)
	journal.Record(2, id, b.Data())
	journal.Sync()

	tm2, err := NewTransactionManager(dir, Config{})
	if err != nil {
		t.Error(err)
		return
	}
	tm2.RegisterStore("test", mbs)

	if v := readValue(t, tm2, id); v != 2 {
		t.Error("Unexpected value before recovery:", v)
		return
	}

	if err := tm2.Recover(); err != nil {
		t.Error(err)
		return
	}

	if v := readValue(t, tm2, id); v != 1 || tm2.LastCommitted() != 1 {
		t.Error("Uncommitted value survived recovery:", v, tm2.LastCommitted())
		return
	}

	if !journalOf(tm2).journal.Empty() {
		t.Error("Journal should be empty after recovery")
		return
	}
}

func TestReadersBlockApply(t *testing.T) {
	dir := testDir(t, "readers")
	tm := newTestManager(t, dir, storage.NewMemoryBlockStore("test", 128))

	tx, _ := tm.Begin(ModeWrite)
	id := writeValue(t, tx, 0, 1)
	tx.Commit()

	rtx, _ := tm.Begin(ModeRead)

	tx, _ = tm.Begin(ModeWrite)
	writeValue(t, tx, id, 2)

	done := make(chan error)

	go func() {
		done <- tx.Commit()
	}()

	select {
	case err := <-done:
		t.Error("Commit should wait for the reader:", err)
		return
	case <-time.After(100 * time.Millisecond):
	}

	// The reader still sees the state from its start

	rbm, _ := rtx.BlockManager("test")
	b, _ := rbm.GetRead(id)
	v := b.ReadUInt64(view.OffsetData)
	rbm.Release(b)

	if v != 1 {
		t.Error("Unexpected value:", v)
		return
	}

	rtx.Commit()

	if err := <-done; err != nil {
		t.Error(err)
		return
	}

	if v := readValue(t, tm, id); v != 2 {
		t.Error("Unexpected value:", v)
		return
	}
}

func TestMarker(t *testing.T) {
	dir := testDir(t, "marker")
	path := filepath.Join(dir, MarkerFile)

	if seq, err := readMarker(path); seq != 0 || err != nil {
		t.Error("Unexpected result for missing marker:", seq, err)
		return
	}

	if err := writeMarker(path, 0x1234); err != nil {
		t.Error(err)
		return
	}

	if seq, err := readMarker(path); seq != 0x1234 || err != nil {
		t.Error("Unexpected marker:", seq, err)
		return
	}

	if ok, _ := fileutil.PathExists(path + ".tmp"); ok {
		t.Error("Temporary marker file should have been renamed")
		return
	}

	if err := syncDir(dir); err != nil {
		t.Error(err)
		return
	}

	if err := syncDir(filepath.Join(dir, "missing")); err == nil {
		t.Error("Syncing a missing directory should fail")
		return
	}

	if err := writeMarker(filepath.Join(dir, "missing", MarkerFile), 1); err == nil {
		t.Error("Writing a marker into a missing directory should fail")
		return
	}

	data, _ := os.ReadFile(path)
	data[5] = 0xFF
	os.WriteFile(path, data, 0660)

	if _, err := readMarker(path); !IsError(err, ErrMarker) {
		t.Error("Unexpected error:", err)
		return
	}

	if _, err := NewTransactionManager(dir, Config{}); !IsError(err, ErrMarker) {
		t.Error("Unexpected error:", err)
		return
	}

	os.WriteFile(path, []byte{0x66, 0x54, 0x00}, 0660)

	if _, err := readMarker(path); !IsError(err, ErrMarker) {
		t.Error("Unexpected error:", err)
		return
	}
}

/*
testComponent records all calls and can simulate failures.
*/
type testComponent struct {
	name      string
	calls     *[]string
	failApply bool
}

func (tc *testComponent) record(call string) {
	if tc.calls != nil {
		*tc.calls = append(*tc.calls, tc.name+"."+call)
	}
}

func (tc *testComponent) Name() string {
	return tc.name
}

func (tc *testComponent) Prepare(seq uint64) error {
	tc.record(fmt.Sprintf("Prepare(%v)", seq))
	return nil
}

func (tc *testComponent) Apply() error {
	tc.record("Apply")
	if tc.failApply {
		return fmt.Errorf("Apply error")
	}
	return nil
}

func (tc *testComponent) Finish() error {
	tc.record("Finish")
	return nil
}

func (tc *testComponent) Abort() error {
	tc.record("Abort")
	return nil
}

func (tc *testComponent) Undo() error {
	tc.record("Undo")
	return nil
}

func (tc *testComponent) String() string {
	return tc.name
}
