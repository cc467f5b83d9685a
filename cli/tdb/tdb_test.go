/*
 * TDB
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package main

import (
	"bytes"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"devt.de/krotik/common/fileutil"
)

const testdir = "tdbtest"

var testConfigFile = filepath.Join(testdir, "test.config.json")

func TestMain(m *testing.M) {
	flag.Parse()

	// Setup
	if res, _ := fileutil.PathExists(testdir); res {
		os.RemoveAll(testdir)
	}

	if err := os.MkdirAll(testdir, 0770); err != nil {
		fmt.Print("Could not create test directory:", err.Error())
		os.Exit(1)
	}

	if err := os.WriteFile(testConfigFile, []byte(`{
    "EnableLockFile": false,
    "LeafCapacity": "4",
    "BranchCapacity": "3",
    "BlockSize": "512"
}`), 0660); err != nil {
		fmt.Print("Could not create test config:", err.Error())
		os.Exit(1)
	}

	// Run the tests
	res := m.Run()

	// Teardown
	if err := os.RemoveAll(testdir); err != nil {
		fmt.Print("Could not remove test directory:", err.Error())
	}

	os.Exit(res)
}

/*
runTest runs the tool with a given test store and returns its output.
*/
func runTest(db string, args ...string) (string, error) {
	var out bytes.Buffer

	args = append([]string{"--dir", filepath.Join(testdir, db), "--config", testConfigFile}, args...)

	err := run(args, &out)

	return out.String(), err
}

func TestCommands(t *testing.T) {
	const (
		a = "<http://example.org/a>"
		b = "<http://example.org/b>"
		d = "<http://example.org/d>"
		c = `"c"`
	)

	if out, err := runTest("cmds", "add", a, b, c); err != nil ||
		out != "Added <http://example.org/a> <http://example.org/b> \"c\" .\n" {
		t.Error("Unexpected result:", out, err)
		return
	}

	if out, err := runTest("cmds", "add", a, b, c); err != nil || out != "Nothing changed\n" {
		t.Error("Unexpected result:", out, err)
		return
	}

	if _, err := runTest("cmds", "add", a, b, d); err != nil {
		t.Error(err)
		return
	}

	if out, err := runTest("cmds", "find"); err != nil || out != `<http://example.org/a> <http://example.org/b> "c" .
<http://example.org/a> <http://example.org/b> <http://example.org/d> .
` {
		t.Error("Unexpected result:", out, err)
		return
	}

	if out, err := runTest("cmds", "find", "--limit", "1"); err != nil || strings.Count(out, "\n") != 1 {
		t.Error("Unexpected result:", out, err)
		return
	}

	if out, err := runTest("cmds", "find", "?", "?", d); err != nil ||
		out != "<http://example.org/a> <http://example.org/b> <http://example.org/d> .\n" {
		t.Error("Unexpected result:", out, err)
		return
	}

	if out, err := runTest("cmds", "find", "<http://example.org/x>"); err != nil || out != "" {
		t.Error("Unexpected result:", out, err)
		return
	}

	if out, err := runTest("cmds", "delete", a, b, c); err != nil ||
		out != "Deleted <http://example.org/a> <http://example.org/b> \"c\" .\n" {
		t.Error("Unexpected result:", out, err)
		return
	}

	if out, err := runTest("cmds", "delete", a, b, c); err != nil || out != "Nothing changed\n" {
		t.Error("Unexpected result:", out, err)
		return
	}

	if out, err := runTest("cmds", "rebuild"); err != nil ||
		out != "Rebuilt secondary indexes with 1 triples\n" {
		t.Error("Unexpected result:", out, err)
		return
	}

	if out, err := runTest("cmds", "check"); err != nil || out != "Store is consistent\n" {
		t.Error("Unexpected result:", out, err)
		return
	}

	out, err := runTest("cmds", "stats")
	if err != nil {
		t.Error(err)
		return
	}

	if !strings.Contains(out, "Triples:       1\n") ||
		!strings.Contains(out, "Nodes:         4\n") ||
		!strings.Contains(out, "Last commit:   6\n") ||
		!strings.Contains(out, "spo.idx:") {
		t.Error("Unexpected result:", out)
		return
	}
}

func TestCommandErrors(t *testing.T) {

	if _, err := runTest("errors", "add", "<http://example.org/a>", "b", "c"); err == nil ||
		!strings.Contains(err.Error(), "Cannot parse") {
		t.Error("Unexpected result:", err)
		return
	}

	if _, err := runTest("errors", "find", `"unterminated`); err == nil ||
		!strings.Contains(err.Error(), "Unterminated literal") {
		t.Error("Unexpected result:", err)
		return
	}

	if _, err := runTest("errors"); err == nil {
		t.Error("Missing command should cause an error")
		return
	}

	if _, err := runTest("errors", "add", "<http://example.org/a>"); err == nil {
		t.Error("Missing arguments should cause an error")
		return
	}

	var out bytes.Buffer

	run([]string{"--help"}, &out)

	if !strings.Contains(out.String(), "usage: tdb") || !strings.Contains(out.String(), "rebuild") {
		t.Error("Unexpected usage:", out.String())
		return
	}
}
