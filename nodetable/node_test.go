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
	"testing"
)

func TestNodeString(t *testing.T) {

	if res := NewIRI("http://example.org/a").String(); res != "<http://example.org/a>" {
		t.Error("Unexpected result:", res)
		return
	}

	if res := NewBlank("b1").String(); res != "_:b1" {
		t.Error("Unexpected result:", res)
		return
	}

	if res := NewLiteral("say \"hi\"\n").String(); res != `"say \"hi\"\n"` {
		t.Error("Unexpected result:", res)
		return
	}

	if res := NewLangLiteral("chat", "fr").String(); res != `"chat"@fr` {
		t.Error("Unexpected result:", res)
		return
	}

	if res := NewTypedLiteral("5", "http://www.w3.org/2001/XMLSchema#integer").String(); res !=
		`"5"^^<http://www.w3.org/2001/XMLSchema#integer>` {
		t.Error("Unexpected result:", res)
		return
	}

	if res := (Node{Kind: 9, Value: "x"}).String(); res != `Kind(9)("x")` {
		t.Error("Unexpected result:", res)
		return
	}

	if res := KindLiteral.String(); res != "Literal" {
		t.Error("Unexpected result:", res)
		return
	}
}

func TestNodeEncoding(t *testing.T) {

	nodes := []Node{
		NewIRI("http://example.org/a"),
		NewBlank("b1"),
		NewLiteral(""),
		NewLangLiteral("chat", "fr"),
		NewTypedLiteral("5", "http://www.w3.org/2001/XMLSchema#integer"),
	}

	for _, n := range nodes {
		res, err := DecodeNode(n.Encode())
		if err != nil || res != n {
			t.Error("Unexpected decoding result:", res, err)
			return
		}
	}

	// Terms which only differ in kind or in where a string is stored have
	// different encodings

	if string(NewIRI("a").Encode()) == string(NewBlank("a").Encode()) {
		t.Error("Kinds should be distinguished")
		return
	}

	if string(NewLangLiteral("a", "b").Encode()) == string(NewTypedLiteral("a", "b").Encode()) {
		t.Error("Lang and datatype should be distinguished")
		return
	}

	if _, err := DecodeNode(nil); err == nil || err.Error() != "Invalid node data (No data)" {
		t.Error("Unexpected error:", err)
		return
	}

	if _, err := DecodeNode([]byte{7, 0, 0, 0}); err == nil || err.Error() != "Invalid node data (Unknown kind 7)" {
		t.Error("Unexpected error:", err)
		return
	}

	if _, err := DecodeNode([]byte{1, 5, 'a'}); err == nil || err.Error() != "Invalid node data (Truncated field 0)" {
		t.Error("Unexpected error:", err)
		return
	}

	enc := append(NewIRI("a").Encode(), 0)

	if _, err := DecodeNode(enc); err == nil || err.Error() != "Invalid node data (1 trailing bytes)" {
		t.Error("Unexpected error:", err)
		return
	}

	if id := NodeIDFromBytes(NodeID(0x0102).Bytes()); id != 0x0102 {
		t.Error("Unexpected id:", id)
		return
	}
}

func TestParseNode(t *testing.T) {

	nodes := []Node{
		NewIRI("http://example.org/a"),
		NewBlank("b1"),
		NewLiteral("say \"hi\"\n\t\\"),
		NewLiteral(""),
		NewLangLiteral("chat", "fr"),
		NewTypedLiteral("5", "http://www.w3.org/2001/XMLSchema#integer"),
	}

	for _, n := range nodes {
		if res, err := ParseNode(n.String()); res != n || err != nil {
			t.Error("Unexpected parse result:", res, err)
			return
		}
	}

	for _, s := range []string{"", "<>", "_:", "abc", `"abc`, `"a\"`, `"a\x"`, `"a"@`, `"a"^^<>`, `"a"b`} {
		if _, err := ParseNode(s); err == nil {
			t.Error("Parsing should fail:", s)
			return
		}
	}
}
