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
	"crypto/md5"
	"encoding/binary"
	"fmt"
	"strings"
)

/*
Kind is the kind of an RDF term.
*/
type Kind byte

/*
Term kinds
*/
const (
	KindIRI     Kind = 1
	KindBlank   Kind = 2
	KindLiteral Kind = 3
)

/*
String returns a string representation of a term kind.
*/
func (k Kind) String() string {
	switch k {
	case KindIRI:
		return "IRI"
	case KindBlank:
		return "Blank"
	case KindLiteral:
		return "Literal"
	}
	return fmt.Sprintf("Kind(%d)", byte(k))
}

/*
Node is an RDF term. Lang and Datatype are only used by literals and at most
one of them is set.
*/
type Node struct {
	Kind     Kind   // Kind of the term
	Value    string // IRI, blank node label or lexical form of a literal
	Lang     string // Language tag of a literal
	Datatype string // Datatype IRI of a literal
}

/*
NewIRI creates a new IRI term.
*/
func NewIRI(iri string) Node {
	return Node{Kind: KindIRI, Value: iri}
}

/*
NewBlank creates a new blank node term.
*/
func NewBlank(label string) Node {
	return Node{Kind: KindBlank, Value: label}
}

/*
NewLiteral creates a new plain literal.
*/
func NewLiteral(value string) Node {
	return Node{Kind: KindLiteral, Value: value}
}

/*
NewLangLiteral creates a new literal with a language tag.
*/
func NewLangLiteral(value string, lang string) Node {
	return Node{Kind: KindLiteral, Value: value, Lang: lang}
}

/*
NewTypedLiteral creates a new literal with a datatype.
*/
func NewTypedLiteral(value string, datatype string) Node {
	return Node{Kind: KindLiteral, Value: value, Datatype: datatype}
}

/*
ntriplesEscaper escapes the lexical form of a literal.
*/
var ntriplesEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", `\r`, "\t", `\t`)

/*
String returns the term in N-Triples syntax.
*/
func (n Node) String() string {
	switch n.Kind {
	case KindIRI:
		return "<" + n.Value + ">"
	case KindBlank:
		return "_:" + n.Value
	case KindLiteral:
		lit := `"` + ntriplesEscaper.Replace(n.Value) + `"`
		if n.Lang != "" {
			return lit + "@" + n.Lang
		} else if n.Datatype != "" {
			return lit + "^^<" + n.Datatype + ">"
		}
		return lit
	}
	return fmt.Sprintf("%v(%q)", n.Kind, n.Value)
}

/*
ParseNode parses a term in N-Triples syntax.
*/
func ParseNode(s string) (Node, error) {
	switch {
	case len(s) > 2 && s[0] == '<' && s[len(s)-1] == '>':
		return NewIRI(s[1 : len(s)-1]), nil

	case len(s) > 2 && strings.HasPrefix(s, "_:"):
		return NewBlank(s[2:]), nil

	case len(s) > 1 && s[0] == '"':
		var buf strings.Builder

		i := 1
		for ; i < len(s) && s[i] != '"'; i++ {
			c := s[i]

			if c == '\\' {
				if i++; i == len(s) {
					break
				}

				switch s[i] {
				case 'n':
					c = '\n'
				case 'r':
					c = '\r'
				case 't':
					c = '\t'
				case '"', '\\':
					c = s[i]
				default:
					return Node{}, newTableError(ErrInvalidNode, fmt.Sprintf("Unknown escape in %v", s))
				}
			}

			buf.WriteByte(c)
		}

		if i >= len(s) {
			return Node{}, newTableError(ErrInvalidNode, fmt.Sprintf("Unterminated literal %v", s))
		}

		rest := s[i+1:]

		if rest == "" {
			return NewLiteral(buf.String()), nil
		} else if len(rest) > 1 && rest[0] == '@' {
			return NewLangLiteral(buf.String(), rest[1:]), nil
		} else if len(rest) > 4 && strings.HasPrefix(rest, "^^<") && rest[len(rest)-1] == '>' {
			return NewTypedLiteral(buf.String(), rest[3:len(rest)-1]), nil
		}
	}

	return Node{}, newTableError(ErrInvalidNode, fmt.Sprintf("Cannot parse %v", s))
}

/*
Encode returns the binary encoding of this term:

	kind     byte
	value    uvarint length + bytes
	lang     uvarint length + bytes
	datatype uvarint length + bytes
*/
func (n Node) Encode() []byte {
	b := make([]byte, 1, 1+len(n.Value)+len(n.Lang)+len(n.Datatype)+3*binary.MaxVarintLen16)

	b[0] = byte(n.Kind)

	for _, s := range []string{n.Value, n.Lang, n.Datatype} {
		b = binary.AppendUvarint(b, uint64(len(s)))
		b = append(b, s...)
	}

	return b
}

/*
DecodeNode decodes a term from its binary encoding.
*/
func DecodeNode(data []byte) (Node, error) {
	var n Node

	if len(data) == 0 {
		return n, newTableError(ErrInvalidNode, "No data")
	}

	n.Kind = Kind(data[0])
	if n.Kind < KindIRI || n.Kind > KindLiteral {
		return n, newTableError(ErrInvalidNode, fmt.Sprintf("Unknown kind %v", data[0]))
	}

	r := bytes.NewReader(data[1:])
	fields := make([]string, 3)

	for i := range fields {
		l, err := binary.ReadUvarint(r)
		if err != nil || l > uint64(r.Len()) {
			return n, newTableError(ErrInvalidNode, fmt.Sprintf("Truncated field %v", i))
		}

		buf := make([]byte, l)
		r.Read(buf)
		fields[i] = string(buf)
	}

	if r.Len() != 0 {
		return n, newTableError(ErrInvalidNode, fmt.Sprintf("%v trailing bytes", r.Len()))
	}

	n.Value, n.Lang, n.Datatype = fields[0], fields[1], fields[2]

	return n, nil
}

/*
hashKey returns the hash index key of an encoded term.
*/
func hashKey(enc []byte) []byte {
	h := md5.Sum(enc)
	return h[:]
}
