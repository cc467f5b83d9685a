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
TDB is a command line tool to work with a TDB triple store.

Terms are given in N-Triples syntax (e.g. <http://example.org/a>, _:b1,
"text"@en). In find patterns "?" matches every term.
*/
package main

import (
	"fmt"
	"io"
	"os"

	"devt.de/krotik/tdb/config"
	"devt.de/krotik/tdb/nodetable"
	"devt.de/krotik/tdb/store"
	"devt.de/krotik/tdb/txn"
	"github.com/dustin/go-humanize"
	"gopkg.in/alecthomas/kingpin.v2"
)

/*
Wildcard is the find pattern term which matches everything
*/
const Wildcard = "?"

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

/*
run parses the command line and runs the selected command.
*/
func run(args []string, out io.Writer) error {
	app := kingpin.New("tdb", fmt.Sprintf("TDB %v - transactional triple store", config.ProductVersion))
	app.HelpFlag.Short('h')
	app.Terminate(nil)
	app.UsageWriter(out)
	app.ErrorWriter(out)

	dir := app.Flag("dir", "Store directory (default from the configuration)").Short('d').String()
	configFile := app.Flag("config", "Configuration file").Short('c').String()

	add := app.Command("add", "Add a triple")
	addS := add.Arg("subject", "Subject term").Required().String()
	addP := add.Arg("predicate", "Predicate term").Required().String()
	addO := add.Arg("object", "Object term").Required().String()

	del := app.Command("delete", "Delete a triple")
	delS := del.Arg("subject", "Subject term").Required().String()
	delP := del.Arg("predicate", "Predicate term").Required().String()
	delO := del.Arg("object", "Object term").Required().String()

	find := app.Command("find", "Find all triples which match a pattern")
	findS := find.Arg("subject", "Subject term or ?").Default(Wildcard).String()
	findP := find.Arg("predicate", "Predicate term or ?").Default(Wildcard).String()
	findO := find.Arg("object", "Object term or ?").Default(Wildcard).String()
	findLimit := find.Flag("limit", "Maximal number of results (0 for no limit)").Short('l').Default("0").Int()

	check := app.Command("check", "Check all indexes of the store")
	stats := app.Command("stats", "Show store statistics")
	rebuild := app.Command("rebuild", "Rebuild the secondary indexes from the primary index")

	cmd, err := app.Parse(args)
	if err != nil || cmd == "" {
		return err
	}

	if *configFile != "" {
		if err := config.LoadConfigFile(*configFile); err != nil {
			return err
		}
	} else {
		config.LoadDefaultConfig()
	}

	options, err := store.OptionsFromConfig()
	if err != nil {
		return err
	}

	location := *dir
	if location == "" {
		location = config.Str(config.LocationDatastore)
	}

	mode := txn.ModeRead
	if cmd == add.FullCommand() || cmd == del.FullCommand() || cmd == rebuild.FullCommand() {
		mode = txn.ModeWrite
	}

	s, err := store.Open(location, options)
	if err != nil {
		return err
	}

	if cmd == stats.FullCommand() {
		err = printStats(s, out)
	} else {
		err = runTxn(s, mode, func(tx *store.Txn) error {
			switch cmd {
			case add.FullCommand():
				return changeTriple(tx, out, "Added", tx.Add, *addS, *addP, *addO)

			case del.FullCommand():
				return changeTriple(tx, out, "Deleted", tx.Delete, *delS, *delP, *delO)

			case find.FullCommand():
				return findTriples(tx, out, *findLimit, *findS, *findP, *findO)

			case check.FullCommand():
				err := tx.Check()
				if err == nil {
					fmt.Fprintln(out, "Store is consistent")
				}
				return err
			}

			n, err := store.BuildSecondaryIndexes(tx)
			if err == nil {
				fmt.Fprintf(out, "Rebuilt secondary indexes with %v triples\n", humanize.Comma(int64(n)))
			}
			return err
		})
	}

	if cerr := s.Close(); err == nil {
		err = cerr
	}

	return err
}

/*
runTxn runs a function in a new transaction. The transaction is committed if
the function succeeds and aborted otherwise.
*/
func runTxn(s *store.Store, mode txn.Mode, f func(*store.Txn) error) error {
	tx, err := s.Begin(mode)
	if err != nil {
		return err
	}

	if err = f(tx); err != nil {
		tx.Abort()
		return err
	}

	return tx.Commit()
}

/*
parseTerms parses terms in N-Triples syntax. A wildcard is returned as nil
if wildcards are allowed.
*/
func parseTerms(wildcards bool, terms ...string) ([]*nodetable.Node, error) {
	res := make([]*nodetable.Node, len(terms))

	for i, term := range terms {
		if wildcards && term == Wildcard {
			continue
		}

		n, err := nodetable.ParseNode(term)
		if err != nil {
			return nil, err
		}

		res[i] = &n
	}

	return res, nil
}

/*
changeTriple adds or deletes a triple.
*/
func changeTriple(tx *store.Txn, out io.Writer, action string,
	op func(nodetable.Node, nodetable.Node, nodetable.Node) (bool, error), terms ...string) error {

	nodes, err := parseTerms(false, terms...)
	if err != nil {
		return err
	}

	t := store.Triple{S: *nodes[0], P: *nodes[1], O: *nodes[2]}

	changed, err := op(t.S, t.P, t.O)
	if err != nil {
		return err
	}

	if changed {
		fmt.Fprintln(out, action, t)
	} else {
		fmt.Fprintln(out, "Nothing changed")
	}

	return nil
}

/*
findTriples prints all triples which match a pattern.
*/
func findTriples(tx *store.Txn, out io.Writer, limit int, terms ...string) error {
	nodes, err := parseTerms(true, terms...)
	if err != nil {
		return err
	}

	c, err := tx.Find(nodes[0], nodes[1], nodes[2])
	if err != nil {
		return err
	}

	n := 0

	for c.HasNext() && (limit == 0 || n < limit) {
		t, err := c.Next()
		if err != nil {
			return err
		}

		fmt.Fprintln(out, t)
		n++
	}

	return nil
}

/*
printStats prints the statistics of a store.
*/
func printStats(s *store.Store, out io.Writer) error {
	st, err := s.Stats()
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Store:         %v\n", s.Dir())
	fmt.Fprintf(out, "Last commit:   %v\n", st.LastCommitted)
	fmt.Fprintf(out, "Triples:       %v\n", humanize.Comma(int64(st.Triples)))
	fmt.Fprintf(out, "Nodes:         %v\n", humanize.Comma(int64(st.Nodes)))
	fmt.Fprintf(out, "Object file:   %v\n", humanize.Bytes(uint64(st.ObjectFileSize)))

	for _, name := range st.IndexNames() {
		fmt.Fprintf(out, "%-14v %v\n", name+":", humanize.Bytes(st.IndexFileSizes[name]))
	}

	return nil
}
