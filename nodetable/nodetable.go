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
	"fmt"

	"devt.de/krotik/common/datautil"
	"devt.de/krotik/common/logutil"
	"devt.de/krotik/tdb/btree"
	"devt.de/krotik/tdb/record"
	"devt.de/krotik/tdb/storage"
	"devt.de/krotik/tdb/txn"
	"github.com/dgraph-io/ristretto/v2"
	lru "github.com/hashicorp/golang-lru/v2"
)

/*
hashFactory creates the records of the hash index: the MD5 hash of an encoded
term followed by its node id.
*/
var hashFactory = record.NewRecordFactory(md5.Size, NodeIDSize)

/*
NodeTable data structure. A node table is shared by all transactions; each
transaction works on its own View.
*/
type NodeTable struct {
	objects *ObjectFile                      // Log of encoded terms
	params  Params                           // Construction parameters
	ids     *ristretto.Cache[string, NodeID] // Encoded term -> id cache
	terms   *lru.Cache[NodeID, Node]         // Id -> term cache
	misses  *datautil.MapCache               // Cache of unknown encoded terms
	logger  logutil.Logger                   // Logger
}

/*
NewNodeTable creates a new node table. The object file is kept in a given
directory. The hash index uses a given block store. Both are registered with
a given transaction manager which should run its recovery afterwards.
*/
func NewNodeTable(tm *txn.TransactionManager, dir string, index storage.BlockStore,
	params Params) (*NodeTable, error) {

	logger := params.Logger
	if logger == nil {
		logger = logutil.GetLogger("tdb.nodetable")
	}

	objects, err := NewObjectFile(dir, ObjectFileName, params.Compress, logger)
	if err != nil {
		return nil, err
	}

	if err = tm.RegisterStore(IndexName, index); err == nil {
		err = tm.RegisterResource(objects)
	}

	if err != nil {
		objects.Close()
		return nil, err
	}

	nt := &NodeTable{objects, params, nil, nil, nil, logger}

	if params.NodeIDCacheSize > 0 {
		nt.ids, err = ristretto.NewCache(&ristretto.Config[string, NodeID]{
			NumCounters:        max(params.NodeIDCacheSize/10, 100),
			MaxCost:            params.NodeIDCacheSize,
			BufferItems:        64,
			IgnoreInternalCost: true,
		})
		if err != nil {
			return nil, err
		}
	}

	if params.NodeCacheSize > 0 {
		if nt.terms, err = lru.New[NodeID, Node](params.NodeCacheSize); err != nil {
			return nil, err
		}
	}

	if params.MissCacheSize > 0 {
		nt.misses = datautil.NewMapCache(params.MissCacheSize, params.MissCacheMaxAge)
	}

	return nt, nil
}

/*
Objects returns the object file of this node table.
*/
func (nt *NodeTable) Objects() *ObjectFile {
	return nt.objects
}

/*
Begin returns the view of this node table for a given transaction. Only one
view should be created per transaction.
*/
func (nt *NodeTable) Begin(tx *txn.Transaction) (*View, error) {
	bm, err := tx.BlockManager(IndexName)
	if err != nil {
		return nil, err
	}

	index, err := btree.NewBPlusTree(bm, hashFactory, btree.Params{
		LeafCapacity:   nt.params.LeafCapacity,
		BranchCapacity: nt.params.BranchCapacity,
		Duplicates:     btree.DuplicateError,
		ClearDeleted:   nt.params.ClearDeleted,
		Logger:         nt.logger,
	})
	if err != nil {
		return nil, err
	}

	c, err := tx.Resource(ObjectFileName)
	if err != nil {
		return nil, err
	}

	oc, ok := c.(*objectComponent)
	if !ok {
		return nil, newTableError(ErrObjectFile, fmt.Sprintf("%v is not an object file", c.Name()))
	}

	v := &View{nt, tx, index, oc, make(map[string]NodeID), make(map[NodeID]Node)}

	if tx.Mode() == txn.ModeWrite {
		err = tx.AddComponent(&cacheComponent{v})
	}

	return v, err
}

/*
publish adds the mappings of a committed view to the caches.
*/
func (nt *NodeTable) publish(v *View) {
	for key, id := range v.added {
		if nt.ids != nil {
			nt.ids.Set(key, id, int64(len(key)))
		}
		if nt.misses != nil {
			nt.misses.Remove(key)
		}
	}

	if nt.ids != nil {
		nt.ids.Wait()
	}

	if nt.terms != nil {
		for id, n := range v.terms {
			nt.terms.Add(id, n)
		}
	}

	nt.logger.Debug(fmt.Sprintf("Published %v new nodes", len(v.added)))
}

/*
Close releases the caches of this node table. The object file and the hash
index are closed by the transaction manager.
*/
func (nt *NodeTable) Close() {
	if nt.ids != nil {
		nt.ids.Close()
		nt.ids = nil
	}
	if nt.terms != nil {
		nt.terms.Purge()
	}
}

/*
String returns a string representation of this node table.
*/
func (nt *NodeTable) String() string {
	cached := 0
	if nt.terms != nil {
		cached = nt.terms.Len()
	}
	return fmt.Sprintf("NodeTable: %v (cached nodes:%v)", nt.objects, cached)
}

/*
View is the view of a node table in one transaction.
*/
type View struct {
	table   *NodeTable        // Node table of this view
	tx      *txn.Transaction  // Transaction of this view
	index   *btree.BPlusTree  // Hash index
	objects *objectComponent  // Object file component of the transaction
	added   map[string]NodeID // Encoded terms which were added in this transaction
	terms   map[NodeID]Node   // Terms which were added in this transaction
}

/*
lookup looks up the id of an encoded term.
*/
func (v *View) lookup(enc []byte) (NodeID, bool, error) {
	key := string(enc)
	nt := v.table

	if id, ok := v.added[key]; ok {
		return id, true, nil
	}

	if nt.ids != nil {
		if id, ok := nt.ids.Get(key); ok {
			return id, true, nil
		}
	}

	if nt.misses != nil {
		if _, ok := nt.misses.Get(key); ok {
			return NodeIDNone, false, nil
		}
	}

	hk, err := hashFactory.CreateKey(hashKey(enc))
	if err != nil {
		return NodeIDNone, false, err
	}

	r, ok, err := v.index.Find(hk)
	if err != nil {
		return NodeIDNone, false, err
	}

	if !ok {

		// Neither committed nor added in this transaction

		if nt.misses != nil {
			nt.misses.Put(key, true)
		}

		return NodeIDNone, false, nil
	}

	id := NodeIDFromBytes(r.Value())

	stored, err := v.objects.Read(id)
	if err != nil {
		return NodeIDNone, false, err
	}

	if !bytes.Equal(stored, enc) {
		return NodeIDNone, false, newTableError(ErrHashCollision,
			fmt.Sprintf("Stored node %v has the same hash", id))
	}

	if nt.ids != nil {
		nt.ids.Set(key, id, int64(len(key)))
	}

	return id, true, nil
}

/*
NodeIDForNode returns the id of a term. An unknown term is added in a write
transaction; in a read transaction an unknown term is an error.
*/
func (v *View) NodeIDForNode(n Node) (NodeID, error) {
	enc := n.Encode()

	id, ok, err := v.lookup(enc)
	if err != nil || ok {
		return id, err
	}

	if v.tx.Mode() != txn.ModeWrite {
		return NodeIDNone, newTableError(ErrReadOnly, n.String())
	}

	if id, err = v.objects.Append(enc); err != nil {
		return NodeIDNone, err
	}

	r, err := hashFactory.Create(hashKey(enc), id.Bytes())
	if err == nil {
		_, err = v.index.Add(r)
	}

	if err != nil {
		return NodeIDNone, err
	}

	v.added[string(enc)] = id
	v.terms[id] = n

	return id, nil
}

/*
GetNodeIDForNode returns the id of a term if the term is known.
*/
func (v *View) GetNodeIDForNode(n Node) (NodeID, bool, error) {
	return v.lookup(n.Encode())
}

/*
NodeForNodeID returns the term of a given id. The id must have been returned
by this node table.
*/
func (v *View) NodeForNodeID(id NodeID) (Node, error) {
	nt := v.table

	if n, ok := v.terms[id]; ok {
		return n, nil
	}

	if nt.terms != nil {
		if n, ok := nt.terms.Get(id); ok {
			return n, nil
		}
	}

	payload, err := v.objects.Read(id)
	if err != nil {
		return Node{}, err
	}

	n, err := DecodeNode(payload)
	if err != nil {
		return Node{}, err
	}

	if nt.terms != nil && int64(id) < v.objects.base {
		nt.terms.Add(id, n)
	}

	return n, nil
}

/*
Added returns the number of terms which were added in this view.
*/
func (v *View) Added() int {
	return len(v.added)
}

/*
Count returns the number of terms in the node table as seen by this view.
*/
func (v *View) Count() (int, error) {
	return v.index.Size()
}

/*
Check checks the hash index of this view.
*/
func (v *View) Check() error {
	return v.index.Check()
}

/*
cacheComponent publishes the new mappings of a view once its transaction has
committed.
*/
type cacheComponent struct {
	view *View
}

/*
Name returns the name of this component.
*/
func (cc *cacheComponent) Name() string {
	return "nodes.cache"
}

/*
Prepare does nothing.
*/
func (cc *cacheComponent) Prepare(seq uint64) error {
	return nil
}

/*
Apply does nothing.
*/
func (cc *cacheComponent) Apply() error {
	return nil
}

/*
Finish publishes the new mappings.
*/
func (cc *cacheComponent) Finish() error {
	cc.view.table.publish(cc.view)
	return nil
}

/*
Abort drops the new mappings.
*/
func (cc *cacheComponent) Abort() error {
	cc.view.added = make(map[string]NodeID)
	cc.view.terms = make(map[NodeID]Node)
	return nil
}

/*
Undo drops the new mappings.
*/
func (cc *cacheComponent) Undo() error {
	return cc.Abort()
}
