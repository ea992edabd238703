package internal

import (
	"sync"
	"sync/atomic"

	"github.com/google/btree"
)

// --------------------------------------------------------------------------
// Dictionary Entry Type
// --------------------------------------------------------------------------

// DictEntry maps an external string key to a record id.
type DictEntry struct {
	Key string `msgpack:"k"`
	RID string `msgpack:"r"`
}

func lessEntry(a, b DictEntry) bool {
	return a.Key < b.Key
}

// --------------------------------------------------------------------------
// Dictionary (ordered key index)
// --------------------------------------------------------------------------

// btreeDegree balances node size against tree depth for string keys.
const btreeDegree = 32

// Dict is the ordered key → record id index of one database. The B-tree is
// not safe for concurrent use, so every access goes through the mutex.
type Dict struct {
	mu   sync.RWMutex
	tree *btree.BTreeG[DictEntry]
}

// NewDict creates an empty dictionary.
func NewDict() *Dict {
	return &Dict{
		tree: btree.NewG[DictEntry](btreeDegree, lessEntry),
	}
}

// Put inserts or overwrites the mapping for a key.
func (d *Dict) Put(key, rid string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tree.ReplaceOrInsert(DictEntry{Key: key, RID: rid})
}

// Get resolves a key to its record id.
func (d *Dict) Get(key string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	entry, ok := d.tree.Get(DictEntry{Key: key})
	if !ok {
		return "", false
	}
	return entry.RID, true
}

// Remove deletes the mapping for a key. Removing an absent key is a no-op.
func (d *Dict) Remove(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tree.Delete(DictEntry{Key: key})
}

// AscendFrom returns all entries with key >= startKey in ascending key
// order. The returned slice is a snapshot; later mutations do not affect
// it.
func (d *Dict) AscendFrom(startKey string) []DictEntry {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var entries []DictEntry
	d.tree.AscendGreaterOrEqual(DictEntry{Key: startKey}, func(entry DictEntry) bool {
		entries = append(entries, entry)
		return true
	})
	return entries
}

// Entries returns every mapping in key order.
func (d *Dict) Entries() []DictEntry {
	return d.AscendFrom("")
}

// Len returns the number of mappings.
func (d *Dict) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.tree.Len()
}

// --------------------------------------------------------------------------
// Class State (schema marker lifecycle)
// --------------------------------------------------------------------------

// ClassState tracks one schema class from creation to commit. A class
// becomes visible in the class map before it is committed; observers that
// find an uncommitted state are racing the creator and must retry.
type ClassState struct {
	committed atomic.Bool
}

// NewClassState returns an uncommitted class state.
func NewClassState() *ClassState {
	return &ClassState{}
}

// Commit marks the class as committed.
func (c *ClassState) Commit() {
	c.committed.Store(true)
}

// Committed reports whether the class creation has committed.
func (c *ClassState) Committed() bool {
	return c.committed.Load()
}
