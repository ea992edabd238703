// Package birch implements the embedded document engine behind the
// "plocal:" URL scheme. It provides a complete implementation of the
// engine.Database interface with a focus on concurrent session safety and
// simple, robust persistence.
//
// The package focuses on:
//   - One shared in-process store per database directory, so that every
//     pooled session against the same path observes the same state
//   - An ordered global dictionary (B-tree) for key lookups and ascending
//     range iteration
//   - Schema classes with an observable creation window: a class raced by
//     two sessions surfaces engine.ErrSchemaNotCommitted to the loser,
//     which is the condition the adapter's bootstrap retry loop consumes
//   - Snapshot persistence with a magic header and efficient binary
//     encoding (msgpack through an lz4 stream), written when the last
//     session of a database closes and loaded on first open
//
// Key Components:
//
//   - store: The per-directory shared state - records in a concurrent map
//     keyed by RID, the dictionary, and the class map. Stores are held in
//     a process-global registry keyed by cleaned path.
//
//   - database: A lightweight session onto a store, implementing the
//     engine.Database lifecycle (Exists/Create/Open/Close/Drop). Creation
//     races are decided by an exclusive marker-file create; the loser
//     receives engine.ErrStorageExists.
//
//   - dictionary/cursor: The engine.Dictionary implementation over the
//     internal B-tree. Cursors walk a point-in-time snapshot of the key
//     order and resolve records lazily.
package birch
