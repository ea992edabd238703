// Package engine defines the boundary to the underlying document-oriented
// storage engine: sessions, documents, the global key dictionary, and the
// session pool shared by benchmark workers.
//
// The package itself contains no storage logic. Engines implement the
// Database interface and register themselves under a URL scheme:
//
//   - "plocal:" — the embedded birch engine (lib/engine/engines/birch)
//   - "remote:" — the Redis-backed engine (lib/engine/engines/redis)
//
// A session is obtained either transiently via Connect (used by the
// one-time bootstrap) or from a Pool (used by every benchmark operation).
// The pool lends each session exclusively between Acquire and Release; the
// engines are responsible for making concurrent sessions against the same
// database safe.
//
// The Dictionary is the engine's single global ordered key index. It maps
// external string keys to records and supports ascending range iteration
// from a start key. It is deliberately not a per-class index: all records,
// whatever their class, share one key space.
package engine
