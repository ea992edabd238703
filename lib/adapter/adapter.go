package adapter

import (
	"fmt"

	"github.com/docbench/docbench/lib/engine"
	"github.com/docbench/docbench/lib/logging"
)

var logger = logging.CreateLogger("adapter")

// --------------------------------------------------------------------------
// Binding
// --------------------------------------------------------------------------

// Binding implements the benchmark harness contract over a document
// storage engine. The harness creates one binding per worker and calls
// Initialize once before, and Cleanup once after, the worker's operations.
//
// All bindings created with New share the process-wide pool singleton;
// beyond the one-time bootstrap no coordination happens between workers.
type Binding struct {
	cfg  Config
	slot *poolSlot
}

// New creates a binding attached to the process-wide pool singleton.
func New() *Binding {
	return &Binding{slot: &processSlot}
}

// newBindingWithSlot creates a binding with a private singleton slot. Used
// by tests to isolate pool state.
func newBindingWithSlot(slot *poolSlot) *Binding {
	return &Binding{slot: slot}
}

// Initialize resolves the configuration and runs the one-time bootstrap.
// Bootstrap failures do not fail Initialize (see bootstrap); only an
// unusable property map is an error.
func (b *Binding) Initialize(props map[string]string) error {
	cfg, err := ResolveConfig(props)
	if err != nil {
		return err
	}
	b.cfg = cfg

	bootstrap(cfg, b.slot)
	return nil
}

// Cleanup is intentionally a no-op: the pool is shared by every worker in
// the process and must outlive any single worker's cleanup call.
func (b *Binding) Cleanup() error {
	return nil
}

// --------------------------------------------------------------------------
// Internal Helpers
// --------------------------------------------------------------------------

// acquire fetches a session from the installed pool, failing fast when the
// bootstrap never installed one.
func (b *Binding) acquire() (*engine.Session, *Error) {
	pool := b.slot.get()
	if pool == nil {
		return nil, NewError(RetCPoolUninitialized, "connection pool was never initialized")
	}

	sess, err := pool.Acquire()
	if err != nil {
		return nil, WrapError(RetCConnection, "acquiring pooled session", err)
	}
	return sess, nil
}

// finish collapses a classified error into the external status, logging
// the specific cause first.
func (b *Binding) finish(op string, err *Error) Status {
	if err != nil {
		logger.Errorf("%s: %v", op, err)
		countOp(op, StatusError)
		return StatusError
	}
	countOp(op, StatusOK)
	return StatusOK
}

// --------------------------------------------------------------------------
// Operations
// --------------------------------------------------------------------------

// Insert creates a new record with the given field/value pairs and indexes
// it under key. The table name is not consulted: the dictionary is global.
func (b *Binding) Insert(table, key string, values map[string]string) Status {
	return b.finish("insert", b.insert(key, values))
}

func (b *Binding) insert(key string, values map[string]string) *Error {
	sess, aerr := b.acquire()
	if aerr != nil {
		return aerr
	}
	defer sess.Release()

	doc := engine.NewDocument(schemaClass)
	for name, value := range values {
		doc.SetField(name, value)
	}

	if err := sess.Save(doc); err != nil {
		return WrapError(RetCEngineError, fmt.Sprintf("saving record for key %q", key), err)
	}
	if err := sess.Dictionary().Put(key, doc); err != nil {
		return WrapError(RetCEngineError, fmt.Sprintf("indexing key %q", key), err)
	}
	return nil
}

// Read resolves key and copies either the requested field subset or, when
// fields is nil, all fields into result. An absent key yields ERROR; the
// external contract does not distinguish not-found from other failures.
func (b *Binding) Read(table, key string, fields []string, result map[string]string) Status {
	return b.finish("read", b.read(key, fields, result))
}

func (b *Binding) read(key string, fields []string, result map[string]string) *Error {
	sess, aerr := b.acquire()
	if aerr != nil {
		return aerr
	}
	defer sess.Release()

	doc, found, err := sess.Dictionary().Get(key)
	if err != nil {
		return WrapError(RetCEngineError, fmt.Sprintf("resolving key %q", key), err)
	}
	if !found {
		return NewError(RetCNotFound, fmt.Sprintf("key %q not found", key))
	}

	if fields != nil {
		for _, name := range fields {
			if value, ok := doc.Field(name); ok {
				result[name] = value
			}
		}
	} else {
		for name, value := range doc.Fields() {
			result[name] = value
		}
	}
	return nil
}

// Update overwrites the given fields of the record indexed under key,
// leaving all other fields untouched. An absent key yields ERROR.
func (b *Binding) Update(table, key string, values map[string]string) Status {
	return b.finish("update", b.update(key, values))
}

func (b *Binding) update(key string, values map[string]string) *Error {
	sess, aerr := b.acquire()
	if aerr != nil {
		return aerr
	}
	defer sess.Release()

	doc, found, err := sess.Dictionary().Get(key)
	if err != nil {
		return WrapError(RetCEngineError, fmt.Sprintf("resolving key %q", key), err)
	}
	if !found {
		return NewError(RetCNotFound, fmt.Sprintf("key %q not found", key))
	}

	for name, value := range values {
		doc.SetField(name, value)
	}
	if err := sess.Save(doc); err != nil {
		return WrapError(RetCEngineError, fmt.Sprintf("saving record for key %q", key), err)
	}
	return nil
}

// Delete removes the dictionary entry for key. Deleting an absent key is
// OK; the removal does not signal absence.
func (b *Binding) Delete(table, key string) Status {
	return b.finish("delete", b.delete(key))
}

func (b *Binding) delete(key string) *Error {
	sess, aerr := b.acquire()
	if aerr != nil {
		return aerr
	}
	defer sess.Release()

	if err := sess.Dictionary().Remove(key); err != nil {
		return WrapError(RetCEngineError, fmt.Sprintf("removing key %q", key), err)
	}
	return nil
}

// Scan reads up to recordCount records with key >= startKey in ascending
// key order, copying the requested fields of each into a new result entry.
// An explicit field list is required; scanning all fields is not part of
// this operation's contract.
func (b *Binding) Scan(table, startKey string, recordCount int, fields []string, result *[]map[string]string) Status {
	return b.finish("scan", b.scan(startKey, recordCount, fields, result))
}

func (b *Binding) scan(startKey string, recordCount int, fields []string, result *[]map[string]string) *Error {
	if fields == nil {
		return NewError(RetCInvalidOperation, "scan requires an explicit field list")
	}

	sess, aerr := b.acquire()
	if aerr != nil {
		return aerr
	}
	defer sess.Release()

	cur, err := sess.Dictionary().IterateMajor(startKey)
	if err != nil {
		return WrapError(RetCEngineError, fmt.Sprintf("opening range cursor at %q", startKey), err)
	}
	defer cur.Close()

	for n := 0; n < recordCount; n++ {
		_, doc, ok := cur.Next()
		if !ok {
			break
		}

		row := make(map[string]string, len(fields))
		for _, name := range fields {
			if value, ok := doc.Field(name); ok {
				row[name] = value
			}
		}
		*result = append(*result, row)
	}
	return nil
}
