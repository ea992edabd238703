package engine

import (
	"errors"
	"fmt"
	"sync"
)

// --------------------------------------------------------------------------
// Sentinel Errors
// --------------------------------------------------------------------------

var (
	// ErrStorageExists is returned by Database.Create when another caller
	// created the same database first. Callers racing on startup treat this
	// as success.
	ErrStorageExists = errors.New("storage already exists")

	// ErrSchemaNotCommitted is returned by Database.CreateClass when a
	// concurrent class creation has not committed yet. Callers are expected
	// to back off and retry.
	ErrSchemaNotCommitted = errors.New("schema not committed")

	// ErrDatabaseNotFound is returned when opening or dropping a database
	// that does not exist at the target.
	ErrDatabaseNotFound = errors.New("database not found")

	// ErrDatabaseClosed is returned by operations on a closed session.
	ErrDatabaseClosed = errors.New("database is closed")

	// ErrDocumentNotSaved is returned when an unsaved document (no RID) is
	// put into the dictionary.
	ErrDocumentNotSaved = errors.New("document has not been saved")

	// ErrPoolClosed is returned by Pool.Acquire after the pool was closed.
	ErrPoolClosed = errors.New("connection pool is closed")
)

// --------------------------------------------------------------------------
// Document Type
// --------------------------------------------------------------------------

// Document is a dynamically shaped record: a set of named string fields
// tagged with a class name. A document receives an opaque record id (RID)
// the first time it is saved; the RID identifies the record inside its
// engine and never changes afterwards.
type Document struct {
	class string
	rid   string

	mu     sync.RWMutex
	fields map[string]string
}

// NewDocument creates an unsaved document of the given class.
func NewDocument(class string) *Document {
	return &Document{
		class:  class,
		fields: make(map[string]string),
	}
}

// Class returns the class name the document was created with.
func (d *Document) Class() string {
	return d.class
}

// RID returns the record id assigned by the engine, or "" if the document
// was never saved.
func (d *Document) RID() string {
	return d.rid
}

// SetRID assigns the record id. It is called by engine implementations when
// a document is first saved.
func (d *Document) SetRID(rid string) {
	d.rid = rid
}

// Field returns the value of a single field. The boolean return value
// indicates whether the field is present.
func (d *Document) Field(name string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	v, ok := d.fields[name]
	return v, ok
}

// SetField inserts or overwrites a single field.
func (d *Document) SetField(name, value string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fields[name] = value
}

// FieldNames returns the names of all fields currently set.
func (d *Document) FieldNames() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.fields))
	for name := range d.fields {
		names = append(names, name)
	}
	return names
}

// Fields returns a copy of all field/value pairs.
func (d *Document) Fields() map[string]string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string]string, len(d.fields))
	for name, value := range d.fields {
		out[name] = value
	}
	return out
}

// --------------------------------------------------------------------------
// Database Interface
// --------------------------------------------------------------------------

// Database is a single session to one database of a storage engine. A
// session is owned by exactly one caller at a time; thread safety across
// sessions is the engine's concern, a single session must not be shared
// between concurrent operations.
type Database interface {
	// Open opens the session with the given credentials. The database must
	// exist; ErrDatabaseNotFound is returned otherwise.
	Open(user, password string) error

	// Close closes the session. Closing a closed session is a no-op.
	Close() error

	// IsClosed reports whether the session is currently closed.
	IsClosed() bool

	// Exists reports whether the database exists at the target, without
	// requiring an open session.
	Exists() (bool, error)

	// Create creates the database and opens the session onto it. If a
	// concurrent caller created the database first, ErrStorageExists is
	// returned.
	Create() error

	// Drop destroys the database and all of its records. The session is
	// closed afterwards. ErrDatabaseNotFound is returned if the database
	// does not exist (e.g. a concurrent caller already dropped it).
	Drop() error

	// ExistsClass reports whether a schema class with the given name exists
	// and is committed.
	ExistsClass(name string) (bool, error)

	// CreateClass creates a schema class. Creating an already committed
	// class is a no-op; racing a concurrent, not yet committed creation
	// returns ErrSchemaNotCommitted.
	CreateClass(name string) error

	// Save persists a document, assigning a RID on first save. Subsequent
	// saves of the same document overwrite the stored record in place.
	Save(doc *Document) error

	// Dictionary returns the engine's global key index.
	Dictionary() Dictionary
}

// --------------------------------------------------------------------------
// Dictionary Interface
// --------------------------------------------------------------------------

// Dictionary is the engine's single global ordered mapping from external
// string keys to records. It is scoped to the whole database, not to a
// class. Keys are unique within the mapping.
type Dictionary interface {
	// Put inserts or overwrites the mapping for a key.
	Put(key string, doc *Document) error

	// Get resolves a key to its record. An absent key is not an error; the
	// boolean return value reports presence.
	Get(key string) (doc *Document, found bool, err error)

	// Remove deletes the mapping for a key. Removing an absent key is not
	// an error. The underlying record is not necessarily deleted.
	Remove(key string) error

	// IterateMajor returns a cursor over all entries with key >= startKey,
	// in ascending lexicographic key order.
	IterateMajor(startKey string) (Cursor, error)
}

// Cursor iterates over dictionary entries in key order.
type Cursor interface {
	// Next returns the next entry. ok is false when the cursor is
	// exhausted.
	Next() (key string, doc *Document, ok bool)

	// Close releases the cursor.
	Close() error
}

// --------------------------------------------------------------------------
// Driver Registry
// --------------------------------------------------------------------------

// Driver creates sessions for one URL scheme. Implementations register
// themselves with Register from an init function.
type Driver interface {
	// Open creates a new, closed session for the given target. It does not
	// touch the underlying storage.
	Open(target Target) (Database, error)
}

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]Driver)
)

// Register makes a driver available under the given URL scheme. It panics
// if the scheme is already taken.
func Register(scheme string, driver Driver) {
	driversMu.Lock()
	defer driversMu.Unlock()
	if _, dup := drivers[scheme]; dup {
		panic(fmt.Sprintf("engine: driver for scheme %q registered twice", scheme))
	}
	drivers[scheme] = driver
}

// Connect parses a connection URL and returns a closed session for it. The
// caller opens (or creates) the database through the returned session.
func Connect(url string) (Database, error) {
	target, err := ParseTarget(url)
	if err != nil {
		return nil, err
	}

	driversMu.RLock()
	driver, ok := drivers[target.Scheme]
	driversMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("engine: no driver registered for scheme %q", target.Scheme)
	}

	return driver.Open(target)
}
