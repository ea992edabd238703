package birch

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/docbench/docbench/lib/engine"
	"github.com/docbench/docbench/lib/engine/engines/birch/internal"
	"github.com/docbench/docbench/lib/logging"
)

var logger = logging.CreateLogger("engine/birch")

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	markerFile   = "database.bch" // Marks an existing database directory
	snapshotFile = "snapshot.bch" // On-disk state of the database
)

// --------------------------------------------------------------------------
// Driver Registration
// --------------------------------------------------------------------------

type birchDriver struct{}

func (birchDriver) Open(target engine.Target) (engine.Database, error) {
	return &database{path: filepath.Clean(target.Location)}, nil
}

func init() {
	engine.Register("plocal", birchDriver{})
}

// --------------------------------------------------------------------------
// Shared Store
// --------------------------------------------------------------------------

// stores holds one shared store per database directory. Every session
// against the same path operates on the same store, which is what makes
// pooled sessions see each other's writes.
var stores = xsync.NewMapOf[string, *store]()

// store is the in-process state of one database: records keyed by RID, the
// global ordered dictionary, and the schema class map.
type store struct {
	path     string
	docs     *xsync.MapOf[string, *engine.Document]
	dict     *internal.Dict
	classes  *xsync.MapOf[string, *internal.ClassState]
	sessions atomic.Int32

	loadMu sync.Mutex
	loaded bool
}

func newStore(path string) *store {
	return &store{
		path:    path,
		docs:    xsync.NewMapOf[string, *engine.Document](),
		dict:    internal.NewDict(),
		classes: xsync.NewMapOf[string, *internal.ClassState](),
	}
}

// ensureLoaded reads the snapshot file on the first load of this store.
func (s *store) ensureLoaded() error {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	if s.loaded {
		return nil
	}
	if err := s.loadSnapshot(); err != nil {
		return err
	}
	s.loaded = true
	return nil
}

// markLoaded marks a freshly created (empty) store as loaded.
func (s *store) markLoaded() {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()
	s.loaded = true
}

// --------------------------------------------------------------------------
// Database Session
// --------------------------------------------------------------------------

// database is one session onto a birch store. Sessions are cheap; all
// heavy state lives in the shared store.
type database struct {
	path  string
	store *store
	open  bool
}

func (db *database) markerPath() string {
	return filepath.Join(db.path, markerFile)
}

func (db *database) requireOpen() error {
	if !db.open || db.store == nil {
		return engine.ErrDatabaseClosed
	}
	return nil
}

// attach binds the session to the shared store of its path and counts it
// as open.
func (db *database) attach(fresh bool) error {
	st, existed := stores.LoadOrStore(db.path, newStore(db.path))
	if fresh && !existed {
		st.markLoaded()
	} else if err := st.ensureLoaded(); err != nil {
		return err
	}
	st.sessions.Add(1)
	db.store = st
	db.open = true
	return nil
}

// --------------------------------------------------------------------------
// Interface Methods - Lifecycle (docu see engine.Database)
// --------------------------------------------------------------------------

func (db *database) Exists() (bool, error) {
	if _, err := os.Stat(db.markerPath()); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (db *database) Create() error {
	if err := os.MkdirAll(db.path, 0o755); err != nil {
		return err
	}

	// The exclusive marker create decides concurrent creation races.
	f, err := os.OpenFile(db.markerPath(), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return engine.ErrStorageExists
		}
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	logger.Debugf("created database at %s", db.path)
	return db.attach(true)
}

func (db *database) Open(user, password string) error {
	// Embedded databases do not check credentials, like any local-mode
	// engine the credentials are accepted as given.
	_, _ = user, password

	if db.open {
		return nil
	}

	exists, err := db.Exists()
	if err != nil {
		return err
	}
	if !exists {
		return engine.ErrDatabaseNotFound
	}

	return db.attach(false)
}

func (db *database) Close() error {
	if !db.open {
		return nil
	}

	st := db.store
	db.open = false

	if st.sessions.Add(-1) == 0 {
		// Last session out writes the snapshot, unless the database was
		// dropped in the meantime.
		if exists, err := db.Exists(); err == nil && exists {
			if err := st.flushSnapshot(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (db *database) IsClosed() bool {
	return !db.open
}

func (db *database) Drop() error {
	exists, err := db.Exists()
	if err != nil {
		return err
	}
	if !exists {
		return engine.ErrDatabaseNotFound
	}

	stores.Delete(db.path)
	if err := os.RemoveAll(db.path); err != nil {
		return err
	}

	logger.Debugf("dropped database at %s", db.path)
	db.open = false
	db.store = nil
	return nil
}

// --------------------------------------------------------------------------
// Interface Methods - Schema (docu see engine.Database)
// --------------------------------------------------------------------------

func (db *database) ExistsClass(name string) (bool, error) {
	if err := db.requireOpen(); err != nil {
		return false, err
	}
	state, ok := db.store.classes.Load(name)
	return ok && state.Committed(), nil
}

func (db *database) CreateClass(name string) error {
	if err := db.requireOpen(); err != nil {
		return err
	}

	state, raced := db.store.classes.LoadOrStore(name, internal.NewClassState())
	if !raced {
		state.Commit()
		return nil
	}
	if !state.Committed() {
		// Another session is mid-creation of the same class.
		return engine.ErrSchemaNotCommitted
	}
	return nil
}

// --------------------------------------------------------------------------
// Interface Methods - Records (docu see engine.Database)
// --------------------------------------------------------------------------

func (db *database) Save(doc *engine.Document) error {
	if err := db.requireOpen(); err != nil {
		return err
	}

	if doc.RID() == "" {
		doc.SetRID(uuid.NewString())
	}
	db.store.docs.Store(doc.RID(), doc)
	return nil
}

func (db *database) Dictionary() engine.Dictionary {
	return &dictionary{db: db}
}

// --------------------------------------------------------------------------
// Dictionary Implementation
// --------------------------------------------------------------------------

type dictionary struct {
	db *database
}

func (d *dictionary) Put(key string, doc *engine.Document) error {
	if err := d.db.requireOpen(); err != nil {
		return err
	}
	if doc.RID() == "" {
		return engine.ErrDocumentNotSaved
	}
	d.db.store.dict.Put(key, doc.RID())
	return nil
}

func (d *dictionary) Get(key string) (*engine.Document, bool, error) {
	if err := d.db.requireOpen(); err != nil {
		return nil, false, err
	}

	rid, ok := d.db.store.dict.Get(key)
	if !ok {
		return nil, false, nil
	}
	doc, ok := d.db.store.docs.Load(rid)
	if !ok {
		return nil, false, nil
	}
	return doc, true, nil
}

func (d *dictionary) Remove(key string) error {
	if err := d.db.requireOpen(); err != nil {
		return err
	}
	d.db.store.dict.Remove(key)
	return nil
}

func (d *dictionary) IterateMajor(startKey string) (engine.Cursor, error) {
	if err := d.db.requireOpen(); err != nil {
		return nil, err
	}
	return &cursor{
		entries: d.db.store.dict.AscendFrom(startKey),
		docs:    d.db.store.docs,
	}, nil
}

// cursor walks a point-in-time snapshot of the dictionary, resolving
// records lazily. Entries whose record vanished since the snapshot are
// skipped.
type cursor struct {
	entries []internal.DictEntry
	docs    *xsync.MapOf[string, *engine.Document]
	pos     int
}

func (c *cursor) Next() (string, *engine.Document, bool) {
	for c.pos < len(c.entries) {
		entry := c.entries[c.pos]
		c.pos++

		if doc, ok := c.docs.Load(entry.RID); ok {
			return entry.Key, doc, true
		}
	}
	return "", nil, false
}

func (c *cursor) Close() error {
	c.entries = nil
	return nil
}
