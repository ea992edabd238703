package testing

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/docbench/docbench/lib/engine"
)

// TargetFactory returns a connection URL to a fresh, not yet created
// database. Every call must yield a new target.
type TargetFactory func() string

// RunEngineTests runs the conformance test suite for an engine.Database
// implementation.
func RunEngineTests(t *testing.T, name string, factory TargetFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Lifecycle", func(t *testing.T) {
			testLifecycle(t, factory())
		})

		t.Run("CreateRace", func(t *testing.T) {
			testCreateRace(t, factory())
		})

		t.Run("SchemaLifecycle", func(t *testing.T) {
			testSchemaLifecycle(t, factory())
		})

		t.Run("SchemaRace", func(t *testing.T) {
			testSchemaRace(t, factory())
		})

		t.Run("Dictionary", func(t *testing.T) {
			testDictionary(t, factory())
		})

		t.Run("RangeIteration", func(t *testing.T) {
			testRangeIteration(t, factory())
		})

		t.Run("Reopen", func(t *testing.T) {
			testReopen(t, factory())
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

func connect(t testing.TB, url string) engine.Database {
	t.Helper()
	db, err := engine.Connect(url)
	if err != nil {
		t.Fatalf("Connect(%q) failed: %v", url, err)
	}
	return db
}

// createDatabase connects to the target and creates the database, leaving
// the session open.
func createDatabase(t testing.TB, url string) engine.Database {
	t.Helper()
	db := connect(t, url)
	if err := db.Create(); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	return db
}

func saveDocument(t testing.TB, db engine.Database, key string, fields map[string]string) *engine.Document {
	t.Helper()
	doc := engine.NewDocument("usertable")
	for name, value := range fields {
		doc.SetField(name, value)
	}
	if err := db.Save(doc); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := db.Dictionary().Put(key, doc); err != nil {
		t.Fatalf("Put(%q) failed: %v", key, err)
	}
	return doc
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testLifecycle(t *testing.T, url string) {
	db := connect(t, url)

	exists, err := db.Exists()
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if exists {
		t.Fatalf("expected fresh target %q to not exist", url)
	}

	if err := db.Create(); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if db.IsClosed() {
		t.Errorf("expected session to be open after Create")
	}

	exists, err = db.Exists()
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if !exists {
		t.Errorf("expected database to exist after Create")
	}

	if err := db.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !db.IsClosed() {
		t.Errorf("expected session to be closed after Close")
	}

	if err := db.Open("admin", "admin"); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if db.IsClosed() {
		t.Errorf("expected session to be open after Open")
	}

	if err := db.Drop(); err != nil {
		t.Fatalf("Drop failed: %v", err)
	}

	exists, err = db.Exists()
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if exists {
		t.Errorf("expected database to be gone after Drop")
	}

	if err := db.Drop(); !errors.Is(err, engine.ErrDatabaseNotFound) {
		t.Errorf("expected ErrDatabaseNotFound on double Drop, got %v", err)
	}

	other := connect(t, url)
	if err := other.Open("admin", "admin"); !errors.Is(err, engine.ErrDatabaseNotFound) {
		t.Errorf("expected ErrDatabaseNotFound opening dropped database, got %v", err)
	}
}

func testCreateRace(t *testing.T, url string) {
	const racers = 8

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			db := connect(t, url)
			err := db.Create()
			defer db.Close()

			switch {
			case err == nil:
				mu.Lock()
				successes++
				mu.Unlock()
			case errors.Is(err, engine.ErrStorageExists):
				// Lost the race, expected.
			default:
				t.Errorf("unexpected Create error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Errorf("expected exactly one successful Create, got %d", successes)
	}

	db := connect(t, url)
	exists, err := db.Exists()
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if !exists {
		t.Errorf("expected database to exist after racing creators")
	}
}

func testSchemaLifecycle(t *testing.T, url string) {
	db := createDatabase(t, url)
	defer db.Close()

	exists, err := db.ExistsClass("usertable")
	if err != nil {
		t.Fatalf("ExistsClass failed: %v", err)
	}
	if exists {
		t.Errorf("expected class to not exist in fresh database")
	}

	if err := db.CreateClass("usertable"); err != nil {
		t.Fatalf("CreateClass failed: %v", err)
	}

	exists, err = db.ExistsClass("usertable")
	if err != nil {
		t.Fatalf("ExistsClass failed: %v", err)
	}
	if !exists {
		t.Errorf("expected class to exist after CreateClass")
	}

	// Creating a committed class again is a no-op.
	if err := db.CreateClass("usertable"); err != nil {
		t.Errorf("expected idempotent CreateClass, got %v", err)
	}
}

func testSchemaRace(t *testing.T, url string) {
	const racers = 8

	db := createDatabase(t, url)
	db.Close()

	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			sess := connect(t, url)
			if err := sess.Open("admin", "admin"); err != nil {
				t.Errorf("Open failed: %v", err)
				return
			}
			defer sess.Close()

			// The bootstrap protocol: check, create, back off on the
			// commit race, repeat.
			for {
				exists, err := sess.ExistsClass("usertable")
				if err != nil {
					t.Errorf("ExistsClass failed: %v", err)
					return
				}
				if exists {
					return
				}

				err = sess.CreateClass("usertable")
				if err == nil {
					return
				}
				if errors.Is(err, engine.ErrSchemaNotCommitted) {
					time.Sleep(5 * time.Millisecond)
					continue
				}
				t.Errorf("unexpected CreateClass error: %v", err)
				return
			}
		}()
	}
	wg.Wait()

	check := connect(t, url)
	if err := check.Open("admin", "admin"); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer check.Close()

	exists, err := check.ExistsClass("usertable")
	if err != nil {
		t.Fatalf("ExistsClass failed: %v", err)
	}
	if !exists {
		t.Errorf("expected class to exist after racing creators")
	}
}

func testDictionary(t *testing.T, url string) {
	db := createDatabase(t, url)
	defer db.Close()

	dict := db.Dictionary()

	// Unsaved documents have no identity yet and cannot be indexed.
	if err := dict.Put("k", engine.NewDocument("usertable")); !errors.Is(err, engine.ErrDocumentNotSaved) {
		t.Errorf("expected ErrDocumentNotSaved, got %v", err)
	}

	saveDocument(t, db, "alpha", map[string]string{"field0": "v0", "field1": "v1"})

	doc, found, err := dict.Get("alpha")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !found {
		t.Fatalf("expected key %q to be found", "alpha")
	}
	if v, ok := doc.Field("field0"); !ok || v != "v0" {
		t.Errorf("expected field0=v0, got %q (present=%v)", v, ok)
	}
	if doc.Class() != "usertable" {
		t.Errorf("expected class usertable, got %q", doc.Class())
	}

	_, found, err = dict.Get("missing")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if found {
		t.Errorf("expected absent key to report found=false")
	}

	if err := dict.Remove("alpha"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	_, found, err = dict.Get("alpha")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if found {
		t.Errorf("expected key to be gone after Remove")
	}

	// Removing an absent key is not an error.
	if err := dict.Remove("alpha"); err != nil {
		t.Errorf("expected idempotent Remove, got %v", err)
	}
}

func testRangeIteration(t *testing.T, url string) {
	db := createDatabase(t, url)
	defer db.Close()

	// Insert k01..k20 in random order; iteration must come back sorted.
	keys := make([]string, 20)
	for i := range keys {
		keys[i] = fmt.Sprintf("k%02d", i+1)
	}
	rand.Shuffle(len(keys), func(i, j int) {
		keys[i], keys[j] = keys[j], keys[i]
	})
	for _, key := range keys {
		saveDocument(t, db, key, map[string]string{"field0": "value-" + key})
	}

	cur, err := db.Dictionary().IterateMajor("k05")
	if err != nil {
		t.Fatalf("IterateMajor failed: %v", err)
	}
	defer cur.Close()

	var got []string
	for {
		key, doc, ok := cur.Next()
		if !ok {
			break
		}
		if v, _ := doc.Field("field0"); v != "value-"+key {
			t.Errorf("key %q resolved to wrong record (field0=%q)", key, v)
		}
		got = append(got, key)
	}

	if len(got) != 16 {
		t.Fatalf("expected 16 entries from k05, got %d (%v)", len(got), got)
	}
	for i, key := range got {
		want := fmt.Sprintf("k%02d", i+5)
		if key != want {
			t.Errorf("entry %d: expected %q, got %q", i, want, key)
		}
	}

	// A start key beyond the last entry yields an empty cursor.
	empty, err := db.Dictionary().IterateMajor("k99")
	if err != nil {
		t.Fatalf("IterateMajor failed: %v", err)
	}
	defer empty.Close()
	if _, _, ok := empty.Next(); ok {
		t.Errorf("expected empty cursor past the last key")
	}
}

func testReopen(t *testing.T, url string) {
	db := createDatabase(t, url)
	if err := db.CreateClass("usertable"); err != nil {
		t.Fatalf("CreateClass failed: %v", err)
	}
	saveDocument(t, db, "persist", map[string]string{"field0": "survives"})
	if err := db.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	sess := connect(t, url)
	if err := sess.Open("admin", "admin"); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer sess.Close()

	exists, err := sess.ExistsClass("usertable")
	if err != nil {
		t.Fatalf("ExistsClass failed: %v", err)
	}
	if !exists {
		t.Errorf("expected class to survive reopen")
	}

	doc, found, err := sess.Dictionary().Get("persist")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !found {
		t.Fatalf("expected key to survive reopen")
	}
	if v, _ := doc.Field("field0"); v != "survives" {
		t.Errorf("expected field0=survives, got %q", v)
	}
}
