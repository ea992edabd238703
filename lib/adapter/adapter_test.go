package adapter

import (
	"fmt"
	"math/rand"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docbench/docbench/lib/engine"
	_ "github.com/docbench/docbench/lib/engine/engines/birch"
)

// newTestBinding creates an initialized binding with a private pool slot
// against a fresh embedded database.
func newTestBinding(t *testing.T) *Binding {
	t.Helper()

	url := "plocal:" + filepath.Join(t.TempDir(), "databases", "bench")
	b := newBindingWithSlot(&poolSlot{})
	require.NoError(t, b.Initialize(map[string]string{PropURL: url}))
	require.NotNil(t, b.slot.get(), "bootstrap should have installed the pool")
	return b
}

func TestInsertReadRoundTrip(t *testing.T) {
	b := newTestBinding(t)

	fields := map[string]string{
		"field0": "value0",
		"field1": "value1",
		"field2": "value2",
	}
	require.Equal(t, StatusOK, b.Insert("usertable", "user1", fields))

	out := make(map[string]string)
	require.Equal(t, StatusOK, b.Read("usertable", "user1", nil, out))
	assert.Equal(t, fields, out)

	// Reading a subset copies only the requested fields.
	subset := make(map[string]string)
	require.Equal(t, StatusOK, b.Read("usertable", "user1", []string{"field1"}, subset))
	assert.Equal(t, map[string]string{"field1": "value1"}, subset)
}

func TestReadMissingKey(t *testing.T) {
	b := newTestBinding(t)

	out := make(map[string]string)
	assert.Equal(t, StatusError, b.Read("usertable", "nope", nil, out))
	assert.Empty(t, out)
}

func TestPartialUpdatePreservesUntouchedFields(t *testing.T) {
	b := newTestBinding(t)

	require.Equal(t, StatusOK, b.Insert("usertable", "user1", map[string]string{"a": "1", "b": "2"}))
	require.Equal(t, StatusOK, b.Update("usertable", "user1", map[string]string{"b": "3"}))

	out := make(map[string]string)
	require.Equal(t, StatusOK, b.Read("usertable", "user1", nil, out))
	assert.Equal(t, map[string]string{"a": "1", "b": "3"}, out)
}

func TestUpdateMissingKey(t *testing.T) {
	b := newTestBinding(t)

	assert.Equal(t, StatusError, b.Update("usertable", "nope", map[string]string{"a": "1"}))
}

func TestDeleteIsIdempotent(t *testing.T) {
	b := newTestBinding(t)

	require.Equal(t, StatusOK, b.Insert("usertable", "user1", map[string]string{"a": "1"}))

	assert.Equal(t, StatusOK, b.Delete("usertable", "user1"))
	assert.Equal(t, StatusOK, b.Delete("usertable", "user1"), "deleting an absent key must also be OK")
	assert.Equal(t, StatusOK, b.Delete("usertable", "never-existed"))

	out := make(map[string]string)
	assert.Equal(t, StatusError, b.Read("usertable", "user1", nil, out))
}

func TestScanOrderingAndBound(t *testing.T) {
	b := newTestBinding(t)

	keys := make([]string, 20)
	for i := range keys {
		keys[i] = fmt.Sprintf("user%d", i+1)
	}
	rand.Shuffle(len(keys), func(i, j int) {
		keys[i], keys[j] = keys[j], keys[i]
	})
	for _, key := range keys {
		require.Equal(t, StatusOK, b.Insert("usertable", key, map[string]string{"field0": "value-" + key}))
	}

	var result []map[string]string
	require.Equal(t, StatusOK, b.Scan("usertable", "user5", 5, []string{"field0"}, &result))

	// Lexicographic order from "user5": user5..user9.
	require.Len(t, result, 5)
	for i, row := range result {
		want := fmt.Sprintf("value-user%d", i+5)
		assert.Equal(t, want, row["field0"], "row %d", i)
	}
}

func TestScanRequiresFieldList(t *testing.T) {
	b := newTestBinding(t)

	require.Equal(t, StatusOK, b.Insert("usertable", "user1", map[string]string{"field0": "v"}))

	var result []map[string]string
	assert.Equal(t, StatusError, b.Scan("usertable", "user1", 5, nil, &result))
}

func TestScanPastEndReturnsFewer(t *testing.T) {
	b := newTestBinding(t)

	for i := 1; i <= 3; i++ {
		key := fmt.Sprintf("user%d", i)
		require.Equal(t, StatusOK, b.Insert("usertable", key, map[string]string{"field0": key}))
	}

	var result []map[string]string
	require.Equal(t, StatusOK, b.Scan("usertable", "user2", 10, []string{"field0"}, &result))
	assert.Len(t, result, 2)
}

func TestOperationsFailFastWithoutPool(t *testing.T) {
	// No Initialize: the slot stays empty.
	b := newBindingWithSlot(&poolSlot{})

	out := make(map[string]string)
	var rows []map[string]string

	assert.Equal(t, StatusError, b.Insert("usertable", "k", map[string]string{"a": "1"}))
	assert.Equal(t, StatusError, b.Read("usertable", "k", nil, out))
	assert.Equal(t, StatusError, b.Update("usertable", "k", map[string]string{"a": "1"}))
	assert.Equal(t, StatusError, b.Delete("usertable", "k"))
	assert.Equal(t, StatusError, b.Scan("usertable", "k", 1, []string{"a"}, &rows))
}

func TestInitializeFailsOpenOnBadTarget(t *testing.T) {
	b := newBindingWithSlot(&poolSlot{})

	// Unknown scheme: the bootstrap fails, but Initialize must not.
	require.NoError(t, b.Initialize(map[string]string{PropURL: "bogus:nowhere"}))
	assert.Nil(t, b.slot.get(), "no pool may be installed after a failed bootstrap")

	assert.Equal(t, StatusError, b.Insert("usertable", "k", map[string]string{"a": "1"}))
}

func TestCleanupIsANoOp(t *testing.T) {
	b := newTestBinding(t)

	require.Equal(t, StatusOK, b.Insert("usertable", "user1", map[string]string{"a": "1"}))
	require.NoError(t, b.Cleanup())

	// The shared pool survives a worker's cleanup.
	out := make(map[string]string)
	assert.Equal(t, StatusOK, b.Read("usertable", "user1", nil, out))
}

func TestConcurrentInitialize(t *testing.T) {
	const workers = 8

	url := "plocal:" + filepath.Join(t.TempDir(), "databases", "bench")
	slot := &poolSlot{}

	bindings := make([]*Binding, workers)
	for i := range bindings {
		bindings[i] = newBindingWithSlot(slot)
	}

	var wg sync.WaitGroup
	for _, b := range bindings {
		wg.Add(1)
		go func(b *Binding) {
			defer wg.Done()
			if err := b.Initialize(map[string]string{PropURL: url}); err != nil {
				t.Errorf("Initialize failed: %v", err)
			}
		}(b)
	}
	wg.Wait()

	// Exactly one pool instance, observed identically by every worker.
	pool := slot.get()
	require.NotNil(t, pool)
	for i, b := range bindings {
		assert.Same(t, pool, b.slot.get(), "binding %d", i)
	}

	// Exactly one schema class exists (single post-condition check).
	db, err := engine.Connect(url)
	require.NoError(t, err)
	require.NoError(t, db.Open("admin", "admin"))
	defer db.Close()

	exists, err := db.ExistsClass(schemaClass)
	require.NoError(t, err)
	assert.True(t, exists)

	// All workers operate through the shared pool.
	require.Equal(t, StatusOK, bindings[0].Insert("usertable", "user1", map[string]string{"a": "1"}))
	out := make(map[string]string)
	require.Equal(t, StatusOK, bindings[workers-1].Read("usertable", "user1", nil, out))
	assert.Equal(t, map[string]string{"a": "1"}, out)
}

func TestShutdownUninstallsPool(t *testing.T) {
	url := "plocal:" + filepath.Join(t.TempDir(), "databases", "bench")

	b := newBindingWithSlot(&poolSlot{})
	require.NoError(t, b.Initialize(map[string]string{PropURL: url}))
	require.Equal(t, StatusOK, b.Insert("usertable", "user1", map[string]string{"a": "1"}))

	b.slot.shutdown()
	assert.Nil(t, b.slot.get())

	// Without a pool every operation fails fast.
	out := make(map[string]string)
	assert.Equal(t, StatusError, b.Read("usertable", "user1", nil, out))

	// Shutting down twice is a no-op.
	b.slot.shutdown()

	// A later bootstrap installs a fresh pool over the same data.
	require.NoError(t, b.Initialize(map[string]string{PropURL: url}))
	require.Equal(t, StatusOK, b.Read("usertable", "user1", nil, out))
	assert.Equal(t, map[string]string{"a": "1"}, out)
}

func TestFreshDatabaseReset(t *testing.T) {
	url := "plocal:" + filepath.Join(t.TempDir(), "databases", "bench")

	// First generation: create and populate.
	first := newBindingWithSlot(&poolSlot{})
	require.NoError(t, first.Initialize(map[string]string{PropURL: url}))
	require.Equal(t, StatusOK, first.Insert("usertable", "user1", map[string]string{"a": "1"}))

	// Second generation with fresh-database: full reset.
	second := newBindingWithSlot(&poolSlot{})
	require.NoError(t, second.Initialize(map[string]string{
		PropURL:           url,
		PropFreshDatabase: "true",
	}))
	require.NotNil(t, second.slot.get())

	out := make(map[string]string)
	assert.Equal(t, StatusError, second.Read("usertable", "user1", nil, out), "previously inserted keys must be gone")

	// The schema marker exists and the database is usable.
	require.Equal(t, StatusOK, second.Insert("usertable", "user2", map[string]string{"b": "2"}))
	require.Equal(t, StatusOK, second.Read("usertable", "user2", nil, out))
	assert.Equal(t, map[string]string{"b": "2"}, out)
}
