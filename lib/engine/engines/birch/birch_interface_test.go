package birch

import (
	"path/filepath"
	"testing"

	"github.com/docbench/docbench/lib/adapter"
	"github.com/docbench/docbench/lib/engine"
	enginetesting "github.com/docbench/docbench/lib/engine/testing"
)

func Test(t *testing.T) {
	enginetesting.RunEngineTests(t, "BirchDB", func() string {
		return "plocal:" + filepath.Join(t.TempDir(), "databases", "bench")
	})
}

func Benchmark(b *testing.B) {
	enginetesting.RunEngineBenchmarks(b, "BirchDB", func() string {
		return "plocal:" + filepath.Join(b.TempDir(), "databases", "bench")
	})
}

// TestPoolShutdownFlushesSnapshot drives a load phase through the adapter
// and shuts the shared pool down, the way the workload driver does after
// the last worker finished. Evicting the in-process store afterwards
// emulates a process restart: the loaded record must come back from the
// on-disk snapshot in the next process.
func TestPoolShutdownFlushesSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "databases", "bench")
	url := "plocal:" + path

	b := adapter.New()
	if err := b.Initialize(map[string]string{adapter.PropURL: url}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if status := b.Insert("usertable", "user1", map[string]string{"field0": "loaded"}); status != adapter.StatusOK {
		t.Fatalf("Insert failed with status %v", status)
	}
	if err := b.Cleanup(); err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}
	adapter.Shutdown()

	stores.Delete(filepath.Clean(path))

	db, err := engine.Connect(url)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if err := db.Open("admin", "admin"); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	doc, found, err := db.Dictionary().Get("user1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !found {
		t.Fatalf("expected the loaded record to survive a process restart")
	}
	if v, _ := doc.Field("field0"); v != "loaded" {
		t.Errorf("expected field0=loaded, got %q", v)
	}
}

// TestSnapshotRoundTrip evicts the in-process store between close and
// reopen, forcing the reopened session through the on-disk snapshot.
func TestSnapshotRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "databases", "snap")
	url := "plocal:" + path

	db, err := engine.Connect(url)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if err := db.Create(); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := db.CreateClass("usertable"); err != nil {
		t.Fatalf("CreateClass failed: %v", err)
	}

	doc := engine.NewDocument("usertable")
	doc.SetField("field0", "persisted")
	doc.SetField("field1", "value")
	if err := db.Save(doc); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := db.Dictionary().Put("user1", doc); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	// Last close flushes the snapshot.
	if err := db.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	stores.Delete(filepath.Clean(path))

	reopened, err := engine.Connect(url)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if err := reopened.Open("admin", "admin"); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer reopened.Close()

	exists, err := reopened.ExistsClass("usertable")
	if err != nil {
		t.Fatalf("ExistsClass failed: %v", err)
	}
	if !exists {
		t.Errorf("expected class to be restored from snapshot")
	}

	restored, found, err := reopened.Dictionary().Get("user1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !found {
		t.Fatalf("expected key to be restored from snapshot")
	}
	if restored.RID() != doc.RID() {
		t.Errorf("expected RID %q to be stable across snapshots, got %q", doc.RID(), restored.RID())
	}
	if v, _ := restored.Field("field0"); v != "persisted" {
		t.Errorf("expected field0=persisted, got %q", v)
	}
	if v, _ := restored.Field("field1"); v != "value" {
		t.Errorf("expected field1=value, got %q", v)
	}
}
