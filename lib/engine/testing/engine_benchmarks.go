package testing

import (
	"fmt"
	"testing"

	"github.com/docbench/docbench/lib/engine"
)

// RunEngineBenchmarks runs all benchmarks for an engine.Database
// implementation.
func RunEngineBenchmarks(b *testing.B, name string, factory TargetFactory) {
	b.Run(name+"/Put", func(b *testing.B) {
		benchmarkPut(b, factory())
	})

	b.Run(name+"/Get", func(b *testing.B) {
		benchmarkGet(b, factory())
	})

	b.Run(name+"/IterateMajor", func(b *testing.B) {
		benchmarkIterate(b, factory())
	})
}

func benchmarkSetup(b *testing.B, url string, records int) engine.Database {
	b.Helper()
	db := createDatabase(b, url)
	for i := 0; i < records; i++ {
		saveDocument(b, db, fmt.Sprintf("user%08d", i), map[string]string{"field0": "value"})
	}
	return db
}

func benchmarkPut(b *testing.B, url string) {
	db := benchmarkSetup(b, url, 0)
	defer db.Close()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		doc := engine.NewDocument("usertable")
		doc.SetField("field0", "value")
		if err := db.Save(doc); err != nil {
			b.Fatalf("Save failed: %v", err)
		}
		if err := db.Dictionary().Put(fmt.Sprintf("user%08d", i), doc); err != nil {
			b.Fatalf("Put failed: %v", err)
		}
	}
}

func benchmarkGet(b *testing.B, url string) {
	const records = 10_000

	db := benchmarkSetup(b, url, records)
	defer db.Close()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		key := fmt.Sprintf("user%08d", i%records)
		if _, found, err := db.Dictionary().Get(key); err != nil || !found {
			b.Fatalf("Get(%q) failed: found=%v err=%v", key, found, err)
		}
	}
}

func benchmarkIterate(b *testing.B, url string) {
	const records = 10_000

	db := benchmarkSetup(b, url, records)
	defer db.Close()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		cur, err := db.Dictionary().IterateMajor(fmt.Sprintf("user%08d", i%records))
		if err != nil {
			b.Fatalf("IterateMajor failed: %v", err)
		}
		for n := 0; n < 100; n++ {
			if _, _, ok := cur.Next(); !ok {
				break
			}
		}
		cur.Close()
	}
}
