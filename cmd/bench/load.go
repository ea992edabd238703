package bench

import (
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/docbench/docbench/lib/adapter"
	metrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
)

var loadCmd = &cobra.Command{
	Use:     "load",
	Short:   "Insert the initial record set",
	Long:    "Load phase: inserts the configured number of records, partitioned across the worker threads.",
	RunE:    runLoadPhase,
	PreRunE: processBenchConfig,
}

func runLoadPhase(_ *cobra.Command, _ []string) error {
	fmt.Println("docbench load phase")
	fmt.Println()
	fmt.Printf("Threads: %d\n", benchThreads)
	fmt.Printf("Records: %d\n", benchRecords)
	fmt.Printf("Fields:  %d x %d bytes\n", benchFields, benchFieldLength)
	fmt.Println()

	bindings, err := setupBindings()
	if err != nil {
		return err
	}
	defer cleanupBindings(bindings)

	registry := metrics.NewRegistry()
	timer := metrics.GetOrRegisterTimer("insert", registry)

	var errorCount atomic.Int64
	var wg sync.WaitGroup

	start := time.Now()

	// Each worker inserts the keys of its stride: worker w takes
	// w, w+threads, w+2*threads, ...
	for w := 0; w < benchThreads; w++ {
		wg.Add(1)
		go func(w int, b *adapter.Binding) {
			defer wg.Done()

			rnd := rand.New(rand.NewSource(time.Now().UnixNano() + int64(w)))

			for i := w; i < benchRecords; i += benchThreads {
				key := benchKey(i)
				values := randomValues(rnd)

				var status adapter.Status
				timer.Time(func() {
					status = b.Insert(benchTable, key, values)
				})
				if status != adapter.StatusOK {
					errorCount.Add(1)
				}
			}
		}(w, bindings[w])
	}

	wg.Wait()
	elapsed := time.Since(start)

	fmt.Printf("finished in %s\n", elapsed)
	printResult("insert", timer, errorCount.Load(), elapsed)

	if err := dumpMetrics(); err != nil {
		return fmt.Errorf("failed to export metrics: %v", err)
	}

	if errorCount.Load() > 0 {
		return fmt.Errorf("load phase finished with %d failed inserts", errorCount.Load())
	}
	return nil
}
