package bench

import (
	"encoding/csv"
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/docbench/docbench/cmd/util"
	"github.com/docbench/docbench/lib/adapter"
	metrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	runCmd = &cobra.Command{
		Use:     "run",
		Short:   "Run the mixed transaction workload",
		Long:    "Transaction phase: runs a mix of read, update, insert and scan operations against the loaded record set.",
		RunE:    runTransactionPhase,
		PreRunE: processRunConfig,
	}

	runOperations = 10000
	runScanLength = 10
	runMix        opMix
)

// opMix holds the cumulative proportions used to pick the next operation.
type opMix struct {
	read, update, insert, scan float64
}

// pick maps a uniform random number in [0, 1) onto an operation name.
func (m opMix) pick(r float64) string {
	total := m.read + m.update + m.insert + m.scan
	r *= total
	if r < m.read {
		return "read"
	}
	if r < m.read+m.update {
		return "update"
	}
	if r < m.read+m.update+m.insert {
		return "insert"
	}
	return "scan"
}

func init() {
	key := "operations"
	runCmd.Flags().Int(key, 10000, util.WrapString("Total number of operations to run"))
	key = "read-proportion"
	runCmd.Flags().Float64(key, 0.75, util.WrapString("Proportion of read operations"))
	key = "update-proportion"
	runCmd.Flags().Float64(key, 0.15, util.WrapString("Proportion of update operations"))
	key = "insert-proportion"
	runCmd.Flags().Float64(key, 0.05, util.WrapString("Proportion of insert operations"))
	key = "scan-proportion"
	runCmd.Flags().Float64(key, 0.05, util.WrapString("Proportion of scan operations"))
	key = "scan-length"
	runCmd.Flags().Int(key, 10, util.WrapString("Number of records each scan reads"))
	key = "csv"
	runCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processRunConfig(cmd *cobra.Command, args []string) error {
	if err := processBenchConfig(cmd, args); err != nil {
		return err
	}

	runOperations = viper.GetInt("operations")
	runScanLength = viper.GetInt("scan-length")
	runMix = opMix{
		read:   viper.GetFloat64("read-proportion"),
		update: viper.GetFloat64("update-proportion"),
		insert: viper.GetFloat64("insert-proportion"),
		scan:   viper.GetFloat64("scan-proportion"),
	}

	if runOperations < 1 {
		return fmt.Errorf("operations must be at least 1")
	}
	if runScanLength < 1 {
		return fmt.Errorf("scan-length must be at least 1")
	}
	if runMix.read+runMix.update+runMix.insert+runMix.scan <= 0 {
		return fmt.Errorf("at least one operation proportion must be positive")
	}

	return nil
}

func runTransactionPhase(_ *cobra.Command, _ []string) error {
	fmt.Println("docbench transaction phase")
	fmt.Println()
	fmt.Printf("Threads:    %d\n", benchThreads)
	fmt.Printf("Operations: %d\n", runOperations)
	fmt.Printf("Mix:        read %.2f / update %.2f / insert %.2f / scan %.2f\n",
		runMix.read, runMix.update, runMix.insert, runMix.scan)
	fmt.Println()

	bindings, err := setupBindings()
	if err != nil {
		return err
	}
	defer cleanupBindings(bindings)

	registry := metrics.NewRegistry()
	ops := []string{"read", "update", "insert", "scan"}

	timers := make(map[string]metrics.Timer, len(ops))
	errorCounts := make(map[string]*atomic.Int64, len(ops))
	for _, op := range ops {
		timers[op] = metrics.GetOrRegisterTimer(op, registry)
		errorCounts[op] = &atomic.Int64{}
	}

	// Inserts extend the keyspace past the loaded records.
	var keyTotal atomic.Int64
	keyTotal.Store(int64(benchRecords))

	var remaining atomic.Int64
	remaining.Store(int64(runOperations))

	fields := allFieldNames()

	var wg sync.WaitGroup
	start := time.Now()

	for w := 0; w < benchThreads; w++ {
		wg.Add(1)
		go func(w int, b *adapter.Binding) {
			defer wg.Done()

			rnd := rand.New(rand.NewSource(time.Now().UnixNano() + int64(w)))

			for remaining.Add(-1) >= 0 {
				op := runMix.pick(rnd.Float64())

				var status adapter.Status
				timers[op].Time(func() {
					switch op {
					case "read":
						key := benchKey(rnd.Intn(int(keyTotal.Load())))
						result := make(map[string]string, benchFields)
						status = b.Read(benchTable, key, nil, result)
					case "update":
						key := benchKey(rnd.Intn(int(keyTotal.Load())))
						values := map[string]string{
							fieldName(rnd.Intn(benchFields)): randomValue(rnd),
						}
						status = b.Update(benchTable, key, values)
					case "insert":
						key := benchKey(int(keyTotal.Add(1) - 1))
						status = b.Insert(benchTable, key, randomValues(rnd))
					case "scan":
						startKey := benchKey(rnd.Intn(int(keyTotal.Load())))
						var result []map[string]string
						status = b.Scan(benchTable, startKey, runScanLength, fields, &result)
					}
				})

				if status != adapter.StatusOK {
					errorCounts[op].Add(1)
				}
			}
		}(w, bindings[w])
	}

	wg.Wait()
	elapsed := time.Since(start)

	fmt.Printf("finished in %s (%.0f ops/sec overall)\n\n",
		elapsed, float64(runOperations)/elapsed.Seconds())
	for _, op := range ops {
		printResult(op, timers[op], errorCounts[op].Load(), elapsed)
	}

	if err := dumpMetrics(); err != nil {
		return fmt.Errorf("failed to export metrics: %v", err)
	}

	// Write results to csv if specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, ops, timers, errorCounts, elapsed); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	return nil
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, ops []string, timers map[string]metrics.Timer, errorCounts map[string]*atomic.Int64, elapsed time.Duration) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	header := []string{
		"Test", "Count", "Errors", "MeanNs", "P95Ns", "P99Ns", "OpsPerSec",
		"Threads", "Records", "Fields", "FieldLength", "Operations", "ScanLength",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	// Write test results
	for _, op := range ops {
		snap := timers[op].Snapshot()
		count := snap.Count()

		opsPerSec := 0.0
		if elapsed > 0 {
			opsPerSec = float64(count) / elapsed.Seconds()
		}

		row := []string{
			op,
			strconv.FormatInt(count, 10),
			strconv.FormatInt(errorCounts[op].Load(), 10),
			strconv.FormatFloat(snap.Mean(), 'f', 0, 64),
			strconv.FormatFloat(snap.Percentile(0.95), 'f', 0, 64),
			strconv.FormatFloat(snap.Percentile(0.99), 'f', 0, 64),
			strconv.FormatFloat(opsPerSec, 'f', 2, 64),
			strconv.Itoa(benchThreads),
			strconv.Itoa(benchRecords),
			strconv.Itoa(benchFields),
			strconv.Itoa(benchFieldLength),
			strconv.Itoa(runOperations),
			strconv.Itoa(runScanLength),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %v", err)
		}
	}

	return nil
}
