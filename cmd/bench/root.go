package bench

import (
	"fmt"
	"math/rand"
	"os"
	"time"

	vmetrics "github.com/VictoriaMetrics/metrics"
	"github.com/docbench/docbench/cmd/util"
	"github.com/docbench/docbench/lib/adapter"
	metrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	// Storage engines selectable via the url flag.
	_ "github.com/docbench/docbench/lib/engine/engines/birch"
	_ "github.com/docbench/docbench/lib/engine/engines/redis"
)

var (
	// BenchCommands represents the bench command group
	BenchCommands = &cobra.Command{
		Use:   "bench",
		Short: "Run benchmark workloads against a document storage engine",
	}

	// Workload shape, read once per invocation by processBenchConfig.
	benchTable       = "usertable"
	benchThreads     = 10
	benchRecords     = 1000
	benchFields      = 10
	benchFieldLength = 100
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitClientConfig)

	// Add common storage flags to the bench command
	util.SetupAdapterFlags(BenchCommands)

	// Workload shape flags shared by the load and run phases
	key := "threads"
	BenchCommands.PersistentFlags().Int(key, 10, util.WrapString("Number of worker threads"))
	key = "records"
	BenchCommands.PersistentFlags().Int(key, 1000, util.WrapString("Number of records in the keyspace (load inserts them, run operates on them)"))
	key = "fields"
	BenchCommands.PersistentFlags().Int(key, 10, util.WrapString("Number of fields per record"))
	key = "field-length"
	BenchCommands.PersistentFlags().Int(key, 100, util.WrapString("Length of each field value in bytes"))
	key = "metrics"
	BenchCommands.PersistentFlags().String(key, "", util.WrapString("Optional path to save the operation counters in Prometheus text format (use - for stdout)"))

	// Add subcommands
	BenchCommands.AddCommand(loadCmd)
	BenchCommands.AddCommand(runCmd)
}

// processBenchConfig reads the shared workload flags from viper.
func processBenchConfig(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	benchThreads = viper.GetInt("threads")
	benchRecords = viper.GetInt("records")
	benchFields = viper.GetInt("fields")
	benchFieldLength = viper.GetInt("field-length")

	if benchThreads < 1 {
		return fmt.Errorf("threads must be at least 1")
	}
	if benchRecords < 1 {
		return fmt.Errorf("records must be at least 1")
	}

	return nil
}

// setupBindings initializes one binding per worker thread. The bindings
// share the process-wide pool, so the first Initialize performs the
// bootstrap and the rest observe its result. Initialization is sequential
// so that a fresh-database drop cannot race the bootstrap of another
// worker in the same process.
func setupBindings() ([]*adapter.Binding, error) {
	props := util.GetAdapterProps()

	bindings := make([]*adapter.Binding, benchThreads)
	for i := range bindings {
		bindings[i] = adapter.New()
		if err := bindings[i].Initialize(props); err != nil {
			return nil, err
		}
		// Only the first worker may reset the database.
		delete(props, adapter.PropFreshDatabase)
	}

	return bindings, nil
}

// cleanupBindings runs every worker's cleanup hook and then shuts the
// shared pool down. The shutdown closes every pooled session, which is
// what lets embedded engines flush their state to disk before the
// process exits.
func cleanupBindings(bindings []*adapter.Binding) {
	for _, b := range bindings {
		_ = b.Cleanup()
	}
	adapter.Shutdown()
}

// dumpMetrics writes the adapter's per-operation status counters in
// Prometheus text format to the path given via the metrics flag.
func dumpMetrics() error {
	path := viper.GetString("metrics")
	if path == "" {
		return nil
	}

	if path == "-" {
		vmetrics.WritePrometheus(os.Stdout, true)
		return nil
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	vmetrics.WritePrometheus(f, true)
	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// benchKey is zero-padded so numeric and lexicographic key order agree,
// which keeps range scans over the keyspace meaningful.
func benchKey(i int) string {
	return fmt.Sprintf("user%08d", i)
}

const valueAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// randomValue builds one random field value of the configured length.
func randomValue(rnd *rand.Rand) string {
	buf := make([]byte, benchFieldLength)
	for i := range buf {
		buf[i] = valueAlphabet[rnd.Intn(len(valueAlphabet))]
	}
	return string(buf)
}

// randomValues builds one record's field map with random field values.
func randomValues(rnd *rand.Rand) map[string]string {
	values := make(map[string]string, benchFields)
	for f := 0; f < benchFields; f++ {
		values[fieldName(f)] = randomValue(rnd)
	}
	return values
}

func fieldName(f int) string {
	return fmt.Sprintf("field%d", f)
}

// allFieldNames lists the field names of the configured record shape.
func allFieldNames() []string {
	names := make([]string, benchFields)
	for f := range names {
		names[f] = fieldName(f)
	}
	return names
}

// printResult prints one operation class of a finished workload phase.
func printResult(op string, timer metrics.Timer, errors int64, elapsed time.Duration) {
	count := timer.Count()
	if count == 0 {
		fmt.Printf("%-10sskipped\n", op)
		return
	}

	snap := timer.Snapshot()
	opsPerSec := float64(count) / elapsed.Seconds()

	fmt.Printf("%-10s%8d ops\t%8.0f ops/sec\tavg %s\tp95 %s\tp99 %s\terrors %d\n",
		op, count, opsPerSec,
		time.Duration(snap.Mean()),
		time.Duration(snap.Percentile(0.95)),
		time.Duration(snap.Percentile(0.99)),
		errors)
}
