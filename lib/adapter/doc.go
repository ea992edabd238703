// Package adapter implements the benchmark-facing binding over a
// document-oriented storage engine: a process-wide session pool shared by
// all concurrent workers, a race-safe one-time database and schema
// bootstrap, and the five harness operations (insert, read, update,
// delete, scan) resolved through the engine's global key dictionary.
//
// Lifecycle: every worker calls Initialize once. Initialize resolves the
// configuration (see ResolveConfig) and runs the bootstrap protocol, which
// tolerates any number of workers starting concurrently against the same
// target: database creation races and schema creation races are recovered
// locally, and the pool singleton is installed with a compare-and-set so
// exactly one pool serves the whole process. Cleanup is deliberately a
// no-op because the pool outlives individual workers; the workload driver
// calls Shutdown once after the last worker finished, which closes every
// pooled session and lets embedded engines flush their state to disk.
//
// Every operation follows the same shape: acquire a pooled session,
// operate through the dictionary, release the session on every exit path.
// The harness only ever observes StatusOK or StatusError; the specific
// failure cause (pool never initialized, key not found, connection
// failure, engine fault) is classified as a RetCode, logged, and then
// collapsed.
//
// Bootstrap failures do not crash the harness: Initialize completes and
// leaves the pool uninstalled, so every subsequent operation fails fast
// with RetCPoolUninitialized. The schema retry loop waits a fixed backoff
// between attempts and is bounded by bootstrap-max-retries (0 disables the
// ceiling).
package adapter
