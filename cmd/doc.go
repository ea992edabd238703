// Package cmd implements the command-line interface for the docbench
// benchmark driver. It provides a hierarchical command structure for
// running load and transaction phases against a document storage engine.
//
// The package is organized into several subpackages:
//
//   - bench: Commands for running benchmark workloads (load, run)
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See docbench -help for a list of all commands.
package cmd
