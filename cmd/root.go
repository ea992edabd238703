package cmd

import (
	"fmt"
	"os"

	"github.com/docbench/docbench/cmd/bench"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.1"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "docbench",
		Short: "benchmark driver for document storage engines",
		Long: fmt.Sprintf(`docbench (v%s)

A benchmark driver for document-oriented storage engines, running
keyed CRUD and range-scan workloads through a shared connection pool.`, Version),
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of docbench",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("docbench v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(bench.BenchCommands)
	RootCmd.AddCommand(versionCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
