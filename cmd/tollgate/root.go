package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "tollgate",
	Short: "Tollgate - distributed per-account rate limiter",
	Long: `Tollgate enforces per-account limits over shared storage.

Fungible limits meter interchangeable capacity (API calls, job slots)
through a token bucket with lazy refill. Non-fungible limits cap named
holdings (cluster ids, instance ids) through counted reservations that
are released when lifecycle events report the resource gone.

All state lives in the configured store (memory, sqlite or redis), so
any number of processes can enforce the same limits concurrently.`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
