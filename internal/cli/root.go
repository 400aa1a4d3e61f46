// Package cli provides the command-line interface for relstore.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/relstack-labs/relstore/internal/cli/commands"
)

var (
	cfgFile  string
	database string
	verbose  bool
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "relstore",
		Short: "relstore - queryable record store with index sync",
		Long: `relstore is a relational record store with a parameter-driven query
compiler and automatic propagation of mutations to a secondary index.

Models are declared in relstore.yaml; every mutation re-serializes the
affected records and pushes them downstream.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
`)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./relstore.yaml)")
	rootCmd.PersistentFlags().StringVar(&database, "database", "", "SQLite database path (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	opts := commands.Options{
		ConfigFile: func() string { return cfgFile },
		Database:   func() string { return database },
		Logger:     buildLogger,
	}
	rootCmd.AddCommand(commands.NewServeCommand(opts))
	rootCmd.AddCommand(commands.NewQueryCommand(opts))
	rootCmd.AddCommand(commands.NewModelsCommand(opts))
	rootCmd.AddCommand(commands.NewVersionCommand(Version, BuildDate, GitCommit))

	return rootCmd
}

func buildLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// Execute runs the root command.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
