// Package main implements the audit CLI - a degree-audit engine that
// evaluates student transcripts against declarative area-of-study
// requirement specifications.
//
// Command implementations are split across cmd_*.go files:
//
//   - main.go           - entry point, rootCmd, global flags
//   - cmd_run.go        - runCmd, one audit against one area file
//   - cmd_batch.go      - batchCmd, parallel audits from stdin triples
//   - cmd_transcript.go - transcriptCmd and gpaCmd CSV dumps
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"degreeaudit/internal/config"
	"degreeaudit/internal/logging"
)

var (
	// Global flags
	verbose    bool
	configPath string

	// Loaded per invocation
	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "audit",
	Short: "audit - degree requirement auditing engine",
	Long: `audit evaluates a student's transcript against a declarative
area-of-study specification and reports the best-scoring assignment of
courses to requirements, with a ranked, itemized explanation.

Specifications are YAML rule trees; students are JSON exports from the
registrar. See the run and batch commands to get started.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if verbose {
			cfg.Logging.Level = "debug"
		}

		logger, err = logging.NewAt(cfg.Logging.Level)
		if err != nil {
			return err
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging (includes per-claim traces)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "audit.yaml", "path to the configuration file")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(transcriptCmd)
	rootCmd.AddCommand(gpaCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
