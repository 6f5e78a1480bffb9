package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"degreeaudit/internal/batch"
	"degreeaudit/internal/store"
)

var (
	batchTable   bool
	batchNoStore bool
)

// batchCmd runs many audits in parallel from stdin triples.
var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Audit many students from stdin",
	Long: `Reads "stnum catalog area_code" triples from stdin, resolves the
student and area files under the configured directories, and audits
each pair across a worker pool. Results are persisted to the configured
database unless --no-store is given.

Example:
  echo "123456 2019-20 130" | audit batch --table`,
	RunE: runBatch,
}

func init() {
	batchCmd.Flags().BoolVar(&batchTable, "table", false, "print one CSV row per audit")
	batchCmd.Flags().BoolVar(&batchNoStore, "no-store", false, "skip result persistence")
}

func runBatch(cmd *cobra.Command, args []string) error {
	jobs, err := batch.ParseJobs(os.Stdin)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		return fmt.Errorf("expected a list of \"stnum catalog area_code\" triples on stdin")
	}

	var st *store.Store
	if !batchNoStore {
		st, err = store.Open(cfg.DatabasePath)
		if err != nil {
			return err
		}
		defer st.Close()
	}

	runner := batch.NewRunner(cfg, logger, st)
	logger.Info("starting batch run",
		zap.String("run_id", runner.RunID),
		zap.Int("jobs", len(jobs)),
		zap.Int("workers", cfg.Workers))

	if batchTable {
		fmt.Println("stnum,catalog,area_code,gpa,rank,max_rank,ok")
	}

	failures := 0
	err = runner.Run(cmd.Context(), jobs, func(o batch.Outcome) {
		switch {
		case o.Err != nil:
			failures++
			logger.Error("audit failed",
				zap.String("stnum", o.Job.Stnum),
				zap.String("area_code", o.Job.AreaCode),
				zap.Error(o.Err))
		case o.Halted:
			failures++
			logger.Warn("audit hit its budget before completing",
				zap.String("stnum", o.Job.Stnum),
				zap.String("area_code", o.Job.AreaCode))
		case batchTable:
			rank, maxRank := o.Result.Result.Rank()
			fmt.Printf("%s,%s,%s,%s,%s,%s,%t\n",
				o.Job.Stnum, o.Job.Catalog, o.Job.AreaCode,
				o.Result.GPA.StringFixed(2), rank.String(), maxRank.String(), o.Result.OK())
		default:
			logger.Info("audit complete",
				zap.String("stnum", o.Job.Stnum),
				zap.String("area_code", o.Job.AreaCode),
				zap.Bool("ok", o.Result.OK()),
				zap.Int("iterations", o.Iterations),
				zap.Int64("elapsed_ms", o.ElapsedMs))
		}
	})
	if err != nil {
		return err
	}

	if failures > 0 {
		return fmt.Errorf("%d of %d audits did not complete", failures, len(jobs))
	}
	return nil
}
