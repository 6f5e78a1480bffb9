package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"degreeaudit/internal/engine"
	"degreeaudit/internal/render"
	"degreeaudit/internal/student"
)

var (
	runStudentPath string
	runAreaPath    string
	runJSON        bool
	runShowPaths   bool
	runShowRanks   bool
)

// runCmd audits one student against one area specification file.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Audit one student against one area specification",
	Long: `Runs a single audit and prints a summary of the result tree.

Example:
  audit run --student students/123456.json --area areas/2019-20/130.yaml
  audit run --student s.json --area a.yaml --json > result.json`,
	RunE: runAudit,
}

func init() {
	runCmd.Flags().StringVar(&runStudentPath, "student", "", "student JSON file (required)")
	runCmd.Flags().StringVar(&runAreaPath, "area", "", "area specification YAML file (required)")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "emit the raw result JSON instead of a summary")
	runCmd.Flags().BoolVar(&runShowPaths, "paths", false, "annotate the summary with rule paths")
	runCmd.Flags().BoolVar(&runShowRanks, "ranks", true, "annotate the summary with ranks")
	_ = runCmd.MarkFlagRequired("student")
	_ = runCmd.MarkFlagRequired("area")
}

func runAudit(cmd *cobra.Command, args []string) error {
	s, err := student.Load(runStudentPath)
	if err != nil {
		return err
	}

	blob, err := os.ReadFile(runAreaPath)
	if err != nil {
		return fmt.Errorf("reading area specification: %w", err)
	}

	area, auditCtx, err := engine.LoadArea(blob, s, logger)
	if err != nil {
		return err
	}

	logger.Info("auditing",
		zap.String("stnum", s.Stnum),
		zap.String("area_code", area.Code),
		zap.String("catalog", area.Catalog))

	opts := engine.AuditOptions{
		IterLimit:     cfg.Audit.IterationLimit,
		ProgressEvery: cfg.Audit.ProgressEvery,
	}
	if cfg.Audit.TimeoutSeconds > 0 {
		opts.Deadline = time.Now().Add(time.Duration(cfg.Audit.TimeoutSeconds) * time.Second)
	}

	var exitErr error
	err = area.RunAudit(auditCtx, opts, func(msg engine.Message) {
		switch m := msg.(type) {
		case engine.EstimateMsg:
			logger.Debug("estimated candidate evaluations", zap.Int("count", m.Count))
		case engine.ProgressMsg:
			logger.Info("audit progress",
				zap.Int("iterations", m.Iters),
				zap.Float64("avg_iter_ms", m.AvgIterMs),
				zap.String("best_rank", m.BestRank.String()))
		case engine.NoAuditsCompletedMsg:
			exitErr = fmt.Errorf("no audits completed within the budget")
		case engine.ResultMsg:
			exitErr = emitResult(m)
		}
	})
	if err != nil {
		return err
	}
	return exitErr
}

func emitResult(m engine.ResultMsg) error {
	if runJSON {
		blob, err := m.Result.ToJSON()
		if err != nil {
			return err
		}
		fmt.Println(string(blob))
		return nil
	}

	err := render.Summarize(os.Stdout, m.Result, render.SummaryOptions{
		ShowPaths: runShowPaths,
		ShowRanks: runShowRanks,
	})
	if err != nil {
		return err
	}
	fmt.Printf("\n%d iterations in %dms\n", m.Iters, m.ElapsedMs)
	return nil
}
