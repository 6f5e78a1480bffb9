// Package batch drives many independent audits in parallel. A single
// audit stays single-threaded; the batch driver is the only place
// concurrency exists.
package batch

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"degreeaudit/internal/config"
	"degreeaudit/internal/engine"
	"degreeaudit/internal/store"
	"degreeaudit/internal/student"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Job names one audit: a student against one area of one catalog.
type Job struct {
	Stnum    string
	Catalog  string
	AreaCode string
}

// Outcome is the result of one job. Err is set for load failures;
// Halted marks audits that hit their budget.
type Outcome struct {
	Job        Job
	Result     *engine.AreaResult
	Iterations int
	ElapsedMs  int64
	Halted     bool
	Err        error
}

// ParseJobs reads "stnum catalog area_code" triples, one per line,
// deduplicates them, and returns them in a deterministic order.
func ParseJobs(r io.Reader) ([]Job, error) {
	seen := make(map[Job]bool)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 3 {
			return nil, fmt.Errorf("expected \"stnum catalog area_code\", found %q", line)
		}
		seen[Job{Stnum: fields[0], Catalog: fields[1], AreaCode: fields[2]}] = true
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	jobs := make([]Job, 0, len(seen))
	for j := range seen {
		jobs = append(jobs, j)
	}
	sort.Slice(jobs, func(i, k int) bool {
		if jobs[i].Stnum != jobs[k].Stnum {
			return jobs[i].Stnum < jobs[k].Stnum
		}
		if jobs[i].Catalog != jobs[k].Catalog {
			return jobs[i].Catalog < jobs[k].Catalog
		}
		return jobs[i].AreaCode < jobs[k].AreaCode
	})
	return jobs, nil
}

// Runner executes jobs against the configured directories.
type Runner struct {
	Config *config.Config
	Log    *zap.Logger
	Store  *store.Store // optional
	RunID  string
}

// NewRunner builds a runner with a fresh run identifier.
func NewRunner(cfg *config.Config, log *zap.Logger, st *store.Store) *Runner {
	return &Runner{
		Config: cfg,
		Log:    log,
		Store:  st,
		RunID:  uuid.NewString(),
	}
}

// Run executes every job across the configured worker pool, invoking
// emit for each outcome. Outcomes arrive in completion order.
func (r *Runner) Run(ctx context.Context, jobs []Job, emit func(Outcome)) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.Config.Workers)

	outcomes := make(chan Outcome)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for o := range outcomes {
			emit(o)
		}
	}()

	for _, job := range jobs {
		job := job
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			outcomes <- r.runOne(job)
			return nil
		})
	}

	err := g.Wait()
	close(outcomes)
	<-done
	return err
}

// RunOne executes a single job synchronously.
func (r *Runner) RunOne(job Job) Outcome {
	return r.runOne(job)
}

func (r *Runner) runOne(job Job) Outcome {
	outcome := Outcome{Job: job}

	s, err := student.Load(r.Config.StudentPath(job.Stnum))
	if err != nil {
		outcome.Err = err
		return outcome
	}

	area, auditCtx, err := loadAreaFile(r.Config.AreaPath(job.Catalog, job.AreaCode), s, r.Log)
	if err != nil {
		outcome.Err = err
		return outcome
	}

	opts := engine.AuditOptions{
		IterLimit:     r.Config.Audit.IterationLimit,
		ProgressEvery: 0,
	}
	if r.Config.Audit.TimeoutSeconds > 0 {
		opts.Deadline = time.Now().Add(time.Duration(r.Config.Audit.TimeoutSeconds) * time.Second)
	}

	err = area.RunAudit(auditCtx, opts, func(msg engine.Message) {
		switch m := msg.(type) {
		case engine.ResultMsg:
			outcome.Result = m.Result
			outcome.Iterations = m.Iters
			outcome.ElapsedMs = m.ElapsedMs
		case engine.NoAuditsCompletedMsg:
			outcome.Halted = true
		}
	})
	if err != nil {
		outcome.Err = err
		return outcome
	}

	if outcome.Result != nil && r.Store != nil {
		if err := r.persist(job, &outcome); err != nil {
			r.Log.Warn("failed to persist audit result",
				zap.String("stnum", job.Stnum),
				zap.String("area_code", job.AreaCode),
				zap.Error(err))
		}
	}

	return outcome
}

func loadAreaFile(path string, s *student.Student, log *zap.Logger) (*engine.AreaOfStudy, *engine.RequirementContext, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading area specification: %w", err)
	}
	return engine.LoadArea(blob, s, log)
}

func (r *Runner) persist(job Job, outcome *Outcome) error {
	resultJSON, err := outcome.Result.ToJSON()
	if err != nil {
		return err
	}
	claimsJSON, err := outcome.Result.ClaimsJSON()
	if err != nil {
		return err
	}

	rank, maxRank := outcome.Result.Result.Rank()
	_, err = r.Store.Save(store.ResultRecord{
		RunID:      r.RunID,
		StudentID:  job.Stnum,
		AreaCode:   job.AreaCode,
		Catalog:    job.Catalog,
		Status:     string(outcome.Result.Result.Status()),
		OK:         outcome.Result.OK(),
		Rank:       rank.String(),
		MaxRank:    maxRank.String(),
		GPA:        outcome.Result.GPA.StringFixed(2),
		Iterations: outcome.Iterations,
		DurationMs: outcome.ElapsedMs,
		ResultJSON: string(resultJSON),
		ClaimsJSON: string(claimsJSON),
	})
	return err
}
