package engine

import (
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"

	"degreeaudit/internal/student"
	"github.com/shopspring/decimal"
)

// Message is one entry in the stream yielded during an audit.
type Message interface{ isMessage() }

// EstimateMsg reports a rough upper bound on candidate evaluations
// before the search begins.
type EstimateMsg struct {
	Count int
}

// ProgressMsg is emitted periodically while the solver runs.
type ProgressMsg struct {
	Iters     int
	AvgIterMs float64
	BestRank  decimal.Decimal
}

// ResultMsg carries the completed audit.
type ResultMsg struct {
	Result    *AreaResult
	Iters     int
	ElapsedMs int64
	AvgIterMs float64
	Transcript []*student.CourseInstance
}

// NoAuditsCompletedMsg reports that the deadline or iteration budget
// expired before any complete assignment was found.
type NoAuditsCompletedMsg struct {
	Err error
}

func (EstimateMsg) isMessage()          {}
func (ProgressMsg) isMessage()          {}
func (ResultMsg) isMessage()            {}
func (NoAuditsCompletedMsg) isMessage() {}

// AuditOptions bound one audit run.
type AuditOptions struct {
	Deadline      time.Time
	IterLimit     int
	ProgressEvery int
}

// AreaResult is the top of the result tree, with the overall verdict
// and the GPA over the chosen courses.
type AreaResult struct {
	Area   *AreaOfStudy
	Result Result
	GPA    decimal.Decimal
}

func (r *AreaResult) OK() bool { return r.Result.OK() }

func (r *AreaResult) ToDict() map[string]any {
	rank, maxRank := r.Result.Rank()
	return map[string]any{
		"type":     "area",
		"name":     r.Area.Name,
		"code":     r.Area.Code,
		"catalog":  r.Area.Catalog,
		"kind":     r.Area.Kind,
		"status":   string(r.Result.Status()),
		"ok":       r.Result.OK(),
		"rank":     rank.String(),
		"max_rank": maxRank.String(),
		"gpa":      r.GPA.StringFixed(2),
		"result":   r.Result.ToDict(),
	}
}

// ToJSON serializes the result tree with a stable key order; two audits
// of identical inputs produce byte-identical output.
func (r *AreaResult) ToJSON() ([]byte, error) {
	return json.Marshal(r.ToDict())
}

// ClaimsJSON serializes the keyed-claims map for persistence.
func (r *AreaResult) ClaimsJSON() ([]byte, error) {
	return json.Marshal(r.KeyedClaims())
}

// KeyedClaims maps each claimed clbid to the rule paths claiming it.
func (r *AreaResult) KeyedClaims() map[string][]string {
	out := make(map[string][]string)
	for _, attempt := range r.Result.Claims() {
		key := attempt.Claim.Clbid
		out[key] = append(out[key], strings.Join(attempt.Claim.ClaimantPath, "/"))
	}
	for _, paths := range out {
		sort.Strings(paths)
	}
	return out
}

// RunAudit evaluates the area's rule tree against the context and emits
// the message stream: an estimate, periodic progress, and either the
// result or a no-audits-completed notice when the budget expires.
func (a *AreaOfStudy) RunAudit(ctx *RequirementContext, opts AuditOptions, emit func(Message)) error {
	start := time.Now()

	emit(EstimateMsg{Count: estimateRule(a.Result)})

	var onTick func(int)
	if opts.ProgressEvery > 0 {
		onTick = func(n int) {
			if n%opts.ProgressEvery != 0 {
				return
			}
			elapsed := time.Since(start)
			emit(ProgressMsg{
				Iters:     n,
				AvgIterMs: float64(elapsed.Milliseconds()) / float64(n),
				BestRank:  ctx.BestRankSeen(),
			})
		}
	}
	ctx.SetBudget(opts.Deadline, opts.IterLimit, onTick)

	result, err := a.Result.Audit(ctx)
	if err != nil {
		if errors.Is(err, ErrAuditHalted) {
			emit(NoAuditsCompletedMsg{Err: err})
			return nil
		}
		return err
	}

	areaResult := &AreaResult{
		Area:   a,
		Result: result,
		GPA:    student.GradePointAverage(claimedTranscript(ctx, result)),
	}

	elapsed := time.Since(start)
	iters := ctx.Iterations()
	avg := 0.0
	if iters > 0 {
		avg = float64(elapsed.Milliseconds()) / float64(iters)
	}
	emit(ResultMsg{
		Result:     areaResult,
		Iters:      iters,
		ElapsedMs:  elapsed.Milliseconds(),
		AvgIterMs:  avg,
		Transcript: ctx.Transcript(),
	})
	return nil
}

// claimedTranscript resolves the distinct courses claimed anywhere in
// the result tree.
func claimedTranscript(ctx *RequirementContext, result Result) []*student.CourseInstance {
	seen := make(map[string]bool)
	var out []*student.CourseInstance
	for _, attempt := range result.Claims() {
		clbid := attempt.Claim.Clbid
		if seen[clbid] {
			continue
		}
		seen[clbid] = true
		if c := ctx.FindCourseByClbid(clbid); c != nil {
			out = append(out, c)
		}
	}
	return out
}

const estimateCap = 1_000_000

// estimateRule bounds how many candidate evaluations a rule can fan out
// into. It is a coarse upper bound used only for the estimate message.
func estimateRule(r Rule) int {
	switch rule := r.(type) {
	case *CourseRule:
		return 1
	case *QueryRule:
		if rule.needsExactInput() {
			return estimateCap
		}
		return 1
	case *CountRule:
		combos := binomial(len(rule.Children), rule.Count)
		per := 0
		for _, child := range rule.Children {
			per += estimateRule(child)
		}
		total := combos * max(per, 1)
		if total > estimateCap || total < 0 {
			return estimateCap
		}
		return total
	case *Requirement:
		if rule.IsAudited || rule.Result == nil {
			return 1
		}
		return estimateRule(rule.Result)
	case *ReferenceRule:
		return estimateRule(rule.Target)
	}
	return 1
}

func binomial(n, k int) int {
	if k < 0 || k > n {
		return 0
	}
	if k > n-k {
		k = n - k
	}
	result := 1
	for i := 0; i < k; i++ {
		result = result * (n - i) / (i + 1)
		if result > estimateCap {
			return estimateCap
		}
	}
	return result
}
