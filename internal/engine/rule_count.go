package engine

import (
	"sort"

	"degreeaudit/internal/student"
	"github.com/shopspring/decimal"
)

// CountRule requires at least Count of its children to be satisfied.
// The solver searches child subsets for the best-ranked combination;
// an attached audit assertion list is evaluated over the union of the
// claims beneath the chosen children.
type CountRule struct {
	Count    int
	Children []Rule
	Audits   []AnyAssertion
	AtMost   bool

	path []string
}

func (r *CountRule) Type() string   { return "count" }
func (r *CountRule) Path() []string { return r.path }

func (r *CountRule) MaxRank() decimal.Decimal {
	ranks := make([]decimal.Decimal, len(r.Children))
	for i, c := range r.Children {
		ranks[i] = c.MaxRank()
	}
	sort.Slice(ranks, func(i, j int) bool { return ranks[i].GreaterThan(ranks[j]) })

	limit := r.Count
	if limit > len(ranks) {
		limit = len(ranks)
	}
	total := decimal.Zero
	for _, rk := range ranks[:limit] {
		total = total.Add(rk)
	}
	for range r.Audits {
		total = total.Add(one)
	}
	return total
}

func (r *CountRule) ToDict() map[string]any {
	children := make([]map[string]any, len(r.Children))
	for i, c := range r.Children {
		children[i] = c.ToDict()
	}
	audits := make([]map[string]any, len(r.Audits))
	for i, a := range r.Audits {
		audits[i] = a.ToDict()
	}
	return map[string]any{
		"type":    "count",
		"path":    append([]string(nil), r.path...),
		"count":   r.Count,
		"of":      children,
		"audit":   audits,
		"at_most": r.AtMost,
	}
}

func (r *CountRule) Audit(ctx *RequirementContext) (Result, error) {
	if ctx.GetWaiveException(r.path) != nil {
		return &WaivedResult{Rule: r}, nil
	}

	n := len(r.Children)
	sizes := []int{r.Count}
	if !r.AtMost {
		sizes = sizes[:0]
		for k := r.Count; k <= n; k++ {
			sizes = append(sizes, k)
		}
	}

	best := &bestTracker{}

	for _, size := range sizes {
		err := combinations(n, size, func(idx []int) error {
			return r.evaluateSubset(ctx, idx, best)
		})
		if err = stopped(err); err != nil {
			return nil, err
		}
		if best.done() {
			break
		}
	}

	best.finish(ctx)
	if best.result == nil {
		// count larger than the child list; audit everything and report
		// the shortfall
		all := make([]int, n)
		for i := range all {
			all[i] = i
		}
		if err := stopped(r.evaluateSubset(ctx, all, best)); err != nil {
			return nil, err
		}
		best.finish(ctx)
	}
	return best.result, nil
}

// evaluateSubset audits one chosen child subset in specification order,
// then the attached audit assertions over the claims beneath it.
func (r *CountRule) evaluateSubset(ctx *RequirementContext, idx []int, best *bestTracker) error {
	if err := ctx.tick(); err != nil {
		return err
	}

	snap := ctx.CheckpointClaims()

	childResults := make([]Result, 0, len(idx))
	for _, i := range idx {
		res, err := r.Children[i].Audit(ctx)
		if err != nil {
			ctx.RestoreClaims(snap)
			return err
		}
		childResults = append(childResults, res)
	}

	var auditResults []*AssertionResult
	if len(r.Audits) > 0 {
		claimed := claimedCourses(ctx, childResults)
		for _, a := range r.Audits {
			res, err := a.Audit(ctx, Items{DataType: DataTypeCourse, Courses: claimed})
			if err != nil {
				ctx.RestoreClaims(snap)
				return err
			}
			auditResults = append(auditResults, res)
		}
	}

	result := &CountResult{
		Rule:          r,
		ChildResults:  childResults,
		ChosenIndices: append([]int(nil), idx...),
		Audits:        auditResults,
	}

	rank, maxRank := result.Rank()
	best.consider(ctx, result, scoreOf(result.Status(), rank, maxRank, len(idx)))

	ctx.RestoreClaims(snap)

	if best.done() {
		return errStop{}
	}
	return nil
}

// claimedCourses resolves the union of courses claimed beneath the
// given results, deduplicated by clbid, in claim order.
func claimedCourses(ctx *RequirementContext, results []Result) []*student.CourseInstance {
	seen := make(map[string]bool)
	var out []*student.CourseInstance
	for _, res := range results {
		for _, attempt := range res.Claims() {
			clbid := attempt.Claim.Clbid
			if seen[clbid] {
				continue
			}
			seen[clbid] = true
			if c := ctx.FindCourseByClbid(clbid); c != nil {
				out = append(out, c)
			}
		}
	}
	return out
}
