package engine

import (
	"sort"

	"degreeaudit/internal/student"
	"github.com/shopspring/decimal"
)

// QueryRule selects items from a data source, claims them, and tests a
// list of assertions over the claimed set. It is one of the two rule
// kinds whose audit fans out into a candidate search.
type QueryRule struct {
	SourceType    QuerySourceType
	SourceRepeats RepeatMode
	Where         Clause // optional
	Limit         LimitSet
	Assertions    []AnyAssertion
	AllowClaimed  bool
	AttemptClaims bool
	LoadPotentials bool

	path []string
}

func (r *QueryRule) Type() string   { return "query" }
func (r *QueryRule) Path() []string { return r.path }

func (r *QueryRule) MaxRank() decimal.Decimal {
	if len(r.Assertions) == 0 {
		return one
	}
	return decimal.NewFromInt(int64(len(r.Assertions)))
}

func (r *QueryRule) ToDict() map[string]any {
	assertions := make([]map[string]any, len(r.Assertions))
	for i, a := range r.Assertions {
		assertions[i] = a.ToDict()
	}
	d := map[string]any{
		"type":            "query",
		"path":            append([]string(nil), r.path...),
		"source":          "student",
		"source_type":     string(r.SourceType),
		"source_repeats":  string(r.SourceRepeats),
		"limit":           r.Limit.ToDict(),
		"assertions":      assertions,
		"allow_claimed":   r.AllowClaimed,
		"attempt_claims":  r.AttemptClaims,
		"load_potentials": r.LoadPotentials,
	}
	if r.Where != nil {
		d["where"] = r.Where.ToDict()
	} else {
		d["where"] = nil
	}
	return d
}

// claimClause is the predicate query claims are recorded under: the
// query's own where clause, so multicountable arbitration can reason
// about why the course was taken.
func (r *QueryRule) claimClause(c *student.CourseInstance) Clause {
	if r.Where != nil {
		return r.Where
	}
	return &SingleClause{Key: "crsid", Operator: OpEqualTo, Expected: StringValue(c.Crsid)}
}

func (r *QueryRule) Audit(ctx *RequirementContext) (Result, error) {
	if ctx.GetWaiveException(r.path) != nil {
		return &WaivedResult{Rule: r}, nil
	}

	switch r.SourceType {
	case SourceCourses:
		return r.auditCourses(ctx)
	case SourceAreas:
		return r.auditPlain(ctx, Items{DataType: DataTypeArea, Areas: ctx.Areas()})
	case SourceMusicPerformances:
		return r.auditPlain(ctx, Items{DataType: DataTypeMusicPerformance, Music: ctx.MusicPerformances()})
	}
	panic("unreachable: unvalidated query source type")
}

// auditPlain handles the claim-free data sources: one candidate, every
// assertion over the full filtered set.
func (r *QueryRule) auditPlain(ctx *RequirementContext, items Items) (Result, error) {
	if err := ctx.tick(); err != nil {
		return nil, err
	}

	var assertionResults []*AssertionResult
	for _, a := range r.Assertions {
		res, err := a.Audit(ctx, items)
		if err != nil {
			return nil, err
		}
		assertionResults = append(assertionResults, res)
	}
	return &QueryResult{Rule: r, Assertions: assertionResults}, nil
}

func (r *QueryRule) auditCourses(ctx *RequirementContext) (Result, error) {
	pool := ctx.Transcript()
	if r.SourceRepeats == RepeatFirst {
		pool = dedupeRetakes(pool)
	}
	pool = filterCourses(r.Where, pool)

	// force-inserted courses join the pool regardless of the filter
	inserted := make(map[string]bool)
	for _, exc := range ctx.GetInsertExceptions(r.path) {
		course, err := ctx.ForcedCourseByClbid(exc.Clbid)
		if err != nil {
			return nil, err
		}
		if !inserted[course.Clbid] {
			pool = append(pool, course)
			inserted[course.Clbid] = true
		}
	}

	sort.Slice(pool, func(i, j int) bool { return pool[i].Clbid < pool[j].Clbid })

	best := &bestTracker{}

	err := r.Limit.LimitedTranscripts(pool, func(limited []*student.CourseInstance) error {
		if !r.needsExactInput() {
			return r.evaluateCandidate(ctx, limited, inserted, best)
		}

		// an exact-input assertion makes subset size significant;
		// enumerate sizes from the assertion's own feasible range
		sizes := r.Assertions[0].InputSizeRange(len(limited))
		for _, size := range sizes {
			err := combinations(len(limited), size, func(idx []int) error {
				subset := make([]*student.CourseInstance, len(idx))
				for i, j := range idx {
					subset[i] = limited[j]
				}
				return r.evaluateCandidate(ctx, subset, inserted, best)
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err = stopped(err); err != nil {
		return nil, err
	}

	best.finish(ctx)
	if best.result == nil {
		// no candidate was evaluated at all; audit the empty set so the
		// assertions still report their shortfall
		if err := r.evaluateCandidate(ctx, nil, inserted, best); err != nil {
			if err = stopped(err); err != nil {
				return nil, err
			}
		}
		best.finish(ctx)
	}
	return best.result, nil
}

func (r *QueryRule) needsExactInput() bool {
	if len(r.Assertions) == 0 {
		return false
	}
	for _, a := range r.Assertions {
		if a.NeedsExactInput() {
			return true
		}
	}
	return false
}

// evaluateCandidate audits one candidate course set: claim each course,
// run every assertion over the successfully claimed ones, and score the
// outcome. The ledger is restored before returning; the tracker holds
// the winning ledger state.
func (r *QueryRule) evaluateCandidate(ctx *RequirementContext, candidate []*student.CourseInstance, inserted map[string]bool, best *bestTracker) error {
	if err := ctx.tick(); err != nil {
		return err
	}

	snap := ctx.CheckpointClaims()

	var matched []*student.CourseInstance
	var successes, failures []*ClaimAttempt
	for _, course := range candidate {
		if !r.AttemptClaims {
			matched = append(matched, course)
			continue
		}
		attempt := ctx.MakeClaim(course, r.path, r.claimClause(course), r.AllowClaimed || inserted[course.Clbid])
		if attempt.Failed {
			failures = append(failures, attempt)
			continue
		}
		successes = append(successes, attempt)
		matched = append(matched, course)
	}

	var assertionResults []*AssertionResult
	for _, a := range r.Assertions {
		res, err := a.Audit(ctx, Items{DataType: DataTypeCourse, Courses: matched})
		if err != nil {
			ctx.RestoreClaims(snap)
			return err
		}
		assertionResults = append(assertionResults, res)
	}

	var insertedClbids []string
	for clbid := range inserted {
		insertedClbids = append(insertedClbids, clbid)
	}
	sort.Strings(insertedClbids)

	result := &QueryResult{
		Rule:             r,
		Matched:          matched,
		SuccessfulClaims: successes,
		FailedClaims:     failures,
		Assertions:       assertionResults,
		InsertedClbids:   insertedClbids,
	}

	rank, maxRank := result.Rank()
	best.consider(ctx, result, scoreOf(result.Status(), rank, maxRank, len(matched)))

	ctx.RestoreClaims(snap)

	if best.done() {
		return errStop{}
	}
	return nil
}

// dedupeRetakes keeps only the earliest-term instance of each catalog
// course.
func dedupeRetakes(courses []*student.CourseInstance) []*student.CourseInstance {
	earliest := make(map[string]*student.CourseInstance)
	for _, c := range courses {
		prev, seen := earliest[c.Crsid]
		if !seen || c.TermKey() < prev.TermKey() {
			earliest[c.Crsid] = c
		}
	}
	var out []*student.CourseInstance
	for _, c := range courses {
		if earliest[c.Crsid] == c {
			out = append(out, c)
		}
	}
	return out
}
