package engine

import (
	"degreeaudit/internal/student"
	"github.com/shopspring/decimal"
)

// CourseRule requires one specific course to be present and claimable.
type CourseRule struct {
	Course       string
	Hidden       bool
	Grade        *decimal.Decimal
	AllowClaimed bool

	path []string
}

func (r *CourseRule) Type() string   { return "course" }
func (r *CourseRule) Path() []string { return r.path }

func (r *CourseRule) MaxRank() decimal.Decimal { return one }

func (r *CourseRule) ToDict() map[string]any {
	d := map[string]any{
		"type":          "course",
		"path":          append([]string(nil), r.path...),
		"course":        r.Course,
		"hidden":        r.Hidden,
		"allow_claimed": r.AllowClaimed,
	}
	if r.Grade != nil {
		d["grade"] = r.Grade.String()
	} else {
		d["grade"] = nil
	}
	return d
}

// claimClause is the predicate a course rule claims under.
func (r *CourseRule) claimClause() Clause {
	return &SingleClause{Key: "course", Operator: OpEqualTo, Expected: StringValue(r.Course)}
}

func (r *CourseRule) Audit(ctx *RequirementContext) (Result, error) {
	if ctx.GetWaiveException(r.path) != nil {
		return &WaivedResult{Rule: r}, nil
	}
	if ctx.GetCourseOverride(r.path) != nil {
		return &CourseResult{Rule: r, Overridden: true}, nil
	}

	var matched *student.CourseInstance
	forced := false
	if forces := ctx.GetForceExceptions(r.path); len(forces) > 0 {
		course, err := ctx.ForcedCourseByClbid(forces[0].Clbid)
		if err != nil {
			return nil, err
		}
		matched = course
		forced = true
	} else {
		matched = ctx.FindCourse(r.Course)
		if matched != nil && r.Grade != nil && matched.GradePoints.LessThan(*r.Grade) {
			matched = nil
		}
	}

	if matched == nil {
		return &CourseResult{Rule: r}, nil
	}

	attempt := ctx.MakeClaim(matched, r.path, r.claimClause(), r.AllowClaimed || forced)
	return &CourseResult{Rule: r, Matched: matched, Claim: attempt, Forced: forced}, nil
}
