package engine

import (
	"fmt"
	"sort"

	"degreeaudit/internal/student"
	"github.com/shopspring/decimal"
)

// DataType selects which record set an assertion reduces over.
type DataType string

const (
	DataTypeCourse           DataType = "course"
	DataTypeArea             DataType = "area"
	DataTypeMusicPerformance DataType = "music performance"
	DataTypeRecital          DataType = "recital"
)

// Items is the typed input set handed to an assertion.
type Items struct {
	DataType DataType
	Courses  []*student.CourseInstance
	Areas    []student.AreaPointer
	Music    []student.MusicPerformance
}

// ValueChangeMode adds to or subtracts from an assertion's expected
// value.
type ValueChangeMode int

const (
	ChangeAdd ValueChangeMode = iota
	ChangeSubtract
)

// ValueChange conditionally shifts an assertion's expected value; all
// firing changes are summed once their predicate conditions resolve.
type ValueChange struct {
	Mode      ValueChangeMode
	Condition PredicateExpression
	Amount    decimal.Decimal
}

// computeChangeDiff sums the firing changes.
func computeChangeDiff(changes []*ValueChange) decimal.Decimal {
	diff := decimal.Zero
	for _, ch := range changes {
		if !ch.Condition.Result() {
			continue
		}
		if ch.Mode == ChangeAdd {
			diff = diff.Add(ch.Amount)
		} else {
			diff = diff.Sub(ch.Amount)
		}
	}
	return diff
}

// AnyAssertion is either a plain Assertion or a ConditionalAssertion.
type AnyAssertion interface {
	Audit(ctx *RequirementContext, items Items) (*AssertionResult, error)
	InputSizeRange(maximum int) []int
	NeedsExactInput() bool
	AssertionPath() []string
	ToDict() map[string]any
}

// Assertion applies a reducer (count, sum, average) to a matched item
// set and compares the reduced value against an expected one.
type Assertion struct {
	Path     []string
	DataType DataType
	Where    Clause // optional

	Key      string // "count(courses)", "sum(credits)", ...
	Operator Operator
	Expected decimal.Decimal
	Original string // spec-file spelling, when different
	Changes  []*ValueChange
	AtMost   bool

	Message               string
	Label                 string
	TreatInProgressAsPass bool
	Overridden            bool
}

// AssertionResult is an audited assertion with its resolution attached.
type AssertionResult struct {
	Assertion *Assertion
	Status    Status
	Resolved  decimal.Decimal
	// ResolvedItems are the reduced witnesses (term keys, subjects, ...)
	ResolvedItems  []string
	ResolvedClbids []string
	InsertedClbids []string
	Evaluated      bool
}

// Rank scores an audited assertion. LT/LTE assertions are invariants,
// not progress metrics, and never earn partial credit.
func (r *AssertionResult) Rank() (decimal.Decimal, decimal.Decimal) {
	one := decimal.NewFromInt(1)
	zero := decimal.Zero

	if r.Status == StatusDone || r.Status == StatusWaived {
		return one, one
	}
	if r.Assertion.Operator == OpLessThan || r.Assertion.Operator == OpLessThanOrEqualTo {
		return zero, one
	}
	if !r.Assertion.Expected.IsZero() {
		frac := r.Resolved.Div(r.Assertion.Expected)
		if frac.GreaterThan(one) {
			frac = one
		}
		return frac, one
	}
	return zero, one
}

func (r *AssertionResult) ToDict() map[string]any {
	rank, maxRank := r.Rank()
	a := r.Assertion

	d := map[string]any{
		"type":      "assertion",
		"path":      append([]string(nil), a.Path...),
		"status":    string(r.Status),
		"rank":      rank.String(),
		"max_rank":  maxRank.String(),
		"key":       a.Key,
		"operator":  a.Operator.String(),
		"expected":  a.Expected.String(),
		"data-type": string(a.DataType),
		"evaluated": r.Evaluated,
	}
	if a.Where != nil {
		d["where"] = a.Where.ToDict()
	} else {
		d["where"] = nil
	}
	if r.Evaluated {
		d["resolved"] = r.Resolved.String()
		d["resolved_items"] = sortedCopy(r.ResolvedItems)
		d["resolved_clbids"] = sortedCopy(r.ResolvedClbids)
		d["inserted_clbids"] = sortedCopy(r.InsertedClbids)
	}
	if a.Label != "" {
		d["label"] = a.Label
	}
	if a.Message != "" {
		d["message"] = a.Message
	}
	if a.Original != "" && a.Original != a.Expected.String() {
		d["original"] = a.Original
	}
	return d
}

func sortedCopy(ss []string) []string {
	out := append([]string{}, ss...)
	sort.Strings(out)
	return out
}

func (a *Assertion) AssertionPath() []string { return a.Path }

func (a *Assertion) ToDict() map[string]any {
	return (&AssertionResult{Assertion: a, Status: StatusEmpty}).ToDict()
}

// NeedsExactInput reports whether the solver must enumerate input
// subsets rather than hand the assertion everything that matches.
func (a *Assertion) NeedsExactInput() bool {
	switch a.Operator {
	case OpEqualTo, OpNotEqualTo, OpLessThan, OpLessThanOrEqualTo:
		return true
	}
	return a.AtMost
}

// Audit filters the input by the where clause, appends force-inserted
// items, reduces, and compares.
func (a *Assertion) Audit(ctx *RequirementContext, items Items) (*AssertionResult, error) {
	if a.Overridden {
		return &AssertionResult{Assertion: a, Status: StatusWaived, Evaluated: true}, nil
	}

	switch a.DataType {
	case DataTypeCourse:
		matched := filterCourses(a.Where, items.Courses)

		var inserted []string
		for _, exc := range ctx.GetInsertExceptions(a.Path) {
			course, err := ctx.ForcedCourseByClbid(exc.Clbid)
			if err != nil {
				return nil, err
			}
			matched = append(matched, course)
			inserted = append(inserted, course.Clbid)
		}

		status, applied := a.evaluateCourses(matched)
		return &AssertionResult{
			Assertion:      a,
			Status:         status,
			Resolved:       applied.value,
			ResolvedItems:  applied.items,
			ResolvedClbids: clbidsOf(applied.courses),
			InsertedClbids: inserted,
			Evaluated:      true,
		}, nil

	case DataTypeArea:
		matched := filterAreas(a.Where, items.Areas)
		status, applied := a.evaluatePlain(reduceAreas(a.Key, matched))
		return &AssertionResult{
			Assertion:     a,
			Status:        status,
			Resolved:      applied.value,
			ResolvedItems: applied.items,
			Evaluated:     true,
		}, nil

	case DataTypeMusicPerformance, DataTypeRecital:
		matched := filterMusic(a.Where, items.Music)
		status, applied := a.evaluatePlain(reduceMusic(a.Key, matched))
		return &AssertionResult{
			Assertion:     a,
			Status:        status,
			Resolved:      applied.value,
			ResolvedItems: applied.items,
			Evaluated:     true,
		}, nil
	}

	return nil, fmt.Errorf("unknown assertion data type %q", a.DataType)
}

// evaluateCourses runs the course reducer and maps the outcome onto a
// status, accounting for in-progress registrations.
func (a *Assertion) evaluateCourses(courses []*student.CourseInstance) (Status, appliedResult) {
	applied := reduceCourses(a.Key, courses)
	passed := a.Operator.Apply(DecimalValue(applied.value), DecimalValue(a.Expected))

	if passed {
		var ipCourses []*student.CourseInstance
		for _, c := range applied.courses {
			if c.InProgress {
				ipCourses = append(ipCourses, c)
			}
		}

		passesWithoutIP := true
		if len(ipCourses) > 0 {
			var finished []*student.CourseInstance
			for _, c := range courses {
				if !c.InProgress {
					finished = append(finished, c)
				}
			}
			without := reduceCourses(a.Key, finished)
			passesWithoutIP = a.Operator.Apply(DecimalValue(without.value), DecimalValue(a.Expected))
		}

		if a.TreatInProgressAsPass || passesWithoutIP {
			return StatusDone, applied
		}

		enrolled, registered, incomplete := false, false, false
		for _, c := range ipCourses {
			enrolled = enrolled || c.InProgressThisTerm
			registered = registered || c.InProgressInFuture
			incomplete = incomplete || c.Incomplete
		}
		if !enrolled && !registered && !incomplete {
			panic("unreachable: in-progress course is neither enrolled, registered, nor incomplete")
		}
		if registered {
			return StatusPendingRegistered, applied
		}
		return StatusPendingCurrent, applied
	}

	return a.failureStatus(applied.value), applied
}

// evaluatePlain maps a reduced value onto a status for areas and music
// records, which have no in-progress notion.
func (a *Assertion) evaluatePlain(applied appliedResult) (Status, appliedResult) {
	if a.Operator.Apply(DecimalValue(applied.value), DecimalValue(a.Expected)) {
		return StatusDone, applied
	}
	return a.failureStatus(applied.value), applied
}

func (a *Assertion) failureStatus(computed decimal.Decimal) Status {
	switch a.Operator {
	case OpGreaterThan:
		if computed.IsPositive() && computed.LessThanOrEqual(a.Expected) {
			return StatusNeedsMoreItems
		}
	case OpGreaterThanOrEqualTo, OpEqualTo:
		if computed.IsPositive() && computed.LessThan(a.Expected) {
			return StatusNeedsMoreItems
		}
	case OpLessThan, OpLessThanOrEqualTo:
		return StatusFailedInvariant
	}
	return StatusEmpty
}

// InputSizeRange bounds the subset sizes the solver should try for this
// assertion, given at most maximum available items.
func (a *Assertion) InputSizeRange(maximum int) []int {
	expected := int(a.Expected.IntPart())

	var sizes []int
	switch {
	case a.Operator == OpEqualTo || (a.Operator == OpGreaterThanOrEqualTo && a.AtMost):
		if maximum < expected {
			return []int{maximum}
		}
		sizes = []int{expected}
	case a.Operator == OpNotEqualTo:
		for n := 0; n <= maximum; n++ {
			if n != expected {
				sizes = append(sizes, n)
			}
		}
	case a.Operator == OpGreaterThanOrEqualTo:
		if maximum < expected {
			return []int{maximum}
		}
		for n := expected; n <= maximum; n++ {
			sizes = append(sizes, n)
		}
	case a.Operator == OpGreaterThan:
		if maximum < expected {
			return []int{maximum}
		}
		for n := expected + 1; n <= max(expected+1, maximum); n++ {
			sizes = append(sizes, n)
		}
	case a.Operator == OpLessThan:
		for n := 0; n < expected; n++ {
			sizes = append(sizes, n)
		}
	case a.Operator == OpLessThanOrEqualTo:
		for n := 0; n <= expected; n++ {
			sizes = append(sizes, n)
		}
	}
	if len(sizes) == 0 {
		sizes = []int{0}
	}
	return sizes
}

// ConditionalAssertion audits one of two assertions depending on a
// predicate expression resolved at load time.
type ConditionalAssertion struct {
	Path      []string
	Condition PredicateExpression
	WhenTrue  *Assertion
	WhenFalse *Assertion // optional
}

func (c *ConditionalAssertion) AssertionPath() []string { return c.Path }

// active returns the branch selected by the condition, or nil when the
// condition is false and no else-branch exists.
func (c *ConditionalAssertion) active() *Assertion {
	if c.Condition.Result() {
		return c.WhenTrue
	}
	return c.WhenFalse
}

func (c *ConditionalAssertion) Audit(ctx *RequirementContext, items Items) (*AssertionResult, error) {
	branch := c.active()
	if branch == nil {
		// no else-branch: a false condition passes vacuously
		placeholder := &Assertion{
			Path:     c.Path,
			DataType: c.WhenTrue.DataType,
			Key:      c.WhenTrue.Key,
			Operator: OpGreaterThanOrEqualTo,
			Expected: decimal.Zero,
		}
		return &AssertionResult{Assertion: placeholder, Status: StatusDone, Evaluated: true}, nil
	}
	return branch.Audit(ctx, items)
}

func (c *ConditionalAssertion) NeedsExactInput() bool {
	branch := c.active()
	if branch == nil {
		return false
	}
	return branch.NeedsExactInput()
}

func (c *ConditionalAssertion) InputSizeRange(maximum int) []int {
	branch := c.active()
	if branch == nil {
		return []int{0}
	}
	return branch.InputSizeRange(maximum)
}

func (c *ConditionalAssertion) ToDict() map[string]any {
	d := map[string]any{
		"type":      "assertion--if",
		"condition": c.Condition.ToDict(),
		"when_true": c.WhenTrue.ToDict(),
	}
	if c.WhenFalse != nil {
		d["when_false"] = c.WhenFalse.ToDict()
	} else {
		d["when_false"] = nil
	}
	return d
}

func clbidsOf(courses []*student.CourseInstance) []string {
	out := make([]string, len(courses))
	for i, c := range courses {
		out[i] = c.Clbid
	}
	return out
}

func filterCourses(where Clause, courses []*student.CourseInstance) []*student.CourseInstance {
	if where == nil {
		return append([]*student.CourseInstance(nil), courses...)
	}
	var out []*student.CourseInstance
	for _, c := range courses {
		if where.Apply(CourseTarget{Course: c}) {
			out = append(out, c)
		}
	}
	return out
}

func filterAreas(where Clause, areas []student.AreaPointer) []student.AreaPointer {
	if where == nil {
		return append([]student.AreaPointer(nil), areas...)
	}
	var out []student.AreaPointer
	for _, a := range areas {
		if where.Apply(AreaTarget{Area: a}) {
			out = append(out, a)
		}
	}
	return out
}

func filterMusic(where Clause, music []student.MusicPerformance) []student.MusicPerformance {
	if where == nil {
		return append([]student.MusicPerformance(nil), music...)
	}
	var out []student.MusicPerformance
	for _, m := range music {
		if where.Apply(MusicTarget{Performance: m}) {
			out = append(out, m)
		}
	}
	return out
}
