package engine

import (
	"testing"

	"degreeaudit/internal/student"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countAssertion(op Operator, expected string) *Assertion {
	return &Assertion{
		Path:     []string{"$", ".assert"},
		DataType: DataTypeCourse,
		Key:      "count(courses)",
		Operator: op,
		Expected: dec(expected),
	}
}

func auditCourses(t *testing.T, a *Assertion, courses ...*student.CourseInstance) *AssertionResult {
	t.Helper()
	ctx := testContext(testStudent(courses...), nil, nil)
	res, err := a.Audit(ctx, Items{DataType: DataTypeCourse, Courses: courses})
	require.NoError(t, err)
	return res
}

func TestAssertionDone(t *testing.T) {
	res := auditCourses(t, countAssertion(OpGreaterThanOrEqualTo, "2"),
		course("c1", "BIO 101"), course("c2", "BIO 102"))
	assert.Equal(t, StatusDone, res.Status)
	assert.Equal(t, "2", res.Resolved.String())

	rank, maxRank := res.Rank()
	assert.True(t, rank.Equal(one))
	assert.True(t, maxRank.Equal(one))
}

func TestAssertionZeroExpectedAlwaysPasses(t *testing.T) {
	res := auditCourses(t, countAssertion(OpGreaterThanOrEqualTo, "0"))
	assert.Equal(t, StatusDone, res.Status)
}

func TestAssertionNeedsMoreItems(t *testing.T) {
	res := auditCourses(t, countAssertion(OpGreaterThanOrEqualTo, "3"),
		course("c1", "BIO 101"), course("c2", "BIO 102"))
	assert.Equal(t, StatusNeedsMoreItems, res.Status)

	rank, _ := res.Rank()
	assert.Equal(t, "0.6666666666666667", rank.String())
}

func TestAssertionEmptyInput(t *testing.T) {
	res := auditCourses(t, countAssertion(OpGreaterThanOrEqualTo, "3"))
	assert.Equal(t, StatusEmpty, res.Status)
}

func TestAssertionLessThanFailureIsInvariantViolation(t *testing.T) {
	res := auditCourses(t, countAssertion(OpLessThan, "1"), course("c1", "BIO 101"))
	assert.Equal(t, StatusFailedInvariant, res.Status)
}

func TestAssertionLessThanNeverEarnsPartialRank(t *testing.T) {
	res := auditCourses(t, countAssertion(OpLessThanOrEqualTo, "3"), course("c1", "BIO 101"))
	require.Equal(t, StatusDone, res.Status)
	rank, _ := res.Rank()
	assert.True(t, rank.Equal(one), "a passing invariant is complete")

	failing := auditCourses(t, countAssertion(OpLessThan, "1"),
		course("c1", "BIO 101"), course("c2", "BIO 102"))
	rank, _ = failing.Rank()
	assert.True(t, rank.IsZero(), "a failing invariant earns nothing")
}

func TestAssertionInProgressCurrentTerm(t *testing.T) {
	// passes only because of the enrolled course, so the outcome is
	// pending rather than done
	res := auditCourses(t, countAssertion(OpGreaterThanOrEqualTo, "2"),
		course("c1", "BIO 101"), course("c2", "BIO 102", inProgressNow()))
	assert.Equal(t, StatusPendingCurrent, res.Status)
}

func TestAssertionInProgressFutureTerm(t *testing.T) {
	res := auditCourses(t, countAssertion(OpGreaterThanOrEqualTo, "2"),
		course("c1", "BIO 101"), course("c2", "BIO 102", inProgressFuture()))
	assert.Equal(t, StatusPendingRegistered, res.Status)
}

func TestAssertionInProgressNotNeeded(t *testing.T) {
	// the in-progress course is matched but the assertion passes
	// without it
	res := auditCourses(t, countAssertion(OpGreaterThanOrEqualTo, "1"),
		course("c1", "BIO 101"), course("c2", "BIO 102", inProgressNow()))
	assert.Equal(t, StatusDone, res.Status)
}

func TestAssertionTreatInProgressAsPass(t *testing.T) {
	a := countAssertion(OpGreaterThanOrEqualTo, "1")
	a.TreatInProgressAsPass = true
	res := auditCourses(t, a, course("c1", "BIO 101", inProgressNow()))
	assert.Equal(t, StatusDone, res.Status)
}

func TestAssertionSumCredits(t *testing.T) {
	a := &Assertion{
		Path:     []string{"$", ".assert"},
		DataType: DataTypeCourse,
		Key:      "sum(credits)",
		Operator: OpGreaterThanOrEqualTo,
		Expected: dec("8"),
	}
	res := auditCourses(t, a,
		course("c1", "MATH 120", withCredits("3.00")),
		course("c2", "MATH 230", withCredits("3.00")),
		course("c3", "MATH 244", withCredits("2.00")))
	assert.Equal(t, StatusDone, res.Status)
	assert.Equal(t, "8", res.Resolved.String())
}

func TestAssertionWhereFilters(t *testing.T) {
	a := countAssertion(OpGreaterThanOrEqualTo, "1")
	a.Where = subjClause("MATH")
	res := auditCourses(t, a, course("c1", "BIO 101"), course("c2", "MATH 120"))
	assert.Equal(t, StatusDone, res.Status)
	assert.Equal(t, []string{"c2"}, res.ResolvedClbids)
}

func TestAssertionInsertException(t *testing.T) {
	a := countAssertion(OpGreaterThanOrEqualTo, "1")
	a.Where = subjClause("MATH")

	inserted := course("c9", "ART 106")
	exceptions := []*RuleException{{Type: ExceptionInsert, Path: a.Path, Clbid: "c9"}}
	ctx := testContext(testStudent(inserted), nil, exceptions)

	res, err := a.Audit(ctx, Items{DataType: DataTypeCourse, Courses: []*student.CourseInstance{inserted}})
	require.NoError(t, err)
	assert.Equal(t, StatusDone, res.Status, "the inserted course bypasses the where filter")
	assert.Equal(t, []string{"c9"}, res.InsertedClbids)
}

func TestAssertionValueChanges(t *testing.T) {
	yes := &PredicateAtom{Function: PredHasDeclaredAreaCode, Argument: "130", Value: true}
	no := &PredicateAtom{Function: PredHasDeclaredAreaCode, Argument: "250", Value: false}
	changes := []*ValueChange{
		{Mode: ChangeAdd, Condition: yes, Amount: dec("4")},
		{Mode: ChangeAdd, Condition: no, Amount: dec("10")},
		{Mode: ChangeSubtract, Condition: yes, Amount: dec("1")},
	}
	assert.Equal(t, "3", computeChangeDiff(changes).String())
}

func TestConditionalAssertionPicksBranch(t *testing.T) {
	cond := &PredicateAtom{Function: PredHasDeclaredAreaCode, Argument: "130", Value: true}
	ca := &ConditionalAssertion{
		Path:      []string{"$", ".assert"},
		Condition: cond,
		WhenTrue:  countAssertion(OpGreaterThanOrEqualTo, "4"),
		WhenFalse: countAssertion(OpGreaterThanOrEqualTo, "2"),
	}

	res, err := ca.Audit(testContext(testStudent(), nil, nil), Items{
		DataType: DataTypeCourse,
		Courses: []*student.CourseInstance{
			course("c1", "AMCON 101"), course("c2", "AMCON 102"), course("c3", "AMCON 201"),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, StatusNeedsMoreItems, res.Status)
	assert.Equal(t, "3", res.Resolved.String())
	assert.Equal(t, "4", res.Assertion.Expected.String())
}

func TestConditionalAssertionFalseWithoutElsePasses(t *testing.T) {
	cond := &PredicateAtom{Function: PredHasDeclaredAreaCode, Argument: "130", Value: false}
	ca := &ConditionalAssertion{
		Path:      []string{"$", ".assert"},
		Condition: cond,
		WhenTrue:  countAssertion(OpGreaterThanOrEqualTo, "4"),
	}

	res, err := ca.Audit(testContext(testStudent(), nil, nil), Items{DataType: DataTypeCourse})
	require.NoError(t, err)
	assert.Equal(t, StatusDone, res.Status)
	rank, maxRank := res.Rank()
	assert.True(t, rank.Equal(maxRank))
}

func TestAssertionWaiveOverride(t *testing.T) {
	a := countAssertion(OpGreaterThanOrEqualTo, "4")
	a.Overridden = true
	res, err := a.Audit(testContext(testStudent(), nil, nil), Items{DataType: DataTypeCourse})
	require.NoError(t, err)
	assert.Equal(t, StatusWaived, res.Status)
	rank, maxRank := res.Rank()
	assert.True(t, rank.Equal(one))
	assert.True(t, maxRank.Equal(one))
}

func TestInputSizeRange(t *testing.T) {
	tests := []struct {
		name    string
		op      Operator
		exp     string
		atMost  bool
		maximum int
		want    []int
	}{
		{"gte", OpGreaterThanOrEqualTo, "2", false, 4, []int{2, 3, 4}},
		{"gte at_most", OpGreaterThanOrEqualTo, "2", true, 4, []int{2}},
		{"gte short", OpGreaterThanOrEqualTo, "3", false, 2, []int{2}},
		{"eq", OpEqualTo, "2", false, 4, []int{2}},
		{"gt", OpGreaterThan, "2", false, 4, []int{3, 4}},
		{"lt", OpLessThan, "2", false, 4, []int{0, 1}},
		{"lte", OpLessThanOrEqualTo, "2", false, 4, []int{0, 1, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := countAssertion(tt.op, tt.exp)
			a.AtMost = tt.atMost
			assert.Equal(t, tt.want, a.InputSizeRange(tt.maximum))
		})
	}
}

func TestAreaAssertion(t *testing.T) {
	a := &Assertion{
		Path:     []string{"$", ".assert"},
		DataType: DataTypeArea,
		Key:      "count(areas)",
		Operator: OpGreaterThanOrEqualTo,
		Expected: dec("2"),
	}
	ctx := testContext(testStudent(), nil, nil)
	res, err := a.Audit(ctx, Items{
		DataType: DataTypeArea,
		Areas:    []student.AreaPointer{areaPointer("130"), areaPointer("250")},
	})
	require.NoError(t, err)
	assert.Equal(t, StatusDone, res.Status)
}

func TestMusicAssertion(t *testing.T) {
	a := &Assertion{
		Path:     []string{"$", ".assert"},
		DataType: DataTypeMusicPerformance,
		Key:      "count(recitals)",
		Operator: OpGreaterThanOrEqualTo,
		Expected: dec("1"),
	}
	ctx := testContext(testStudent(), nil, nil)
	res, err := a.Audit(ctx, Items{
		DataType: DataTypeMusicPerformance,
		Music: []student.MusicPerformance{
			{ID: "m1", Name: "Fall Showcase", Kind: "performance"},
			{ID: "m2", Name: "Senior Recital", Kind: "recital"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, StatusDone, res.Status)
	assert.Equal(t, "1", res.Resolved.String())
}
