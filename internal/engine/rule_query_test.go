package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func creditQuery(path []string, expected string) *QueryRule {
	return &QueryRule{
		SourceType:    SourceCourses,
		SourceRepeats: RepeatAll,
		Where:         subjClause("MATH"),
		Assertions: []AnyAssertion{
			&Assertion{
				Path:     append(append([]string(nil), path...), ".assertions", "[0]", ".assert"),
				DataType: DataTypeCourse,
				Key:      "sum(credits)",
				Operator: OpGreaterThanOrEqualTo,
				Expected: dec(expected),
			},
		},
		AttemptClaims: true,
		path:          path,
	}
}

func TestQueryRuleCreditSum(t *testing.T) {
	ctx := testContext(testStudent(
		course("c1", "MATH 120", withCredits("3.00")),
		course("c2", "MATH 230", withCredits("3.00")),
		course("c3", "MATH 244", withCredits("2.00")),
	), nil, nil)

	rule := creditQuery([]string{"$", ".query"}, "8")
	res, err := rule.Audit(ctx)
	require.NoError(t, err)

	assert.Equal(t, StatusDone, res.Status())
	queryRes := res.(*QueryResult)
	require.Len(t, queryRes.Assertions, 1)
	assert.Equal(t, "8", queryRes.Assertions[0].Resolved.String())
	assert.Len(t, queryRes.SuccessfulClaims, 3)

	rank, maxRank := res.Rank()
	assert.True(t, rank.Equal(maxRank))
}

func TestQueryRuleEmptyTranscript(t *testing.T) {
	ctx := testContext(testStudent(), nil, nil)

	rule := creditQuery([]string{"$", ".query"}, "8")
	res, err := rule.Audit(ctx)
	require.NoError(t, err)

	assert.Contains(t, []Status{StatusEmpty, StatusNeedsMoreItems}, res.Status())
	assert.Empty(t, res.Claims())
}

func TestQueryRuleClaimedCoursesDropOut(t *testing.T) {
	shared := course("c1", "MATH 120", withCredits("4.00"))
	ctx := testContext(testStudent(shared), nil, nil)

	// another rule owns the course already
	require.False(t, ctx.MakeClaim(shared, []string{"$", "other"}, subjClause("MATH"), false).Failed)

	rule := creditQuery([]string{"$", ".query"}, "4")
	res, err := rule.Audit(ctx)
	require.NoError(t, err)

	queryRes := res.(*QueryResult)
	assert.Empty(t, queryRes.SuccessfulClaims)
	assert.Len(t, queryRes.FailedClaims, 1)
	assert.NotEqual(t, StatusDone, res.Status())
}

func TestQueryRuleDoesNotLeakClaimsBetweenCandidates(t *testing.T) {
	// an exact-count assertion forces subset enumeration; whichever
	// candidate wins, only its claims may remain in the ledger
	c1 := course("c1", "MATH 120")
	c2 := course("c2", "MATH 230")
	c3 := course("c3", "MATH 244")
	ctx := testContext(testStudent(c1, c2, c3), nil, nil)

	rule := &QueryRule{
		SourceType:    SourceCourses,
		SourceRepeats: RepeatAll,
		Where:         subjClause("MATH"),
		Assertions: []AnyAssertion{
			&Assertion{
				Path:     []string{"$", ".query", ".assertions", "[0]", ".assert"},
				DataType: DataTypeCourse,
				Key:      "count(courses)",
				Operator: OpEqualTo,
				Expected: dec("2"),
			},
		},
		AttemptClaims: true,
		path:          []string{"$", ".query"},
	}

	res, err := rule.Audit(ctx)
	require.NoError(t, err)
	require.Equal(t, StatusDone, res.Status())

	assert.Len(t, ctx.ClaimedClbids(), 2, "only the winning candidate's claims survive")
	// lexicographically first combination wins the tie
	assert.Equal(t, []string{"c1", "c2"}, ctx.ClaimedClbids())
}

func TestQueryRuleRepeatFirstDeduplicates(t *testing.T) {
	first := course("c1", "MATH 120", withTerm(2018, 1))
	retake := course("c2", "MATH 120", withTerm(2019, 1))
	ctx := testContext(testStudent(first, retake), nil, nil)

	rule := &QueryRule{
		SourceType:    SourceCourses,
		SourceRepeats: RepeatFirst,
		Where:         subjClause("MATH"),
		Assertions: []AnyAssertion{
			&Assertion{
				Path:     []string{"$", ".query", ".assertions", "[0]", ".assert"},
				DataType: DataTypeCourse,
				Key:      "count(courses)",
				Operator: OpGreaterThanOrEqualTo,
				Expected: dec("1"),
			},
		},
		AttemptClaims: true,
		path:          []string{"$", ".query"},
	}

	res, err := rule.Audit(ctx)
	require.NoError(t, err)
	queryRes := res.(*QueryResult)
	require.Len(t, queryRes.Matched, 1)
	assert.Equal(t, "c1", queryRes.Matched[0].Clbid, "the earliest term wins")
}

func TestQueryRuleLimitCapsMatches(t *testing.T) {
	ctx := testContext(testStudent(
		course("c1", "REL 121", withAttributes("rel-a")),
		course("c2", "REL 122", withAttributes("rel-a")),
		course("c3", "REL 123", withAttributes("rel-a")),
	), nil, nil)

	rule := &QueryRule{
		SourceType:    SourceCourses,
		SourceRepeats: RepeatAll,
		Limit:         LimitSet{Limits: []*Limit{{AtMost: 2, Where: attrClause("rel-a")}}},
		Assertions: []AnyAssertion{
			&Assertion{
				Path:     []string{"$", ".query", ".assertions", "[0]", ".assert"},
				DataType: DataTypeCourse,
				Key:      "count(courses)",
				Operator: OpGreaterThanOrEqualTo,
				Expected: dec("3"),
			},
		},
		AttemptClaims: true,
		path:          []string{"$", ".query"},
	}

	res, err := rule.Audit(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusNeedsMoreItems, res.Status(), "the limit keeps the third course out")
	queryRes := res.(*QueryResult)
	assert.Len(t, queryRes.Matched, 2)
}

func TestQueryRuleLimitPicksMinimalWitness(t *testing.T) {
	// several limit selections reach full rank; enumeration ascends
	// from the smallest, so the first passing candidate is minimal
	ctx := testContext(testStudent(
		course("c1", "REL 121", withAttributes("rel-a")),
		course("c2", "REL 122", withAttributes("rel-a")),
		course("c3", "REL 123", withAttributes("rel-a")),
	), nil, nil)

	rule := &QueryRule{
		SourceType:    SourceCourses,
		SourceRepeats: RepeatAll,
		Limit:         LimitSet{Limits: []*Limit{{AtMost: 2, Where: attrClause("rel-a")}}},
		Assertions: []AnyAssertion{
			&Assertion{
				Path:     []string{"$", ".query", ".assertions", "[0]", ".assert"},
				DataType: DataTypeCourse,
				Key:      "count(courses)",
				Operator: OpGreaterThanOrEqualTo,
				Expected: dec("1"),
			},
		},
		AttemptClaims: true,
		path:          []string{"$", ".query"},
	}

	res, err := rule.Audit(ctx)
	require.NoError(t, err)
	require.Equal(t, StatusDone, res.Status())

	queryRes := res.(*QueryResult)
	require.Len(t, queryRes.Matched, 1)
	assert.Equal(t, "c1", queryRes.Matched[0].Clbid)
}

func TestQueryRuleInsertException(t *testing.T) {
	outside := course("c9", "ART 106")
	path := []string{"$", ".query"}
	exceptions := []*RuleException{{Type: ExceptionInsert, Path: path, Clbid: "c9"}}
	ctx := testContext(testStudent(outside), nil, exceptions)

	rule := creditQuery(path, "1")
	res, err := rule.Audit(ctx)
	require.NoError(t, err)

	queryRes := res.(*QueryResult)
	require.Len(t, queryRes.Matched, 1)
	assert.Equal(t, "c9", queryRes.Matched[0].Clbid, "the inserted course bypasses the where filter")
	assert.Equal(t, []string{"c9"}, queryRes.InsertedClbids)
	assert.Equal(t, StatusDone, res.Status())
}

func TestQueryRuleWithoutClaims(t *testing.T) {
	shared := course("c1", "MATH 120", withCredits("4.00"))
	ctx := testContext(testStudent(shared), nil, nil)
	require.False(t, ctx.MakeClaim(shared, []string{"$", "other"}, subjClause("MATH"), false).Failed)

	rule := creditQuery([]string{"$", ".query"}, "4")
	rule.AttemptClaims = false

	res, err := rule.Audit(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusDone, res.Status(), "claim arbitration is skipped entirely")
	assert.Empty(t, res.Claims())
}

func TestQueryRuleAreasSource(t *testing.T) {
	s := testStudent()
	s.Areas = append(s.Areas, areaPointer("130"), areaPointer("250"))
	ctx := testContext(s, nil, nil)

	rule := &QueryRule{
		SourceType: SourceAreas,
		Assertions: []AnyAssertion{
			&Assertion{
				Path:     []string{"$", ".query", ".assertions", "[0]", ".assert"},
				DataType: DataTypeArea,
				Key:      "count(areas)",
				Operator: OpGreaterThanOrEqualTo,
				Expected: dec("2"),
			},
		},
		path: []string{"$", ".query"},
	}

	res, err := rule.Audit(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusDone, res.Status())
}
