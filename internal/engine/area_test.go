package engine

import (
	"bytes"
	"testing"

	"degreeaudit/internal/student"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const historySpec = `
name: History
code: "395"
catalog: 2019-20
type: major

multicountable:
  - - attributes: {$eq: elective}
    - attributes: {$eq: post1800}

requirements:
  Core:
    result:
      all:
        - course: HIST 101
        - course: HIST 201
  Electives:
    result:
      from: courses
      where: {attributes: {$eq: elective}}
      assert: {count(courses): {$gte: 2}}

result:
  all:
    - requirement: Core
    - requirement: Electives
`

func historyStudent() *student.Student {
	return testStudent(
		course("c1", "HIST 101"),
		course("c2", "HIST 201"),
		course("c3", "HIST 230", withAttributes("elective")),
		course("c4", "HIST 240", withAttributes("elective", "post1800")),
	)
}

func TestLoadAreaShape(t *testing.T) {
	area, _, err := LoadArea([]byte(historySpec), historyStudent(), nil)
	require.NoError(t, err)

	assert.Equal(t, "History", area.Name)
	assert.Equal(t, "395", area.Code)
	assert.Equal(t, "2019-20", area.Catalog)
	assert.Equal(t, "major", area.Kind)
	require.Len(t, area.Multicountable, 1)
	require.Len(t, area.Multicountable[0], 2)
	require.Contains(t, area.Requirements, "Core")
	require.Contains(t, area.Requirements, "Electives")

	root, ok := area.Result.(*CountRule)
	require.True(t, ok)
	assert.Equal(t, 2, root.Count)
	require.Len(t, root.Children, 2)
	assert.IsType(t, &ReferenceRule{}, root.Children[0])
}

func TestAreaAuditEndToEnd(t *testing.T) {
	area, ctx, err := LoadArea([]byte(historySpec), historyStudent(), nil)
	require.NoError(t, err)

	var result *AreaResult
	err = area.RunAudit(ctx, AuditOptions{}, func(msg Message) {
		if m, ok := msg.(ResultMsg); ok {
			result = m.Result
		}
	})
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.True(t, result.OK())
	assert.Equal(t, StatusDone, result.Result.Status())

	rank, maxRank := result.Result.Rank()
	assert.True(t, rank.Equal(maxRank), "a fully satisfied area is at max rank")

	claims := result.KeyedClaims()
	assert.Contains(t, claims, "c1")
	assert.Contains(t, claims, "c2")
}

func TestAreaAuditIsDeterministic(t *testing.T) {
	var runs [][]byte
	for i := 0; i < 2; i++ {
		area, ctx, err := LoadArea([]byte(historySpec), historyStudent(), nil)
		require.NoError(t, err)

		var result *AreaResult
		err = area.RunAudit(ctx, AuditOptions{}, func(msg Message) {
			if m, ok := msg.(ResultMsg); ok {
				result = m.Result
			}
		})
		require.NoError(t, err)
		require.NotNil(t, result)

		blob, err := result.ToJSON()
		require.NoError(t, err)
		runs = append(runs, blob)
	}

	if !bytes.Equal(runs[0], runs[1]) {
		t.Fatalf("two audits of identical inputs diverge:\n%s", cmp.Diff(string(runs[0]), string(runs[1])))
	}
}

func TestAreaAuditWaiveException(t *testing.T) {
	s := historyStudent()
	s.Courses = s.Courses[2:] // drop the Core courses
	s.Exceptions = append(s.Exceptions, student.ExceptionEntry{
		AreaCode: "395",
		Path:     []string{"$", "%Core"},
		Type:     "waive",
	})

	area, ctx, err := LoadArea([]byte(historySpec), s, nil)
	require.NoError(t, err)

	var result *AreaResult
	err = area.RunAudit(ctx, AuditOptions{}, func(msg Message) {
		if m, ok := msg.(ResultMsg); ok {
			result = m.Result
		}
	})
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.True(t, result.OK(), "the waived requirement no longer blocks the area")
}

func TestAreaAuditUnsatisfied(t *testing.T) {
	s := testStudent(course("c1", "HIST 101"))

	area, ctx, err := LoadArea([]byte(historySpec), s, nil)
	require.NoError(t, err)

	var result *AreaResult
	err = area.RunAudit(ctx, AuditOptions{}, func(msg Message) {
		if m, ok := msg.(ResultMsg); ok {
			result = m.Result
		}
	})
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.False(t, result.OK())
	rank, maxRank := result.Result.Rank()
	assert.True(t, rank.LessThan(maxRank))
}

func TestAreaRuleTreeRoundTrips(t *testing.T) {
	area1, _, err := LoadArea([]byte(historySpec), historyStudent(), nil)
	require.NoError(t, err)
	area2, _, err := LoadArea([]byte(historySpec), historyStudent(), nil)
	require.NoError(t, err)

	if diff := cmp.Diff(area1.Result.ToDict(), area2.Result.ToDict()); diff != "" {
		t.Errorf("rule tree serialization is unstable (-first +second):\n%s", diff)
	}
}

func TestLoadAreaRejectsMalformedSpecs(t *testing.T) {
	tests := []struct {
		name string
		spec string
	}{
		{"missing code", "name: X\nresult: {course: BIO 101}"},
		{"missing result", "name: X\ncode: \"1\""},
		{"unknown operator", `
code: "1"
result:
  from: courses
  where: {subject: {$matches: BIO}}
  assert: {count(courses): {$gte: 1}}
`},
		{"multiple operators", `
code: "1"
result:
  from: courses
  where: {subject: {$eq: BIO, $neq: CHEM}}
  assert: {count(courses): {$gte: 1}}
`},
		{"in assertions forbidden", `
code: "1"
result:
  from: courses
  assert: {count(courses): {$in: [1, 2]}}
`},
		{"non-integer count", `
code: "1"
result:
  from: courses
  assert: {count(courses): {$gte: 1.5}}
`},
		{"unknown reducer", `
code: "1"
result:
  from: courses
  assert: {median(credits): {$gte: 1}}
`},
		{"unknown reference", `
code: "1"
result: {requirement: Nope}
`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := LoadArea([]byte(tt.spec), testStudent(), nil)
			var loadErr *LoadError
			assert.ErrorAs(t, err, &loadErr)
		})
	}
}
