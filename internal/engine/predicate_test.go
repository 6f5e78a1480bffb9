package engine

import (
	"testing"

	"degreeaudit/internal/student"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadPredicateExpressionAtoms(t *testing.T) {
	s := testStudent(
		course("c1", "AMCON 101"),
		course("c2", "AMCON 102", inProgressNow()),
	)
	s.Areas = append(s.Areas, areaPointer("130"))
	ctx := testContext(s, nil, nil)

	tests := []struct {
		name string
		data map[string]any
		want bool
	}{
		{"declared area", map[string]any{"has-declared-area-code": "130"}, true},
		{"undeclared area", map[string]any{"has-declared-area-code": "250"}, false},
		{"has course", map[string]any{"has-course": "AMCON 101"}, true},
		{"completed course", map[string]any{"has-completed-course": "AMCON 101"}, true},
		{"ip course", map[string]any{"has-ip-course": "AMCON 102"}, true},
		{"completed excludes ip", map[string]any{"has-completed-course": "AMCON 102"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expr, err := loadPredicateExpression(tt.data, nil, ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.want, expr.Result())
		})
	}
}

func TestLoadPredicateExpressionCompound(t *testing.T) {
	s := testStudent(course("c1", "AMCON 101"))
	s.Areas = append(s.Areas, areaPointer("130"))
	ctx := testContext(s, nil, nil)

	and := map[string]any{"$and": []any{
		map[string]any{"has-course": "AMCON 101"},
		map[string]any{"has-declared-area-code": "130"},
	}}
	expr, err := loadPredicateExpression(and, nil, ctx)
	require.NoError(t, err)
	assert.True(t, expr.Result())

	or := map[string]any{"$or": []any{
		map[string]any{"has-course": "AMCON 999"},
		map[string]any{"has-declared-area-code": "130"},
	}}
	expr, err = loadPredicateExpression(or, nil, ctx)
	require.NoError(t, err)
	assert.True(t, expr.Result())

	not := map[string]any{"$not": map[string]any{"has-course": "AMCON 999"}}
	expr, err = loadPredicateExpression(not, nil, ctx)
	require.NoError(t, err)
	assert.True(t, expr.Result())
}

func TestLoadPredicateExpressionProficiency(t *testing.T) {
	s := testStudent()
	s.MusicProficiencies.Proficiencies = append(s.MusicProficiencies.Proficiencies,
		student.MusicProficiency{Name: "Keyboard Level IV", Passed: true})
	ctx := testContext(s, nil, nil)

	expr, err := loadPredicateExpression(map[string]any{"passed-proficiency-exam": "Keyboard Level IV"}, nil, ctx)
	require.NoError(t, err)
	assert.True(t, expr.Result())
}

func TestRequirementIsSatisfiedIsALoadError(t *testing.T) {
	ctx := testContext(testStudent(), nil, nil)

	_, err := loadPredicateExpression(map[string]any{"requirement-is-satisfied": "Core"}, nil, ctx)
	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
}

func TestUnknownPredicateFunctionIsALoadError(t *testing.T) {
	ctx := testContext(testStudent(), nil, nil)

	_, err := loadPredicateExpression(map[string]any{"has-minor": "130"}, nil, ctx)
	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
}
