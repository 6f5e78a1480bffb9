package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSingleClauseApply(t *testing.T) {
	c := course("c1", "BIO 101", withAttributes("elective", "post1800"), withCredits("4.00"))
	target := CourseTarget{Course: c}

	tests := []struct {
		name   string
		clause *SingleClause
		want   bool
	}{
		{"course eq match", &SingleClause{Key: "course", Operator: OpEqualTo, Expected: StringValue("BIO 101")}, true},
		{"course eq miss", &SingleClause{Key: "course", Operator: OpEqualTo, Expected: StringValue("BIO 102")}, false},
		{"subject membership", subjClause("BIO"), true},
		{"attributes membership", attrClause("elective"), true},
		{"attributes miss", attrClause("war"), false},
		{"attributes neq", &SingleClause{Key: "attributes", Operator: OpNotEqualTo, Expected: StringValue("war")}, true},
		{"credits gte", &SingleClause{Key: "credits", Operator: OpGreaterThanOrEqualTo, Expected: DecimalValue(dec("4"))}, true},
		{"credits gt", &SingleClause{Key: "credits", Operator: OpGreaterThan, Expected: DecimalValue(dec("4"))}, false},
		{"grade lt", &SingleClause{Key: "grade", Operator: OpLessThan, Expected: DecimalValue(dec("3.7"))}, true},
		{"course in", &SingleClause{Key: "course", Operator: OpIn, Expected: StringsValue([]string{"BIO 101", "BIO 102"})}, true},
		{"course nin", &SingleClause{Key: "course", Operator: OpNotIn, Expected: StringsValue([]string{"BIO 101"})}, false},
		{"attributes in overlap", &SingleClause{Key: "attributes", Operator: OpIn, Expected: StringsValue([]string{"post1800", "war"})}, true},
		{"missing key", &SingleClause{Key: "nope", Operator: OpEqualTo, Expected: StringValue("x")}, false},
		{"missing key neq", &SingleClause{Key: "nope", Operator: OpNotEqualTo, Expected: StringValue("x")}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.clause.Apply(target))
		})
	}
}

func TestCompoundClauseApply(t *testing.T) {
	c := course("c1", "BIO 101", withAttributes("elective"))
	target := CourseTarget{Course: c}

	and := &AndClause{Children: []Clause{subjClause("BIO"), attrClause("elective")}}
	assert.True(t, and.Apply(target))

	and = &AndClause{Children: []Clause{subjClause("BIO"), attrClause("war")}}
	assert.False(t, and.Apply(target))

	or := &OrClause{Children: []Clause{subjClause("MATH"), attrClause("elective")}}
	assert.True(t, or.Apply(target))

	or = &OrClause{Children: []Clause{subjClause("MATH"), attrClause("war")}}
	assert.False(t, or.Apply(target))
}

func TestIsSubsetSingles(t *testing.T) {
	eqA := attrClause("a")
	eqB := attrClause("b")
	inAB := &SingleClause{Key: "attributes", Operator: OpIn, Expected: StringsValue([]string{"a", "b"})}
	inABC := &SingleClause{Key: "attributes", Operator: OpIn, Expected: StringsValue([]string{"a", "b", "c"})}
	otherKey := subjClause("a")

	assert.True(t, eqA.IsSubset(eqA), "eq is reflexive")
	assert.False(t, eqA.IsSubset(eqB))
	assert.True(t, eqA.IsSubset(inAB), "eq x is a subset of in S when x is a member")
	assert.False(t, eqB.IsSubset(&SingleClause{Key: "attributes", Operator: OpIn, Expected: StringsValue([]string{"a", "c"})}))
	assert.True(t, inAB.IsSubset(inABC))
	assert.False(t, inABC.IsSubset(inAB))
	assert.False(t, eqA.IsSubset(otherKey), "different keys never imply each other")
	assert.False(t, inAB.IsSubset(eqA), "in does not imply eq")

	gte := &SingleClause{Key: "credits", Operator: OpGreaterThanOrEqualTo, Expected: DecimalValue(dec("2"))}
	assert.True(t, gte.IsSubset(gte), "every clause is a subset of itself")
}

func TestIsSubsetTransitive(t *testing.T) {
	eqA := attrClause("a")
	inAB := &SingleClause{Key: "attributes", Operator: OpIn, Expected: StringsValue([]string{"a", "b"})}
	inABC := &SingleClause{Key: "attributes", Operator: OpIn, Expected: StringsValue([]string{"a", "b", "c"})}

	require.True(t, eqA.IsSubset(inAB))
	require.True(t, inAB.IsSubset(inABC))
	assert.True(t, eqA.IsSubset(inABC))
}

func TestIsSubsetCompound(t *testing.T) {
	eqA := attrClause("a")
	eqB := attrClause("b")
	inAB := &SingleClause{Key: "attributes", Operator: OpIn, Expected: StringsValue([]string{"a", "b"})}

	// A is a subset of (B and C) iff A is a subset of both
	and := &AndClause{Children: []Clause{inAB, &SingleClause{Key: "attributes", Operator: OpIn, Expected: StringsValue([]string{"a", "c"})}}}
	assert.True(t, attrClause("a").IsSubset(and))
	assert.False(t, attrClause("b").IsSubset(and))

	// (A or B) is a subset of C iff both branches are
	or := &OrClause{Children: []Clause{eqA, eqB}}
	assert.True(t, or.IsSubset(inAB))
	assert.False(t, or.IsSubset(attrClause("a")))

	// a conjunction implies anything one conjunct implies
	conj := &AndClause{Children: []Clause{eqA, eqB}}
	assert.True(t, conj.IsSubset(inAB))
}

func TestClauseStringIsStable(t *testing.T) {
	a := &SingleClause{Key: "attributes", Operator: OpIn, Expected: StringsValue([]string{"b", "a"})}
	b := &SingleClause{Key: "attributes", Operator: OpIn, Expected: StringsValue([]string{"a", "b"})}
	assert.Equal(t, a.String(), b.String(), "sequence rendering is order-insensitive")
}
