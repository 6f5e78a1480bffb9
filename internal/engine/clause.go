package engine

import (
	"fmt"
	"strings"
)

// Clause is a predicate over a single Clausable, either an attribute
// comparison or a Boolean composition.
type Clause interface {
	// Apply tests the clause against one item.
	Apply(item Clausable) bool
	// IsSubset reports semantic implication: every item matching the
	// receiver also matches other.
	IsSubset(other Clause) bool
	// String is a canonical rendering; equal clauses render equally.
	String() string
	// ToDict serializes the clause for result output.
	ToDict() map[string]any
}

// SingleClause compares one attribute against an expected value.
type SingleClause struct {
	Key      string
	Operator Operator
	Expected Value

	// ExpectedVerbatim preserves the spec-file spelling for output.
	ExpectedVerbatim string
	AtMost           bool
	Label            string
	TreatInProgressAsPass bool
}

func (c *SingleClause) Apply(item Clausable) bool {
	v, ok := item.ClauseValue(c.Key)
	if !ok {
		// a missing attribute satisfies only the negative operators
		return c.Operator == OpNotEqualTo || c.Operator == OpNotIn
	}
	return c.Operator.Apply(v, c.Expected)
}

func (c *SingleClause) IsSubset(other Clause) bool {
	switch o := other.(type) {
	case *AndClause:
		for _, child := range o.Children {
			if !c.IsSubset(child) {
				return false
			}
		}
		return len(o.Children) > 0
	case *OrClause:
		for _, child := range o.Children {
			if c.IsSubset(child) {
				return true
			}
		}
		return false
	case *SingleClause:
		if c.Key != o.Key {
			return false
		}
		if c.Operator == o.Operator && c.Expected.String() == o.Expected.String() {
			return true
		}
		switch {
		case c.Operator == OpEqualTo && o.Operator == OpEqualTo:
			return c.Expected.EqualScalar(o.Expected)
		case c.Operator == OpEqualTo && o.Operator == OpIn:
			return o.Expected.Contains(c.Expected)
		case c.Operator == OpIn && o.Operator == OpIn:
			return c.Expected.SubsetOf(o.Expected)
		}
		return false
	}
	return false
}

func (c *SingleClause) String() string {
	return fmt.Sprintf("(%s %s %s)", c.Key, c.Operator, c.Expected)
}

func (c *SingleClause) ToDict() map[string]any {
	d := map[string]any{
		"type":     "single-clause",
		"key":      c.Key,
		"operator": c.Operator.String(),
		"expected": c.Expected.JSONValue(),
	}
	if c.ExpectedVerbatim != "" && c.ExpectedVerbatim != c.Expected.String() {
		d["original"] = c.ExpectedVerbatim
	}
	if c.Label != "" {
		d["label"] = c.Label
	}
	return d
}

// AndClause is satisfied when every child is.
type AndClause struct {
	Children []Clause
}

func (c *AndClause) Apply(item Clausable) bool {
	for _, child := range c.Children {
		if !child.Apply(item) {
			return false
		}
	}
	return true
}

func (c *AndClause) IsSubset(other Clause) bool {
	if o, ok := other.(*AndClause); ok {
		for _, oc := range o.Children {
			if !c.IsSubset(oc) {
				return false
			}
		}
		return len(o.Children) > 0
	}
	// a conjunction implies anything one of its conjuncts implies
	for _, child := range c.Children {
		if child.IsSubset(other) {
			return true
		}
	}
	return false
}

func (c *AndClause) String() string {
	parts := make([]string, len(c.Children))
	for i, child := range c.Children {
		parts[i] = child.String()
	}
	return "(and " + strings.Join(parts, " ") + ")"
}

func (c *AndClause) ToDict() map[string]any {
	children := make([]map[string]any, len(c.Children))
	for i, child := range c.Children {
		children[i] = child.ToDict()
	}
	return map[string]any{"type": "and-clause", "children": children}
}

// OrClause is satisfied when any child is.
type OrClause struct {
	Children []Clause
}

func (c *OrClause) Apply(item Clausable) bool {
	for _, child := range c.Children {
		if child.Apply(item) {
			return true
		}
	}
	return false
}

func (c *OrClause) IsSubset(other Clause) bool {
	// a disjunction implies only what every branch implies
	for _, child := range c.Children {
		if !child.IsSubset(other) {
			return false
		}
	}
	return len(c.Children) > 0
}

func (c *OrClause) String() string {
	parts := make([]string, len(c.Children))
	for i, child := range c.Children {
		parts[i] = child.String()
	}
	return "(or " + strings.Join(parts, " ") + ")"
}

func (c *OrClause) ToDict() map[string]any {
	children := make([]map[string]any, len(c.Children))
	for i, child := range c.Children {
		children[i] = child.ToDict()
	}
	return map[string]any{"type": "or-clause", "children": children}
}
