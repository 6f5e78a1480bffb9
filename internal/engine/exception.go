package engine

import (
	"fmt"

	"degreeaudit/internal/student"
	"github.com/shopspring/decimal"
)

// ExceptionType is the kind of user-supplied override applied at a rule
// path.
type ExceptionType int

const (
	// ExceptionInsert forces a clbid into the matched set of a query or
	// assertion.
	ExceptionInsert ExceptionType = iota
	// ExceptionForceCourse forces a course rule to match a specific clbid.
	ExceptionForceCourse
	// ExceptionWaive marks the rule's outcome as Waived with full rank.
	ExceptionWaive
	// ExceptionValue overrides the numeric expected value of an assertion.
	ExceptionValue
	// ExceptionCourseOverride marks a course rule as satisfied without a
	// transcript match.
	ExceptionCourseOverride
)

var exceptionNames = map[ExceptionType]string{
	ExceptionInsert:         "insert",
	ExceptionForceCourse:    "force",
	ExceptionWaive:          "waive",
	ExceptionValue:          "value",
	ExceptionCourseOverride: "override",
}

func (t ExceptionType) String() string { return exceptionNames[t] }

// RuleException is one parsed exception, keyed by rule path.
type RuleException struct {
	Type  ExceptionType
	Path  []string
	Clbid string
	Value decimal.Decimal
}

// LoadExceptions parses the student's exception entries for one area,
// dropping entries that belong to other areas.
func LoadExceptions(entries []student.ExceptionEntry, areaCode string) ([]*RuleException, error) {
	var out []*RuleException
	for _, e := range entries {
		if e.AreaCode != areaCode {
			continue
		}

		exc := &RuleException{Path: append([]string(nil), e.Path...)}
		switch e.Type {
		case "insert":
			exc.Type = ExceptionInsert
			if e.Clbid == "" {
				return nil, fmt.Errorf("insert exception at %v is missing a clbid", e.Path)
			}
			exc.Clbid = e.Clbid
		case "force":
			exc.Type = ExceptionForceCourse
			if e.Clbid == "" {
				return nil, fmt.Errorf("force exception at %v is missing a clbid", e.Path)
			}
			exc.Clbid = e.Clbid
		case "waive":
			exc.Type = ExceptionWaive
		case "value":
			exc.Type = ExceptionValue
			v, err := decimal.NewFromString(e.Value)
			if err != nil {
				return nil, fmt.Errorf("value exception at %v: %w", e.Path, err)
			}
			exc.Value = v
		case "override":
			exc.Type = ExceptionCourseOverride
		default:
			return nil, fmt.Errorf("unknown exception type %q at %v", e.Type, e.Path)
		}
		out = append(out, exc)
	}
	return out, nil
}
