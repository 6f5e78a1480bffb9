package student

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var gradePointTable = map[string]string{
	"A+": "4.30", "A": "4.00", "A-": "3.70",
	"B+": "3.30", "B": "3.00", "B-": "2.70",
	"C+": "2.30", "C": "2.00", "C-": "1.70",
	"D+": "1.30", "D": "1.00", "D-": "0.70",
	"F": "0.00",
}

// GradePointsFor converts a letter grade to its grade-point value.
func GradePointsFor(letter string) (decimal.Decimal, error) {
	pts, ok := gradePointTable[letter]
	if !ok {
		return decimal.Zero, fmt.Errorf("unknown letter grade %q", letter)
	}
	return decimal.RequireFromString(pts), nil
}

// GPAItems filters courses down to those that participate in the GPA:
// graded, finished, and flagged in-gpa by the registrar.
func GPAItems(courses []*CourseInstance) []*CourseInstance {
	var out []*CourseInstance
	for _, c := range courses {
		if !c.InGPA || c.InProgress {
			continue
		}
		if c.GradeOption != GradeOptionGraded {
			continue
		}
		out = append(out, c)
	}
	return out
}

// GradePointAverage computes the credit-weighted GPA over the in-gpa
// subset of the given courses, rounded down to two places the way the
// registrar truncates.
func GradePointAverage(courses []*CourseInstance) decimal.Decimal {
	items := GPAItems(courses)

	points := decimal.Zero
	credits := decimal.Zero
	for _, c := range items {
		points = points.Add(c.GradePoints.Mul(c.Credits))
		credits = credits.Add(c.Credits)
	}

	if credits.IsZero() {
		return decimal.Zero
	}
	return points.Div(credits).RoundDown(2)
}
