// Package student models the input side of an audit: the transcript of
// course-taking events, declared areas of study, and music records, as
// loaded from the registrar's JSON export.
package student

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// GradeOption is how a course was elected to be graded.
type GradeOption string

const (
	GradeOptionGraded  GradeOption = "grade"
	GradeOptionPassNo  GradeOption = "p/n"
	GradeOptionAudit   GradeOption = "audit"
	GradeOptionNoGrade GradeOption = "no-grade"
)

// CourseType distinguishes regular registrations from exam credit.
type CourseType string

const (
	CourseTypeRegular  CourseType = "regular"
	CourseTypeAP       CourseType = "ap"
	CourseTypeIB       CourseType = "ib"
	CourseTypeCAL      CourseType = "cal"
	CourseTypeTransfer CourseType = "transfer"
)

// CourseInstance is one line of the transcript. Instances are immutable
// once loaded; the audit only ever reads them.
//
// Clbid is unique per course-taking event; Crsid is shared between retakes
// of the same catalog course.
type CourseInstance struct {
	Clbid   string
	Crsid   string
	Course  string // canonical "SUBJ 101"
	Name    string
	Subject []string
	Section string

	Credits     decimal.Decimal
	GradeCode   string
	GradePoints decimal.Decimal
	GradeOption GradeOption
	CourseType  CourseType

	Attributes []string
	GEReqs     []string

	Year    int
	Term    int
	SubType string

	InProgress         bool
	InProgressThisTerm bool
	InProgressInFuture bool
	Incomplete         bool
	InGPA              bool
}

// Identity returns the course string used for rule lookups, including the
// sub-type suffix for labs and the like ("BIO 243.L").
func (c *CourseInstance) Identity() string {
	if c.SubType != "" {
		return fmt.Sprintf("%s.%s", c.Course, strings.ToUpper(c.SubType[:1]))
	}
	return c.Course
}

// Level returns the hundred-level of the course number, or 0 when the
// number is not numeric.
func (c *CourseInstance) Level() int {
	_, num, ok := strings.Cut(c.Course, " ")
	if !ok {
		return 0
	}
	num = strings.TrimFunc(num, func(r rune) bool { return r < '0' || r > '9' })
	n, err := strconv.Atoi(num)
	if err != nil {
		return 0
	}
	return n / 100 * 100
}

// TermKey orders instances chronologically.
func (c *CourseInstance) TermKey() int {
	return c.Year*10 + c.Term
}

// AreaPointer is a declared area-of-study reference.
type AreaPointer struct {
	Code    string          `json:"code"`
	Catalog string          `json:"catalog"`
	Kind    string          `json:"kind"`
	Name    string          `json:"name"`
	Degree  string          `json:"degree"`
	GPA     decimal.Decimal `json:"gpa"`
}
