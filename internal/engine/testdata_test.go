package engine

import (
	"degreeaudit/internal/student"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// course builders shared across the engine tests

type courseOpt func(*student.CourseInstance)

func withCredits(credits string) courseOpt {
	return func(c *student.CourseInstance) { c.Credits = decimal.RequireFromString(credits) }
}

func withAttributes(attrs ...string) courseOpt {
	return func(c *student.CourseInstance) { c.Attributes = attrs }
}

func withGrade(code string, points string) courseOpt {
	return func(c *student.CourseInstance) {
		c.GradeCode = code
		c.GradePoints = decimal.RequireFromString(points)
	}
}

func withTerm(year, term int) courseOpt {
	return func(c *student.CourseInstance) {
		c.Year = year
		c.Term = term
	}
}

func inProgressNow() courseOpt {
	return func(c *student.CourseInstance) {
		c.InProgress = true
		c.InProgressThisTerm = true
	}
}

func inProgressFuture() courseOpt {
	return func(c *student.CourseInstance) {
		c.InProgress = true
		c.InProgressInFuture = true
	}
}

func course(clbid, name string, opts ...courseOpt) *student.CourseInstance {
	var subject string
	for i, r := range name {
		if r == ' ' {
			subject = name[:i]
			break
		}
	}
	c := &student.CourseInstance{
		Clbid:       clbid,
		Crsid:       "crs-" + name,
		Course:      name,
		Subject:     []string{subject},
		Credits:     decimal.RequireFromString("1.00"),
		GradeCode:   "B",
		GradePoints: decimal.RequireFromString("3.00"),
		GradeOption: student.GradeOptionGraded,
		CourseType:  student.CourseTypeRegular,
		Year:        2019,
		Term:        1,
		InGPA:       true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func testStudent(courses ...*student.CourseInstance) *student.Student {
	return &student.Student{
		Stnum:   "123456",
		Courses: courses,
	}
}

func testContext(s *student.Student, multicountable [][]*SingleClause, exceptions []*RuleException) *RequirementContext {
	return NewContext(s, multicountable, exceptions, nil)
}

func areaPointer(code string) student.AreaPointer {
	return student.AreaPointer{Code: code, Catalog: "2019-20", Kind: "major"}
}

func attrClause(value string) *SingleClause {
	return &SingleClause{Key: "attributes", Operator: OpEqualTo, Expected: StringValue(value)}
}

func subjClause(value string) *SingleClause {
	return &SingleClause{Key: "subject", Operator: OpEqualTo, Expected: StringValue(value)}
}
