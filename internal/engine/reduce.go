package engine

import (
	"fmt"
	"sort"

	"degreeaudit/internal/student"
	"github.com/shopspring/decimal"
)

// appliedResult is the outcome of running a reducer over a matched set:
// the reduced value, the witness items, and the courses involved.
type appliedResult struct {
	value   decimal.Decimal
	items   []string
	courses []*student.CourseInstance
}

// courseReducers are the recognized (key -> reducer) pairs for course
// assertions.
var courseReducers = map[string]func([]*student.CourseInstance) appliedResult{
	"count(courses)":          countCourses,
	"count(terms)":            countTerms,
	"count(subjects)":         countSubjects,
	"count(distinct_courses)": countDistinctCourses,
	"sum(credits)":            sumCredits,
	"average(grades)":         averageGrades,
	"average(credits)":        averageCredits,
}

var areaReducers = map[string]bool{"count(areas)": true}
var musicReducers = map[string]bool{"count(performances)": true, "count(recitals)": true}

// IsCourseReducer reports whether key is a recognized course assertion
// reducer.
func IsCourseReducer(key string) bool {
	_, ok := courseReducers[key]
	return ok
}

func IsAreaReducer(key string) bool  { return areaReducers[key] }
func IsMusicReducer(key string) bool { return musicReducers[key] }

func reduceCourses(key string, courses []*student.CourseInstance) appliedResult {
	reducer, ok := courseReducers[key]
	if !ok {
		panic(fmt.Sprintf("unreachable: unvalidated course reducer %q", key))
	}
	return reducer(courses)
}

func countCourses(courses []*student.CourseInstance) appliedResult {
	seen := make(map[string]bool)
	var kept []*student.CourseInstance
	for _, c := range courses {
		if seen[c.Clbid] {
			continue
		}
		seen[c.Clbid] = true
		kept = append(kept, c)
	}
	return appliedResult{
		value:   decimal.NewFromInt(int64(len(kept))),
		items:   clbidsOf(kept),
		courses: kept,
	}
}

func countTerms(courses []*student.CourseInstance) appliedResult {
	seen := make(map[int]bool)
	var items []string
	for _, c := range courses {
		key := c.TermKey()
		if seen[key] {
			continue
		}
		seen[key] = true
		items = append(items, fmt.Sprintf("%d", key))
	}
	return appliedResult{
		value:   decimal.NewFromInt(int64(len(seen))),
		items:   items,
		courses: courses,
	}
}

func countSubjects(courses []*student.CourseInstance) appliedResult {
	seen := make(map[string]bool)
	for _, c := range courses {
		for _, s := range c.Subject {
			seen[s] = true
		}
	}
	items := make([]string, 0, len(seen))
	for s := range seen {
		items = append(items, s)
	}
	sort.Strings(items)
	return appliedResult{
		value:   decimal.NewFromInt(int64(len(seen))),
		items:   items,
		courses: courses,
	}
}

func countDistinctCourses(courses []*student.CourseInstance) appliedResult {
	seen := make(map[string]bool)
	var kept []*student.CourseInstance
	for _, c := range courses {
		if seen[c.Crsid] {
			continue
		}
		seen[c.Crsid] = true
		kept = append(kept, c)
	}
	return appliedResult{
		value:   decimal.NewFromInt(int64(len(kept))),
		items:   clbidsOf(kept),
		courses: kept,
	}
}

func sumCredits(courses []*student.CourseInstance) appliedResult {
	total := decimal.Zero
	items := make([]string, 0, len(courses))
	for _, c := range courses {
		total = total.Add(c.Credits)
		items = append(items, c.Credits.String())
	}
	return appliedResult{value: total, items: items, courses: courses}
}

func averageGrades(courses []*student.CourseInstance) appliedResult {
	var graded []*student.CourseInstance
	total := decimal.Zero
	for _, c := range courses {
		if c.GradeOption != student.GradeOptionGraded || c.InProgress {
			continue
		}
		graded = append(graded, c)
		total = total.Add(c.GradePoints)
	}
	if len(graded) == 0 {
		return appliedResult{value: decimal.Zero}
	}
	avg := total.Div(decimal.NewFromInt(int64(len(graded)))).Round(2)
	items := make([]string, 0, len(graded))
	for _, c := range graded {
		items = append(items, c.GradePoints.String())
	}
	return appliedResult{value: avg, items: items, courses: graded}
}

func averageCredits(courses []*student.CourseInstance) appliedResult {
	if len(courses) == 0 {
		return appliedResult{value: decimal.Zero}
	}
	total := decimal.Zero
	items := make([]string, 0, len(courses))
	for _, c := range courses {
		total = total.Add(c.Credits)
		items = append(items, c.Credits.String())
	}
	avg := total.Div(decimal.NewFromInt(int64(len(courses)))).Round(2)
	return appliedResult{value: avg, items: items, courses: courses}
}

func reduceAreas(key string, areas []student.AreaPointer) appliedResult {
	if key != "count(areas)" {
		panic(fmt.Sprintf("unreachable: unvalidated area reducer %q", key))
	}
	seen := make(map[string]bool)
	var items []string
	for _, a := range areas {
		if seen[a.Code] {
			continue
		}
		seen[a.Code] = true
		items = append(items, a.Code)
	}
	sort.Strings(items)
	return appliedResult{value: decimal.NewFromInt(int64(len(seen))), items: items}
}

func reduceMusic(key string, music []student.MusicPerformance) appliedResult {
	var kind string
	switch key {
	case "count(performances)":
		kind = "performance"
	case "count(recitals)":
		kind = "recital"
	default:
		panic(fmt.Sprintf("unreachable: unvalidated music reducer %q", key))
	}

	var items []string
	for _, m := range music {
		if m.Kind != kind {
			continue
		}
		items = append(items, m.ID)
	}
	sort.Strings(items)
	return appliedResult{value: decimal.NewFromInt(int64(len(items))), items: items}
}
