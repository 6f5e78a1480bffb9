package engine

import (
	"degreeaudit/internal/student"
)

// Clausable is anything a clause can be applied to: a transcript course,
// a declared area, or a music record.
type Clausable interface {
	// ClauseValue resolves an attribute key to a typed value. The second
	// return is false for keys the item does not carry.
	ClauseValue(key string) (Value, bool)
	// SortIdentity orders items deterministically during enumeration.
	SortIdentity() string
}

// CourseTarget adapts a CourseInstance for clause application.
type CourseTarget struct {
	Course *student.CourseInstance
}

func (t CourseTarget) SortIdentity() string { return t.Course.Clbid }

func (t CourseTarget) ClauseValue(key string) (Value, bool) {
	c := t.Course
	switch key {
	case "course":
		return StringValue(c.Identity()), true
	case "crsid":
		return StringValue(c.Crsid), true
	case "clbid":
		return StringValue(c.Clbid), true
	case "subject":
		return StringsValue(c.Subject), true
	case "attributes":
		return StringsValue(c.Attributes), true
	case "gereqs":
		return StringsValue(c.GEReqs), true
	case "credits":
		return DecimalValue(c.Credits), true
	case "grade":
		return DecimalValue(c.GradePoints), true
	case "grade_code":
		return StringValue(c.GradeCode), true
	case "grade_option":
		return StringValue(string(c.GradeOption)), true
	case "type":
		return StringValue(string(c.CourseType)), true
	case "sub_type":
		return StringValue(c.SubType), true
	case "level":
		return IntValue(c.Level()), true
	case "year":
		return IntValue(c.Year), true
	case "term":
		return IntValue(c.Term), true
	case "is_in_gpa":
		return BoolValue(c.InGPA), true
	case "is_in_progress":
		return BoolValue(c.InProgress), true
	case "is_stolaf", "is_on_campus":
		// off-campus detection is not part of this transcript feed
		return BoolValue(true), true
	}
	return Value{}, false
}

// AreaTarget adapts an AreaPointer for clause application.
type AreaTarget struct {
	Area student.AreaPointer
}

func (t AreaTarget) SortIdentity() string { return t.Area.Code }

func (t AreaTarget) ClauseValue(key string) (Value, bool) {
	a := t.Area
	switch key {
	case "code":
		return StringValue(a.Code), true
	case "catalog":
		return StringValue(a.Catalog), true
	case "kind", "type":
		return StringValue(a.Kind), true
	case "name":
		return StringValue(a.Name), true
	case "degree":
		return StringValue(a.Degree), true
	case "gpa":
		return DecimalValue(a.GPA), true
	}
	return Value{}, false
}

// MusicTarget adapts a MusicPerformance for clause application.
type MusicTarget struct {
	Performance student.MusicPerformance
}

func (t MusicTarget) SortIdentity() string { return t.Performance.ID }

func (t MusicTarget) ClauseValue(key string) (Value, bool) {
	p := t.Performance
	switch key {
	case "id":
		return StringValue(p.ID), true
	case "name":
		return StringValue(p.Name), true
	case "kind":
		return StringValue(p.Kind), true
	case "year":
		return IntValue(p.Year), true
	case "term":
		return IntValue(p.Term), true
	}
	return Value{}, false
}
