package engine

import (
	"degreeaudit/internal/student"
)

// Limit caps how many items matching a clause a query may draw.
type Limit struct {
	AtMost int
	Where  Clause
}

func (l *Limit) ToDict() map[string]any {
	return map[string]any{"at_most": l.AtMost, "where": l.Where.ToDict()}
}

// LimitSet is an ordered list of limits. Courses matching a limit are
// assigned to the first one they match; courses matching none pass
// through unrestricted.
type LimitSet struct {
	Limits []*Limit
}

func (ls LimitSet) ToDict() []map[string]any {
	out := make([]map[string]any, len(ls.Limits))
	for i, l := range ls.Limits {
		out[i] = l.ToDict()
	}
	return out
}

// LimitedTranscripts enumerates the distinct course sets obeying every
// limit cap, in a deterministic order. With no limits the input set is
// visited once, unchanged. The visitor returns errStop to end early.
func (ls LimitSet) LimitedTranscripts(courses []*student.CourseInstance, visit func([]*student.CourseInstance) error) error {
	if len(ls.Limits) == 0 {
		return visit(courses)
	}

	// partition: each course joins the first limit it matches
	matched := make([][]*student.CourseInstance, len(ls.Limits))
	var free []*student.CourseInstance
	for _, c := range courses {
		assigned := false
		for i, l := range ls.Limits {
			if l.Where.Apply(CourseTarget{Course: c}) {
				matched[i] = append(matched[i], c)
				assigned = true
				break
			}
		}
		if !assigned {
			free = append(free, c)
		}
	}

	// enumerate subset choices limit by limit, sizes ascending, so the
	// smallest qualifying selection is seen first and ties resolve to
	// the minimal witness
	var recurse func(limitIdx int, chosen []*student.CourseInstance) error
	recurse = func(limitIdx int, chosen []*student.CourseInstance) error {
		if limitIdx == len(ls.Limits) {
			return visit(append(append([]*student.CourseInstance(nil), free...), chosen...))
		}

		pool := matched[limitIdx]
		take := ls.Limits[limitIdx].AtMost
		if take > len(pool) {
			take = len(pool)
		}

		for size := 0; size <= take; size++ {
			err := combinations(len(pool), size, func(idx []int) error {
				subset := make([]*student.CourseInstance, 0, len(chosen)+len(idx))
				subset = append(subset, chosen...)
				for _, i := range idx {
					subset = append(subset, pool[i])
				}
				return recurse(limitIdx+1, subset)
			})
			if err != nil {
				return err
			}
		}
		return nil
	}

	return recurse(0, nil)
}
