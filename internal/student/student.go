package student

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
)

// ExceptionEntry is one user-supplied exception as it appears in the
// student file. Interpretation happens in the engine; this is just the
// wire shape.
type ExceptionEntry struct {
	AreaCode string   `json:"area_code"`
	Path     []string `json:"path"`
	Type     string   `json:"type"` // insert, force, waive, value, override
	Clbid    string   `json:"clbid,omitempty"`
	Value    string   `json:"value,omitempty"`
}

// Student is the full audit input for one person.
type Student struct {
	Stnum          string `json:"stnum"`
	Name           string `json:"name"`
	NameSort       string `json:"name_sort"`
	Classification string `json:"classification"`
	Class          string `json:"class"`

	Courses            []*CourseInstance
	Areas              []AreaPointer
	Exceptions         []ExceptionEntry
	MusicProficiencies MusicProficiencySet
	MusicPerformances  []MusicPerformance
}

type rawCourse struct {
	Clbid       string          `json:"clbid"`
	Crsid       string          `json:"crsid"`
	Course      string          `json:"course"`
	Name        string          `json:"name"`
	Subject     []string        `json:"subject"`
	Section     string          `json:"section"`
	Credits     decimal.Decimal `json:"credits"`
	GradeCode   string          `json:"grade_code"`
	GradePoints decimal.Decimal `json:"grade_points"`
	GradeOption string          `json:"grade_option"`
	Type        string          `json:"sub_type"`
	CourseType  string          `json:"course_type"`
	Attributes  []string        `json:"attributes"`
	GEReqs      []string        `json:"gereqs"`
	Year        int             `json:"year"`
	Term        int             `json:"term"`

	InProgress         bool `json:"is_in_progress"`
	InProgressThisTerm bool `json:"is_in_progress_this_term"`
	InProgressInFuture bool `json:"is_in_progress_in_future"`
	Incomplete         bool `json:"is_incomplete"`
	InGPA              bool `json:"is_in_gpa"`
}

type rawStudent struct {
	Stnum          string `json:"stnum"`
	Name           string `json:"name"`
	NameSort       string `json:"name_sort"`
	Classification string `json:"classification"`
	Class          string `json:"class"`

	Courses            []rawCourse        `json:"courses"`
	Areas              []AreaPointer      `json:"areas"`
	Exceptions         []ExceptionEntry   `json:"exceptions"`
	MusicProficiencies []MusicProficiency `json:"music_proficiencies"`
	MusicPerformances  []MusicPerformance `json:"music_performances"`
}

// Load reads and parses a student file.
func Load(path string) (*Student, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading student file: %w", err)
	}
	return Parse(blob)
}

// Parse decodes a student JSON document and validates the in-progress
// bookkeeping of each course.
func Parse(blob []byte) (*Student, error) {
	var raw rawStudent
	if err := json.Unmarshal(blob, &raw); err != nil {
		return nil, fmt.Errorf("parsing student file: %w", err)
	}

	s := &Student{
		Stnum:          raw.Stnum,
		Name:           raw.Name,
		NameSort:       raw.NameSort,
		Classification: raw.Classification,
		Class:          raw.Class,
		Areas:          raw.Areas,
		Exceptions:     raw.Exceptions,
		MusicProficiencies: MusicProficiencySet{
			Proficiencies: raw.MusicProficiencies,
		},
		MusicPerformances: raw.MusicPerformances,
	}

	for _, rc := range raw.Courses {
		c := &CourseInstance{
			Clbid:              rc.Clbid,
			Crsid:              rc.Crsid,
			Course:             rc.Course,
			Name:               rc.Name,
			Subject:            rc.Subject,
			Section:            rc.Section,
			Credits:            rc.Credits,
			GradeCode:          rc.GradeCode,
			GradePoints:        rc.GradePoints,
			GradeOption:        GradeOption(rc.GradeOption),
			CourseType:         CourseType(rc.CourseType),
			Attributes:         rc.Attributes,
			GEReqs:             rc.GEReqs,
			Year:               rc.Year,
			Term:               rc.Term,
			SubType:            rc.Type,
			InProgress:         rc.InProgress,
			InProgressThisTerm: rc.InProgressThisTerm,
			InProgressInFuture: rc.InProgressInFuture,
			Incomplete:         rc.Incomplete,
			InGPA:              rc.InGPA,
		}
		if c.CourseType == "" {
			c.CourseType = CourseTypeRegular
		}
		if c.GradeOption == "" {
			c.GradeOption = GradeOptionGraded
		}
		if c.InProgress && !c.InProgressThisTerm && !c.InProgressInFuture && !c.Incomplete {
			return nil, fmt.Errorf("course %s (%s) is in progress but neither enrolled, registered, nor incomplete", c.Course, c.Clbid)
		}
		s.Courses = append(s.Courses, c)
	}

	return s, nil
}

// CompletedCourses filters the transcript down to finished work.
func (s *Student) CompletedCourses() []*CourseInstance {
	var out []*CourseInstance
	for _, c := range s.Courses {
		if !c.InProgress {
			out = append(out, c)
		}
	}
	return out
}
