// Package render turns audit results and transcripts into the output
// formats the CLI speaks: CSV dumps, JSON, and a styled terminal
// summary of the result tree.
package render

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strings"

	"degreeaudit/internal/engine"
	"degreeaudit/internal/student"

	"github.com/charmbracelet/lipgloss"
)

// TranscriptCSV writes the transcript dump the registrar's staff paste
// into spreadsheets.
func TranscriptCSV(w io.Writer, courses []*student.CourseInstance) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"course", "name", "clbid", "type", "credits", "term", "grade", "in_gpa"}); err != nil {
		return err
	}
	for _, c := range courses {
		inGPA := "N"
		if c.InGPA {
			inGPA = "Y"
		}
		row := []string{
			c.Course, c.Name, c.Clbid, string(c.CourseType), c.Credits.String(),
			fmt.Sprintf("%d-%d", c.Year, c.Term), c.GradeCode, inGPA,
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// GPACSV writes the GPA itemization: each participating course, then a
// final row with the computed average.
func GPACSV(w io.Writer, courses []*student.CourseInstance) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"course", "grade", "points"}); err != nil {
		return err
	}

	items := student.GPAItems(courses)
	sort.Slice(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.TermKey() != b.TermKey() {
			return a.TermKey() < b.TermKey()
		}
		if a.Course != b.Course {
			return a.Course < b.Course
		}
		return a.Clbid < b.Clbid
	})
	for _, c := range items {
		if err := writer.Write([]string{c.Course, c.GradeCode, c.GradePoints.String()}); err != nil {
			return err
		}
	}
	if err := writer.Write([]string{"---", "gpa:", student.GradePointAverage(courses).StringFixed(2)}); err != nil {
		return err
	}
	writer.Flush()
	return writer.Error()
}

var (
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	pendStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	headerStyle = lipgloss.NewStyle().Bold(true)
)

func statusMark(status engine.Status) string {
	switch status {
	case engine.StatusDone, engine.StatusWaived:
		return passStyle.Render("✓")
	case engine.StatusPendingCurrent, engine.StatusPendingRegistered, engine.StatusPendingApproval:
		return pendStyle.Render("~")
	default:
		return failStyle.Render("✗")
	}
}

// SummaryOptions toggle the optional annotations.
type SummaryOptions struct {
	ShowPaths bool
	ShowRanks bool
}

// Summarize renders a human-readable view of the result tree.
func Summarize(w io.Writer, result *engine.AreaResult, opts SummaryOptions) error {
	var b strings.Builder

	rank, maxRank := result.Result.Rank()
	verdict := failStyle.Render("NOT SATISFIED")
	if result.OK() {
		verdict = passStyle.Render("SATISFIED")
	}
	fmt.Fprintf(&b, "%s %s (%s)\n",
		headerStyle.Render(fmt.Sprintf("%q audit:", result.Area.Name)),
		verdict,
		mutedStyle.Render(fmt.Sprintf("rank %s of %s, gpa %s", rank, maxRank, result.GPA.StringFixed(2))),
	)

	summarizeNode(&b, result.Result.ToDict(), 1, opts)

	_, err := io.WriteString(w, b.String())
	return err
}

func summarizeNode(b *strings.Builder, node map[string]any, depth int, opts SummaryOptions) {
	indent := strings.Repeat("  ", depth)
	status, _ := node["status"].(string)
	mark := statusMark(engine.Status(status))

	label := nodeLabel(node)
	fmt.Fprintf(b, "%s%s %s", indent, mark, label)

	if opts.ShowRanks {
		if rank, ok := node["rank"].(string); ok {
			maxRank, _ := node["max_rank"].(string)
			fmt.Fprintf(b, " %s", mutedStyle.Render(fmt.Sprintf("(%s/%s)", rank, maxRank)))
		}
	}
	if opts.ShowPaths {
		if path, ok := node["path"].([]string); ok {
			fmt.Fprintf(b, " %s", mutedStyle.Render(strings.Join(path, "/")))
		}
	}
	b.WriteString("\n")

	for _, child := range childNodes(node) {
		summarizeNode(b, child, depth+1, opts)
	}
}

func nodeLabel(node map[string]any) string {
	switch node["type"] {
	case "course":
		course, _ := node["course"].(string)
		return course
	case "requirement":
		name, _ := node["name"].(string)
		return name
	case "count":
		count, _ := node["count"].(int)
		items, _ := node["items"].([]map[string]any)
		return fmt.Sprintf("%d of %d", count, len(items))
	case "query":
		sourceType, _ := node["source_type"].(string)
		return fmt.Sprintf("courses from %s", sourceType)
	case "area":
		name, _ := node["name"].(string)
		return name
	}
	return fmt.Sprintf("%v", node["type"])
}

func childNodes(node map[string]any) []map[string]any {
	var out []map[string]any
	if items, ok := node["items"].([]map[string]any); ok {
		out = append(out, items...)
	}
	if result, ok := node["result"].(map[string]any); ok {
		out = append(out, result)
	}
	return out
}
