package engine

import (
	"fmt"

	"degreeaudit/internal/student"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// AreaOfStudy is a fully loaded requirement specification: the rule
// tree, the named-requirement table, and the multicountable policy.
type AreaOfStudy struct {
	Name    string
	Code    string
	Catalog string
	Kind    string

	Result         Rule
	Requirements   map[string]*Requirement
	Multicountable [][]*SingleClause
	CreditOverrides map[string]decimal.Decimal
}

// LoadArea parses an area specification document and prepares the audit
// context for one student. Credit overrides from the specification are
// applied to copies of the affected courses; the student value itself is
// left untouched.
func LoadArea(blob []byte, s *student.Student, log *zap.Logger) (*AreaOfStudy, *RequirementContext, error) {
	var spec map[string]any
	if err := yaml.Unmarshal(blob, &spec); err != nil {
		return nil, nil, fmt.Errorf("parsing area specification: %w", err)
	}
	return loadAreaSpec(spec, s, log)
}

func loadAreaSpec(spec map[string]any, s *student.Student, log *zap.Logger) (*AreaOfStudy, *RequirementContext, error) {
	area := &AreaOfStudy{
		CreditOverrides: make(map[string]decimal.Decimal),
	}

	area.Name, _ = spec["name"].(string)
	area.Code, _ = spec["code"].(string)
	area.Kind, _ = spec["type"].(string)
	switch catalog := spec["catalog"].(type) {
	case string:
		area.Catalog = catalog
	case int:
		area.Catalog = fmt.Sprintf("%d", catalog)
	}
	if area.Code == "" {
		return nil, nil, loadErrorf(nil, "area specification is missing its code")
	}

	if creditRaw, found := spec["credit"]; found && creditRaw != nil {
		credits, ok := creditRaw.(map[string]any)
		if !ok {
			return nil, nil, loadErrorf(nil, "credit must be a mapping of course to credits")
		}
		for course, raw := range credits {
			d, err := scalarDecimal("credits", raw)
			if err != nil {
				return nil, nil, loadErrorf(nil, "credit override for %q: %v", course, err)
			}
			area.CreditOverrides[course] = d
		}
	}

	multicountable, err := loadMulticountable(spec["multicountable"])
	if err != nil {
		return nil, nil, err
	}
	area.Multicountable = multicountable

	exceptions, err := LoadExceptions(s.Exceptions, area.Code)
	if err != nil {
		return nil, nil, err
	}

	adjusted := *s
	adjusted.Courses = applyCreditOverrides(s.Courses, area.CreditOverrides)

	ctx := NewContext(&adjusted, multicountable, exceptions, log)
	loader := &ruleLoader{ctx: ctx}

	topScope, err := loader.loadRequirementsScope(spec["requirements"], []string{"$"})
	if err != nil {
		return nil, nil, err
	}
	area.Requirements = topScope
	loader.pushScope(topScope)
	defer loader.popScope()

	resultRaw, found := spec["result"]
	if !found || resultRaw == nil {
		return nil, nil, loadErrorf(nil, "area specification is missing its result rule")
	}
	root, err := loader.loadRule(resultRaw, []string{"$", ".result"})
	if err != nil {
		return nil, nil, err
	}
	area.Result = root

	return area, ctx, nil
}

// loadMulticountable parses the multicountable policy: an ordered list
// of clausesets, each an ordered list of single clauses.
func loadMulticountable(raw any) ([][]*SingleClause, error) {
	if raw == nil {
		return nil, nil
	}

	list, ok := raw.([]any)
	if !ok {
		return nil, loadErrorf(nil, "multicountable must be a list of clausesets")
	}

	var out [][]*SingleClause
	for _, clausesetRaw := range list {
		clausesRaw, ok := clausesetRaw.([]any)
		if !ok || len(clausesRaw) == 0 {
			return nil, loadErrorf(nil, "each multicountable clauseset must be a non-empty list")
		}
		var clauseset []*SingleClause
		for _, clauseRaw := range clausesRaw {
			m, ok := clauseRaw.(map[string]any)
			if !ok || len(m) != 1 {
				return nil, loadErrorf(nil, "each multicountable clause must be a single-key mapping")
			}
			for key, value := range m {
				clause, err := loadSingleClause(key, value, []string{"$multicountable"}, nil)
				if err != nil {
					return nil, err
				}
				clauseset = append(clauseset, clause)
			}
		}
		out = append(out, clauseset)
	}
	return out, nil
}

func applyCreditOverrides(courses []*student.CourseInstance, overrides map[string]decimal.Decimal) []*student.CourseInstance {
	if len(overrides) == 0 {
		return courses
	}
	out := make([]*student.CourseInstance, len(courses))
	for i, c := range courses {
		if credits, found := overrides[c.Course]; found {
			dup := *c
			dup.Credits = credits
			out[i] = &dup
			continue
		}
		out[i] = c
	}
	return out
}
