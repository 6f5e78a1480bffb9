package engine

import (
	"fmt"
	"sort"
)

// ruleLoader parses rule descriptors into the immutable rule tree.
// Requirement names are scoped: a reference resolves against the
// innermost enclosing requirements table that defines the name.
type ruleLoader struct {
	ctx    *RequirementContext
	scopes []map[string]*Requirement
}

func (l *ruleLoader) pushScope(scope map[string]*Requirement) {
	l.scopes = append(l.scopes, scope)
}

func (l *ruleLoader) popScope() {
	l.scopes = l.scopes[:len(l.scopes)-1]
}

func (l *ruleLoader) lookup(name string) *Requirement {
	for i := len(l.scopes) - 1; i >= 0; i-- {
		if req, ok := l.scopes[i][name]; ok {
			return req
		}
	}
	return nil
}

// loadRule dispatches on the descriptor's discriminating key.
func (l *ruleLoader) loadRule(data any, path []string) (Rule, error) {
	m, ok := data.(map[string]any)
	if !ok {
		return nil, loadErrorf(path, "expected a mapping for a rule, found %T", data)
	}

	switch {
	case m["course"] != nil:
		return l.loadCourseRule(m, path)
	case m["from"] != nil:
		return l.loadQueryRule(m, path)
	case m["count"] != nil, m["all"] != nil, m["any"] != nil, m["both"] != nil, m["either"] != nil:
		return l.loadCountRule(m, path)
	case m["requirement"] != nil:
		return l.loadReference(m, path)
	case m["name"] != nil:
		name, ok := m["name"].(string)
		if !ok {
			return nil, loadErrorf(path, "requirement name must be a string")
		}
		req := &Requirement{Name: name}
		if err := l.fillRequirement(req, m, path); err != nil {
			return nil, err
		}
		return req, nil
	}
	return nil, loadErrorf(path, "expected a course, query, count, requirement, or reference rule; found none of those")
}

func (l *ruleLoader) loadCourseRule(m map[string]any, path []string) (*CourseRule, error) {
	course, ok := m["course"].(string)
	if !ok {
		return nil, loadErrorf(path, "course must be a string")
	}

	r := &CourseRule{Course: course, path: append(append([]string(nil), path...), course)}

	if hidden, found := m["hidden"]; found {
		b, ok := hidden.(bool)
		if !ok {
			return nil, loadErrorf(r.path, "hidden must be a boolean")
		}
		r.Hidden = b
	}
	if ac, found := m["allow_claimed"]; found {
		b, ok := ac.(bool)
		if !ok {
			return nil, loadErrorf(r.path, "allow_claimed must be a boolean")
		}
		r.AllowClaimed = b
	}
	if grade, found := m["grade"]; found {
		d, err := scalarDecimal("grade", grade)
		if err != nil {
			return nil, loadErrorf(r.path, "%v", err)
		}
		r.Grade = &d
	}

	return r, nil
}

func (l *ruleLoader) loadQueryRule(m map[string]any, path []string) (*QueryRule, error) {
	source, ok := m["from"].(string)
	if !ok {
		return nil, loadErrorf(path, "from must be a string")
	}

	r := &QueryRule{
		SourceRepeats: RepeatAll,
		AttemptClaims: true,
		path:          append([]string(nil), path...),
	}

	var dataType DataType
	switch QuerySourceType(source) {
	case SourceCourses:
		r.SourceType = SourceCourses
		dataType = DataTypeCourse
	case SourceAreas:
		r.SourceType = SourceAreas
		dataType = DataTypeArea
	case SourceMusicPerformances:
		r.SourceType = SourceMusicPerformances
		dataType = DataTypeMusicPerformance
	default:
		return nil, loadErrorf(path, "unknown query source %q", source)
	}

	if repeats, found := m["repeats"]; found {
		s, ok := repeats.(string)
		if !ok || (s != string(RepeatFirst) && s != string(RepeatAll)) {
			return nil, loadErrorf(r.path, "repeats must be \"first\" or \"all\"")
		}
		r.SourceRepeats = RepeatMode(s)
	}

	if whereRaw, found := m["where"]; found && whereRaw != nil {
		where, err := loadClause(whereRaw, r.path, true, nil)
		if err != nil {
			return nil, err
		}
		r.Where = where
	}

	if limitRaw, found := m["limit"]; found && limitRaw != nil {
		limit, err := l.loadLimitSet(limitRaw, r.path)
		if err != nil {
			return nil, err
		}
		r.Limit = limit
	}

	for flag, target := range map[string]*bool{
		"claim":           &r.AttemptClaims,
		"allow_claimed":   &r.AllowClaimed,
		"load_potentials": &r.LoadPotentials,
	} {
		if raw, found := m[flag]; found {
			b, ok := raw.(bool)
			if !ok {
				return nil, loadErrorf(r.path, "%s must be a boolean", flag)
			}
			*target = b
		}
	}

	assertions, err := l.loadAssertionList(m, r.path, dataType)
	if err != nil {
		return nil, err
	}
	r.Assertions = assertions

	return r, nil
}

// loadAssertionList accepts either a single `assert` body or an `all`
// list of assertion descriptors.
func (l *ruleLoader) loadAssertionList(m map[string]any, path []string, dataType DataType) ([]AnyAssertion, error) {
	if allRaw, found := m["all"]; found {
		list, ok := allRaw.([]any)
		if !ok {
			return nil, loadErrorf(path, "all must be a list of assertions")
		}
		var out []AnyAssertion
		for i, item := range list {
			a, err := loadAnyAssertion(item, append(append([]string(nil), path...), ".assertions", fmt.Sprintf("[%d]", i)), dataType, l.ctx, nil)
			if err != nil {
				return nil, err
			}
			out = append(out, a)
		}
		return out, nil
	}

	if body, found := m["assert"]; found {
		a, err := loadAnyAssertion(map[string]any{"assert": body}, append(append([]string(nil), path...), ".assertions", "[0]"), dataType, l.ctx, nil)
		if err != nil {
			return nil, err
		}
		return []AnyAssertion{a}, nil
	}

	return nil, nil
}

func (l *ruleLoader) loadLimitSet(raw any, path []string) (LimitSet, error) {
	list, ok := raw.([]any)
	if !ok {
		return LimitSet{}, loadErrorf(path, "limit must be a list")
	}

	var limits []*Limit
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			return LimitSet{}, loadErrorf(path, "each limit must be a mapping")
		}
		atMost, ok := m["at_most"].(int)
		if !ok {
			return LimitSet{}, loadErrorf(path, "limit at_most must be an integer")
		}
		whereRaw, found := m["where"]
		if !found {
			return LimitSet{}, loadErrorf(path, "limit is missing its where clause")
		}
		where, err := loadClause(whereRaw, path, true, nil)
		if err != nil {
			return LimitSet{}, err
		}
		limits = append(limits, &Limit{AtMost: atMost, Where: where})
	}
	return LimitSet{Limits: limits}, nil
}

func (l *ruleLoader) loadCountRule(m map[string]any, path []string) (*CountRule, error) {
	r := &CountRule{path: append([]string(nil), path...)}

	var childrenRaw any
	switch {
	case m["all"] != nil:
		childrenRaw = m["all"]
		r.Count = -1 // all of them
	case m["any"] != nil:
		childrenRaw = m["any"]
		r.Count = 1
	case m["both"] != nil:
		childrenRaw = m["both"]
		r.Count = 2
	case m["either"] != nil:
		childrenRaw = m["either"]
		r.Count = 1
	default:
		childrenRaw = m["of"]
		switch count := m["count"].(type) {
		case int:
			r.Count = count
		case string:
			switch count {
			case "all":
				r.Count = -1
			case "any":
				r.Count = 1
			default:
				return nil, loadErrorf(path, "count must be an integer, \"all\", or \"any\"")
			}
		default:
			return nil, loadErrorf(path, "count must be an integer, \"all\", or \"any\"")
		}
	}

	list, ok := childrenRaw.([]any)
	if !ok || len(list) == 0 {
		return nil, loadErrorf(path, "count rule requires a non-empty list of children")
	}
	if _, found := m["both"]; found && len(list) != 2 {
		return nil, loadErrorf(path, "both requires exactly two children, found %d", len(list))
	}
	if _, found := m["either"]; found && len(list) != 2 {
		return nil, loadErrorf(path, "either requires exactly two children, found %d", len(list))
	}

	if r.Count == -1 {
		r.Count = len(list)
	}
	if r.Count > len(list) {
		return nil, loadErrorf(path, "count %d exceeds the %d children available", r.Count, len(list))
	}

	for i, item := range list {
		child, err := l.loadRule(item, append(append([]string(nil), r.path...), ".of", fmt.Sprintf("[%d]", i)))
		if err != nil {
			return nil, err
		}
		r.Children = append(r.Children, child)
	}

	if atMost, found := m["at_most"]; found {
		b, ok := atMost.(bool)
		if !ok {
			return nil, loadErrorf(r.path, "at_most must be a boolean")
		}
		r.AtMost = b
	}

	if auditRaw, found := m["audit"]; found && auditRaw != nil {
		auditPath := append(append([]string(nil), r.path...), ".audit")
		switch audits := auditRaw.(type) {
		case []any:
			for i, item := range audits {
				a, err := loadAnyAssertion(item, append(append([]string(nil), auditPath...), fmt.Sprintf("[%d]", i)), DataTypeCourse, l.ctx, nil)
				if err != nil {
					return nil, err
				}
				r.Audits = append(r.Audits, a)
			}
		default:
			a, err := loadAnyAssertion(auditRaw, append(append([]string(nil), auditPath...), "[0]"), DataTypeCourse, l.ctx, nil)
			if err != nil {
				return nil, err
			}
			r.Audits = append(r.Audits, a)
		}
	}

	return r, nil
}

func (l *ruleLoader) loadReference(m map[string]any, path []string) (*ReferenceRule, error) {
	name, ok := m["requirement"].(string)
	if !ok {
		return nil, loadErrorf(path, "requirement reference must be a string")
	}

	target := l.lookup(name)
	if target == nil {
		return nil, loadErrorf(path, "reference to unknown requirement %q", name)
	}

	return &ReferenceRule{
		RequirementName: name,
		Target:          target,
		path:            append(append([]string(nil), path...), "%"+name),
	}, nil
}

// fillRequirement parses a named requirement body into an existing
// shell, including its nested requirements scope.
func (l *ruleLoader) fillRequirement(r *Requirement, m map[string]any, path []string) error {
	r.InGPA = true
	r.path = append(append([]string(nil), path...), "%"+r.Name)

	if msg, found := m["message"]; found {
		s, ok := msg.(string)
		if !ok {
			return loadErrorf(r.path, "message must be a string")
		}
		r.Message = s
	}
	for flag, target := range map[string]*bool{
		"department_audited": &r.IsAudited,
		"registrar_audited":  &r.IsAudited,
		"contract":           &r.IsContract,
	} {
		if raw, found := m[flag]; found {
			b, ok := raw.(bool)
			if !ok {
				return loadErrorf(r.path, "%s must be a boolean", flag)
			}
			if b {
				*target = true
			}
		}
	}
	if raw, found := m["in_gpa"]; found {
		b, ok := raw.(bool)
		if !ok {
			return loadErrorf(r.path, "in_gpa must be a boolean")
		}
		r.InGPA = b
	}
	if raw, found := m["disjoint"]; found {
		b, ok := raw.(bool)
		if !ok {
			return loadErrorf(r.path, "disjoint must be a boolean")
		}
		r.Disjoint = &b
	}

	scope, err := l.loadRequirementsScope(m["requirements"], r.path)
	if err != nil {
		return err
	}
	l.pushScope(scope)
	defer l.popScope()

	if resultRaw, found := m["result"]; found && resultRaw != nil {
		body, err := l.loadRule(resultRaw, append(append([]string(nil), r.path...), ".result"))
		if err != nil {
			return err
		}
		r.Result = body
	}

	if r.Result == nil && !r.IsAudited && r.Message == "" {
		return loadErrorf(r.path, "requirement %q has no result, no message, and is not audited", r.Name)
	}

	l.ctx.registerRequirement(r)
	return nil
}

// loadRequirementsScope loads a requirements table. Shells for every
// name are registered before any body is parsed, so sibling bodies may
// reference each other regardless of definition order.
func (l *ruleLoader) loadRequirementsScope(raw any, path []string) (map[string]*Requirement, error) {
	scope := make(map[string]*Requirement)
	if raw == nil {
		return scope, nil
	}

	m, ok := raw.(map[string]any)
	if !ok {
		return nil, loadErrorf(path, "requirements must be a mapping of name to body")
	}

	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
		scope[name] = &Requirement{Name: name}
	}
	sort.Strings(names)

	l.pushScope(scope)
	defer l.popScope()

	for _, name := range names {
		body, ok := m[name].(map[string]any)
		if !ok {
			return nil, loadErrorf(path, "requirement %q body must be a mapping", name)
		}
		if err := l.fillRequirement(scope[name], body, path); err != nil {
			return nil, err
		}
	}

	return scope, nil
}
