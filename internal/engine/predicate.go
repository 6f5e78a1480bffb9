package engine

// Predicate expressions are boolean atoms over the audit context rather
// than over individual courses: "does the student have an in-progress
// AMCON 101", "is area 130 declared". They gate conditional assertions
// and expected-value changes.

// PredicateFunction names one context query.
type PredicateFunction string

const (
	PredHasIPCourse          PredicateFunction = "has-ip-course"
	PredHasCompletedCourse   PredicateFunction = "has-completed-course"
	PredHasCourse            PredicateFunction = "has-course"
	PredPassedProficiency    PredicateFunction = "passed-proficiency-exam"
	PredHasDeclaredAreaCode  PredicateFunction = "has-declared-area-code"
	PredRequirementSatisfied PredicateFunction = "requirement-is-satisfied"
)

var predicateFunctions = map[string]PredicateFunction{
	string(PredHasIPCourse):          PredHasIPCourse,
	string(PredHasCompletedCourse):   PredHasCompletedCourse,
	string(PredHasCourse):            PredHasCourse,
	string(PredPassedProficiency):    PredPassedProficiency,
	string(PredHasDeclaredAreaCode):  PredHasDeclaredAreaCode,
	string(PredRequirementSatisfied): PredRequirementSatisfied,
}

// PredicateExpression is an evaluated boolean over the context. All
// atoms are resolved during loading, before any assertion that depends
// on them is audited.
type PredicateExpression interface {
	Result() bool
	ToDict() map[string]any
}

// PredicateAtom is a single function application.
type PredicateAtom struct {
	Function PredicateFunction
	Argument string
	Value    bool
}

func (p *PredicateAtom) Result() bool { return p.Value }

func (p *PredicateAtom) ToDict() map[string]any {
	return map[string]any{
		"type":     "pred-expr",
		"function": string(p.Function),
		"argument": p.Argument,
		"result":   p.Value,
	}
}

// PredicateAnd is true when every sub-expression is.
type PredicateAnd struct {
	Expressions []PredicateExpression
}

func (p *PredicateAnd) Result() bool {
	for _, e := range p.Expressions {
		if !e.Result() {
			return false
		}
	}
	return true
}

func (p *PredicateAnd) ToDict() map[string]any {
	exprs := make([]map[string]any, len(p.Expressions))
	for i, e := range p.Expressions {
		exprs[i] = e.ToDict()
	}
	return map[string]any{"type": "pred-expr--and", "expressions": exprs, "result": p.Result()}
}

// PredicateOr is true when any sub-expression is.
type PredicateOr struct {
	Expressions []PredicateExpression
}

func (p *PredicateOr) Result() bool {
	for _, e := range p.Expressions {
		if e.Result() {
			return true
		}
	}
	return false
}

func (p *PredicateOr) ToDict() map[string]any {
	exprs := make([]map[string]any, len(p.Expressions))
	for i, e := range p.Expressions {
		exprs[i] = e.ToDict()
	}
	return map[string]any{"type": "pred-expr--or", "expressions": exprs, "result": p.Result()}
}

// PredicateNot negates its sub-expression.
type PredicateNot struct {
	Expression PredicateExpression
}

func (p *PredicateNot) Result() bool { return !p.Expression.Result() }

func (p *PredicateNot) ToDict() map[string]any {
	return map[string]any{"type": "pred-expr--not", "expression": p.Expression.ToDict(), "result": p.Result()}
}

// loadPredicateExpression parses and immediately evaluates a predicate
// expression descriptor against the context.
func loadPredicateExpression(data any, path []string, ctx *RequirementContext) (PredicateExpression, error) {
	m, ok := data.(map[string]any)
	if !ok || len(m) != 1 {
		return nil, loadErrorf(path, "expected a single-key mapping for a predicate expression, found %v", data)
	}

	if raw, found := m["$and"]; found {
		exprs, err := loadPredicateList(raw, path, ctx)
		if err != nil {
			return nil, err
		}
		return &PredicateAnd{Expressions: exprs}, nil
	}
	if raw, found := m["$or"]; found {
		exprs, err := loadPredicateList(raw, path, ctx)
		if err != nil {
			return nil, err
		}
		return &PredicateOr{Expressions: exprs}, nil
	}
	if raw, found := m["$not"]; found {
		inner, err := loadPredicateExpression(raw, path, ctx)
		if err != nil {
			return nil, err
		}
		return &PredicateNot{Expression: inner}, nil
	}

	for name, arg := range m {
		fn, ok := predicateFunctions[name]
		if !ok {
			return nil, loadErrorf(path, "unknown predicate expression function %q", name)
		}
		argument, ok := arg.(string)
		if !ok {
			return nil, loadErrorf(path, "predicate expression %q requires a string argument, found %T", name, arg)
		}
		value, err := evaluatePredicate(fn, argument, path, ctx)
		if err != nil {
			return nil, err
		}
		return &PredicateAtom{Function: fn, Argument: argument, Value: value}, nil
	}
	return nil, loadErrorf(path, "empty predicate expression")
}

func loadPredicateList(raw any, path []string, ctx *RequirementContext) ([]PredicateExpression, error) {
	items, ok := raw.([]any)
	if !ok || len(items) == 0 {
		return nil, loadErrorf(path, "expected a non-empty list of predicate expressions")
	}
	exprs := make([]PredicateExpression, 0, len(items))
	for _, item := range items {
		e, err := loadPredicateExpression(item, path, ctx)
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, e)
	}
	return exprs, nil
}

func evaluatePredicate(fn PredicateFunction, argument string, path []string, ctx *RequirementContext) (bool, error) {
	switch fn {
	case PredHasDeclaredAreaCode:
		return ctx.HasDeclaredAreaCode(argument), nil
	case PredHasCourse:
		return ctx.HasCourse(argument), nil
	case PredHasIPCourse:
		return ctx.HasIPCourse(argument), nil
	case PredHasCompletedCourse:
		return ctx.HasCompletedCourse(argument), nil
	case PredPassedProficiency:
		return ctx.MusicProficiencies().PassedExam(argument), nil
	case PredRequirementSatisfied:
		// declared in the grammar but never dispatched; reject rather
		// than guess at evaluation ordering
		return false, loadErrorf(path, "requirement-is-satisfied is not supported in predicate expressions")
	}
	return false, loadErrorf(path, "unknown predicate expression function %q", fn)
}
