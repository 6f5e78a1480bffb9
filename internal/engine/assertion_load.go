package engine

import (
	"strings"

	"github.com/shopspring/decimal"
)

// loadAnyAssertion parses an assertion descriptor, which is either a
// single assertion body or a {$if, $then, $else} conditional.
func loadAnyAssertion(data any, path []string, dataType DataType, ctx *RequirementContext, forbid []Operator) (AnyAssertion, error) {
	m, ok := data.(map[string]any)
	if !ok {
		return nil, loadErrorf(path, "expected a mapping for an assertion, found %T", data)
	}

	if condRaw, found := m["$if"]; found {
		condition, err := loadPredicateExpression(condRaw, path, ctx)
		if err != nil {
			return nil, err
		}

		thenRaw, found := m["$then"]
		if !found {
			return nil, loadErrorf(path, "conditional assertion is missing $then")
		}
		whenTrue, err := loadSingleAssertion(thenRaw, append(path, "/t"), dataType, ctx, forbid)
		if err != nil {
			return nil, err
		}

		var whenFalse *Assertion
		if elseRaw, found := m["$else"]; found && elseRaw != nil {
			whenFalse, err = loadSingleAssertion(elseRaw, append(path, "/f"), dataType, ctx, forbid)
			if err != nil {
				return nil, err
			}
		}

		return &ConditionalAssertion{
			Path:      append([]string(nil), path...),
			Condition: condition,
			WhenTrue:  whenTrue,
			WhenFalse: whenFalse,
		}, nil
	}

	return loadSingleAssertion(data, path, dataType, ctx, forbid)
}

func loadSingleAssertion(data any, path []string, dataType DataType, ctx *RequirementContext, forbid []Operator) (*Assertion, error) {
	m, ok := data.(map[string]any)
	if !ok {
		return nil, loadErrorf(path, "expected a mapping for an assertion, found %T", data)
	}

	path = append(append([]string(nil), path...), ".assert")

	a := &Assertion{
		Path:     path,
		DataType: dataType,
	}

	if whereRaw, found := m["where"]; found && whereRaw != nil {
		where, err := loadClause(whereRaw, path, true, nil)
		if err != nil {
			return nil, err
		}
		a.Where = where
	}

	if msg, found := m["message"]; found {
		s, ok := msg.(string)
		if !ok {
			return nil, loadErrorf(path, "message must be a string")
		}
		a.Message = s
	}
	if label, found := m["label"]; found {
		s, ok := label.(string)
		if !ok {
			return nil, loadErrorf(path, "label must be a string")
		}
		a.Label = s
	}

	body, found := m["assert"]
	if !found {
		return nil, loadErrorf(path, "assertion is missing its assert body")
	}
	bodyMap, ok := body.(map[string]any)
	if !ok || len(bodyMap) != 1 {
		return nil, loadErrorf(path, "assert must hold exactly one reducer key")
	}

	for key, rawValue := range bodyMap {
		a.Key = key

		switch dataType {
		case DataTypeCourse:
			if !IsCourseReducer(key) {
				return nil, loadErrorf(path, "unknown course assertion key %q", key)
			}
		case DataTypeArea:
			if !IsAreaReducer(key) {
				return nil, loadErrorf(path, "unknown area assertion key %q", key)
			}
		case DataTypeMusicPerformance, DataTypeRecital:
			if !IsMusicReducer(key) {
				return nil, loadErrorf(path, "unknown music assertion key %q", key)
			}
		}

		value, ok := rawValue.(map[string]any)
		if !ok {
			return nil, loadErrorf(path, "expected %q to hold a {$op: value} mapping", key)
		}

		var opSymbol string
		for k := range value {
			if IsOperatorSymbol(k) {
				if opSymbol != "" {
					return nil, loadErrorf(path, "multiple operators in assertion for %q", key)
				}
				opSymbol = k
			}
		}
		if opSymbol == "" {
			return nil, loadErrorf(path, "no operator in assertion for %q", key)
		}

		op, err := ParseOperator(opSymbol)
		if err != nil {
			return nil, loadErrorf(path, "%v", err)
		}
		for _, f := range append([]Operator{OpIn, OpNotIn}, forbid...) {
			if op == f {
				return nil, loadErrorf(path, "operator %s is forbidden in assertions", op)
			}
		}
		a.Operator = op

		expected, original, err := loadAssertionExpected(key, value[opSymbol], path)
		if err != nil {
			return nil, err
		}
		a.Expected = expected
		a.Original = original

		if changesRaw, found := value["$changes"]; found {
			changes, err := loadValueChanges(changesRaw, path, ctx)
			if err != nil {
				return nil, err
			}
			a.Changes = changes
			a.Expected = a.Expected.Add(computeChangeDiff(changes))
		}

		if atMost, found := value["at_most"]; found {
			b, ok := atMost.(bool)
			if !ok {
				return nil, loadErrorf(path, "at_most must be a boolean")
			}
			a.AtMost = b
		}
		if tip, found := value["treat_in_progress_as_pass"]; found {
			b, ok := tip.(bool)
			if !ok {
				return nil, loadErrorf(path, "treat_in_progress_as_pass must be a boolean")
			}
			a.TreatInProgressAsPass = b
		}
	}

	if override := ctx.GetValueException(a.Path); override != nil {
		a.Original = a.Expected.String()
		a.Expected = override.Value
	}
	if ctx.GetWaiveException(a.Path) != nil {
		a.Overridden = true
	}

	return a, nil
}

// loadAssertionExpected types the expected value; counting reducers
// require whole numbers.
func loadAssertionExpected(key string, raw any, path []string) (decimal.Decimal, string, error) {
	switch v := raw.(type) {
	case int:
		return decimal.NewFromInt(int64(v)), "", nil
	case float64:
		d := decimal.NewFromFloat(v)
		if strings.HasPrefix(key, "count(") && !d.Equal(d.Truncate(0)) {
			return decimal.Zero, "", loadErrorf(path, "counting assertion %q requires an integer, found %v", key, v)
		}
		return d, "", nil
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return decimal.Zero, "", loadErrorf(path, "expected a number for %q, found %q", key, v)
		}
		if strings.HasPrefix(key, "count(") && !d.Equal(d.Truncate(0)) {
			return decimal.Zero, "", loadErrorf(path, "counting assertion %q requires an integer, found %q", key, v)
		}
		return d, v, nil
	}
	return decimal.Zero, "", loadErrorf(path, "unsupported expected value %v (%T) for %q", raw, raw, key)
}

// loadValueChanges parses the $changes list: each entry pairs a
// predicate condition with a "+ N" or "- N" adjustment.
func loadValueChanges(raw any, path []string, ctx *RequirementContext) ([]*ValueChange, error) {
	list, ok := raw.([]any)
	if !ok {
		return nil, loadErrorf(path, "$changes must be a list")
	}

	var out []*ValueChange
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, loadErrorf(path, "each $changes entry must be a mapping")
		}

		condRaw, found := m["$if"]
		if !found {
			return nil, loadErrorf(path, "$changes entry is missing $if")
		}
		condition, err := loadPredicateExpression(condRaw, path, ctx)
		if err != nil {
			return nil, err
		}

		actionRaw, found := m["change"]
		if !found {
			return nil, loadErrorf(path, "$changes entry is missing its change action")
		}
		action, ok := actionRaw.(string)
		if !ok {
			return nil, loadErrorf(path, "$changes action must be a string like \"+ 4\"")
		}

		modeStr, amountStr, found := strings.Cut(action, " ")
		if !found {
			return nil, loadErrorf(path, "malformed $changes action %q", action)
		}
		var mode ValueChangeMode
		switch modeStr {
		case "+":
			mode = ChangeAdd
		case "-":
			mode = ChangeSubtract
		default:
			return nil, loadErrorf(path, "unsupported $changes mode %q", modeStr)
		}
		amount, err := decimal.NewFromString(strings.TrimSpace(amountStr))
		if err != nil {
			return nil, loadErrorf(path, "malformed $changes amount in %q", action)
		}

		out = append(out, &ValueChange{Mode: mode, Condition: condition, Amount: amount})
	}
	return out, nil
}
