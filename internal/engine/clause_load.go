package engine

import (
	"fmt"

	"degreeaudit/internal/student"
	"github.com/shopspring/decimal"
)

// keyAliases maps the singular/plural spellings that appear in area files
// onto the canonical attribute keys.
var keyAliases = map[string]string{
	"subjects":  "subject",
	"attribute": "attributes",
	"gereq":     "gereqs",
}

// decimalKeys are the attribute keys whose expected values are numeric.
var decimalKeys = map[string]bool{
	"grade":   true,
	"credits": true,
	"gpa":     true,
	"year":    true,
	"term":    true,
	"level":   true,
}

// loadClause parses a where-clause descriptor: either a single
// {key: {$op: value}} mapping, or a $and/$or composition.
func loadClause(data any, path []string, allowBoolean bool, forbid []Operator) (Clause, error) {
	m, ok := data.(map[string]any)
	if !ok {
		return nil, loadErrorf(path, "expected a mapping for a clause, found %T", data)
	}

	if raw, found := m["$and"]; found {
		if !allowBoolean {
			return nil, loadErrorf(path, "$and clauses are not allowed here")
		}
		if len(m) != 1 {
			return nil, loadErrorf(path, "$and must be the only key in its clause")
		}
		children, err := loadClauseList(raw, path, forbid)
		if err != nil {
			return nil, err
		}
		return &AndClause{Children: children}, nil
	}

	if raw, found := m["$or"]; found {
		if !allowBoolean {
			return nil, loadErrorf(path, "$or clauses are not allowed here")
		}
		if len(m) != 1 {
			return nil, loadErrorf(path, "$or must be the only key in its clause")
		}
		children, err := loadClauseList(raw, path, forbid)
		if err != nil {
			return nil, err
		}
		return &OrClause{Children: children}, nil
	}

	if len(m) != 1 {
		return nil, loadErrorf(path, "only one key is allowed in a single clause, found %d", len(m))
	}

	for key, value := range m {
		return loadSingleClause(key, value, path, forbid)
	}
	return nil, loadErrorf(path, "empty clause")
}

func loadClauseList(raw any, path []string, forbid []Operator) ([]Clause, error) {
	items, ok := raw.([]any)
	if !ok || len(items) == 0 {
		return nil, loadErrorf(path, "expected a non-empty list of clauses")
	}
	children := make([]Clause, 0, len(items))
	for _, item := range items {
		child, err := loadClause(item, path, true, forbid)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	return children, nil
}

func loadSingleClause(key string, value any, path []string, forbid []Operator) (*SingleClause, error) {
	if alias, ok := keyAliases[key]; ok {
		key = alias
	}

	body, ok := value.(map[string]any)
	if !ok {
		return nil, loadErrorf(path, "expected %q to hold a {$op: value} mapping, found %T", key, value)
	}

	var opSymbol string
	for k := range body {
		if IsOperatorSymbol(k) {
			if opSymbol != "" {
				return nil, loadErrorf(path, "multiple operators in clause for %q", key)
			}
			opSymbol = k
		}
	}
	if opSymbol == "" {
		return nil, loadErrorf(path, "no operator in clause for %q", key)
	}

	op, err := ParseOperator(opSymbol)
	if err != nil {
		return nil, loadErrorf(path, "%v", err)
	}
	for _, f := range forbid {
		if op == f {
			return nil, loadErrorf(path, "operator %s is forbidden here", op)
		}
	}

	expected, verbatim, err := loadExpectedValue(key, body[opSymbol], op, path)
	if err != nil {
		return nil, err
	}

	clause := &SingleClause{
		Key:              key,
		Operator:         op,
		Expected:         expected,
		ExpectedVerbatim: verbatim,
	}

	if atMost, found := body["at_most"]; found {
		b, ok := atMost.(bool)
		if !ok {
			return nil, loadErrorf(path, "at_most must be a boolean")
		}
		clause.AtMost = b
	}
	if label, found := body["label"]; found {
		s, ok := label.(string)
		if !ok {
			return nil, loadErrorf(path, "label must be a string")
		}
		clause.Label = s
	}
	if tip, found := body["treat_in_progress_as_pass"]; found {
		b, ok := tip.(bool)
		if !ok {
			return nil, loadErrorf(path, "treat_in_progress_as_pass must be a boolean")
		}
		clause.TreatInProgressAsPass = b
	}

	if (op == OpIn || op == OpNotIn) != clause.Expected.IsSequence() {
		if op == OpIn || op == OpNotIn {
			return nil, loadErrorf(path, "%s requires a list of values", op)
		}
		return nil, loadErrorf(path, "%s requires a single value, not a list", op)
	}

	return clause, nil
}

// loadExpectedValue types a raw specification value for the given key:
// numeric keys become decimals, grades accept letter forms, and lists
// become sequences.
func loadExpectedValue(key string, raw any, op Operator, path []string) (Value, string, error) {
	if list, ok := raw.([]any); ok {
		if decimalKeys[key] {
			decs := make([]decimal.Decimal, 0, len(list))
			for _, item := range list {
				d, err := scalarDecimal(key, item)
				if err != nil {
					return Value{}, "", loadErrorf(path, "%v", err)
				}
				decs = append(decs, d)
			}
			return DecimalsValue(decs), fmt.Sprintf("%v", list), nil
		}
		strs := make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return Value{}, "", loadErrorf(path, "expected a string in the list for %q, found %T", key, item)
			}
			strs = append(strs, s)
		}
		return StringsValue(strs), fmt.Sprintf("%v", list), nil
	}

	verbatim := fmt.Sprintf("%v", raw)

	if decimalKeys[key] {
		d, err := scalarDecimal(key, raw)
		if err != nil {
			return Value{}, "", loadErrorf(path, "%v", err)
		}
		return DecimalValue(d), verbatim, nil
	}

	switch v := raw.(type) {
	case string:
		return StringValue(v), verbatim, nil
	case bool:
		return BoolValue(v), verbatim, nil
	case int:
		return IntValue(v), verbatim, nil
	case float64:
		return DecimalValue(decimal.NewFromFloat(v)), verbatim, nil
	}
	return Value{}, "", loadErrorf(path, "unsupported expected value %v (%T) for %q", raw, raw, key)
}

func scalarDecimal(key string, raw any) (decimal.Decimal, error) {
	switch v := raw.(type) {
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case float64:
		return decimal.NewFromFloat(v), nil
	case string:
		if key == "grade" {
			if d, err := decimal.NewFromString(v); err == nil {
				return d, nil
			}
			return student.GradePointsFor(v)
		}
		d, err := decimal.NewFromString(v)
		if err != nil {
			return decimal.Zero, fmt.Errorf("expected a number for %q, found %q", key, v)
		}
		return d, nil
	}
	return decimal.Zero, fmt.Errorf("expected a number for %q, found %T", key, raw)
}
