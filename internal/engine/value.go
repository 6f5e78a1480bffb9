package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// ValueKind discriminates the typed values clauses compare against.
type ValueKind int

const (
	ValueString ValueKind = iota
	ValueDecimal
	ValueBool
	ValueStrings
	ValueDecimals
)

// Value is a typed scalar or sequence drawn from a course attribute or a
// specification file. Sequences are used by IN/NOT_IN and by set-valued
// attributes such as a course's attribute list.
type Value struct {
	Kind ValueKind
	Str  string
	Dec  decimal.Decimal
	Bool bool
	Strs []string
	Decs []decimal.Decimal
}

func StringValue(s string) Value        { return Value{Kind: ValueString, Str: s} }
func DecimalValue(d decimal.Decimal) Value { return Value{Kind: ValueDecimal, Dec: d} }
func IntValue(i int) Value              { return Value{Kind: ValueDecimal, Dec: decimal.NewFromInt(int64(i))} }
func BoolValue(b bool) Value            { return Value{Kind: ValueBool, Bool: b} }
func StringsValue(ss []string) Value    { return Value{Kind: ValueStrings, Strs: ss} }
func DecimalsValue(ds []decimal.Decimal) Value { return Value{Kind: ValueDecimals, Decs: ds} }

func (v Value) IsSequence() bool {
	return v.Kind == ValueStrings || v.Kind == ValueDecimals
}

// EqualScalar compares two scalar values of compatible kinds.
func (v Value) EqualScalar(o Value) bool {
	switch {
	case v.Kind == ValueString && o.Kind == ValueString:
		return v.Str == o.Str
	case v.Kind == ValueDecimal && o.Kind == ValueDecimal:
		return v.Dec.Equal(o.Dec)
	case v.Kind == ValueBool && o.Kind == ValueBool:
		return v.Bool == o.Bool
	}
	return false
}

// Compare orders two scalars. The second return is false when the kinds
// are unordered with respect to each other.
func (v Value) Compare(o Value) (int, bool) {
	switch {
	case v.Kind == ValueDecimal && o.Kind == ValueDecimal:
		return v.Dec.Cmp(o.Dec), true
	case v.Kind == ValueString && o.Kind == ValueString:
		return strings.Compare(v.Str, o.Str), true
	}
	return 0, false
}

// Contains reports whether sequence v has a member equal to scalar o.
func (v Value) Contains(o Value) bool {
	switch v.Kind {
	case ValueStrings:
		for _, s := range v.Strs {
			if StringValue(s).EqualScalar(o) {
				return true
			}
		}
	case ValueDecimals:
		for _, d := range v.Decs {
			if DecimalValue(d).EqualScalar(o) {
				return true
			}
		}
	}
	return false
}

// SubsetOf reports whether every member of sequence v is a member of
// sequence o.
func (v Value) SubsetOf(o Value) bool {
	switch v.Kind {
	case ValueStrings:
		for _, s := range v.Strs {
			if !o.Contains(StringValue(s)) {
				return false
			}
		}
		return true
	case ValueDecimals:
		for _, d := range v.Decs {
			if !o.Contains(DecimalValue(d)) {
				return false
			}
		}
		return true
	}
	return false
}

// String renders the value canonically; sequence members are sorted so
// the rendering is stable regardless of input order.
func (v Value) String() string {
	switch v.Kind {
	case ValueString:
		return v.Str
	case ValueDecimal:
		return v.Dec.String()
	case ValueBool:
		return fmt.Sprintf("%t", v.Bool)
	case ValueStrings:
		sorted := append([]string(nil), v.Strs...)
		sort.Strings(sorted)
		return "[" + strings.Join(sorted, ",") + "]"
	case ValueDecimals:
		parts := make([]string, len(v.Decs))
		for i, d := range v.Decs {
			parts[i] = d.String()
		}
		sort.Strings(parts)
		return "[" + strings.Join(parts, ",") + "]"
	}
	return ""
}

// JSONValue renders the value for result serialization.
func (v Value) JSONValue() any {
	switch v.Kind {
	case ValueString:
		return v.Str
	case ValueDecimal:
		return v.Dec.String()
	case ValueBool:
		return v.Bool
	case ValueStrings:
		return append([]string(nil), v.Strs...)
	case ValueDecimals:
		parts := make([]string, len(v.Decs))
		for i, d := range v.Decs {
			parts[i] = d.String()
		}
		return parts
	}
	return nil
}
