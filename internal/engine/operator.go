package engine

import "fmt"

// Operator is a comparison between a course attribute (or a reduced
// assertion value) and an expected value.
type Operator int

const (
	OpEqualTo Operator = iota
	OpNotEqualTo
	OpLessThan
	OpLessThanOrEqualTo
	OpGreaterThan
	OpGreaterThanOrEqualTo
	OpIn
	OpNotIn
)

var operatorSymbols = map[string]Operator{
	"$eq":  OpEqualTo,
	"$neq": OpNotEqualTo,
	"$lt":  OpLessThan,
	"$lte": OpLessThanOrEqualTo,
	"$gt":  OpGreaterThan,
	"$gte": OpGreaterThanOrEqualTo,
	"$in":  OpIn,
	"$nin": OpNotIn,
}

var operatorNames = map[Operator]string{
	OpEqualTo:              "EqualTo",
	OpNotEqualTo:           "NotEqualTo",
	OpLessThan:             "LessThan",
	OpLessThanOrEqualTo:    "LessThanOrEqualTo",
	OpGreaterThan:          "GreaterThan",
	OpGreaterThanOrEqualTo: "GreaterThanOrEqualTo",
	OpIn:                   "In",
	OpNotIn:                "NotIn",
}

// IsOperatorSymbol reports whether key is a recognized $-prefixed
// operator in a specification file.
func IsOperatorSymbol(key string) bool {
	_, ok := operatorSymbols[key]
	return ok
}

// ParseOperator maps a specification symbol ($gte, $in, ...) to its
// Operator.
func ParseOperator(symbol string) (Operator, error) {
	op, ok := operatorSymbols[symbol]
	if !ok {
		return 0, fmt.Errorf("unknown operator %q", symbol)
	}
	return op, nil
}

func (op Operator) String() string {
	return operatorNames[op]
}

// Apply evaluates `lhs op rhs`. IN/NOT_IN require rhs to be a sequence;
// the ordered operators require comparable scalars.
func (op Operator) Apply(lhs, rhs Value) bool {
	switch op {
	case OpEqualTo:
		if lhs.IsSequence() {
			return lhs.Contains(rhs)
		}
		return lhs.EqualScalar(rhs)
	case OpNotEqualTo:
		if lhs.IsSequence() {
			return !lhs.Contains(rhs)
		}
		return !lhs.EqualScalar(rhs)
	case OpIn:
		if lhs.IsSequence() {
			for _, s := range lhs.Strs {
				if rhs.Contains(StringValue(s)) {
					return true
				}
			}
			for _, d := range lhs.Decs {
				if rhs.Contains(DecimalValue(d)) {
					return true
				}
			}
			return false
		}
		return rhs.Contains(lhs)
	case OpNotIn:
		return !OpIn.Apply(lhs, rhs)
	case OpLessThan, OpLessThanOrEqualTo, OpGreaterThan, OpGreaterThanOrEqualTo:
		cmp, ok := lhs.Compare(rhs)
		if !ok {
			return false
		}
		switch op {
		case OpLessThan:
			return cmp < 0
		case OpLessThanOrEqualTo:
			return cmp <= 0
		case OpGreaterThan:
			return cmp > 0
		default:
			return cmp >= 0
		}
	}
	return false
}
