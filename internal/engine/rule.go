package engine

import "github.com/shopspring/decimal"

// Rule is one node of the immutable requirement tree. Auditing a rule
// never throws for domain-level failure; an unsatisfiable rule returns a
// result with a non-passing status. Errors are reserved for malformed
// input and broken invariants.
type Rule interface {
	Type() string
	Path() []string
	// MaxRank is the rank a fully satisfied instance of this rule earns.
	MaxRank() decimal.Decimal
	Audit(ctx *RequirementContext) (Result, error)
	ToDict() map[string]any
}

// QuerySourceType selects the record set a query draws from.
type QuerySourceType string

const (
	SourceCourses           QuerySourceType = "courses"
	SourceAreas             QuerySourceType = "areas"
	SourceMusicPerformances QuerySourceType = "music performances"
)

// RepeatMode controls whether retakes of the same catalog course are all
// visible to a query or only the earliest one.
type RepeatMode string

const (
	RepeatFirst RepeatMode = "first"
	RepeatAll   RepeatMode = "all"
)
