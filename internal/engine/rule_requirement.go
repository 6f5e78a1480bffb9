package engine

import "github.com/shopspring/decimal"

// Requirement is a named wrapper around a body rule. An audited
// requirement ("department will sign off") is never evaluated; it sits
// in PendingApproval until a human clears it.
type Requirement struct {
	Name       string
	Message    string
	Result     Rule // optional
	IsAudited  bool
	IsContract bool
	InGPA      bool
	Disjoint   *bool

	path []string
}

func (r *Requirement) Type() string   { return "requirement" }
func (r *Requirement) Path() []string { return r.path }

func (r *Requirement) MaxRank() decimal.Decimal {
	if r.IsAudited || r.Result == nil {
		return one
	}
	return r.Result.MaxRank().Add(one)
}

func (r *Requirement) ToDict() map[string]any {
	d := map[string]any{
		"type":       "requirement",
		"path":       append([]string(nil), r.path...),
		"name":       r.Name,
		"message":    r.Message,
		"is_audited": r.IsAudited,
		"contract":   r.IsContract,
		"in_gpa":     r.InGPA,
	}
	if r.Result != nil {
		d["result"] = r.Result.ToDict()
	} else {
		d["result"] = nil
	}
	return d
}

func (r *Requirement) Audit(ctx *RequirementContext) (Result, error) {
	if ctx.GetWaiveException(r.path) != nil {
		return &WaivedResult{Rule: r}, nil
	}
	if r.IsAudited {
		return &RequirementResult{Rule: r, Audited: true}, nil
	}
	if r.Result == nil {
		return &RequirementResult{Rule: r}, nil
	}

	child, err := r.Result.Audit(ctx)
	if err != nil {
		return nil, err
	}
	return &RequirementResult{Rule: r, Child: child}, nil
}

// ReferenceRule points at a sibling requirement by name. Auditing the
// reference audits the target; the reference does not own the result.
type ReferenceRule struct {
	RequirementName string
	Target          *Requirement

	path []string
}

func (r *ReferenceRule) Type() string   { return "reference" }
func (r *ReferenceRule) Path() []string { return r.path }

func (r *ReferenceRule) MaxRank() decimal.Decimal {
	return r.Target.MaxRank()
}

func (r *ReferenceRule) ToDict() map[string]any {
	return map[string]any{
		"type":        "reference",
		"path":        append([]string(nil), r.path...),
		"requirement": r.RequirementName,
	}
}

func (r *ReferenceRule) Audit(ctx *RequirementContext) (Result, error) {
	return r.Target.Audit(ctx)
}
