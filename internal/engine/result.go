package engine

import (
	"sort"

	"degreeaudit/internal/student"
	"github.com/shopspring/decimal"
)

// Result mirrors the rule tree with resolution data attached: admitted
// claims, evaluated assertions, chosen children, and a rank pair.
type Result interface {
	Type() string
	Path() []string
	Status() Status
	// Rank returns (rank, max_rank); rank never exceeds max_rank.
	Rank() (decimal.Decimal, decimal.Decimal)
	OK() bool
	// Claims lists the successful claim attempts beneath this result.
	Claims() []*ClaimAttempt
	ToDict() map[string]any
}

var one = decimal.NewFromInt(1)

func baseDict(r Result) map[string]any {
	rank, maxRank := r.Rank()
	return map[string]any{
		"type":     r.Type(),
		"path":     append([]string(nil), r.Path()...),
		"status":   string(r.Status()),
		"rank":     rank.String(),
		"max_rank": maxRank.String(),
	}
}

func claimDicts(attempts []*ClaimAttempt) []map[string]any {
	out := make([]map[string]any, len(attempts))
	for i, a := range attempts {
		out[i] = a.ToDict()
	}
	return out
}

// WaivedResult replaces any rule's outcome when a waive exception is
// present at its path.
type WaivedResult struct {
	Rule Rule
}

func (r *WaivedResult) Type() string    { return r.Rule.Type() }
func (r *WaivedResult) Path() []string  { return r.Rule.Path() }
func (r *WaivedResult) Status() Status  { return StatusWaived }
func (r *WaivedResult) OK() bool        { return true }
func (r *WaivedResult) Claims() []*ClaimAttempt { return nil }

func (r *WaivedResult) Rank() (decimal.Decimal, decimal.Decimal) {
	return one, one
}

func (r *WaivedResult) ToDict() map[string]any {
	d := baseDict(r)
	d["overridden"] = true
	return d
}

// CourseResult is a resolved course rule.
type CourseResult struct {
	Rule       *CourseRule
	Matched    *student.CourseInstance
	Claim      *ClaimAttempt
	Overridden bool
	Forced     bool
}

func (r *CourseResult) Type() string   { return "course" }
func (r *CourseResult) Path() []string { return r.Rule.Path() }

func (r *CourseResult) Status() Status {
	if r.Overridden {
		return StatusDone
	}
	if r.Matched == nil || r.Claim == nil || r.Claim.Failed {
		return StatusEmpty
	}
	switch {
	case r.Matched.InProgressInFuture:
		return StatusPendingRegistered
	case r.Matched.InProgressThisTerm || r.Matched.Incomplete:
		return StatusPendingCurrent
	}
	return StatusDone
}

func (r *CourseResult) OK() bool { return r.Status().Passing() }

func (r *CourseResult) Rank() (decimal.Decimal, decimal.Decimal) {
	if r.Status().Passing() {
		return one, one
	}
	return decimal.Zero, one
}

func (r *CourseResult) Claims() []*ClaimAttempt {
	if r.Claim != nil && !r.Claim.Failed {
		return []*ClaimAttempt{r.Claim}
	}
	return nil
}

func (r *CourseResult) ToDict() map[string]any {
	d := baseDict(r)
	d["course"] = r.Rule.Course
	d["hidden"] = r.Rule.Hidden
	d["allow_claimed"] = r.Rule.AllowClaimed
	d["overridden"] = r.Overridden
	d["forced"] = r.Forced
	d["claims"] = claimDicts(r.Claims())
	if r.Rule.Grade != nil {
		d["grade"] = r.Rule.Grade.String()
	} else {
		d["grade"] = nil
	}
	return d
}

// QueryResult is a resolved query rule: the matched item set, the claim
// attempts made for it, and the audited assertions.
type QueryResult struct {
	Rule           *QueryRule
	Matched        []*student.CourseInstance
	SuccessfulClaims []*ClaimAttempt
	FailedClaims   []*ClaimAttempt
	Assertions     []*AssertionResult
	InsertedClbids []string
}

func (r *QueryResult) Type() string   { return "query" }
func (r *QueryResult) Path() []string { return r.Rule.Path() }

func (r *QueryResult) Status() Status {
	if len(r.Assertions) == 0 {
		if len(r.Matched) > 0 {
			return StatusDone
		}
		return StatusEmpty
	}
	statuses := make([]Status, len(r.Assertions))
	for i, a := range r.Assertions {
		statuses[i] = a.Status
	}
	return combineStatuses(statuses)
}

func (r *QueryResult) OK() bool { return r.Status().Passing() }

func (r *QueryResult) Rank() (decimal.Decimal, decimal.Decimal) {
	rank := decimal.Zero
	maxRank := decimal.Zero
	for _, a := range r.Assertions {
		ar, am := a.Rank()
		rank = rank.Add(ar)
		maxRank = maxRank.Add(am)
	}
	if maxRank.IsZero() {
		maxRank = one
		if r.Status().Passing() {
			rank = one
		}
	}
	return rank, maxRank
}

func (r *QueryResult) Claims() []*ClaimAttempt {
	return append([]*ClaimAttempt(nil), r.SuccessfulClaims...)
}

func (r *QueryResult) ToDict() map[string]any {
	d := baseDict(r)
	d["source"] = "student"
	d["source_type"] = string(r.Rule.SourceType)
	d["source_repeats"] = string(r.Rule.SourceRepeats)
	d["load_potentials"] = r.Rule.LoadPotentials
	d["limit"] = r.Rule.Limit.ToDict()
	if r.Rule.Where != nil {
		d["where"] = r.Rule.Where.ToDict()
	} else {
		d["where"] = nil
	}
	assertions := make([]map[string]any, len(r.Assertions))
	for i, a := range r.Assertions {
		assertions[i] = a.ToDict()
	}
	d["assertions"] = assertions
	d["claims"] = claimDicts(r.SuccessfulClaims)
	d["failures"] = claimDicts(r.FailedClaims)
	d["inserted"] = sortedCopy(r.InsertedClbids)
	return d
}

// CountResult is a resolved count rule: the audited child subset and any
// attached audit assertions.
type CountResult struct {
	Rule          *CountRule
	ChildResults  []Result
	ChosenIndices []int
	Audits        []*AssertionResult
}

func (r *CountResult) Type() string   { return "count" }
func (r *CountResult) Path() []string { return r.Rule.Path() }

func (r *CountResult) passingChildren() int {
	n := 0
	for _, c := range r.ChildResults {
		if c.Status().Passing() {
			n++
		}
	}
	return n
}

func (r *CountResult) auditsPass() bool {
	for _, a := range r.Audits {
		if !a.Status.Passing() {
			return false
		}
	}
	return true
}

func (r *CountResult) Status() Status {
	if r.passingChildren() >= r.Rule.Count && r.auditsPass() {
		statuses := make([]Status, 0, len(r.ChildResults)+len(r.Audits))
		for _, c := range r.ChildResults {
			if c.Status().Passing() {
				statuses = append(statuses, c.Status())
			}
		}
		for _, a := range r.Audits {
			statuses = append(statuses, a.Status)
		}
		return combineStatuses(statuses)
	}

	rank, _ := r.Rank()
	if rank.IsPositive() {
		return StatusNeedsMoreItems
	}
	return StatusEmpty
}

func (r *CountResult) OK() bool { return r.Status().Passing() }

func (r *CountResult) Rank() (decimal.Decimal, decimal.Decimal) {
	// only the Count best children score, mirroring MaxRank's top-Count
	// sum; a surplus of partial children must not add up to max_rank.
	// Equality then forces Count children at their own max, each of
	// which is passing, so rank = max_rank implies a passing status.
	childRanks := make([]decimal.Decimal, 0, len(r.ChildResults))
	for _, c := range r.ChildResults {
		cr, _ := c.Rank()
		childRanks = append(childRanks, cr)
	}
	sort.Slice(childRanks, func(i, j int) bool { return childRanks[i].GreaterThan(childRanks[j]) })

	limit := r.Rule.Count
	if limit > len(childRanks) {
		limit = len(childRanks)
	}
	rank := decimal.Zero
	for _, cr := range childRanks[:limit] {
		rank = rank.Add(cr)
	}
	for _, a := range r.Audits {
		ar, _ := a.Rank()
		rank = rank.Add(ar)
	}
	return rank, r.Rule.MaxRank()
}

func (r *CountResult) Claims() []*ClaimAttempt {
	var out []*ClaimAttempt
	for _, c := range r.ChildResults {
		out = append(out, c.Claims()...)
	}
	return out
}

func (r *CountResult) ToDict() map[string]any {
	d := baseDict(r)
	d["count"] = r.Rule.Count
	children := make([]map[string]any, len(r.ChildResults))
	for i, c := range r.ChildResults {
		children[i] = c.ToDict()
	}
	d["items"] = children
	d["chosen"] = append([]int{}, r.ChosenIndices...)
	audits := make([]map[string]any, len(r.Audits))
	for i, a := range r.Audits {
		audits[i] = a.ToDict()
	}
	d["audit"] = audits
	return d
}

// RequirementResult wraps a named requirement's body result.
type RequirementResult struct {
	Rule    *Requirement
	Child   Result // nil when audited or empty
	Audited bool
}

func (r *RequirementResult) Type() string   { return "requirement" }
func (r *RequirementResult) Path() []string { return r.Rule.Path() }

func (r *RequirementResult) Status() Status {
	if r.Audited {
		return StatusPendingApproval
	}
	if r.Child == nil {
		return StatusEmpty
	}
	return r.Child.Status()
}

func (r *RequirementResult) OK() bool { return r.Status().Passing() }

func (r *RequirementResult) Rank() (decimal.Decimal, decimal.Decimal) {
	if r.Audited {
		return one, one
	}
	if r.Child == nil {
		return decimal.Zero, one
	}

	childRank, childMax := r.Child.Rank()
	// a passing requirement earns a completion boost on top of its body
	if r.Status().Passing() {
		return childRank.Add(one), childMax.Add(one)
	}
	return childRank, childMax.Add(one)
}

func (r *RequirementResult) Claims() []*ClaimAttempt {
	if r.Audited || r.Child == nil {
		return nil
	}
	return r.Child.Claims()
}

func (r *RequirementResult) ToDict() map[string]any {
	d := baseDict(r)
	d["name"] = r.Rule.Name
	d["message"] = r.Rule.Message
	d["is_audited"] = r.Rule.IsAudited
	d["contract"] = r.Rule.IsContract
	if r.Child != nil {
		d["result"] = r.Child.ToDict()
	} else {
		d["result"] = nil
	}
	return d
}
