package engine

import (
	"sort"
	"strings"
	"time"

	"degreeaudit/internal/student"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// RequirementContext is the only mutable structure during an audit. It
// carries the transcript indices, the claim ledger, the multicountable
// policy, and the exception table. Rules are immutable; every branch of
// the solver snapshots and restores the ledger around its candidates.
type RequirementContext struct {
	log   *zap.Logger
	debug bool

	transcript   []*student.CourseInstance
	courseLookup map[string]*student.CourseInstance
	clbidLookup  map[string]*student.CourseInstance

	areas              []student.AreaPointer
	musicPerformances  []student.MusicPerformance
	musicProficiencies student.MusicProficiencySet

	multicountable [][]*SingleClause
	claims         map[string][]*Claim
	exceptions     map[string][]*RuleException
	requirements   map[string]*Requirement

	iterations   int
	iterLimit    int
	deadline     time.Time
	onTick       func(iterations int)
	bestRankSeen decimal.Decimal
}

// NewContext builds a context for one audit.
func NewContext(s *student.Student, multicountable [][]*SingleClause, exceptions []*RuleException, log *zap.Logger) *RequirementContext {
	if log == nil {
		log = zap.NewNop()
	}

	ctx := &RequirementContext{
		log:   log,
		debug: log.Core().Enabled(zapcore.DebugLevel),

		transcript:         s.Courses,
		courseLookup:       make(map[string]*student.CourseInstance, len(s.Courses)*2),
		clbidLookup:        make(map[string]*student.CourseInstance, len(s.Courses)),
		areas:              s.Areas,
		musicPerformances:  s.MusicPerformances,
		musicProficiencies: s.MusicProficiencies,
		multicountable:     multicountable,
		claims:             make(map[string][]*Claim),
		exceptions:         make(map[string][]*RuleException),
		requirements:       make(map[string]*Requirement),
	}

	for _, c := range s.Courses {
		ctx.courseLookup[c.Course] = c
		ctx.courseLookup[c.Identity()] = c
		ctx.clbidLookup[c.Clbid] = c
	}

	for _, exc := range exceptions {
		key := pathKey(exc.Path)
		ctx.exceptions[key] = append(ctx.exceptions[key], exc)
	}

	return ctx
}

func pathKey(path []string) string {
	return strings.Join(path, "\x00")
}

// Transcript returns every course on record, including in-progress ones.
func (ctx *RequirementContext) Transcript() []*student.CourseInstance {
	return ctx.transcript
}

// CompletedCourses returns the transcript filtered to finished entries.
func (ctx *RequirementContext) CompletedCourses() []*student.CourseInstance {
	var out []*student.CourseInstance
	for _, c := range ctx.transcript {
		if !c.InProgress {
			out = append(out, c)
		}
	}
	return out
}

func (ctx *RequirementContext) Areas() []student.AreaPointer { return ctx.areas }

func (ctx *RequirementContext) MusicPerformances() []student.MusicPerformance {
	return ctx.musicPerformances
}

func (ctx *RequirementContext) MusicProficiencies() student.MusicProficiencySet {
	return ctx.musicProficiencies
}

// FindCourse resolves a course string ("BIO 101", "BIO 243.L") against
// the transcript.
func (ctx *RequirementContext) FindCourse(course string) *student.CourseInstance {
	return ctx.courseLookup[course]
}

// FindCourseByClbid resolves an opaque course-taking identifier.
func (ctx *RequirementContext) FindCourseByClbid(clbid string) *student.CourseInstance {
	return ctx.clbidLookup[clbid]
}

// ForcedCourseByClbid resolves a clbid an exception depends on; a missing
// one is a ContextError and aborts the audit.
func (ctx *RequirementContext) ForcedCourseByClbid(clbid string) (*student.CourseInstance, error) {
	c := ctx.clbidLookup[clbid]
	if c == nil {
		return nil, &ContextError{Msg: "clbid " + clbid + " is referenced by an exception but is not in the transcript"}
	}
	return c, nil
}

func (ctx *RequirementContext) HasCourse(course string) bool {
	return ctx.FindCourse(course) != nil
}

func (ctx *RequirementContext) HasIPCourse(course string) bool {
	c := ctx.FindCourse(course)
	return c != nil && c.InProgress
}

func (ctx *RequirementContext) HasCompletedCourse(course string) bool {
	c := ctx.FindCourse(course)
	return c != nil && !c.InProgress
}

func (ctx *RequirementContext) HasDeclaredAreaCode(code string) bool {
	for _, a := range ctx.areas {
		if a.Code == code {
			return true
		}
	}
	return false
}

// HasClaim reports whether any claim has been admitted for the clbid.
func (ctx *RequirementContext) HasClaim(clbid string) bool {
	return len(ctx.claims[clbid]) > 0
}

// ClaimedClbids lists every clbid with at least one admitted claim, in
// sorted order.
func (ctx *RequirementContext) ClaimedClbids() []string {
	out := make([]string, 0, len(ctx.claims))
	for clbid, claims := range ctx.claims {
		if len(claims) > 0 {
			out = append(out, clbid)
		}
	}
	sort.Strings(out)
	return out
}

// exception lookups

func (ctx *RequirementContext) GetInsertExceptions(path []string) []*RuleException {
	var out []*RuleException
	for _, exc := range ctx.exceptions[pathKey(path)] {
		if exc.Type == ExceptionInsert {
			out = append(out, exc)
		}
	}
	return out
}

func (ctx *RequirementContext) GetForceExceptions(path []string) []*RuleException {
	var out []*RuleException
	for _, exc := range ctx.exceptions[pathKey(path)] {
		if exc.Type == ExceptionForceCourse {
			out = append(out, exc)
		}
	}
	return out
}

func (ctx *RequirementContext) GetWaiveException(path []string) *RuleException {
	for _, exc := range ctx.exceptions[pathKey(path)] {
		if exc.Type == ExceptionWaive {
			return exc
		}
	}
	return nil
}

func (ctx *RequirementContext) GetValueException(path []string) *RuleException {
	for _, exc := range ctx.exceptions[pathKey(path)] {
		if exc.Type == ExceptionValue {
			return exc
		}
	}
	return nil
}

func (ctx *RequirementContext) GetCourseOverride(path []string) *RuleException {
	for _, exc := range ctx.exceptions[pathKey(path)] {
		if exc.Type == ExceptionCourseOverride {
			return exc
		}
	}
	return nil
}

// requirement table, for Reference rules

func (ctx *RequirementContext) registerRequirement(r *Requirement) {
	ctx.requirements[r.Name] = r
}

func (ctx *RequirementContext) lookupRequirement(name string) *Requirement {
	return ctx.requirements[name]
}

// claim ledger

type claimSnapshot map[string][]*Claim

// CheckpointClaims copies the ledger so a solver branch can be unwound.
func (ctx *RequirementContext) CheckpointClaims() claimSnapshot {
	snap := make(claimSnapshot, len(ctx.claims))
	for clbid, claims := range ctx.claims {
		snap[clbid] = append([]*Claim(nil), claims...)
	}
	return snap
}

// RestoreClaims replaces the ledger with a previous checkpoint.
func (ctx *RequirementContext) RestoreClaims(snap claimSnapshot) {
	ctx.claims = make(map[string][]*Claim, len(snap))
	for clbid, claims := range snap {
		ctx.claims[clbid] = append([]*Claim(nil), claims...)
	}
}

// ResetClaims empties the ledger.
func (ctx *RequirementContext) ResetClaims() {
	ctx.claims = make(map[string][]*Claim)
}

// FreshClaims empties the ledger for a nested evaluation and returns the
// function that restores the previous state. Callers must invoke the
// restore function on every exit path.
func (ctx *RequirementContext) FreshClaims() func() {
	saved := ctx.claims
	ctx.claims = make(map[string][]*Claim)
	return func() { ctx.claims = saved }
}

// MakeClaim proposes using course to satisfy the rule at path, under the
// given clause. It either admits the claim into the ledger or rejects it
// with the set of prior claims it conflicts with.
//
// This is the audit's hot path; all log construction is skipped unless
// debug logging is enabled.
func (ctx *RequirementContext) MakeClaim(course *student.CourseInstance, path []string, clause Clause, allowClaimed bool) *ClaimAttempt {
	claim := &Claim{
		Crsid:        course.Crsid,
		Clbid:        course.Clbid,
		ClaimantPath: path,
		Value:        clause,
	}

	// an allow_claimed claimant shares the course without taking
	// ownership; nothing is recorded
	if allowClaimed {
		if ctx.debug {
			ctx.log.Debug("claim allowed without recording", zap.String("clbid", course.Clbid))
		}
		return &ClaimAttempt{Claim: claim}
	}

	prior := ctx.claims[course.Clbid]
	if len(prior) == 0 {
		ctx.claims[course.Clbid] = append(ctx.claims[course.Clbid], claim)
		if ctx.debug {
			ctx.log.Debug("no prior claims", zap.String("clbid", course.Clbid))
		}
		return &ClaimAttempt{Claim: claim}
	}

	// multicountable sets describe the ways a course may be counted
	// more than once; without an applicable one, a second claim fails
	var applicable [][]*SingleClause
	for _, clauseset := range ctx.multicountable {
		for _, c := range clauseset {
			if c.IsSubset(clause) {
				applicable = append(applicable, clauseset)
				break
			}
		}
	}

	if len(applicable) == 0 {
		if ctx.debug {
			ctx.log.Debug("claim conflicts; no multicountable clauseset applies",
				zap.String("clbid", course.Clbid), zap.Int("prior", len(prior)))
		}
		return &ClaimAttempt{Claim: claim, ConflictWith: append([]*Claim(nil), prior...), Failed: true}
	}

	// the chosen clauseset must cover every prior claim and the new one
	toCover := make([]Clause, 0, len(prior)+1)
	for _, p := range prior {
		toCover = append(toCover, p.Value)
	}
	toCover = append(toCover, clause)

	var chosen []*SingleClause
	for _, clauseset := range applicable {
		covered := true
		for _, target := range toCover {
			found := false
			for _, c := range clauseset {
				if c.IsSubset(target) {
					found = true
					break
				}
			}
			if !found {
				covered = false
				break
			}
		}
		if covered {
			chosen = clauseset
			break
		}
	}

	if chosen == nil {
		if ctx.debug {
			ctx.log.Debug("claim conflicts; no clauseset covers all claims",
				zap.String("clbid", course.Clbid), zap.Int("prior", len(prior)))
		}
		return &ClaimAttempt{Claim: claim, ConflictWith: append([]*Claim(nil), prior...), Failed: true}
	}

	// a clauseset has as many slots as clauses; refuse once every slot
	// already implies a prior claim
	available := 0
	for _, c := range chosen {
		used := false
		for _, p := range prior {
			if c.IsSubset(p.Value) {
				used = true
				break
			}
		}
		if !used {
			available++
		}
	}
	if available == 0 {
		if ctx.debug {
			ctx.log.Debug("claim conflicts; clauseset slots exhausted", zap.String("clbid", course.Clbid))
		}
		return &ClaimAttempt{Claim: claim, ConflictWith: append([]*Claim(nil), prior...), Failed: true}
	}

	ctx.claims[course.Clbid] = append(ctx.claims[course.Clbid], claim)
	if ctx.debug {
		ctx.log.Debug("claim admitted under multicountable clauseset", zap.String("clbid", course.Clbid))
	}
	return &ClaimAttempt{Claim: claim}
}

// solver bookkeeping

// SetBudget installs the optional deadline and iteration cap.
func (ctx *RequirementContext) SetBudget(deadline time.Time, iterLimit int, onTick func(int)) {
	ctx.deadline = deadline
	ctx.iterLimit = iterLimit
	ctx.onTick = onTick
}

func (ctx *RequirementContext) Iterations() int { return ctx.iterations }

// BestRankSeen is the highest fractional candidate rank any solver
// branch has reached so far; progress reporting reads it.
func (ctx *RequirementContext) BestRankSeen() decimal.Decimal { return ctx.bestRankSeen }

func (ctx *RequirementContext) noteBestRank(frac decimal.Decimal) {
	if frac.GreaterThan(ctx.bestRankSeen) {
		ctx.bestRankSeen = frac
	}
}

// tick counts one candidate evaluation and enforces the budget.
func (ctx *RequirementContext) tick() error {
	ctx.iterations++
	if ctx.onTick != nil {
		ctx.onTick(ctx.iterations)
	}
	if ctx.iterLimit > 0 && ctx.iterations > ctx.iterLimit {
		return ErrAuditHalted
	}
	if !ctx.deadline.IsZero() && time.Now().After(ctx.deadline) {
		return ErrAuditHalted
	}
	return nil
}
