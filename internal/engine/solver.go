package engine

import "github.com/shopspring/decimal"

// The solver machinery: deterministic candidate enumeration and the
// partial order used to keep the best-ranked candidate. Candidates are
// produced lazily; enumeration terminates as soon as a candidate reaches
// its rule's max rank.

// errStop is returned by a visitor to end enumeration early
// without failing the audit.
type errStop struct{}

func (errStop) Error() string { return "stop enumeration" }

// stopped strips the errStop sentinel at the top of an enumeration.
func stopped(err error) error {
	if _, ok := err.(errStop); ok {
		return nil
	}
	return err
}

// combinations visits every k-subset of [0, n) in lexicographic order.
// Errors from the visitor, including errStop, propagate to the caller.
func combinations(n, k int, visit func(idx []int) error) error {
	if k < 0 || k > n {
		return nil
	}
	idx := make([]int, k)
	for i := range idx {
		idx[i] = i
	}
	for {
		if err := visit(idx); err != nil {
			return err
		}
		// advance to the next combination
		i := k - 1
		for i >= 0 && idx[i] == n-k+i {
			i--
		}
		if i < 0 {
			return nil
		}
		idx[i]++
		for j := i + 1; j < k; j++ {
			idx[j] = idx[j-1] + 1
		}
	}
}

// candidateScore orders candidates: prefer passing, then the higher
// fractional rank, then the smaller witness set. Ties keep the earlier
// candidate, so enumeration order decides.
type candidateScore struct {
	passing bool
	frac    decimal.Decimal
	size    int
}

func scoreOf(status Status, rank, maxRank decimal.Decimal, size int) candidateScore {
	frac := decimal.Zero
	if maxRank.IsPositive() {
		frac = rank.Div(maxRank)
	}
	return candidateScore{passing: status.Passing(), frac: frac, size: size}
}

func (s candidateScore) betterThan(o candidateScore) bool {
	if s.passing != o.passing {
		return s.passing
	}
	if !s.frac.Equal(o.frac) {
		return s.frac.GreaterThan(o.frac)
	}
	return s.size < o.size
}

// bestTracker holds the best candidate seen so far together with the
// ledger state it produced, so the winner's claims can be reinstated
// after enumeration.
type bestTracker struct {
	result Result
	score  candidateScore
	claims claimSnapshot
	found  bool
}

func (b *bestTracker) consider(ctx *RequirementContext, result Result, score candidateScore) {
	if b.found && !score.betterThan(b.score) {
		return
	}
	b.result = result
	b.score = score
	b.claims = ctx.CheckpointClaims()
	b.found = true
	ctx.noteBestRank(score.frac)
}

// done reports whether enumeration can stop: the best candidate passes
// at full rank, so no later candidate can beat it.
func (b *bestTracker) done() bool {
	if !b.found || !b.score.passing {
		return false
	}
	rank, maxRank := b.result.Rank()
	return rank.Equal(maxRank)
}

// finish reinstates the winning candidate's claims.
func (b *bestTracker) finish(ctx *RequirementContext) {
	if b.found {
		ctx.RestoreClaims(b.claims)
	}
}
