package engine

import "strings"

// Claim records that a particular course-taking event is being used to
// satisfy a particular rule. Two claims are equal iff crsid, clbid,
// claimant path, and clause all match.
type Claim struct {
	Crsid        string
	Clbid        string
	ClaimantPath []string
	Value        Clause
}

func (c *Claim) key() string {
	return c.Crsid + "\x00" + c.Clbid + "\x00" + strings.Join(c.ClaimantPath, "\x00") + "\x00" + c.Value.String()
}

func (c *Claim) Equal(o *Claim) bool {
	return c.key() == o.key()
}

func (c *Claim) ToDict() map[string]any {
	return map[string]any{
		"crsid":         c.Crsid,
		"clbid":         c.Clbid,
		"claimant_path": append([]string(nil), c.ClaimantPath...),
		"value":         c.Value.ToDict(),
	}
}

// ClaimAttempt is the outcome of proposing a claim to the ledger.
type ClaimAttempt struct {
	Claim        *Claim
	ConflictWith []*Claim
	Failed       bool
}

func (a *ClaimAttempt) ToDict() map[string]any {
	conflicts := make([]map[string]any, len(a.ConflictWith))
	for i, c := range a.ConflictWith {
		conflicts[i] = c.ToDict()
	}
	return map[string]any{
		"claim":         a.Claim.ToDict(),
		"conflict_with": conflicts,
		"failed":        a.Failed,
	}
}
