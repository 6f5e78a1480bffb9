// Package engine implements the requirement evaluation core: the rule
// tree, clause and predicate matching, claim arbitration, and the solver
// that searches the space of course-to-rule assignments for the
// best-scoring complete one.
package engine

// Status is the resolution state of a rule, assertion, or whole audit.
type Status string

const (
	StatusEmpty             Status = "empty"
	StatusNeedsMoreItems    Status = "needs-more-items"
	StatusPendingCurrent    Status = "pending-current"
	StatusPendingRegistered Status = "pending-registered"
	StatusPendingApproval   Status = "pending-approval"
	StatusDone              Status = "done"
	StatusWaived            Status = "waived"
	StatusFailedInvariant   Status = "failed-invariant"
)

// PassingStatuses are the states that count toward satisfying a parent.
var PassingStatuses = map[Status]bool{
	StatusDone:              true,
	StatusWaived:            true,
	StatusPendingCurrent:    true,
	StatusPendingRegistered: true,
	StatusPendingApproval:   true,
}

func (s Status) Passing() bool {
	return PassingStatuses[s]
}

// combineStatuses folds child statuses into a parent status. All children
// must pass for the parent to pass; a pending child keeps the parent
// pending rather than done.
func combineStatuses(statuses []Status) Status {
	if len(statuses) == 0 {
		return StatusEmpty
	}

	allPassing := true
	anyProgress := false
	for _, st := range statuses {
		if st == StatusFailedInvariant {
			return StatusFailedInvariant
		}
		if !st.Passing() {
			allPassing = false
		}
		if st != StatusEmpty {
			anyProgress = true
		}
	}

	if allPassing {
		for _, pending := range []Status{StatusPendingRegistered, StatusPendingCurrent, StatusPendingApproval} {
			for _, st := range statuses {
				if st == pending {
					return pending
				}
			}
		}
		return StatusDone
	}

	if anyProgress {
		return StatusNeedsMoreItems
	}
	return StatusEmpty
}
