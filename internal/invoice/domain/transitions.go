package domain

// TransitionGraph decides which status transitions an update may apply.
// The permissive graph accepts any enumerated target regardless of the
// current status, which keeps manual corrections possible. The strict
// graph restricts updates to forward lifecycle moves.
type TransitionGraph struct {
	strict bool
	edges  map[Status][]Status
}

// PermissiveTransitions accepts every enumerated target.
func PermissiveTransitions() TransitionGraph {
	return TransitionGraph{}
}

// StrictTransitions restricts moves to the forward lifecycle:
// draft→sent, sent→paid, sent→overdue, overdue→paid.
func StrictTransitions() TransitionGraph {
	return TransitionGraph{
		strict: true,
		edges: map[Status][]Status{
			StatusDraft:   {StatusSent},
			StatusSent:    {StatusPaid, StatusOverdue},
			StatusOverdue: {StatusPaid},
		},
	}
}

// Allowed reports whether the transition from→to may be applied.
// A same-status update is always allowed so repeated requests stay
// idempotent.
func (g TransitionGraph) Allowed(from, to Status) bool {
	if from == to {
		return true
	}
	if !g.strict {
		return true
	}
	for _, next := range g.edges[from] {
		if next == to {
			return true
		}
	}
	return false
}
