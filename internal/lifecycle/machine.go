package lifecycle

import (
	"slices"

	"github.com/rohzyy/govai/internal/rbac"
)

type edge struct {
	to   Status
	role rbac.Role
}

// edges is the single transition table. Everything that asks "what can
// happen next" reads it.
var edges = map[Status][]edge{
	StatusSubmitted: {
		{StatusAssigned, rbac.RoleAdmin},
		{StatusWithdrawn, rbac.RoleUser},
		{StatusRejected, rbac.RoleAdmin},
	},
	StatusAssigned: {
		{StatusVisited, rbac.RoleOfficer},
		{StatusWithdrawn, rbac.RoleUser},
		{StatusRejected, rbac.RoleAdmin},
	},
	StatusVisited: {
		{StatusInProgress, rbac.RoleOfficer},
		{StatusWithdrawn, rbac.RoleUser},
	},
	StatusInProgress: {
		{StatusResolved, rbac.RoleOfficer},
		{StatusWithdrawn, rbac.RoleUser},
	},
	StatusResolved: {
		{StatusVerified, rbac.RoleUser},
	},
}

// NextAllowedActions lists the statuses role may move a grievance to from
// status, in canonical order.
func NextAllowedActions(status Status, role rbac.Role) []Status {
	out := make([]Status, 0, 3)
	for _, candidate := range edges[status] {
		if candidate.role == role {
			out = append(out, candidate.to)
		}
	}
	slices.SortFunc(out, func(a, b Status) int {
		return slices.Index(canonicalOrder, a) - slices.Index(canonicalOrder, b)
	})
	return out
}

func Allowed(from, to Status, role rbac.Role) bool {
	return slices.Contains(NextAllowedActions(from, role), to)
}

// DeriveCurrentStatus returns the status of the latest event. Ties on
// timestamp go to the event that comes later in the slice. No events means
// the grievance was just submitted.
func DeriveCurrentStatus(events []TimelineEvent) Status {
	if len(events) == 0 {
		return StatusSubmitted
	}
	latest := 0
	for i := 1; i < len(events); i++ {
		if !events[i].Timestamp.Before(events[latest].Timestamp) {
			latest = i
		}
	}
	return events[latest].Status
}
