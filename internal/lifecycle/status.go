// Package lifecycle is the grievance state machine: allowed transitions,
// SLA deadlines and breach derivation, and the engine that records
// transitions and assignments.
package lifecycle

import "strings"

type Status string

const (
	StatusSubmitted  Status = "SUBMITTED"
	StatusAssigned   Status = "ASSIGNED"
	StatusVisited    Status = "VISITED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusResolved   Status = "RESOLVED"
	StatusVerified   Status = "VERIFIED"
	StatusWithdrawn  Status = "WITHDRAWN"
	StatusRejected   Status = "REJECTED"
)

// canonicalOrder is the order statuses are listed in wherever more than one
// is returned.
var canonicalOrder = []Status{
	StatusSubmitted,
	StatusAssigned,
	StatusVisited,
	StatusInProgress,
	StatusResolved,
	StatusVerified,
	StatusWithdrawn,
	StatusRejected,
}

var statusLabels = map[Status]string{
	StatusSubmitted:  "Complaint Submitted",
	StatusAssigned:   "Assigned to Officer",
	StatusVisited:    "Officer Visited Location",
	StatusInProgress: "Work in Progress",
	StatusResolved:   "Resolved",
	StatusVerified:   "Verified by Citizen",
	StatusWithdrawn:  "Withdrawn by Citizen",
	StatusRejected:   "Rejected",
}

var legacyStatuses = map[string]Status{
	"submitted":                StatusSubmitted,
	"complaint submitted":      StatusSubmitted,
	"new":                      StatusSubmitted,
	"pending":                  StatusSubmitted,
	"assigned":                 StatusAssigned,
	"assigned to officer":      StatusAssigned,
	"visited":                  StatusVisited,
	"officer visited location": StatusVisited,
	"in progress":              StatusInProgress,
	"work in progress":         StatusInProgress,
	"resolved":                 StatusResolved,
	"work completed":           StatusResolved,
	"verified":                 StatusVerified,
	"verified by citizen":      StatusVerified,
	"closed":                   StatusVerified,
	"closed by citizen":        StatusVerified,
	"withdrawn":                StatusWithdrawn,
	"withdrawn by citizen":     StatusWithdrawn,
	"rejected":                 StatusRejected,
}

// NormalizeStatus maps canonical codes and the human labels older rows were
// written with onto a Status.
func NormalizeStatus(raw string) (Status, bool) {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.NewReplacer("_", " ", "-", " ").Replace(key)
	key = strings.Join(strings.Fields(key), " ")
	status, ok := legacyStatuses[key]
	return status, ok
}

func Label(status Status) string {
	if label, ok := statusLabels[status]; ok {
		return label
	}
	return string(status)
}

// IsTerminal reports whether no further transition can leave status.
func IsTerminal(status Status) bool {
	switch status {
	case StatusVerified, StatusWithdrawn, StatusRejected:
		return true
	default:
		return false
	}
}

// isClosed covers the statuses that stop the SLA clock.
func isClosed(status Status) bool {
	return status == StatusResolved || IsTerminal(status)
}

type Priority string

const (
	PriorityLow      Priority = "Low"
	PriorityMedium   Priority = "Medium"
	PriorityHigh     Priority = "High"
	PriorityCritical Priority = "Critical"
)

var priorityRank = map[Priority]int{
	PriorityLow:      1,
	PriorityMedium:   2,
	PriorityHigh:     3,
	PriorityCritical: 4,
}

// NormalizePriority accepts any casing. Unknown values become Medium.
func NormalizePriority(raw string) Priority {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "low":
		return PriorityLow
	case "high":
		return PriorityHigh
	case "critical", "urgent":
		return PriorityCritical
	default:
		return PriorityMedium
	}
}

// AtLeast raises p to floor when p ranks below it.
func AtLeast(p, floor Priority) Priority {
	if priorityRank[NormalizePriority(string(p))] < priorityRank[floor] {
		return floor
	}
	return NormalizePriority(string(p))
}
