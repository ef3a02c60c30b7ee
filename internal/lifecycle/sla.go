package lifecycle

import "time"

var slaHours = map[Priority]int{
	PriorityCritical: 24,
	PriorityHigh:     48,
	PriorityMedium:   120,
	PriorityLow:      168,
}

func SLAHours(priority Priority) int {
	if hours, ok := slaHours[priority]; ok {
		return hours
	}
	return slaHours[PriorityMedium]
}

func ComputeSLADeadline(priority Priority, assignedAt time.Time) time.Time {
	return assignedAt.Add(time.Duration(SLAHours(priority)) * time.Hour)
}

// IsBreached is derived at read time and never stored. A grievance that was
// never assigned has no deadline and cannot be breached.
func IsBreached(deadline time.Time, status Status, now time.Time) bool {
	if deadline.IsZero() || isClosed(status) {
		return false
	}
	return now.After(deadline)
}
