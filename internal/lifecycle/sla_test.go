package lifecycle

import (
	"testing"
	"time"
)

func TestComputeSLADeadline(t *testing.T) {
	t0 := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		priority Priority
		hours    int
	}{
		{PriorityCritical, 24},
		{PriorityHigh, 48},
		{PriorityMedium, 120},
		{PriorityLow, 168},
		{Priority("Unknown"), 120},
	}
	for _, tt := range tests {
		t.Run(string(tt.priority), func(t *testing.T) {
			want := t0.Add(time.Duration(tt.hours) * time.Hour)
			if got := ComputeSLADeadline(tt.priority, t0); !got.Equal(want) {
				t.Fatalf("deadline = %s, want %s", got, want)
			}
		})
	}
}

func TestIsBreachedScenarios(t *testing.T) {
	t0 := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	deadline := ComputeSLADeadline(PriorityCritical, t0)

	if !deadline.Equal(t0.Add(24 * time.Hour)) {
		t.Fatalf("critical deadline should be T0+24h, got %s", deadline)
	}
	if !IsBreached(deadline, StatusAssigned, t0.Add(25*time.Hour)) {
		t.Fatalf("assigned critical grievance at T0+25h should be breached")
	}
	if IsBreached(deadline, StatusResolved, t0.Add(30*time.Hour)) {
		t.Fatalf("resolved grievance should never be breached")
	}
	if IsBreached(deadline, StatusAssigned, deadline.Add(-time.Nanosecond)) {
		t.Fatalf("not breached before the deadline")
	}
	if IsBreached(deadline, StatusAssigned, deadline) {
		t.Fatalf("not breached exactly at the deadline")
	}
	if !IsBreached(deadline, StatusInProgress, deadline.Add(time.Nanosecond)) {
		t.Fatalf("breached immediately after the deadline")
	}
	for _, closed := range []Status{StatusVerified, StatusWithdrawn, StatusRejected} {
		if IsBreached(deadline, closed, t0.Add(1000*time.Hour)) {
			t.Fatalf("%s should never be breached", closed)
		}
	}
	if IsBreached(time.Time{}, StatusSubmitted, t0.Add(1000*time.Hour)) {
		t.Fatalf("unassigned grievance has no deadline")
	}
}
