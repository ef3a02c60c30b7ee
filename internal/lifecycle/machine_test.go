package lifecycle

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/rohzyy/govai/internal/rbac"
)

func TestNextAllowedActions(t *testing.T) {
	tests := []struct {
		name   string
		status Status
		role   rbac.Role
		want   []Status
	}{
		{"admin on submitted", StatusSubmitted, rbac.RoleAdmin, []Status{StatusAssigned, StatusRejected}},
		{"citizen on submitted", StatusSubmitted, rbac.RoleUser, []Status{StatusWithdrawn}},
		{"officer on submitted", StatusSubmitted, rbac.RoleOfficer, []Status{}},
		{"officer on assigned", StatusAssigned, rbac.RoleOfficer, []Status{StatusVisited}},
		{"admin on assigned", StatusAssigned, rbac.RoleAdmin, []Status{StatusRejected}},
		{"officer on visited", StatusVisited, rbac.RoleOfficer, []Status{StatusInProgress}},
		{"admin cannot reject visited", StatusVisited, rbac.RoleAdmin, []Status{}},
		{"officer on in progress", StatusInProgress, rbac.RoleOfficer, []Status{StatusResolved}},
		{"citizen on in progress", StatusInProgress, rbac.RoleUser, []Status{StatusWithdrawn}},
		{"citizen confirms resolved", StatusResolved, rbac.RoleUser, []Status{StatusVerified}},
		{"citizen cannot withdraw resolved", StatusResolved, rbac.RoleUser, []Status{StatusVerified}},
		{"verified is terminal", StatusVerified, rbac.RoleAdmin, []Status{}},
		{"withdrawn is terminal", StatusWithdrawn, rbac.RoleUser, []Status{}},
		{"rejected is terminal", StatusRejected, rbac.RoleOfficer, []Status{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextAllowedActions(tt.status, tt.role)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("NextAllowedActions(%s, %s) mismatch (-want +got):\n%s", tt.status, tt.role, diff)
			}
		})
	}
}

func TestAllowedRejectsSkippingSteps(t *testing.T) {
	if Allowed(StatusAssigned, StatusResolved, rbac.RoleOfficer) {
		t.Fatalf("officer must not jump from ASSIGNED to RESOLVED")
	}
	if Allowed(StatusResolved, StatusInProgress, rbac.RoleOfficer) {
		t.Fatalf("transitions are forward-only")
	}
}

func TestDeriveCurrentStatus(t *testing.T) {
	t0 := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	if got := DeriveCurrentStatus(nil); got != StatusSubmitted {
		t.Fatalf("empty timeline: expected SUBMITTED, got %s", got)
	}

	unordered := []TimelineEvent{
		{Status: StatusVisited, Timestamp: t0.Add(2 * time.Hour)},
		{Status: StatusAssigned, Timestamp: t0.Add(time.Hour)},
		{Status: StatusSubmitted, Timestamp: t0},
	}
	if got := DeriveCurrentStatus(unordered); got != StatusVisited {
		t.Fatalf("expected latest-timestamp status VISITED, got %s", got)
	}
	if again := DeriveCurrentStatus(unordered); again != StatusVisited {
		t.Fatalf("derivation is not idempotent: %s", again)
	}

	tied := []TimelineEvent{
		{Status: StatusInProgress, Timestamp: t0},
		{Status: StatusResolved, Timestamp: t0},
	}
	if got := DeriveCurrentStatus(tied); got != StatusResolved {
		t.Fatalf("tie should go to later slice position, got %s", got)
	}
}

func TestNormalizeStatus(t *testing.T) {
	tests := map[string]Status{
		"Officer Visited Location": StatusVisited,
		"Work in Progress":         StatusInProgress,
		"Verified by Citizen":      StatusVerified,
		"Complaint Submitted":      StatusSubmitted,
		"Assigned to Officer":      StatusAssigned,
		"NEW":                      StatusSubmitted,
		"Closed by Citizen":        StatusVerified,
		"Withdrawn by Citizen":     StatusWithdrawn,
		"in_progress":              StatusInProgress,
		"  RESOLVED ":              StatusResolved,
	}
	for raw, want := range tests {
		got, ok := NormalizeStatus(raw)
		if !ok || got != want {
			t.Fatalf("NormalizeStatus(%q) = %s, %v; want %s", raw, got, ok, want)
		}
	}
	if _, ok := NormalizeStatus("teleported"); ok {
		t.Fatalf("expected unknown label to be rejected")
	}
}

func TestLabelRoundTripsThroughNormalize(t *testing.T) {
	for _, status := range canonicalOrder {
		got, ok := NormalizeStatus(Label(status))
		if !ok || got != status {
			t.Fatalf("Label(%s) = %q does not normalize back", status, Label(status))
		}
	}
}

func TestPriorityHelpers(t *testing.T) {
	if NormalizePriority("CRITICAL") != PriorityCritical {
		t.Fatalf("expected Critical")
	}
	if NormalizePriority("whatever") != PriorityMedium {
		t.Fatalf("expected unknown priority to default to Medium")
	}
	if AtLeast(PriorityLow, PriorityHigh) != PriorityHigh {
		t.Fatalf("expected Low raised to High")
	}
	if AtLeast(PriorityCritical, PriorityHigh) != PriorityCritical {
		t.Fatalf("expected Critical to stay Critical")
	}
}

func TestParseOfficerStatus(t *testing.T) {
	for raw, want := range map[string]OfficerStatus{
		"Active":     OfficerActive,
		" on leave ": OfficerOnLeave,
		"SUSPENDED":  OfficerSuspended,
		"On Leave":   OfficerOnLeave,
	} {
		if got, ok := ParseOfficerStatus(raw); !ok || got != want {
			t.Fatalf("ParseOfficerStatus(%q) = %q, %v; want %q", raw, got, ok, want)
		}
	}
	for _, raw := range []string{"", "retired", "on_leave"} {
		if _, ok := ParseOfficerStatus(raw); ok {
			t.Fatalf("ParseOfficerStatus(%q) should fail", raw)
		}
	}
}
