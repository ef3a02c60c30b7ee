package lifecycle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rohzyy/govai/internal/audit"
	"github.com/rohzyy/govai/internal/rbac"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

var t0 = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T) (*Engine, *MemoryStore, *testClock) {
	t.Helper()
	store := NewMemoryStore()
	store.PutGrievance(Grievance{ID: "g-1", CitizenID: "citizen-1", Title: "Water leak", Priority: PriorityCritical, CreatedAt: t0})
	store.PutOfficer(Officer{ID: "off-1", Name: "Asha Rao", Status: OfficerActive})
	store.PutOfficer(Officer{ID: "off-2", Name: "Vikram Singh", Status: OfficerActive})
	store.PutOfficer(Officer{ID: "off-3", Name: "On Leave Officer", Status: OfficerOnLeave})
	clock := &testClock{now: t0}
	return NewEngine(store, WithClock(clock.Now)), store, clock
}

func assertKind(t *testing.T, err error, kind ErrorKind) {
	t.Helper()
	var lifecycleErr *Error
	if !errors.As(err, &lifecycleErr) {
		t.Fatalf("expected *lifecycle.Error, got %T (%v)", err, err)
	}
	if lifecycleErr.Kind != kind {
		t.Fatalf("expected %s, got %s (%s)", kind, lifecycleErr.Kind, lifecycleErr.Message)
	}
}

func TestAssignFixesSLADeadline(t *testing.T) {
	engine, store, clock := newTestEngine(t)
	ctx := context.Background()

	g, record, err := engine.Assign(ctx, "g-1", "off-1", "", "admin-1")
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if g.Status != StatusAssigned || g.AssignedOfficerID != "off-1" {
		t.Fatalf("unexpected grievance after assign: %+v", g)
	}
	if g.SLADeadline == nil || !g.SLADeadline.Equal(t0.Add(24*time.Hour)) {
		t.Fatalf("expected deadline T0+24h, got %v", g.SLADeadline)
	}
	if record.Kind != audit.KindAssign || record.FromOfficerID != "" {
		t.Fatalf("unexpected assignment record: %+v", record)
	}
	events, _ := store.ListEvents(ctx, "g-1")
	if len(events) != 1 || events[0].Status != StatusAssigned {
		t.Fatalf("expected one ASSIGNED event, got %+v", events)
	}

	stored, _ := store.GetGrievance(ctx, "g-1")
	clock.Set(t0.Add(25 * time.Hour))
	view := Derive(stored, events, clock.Now())
	if !view.SLABreached {
		t.Fatalf("expected breach at T0+25h")
	}
}

func TestAssignRejectsInactiveOfficerAndDoubleAssign(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	ctx := context.Background()

	_, _, err := engine.Assign(ctx, "g-1", "off-3", PriorityHigh, "admin-1")
	assertKind(t, err, KindValidation)
	if store.Len() != 0 {
		t.Fatalf("rejected assign must not write to the ledger")
	}

	if _, _, err := engine.Assign(ctx, "g-1", "off-1", PriorityHigh, "admin-1"); err != nil {
		t.Fatalf("assign: %v", err)
	}
	_, _, err = engine.Assign(ctx, "g-1", "off-2", PriorityHigh, "admin-1")
	assertKind(t, err, KindValidation)
}

func TestAssignRaisesWomenSafetyPriority(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	store.PutGrievance(Grievance{ID: "g-ws", CitizenID: "citizen-1", Priority: PriorityLow, IsWomenSafety: true})

	g, _, err := engine.Assign(context.Background(), "g-ws", "off-1", PriorityLow, "admin-1")
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if g.Priority != PriorityHigh || g.SLAHours != 48 {
		t.Fatalf("expected High priority with 48h SLA, got %s/%d", g.Priority, g.SLAHours)
	}
}

func TestReassignRequiresReason(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	ctx := context.Background()
	if _, _, err := engine.Assign(ctx, "g-1", "off-1", PriorityCritical, "admin-1"); err != nil {
		t.Fatalf("assign: %v", err)
	}
	eventsBefore, _ := store.ListEvents(ctx, "g-1")
	ledgerBefore := store.Len()

	_, _, err := engine.Reassign(ctx, "g-1", "off-1", "off-2", "moved", "admin-1")
	assertKind(t, err, KindValidation)

	eventsAfter, _ := store.ListEvents(ctx, "g-1")
	if store.Len() != ledgerBefore || len(eventsAfter) != len(eventsBefore) {
		t.Fatalf("rejected reassign wrote state: ledger %d->%d, events %d->%d",
			ledgerBefore, store.Len(), len(eventsBefore), len(eventsAfter))
	}
	g, _ := store.GetGrievance(ctx, "g-1")
	if g.AssignedOfficerID != "off-1" {
		t.Fatalf("officer changed after rejected reassign: %s", g.AssignedOfficerID)
	}
}

func TestReassignKeepsDeadlineAndSkipsTimeline(t *testing.T) {
	engine, store, clock := newTestEngine(t)
	ctx := context.Background()
	assigned, _, err := engine.Assign(ctx, "g-1", "off-1", PriorityCritical, "admin-1")
	if err != nil {
		t.Fatalf("assign: %v", err)
	}

	clock.Set(t0.Add(5 * time.Hour))
	g, record, err := engine.Reassign(ctx, "g-1", "off-1", "off-2", "Officer on medical leave, reassigning for SLA risk", "admin-1")
	if err != nil {
		t.Fatalf("reassign: %v", err)
	}
	if record.Kind != audit.KindReassign || record.FromOfficerID != "off-1" || record.ToOfficerID != "off-2" {
		t.Fatalf("unexpected record: %+v", record)
	}
	if !g.SLADeadline.Equal(*assigned.SLADeadline) {
		t.Fatalf("deadline moved: %s -> %s", assigned.SLADeadline, g.SLADeadline)
	}
	if g.ReassignmentCount != 1 || g.AssignedOfficerID != "off-2" {
		t.Fatalf("unexpected grievance: %+v", g)
	}
	events, _ := store.ListEvents(ctx, "g-1")
	if len(events) != 1 {
		t.Fatalf("reassign must not append timeline events, got %d", len(events))
	}

	states, err := audit.Replay(store.Query(ctx, audit.Filter{GrievanceID: "g-1"}))
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if states["g-1"].OfficerID != "off-2" {
		t.Fatalf("replay disagrees with store: %+v", states["g-1"])
	}
}

func TestReassignValidatesOfficers(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	ctx := context.Background()
	reason := "Ward boundary changed last week"
	if _, _, err := engine.Assign(ctx, "g-1", "off-1", PriorityLow, "admin-1"); err != nil {
		t.Fatalf("assign: %v", err)
	}

	_, _, err := engine.Reassign(ctx, "g-1", "off-2", "off-1", reason, "admin-1")
	assertKind(t, err, KindValidation)
	_, _, err = engine.Reassign(ctx, "g-1", "off-1", "off-1", reason, "admin-1")
	assertKind(t, err, KindValidation)
	_, _, err = engine.Reassign(ctx, "g-1", "off-1", "off-3", reason, "admin-1")
	assertKind(t, err, KindValidation)
}

func TestRecordTransitionWalksMainPath(t *testing.T) {
	engine, store, clock := newTestEngine(t)
	ctx := context.Background()
	if _, _, err := engine.Assign(ctx, "g-1", "off-1", PriorityCritical, "admin-1"); err != nil {
		t.Fatalf("assign: %v", err)
	}
	timeline, _ := store.ListEvents(ctx, "g-1")
	officer := Actor{ID: "user-off-1", Role: rbac.RoleOfficer, OfficerID: "off-1"}
	citizen := Actor{ID: "citizen-1", Role: rbac.RoleUser}

	steps := []struct {
		actor  Actor
		target Status
	}{
		{officer, StatusVisited},
		{officer, StatusInProgress},
		{officer, StatusResolved},
		{citizen, StatusVerified},
	}
	for i, step := range steps {
		clock.Set(t0.Add(time.Duration(i+1) * time.Hour))
		updated, err := engine.RecordTransition(ctx, "g-1", step.target, step.actor, "")
		if err != nil {
			t.Fatalf("transition to %s: %v", step.target, err)
		}
		if len(updated) != len(timeline)+1 {
			t.Fatalf("expected timeline to grow by one, got %d", len(updated))
		}
		for j := range timeline {
			if updated[j].ID != timeline[j].ID {
				t.Fatalf("prior event %d changed", j)
			}
		}
		timeline = updated
		if got := DeriveCurrentStatus(timeline); got != step.target {
			t.Fatalf("expected %s, got %s", step.target, got)
		}
	}

	_, err := engine.RecordTransition(ctx, "g-1", StatusWithdrawn, citizen, "")
	assertKind(t, err, KindValidation)
}

func TestRecordTransitionChecksOwnership(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	ctx := context.Background()
	if _, _, err := engine.Assign(ctx, "g-1", "off-1", PriorityCritical, "admin-1"); err != nil {
		t.Fatalf("assign: %v", err)
	}

	_, err := engine.RecordTransition(ctx, "g-1", StatusVisited, Actor{ID: "u-2", Role: rbac.RoleOfficer, OfficerID: "off-2"}, "")
	assertKind(t, err, KindForbidden)

	_, err = engine.RecordTransition(ctx, "g-1", StatusWithdrawn, Actor{ID: "citizen-2", Role: rbac.RoleUser}, "")
	assertKind(t, err, KindForbidden)

	_, err = engine.RecordTransition(ctx, "g-1", StatusResolved, Actor{ID: "u-1", Role: rbac.RoleOfficer, OfficerID: "off-1"}, "")
	assertKind(t, err, KindValidation)
}

func TestRecordTransitionForcesMonotonicTimestamps(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	ctx := context.Background()
	if _, _, err := engine.Assign(ctx, "g-1", "off-1", PriorityCritical, "admin-1"); err != nil {
		t.Fatalf("assign: %v", err)
	}
	officer := Actor{ID: "u-1", Role: rbac.RoleOfficer, OfficerID: "off-1"}
	if _, err := engine.RecordTransition(ctx, "g-1", StatusVisited, officer, ""); err != nil {
		t.Fatalf("visited: %v", err)
	}
	events, err := engine.RecordTransition(ctx, "g-1", StatusInProgress, officer, "")
	if err != nil {
		t.Fatalf("in progress: %v", err)
	}
	for i := 1; i < len(events); i++ {
		if !events[i].Timestamp.After(events[i-1].Timestamp) {
			t.Fatalf("event %d not after event %d", i, i-1)
		}
	}
}

func TestConcurrentTransitionsSerialize(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	ctx := context.Background()
	citizen := Actor{ID: "citizen-1", Role: rbac.RoleUser}
	admin := Actor{ID: "admin-1", Role: rbac.RoleAdmin}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, errs[0] = engine.RecordTransition(ctx, "g-1", StatusWithdrawn, citizen, "")
	}()
	go func() {
		defer wg.Done()
		_, errs[1] = engine.RecordTransition(ctx, "g-1", StatusRejected, admin, "duplicate")
	}()
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		}
	}
	if succeeded != 1 {
		t.Fatalf("expected exactly one terminal transition to win, got %d (%v)", succeeded, errs)
	}
	events, _ := store.ListEvents(ctx, "g-1")
	if len(events) != 1 {
		t.Fatalf("expected one event, got %d", len(events))
	}
}

func TestHooksFireAfterWrites(t *testing.T) {
	store := NewMemoryStore()
	store.PutGrievance(Grievance{ID: "g-1", CitizenID: "citizen-1", Priority: PriorityMedium})
	store.PutOfficer(Officer{ID: "off-1", Status: OfficerActive})

	var transitions, assignments int
	engine := NewEngine(store, WithHooks(Hooks{
		OnTransition: func(context.Context, Grievance, TimelineEvent) { transitions++ },
		OnAssignment: func(context.Context, Grievance, audit.Record) { assignments++ },
	}))
	ctx := context.Background()
	if _, _, err := engine.Assign(ctx, "g-1", "off-1", "", "admin-1"); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if _, err := engine.RecordTransition(ctx, "g-1", StatusVisited, Actor{ID: "u", Role: rbac.RoleOfficer, OfficerID: "off-1"}, ""); err != nil {
		t.Fatalf("transition: %v", err)
	}
	if assignments != 1 || transitions != 1 {
		t.Fatalf("unexpected hook counts: assignments=%d transitions=%d", assignments, transitions)
	}
}

func TestUnknownGrievance(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	_, err := engine.RecordTransition(context.Background(), "missing", StatusWithdrawn, Actor{ID: "c", Role: rbac.RoleUser}, "")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
