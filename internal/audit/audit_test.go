package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func fixedClock(start time.Time) func() time.Time {
	return func() time.Time { return start }
}

func TestMemoryLogRejectsShortReassignReason(t *testing.T) {
	log := NewMemoryLog()
	_, err := log.Append(context.Background(), Record{
		GrievanceID:   "g-1",
		Kind:          KindReassign,
		FromOfficerID: "off-1",
		ToOfficerID:   "off-2",
		Reason:        "  moved   ",
		ActorID:       "admin-1",
	})
	if !errors.Is(err, ErrInvalidRecord) {
		t.Fatalf("expected ErrInvalidRecord, got %v", err)
	}
	if log.Len() != 0 {
		t.Fatalf("expected no record written, got %d", log.Len())
	}
}

func TestMemoryLogAssignCannotCarryPreviousOfficer(t *testing.T) {
	log := NewMemoryLog()
	_, err := log.Append(context.Background(), Record{
		GrievanceID:   "g-1",
		Kind:          KindAssign,
		FromOfficerID: "off-0",
		ToOfficerID:   "off-1",
		ActorID:       "admin-1",
	})
	if !errors.Is(err, ErrInvalidRecord) {
		t.Fatalf("expected ErrInvalidRecord, got %v", err)
	}
}

func TestMemoryLogForcesMonotonicTimestamps(t *testing.T) {
	t0 := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	log := NewMemoryLogWithClock(fixedClock(t0))
	ctx := context.Background()

	first, err := log.Append(ctx, Record{GrievanceID: "g-1", Kind: KindAssign, ToOfficerID: "off-1", ActorID: "admin-1"})
	if err != nil {
		t.Fatalf("append first: %v", err)
	}
	second, err := log.Append(ctx, Record{GrievanceID: "g-2", Kind: KindAssign, ToOfficerID: "off-1", ActorID: "admin-1"})
	if err != nil {
		t.Fatalf("append second: %v", err)
	}
	if !second.Timestamp.After(first.Timestamp) {
		t.Fatalf("expected %s after %s", second.Timestamp, first.Timestamp)
	}
	if first.Seq != 1 || second.Seq != 2 {
		t.Fatalf("unexpected seqs %d, %d", first.Seq, second.Seq)
	}
	if first.ID == "" || first.ID == second.ID {
		t.Fatalf("expected distinct ids, got %q and %q", first.ID, second.ID)
	}
}

func seedLog(t *testing.T) *MemoryLog {
	t.Helper()
	t0 := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	clock := t0
	log := NewMemoryLogWithClock(func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	})
	ctx := context.Background()
	records := []Record{
		{GrievanceID: "g-1", Kind: KindAssign, ToOfficerID: "off-1", Priority: "High", ActorID: "admin-1"},
		{GrievanceID: "g-2", Kind: KindAssign, ToOfficerID: "off-2", Priority: "Low", ActorID: "admin-2"},
		{GrievanceID: "g-1", Kind: KindReassign, FromOfficerID: "off-1", ToOfficerID: "off-3", Priority: "High", Reason: "Officer on medical leave, reassigning for SLA risk", ActorID: "admin-1"},
	}
	for _, record := range records {
		if _, err := log.Append(ctx, record); err != nil {
			t.Fatalf("seed append: %v", err)
		}
	}
	return log
}

func TestMemoryLogQueryFiltersAndRestarts(t *testing.T) {
	log := seedLog(t)
	ctx := context.Background()

	seq := log.Query(ctx, Filter{GrievanceID: "g-1"})
	first, err := Collect(seq)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	second, err := Collect(seq)
	if err != nil {
		t.Fatalf("collect again: %v", err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("query is not restartable (-first +second):\n%s", diff)
	}
	if len(first) != 2 || first[0].Kind != KindAssign || first[1].Kind != KindReassign {
		t.Fatalf("unexpected records: %+v", first)
	}
	if !first[0].Timestamp.Before(first[1].Timestamp) {
		t.Fatalf("expected ascending timestamps")
	}

	byActor, _ := Collect(log.Query(ctx, Filter{ActorID: "admin-2"}))
	if len(byActor) != 1 || byActor[0].GrievanceID != "g-2" {
		t.Fatalf("unexpected actor filter result: %+v", byActor)
	}
	byKind, _ := Collect(log.Query(ctx, Filter{Kind: KindReassign}))
	if len(byKind) != 1 || byKind[0].ToOfficerID != "off-3" {
		t.Fatalf("unexpected kind filter result: %+v", byKind)
	}
}

func TestMemoryLogQueryStopsEarly(t *testing.T) {
	log := seedLog(t)
	count := 0
	for _, err := range log.Query(context.Background(), Filter{}) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		count++
		break
	}
	if count != 1 {
		t.Fatalf("expected to stop after one record, got %d", count)
	}
}

func TestMemoryLogQueryIsFiniteUnderConcurrentAppend(t *testing.T) {
	log := seedLog(t)
	ctx := context.Background()
	seen := 0
	for _, err := range log.Query(ctx, Filter{}) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		seen++
		if _, err := log.Append(ctx, Record{GrievanceID: "g-x", Kind: KindAssign, ToOfficerID: "off-9", ActorID: "admin-1"}); err != nil {
			t.Fatalf("append during iteration: %v", err)
		}
	}
	if seen != 3 {
		t.Fatalf("expected iteration bounded to 3 records, got %d", seen)
	}
}

func TestMemoryLogQueryHonoursContext(t *testing.T) {
	log := seedLog(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Collect(log.Query(ctx, Filter{}))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestReplayReconstructsCurrentOfficer(t *testing.T) {
	log := seedLog(t)
	states, err := Replay(log.Query(context.Background(), Filter{}))
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	g1 := states["g-1"]
	if g1.OfficerID != "off-3" || g1.Reassignments != 1 {
		t.Fatalf("unexpected g-1 state: %+v", g1)
	}
	if diff := cmp.Diff([]string{"off-1", "off-3"}, g1.Officers); diff != "" {
		t.Fatalf("officer history mismatch (-want +got):\n%s", diff)
	}
	if states["g-2"].OfficerID != "off-2" {
		t.Fatalf("unexpected g-2 state: %+v", states["g-2"])
	}
}

func TestReplayDetectsBrokenChain(t *testing.T) {
	records := func(yield func(Record, error) bool) {
		if !yield(Record{GrievanceID: "g-1", Kind: KindAssign, ToOfficerID: "off-1"}, nil) {
			return
		}
		yield(Record{GrievanceID: "g-1", Kind: KindReassign, FromOfficerID: "off-7", ToOfficerID: "off-2"}, nil)
	}
	if _, err := Replay(records); err == nil {
		t.Fatalf("expected replay to reject a reassignment from the wrong officer")
	}
}

func TestValidReasonCountsRunes(t *testing.T) {
	if ValidReason("   short   ") {
		t.Fatalf("expected short reason to be invalid")
	}
	if !ValidReason("स्थानांतरण आवश्यक") {
		t.Fatalf("expected non-ascii reason of 10+ runes to be valid")
	}
}
