package lifecycle

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/rohzyy/govai/internal/audit"
)

// MemoryStore is a Store kept in process memory. Assignment records go to
// an embedded audit.MemoryLog so the ledger can be queried directly.
type MemoryStore struct {
	*audit.MemoryLog

	mu         sync.Mutex
	grievances map[string]Grievance
	events     map[string][]TimelineEvent
	officers   map[string]Officer
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		MemoryLog:  audit.NewMemoryLog(),
		grievances: make(map[string]Grievance),
		events:     make(map[string][]TimelineEvent),
		officers:   make(map[string]Officer),
	}
}

func (s *MemoryStore) PutGrievance(g Grievance) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grievances[g.ID] = g
}

func (s *MemoryStore) PutOfficer(o Officer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.officers[o.ID] = o
}

func (s *MemoryStore) GetGrievance(_ context.Context, id string) (Grievance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.grievances[id]
	if !ok {
		return Grievance{}, fmt.Errorf("grievance %s: %w", id, ErrNotFound)
	}
	return g, nil
}

func (s *MemoryStore) ListEvents(_ context.Context, grievanceID string) ([]TimelineEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.events[grievanceID]), nil
}

func (s *MemoryStore) GetOfficer(_ context.Context, id string) (Officer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.officers[id]
	if !ok {
		return Officer{}, fmt.Errorf("officer %s: %w", id, ErrNotFound)
	}
	return o, nil
}

func (s *MemoryStore) AppendEvent(_ context.Context, event TimelineEvent, expect Status) (TimelineEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.grievances[event.GrievanceID]; !ok {
		return TimelineEvent{}, fmt.Errorf("grievance %s: %w", event.GrievanceID, ErrNotFound)
	}
	if DeriveCurrentStatus(s.events[event.GrievanceID]) != expect {
		return TimelineEvent{}, ErrConflict
	}
	return s.appendLocked(event), nil
}

func (s *MemoryStore) CommitAssignment(ctx context.Context, commit AssignmentCommit) (audit.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.grievances[commit.Record.GrievanceID]
	if !ok {
		return audit.Record{}, fmt.Errorf("grievance %s: %w", commit.Record.GrievanceID, ErrNotFound)
	}
	if g.AssignedOfficerID != commit.ExpectOfficerID {
		return audit.Record{}, ErrConflict
	}
	// The ledger append validates, so it goes first and a rejected record
	// leaves nothing behind.
	record, err := s.MemoryLog.Append(ctx, commit.Record)
	if err != nil {
		return audit.Record{}, err
	}
	if commit.Event != nil {
		s.appendLocked(*commit.Event)
	}

	g.AssignedOfficerID = commit.OfficerID
	g.Priority = commit.Priority
	if commit.AssignedAt != nil {
		at := *commit.AssignedAt
		g.AssignedAt = &at
	}
	if commit.SLADeadline != nil {
		deadline := *commit.SLADeadline
		g.SLADeadline = &deadline
		g.SLAHours = commit.SLAHours
	}
	if commit.Record.Kind == audit.KindReassign {
		g.ReassignmentCount++
	}
	s.grievances[g.ID] = g
	return record, nil
}

func (s *MemoryStore) appendLocked(event TimelineEvent) TimelineEvent {
	existing := s.events[event.GrievanceID]
	if n := len(existing); n > 0 && !event.Timestamp.After(existing[n-1].Timestamp) {
		event.Timestamp = existing[n-1].Timestamp.Add(time.Microsecond)
	}
	s.events[event.GrievanceID] = append(existing, event)
	return event
}
