package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rohzyy/govai/internal/audit"
	"github.com/rohzyy/govai/internal/rbac"
	"github.com/rohzyy/govai/internal/util"
)

// Hooks are called after a successful write, outside the grievance lock.
type Hooks struct {
	OnTransition func(ctx context.Context, g Grievance, event TimelineEvent)
	OnAssignment func(ctx context.Context, g Grievance, record audit.Record)
}

type Engine struct {
	store Store
	now   func() time.Time
	locks *keyedMutex
	hooks Hooks
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithHooks(h Hooks) Option {
	return func(e *Engine) { e.hooks = h }
}

func NewEngine(store Store, opts ...Option) *Engine {
	e := &Engine{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
		locks: newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Now is the engine clock, exposed so read paths derive breach state with
// the same time source as writes.
func (e *Engine) Now() time.Time {
	return e.now()
}

// RecordTransition validates and appends one timeline event, returning the
// full updated timeline.
func (e *Engine) RecordTransition(ctx context.Context, grievanceID string, target Status, actor Actor, remarks string) ([]TimelineEvent, error) {
	if target == StatusAssigned {
		return nil, validationError("assignment goes through Assign")
	}

	unlock := e.locks.Lock(grievanceID)
	grievance, events, current, err := e.load(ctx, grievanceID)
	if err != nil {
		unlock()
		return nil, err
	}
	if !Allowed(current, target, actor.Role) {
		unlock()
		return nil, validationError("cannot move grievance from %s to %s as %s", current, target, actor.Role)
	}
	if err := checkOwnership(grievance, actor); err != nil {
		unlock()
		return nil, err
	}

	event := TimelineEvent{
		ID:          util.NewSortableID(),
		GrievanceID: grievanceID,
		Status:      target,
		Timestamp:   nextTimestamp(e.now(), events),
		UpdatedBy:   actor.ID,
		ActorRole:   actor.Role,
		Remarks:     strings.TrimSpace(remarks),
	}
	stored, err := e.store.AppendEvent(ctx, event, current)
	unlock()
	if err != nil {
		return nil, e.storeError("append timeline event", err)
	}

	updated := append(events[:len(events):len(events)], stored)
	if e.hooks.OnTransition != nil {
		e.hooks.OnTransition(ctx, Derive(grievance, updated, e.now()), stored)
	}
	return updated, nil
}

// Assign gives an unassigned, freshly submitted grievance to an active
// officer and fixes its SLA deadline.
func (e *Engine) Assign(ctx context.Context, grievanceID, officerID string, priority Priority, actorID string) (Grievance, audit.Record, error) {
	unlock := e.locks.Lock(grievanceID)
	defer unlock()

	grievance, events, current, err := e.load(ctx, grievanceID)
	if err != nil {
		return Grievance{}, audit.Record{}, err
	}
	if grievance.AssignedOfficerID != "" {
		return Grievance{}, audit.Record{}, validationError("grievance is already assigned; use reassign")
	}
	if current != StatusSubmitted {
		return Grievance{}, audit.Record{}, validationError("only submitted grievances can be assigned (current: %s)", current)
	}
	officer, err := e.activeOfficer(ctx, officerID)
	if err != nil {
		return Grievance{}, audit.Record{}, err
	}

	if priority == "" {
		priority = grievance.Priority
	}
	priority = NormalizePriority(string(priority))
	if grievance.IsWomenSafety {
		priority = AtLeast(priority, PriorityHigh)
	}

	assignedAt := nextTimestamp(e.now(), events)
	deadline := ComputeSLADeadline(priority, assignedAt)
	record := audit.Record{
		GrievanceID: grievanceID,
		Kind:        audit.KindAssign,
		ToOfficerID: officer.ID,
		Priority:    string(priority),
		ActorID:     actorID,
		Timestamp:   assignedAt,
	}
	if err := audit.Validate(record); err != nil {
		return Grievance{}, audit.Record{}, validationError("%s", err)
	}
	event := TimelineEvent{
		ID:          util.NewSortableID(),
		GrievanceID: grievanceID,
		Status:      StatusAssigned,
		Timestamp:   assignedAt,
		UpdatedBy:   actorID,
		ActorRole:   rbac.RoleAdmin,
		Remarks:     fmt.Sprintf("Assigned to %s", officer.Name),
	}

	stored, err := e.store.CommitAssignment(ctx, AssignmentCommit{
		Record:      record,
		Event:       &event,
		OfficerID:   officer.ID,
		Priority:    priority,
		SLAHours:    SLAHours(priority),
		SLADeadline: &deadline,
		AssignedAt:  &assignedAt,
	})
	if err != nil {
		return Grievance{}, audit.Record{}, e.storeError("commit assignment", err)
	}

	grievance.AssignedOfficerID = officer.ID
	grievance.AssignedAt = &assignedAt
	grievance.Priority = priority
	grievance.SLAHours = SLAHours(priority)
	grievance.SLADeadline = &deadline
	grievance = Derive(grievance, append(events, event), e.now())
	if e.hooks.OnAssignment != nil {
		e.hooks.OnAssignment(ctx, grievance, stored)
	}
	return grievance, stored, nil
}

// Reassign moves a grievance between officers. The SLA deadline is left as
// fixed at first assignment and no timeline event is written.
func (e *Engine) Reassign(ctx context.Context, grievanceID, fromOfficerID, toOfficerID, reason, actorID string) (Grievance, audit.Record, error) {
	reason = strings.TrimSpace(reason)
	if !audit.ValidReason(reason) {
		return Grievance{}, audit.Record{}, validationError("reassignment reason must be at least %d characters", audit.MinReasonLength)
	}
	if fromOfficerID == toOfficerID {
		return Grievance{}, audit.Record{}, validationError("grievance is already assigned to this officer")
	}

	unlock := e.locks.Lock(grievanceID)
	defer unlock()

	grievance, events, current, err := e.load(ctx, grievanceID)
	if err != nil {
		return Grievance{}, audit.Record{}, err
	}
	if IsTerminal(current) {
		return Grievance{}, audit.Record{}, validationError("grievance is closed (%s)", current)
	}
	if grievance.AssignedOfficerID == "" {
		return Grievance{}, audit.Record{}, validationError("grievance is not assigned; use assign")
	}
	if grievance.AssignedOfficerID != fromOfficerID {
		return Grievance{}, audit.Record{}, validationError("grievance is not assigned to officer %s", fromOfficerID)
	}
	officer, err := e.activeOfficer(ctx, toOfficerID)
	if err != nil {
		return Grievance{}, audit.Record{}, err
	}

	record := audit.Record{
		GrievanceID:   grievanceID,
		Kind:          audit.KindReassign,
		FromOfficerID: fromOfficerID,
		ToOfficerID:   officer.ID,
		Priority:      string(grievance.Priority),
		Reason:        reason,
		ActorID:       actorID,
		Timestamp:     e.now(),
	}
	if err := audit.Validate(record); err != nil {
		return Grievance{}, audit.Record{}, validationError("%s", err)
	}
	stored, err := e.store.CommitAssignment(ctx, AssignmentCommit{
		Record:          record,
		ExpectOfficerID: fromOfficerID,
		OfficerID:       officer.ID,
		Priority:        grievance.Priority,
	})
	if err != nil {
		return Grievance{}, audit.Record{}, e.storeError("commit reassignment", err)
	}

	grievance.AssignedOfficerID = officer.ID
	grievance.ReassignmentCount++
	grievance = Derive(grievance, events, e.now())
	if e.hooks.OnAssignment != nil {
		e.hooks.OnAssignment(ctx, grievance, stored)
	}
	return grievance, stored, nil
}

func (e *Engine) load(ctx context.Context, grievanceID string) (Grievance, []TimelineEvent, Status, error) {
	grievance, err := e.store.GetGrievance(ctx, grievanceID)
	if err != nil {
		return Grievance{}, nil, "", fmt.Errorf("get grievance: %w", err)
	}
	events, err := e.store.ListEvents(ctx, grievanceID)
	if err != nil {
		return Grievance{}, nil, "", fmt.Errorf("list timeline events: %w", err)
	}
	return grievance, events, DeriveCurrentStatus(events), nil
}

func (e *Engine) activeOfficer(ctx context.Context, officerID string) (Officer, error) {
	if strings.TrimSpace(officerID) == "" {
		return Officer{}, validationError("officer is required")
	}
	officer, err := e.store.GetOfficer(ctx, officerID)
	if errors.Is(err, ErrNotFound) {
		return Officer{}, validationError("officer %s does not exist", officerID)
	}
	if err != nil {
		return Officer{}, fmt.Errorf("get officer: %w", err)
	}
	if officer.Status != OfficerActive {
		return Officer{}, validationError("officer %s is %s", officer.Name, officer.Status)
	}
	return officer, nil
}

func (e *Engine) storeError(op string, err error) error {
	var invalid *Error
	switch {
	case errors.As(err, &invalid):
		return invalid
	case errors.Is(err, ErrConflict):
		return &Error{Kind: KindConflict, Message: "grievance changed concurrently, reload and retry"}
	case errors.Is(err, audit.ErrInvalidRecord):
		return validationError("%s", err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

func checkOwnership(g Grievance, actor Actor) error {
	switch actor.Role {
	case rbac.RoleOfficer:
		if actor.OfficerID == "" || g.AssignedOfficerID != actor.OfficerID {
			return &Error{Kind: KindForbidden, Message: "grievance is not assigned to you"}
		}
	case rbac.RoleUser:
		if g.CitizenID != actor.ID {
			return &Error{Kind: KindForbidden, Message: "grievance belongs to another citizen"}
		}
	}
	return nil
}

// nextTimestamp keeps a grievance's timeline strictly increasing even when
// the clock has not moved since the last event.
func nextTimestamp(now time.Time, events []TimelineEvent) time.Time {
	for _, event := range events {
		if !now.After(event.Timestamp) {
			now = event.Timestamp.Add(time.Microsecond)
		}
	}
	return now
}

type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refLock
}

type refLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refLock)}
}

// Lock blocks until key is free and returns the matching unlock. Entries are
// dropped once nobody holds or waits on them.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	entry, ok := k.locks[key]
	if !ok {
		entry = &refLock{}
		k.locks[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
