package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rohzyy/govai/internal/audit"
	"github.com/rohzyy/govai/internal/rbac"
)

type Grievance struct {
	ID                string     `json:"id"`
	CitizenID         string     `json:"citizenId"`
	Title             string     `json:"title"`
	Description       string     `json:"description"`
	Location          string     `json:"location"`
	Category          string     `json:"category"`
	Department        string     `json:"department"`
	Priority          Priority   `json:"priority"`
	CreatedAt         time.Time  `json:"createdAt"`
	AssignedOfficerID string     `json:"assignedOfficerId,omitempty"`
	AssignedAt        *time.Time `json:"assignedAt,omitempty"`
	SLAHours          int        `json:"slaHours,omitempty"`
	SLADeadline       *time.Time `json:"slaDeadline,omitempty"`
	ReassignmentCount int        `json:"reassignmentCount"`
	TrustScore        float64    `json:"trustScore"`
	TrustFlags        []string   `json:"trustFlags"`
	IsWomenSafety     bool       `json:"isWomenSafety"`
	AIConfidence      int        `json:"aiConfidence"`
	AIDegraded        bool       `json:"aiDegraded"`

	// Derived on read.
	Status      Status `json:"status"`
	StatusLabel string `json:"statusLabel"`
	SLABreached bool   `json:"slaBreached"`
	Archived    bool   `json:"archived"`
}

// Derive fills the read-time fields from the grievance's events.
func Derive(g Grievance, events []TimelineEvent, now time.Time) Grievance {
	return WithStatus(g, DeriveCurrentStatus(events), now)
}

// WithStatus fills the read-time fields when the current status is already
// known, as it is for list queries that select only the latest event.
func WithStatus(g Grievance, status Status, now time.Time) Grievance {
	g.Status = status
	g.StatusLabel = Label(g.Status)
	g.Archived = IsTerminal(g.Status)
	g.SLABreached = false
	if g.SLADeadline != nil {
		g.SLABreached = IsBreached(*g.SLADeadline, g.Status, now)
	}
	return g
}

type OfficerStatus string

const (
	OfficerActive    OfficerStatus = "Active"
	OfficerOnLeave   OfficerStatus = "On Leave"
	OfficerSuspended OfficerStatus = "Suspended"
)

// ParseOfficerStatus matches s against the officer statuses ignoring case and
// surrounding space.
func ParseOfficerStatus(s string) (OfficerStatus, bool) {
	for _, status := range []OfficerStatus{OfficerActive, OfficerOnLeave, OfficerSuspended} {
		if strings.EqualFold(strings.TrimSpace(s), string(status)) {
			return status, true
		}
	}
	return "", false
}

type Officer struct {
	ID           string        `json:"id"`
	UserID       string        `json:"userId"`
	EmployeeID   string        `json:"employeeId"`
	Name         string        `json:"name"`
	Email        string        `json:"email"`
	Designation  string        `json:"designation"`
	DepartmentID string        `json:"departmentId"`
	Ward         string        `json:"ward"`
	Zone         string        `json:"zone"`
	Status       OfficerStatus `json:"status"`
}

type TimelineEvent struct {
	ID          string    `json:"id"`
	GrievanceID string    `json:"grievanceId"`
	Status      Status    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	UpdatedBy   string    `json:"updatedBy"`
	ActorRole   rbac.Role `json:"actorRole"`
	Remarks     string    `json:"remarks,omitempty"`
}

// Actor is whoever asks for a transition. OfficerID is set for officers.
type Actor struct {
	ID        string
	Role      rbac.Role
	OfficerID string
}

type ErrorKind string

const (
	KindValidation ErrorKind = "VALIDATION_ERROR"
	KindForbidden  ErrorKind = "FORBIDDEN"
	KindConflict   ErrorKind = "CONFLICT"
)

// Error is a rejected operation. Nothing was written when one is returned.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func validationError(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned by a Store when the row changed between the
	// engine's read and the locked write.
	ErrConflict = errors.New("concurrent modification")
)

// AssignmentCommit is everything an assignment or reassignment writes. A
// Store applies it in one transaction, after checking under lock that the
// grievance is still assigned to ExpectOfficerID.
type AssignmentCommit struct {
	Record          audit.Record
	Event           *TimelineEvent
	ExpectOfficerID string
	OfficerID       string
	Priority        Priority
	SLAHours        int
	SLADeadline     *time.Time
	AssignedAt      *time.Time
}

type Store interface {
	GetGrievance(ctx context.Context, id string) (Grievance, error)
	ListEvents(ctx context.Context, grievanceID string) ([]TimelineEvent, error)
	// AppendEvent writes event if the grievance's derived status is still
	// expect. The stored timestamp may be bumped to stay strictly increasing.
	AppendEvent(ctx context.Context, event TimelineEvent, expect Status) (TimelineEvent, error)
	GetOfficer(ctx context.Context, id string) (Officer, error)
	CommitAssignment(ctx context.Context, commit AssignmentCommit) (audit.Record, error)
}
