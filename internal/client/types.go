package client

import (
	"time"

	"github.com/rohzyy/govai/internal/audit"
	"github.com/rohzyy/govai/internal/lifecycle"
)

type SubmitInput struct {
	Title         string `json:"title"`
	Description   string `json:"description"`
	Location      string `json:"location"`
	Category      string `json:"category,omitempty"`
	IsWomenSafety bool   `json:"isWomenSafety,omitempty"`
}

type Analysis struct {
	Category   string   `json:"category"`
	Department string   `json:"department"`
	Priority   string   `json:"priority"`
	Confidence int      `json:"confidence"`
	Reasoning  []string `json:"reasoning"`
	Degraded   bool     `json:"degraded"`
}

type StatusView struct {
	ComplaintID       string             `json:"complaintId"`
	Status            lifecycle.Status   `json:"status"`
	StatusLabel       string             `json:"statusLabel"`
	AssignedOfficerID string             `json:"assignedOfficerId,omitempty"`
	SLADeadline       *time.Time         `json:"slaDeadline,omitempty"`
	SLABreached       bool               `json:"slaBreached"`
	NextActions       []lifecycle.Status `json:"nextActions"`
}

type TransitionResult struct {
	Complaint lifecycle.Grievance       `json:"complaint"`
	Timeline  []lifecycle.TimelineEvent `json:"timeline"`
}

type AssignmentResult struct {
	Complaint lifecycle.Grievance `json:"complaint"`
	Record    audit.Record        `json:"record"`
}

type OfficerInput struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Phone        string `json:"phone,omitempty"`
	Password     string `json:"password"`
	EmployeeID   string `json:"employeeId"`
	Designation  string `json:"designation,omitempty"`
	DepartmentID string `json:"departmentId,omitempty"`
	Ward         string `json:"ward,omitempty"`
	Zone         string `json:"zone,omitempty"`
	Status       string `json:"status,omitempty"`
}

// OfficerPatch sends only its non-nil fields.
type OfficerPatch struct {
	Name        *string `json:"name,omitempty"`
	Email       *string `json:"email,omitempty"`
	Phone       *string `json:"phone,omitempty"`
	Designation *string `json:"designation,omitempty"`
	Ward        *string `json:"ward,omitempty"`
	Zone        *string `json:"zone,omitempty"`
	Status      *string `json:"status,omitempty"`
}

type AuditLogEntry struct {
	ID             string    `json:"id"`
	ActorID        string    `json:"actorId"`
	Action         string    `json:"action"`
	TargetResource string    `json:"targetResource"`
	TargetID       string    `json:"targetId"`
	IPAddress      string    `json:"ipAddress"`
	CreatedAt      time.Time `json:"createdAt"`
}

type SearchHit struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Snippet    string `json:"snippet"`
	Department string `json:"department"`
	Priority   string `json:"priority"`
	Status     string `json:"status"`
}

type SearchResult struct {
	Hits   []SearchHit `json:"hits"`
	Engine string      `json:"engine"`
}

type Stats struct {
	Total         int            `json:"total"`
	ByStatus      map[string]int `json:"byStatus"`
	Unassigned    int            `json:"unassigned"`
	SLABreached   int            `json:"slaBreached"`
	ResolvedToday int            `json:"resolvedToday"`
}

type DepartmentStat struct {
	Department string `json:"department"`
	Total      int    `json:"total"`
	Resolved   int    `json:"resolved"`
	Breached   int    `json:"breached"`
}

type TrendPoint struct {
	Month     string `json:"month"`
	Submitted int    `json:"submitted"`
	Resolved  int    `json:"resolved"`
}

type OfficerPerformance struct {
	OfficerID string  `json:"officerId"`
	Name      string  `json:"name"`
	Assigned  int     `json:"assigned"`
	Resolved  int     `json:"resolved"`
	Breached  int     `json:"breached"`
	AvgRating float64 `json:"avgRating"`
}

type Attachment struct {
	ID          string    `json:"id"`
	ComplaintID string    `json:"complaintId"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	URL         string    `json:"url"`
	CreatedAt   time.Time `json:"createdAt"`
}
