package store

import (
	"time"

	"github.com/rohzyy/govai/internal/lifecycle"
	"github.com/rohzyy/govai/internal/rbac"
)

type User struct {
	ID           string
	Name         string
	Email        string
	Phone        string
	PasswordHash string
	Role         rbac.Role
	GoogleSub    string
	CreatedAt    time.Time
}

type Department struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Feedback struct {
	GrievanceID string    `json:"complaintId"`
	Rating      int       `json:"rating"`
	Comment     string    `json:"comment"`
	CreatedAt   time.Time `json:"createdAt"`
}

type Attachment struct {
	ID          string
	GrievanceID string
	ObjectKey   string
	ContentType string
	Size        int64
	UploadedBy  string
	CreatedAt   time.Time
}

type AdminAuditEntry struct {
	ID             string    `json:"id"`
	ActorID        string    `json:"actorId"`
	Action         string    `json:"action"`
	TargetResource string    `json:"targetResource"`
	TargetID       string    `json:"targetId"`
	IPAddress      string    `json:"ipAddress"`
	CreatedAt      time.Time `json:"createdAt"`
}

// AdminAuditQuery narrows ListAdminAudit. Action matches as a prefix, so
// "officer." selects every officer change.
type AdminAuditQuery struct {
	Action  string
	ActorID string
	Limit   int
}

// NewOfficer is an officer account: the login user and its officer row.
type NewOfficer struct {
	Name         string
	Email        string
	Phone        string
	PasswordHash string
	EmployeeID   string
	Designation  string
	DepartmentID string
	Ward         string
	Zone         string
	Status       lifecycle.OfficerStatus
}

// OfficerChanges lists the fields to overwrite; nil fields are kept.
type OfficerChanges struct {
	Name        *string
	Email       *string
	Phone       *string
	Designation *string
	Ward        *string
	Zone        *string
	Status      *lifecycle.OfficerStatus
}

// GrievanceQuery narrows ListGrievances. Zero fields do not filter.
type GrievanceQuery struct {
	CitizenID  string
	OfficerID  string
	Unassigned bool
	// BreachedAsOf keeps only grievances whose SLA deadline passed before it
	// while still open.
	BreachedAsOf time.Time
	// Limit is capped at MaxListLimit.
	Limit  int
	Offset int
}

// MaxListLimit is the largest page ListGrievances returns.
const MaxListLimit = 500

// AnalyticsRow is one grievance reduced to what the admin dashboards
// aggregate over.
type AnalyticsRow struct {
	GrievanceID string
	Department  string
	OfficerID   string
	Status      string
	CreatedAt   time.Time
	SLADeadline *time.Time
	ResolvedAt  *time.Time
	Rating      *int
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
