package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/mail"
	"strings"

	"github.com/rohzyy/govai/internal/audit"
	"github.com/rohzyy/govai/internal/authpw"
	"github.com/rohzyy/govai/internal/lifecycle"
	"github.com/rohzyy/govai/internal/obs"
	"github.com/rohzyy/govai/internal/search"
	"github.com/rohzyy/govai/internal/store"
)

type AssignmentResult struct {
	Complaint lifecycle.Grievance `json:"complaint"`
	Record    audit.Record        `json:"record"`
}

// AdminComplaints returns one page of every grievance, newest first. filter
// narrows it to "unassigned" or "sla_breached"; both are applied by the store
// so paging walks the filtered set. A page holds at most store.MaxListLimit
// items and a short page is the last one.
func (s *Service) AdminComplaints(ctx context.Context, filter string, limit, offset int) ([]lifecycle.Grievance, error) {
	if limit < 0 || limit > store.MaxListLimit {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", fmt.Sprintf("limit must be between 0 and %d", store.MaxListLimit), nil)
	}
	if offset < 0 {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "offset must not be negative", nil)
	}
	now := s.now()
	query := store.GrievanceQuery{Limit: limit, Offset: offset}
	switch filter {
	case "":
	case "unassigned":
		query.Unassigned = true
	case "sla_breached":
		query.BreachedAsOf = now
	default:
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "filter must be unassigned or sla_breached", nil)
	}
	items, err := s.store.ListGrievances(ctx, query)
	if err != nil {
		return nil, err
	}
	out := make([]lifecycle.Grievance, 0, len(items))
	for _, g := range items {
		g = lifecycle.WithStatus(g, g.Status, now)
		// Legacy status spellings slip past the store predicate.
		if filter == "sla_breached" && !g.SLABreached {
			continue
		}
		out = append(out, g)
	}
	return out, nil
}

func (s *Service) Assign(ctx context.Context, caller Session, id, officerID, priority, ip string) (AssignmentResult, error) {
	g, record, err := s.engine.Assign(ctx, id, strings.TrimSpace(officerID), lifecycle.Priority(strings.TrimSpace(priority)), caller.UserID)
	if err != nil {
		return AssignmentResult{}, err
	}
	s.recordAdminAction(ctx, caller, "complaint.assign", "complaint", id, ip)
	return AssignmentResult{Complaint: g, Record: record}, nil
}

func (s *Service) Reassign(ctx context.Context, caller Session, id, fromOfficerID, toOfficerID, reason, ip string) (AssignmentResult, error) {
	g, record, err := s.engine.Reassign(ctx, id, strings.TrimSpace(fromOfficerID), strings.TrimSpace(toOfficerID), reason, caller.UserID)
	if err != nil {
		return AssignmentResult{}, err
	}
	s.recordAdminAction(ctx, caller, "complaint.reassign", "complaint", id, ip)
	return AssignmentResult{Complaint: g, Record: record}, nil
}

func (s *Service) Reject(ctx context.Context, caller Session, id, reason, ip string) (TransitionResult, error) {
	remarks := strings.TrimSpace(reason)
	if remarks == "" {
		remarks = "Rejected by administrator"
	}
	events, err := s.engine.RecordTransition(ctx, id, lifecycle.StatusRejected, caller.actor(), remarks)
	if err != nil {
		return TransitionResult{}, err
	}
	s.recordAdminAction(ctx, caller, "complaint.reject", "complaint", id, ip)
	return s.transitionResult(ctx, id, events)
}

// recordAdminAction writes the admin audit row and the matching log line.
// The action already happened, so failures are only logged.
func (s *Service) recordAdminAction(ctx context.Context, caller Session, action, resource, targetID, ip string) {
	entry := store.AdminAuditEntry{
		ActorID:        caller.UserID,
		Action:         action,
		TargetResource: resource,
		TargetID:       targetID,
		IPAddress:      ip,
	}
	if err := s.store.InsertAdminAudit(ctx, entry); err != nil {
		log.Printf("admin audit: %s on %s %s: %v", action, resource, targetID, err)
	}
	_ = obs.LogEvent(ctx, action, map[string]any{
		"target":     resource,
		"target_id":  targetID,
		"ip_address": ip,
	})
}

func (s *Service) AuditAssignments(ctx context.Context, filter audit.Filter) ([]audit.Record, error) {
	return audit.Collect(s.ledger.Query(ctx, filter))
}

func (s *Service) Officers(ctx context.Context) ([]lifecycle.Officer, error) {
	return s.store.ListOfficers(ctx)
}

type CreateOfficerRequest struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	Password     string `json:"password"`
	EmployeeID   string `json:"employeeId"`
	Designation  string `json:"designation"`
	DepartmentID string `json:"departmentId"`
	Ward         string `json:"ward"`
	Zone         string `json:"zone"`
	Status       string `json:"status"`
}

// UpdateOfficerRequest changes only the fields that are present.
type UpdateOfficerRequest struct {
	Name        *string `json:"name"`
	Email       *string `json:"email"`
	Phone       *string `json:"phone"`
	Designation *string `json:"designation"`
	Ward        *string `json:"ward"`
	Zone        *string `json:"zone"`
	Status      *string `json:"status"`
}

// CreateOfficer opens an officer account that signs in with its employee id
// and password.
func (s *Service) CreateOfficer(ctx context.Context, caller Session, req CreateOfficerRequest, ip string) (lifecycle.Officer, error) {
	o := store.NewOfficer{
		Name:         strings.TrimSpace(req.Name),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:        strings.TrimSpace(req.Phone),
		EmployeeID:   strings.TrimSpace(req.EmployeeID),
		Designation:  strings.TrimSpace(req.Designation),
		DepartmentID: strings.TrimSpace(req.DepartmentID),
		Ward:         strings.TrimSpace(req.Ward),
		Zone:         strings.TrimSpace(req.Zone),
		Status:       lifecycle.OfficerActive,
	}
	if o.Name == "" || o.Email == "" || o.EmployeeID == "" {
		return lifecycle.Officer{}, validation("name, email and employeeId are required")
	}
	if _, err := mail.ParseAddress(o.Email); err != nil {
		return lifecycle.Officer{}, validation("email address is not valid")
	}
	if len(req.Password) < authpw.MinPasswordLength {
		return lifecycle.Officer{}, validation(fmt.Sprintf("password must be at least %d characters", authpw.MinPasswordLength))
	}
	if strings.TrimSpace(req.Status) != "" {
		status, ok := lifecycle.ParseOfficerStatus(req.Status)
		if !ok {
			return lifecycle.Officer{}, validation(officerStatusMessage)
		}
		o.Status = status
	}
	if o.DepartmentID != "" {
		if err := s.requireDepartment(ctx, o.DepartmentID); err != nil {
			return lifecycle.Officer{}, err
		}
	}
	hash, err := authpw.HashPassword(req.Password)
	if err != nil {
		return lifecycle.Officer{}, err
	}
	o.PasswordHash = hash

	officer, err := s.store.CreateOfficer(ctx, o)
	if errors.Is(err, store.ErrDuplicate) {
		return lifecycle.Officer{}, domainError(http.StatusConflict, "CONFLICT", "Employee ID or email already exists", nil)
	}
	if err != nil {
		return lifecycle.Officer{}, err
	}
	s.recordAdminAction(ctx, caller, "officer.create", "officer", officer.ID, ip)
	return officer, nil
}

// UpdateOfficer edits an officer. Moving an officer off Active stops new
// assignments to them; grievances they already hold stay with them.
func (s *Service) UpdateOfficer(ctx context.Context, caller Session, id string, req UpdateOfficerRequest, ip string) (lifecycle.Officer, error) {
	var changes store.OfficerChanges
	trimmed := func(field *string) *string {
		if field == nil {
			return nil
		}
		v := strings.TrimSpace(*field)
		return &v
	}
	changes.Name = trimmed(req.Name)
	if changes.Name != nil && *changes.Name == "" {
		return lifecycle.Officer{}, validation("name must not be empty")
	}
	changes.Email = trimmed(req.Email)
	if changes.Email != nil {
		lowered := strings.ToLower(*changes.Email)
		changes.Email = &lowered
		if _, err := mail.ParseAddress(lowered); err != nil {
			return lifecycle.Officer{}, validation("email address is not valid")
		}
	}
	changes.Phone = trimmed(req.Phone)
	changes.Designation = trimmed(req.Designation)
	changes.Ward = trimmed(req.Ward)
	changes.Zone = trimmed(req.Zone)
	if req.Status != nil {
		status, ok := lifecycle.ParseOfficerStatus(*req.Status)
		if !ok {
			return lifecycle.Officer{}, validation(officerStatusMessage)
		}
		changes.Status = &status
	}
	if changes == (store.OfficerChanges{}) {
		return lifecycle.Officer{}, validation("nothing to update")
	}

	officer, err := s.store.UpdateOfficer(ctx, strings.TrimSpace(id), changes)
	if errors.Is(err, store.ErrDuplicate) {
		return lifecycle.Officer{}, domainError(http.StatusConflict, "CONFLICT", "Email already belongs to another account", nil)
	}
	if err != nil {
		return lifecycle.Officer{}, err
	}
	s.recordAdminAction(ctx, caller, "officer.update", "officer", officer.ID, ip)
	return officer, nil
}

// AdminAuditLogs reads the admin action trail newest first. action is a
// prefix such as "complaint." or "officer.update".
func (s *Service) AdminAuditLogs(ctx context.Context, action, actorID string, limit int) ([]store.AdminAuditEntry, error) {
	if limit < 0 || limit > store.MaxListLimit {
		return nil, validation(fmt.Sprintf("limit must be between 0 and %d", store.MaxListLimit))
	}
	return s.store.ListAdminAudit(ctx, store.AdminAuditQuery{
		Action:  strings.TrimSpace(action),
		ActorID: strings.TrimSpace(actorID),
		Limit:   limit,
	})
}

const officerStatusMessage = "status must be Active, On Leave or Suspended"

func (s *Service) requireDepartment(ctx context.Context, id string) error {
	departments, err := s.store.ListDepartments(ctx)
	if err != nil {
		return err
	}
	for _, d := range departments {
		if d.ID == id {
			return nil
		}
	}
	return validation(fmt.Sprintf("department %s does not exist", id))
}

func validation(message string) *DomainError {
	return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", message, nil)
}

func (s *Service) Departments(ctx context.Context) ([]store.Department, error) {
	return s.store.ListDepartments(ctx)
}

// Search is answered by Meilisearch or, failing that, Postgres; the
// response says which.
func (s *Service) Search(ctx context.Context, q search.Query) search.Response {
	if s.search == nil {
		return search.Response{Hits: []search.Result{}, Query: q.Text, Engine: search.EnginePostgres}
	}
	return s.search.Search(ctx, q)
}

func (s *Service) Stats(ctx context.Context) (store.Stats, error) {
	rows, err := s.store.AnalyticsRows(ctx)
	if err != nil {
		return store.Stats{}, err
	}
	return store.ComputeStats(rows, s.now()), nil
}

func (s *Service) DepartmentStats(ctx context.Context) ([]store.DepartmentStat, error) {
	rows, err := s.store.AnalyticsRows(ctx)
	if err != nil {
		return nil, err
	}
	return store.ComputeDepartmentStats(rows, s.now()), nil
}

func (s *Service) Trends(ctx context.Context, months int) ([]store.TrendPoint, error) {
	if months < 0 || months > 36 {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "months must be between 0 and 36", nil)
	}
	rows, err := s.store.AnalyticsRows(ctx)
	if err != nil {
		return nil, err
	}
	return store.ComputeTrends(rows, s.now(), months), nil
}

func (s *Service) OfficerPerformance(ctx context.Context) ([]store.OfficerPerformance, error) {
	rows, err := s.store.AnalyticsRows(ctx)
	if err != nil {
		return nil, err
	}
	officers, err := s.store.ListOfficers(ctx)
	if err != nil {
		return nil, err
	}
	return store.ComputeOfficerPerformance(rows, officers, s.now()), nil
}
